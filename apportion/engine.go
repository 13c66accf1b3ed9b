/*
engine.go - The apportionment algorithm

PURPOSE:
  Computes, for a snapshot of {roster, share tables, expenses} and an
  optional table filter, the amount owed by each person: flat totals plus
  the nested per-person -> per-table -> per-expense breakdown.

ALGORITHM, per expense E with table T and rule R:
  1. Refuse the whole run if T violates the millesimal invariant. There is
     no skip mode: a result never contains silently-excluded expenses.
  2. For every unit u: unitShare = E.Amount * weight(u)/1000.
  3. Split unitShare into an owner pool and a tenant pool by R, then divide
     each pool equally among that pool's claimants on the unit. A person
     with both roles claims both pools, so a sole owner-and-tenant occupant
     receives the whole unit share.
  4. A pool with no claimant (empty unit, or missing counter-role) goes to
     the result's unattributed total - reported, never hidden.
  5. Each per-expense line is rounded once (2 decimals, half-to-even);
     subtotals and totals are sums of rounded lines, so the post-rounding
     equalities hold exactly.

CONCURRENCY:
  Pure function over an immutable snapshot. Callers assemble a consistent
  snapshot first (see the factory package); independent runs need no
  coordination.
*/
package apportion

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// INPUT SNAPSHOT
// =============================================================================

// Snapshot is the immutable input of one apportionment run.
type Snapshot struct {
	Building Building
	Persons  []Person
	Tables   map[TableID]*ShareTable
	Expenses []Expense
}

// Roster bundles the snapshot's building and persons.
func (s Snapshot) Roster() Roster {
	return Roster{Building: s.Building, Persons: s.Persons}
}

// =============================================================================
// RESULT - Derived read model, never persisted
// =============================================================================

// ExpenseLine is one person's share of one expense.
type ExpenseLine struct {
	ExpenseID     ExpenseID
	Description   string
	Date          time.Time
	ExpenseAmount Money
	Weight        int
	Owed          Money
}

// TableBreakdown groups one person's lines under one share table.
type TableBreakdown struct {
	Table    TableID
	Subtotal Money
	Lines    []ExpenseLine
}

// PersonShare is the full breakdown for one person. Total always equals the
// sum of the table subtotals, which in turn are sums of their line amounts.
type PersonShare struct {
	PersonID PersonID
	Name     string
	Role     Role
	UnitID   int
	Total    Money
	Tables   []TableBreakdown
}

// TableTotal is one table's subtotal across all persons.
type TableTotal struct {
	Table    TableID
	Subtotal Money
}

// Result is the outcome of one apportionment run.
type Result struct {
	// Filter echoes the table filter the run was restricted to, if any.
	Filter *TableID

	// Persons, sorted by unit then name.
	Persons []PersonShare

	// TableTotals in display order, only for tables that carried expenses.
	TableTotals []TableTotal

	// Distributed is the amount attributed to persons; Unattributed is the
	// remainder from units with no claimant for a pool. Their sum equals the
	// participating expense total up to line-rounding epsilon.
	Distributed  Money
	Unattributed Money

	// ExpenseTotal is the sum of participating expense amounts.
	ExpenseTotal Money
}

// TotalFor returns the flat total owed by a person, zero if absent.
func (r *Result) TotalFor(id PersonID) Money {
	for _, p := range r.Persons {
		if p.PersonID == id {
			return p.Total
		}
	}
	return decimal.Zero
}

// =============================================================================
// ENGINE
// =============================================================================

// Apportion runs the allocation over a snapshot. A nil tableFilter considers
// all expenses; otherwise only expenses tagged with that table participate.
func Apportion(snap Snapshot, tableFilter *TableID) (*Result, error) {
	if err := snap.Roster().Validate(); err != nil {
		return nil, err
	}
	if tableFilter != nil && !ValidTableID(*tableFilter) {
		return nil, &ValidationError{Field: "table", Message: "unknown share table " + string(*tableFilter)}
	}

	expenses := make([]Expense, 0, len(snap.Expenses))
	for _, e := range snap.Expenses {
		if tableFilter != nil && e.Table != *tableFilter {
			continue
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}

	// Precondition: every referenced table must be valid before any amount
	// is computed. Refusal names the offending table.
	for _, e := range expenses {
		tbl := snap.Tables[e.Table]
		if tbl == nil {
			return nil, &InvalidTableError{Table: e.Table, Total: 0}
		}
		if err := tbl.Validate(); err != nil {
			return nil, err
		}
	}

	byUnit := snap.Roster().occupancyByUnit()

	accs := make(map[PersonID]*personAcc, len(snap.Persons))
	for _, p := range snap.Persons {
		accs[p.ID] = &personAcc{person: p}
	}

	tableTotals := make(map[TableID]decimal.Decimal)
	unattributed := decimal.Zero
	expenseTotal := decimal.Zero

	for _, e := range expenses {
		tbl := snap.Tables[e.Table]
		ownerFrac, tenantFrac := e.Rule.SplitFractions()
		expenseTotal = expenseTotal.Add(e.Amount)

		perExpense := make(map[PersonID]decimal.Decimal)

		for u := 1; u <= snap.Building.Units; u++ {
			w, _ := tbl.Weight(u)
			if w == 0 {
				continue
			}
			unitShare := e.Amount.Mul(decimal.NewFromInt(int64(w))).Div(thousand)
			ownerPool := unitShare.Mul(ownerFrac)
			tenantPool := unitShare.Mul(tenantFrac)

			occ := byUnit[u]
			if occ == nil {
				unattributed = unattributed.Add(ownerPool).Add(tenantPool)
				continue
			}

			if occ.ownerClaimants == 0 {
				unattributed = unattributed.Add(ownerPool)
			} else {
				share := ownerPool.Div(decimal.NewFromInt(int64(occ.ownerClaimants)))
				for _, p := range occ.persons {
					if p.Role.ClaimsOwnerShare() {
						perExpense[p.ID] = perExpense[p.ID].Add(share)
					}
				}
			}
			if occ.tenantClaimant == 0 {
				unattributed = unattributed.Add(tenantPool)
			} else {
				share := tenantPool.Div(decimal.NewFromInt(int64(occ.tenantClaimant)))
				for _, p := range occ.persons {
					if p.Role.ClaimsTenantShare() {
						perExpense[p.ID] = perExpense[p.ID].Add(share)
					}
				}
			}
		}

		// One rounded line per person touched by a weighted unit; the single
		// rounding point of the whole pipeline.
		for _, p := range snap.Persons {
			exact, touched := perExpense[p.ID]
			if !touched {
				w, _ := tbl.Weight(p.UnitID)
				if w == 0 {
					continue
				}
				exact = decimal.Zero
			}
			owed := RoundMoney(exact)
			w, _ := tbl.Weight(p.UnitID)
			accs[p.ID].addLine(e, w, owed)
			tableTotals[e.Table] = tableTotals[e.Table].Add(owed)
		}
	}

	return assemble(snap, tableFilter, accs, tableTotals, unattributed, expenseTotal), nil
}

// =============================================================================
// ACCUMULATION
// =============================================================================

type personAcc struct {
	person Person
	tables map[TableID]*TableBreakdown
	order  []TableID
}

func (a *personAcc) addLine(e Expense, weight int, owed Money) {
	if a.tables == nil {
		a.tables = make(map[TableID]*TableBreakdown)
	}
	tb := a.tables[e.Table]
	if tb == nil {
		tb = &TableBreakdown{Table: e.Table, Subtotal: decimal.Zero}
		a.tables[e.Table] = tb
		a.order = append(a.order, e.Table)
	}
	tb.Subtotal = tb.Subtotal.Add(owed)
	tb.Lines = append(tb.Lines, ExpenseLine{
		ExpenseID:     e.ID,
		Description:   e.Description,
		Date:          e.Date,
		ExpenseAmount: e.Amount,
		Weight:        weight,
		Owed:          owed,
	})
}

func assemble(snap Snapshot, filter *TableID, accs map[PersonID]*personAcc,
	tableTotals map[TableID]decimal.Decimal, unattributed, expenseTotal decimal.Decimal) *Result {

	persons := make([]PersonShare, 0, len(snap.Persons))
	distributed := decimal.Zero

	for _, p := range snap.Persons {
		acc := accs[p.ID]
		share := PersonShare{
			PersonID: p.ID,
			Name:     p.FullName(),
			Role:     p.Role,
			UnitID:   p.UnitID,
			Total:    decimal.Zero,
		}
		for _, id := range acc.order {
			tb := acc.tables[id]
			share.Tables = append(share.Tables, *tb)
			share.Total = share.Total.Add(tb.Subtotal)
		}
		distributed = distributed.Add(share.Total)
		persons = append(persons, share)
	}

	sort.SliceStable(persons, func(i, j int) bool {
		if persons[i].UnitID != persons[j].UnitID {
			return persons[i].UnitID < persons[j].UnitID
		}
		return persons[i].Name < persons[j].Name
	})

	totals := make([]TableTotal, 0, len(tableTotals))
	for _, id := range TableIDs {
		if sub, ok := tableTotals[id]; ok {
			totals = append(totals, TableTotal{Table: id, Subtotal: sub})
		}
	}

	return &Result{
		Filter:       filter,
		Persons:      persons,
		TableTotals:  totals,
		Distributed:  distributed,
		Unattributed: RoundMoney(unattributed),
		ExpenseTotal: expenseTotal,
	}
}
