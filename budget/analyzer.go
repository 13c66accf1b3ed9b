/*
analyzer.go - Year-over-year reconciliation

PURPOSE:
  Compares a reference year's plan against the following year's figures.
  Analyze(referenceYear) targets referenceYear+1: when realized expenses
  dated in the target year exist, they are the authoritative source
  (SourceActual); otherwise the reference year's budgeted expenses are
  projected forward (SourceProjected). The report always carries its source
  tag so callers can distinguish authoritative from estimated numbers.

AGGREGATION:
  The allocation itself is one plain engine run; the analyzer only reshapes
  its result into per-role subtotals/counts/averages, a per-person breakdown
  and a per-table breakdown. An owner-and-tenant person counts toward both
  role summaries, since they carry both quotas.
*/
package budget

import (
	"github.com/atrio/condo-engine/apportion"
	"github.com/shopspring/decimal"
)

// DataSource tags which inputs backed a reconciliation report.
type DataSource string

const (
	// SourceActual: realized expenses dated in the target year.
	SourceActual DataSource = "actual"
	// SourceProjected: reference-year budgeted expenses, projected forward.
	SourceProjected DataSource = "projected_from_budget"
)

// RoleSummary is the subtotal/count/average triple for one occupancy side.
type RoleSummary struct {
	Subtotal apportion.Money
	Count    int
	Average  apportion.Money
}

// PersonAnalysis is one person's line in the report.
type PersonAnalysis struct {
	PersonID apportion.PersonID
	Name     string
	Role     apportion.Role
	UnitID   int
	Total    apportion.Money
	Tables   []apportion.TableBreakdown
}

// TableLine is one person's share within a table breakdown.
type TableLine struct {
	PersonID apportion.PersonID
	Name     string
	Role     apportion.Role
	UnitID   int
	Amount   apportion.Money
}

// TableAnalysis is one table's subtotal with its per-person line items.
type TableAnalysis struct {
	Table    apportion.TableID
	Subtotal apportion.Money
	Lines    []TableLine
}

// Report is the outcome of one year-over-year analysis.
type Report struct {
	ReferenceYear int
	TargetYear    int
	Source        DataSource

	Distributed  apportion.Money
	Unattributed apportion.Money

	Owners  RoleSummary
	Tenants RoleSummary

	Persons []PersonAnalysis
	Tables  []TableAnalysis
}

// AnalyzerInput is the immutable snapshot an analysis runs over. TargetActuals
// holds realized expenses already restricted to the target year; the caller
// (factory) performs that cut when assembling the snapshot.
type AnalyzerInput struct {
	Building      apportion.Building
	Persons       []apportion.Person
	Tables        map[apportion.TableID]*apportion.ShareTable
	ReferenceYear int

	ReferenceBudget []BudgetedExpense
	TargetActuals   []apportion.Expense
}

// Analyze produces the reconciliation report for the input's reference year.
func Analyze(in AnalyzerInput) (*Report, error) {
	source := SourceProjected
	expenses := AsExpenses(in.ReferenceBudget)
	if len(in.TargetActuals) > 0 {
		source = SourceActual
		expenses = in.TargetActuals
	}

	result, err := apportion.Apportion(apportion.Snapshot{
		Building: in.Building,
		Persons:  in.Persons,
		Tables:   in.Tables,
		Expenses: expenses,
	}, nil)
	if err != nil {
		return nil, err
	}

	report := &Report{
		ReferenceYear: in.ReferenceYear,
		TargetYear:    in.ReferenceYear + 1,
		Source:        source,
		Distributed:   result.Distributed,
		Unattributed:  result.Unattributed,
	}

	tableAccs := make(map[apportion.TableID]*TableAnalysis)
	ownerSub, tenantSub := decimal.Zero, decimal.Zero

	for _, p := range result.Persons {
		report.Persons = append(report.Persons, PersonAnalysis{
			PersonID: p.PersonID,
			Name:     p.Name,
			Role:     p.Role,
			UnitID:   p.UnitID,
			Total:    p.Total,
			Tables:   p.Tables,
		})

		if p.Role.ClaimsOwnerShare() {
			ownerSub = ownerSub.Add(p.Total)
			report.Owners.Count++
		}
		if p.Role.ClaimsTenantShare() {
			tenantSub = tenantSub.Add(p.Total)
			report.Tenants.Count++
		}

		for _, tb := range p.Tables {
			acc := tableAccs[tb.Table]
			if acc == nil {
				acc = &TableAnalysis{Table: tb.Table, Subtotal: decimal.Zero}
				tableAccs[tb.Table] = acc
			}
			acc.Subtotal = acc.Subtotal.Add(tb.Subtotal)
			acc.Lines = append(acc.Lines, TableLine{
				PersonID: p.PersonID,
				Name:     p.Name,
				Role:     p.Role,
				UnitID:   p.UnitID,
				Amount:   tb.Subtotal,
			})
		}
	}

	report.Owners.Subtotal = ownerSub
	report.Tenants.Subtotal = tenantSub
	if report.Owners.Count > 0 {
		report.Owners.Average = apportion.RoundMoney(ownerSub.Div(decimal.NewFromInt(int64(report.Owners.Count))))
	}
	if report.Tenants.Count > 0 {
		report.Tenants.Average = apportion.RoundMoney(tenantSub.Div(decimal.NewFromInt(int64(report.Tenants.Count))))
	}

	for _, id := range apportion.TableIDs {
		if acc := tableAccs[id]; acc != nil {
			report.Tables = append(report.Tables, *acc)
		}
	}

	return report, nil
}
