/*
Package apportion provides the core expense-apportionment engine.

PURPOSE:
  This package contains the domain types and the allocation algorithm for
  splitting condominium expenses among residents. Given a building's
  ownership-share tables (millesimal tables), its resident roster, and a set
  of expenses, it computes how much each person owes - both as a flat total
  and as a nested per-table, per-expense breakdown.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: fixed-point monetary amounts on decimal.Decimal
  - TableID: one of the ten named share tables (A..L, Italian alphabet)
  - Role: owner, tenant, or owner-and-tenant occupancy of a unit

DESIGN PRINCIPLES:
  1. Purity: the engine computes over immutable in-memory snapshots; it never
     touches storage and has no side effects
  2. Precision: decimal.Decimal everywhere money flows, never float64
  3. Rounding: every emitted amount is rounded exactly once, half-to-even,
     at 2 decimal places; aggregates are sums of rounded lines

USAGE:
  result, err := apportion.Apportion(snapshot, nil)
  for _, p := range result.Persons {
      fmt.Println(p.Name, p.Total)
  }

SEE ALSO:
  - sharetable.go: ShareTable and the 1000-total invariant
  - rule.go: owner/tenant cost-sharing rules
  - engine.go: the allocation algorithm
*/
package apportion

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Fixed-point monetary amounts
// =============================================================================

// Money is a currency-neutral monetary amount. Stored values are 2-decimal
// fixed point; intermediate engine arithmetic runs at full decimal precision.
type Money = decimal.Decimal

// NewMoney builds a Money from major and minor units (e.g. NewMoney(1000, 50)
// is 1000.50).
func NewMoney(units int64, cents int64) Money {
	return decimal.New(units*100+cents, -2)
}

// MustMoney parses a decimal string, returning zero on malformed input.
// Intended for literals in configuration and tests.
func MustMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// RoundMoney applies the system-wide rounding policy: 2 decimal places,
// half-to-even. It is applied once per emitted amount, never on
// intermediate products.
func RoundMoney(d decimal.Decimal) Money {
	return d.RoundBank(2)
}

// thousand is the fixed total every valid share table must sum to.
var thousand = decimal.NewFromInt(TableWeightTotal)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type BuildingID string
type PersonID string
type ExpenseID string

// TableID names one of the ten millesimal tables of a building. The Italian
// convention skips J and K, so the letters run A..I then L.
type TableID string

const (
	TableA TableID = "A"
	TableB TableID = "B"
	TableC TableID = "C"
	TableD TableID = "D"
	TableE TableID = "E"
	TableF TableID = "F"
	TableG TableID = "G"
	TableH TableID = "H"
	TableI TableID = "I"
	TableL TableID = "L"
)

// TableIDs lists all valid table identifiers in display order.
var TableIDs = []TableID{TableA, TableB, TableC, TableD, TableE, TableF, TableG, TableH, TableI, TableL}

// ValidTableID reports whether id names one of the ten tables.
func ValidTableID(id TableID) bool {
	for _, t := range TableIDs {
		if t == id {
			return true
		}
	}
	return false
}

// =============================================================================
// ROLES - Occupancy role of a person within their unit
// =============================================================================

type Role string

const (
	RoleOwner       Role = "owner"
	RoleTenant      Role = "tenant"
	RoleOwnerTenant Role = "owner_and_tenant"
)

// ValidRole reports whether r is one of the three occupancy roles.
func ValidRole(r Role) bool {
	return r == RoleOwner || r == RoleTenant || r == RoleOwnerTenant
}

// ClaimsOwnerShare reports whether the role participates in the owner-side
// portion of an expense.
func (r Role) ClaimsOwnerShare() bool {
	return r == RoleOwner || r == RoleOwnerTenant
}

// ClaimsTenantShare reports whether the role participates in the tenant-side
// portion of an expense.
func (r Role) ClaimsTenantShare() bool {
	return r == RoleTenant || r == RoleOwnerTenant
}

// =============================================================================
// EXPENSE - A realized cost to be apportioned
// =============================================================================

// Expense is a building-wide cost allocated across all units through one
// share table, split between owner and tenant roles by one rule.
type Expense struct {
	ID          ExpenseID
	BuildingID  BuildingID
	Description string
	Amount      Money
	Date        time.Time
	Table       TableID
	Rule        CostSharingRule
}

// Validate checks the expense's own fields (amount strictly positive, table
// id well-formed, rule percentages in range). Table existence and validity
// against a concrete snapshot is the engine's precondition check.
func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if !ValidTableID(e.Table) {
		return &ValidationError{Field: "table", Message: "unknown share table " + string(e.Table)}
	}
	return e.Rule.Validate()
}
