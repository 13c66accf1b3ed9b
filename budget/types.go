/*
Package budget layers the forward-planning workflow on the apportionment core.

PURPOSE:
  Budgeted expenses are planned costs for a future fiscal year. They share
  the apportionment shape of realized expenses (amount, share table, cost
  sharing rule) plus a target year and an optional schedule, and they feed
  the same engine to preview an apportionment before any cost is realized.

SEPARATION:
  Creating, editing or deleting a budgeted expense never mutates realized
  expense records, and vice versa. The two sets only meet inside the
  year-over-year analyzer, read-only on both sides.

SEE ALSO:
  - analyzer.go: budget-vs-actual reconciliation
  - apportion: the shared allocation engine
*/
package budget

import (
	"time"

	"github.com/atrio/condo-engine/apportion"
)

type BudgetID string
type BudgetedExpenseID string

// AnnualBudget tracks one building's plan for one fiscal year: the budgeted
// total (kept in sync with its budgeted expenses), the realized total, and
// their difference.
type AnnualBudget struct {
	ID         BudgetID
	BuildingID apportion.BuildingID
	Year       int
	Budgeted   apportion.Money
	Realized   apportion.Money
	Notes      string
}

// Difference is realized minus budgeted: positive means overspend.
func (b AnnualBudget) Difference() apportion.Money {
	return b.Realized.Sub(b.Budgeted)
}

// Schedule places a budgeted expense within its target year: an expected
// month (1..12), an expected date, or neither (unscheduled). Month and date
// are mutually exclusive.
type Schedule struct {
	Month *int
	Date  *time.Time
}

// Validate enforces the month range and the month/date exclusivity.
func (s Schedule) Validate() error {
	if s.Month != nil && s.Date != nil {
		return &apportion.ValidationError{Field: "schedule", Message: "expected month and expected date are mutually exclusive"}
	}
	if s.Month != nil && (*s.Month < 1 || *s.Month > 12) {
		return &apportion.ValidationError{Field: "expected_month", Message: "expected month must be within 1..12"}
	}
	return nil
}

// Unscheduled reports whether neither month nor date is set. Such records
// are valid; they simply carry no placement within the year.
func (s Schedule) Unscheduled() bool {
	return s.Month == nil && s.Date == nil
}

// BudgetedExpense is a planned cost for a target fiscal year.
type BudgetedExpense struct {
	ID          BudgetedExpenseID
	BudgetID    BudgetID
	BuildingID  apportion.BuildingID
	Description string
	Amount      apportion.Money
	Year        int
	Schedule    Schedule
	Table       apportion.TableID
	Rule        apportion.CostSharingRule
	Notes       string
}

// Validate checks the record's own fields.
func (b BudgetedExpense) Validate() error {
	if !b.Amount.IsPositive() {
		return &apportion.ValidationError{Field: "amount", Message: "amount must be positive"}
	}
	if !apportion.ValidTableID(b.Table) {
		return &apportion.ValidationError{Field: "table", Message: "unknown share table " + string(b.Table)}
	}
	if b.Year <= 0 {
		return &apportion.ValidationError{Field: "year", Message: "target year required"}
	}
	if err := b.Schedule.Validate(); err != nil {
		return err
	}
	return b.Rule.Validate()
}

// AsExpense converts the record into the engine's expense shape so the same
// apportionment runs over planned and realized costs. The synthetic date is
// the schedule date when set, else the first of the expected month, else
// January 1st of the target year.
func (b BudgetedExpense) AsExpense() apportion.Expense {
	date := time.Date(b.Year, time.January, 1, 0, 0, 0, 0, time.UTC)
	switch {
	case b.Schedule.Date != nil:
		date = *b.Schedule.Date
	case b.Schedule.Month != nil:
		date = time.Date(b.Year, time.Month(*b.Schedule.Month), 1, 0, 0, 0, 0, time.UTC)
	}
	return apportion.Expense{
		ID:          apportion.ExpenseID(b.ID),
		BuildingID:  b.BuildingID,
		Description: b.Description,
		Amount:      b.Amount,
		Date:        date,
		Table:       b.Table,
		Rule:        b.Rule,
	}
}

// AsExpenses converts a budgeted set for engine input, preserving order.
func AsExpenses(items []BudgetedExpense) []apportion.Expense {
	out := make([]apportion.Expense, len(items))
	for i, b := range items {
		out[i] = b.AsExpense()
	}
	return out
}

// Total sums the budgeted amounts of a set.
func Total(items []BudgetedExpense) apportion.Money {
	total := apportion.MustMoney("0")
	for _, b := range items {
		total = total.Add(b.Amount)
	}
	return total
}
