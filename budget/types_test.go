package budget_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrio/condo-engine/apportion"
	"github.com/atrio/condo-engine/budget"
)

func TestSchedule_MonthAndDateMutuallyExclusive(t *testing.T) {
	month := 3
	date := time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC)

	s := budget.Schedule{Month: &month, Date: &date}
	assert.Error(t, s.Validate())

	assert.NoError(t, budget.Schedule{Month: &month}.Validate())
	assert.NoError(t, budget.Schedule{Date: &date}.Validate())
	assert.NoError(t, budget.Schedule{}.Validate(), "unscheduled is valid")
}

func TestSchedule_MonthRange(t *testing.T) {
	for _, m := range []int{0, 13, -1} {
		month := m
		assert.Error(t, budget.Schedule{Month: &month}.Validate(), "month %d", m)
	}
	one, twelve := 1, 12
	assert.NoError(t, budget.Schedule{Month: &one}.Validate())
	assert.NoError(t, budget.Schedule{Month: &twelve}.Validate())
}

func TestSchedule_Unscheduled(t *testing.T) {
	month := 5
	assert.True(t, budget.Schedule{}.Unscheduled())
	assert.False(t, budget.Schedule{Month: &month}.Unscheduled())
}

func TestBudgetedExpense_Validate(t *testing.T) {
	valid := budget.BudgetedExpense{
		BuildingID:  "b-1",
		Description: "Insurance",
		Amount:      apportion.MustMoney("1500.00"),
		Year:        2026,
		Table:       apportion.TableA,
		Rule:        apportion.OwnerOnly(),
	}
	assert.NoError(t, valid.Validate())

	noAmount := valid
	noAmount.Amount = apportion.MustMoney("0")
	assert.Error(t, noAmount.Validate())

	badTable := valid
	badTable.Table = "K"
	assert.Error(t, badTable.Validate(), "K is not in the Italian table alphabet")

	noYear := valid
	noYear.Year = 0
	assert.Error(t, noYear.Validate())
}

func TestBudgetedExpense_AsExpense_SyntheticDates(t *testing.T) {
	base := budget.BudgetedExpense{
		ID:          "be-1",
		BuildingID:  "b-1",
		Description: "Insurance",
		Amount:      apportion.MustMoney("1500.00"),
		Year:        2026,
		Table:       apportion.TableA,
		Rule:        apportion.OwnerOnly(),
	}

	// Unscheduled: January 1st of the target year
	e := base.AsExpense()
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), e.Date)
	assert.Equal(t, apportion.ExpenseID("be-1"), e.ID)

	// Expected month: first of that month
	july := 7
	base.Schedule = budget.Schedule{Month: &july}
	e = base.AsExpense()
	assert.Equal(t, time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC), e.Date)

	// Expected date wins outright
	exact := time.Date(2026, time.September, 23, 0, 0, 0, 0, time.UTC)
	base.Schedule = budget.Schedule{Date: &exact}
	e = base.AsExpense()
	assert.Equal(t, exact, e.Date)
}

func TestTotal_SumsAmounts(t *testing.T) {
	items := []budget.BudgetedExpense{
		{Amount: apportion.MustMoney("900.00")},
		{Amount: apportion.MustMoney("1500.00")},
		{Amount: apportion.MustMoney("0.50")},
	}

	require.Equal(t, "2400.50", budget.Total(items).StringFixed(2))
}

func TestAnnualBudget_Difference(t *testing.T) {
	b := budget.AnnualBudget{
		Budgeted: apportion.MustMoney("4400.00"),
		Realized: apportion.MustMoney("4650.00"),
	}

	// Positive difference means overspend
	assert.Equal(t, "250.00", b.Difference().StringFixed(2))
}
