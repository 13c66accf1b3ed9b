package budget_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrio/condo-engine/apportion"
	"github.com/atrio/condo-engine/budget"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// analyzerInput builds the canonical two-unit building: table A weighted
// 600/400, an owner in unit 1 and a tenant in unit 2, reference year 2025.
func analyzerInput(t *testing.T) budget.AnalyzerInput {
	t.Helper()

	tbl := apportion.NewShareTable("b-1", apportion.TableA, 2)
	require.NoError(t, tbl.SetWeight(1, 600))
	require.NoError(t, tbl.SetWeight(2, 400))

	return budget.AnalyzerInput{
		Building: apportion.Building{ID: "b-1", Name: "Condominio Due", Units: 2},
		Persons: []apportion.Person{
			{ID: "p-mario", BuildingID: "b-1", UnitID: 1, FirstName: "Mario", LastName: "Rossi", Role: apportion.RoleOwner},
			{ID: "p-lucia", BuildingID: "b-1", UnitID: 2, FirstName: "Lucia", LastName: "Bianchi", Role: apportion.RoleTenant},
		},
		Tables:        map[apportion.TableID]*apportion.ShareTable{apportion.TableA: tbl},
		ReferenceYear: 2025,
	}
}

func budgetedExpense(amount string, rule apportion.CostSharingRule) budget.BudgetedExpense {
	return budget.BudgetedExpense{
		ID:          "be-1",
		BuildingID:  "b-1",
		Description: "Planned works",
		Amount:      apportion.MustMoney(amount),
		Year:        2025,
		Table:       apportion.TableA,
		Rule:        rule,
	}
}

func actualExpense(amount string, date time.Time, rule apportion.CostSharingRule) apportion.Expense {
	return apportion.Expense{
		ID:          "e-1",
		BuildingID:  "b-1",
		Description: "Realized works",
		Amount:      apportion.MustMoney(amount),
		Date:        date,
		Table:       apportion.TableA,
		Rule:        rule,
	}
}

// =============================================================================
// SOURCE SELECTION
// =============================================================================

func TestAnalyze_NoActuals_ProjectsFromBudget(t *testing.T) {
	// GIVEN: A budgeted reference year and an empty target year
	in := analyzerInput(t)
	in.ReferenceBudget = []budget.BudgetedExpense{budgetedExpense("1000.00", apportion.OwnerOnly())}

	// WHEN: Analyzing
	report, err := budget.Analyze(in)
	require.NoError(t, err)

	// THEN: The report is a projection targeting the following year
	assert.Equal(t, budget.SourceProjected, report.Source)
	assert.Equal(t, 2025, report.ReferenceYear)
	assert.Equal(t, 2026, report.TargetYear)
	assert.Equal(t, "600.00", report.Distributed.StringFixed(2))
	assert.Equal(t, "400.00", report.Unattributed.StringFixed(2))
}

func TestAnalyze_ActualsPresent_OverrideBudget(t *testing.T) {
	// GIVEN: Both a budget and realized target-year expenses
	in := analyzerInput(t)
	in.ReferenceBudget = []budget.BudgetedExpense{budgetedExpense("1000.00", apportion.OwnerOnly())}
	in.TargetActuals = []apportion.Expense{
		actualExpense("2000.00", time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC), apportion.OwnerOnly()),
	}

	report, err := budget.Analyze(in)
	require.NoError(t, err)

	// THEN: Actuals are authoritative; the budget is ignored entirely
	assert.Equal(t, budget.SourceActual, report.Source)
	assert.Equal(t, "1200.00", report.Distributed.StringFixed(2))
}

// =============================================================================
// ROLE SUMMARIES
// =============================================================================

func TestAnalyze_RoleSummaries(t *testing.T) {
	in := analyzerInput(t)
	in.ReferenceBudget = []budget.BudgetedExpense{budgetedExpense("1000.00", apportion.EvenSplit())}

	report, err := budget.Analyze(in)
	require.NoError(t, err)

	// Owner side: Mario's 300.00; tenant side: Lucia's 200.00
	assert.Equal(t, "300.00", report.Owners.Subtotal.StringFixed(2))
	assert.Equal(t, 1, report.Owners.Count)
	assert.Equal(t, "300.00", report.Owners.Average.StringFixed(2))

	assert.Equal(t, "200.00", report.Tenants.Subtotal.StringFixed(2))
	assert.Equal(t, 1, report.Tenants.Count)
	assert.Equal(t, "200.00", report.Tenants.Average.StringFixed(2))
}

func TestAnalyze_OwnerAndTenant_CountedInBothRoles(t *testing.T) {
	// GIVEN: A sole occupant holding both roles
	in := analyzerInput(t)
	in.Persons = []apportion.Person{
		{ID: "p-anna", BuildingID: "b-1", UnitID: 1, FirstName: "Anna", LastName: "Conti", Role: apportion.RoleOwnerTenant},
	}
	in.ReferenceBudget = []budget.BudgetedExpense{budgetedExpense("1000.00", apportion.EvenSplit())}

	report, err := budget.Analyze(in)
	require.NoError(t, err)

	// THEN: Her 600.00 total appears in both role summaries
	assert.Equal(t, 1, report.Owners.Count)
	assert.Equal(t, 1, report.Tenants.Count)
	assert.Equal(t, "600.00", report.Owners.Subtotal.StringFixed(2))
	assert.Equal(t, "600.00", report.Tenants.Subtotal.StringFixed(2))
}

// =============================================================================
// BREAKDOWNS
// =============================================================================

func TestAnalyze_PerPersonAndPerTableBreakdowns(t *testing.T) {
	in := analyzerInput(t)
	in.ReferenceBudget = []budget.BudgetedExpense{budgetedExpense("1000.00", apportion.OwnerOnly())}

	report, err := budget.Analyze(in)
	require.NoError(t, err)

	// Persons sorted by unit then name, with their table detail attached
	require.Len(t, report.Persons, 2)
	assert.Equal(t, apportion.PersonID("p-mario"), report.Persons[0].PersonID)
	assert.Equal(t, "600.00", report.Persons[0].Total.StringFixed(2))
	require.Len(t, report.Persons[0].Tables, 1)

	// One table analysis carrying both residents' lines
	require.Len(t, report.Tables, 1)
	ta := report.Tables[0]
	assert.Equal(t, apportion.TableA, ta.Table)
	assert.Equal(t, "600.00", ta.Subtotal.StringFixed(2))
	require.Len(t, ta.Lines, 2)
}

func TestAnalyze_InvalidTable_Refused(t *testing.T) {
	// GIVEN: A reference budget over a table totalling 999
	in := analyzerInput(t)
	require.NoError(t, in.Tables[apportion.TableA].SetWeight(2, 399))
	in.ReferenceBudget = []budget.BudgetedExpense{budgetedExpense("1000.00", apportion.OwnerOnly())}

	_, err := budget.Analyze(in)

	require.Error(t, err)
	var ite *apportion.InvalidTableError
	assert.ErrorAs(t, err, &ite)
}
