package apportion_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrio/condo-engine/apportion"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// twoUnitSnapshot is the canonical small building: table A weighted 600/400,
// an owner in unit 1 and a tenant in unit 2.
func twoUnitSnapshot(t *testing.T, expenses ...apportion.Expense) apportion.Snapshot {
	t.Helper()

	tbl := apportion.NewShareTable("b-1", apportion.TableA, 2)
	require.NoError(t, tbl.SetWeight(1, 600))
	require.NoError(t, tbl.SetWeight(2, 400))

	return apportion.Snapshot{
		Building: apportion.Building{ID: "b-1", Name: "Condominio Due", Units: 2},
		Persons: []apportion.Person{
			{ID: "p-mario", BuildingID: "b-1", UnitID: 1, FirstName: "Mario", LastName: "Rossi", Role: apportion.RoleOwner},
			{ID: "p-lucia", BuildingID: "b-1", UnitID: 2, FirstName: "Lucia", LastName: "Bianchi", Role: apportion.RoleTenant},
		},
		Tables:   map[apportion.TableID]*apportion.ShareTable{apportion.TableA: tbl},
		Expenses: expenses,
	}
}

func expense(amount string, table apportion.TableID, rule apportion.CostSharingRule) apportion.Expense {
	return apportion.Expense{
		ID:          "e-1",
		BuildingID:  "b-1",
		Description: "Test expense",
		Amount:      apportion.MustMoney(amount),
		Date:        time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
		Table:       table,
		Rule:        rule,
	}
}

// =============================================================================
// WORKED SCENARIOS
// =============================================================================

func TestApportion_OwnerOnly_TenantOwesNothing(t *testing.T) {
	// GIVEN: 1000.00 structural expense on table A (600/400), owner_only
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.OwnerOnly()))

	// WHEN: Apportioning
	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	// THEN: The owner carries their unit's full share, the tenant owes zero,
	// and the vacant owner side of unit 2 stays unattributed
	assert.Equal(t, "600.00", result.TotalFor("p-mario").StringFixed(2))
	assert.Equal(t, "0.00", result.TotalFor("p-lucia").StringFixed(2))
	assert.Equal(t, "600.00", result.Distributed.StringFixed(2))
	assert.Equal(t, "400.00", result.Unattributed.StringFixed(2))
	assert.Equal(t, "1000.00", result.ExpenseTotal.StringFixed(2))
}

func TestApportion_EvenSplit_MissingCounterRolesUnattributed(t *testing.T) {
	// GIVEN: 1000.00 expense split evenly between owner and tenant sides
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.EvenSplit()))

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	// THEN: Each resident pays half of their own unit's share; the absent
	// tenant of unit 1 and absent owner of unit 2 leave 500.00 unattributed
	assert.Equal(t, "300.00", result.TotalFor("p-mario").StringFixed(2))
	assert.Equal(t, "200.00", result.TotalFor("p-lucia").StringFixed(2))
	assert.Equal(t, "500.00", result.Unattributed.StringFixed(2))
}

func TestApportion_TenantOnly_OwnerOwesNothing(t *testing.T) {
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.TenantOnly()))

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	assert.Equal(t, "0.00", result.TotalFor("p-mario").StringFixed(2))
	assert.Equal(t, "400.00", result.TotalFor("p-lucia").StringFixed(2))
	assert.Equal(t, "600.00", result.Unattributed.StringFixed(2))
}

func TestApportion_OwnerAndTenant_ClaimsBothPools(t *testing.T) {
	// GIVEN: A sole occupant holding both roles, even split
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.EvenSplit()))
	snap.Persons = []apportion.Person{
		{ID: "p-anna", BuildingID: "b-1", UnitID: 1, FirstName: "Anna", LastName: "Conti", Role: apportion.RoleOwnerTenant},
	}

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	// THEN: The split collapses; she pays her unit's full 600.00 share
	assert.Equal(t, "600.00", result.TotalFor("p-anna").StringFixed(2))
	assert.Equal(t, "400.00", result.Unattributed.StringFixed(2))
}

func TestApportion_CoOwners_SplitTheirPoolEqually(t *testing.T) {
	// GIVEN: Two owners in unit 1
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.OwnerOnly()))
	snap.Persons = []apportion.Person{
		{ID: "p-paolo", BuildingID: "b-1", UnitID: 1, FirstName: "Paolo", LastName: "Greco", Role: apportion.RoleOwner},
		{ID: "p-sara", BuildingID: "b-1", UnitID: 1, FirstName: "Sara", LastName: "Fontana", Role: apportion.RoleOwner},
	}

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	// THEN: The unit's 600.00 owner share divides equally
	assert.Equal(t, "300.00", result.TotalFor("p-paolo").StringFixed(2))
	assert.Equal(t, "300.00", result.TotalFor("p-sara").StringFixed(2))
}

func TestApportion_UnbalancedCustomRule_AppliedAsWritten(t *testing.T) {
	// GIVEN: A 70/50 custom rule, collected by an owner-and-tenant occupant
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.Custom(70, 50)))
	snap.Persons = []apportion.Person{
		{ID: "p-anna", BuildingID: "b-1", UnitID: 1, FirstName: "Anna", LastName: "Conti", Role: apportion.RoleOwnerTenant},
	}

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	// THEN: 120% of the unit share, exactly as entered (600 × 1.2)
	assert.Equal(t, "720.00", result.TotalFor("p-anna").StringFixed(2))
}

// =============================================================================
// INVARIANT PROPERTIES
// =============================================================================

func TestApportion_Conservation(t *testing.T) {
	// GIVEN: A mix of rules over the same table
	snap := twoUnitSnapshot(t,
		expense("1000.00", apportion.TableA, apportion.OwnerOnly()),
		apportion.Expense{
			ID: "e-2", BuildingID: "b-1", Description: "Cleaning",
			Amount: apportion.MustMoney("333.33"),
			Date:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
			Table:  apportion.TableA, Rule: apportion.EvenSplit(),
		},
	)

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	// THEN: Distributed plus unattributed covers the whole expense total,
	// up to the per-line rounding epsilon
	diff := result.Distributed.Add(result.Unattributed).Sub(result.ExpenseTotal).Abs()
	assert.True(t, diff.LessThanOrEqual(apportion.MustMoney("0.05")),
		"conservation violated by %s", diff.String())
}

func TestApportion_PersonTotalEqualsSumOfBreakdown(t *testing.T) {
	snap := twoUnitSnapshot(t,
		expense("1000.00", apportion.TableA, apportion.OwnerOnly()),
		apportion.Expense{
			ID: "e-2", BuildingID: "b-1", Description: "Cleaning",
			Amount: apportion.MustMoney("777.77"),
			Date:   time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
			Table:  apportion.TableA, Rule: apportion.EvenSplit(),
		},
	)

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	// THEN: Exact post-rounding equalities: total == Σ subtotals == Σ lines
	for _, p := range result.Persons {
		tableSum := apportion.MustMoney("0")
		for _, tb := range p.Tables {
			lineSum := apportion.MustMoney("0")
			for _, l := range tb.Lines {
				lineSum = lineSum.Add(l.Owed)
			}
			assert.True(t, tb.Subtotal.Equal(lineSum), "subtotal mismatch for %s/%s", p.Name, tb.Table)
			tableSum = tableSum.Add(tb.Subtotal)
		}
		assert.True(t, p.Total.Equal(tableSum), "total mismatch for %s", p.Name)
	}
}

func TestApportion_Idempotent(t *testing.T) {
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.EvenSplit()))

	first, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)
	second, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	require.Len(t, second.Persons, len(first.Persons))
	for i := range first.Persons {
		assert.Equal(t, first.Persons[i].PersonID, second.Persons[i].PersonID)
		assert.True(t, first.Persons[i].Total.Equal(second.Persons[i].Total))
	}
	assert.True(t, first.Unattributed.Equal(second.Unattributed))
}

func TestApportion_RoundsHalfToEven(t *testing.T) {
	// GIVEN: An amount whose unit share lands exactly on a half cent:
	// 1.0375 × 600/1000 = 0.6225, a tie at the third decimal
	snap := twoUnitSnapshot(t, expense("1.0375", apportion.TableA, apportion.OwnerOnly()))

	// THEN: The tie goes to the even cent: 0.62, not 0.63

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	assert.Equal(t, "0.62", result.TotalFor("p-mario").StringFixed(2))
}

// =============================================================================
// FILTERING
// =============================================================================

func TestApportion_TableFilter_RestrictsToOneTable(t *testing.T) {
	// GIVEN: Expenses on tables A and B
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.OwnerOnly()))
	tblB := apportion.NewShareTable("b-1", apportion.TableB, 2)
	require.NoError(t, tblB.SetWeight(1, 500))
	require.NoError(t, tblB.SetWeight(2, 500))
	snap.Tables[apportion.TableB] = tblB
	snap.Expenses = append(snap.Expenses, apportion.Expense{
		ID: "e-2", BuildingID: "b-1", Description: "Elevator",
		Amount: apportion.MustMoney("500.00"),
		Date:   time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC),
		Table:  apportion.TableB, Rule: apportion.OwnerOnly(),
	})

	// WHEN: Filtering to table B
	filter := apportion.TableB
	result, err := apportion.Apportion(snap, &filter)
	require.NoError(t, err)

	// THEN: Only the elevator expense participates
	assert.Equal(t, "500.00", result.ExpenseTotal.StringFixed(2))
	assert.Equal(t, "250.00", result.TotalFor("p-mario").StringFixed(2))
	require.Len(t, result.TableTotals, 1)
	assert.Equal(t, apportion.TableB, result.TableTotals[0].Table)
}

func TestApportion_CopiedTable_YieldsIdenticalResults(t *testing.T) {
	// GIVEN: Table B as an exact copy of table A, same expense tagged to each
	snapA := twoUnitSnapshot(t, expense("876.54", apportion.TableA, apportion.EvenSplit()))

	snapB := twoUnitSnapshot(t)
	tblB := apportion.NewShareTable("b-1", apportion.TableB, 2)
	snapB.Tables[apportion.TableA].CopyTo(tblB)
	snapB.Tables[apportion.TableB] = tblB
	e := expense("876.54", apportion.TableB, apportion.EvenSplit())
	snapB.Expenses = []apportion.Expense{e}

	// WHEN: Apportioning A unfiltered and B under filter B
	resultA, err := apportion.Apportion(snapA, nil)
	require.NoError(t, err)
	filter := apportion.TableB
	resultB, err := apportion.Apportion(snapB, &filter)
	require.NoError(t, err)

	// THEN: Per-person results are identical
	require.Len(t, resultB.Persons, len(resultA.Persons))
	for i := range resultA.Persons {
		assert.True(t, resultA.Persons[i].Total.Equal(resultB.Persons[i].Total),
			"person %s differs", resultA.Persons[i].Name)
	}
	assert.True(t, resultA.Unattributed.Equal(resultB.Unattributed))
}

func TestApportion_UnknownFilter_Rejected(t *testing.T) {
	snap := twoUnitSnapshot(t)

	bad := apportion.TableID("Z")
	_, err := apportion.Apportion(snap, &bad)

	require.Error(t, err)
	var ve *apportion.ValidationError
	assert.ErrorAs(t, err, &ve)
}

// =============================================================================
// REFUSALS
// =============================================================================

func TestApportion_InvalidTable_RefusesWholeRun(t *testing.T) {
	// GIVEN: Table A totalling 999
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.OwnerOnly()))
	require.NoError(t, snap.Tables[apportion.TableA].SetWeight(2, 399))

	// WHEN: Apportioning
	result, err := apportion.Apportion(snap, nil)

	// THEN: The whole run is refused, naming the table; no partial result
	assert.Nil(t, result)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apportion.ErrInvalidTable))

	var ite *apportion.InvalidTableError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, apportion.TableA, ite.Table)
	assert.Equal(t, 999, ite.Total)
}

func TestApportion_ExpenseOnAbsentTable_Refused(t *testing.T) {
	// GIVEN: An expense charged to table C, which has no weights at all
	snap := twoUnitSnapshot(t, expense("100.00", apportion.TableC, apportion.OwnerOnly()))

	_, err := apportion.Apportion(snap, nil)

	require.Error(t, err)
	var ite *apportion.InvalidTableError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, apportion.TableC, ite.Table)
}

func TestApportion_NonPositiveAmount_Rejected(t *testing.T) {
	snap := twoUnitSnapshot(t, expense("0.00", apportion.TableA, apportion.OwnerOnly()))

	_, err := apportion.Apportion(snap, nil)

	require.Error(t, err)
	var ve *apportion.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestApportion_PersonOutsideUnitRange_Refused(t *testing.T) {
	// GIVEN: A person assigned to unit 7 of a two-unit building
	snap := twoUnitSnapshot(t, expense("100.00", apportion.TableA, apportion.OwnerOnly()))
	snap.Persons = append(snap.Persons, apportion.Person{
		ID: "p-ghost", BuildingID: "b-1", UnitID: 7, LastName: "Ghost", Role: apportion.RoleOwner,
	})

	_, err := apportion.Apportion(snap, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, apportion.ErrInvalidAssignment))

	var ipe *apportion.InvalidPersonAssignmentError
	require.ErrorAs(t, err, &ipe)
	assert.Equal(t, apportion.PersonID("p-ghost"), ipe.PersonID)
	assert.Equal(t, 7, ipe.UnitID)
}

// =============================================================================
// RESULT SHAPE
// =============================================================================

func TestApportion_PersonsSortedByUnitThenName(t *testing.T) {
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.EvenSplit()))
	snap.Persons = []apportion.Person{
		{ID: "p-3", BuildingID: "b-1", UnitID: 2, FirstName: "Zeno", LastName: "Verdi", Role: apportion.RoleTenant},
		{ID: "p-2", BuildingID: "b-1", UnitID: 1, FirstName: "Bianca", LastName: "Neri", Role: apportion.RoleOwner},
		{ID: "p-1", BuildingID: "b-1", UnitID: 1, FirstName: "Aldo", LastName: "Moro", Role: apportion.RoleOwner},
	}

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	require.Len(t, result.Persons, 3)
	assert.Equal(t, apportion.PersonID("p-1"), result.Persons[0].PersonID)
	assert.Equal(t, apportion.PersonID("p-2"), result.Persons[1].PersonID)
	assert.Equal(t, apportion.PersonID("p-3"), result.Persons[2].PersonID)
}

func TestApportion_ZeroOwedLinesIncluded(t *testing.T) {
	// GIVEN: An owner_only expense; the tenant's unit carries weight
	snap := twoUnitSnapshot(t, expense("1000.00", apportion.TableA, apportion.OwnerOnly()))

	result, err := apportion.Apportion(snap, nil)
	require.NoError(t, err)

	// THEN: The tenant appears with an explicit zero line, not silence
	var lucia *apportion.PersonShare
	for i := range result.Persons {
		if result.Persons[i].PersonID == "p-lucia" {
			lucia = &result.Persons[i]
		}
	}
	require.NotNil(t, lucia)
	require.Len(t, lucia.Tables, 1)
	require.Len(t, lucia.Tables[0].Lines, 1)
	assert.Equal(t, "0.00", lucia.Tables[0].Lines[0].Owed.StringFixed(2))
	assert.Equal(t, 400, lucia.Tables[0].Lines[0].Weight)
}
