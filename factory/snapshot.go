/*
Package factory assembles computation inputs from persisted state.

PURPOSE:
  The apportion engine and the budget analyzer are pure functions over
  immutable snapshots. This package is the seam between them and the store:
  it loads a building's roster, share tables and expenses, shapes them into
  the snapshot types, and hands them to the computation layer. Handlers never
  touch the store's row-level API for computations.

KEY CONCEPTS:
  - Snapshot assembly: one consistent read of everything a run needs
  - Budget generation: seed next year's budgeted expenses from this
    year's realized ones

USAGE:
  f := factory.New(store)
  snap, err := f.Snapshot(ctx, buildingID, nil)
  result, err := apportion.Apportion(snap, nil)

  in, err := f.AnalyzerInput(ctx, buildingID, 2025)
  report, err := budget.Analyze(in)

SEE ALSO:
  - apportion/engine.go: Snapshot consumer
  - budget/analyzer.go: AnalyzerInput consumer
*/
package factory

import (
	"context"
	"fmt"

	"github.com/atrio/condo-engine/apportion"
	"github.com/atrio/condo-engine/budget"
)

// Store is the persistence surface the factory reads from.
type Store interface {
	GetBuilding(ctx context.Context, id apportion.BuildingID) (*apportion.Building, error)
	ListPersons(ctx context.Context, buildingID apportion.BuildingID) ([]apportion.Person, error)
	GetShareTables(ctx context.Context, buildingID apportion.BuildingID) (map[apportion.TableID]*apportion.ShareTable, error)
	ListExpenses(ctx context.Context, buildingID apportion.BuildingID, tableFilter *apportion.TableID) ([]apportion.Expense, error)
	ListExpensesForYear(ctx context.Context, buildingID apportion.BuildingID, year int) ([]apportion.Expense, error)
	ListBudgetedExpenses(ctx context.Context, buildingID apportion.BuildingID, year int) ([]budget.BudgetedExpense, error)
	SaveBudgetedExpense(ctx context.Context, e budget.BudgetedExpense) (budget.BudgetedExpense, error)
}

// Factory loads persisted state into computation snapshots.
type Factory struct {
	store Store
}

// New creates a factory over a store.
func New(store Store) *Factory {
	return &Factory{store: store}
}

// =============================================================================
// SNAPSHOT ASSEMBLY
// =============================================================================

// Snapshot loads everything an apportionment run needs for a building. When
// tableFilter is set, only expenses charged to that table are loaded; the
// table map always carries all tables so validation still sees them.
func (f *Factory) Snapshot(ctx context.Context, buildingID apportion.BuildingID, tableFilter *apportion.TableID) (apportion.Snapshot, error) {
	var snap apportion.Snapshot

	building, err := f.store.GetBuilding(ctx, buildingID)
	if err != nil {
		return snap, err
	}
	if building == nil {
		return snap, apportion.ErrBuildingNotFound
	}

	persons, err := f.store.ListPersons(ctx, buildingID)
	if err != nil {
		return snap, err
	}
	tables, err := f.store.GetShareTables(ctx, buildingID)
	if err != nil {
		return snap, err
	}
	expenses, err := f.store.ListExpenses(ctx, buildingID, tableFilter)
	if err != nil {
		return snap, err
	}

	snap.Building = *building
	snap.Persons = persons
	snap.Tables = tables
	snap.Expenses = expenses
	return snap, nil
}

// AnalyzerInput loads the reconciliation snapshot for a reference year:
// the reference year's budgeted expenses plus whatever realized expenses
// already exist in the following year.
func (f *Factory) AnalyzerInput(ctx context.Context, buildingID apportion.BuildingID, referenceYear int) (budget.AnalyzerInput, error) {
	var in budget.AnalyzerInput

	snap, err := f.Snapshot(ctx, buildingID, nil)
	if err != nil {
		return in, err
	}

	budgeted, err := f.store.ListBudgetedExpenses(ctx, buildingID, referenceYear)
	if err != nil {
		return in, err
	}
	actuals, err := f.store.ListExpensesForYear(ctx, buildingID, referenceYear+1)
	if err != nil {
		return in, err
	}

	in.Building = snap.Building
	in.Persons = snap.Persons
	in.Tables = snap.Tables
	in.ReferenceYear = referenceYear
	in.ReferenceBudget = budgeted
	in.TargetActuals = actuals
	return in, nil
}

// =============================================================================
// BUDGET GENERATION
// =============================================================================

// GenerateBudget seeds the budget for fromYear+1 by copying fromYear's
// realized expenses into budgeted expenses, each scheduled on the month the
// original was paid. Refuses to run when the target year already holds
// budgeted expenses, so a hand-edited budget is never silently rewritten.
func (f *Factory) GenerateBudget(ctx context.Context, buildingID apportion.BuildingID, fromYear int) ([]budget.BudgetedExpense, error) {
	targetYear := fromYear + 1

	existing, err := f.store.ListBudgetedExpenses(ctx, buildingID, targetYear)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, &apportion.ValidationError{
			Field:   "year",
			Message: fmt.Sprintf("budget for %d already has %d entries", targetYear, len(existing)),
		}
	}

	actuals, err := f.store.ListExpensesForYear(ctx, buildingID, fromYear)
	if err != nil {
		return nil, err
	}
	if len(actuals) == 0 {
		return nil, &apportion.ValidationError{
			Field:   "year",
			Message: fmt.Sprintf("no realized expenses in %d to project from", fromYear),
		}
	}

	out := make([]budget.BudgetedExpense, 0, len(actuals))
	for _, e := range actuals {
		month := int(e.Date.Month())
		be := budget.BudgetedExpense{
			BuildingID:  buildingID,
			Description: e.Description,
			Amount:      e.Amount,
			Year:        targetYear,
			Schedule:    budget.Schedule{Month: &month},
			Table:       e.Table,
			Rule:        e.Rule,
			Notes:       fmt.Sprintf("projected from %d actuals", fromYear),
		}
		saved, err := f.store.SaveBudgetedExpense(ctx, be)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	return out, nil
}
