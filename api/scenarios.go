/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates a building, its
	residents, share tables, and expenses that demonstrate specific features.

AVAILABLE SCENARIOS:

	two-unit-condo:  Minimal two-unit building, one owner and one tenant
	residence-aurora: Six-unit building with mixed roles across three tables
	budget-cycle:     Budgeted year plus partial actuals for reconciliation

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create the building
 3. Fill share tables
 4. Register residents
 5. Record expenses (and budgeted expenses where relevant)

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "residence-aurora"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: writeJSON/writeError helpers
  - server.go: scenario routes
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/atrio/condo-engine/apportion"
	"github.com/atrio/condo-engine/budget"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "two-unit-condo",
		Name:        "Two-Unit Condo",
		Description: "Minimal building: 600/400 millesimi, one owner, one tenant",
		Category:    "apportionment",
	},
	{
		ID:          "residence-aurora",
		Name:        "Residence Aurora",
		Description: "Six units, mixed roles, expenses across three share tables",
		Category:    "apportionment",
	},
	{
		ID:          "budget-cycle",
		Name:        "Budget Cycle",
		Description: "Budgeted year plus partial next-year actuals for reconciliation",
		Category:    "budget",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "two-unit-condo":
		err = h.loadTwoUnitScenario(ctx)
	case "residence-aurora":
		err = h.loadResidenceAuroraScenario(ctx)
	case "budget-cycle":
		err = h.loadBudgetCycleScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase wipes all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadTwoUnitScenario(ctx context.Context) error {
	b, err := h.Store.SaveBuilding(ctx, apportion.Building{
		Name:    "Condominio Due",
		Address: "Via Roma 2",
		Units:   2,
	})
	if err != nil {
		return err
	}

	if err := h.Store.SaveShareTable(ctx, b.ID, apportion.TableA, map[int]int{1: 600, 2: 400}); err != nil {
		return err
	}

	persons := []apportion.Person{
		{BuildingID: b.ID, UnitID: 1, FirstName: "Mario", LastName: "Rossi", Role: apportion.RoleOwner},
		{BuildingID: b.ID, UnitID: 2, FirstName: "Lucia", LastName: "Bianchi", Role: apportion.RoleTenant},
	}
	for _, p := range persons {
		if _, err := h.Store.SavePerson(ctx, p); err != nil {
			return err
		}
	}

	year := time.Now().Year()
	expenses := []apportion.Expense{
		{
			BuildingID:  b.ID,
			Description: "Roof repair",
			Amount:      apportion.MustMoney("1000.00"),
			Date:        time.Date(year, time.March, 10, 0, 0, 0, 0, time.UTC),
			Table:       apportion.TableA,
			Rule:        apportion.OwnerOnly(),
		},
		{
			BuildingID:  b.ID,
			Description: "Stair cleaning",
			Amount:      apportion.MustMoney("1000.00"),
			Date:        time.Date(year, time.April, 5, 0, 0, 0, 0, time.UTC),
			Table:       apportion.TableA,
			Rule:        apportion.EvenSplit(),
		},
	}
	for _, e := range expenses {
		if _, err := h.Store.SaveExpense(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadResidenceAuroraScenario(ctx context.Context) error {
	b, err := h.Store.SaveBuilding(ctx, apportion.Building{
		Name:    "Residence Aurora",
		Address: "Corso Italia 15",
		Units:   6,
	})
	if err != nil {
		return err
	}

	// Table A: property. Table B: elevator (ground floor units weigh less).
	// Table C: heating.
	tables := map[apportion.TableID]map[int]int{
		apportion.TableA: {1: 180, 2: 180, 3: 160, 4: 160, 5: 160, 6: 160},
		apportion.TableB: {1: 40, 2: 40, 3: 180, 4: 180, 5: 280, 6: 280},
		apportion.TableC: {1: 200, 2: 200, 3: 150, 4: 150, 5: 150, 6: 150},
	}
	for id, weights := range tables {
		if err := h.Store.SaveShareTable(ctx, b.ID, id, weights); err != nil {
			return err
		}
	}

	persons := []apportion.Person{
		{BuildingID: b.ID, UnitID: 1, FirstName: "Anna", LastName: "Conti", Role: apportion.RoleOwnerTenant},
		{BuildingID: b.ID, UnitID: 2, FirstName: "Paolo", LastName: "Greco", Role: apportion.RoleOwner},
		{BuildingID: b.ID, UnitID: 2, FirstName: "Sara", LastName: "Fontana", Role: apportion.RoleTenant},
		{BuildingID: b.ID, UnitID: 3, FirstName: "Marco", LastName: "Villa", Role: apportion.RoleOwnerTenant},
		{BuildingID: b.ID, UnitID: 4, FirstName: "Elena", LastName: "Riva", Role: apportion.RoleOwner},
		{BuildingID: b.ID, UnitID: 5, FirstName: "Giorgio", LastName: "Sala", Role: apportion.RoleOwner},
		{BuildingID: b.ID, UnitID: 5, FirstName: "Chiara", LastName: "Moro", Role: apportion.RoleTenant},
		// Unit 6 is vacant: its quotas surface as unattributed amounts.
	}
	for _, p := range persons {
		if _, err := h.Store.SavePerson(ctx, p); err != nil {
			return err
		}
	}

	year := time.Now().Year()
	expenses := []apportion.Expense{
		{
			BuildingID:  b.ID,
			Description: "Facade restoration",
			Amount:      apportion.MustMoney("12500.00"),
			Date:        time.Date(year, time.February, 20, 0, 0, 0, 0, time.UTC),
			Table:       apportion.TableA,
			Rule:        apportion.OwnerOnly(),
		},
		{
			BuildingID:  b.ID,
			Description: "Elevator maintenance contract",
			Amount:      apportion.MustMoney("1800.00"),
			Date:        time.Date(year, time.January, 8, 0, 0, 0, 0, time.UTC),
			Table:       apportion.TableB,
			Rule:        apportion.TenantOnly(),
		},
		{
			BuildingID:  b.ID,
			Description: "Elevator motor replacement",
			Amount:      apportion.MustMoney("4200.00"),
			Date:        time.Date(year, time.June, 17, 0, 0, 0, 0, time.UTC),
			Table:       apportion.TableB,
			Rule:        apportion.OwnerOnly(),
		},
		{
			BuildingID:  b.ID,
			Description: "Heating season fuel",
			Amount:      apportion.MustMoney("6300.00"),
			Date:        time.Date(year, time.November, 2, 0, 0, 0, 0, time.UTC),
			Table:       apportion.TableC,
			Rule:        apportion.TenantOnly(),
		},
		{
			BuildingID:  b.ID,
			Description: "Boiler overhaul",
			Amount:      apportion.MustMoney("2400.00"),
			Date:        time.Date(year, time.September, 29, 0, 0, 0, 0, time.UTC),
			Table:       apportion.TableC,
			Rule:        apportion.Custom(70, 30),
		},
	}
	for _, e := range expenses {
		if _, err := h.Store.SaveExpense(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadBudgetCycleScenario(ctx context.Context) error {
	b, err := h.Store.SaveBuilding(ctx, apportion.Building{
		Name:    "Palazzina Verdi",
		Address: "Via Verdi 7",
		Units:   4,
	})
	if err != nil {
		return err
	}

	if err := h.Store.SaveShareTable(ctx, b.ID, apportion.TableA,
		map[int]int{1: 300, 2: 300, 3: 200, 4: 200}); err != nil {
		return err
	}

	persons := []apportion.Person{
		{BuildingID: b.ID, UnitID: 1, FirstName: "Franca", LastName: "Neri", Role: apportion.RoleOwnerTenant},
		{BuildingID: b.ID, UnitID: 2, FirstName: "Luigi", LastName: "Ferri", Role: apportion.RoleOwner},
		{BuildingID: b.ID, UnitID: 3, FirstName: "Carla", LastName: "Galli", Role: apportion.RoleOwnerTenant},
		{BuildingID: b.ID, UnitID: 4, FirstName: "Nino", LastName: "Barbieri", Role: apportion.RoleOwnerTenant},
	}
	for _, p := range persons {
		if _, err := h.Store.SavePerson(ctx, p); err != nil {
			return err
		}
	}

	// Reference year: fully budgeted. Target year: only the first actuals
	// have landed, so year-over-year analysis flips from projected to actual.
	refYear := time.Now().Year()
	march, july := 3, 7
	budgeted := []budget.BudgetedExpense{
		{
			BuildingID:  b.ID,
			Description: "Garden maintenance",
			Amount:      apportion.MustMoney("900.00"),
			Year:        refYear,
			Schedule:    budget.Schedule{Month: &march},
			Table:       apportion.TableA,
			Rule:        apportion.EvenSplit(),
		},
		{
			BuildingID:  b.ID,
			Description: "Insurance premium",
			Amount:      apportion.MustMoney("1500.00"),
			Year:        refYear,
			Schedule:    budget.Schedule{Month: &july},
			Table:       apportion.TableA,
			Rule:        apportion.OwnerOnly(),
		},
		{
			BuildingID:  b.ID,
			Description: "Reserve fund top-up",
			Amount:      apportion.MustMoney("2000.00"),
			Year:        refYear,
			Table:       apportion.TableA,
			Rule:        apportion.OwnerOnly(),
		},
	}
	for _, e := range budgeted {
		if _, err := h.Store.SaveBudgetedExpense(ctx, e); err != nil {
			return err
		}
	}

	if _, err := h.Store.SaveExpense(ctx, apportion.Expense{
		BuildingID:  b.ID,
		Description: "Garden maintenance",
		Amount:      apportion.MustMoney("940.00"),
		Date:        time.Date(refYear+1, time.March, 12, 0, 0, 0, 0, time.UTC),
		Table:       apportion.TableA,
		Rule:        apportion.EvenSplit(),
	}); err != nil {
		return err
	}
	return nil
}
