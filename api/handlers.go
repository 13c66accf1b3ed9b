/*
handlers.go - HTTP API handlers for the condominium administration system

PURPOSE:
  Exposes the apportionment engine and budget workflow via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Buildings:
    GET    /api/buildings                  List buildings
    POST   /api/buildings                  Create building
    GET    /api/buildings/{id}             Get building
    PUT    /api/buildings/{id}             Update building
    DELETE /api/buildings/{id}             Delete building with all its data
    GET    /api/buildings/{id}/units       List implicit unit ids (1..n)

  Persons:
    GET    /api/buildings/{id}/persons     List residents
    POST   /api/buildings/{id}/persons     Create resident
    PUT    /api/persons/{id}               Update resident
    DELETE /api/persons/{id}               Delete resident

  Share tables:
    GET    /api/buildings/{id}/share-tables             All ten tables
    GET    /api/buildings/{id}/share-tables/validation  Per-table totals check
    GET    /api/buildings/{id}/share-tables/{table}     One table
    PUT    /api/buildings/{id}/share-tables/{table}     Replace weights
    POST   /api/buildings/{id}/share-tables/{table}/copy Copy onto another table

  Expenses:
    GET    /api/buildings/{id}/expenses?table=X  List (optional table filter)
    POST   /api/buildings/{id}/expenses          Create expense
    PUT    /api/expenses/{id}                    Update expense
    DELETE /api/expenses/{id}                    Delete expense

  Budgets:
    GET    /api/buildings/{id}/budgets                    List annual budgets
    POST   /api/buildings/{id}/budgets/{year}/generate    Seed year+1 from year's actuals
    GET    /api/buildings/{id}/budgeted-expenses?year=    List budgeted expenses
    POST   /api/buildings/{id}/budgeted-expenses          Create budgeted expense
    PUT    /api/budgeted-expenses/{id}                    Update budgeted expense
    DELETE /api/budgeted-expenses/{id}                    Delete budgeted expense

  Computation:
    GET /api/buildings/{id}/apportionment?table=X           Flat totals
    GET /api/buildings/{id}/apportionment/detailed?table=X  Nested breakdown
    GET /api/buildings/{id}/budget-calculation/{year}       Apportion a year's budget
    GET /api/buildings/{id}/analysis/year-over-year?reference_year=YYYY

  Scenarios:
    GET  /api/scenarios        List demo scenarios
    POST /api/scenarios/load   Load a demo scenario
    POST /api/scenarios/reset  Wipe the database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 422: Computation refused (invalid share table, bad assignment)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atrio/condo-engine/apportion"
	"github.com/atrio/condo-engine/budget"
	"github.com/atrio/condo-engine/factory"
	"github.com/atrio/condo-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Factory *factory.Factory

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler over the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:   store,
		Factory: factory.New(store),
	}
}

// =============================================================================
// BUILDING HANDLERS
// =============================================================================

// ListBuildings returns all buildings.
func (h *Handler) ListBuildings(w http.ResponseWriter, r *http.Request) {
	buildings, err := h.Store.ListBuildings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list buildings", err)
		return
	}

	dtos := make([]BuildingDTO, len(buildings))
	for i, b := range buildings {
		dtos[i] = toBuildingDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetBuilding returns a single building.
func (h *Handler) GetBuilding(w http.ResponseWriter, r *http.Request) {
	id := apportion.BuildingID(chi.URLParam(r, "id"))

	b, err := h.Store.GetBuilding(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get building", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Building not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBuildingDTO(*b))
}

// CreateBuilding creates a new building.
func (h *Handler) CreateBuilding(w http.ResponseWriter, r *http.Request) {
	var req SaveBuildingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saved, err := h.Store.SaveBuilding(r.Context(), apportion.Building{
		Name:    req.Name,
		Address: req.Address,
		Units:   req.Units,
	})
	if err != nil {
		writeDomainError(w, "Failed to create building", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBuildingDTO(saved))
}

// UpdateBuilding updates a building's descriptive fields. The unit count is
// immutable after creation; the store rejects attempts to change it.
func (h *Handler) UpdateBuilding(w http.ResponseWriter, r *http.Request) {
	id := apportion.BuildingID(chi.URLParam(r, "id"))

	var req SaveBuildingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saved, err := h.Store.SaveBuilding(r.Context(), apportion.Building{
		ID:      id,
		Name:    req.Name,
		Address: req.Address,
		Units:   req.Units,
	})
	if err != nil {
		writeDomainError(w, "Failed to update building", err)
		return
	}
	writeJSON(w, http.StatusOK, toBuildingDTO(saved))
}

// DeleteBuilding removes a building and all of its dependent records.
func (h *Handler) DeleteBuilding(w http.ResponseWriter, r *http.Request) {
	id := apportion.BuildingID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteBuilding(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete building", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// ListUnits returns the building's implicit unit id range 1..n.
func (h *Handler) ListUnits(w http.ResponseWriter, r *http.Request) {
	id := apportion.BuildingID(chi.URLParam(r, "id"))

	b, err := h.Store.GetBuilding(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get building", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "Building not found", nil)
		return
	}

	units := make([]int, b.Units)
	for i := range units {
		units[i] = i + 1
	}
	writeJSON(w, http.StatusOK, map[string]any{"building_id": string(b.ID), "units": units})
}

// =============================================================================
// PERSON HANDLERS
// =============================================================================

// ListPersons returns a building's residents ordered by unit then name.
func (h *Handler) ListPersons(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	persons, err := h.Store.ListPersons(r.Context(), buildingID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list persons", err)
		return
	}

	dtos := make([]PersonDTO, len(persons))
	for i, p := range persons {
		dtos[i] = toPersonDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePerson registers a resident in a building.
func (h *Handler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	var req SavePersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saved, err := h.Store.SavePerson(r.Context(), apportion.Person{
		BuildingID: buildingID,
		UnitID:     req.UnitID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Role:       apportion.Role(req.Role),
	})
	if err != nil {
		writeDomainError(w, "Failed to create person", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPersonDTO(saved))
}

// UpdatePerson updates a resident's assignment or details.
func (h *Handler) UpdatePerson(w http.ResponseWriter, r *http.Request) {
	id := apportion.PersonID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetPerson(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get person", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Person not found", nil)
		return
	}

	var req SavePersonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	saved, err := h.Store.SavePerson(r.Context(), apportion.Person{
		ID:         id,
		BuildingID: existing.BuildingID,
		UnitID:     req.UnitID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Email:      req.Email,
		Role:       apportion.Role(req.Role),
	})
	if err != nil {
		writeDomainError(w, "Failed to update person", err)
		return
	}
	writeJSON(w, http.StatusOK, toPersonDTO(saved))
}

// DeletePerson removes a resident.
func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	id := apportion.PersonID(chi.URLParam(r, "id"))

	if err := h.Store.DeletePerson(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete person", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

// =============================================================================
// SHARE TABLE HANDLERS
// =============================================================================

// ListShareTables returns all ten tables of a building with validity state.
func (h *Handler) ListShareTables(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	tables, err := h.Store.GetShareTables(r.Context(), buildingID)
	if err != nil {
		writeDomainError(w, "Failed to load share tables", err)
		return
	}

	dtos := make([]ShareTableDTO, 0, len(apportion.TableIDs))
	for _, id := range apportion.TableIDs {
		dtos = append(dtos, toShareTableDTO(tables[id]))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetShareTable returns one table's weights.
func (h *Handler) GetShareTable(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))
	tableID := apportion.TableID(chi.URLParam(r, "table"))

	if !apportion.ValidTableID(tableID) {
		writeError(w, http.StatusBadRequest, "Unknown share table "+string(tableID), nil)
		return
	}

	table, err := h.Store.GetShareTable(r.Context(), buildingID, tableID)
	if err != nil {
		writeDomainError(w, "Failed to load share table", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareTableDTO(table))
}

// SaveShareTable replaces one table's full weight map. A submission whose
// total is not exactly 1000, or that leaves units uncovered, is rejected
// wholesale and the stored weights stay untouched.
func (h *Handler) SaveShareTable(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))
	tableID := apportion.TableID(chi.URLParam(r, "table"))

	if !apportion.ValidTableID(tableID) {
		writeError(w, http.StatusBadRequest, "Unknown share table "+string(tableID), nil)
		return
	}

	var req SaveShareTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.Store.SaveShareTable(r.Context(), buildingID, tableID, req.Weights); err != nil {
		writeDomainError(w, "Failed to save share table", err)
		return
	}

	table, err := h.Store.GetShareTable(r.Context(), buildingID, tableID)
	if err != nil {
		writeDomainError(w, "Failed to reload share table", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareTableDTO(table))
}

// CopyShareTable copies one table's weights wholesale onto another table of
// the same building.
func (h *Handler) CopyShareTable(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))
	src := apportion.TableID(chi.URLParam(r, "table"))

	var req CopyShareTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	dst := apportion.TableID(req.Target)

	if !apportion.ValidTableID(src) || !apportion.ValidTableID(dst) {
		writeError(w, http.StatusBadRequest, "Unknown share table", nil)
		return
	}

	if err := h.Store.CopyShareTable(r.Context(), buildingID, src, dst); err != nil {
		writeDomainError(w, "Failed to copy share table", err)
		return
	}

	table, err := h.Store.GetShareTable(r.Context(), buildingID, dst)
	if err != nil {
		writeDomainError(w, "Failed to reload share table", err)
		return
	}
	writeJSON(w, http.StatusOK, toShareTableDTO(table))
}

// ValidateShareTables reports every table's total and validity in one pass,
// so an administrator can see at a glance which tables still need work.
func (h *Handler) ValidateShareTables(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	tables, err := h.Store.GetShareTables(r.Context(), buildingID)
	if err != nil {
		writeDomainError(w, "Failed to load share tables", err)
		return
	}

	allValid := true
	report := make([]TableValidationDTO, 0, len(apportion.TableIDs))
	for _, id := range apportion.TableIDs {
		t := tables[id]
		line := TableValidationDTO{
			Table: string(id),
			Total: t.TotalWeight(),
			Valid: t.IsValid(),
		}
		if err := t.Validate(); err != nil {
			var ite *apportion.InvalidTableError
			if errors.As(err, &ite) {
				line.MissingUnits = ite.MissingUnits
			}
			allValid = false
		}
		report = append(report, line)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"building_id": string(buildingID),
		"all_valid":   allValid,
		"tables":      report,
	})
}

func toShareTableDTO(t *apportion.ShareTable) ShareTableDTO {
	dto := ShareTableDTO{
		Table:      string(t.ID),
		BuildingID: string(t.BuildingID),
		Weights:    t.Weights(),
		Total:      t.TotalWeight(),
		Valid:      t.IsValid(),
	}
	if err := t.Validate(); err != nil {
		var ite *apportion.InvalidTableError
		if errors.As(err, &ite) {
			dto.MissingUnits = ite.MissingUnits
		}
	}
	return dto
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// ListExpenses returns a building's realized expenses, optionally filtered
// to one share table via ?table=X.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	filter, ok := tableFilterFromQuery(w, r)
	if !ok {
		return
	}

	expenses, err := h.Store.ListExpenses(r.Context(), buildingID, filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list expenses", err)
		return
	}

	dtos := make([]ExpenseDTO, len(expenses))
	for i, e := range expenses {
		dtos[i] = toExpenseDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateExpense records a realized expense.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	e, ok := decodeExpense(w, r, buildingID, "")
	if !ok {
		return
	}

	saved, err := h.Store.SaveExpense(r.Context(), e)
	if err != nil {
		writeDomainError(w, "Failed to create expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseDTO(saved))
}

// UpdateExpense rewrites an existing expense.
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := apportion.ExpenseID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetExpense(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get expense", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Expense not found", nil)
		return
	}

	e, ok := decodeExpense(w, r, existing.BuildingID, id)
	if !ok {
		return
	}

	saved, err := h.Store.SaveExpense(r.Context(), e)
	if err != nil {
		writeDomainError(w, "Failed to update expense", err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseDTO(saved))
}

// DeleteExpense removes an expense; it no longer participates in any future
// apportionment run.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := apportion.ExpenseID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteExpense(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete expense", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

func decodeExpense(w http.ResponseWriter, r *http.Request, buildingID apportion.BuildingID, id apportion.ExpenseID) (apportion.Expense, bool) {
	var e apportion.Expense

	var req SaveExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return e, false
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount (use a decimal string like \"100.00\")", err)
		return e, false
	}
	date, err := parseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return e, false
	}

	e = apportion.Expense{
		ID:          id,
		BuildingID:  buildingID,
		Description: req.Description,
		Amount:      amount,
		Date:        date,
		Table:       apportion.TableID(req.Table),
		Rule: apportion.CostSharingRule{
			Mode:      apportion.SplitMode(req.Mode),
			OwnerPct:  req.OwnerPct,
			TenantPct: req.TenantPct,
		},
	}
	return e, true
}

// =============================================================================
// BUDGET HANDLERS
// =============================================================================

// ListBudgets returns a building's annual budgets with derived totals.
func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	budgets, err := h.Store.ListBudgets(r.Context(), buildingID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list budgets", err)
		return
	}

	dtos := make([]BudgetDTO, len(budgets))
	for i, b := range budgets {
		dtos[i] = toBudgetDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GenerateBudget seeds year+1's budget from the given year's realized
// expenses. POST /api/buildings/{id}/budgets/{year}/generate
func (h *Handler) GenerateBudget(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	created, err := h.Factory.GenerateBudget(r.Context(), buildingID, year)
	if err != nil {
		writeDomainError(w, "Failed to generate budget", err)
		return
	}

	dtos := make([]BudgetedExpenseDTO, len(created))
	for i, e := range created {
		dtos[i] = toBudgetedExpenseDTO(e)
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"from_year":   year,
		"target_year": year + 1,
		"expenses":    dtos,
	})
}

// ListBudgetedExpenses returns a building's budgeted expenses for ?year=.
func (h *Handler) ListBudgetedExpenses(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	year, ok := yearFromQuery(w, r, "year")
	if !ok {
		return
	}

	items, err := h.Store.ListBudgetedExpenses(r.Context(), buildingID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list budgeted expenses", err)
		return
	}

	dtos := make([]BudgetedExpenseDTO, len(items))
	for i, e := range items {
		dtos[i] = toBudgetedExpenseDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateBudgetedExpense records a planned expense for a target year.
func (h *Handler) CreateBudgetedExpense(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	e, ok := decodeBudgetedExpense(w, r, buildingID, "")
	if !ok {
		return
	}

	saved, err := h.Store.SaveBudgetedExpense(r.Context(), e)
	if err != nil {
		writeDomainError(w, "Failed to create budgeted expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, toBudgetedExpenseDTO(saved))
}

// UpdateBudgetedExpense rewrites a budgeted expense; the owning budget's
// total follows.
func (h *Handler) UpdateBudgetedExpense(w http.ResponseWriter, r *http.Request) {
	id := budget.BudgetedExpenseID(chi.URLParam(r, "id"))

	existing, err := h.Store.GetBudgetedExpense(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get budgeted expense", err)
		return
	}
	if existing == nil {
		writeError(w, http.StatusNotFound, "Budgeted expense not found", nil)
		return
	}

	e, ok := decodeBudgetedExpense(w, r, existing.BuildingID, id)
	if !ok {
		return
	}

	saved, err := h.Store.SaveBudgetedExpense(r.Context(), e)
	if err != nil {
		writeDomainError(w, "Failed to update budgeted expense", err)
		return
	}
	writeJSON(w, http.StatusOK, toBudgetedExpenseDTO(saved))
}

// DeleteBudgetedExpense removes a budgeted expense and re-syncs its budget.
func (h *Handler) DeleteBudgetedExpense(w http.ResponseWriter, r *http.Request) {
	id := budget.BudgetedExpenseID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteBudgetedExpense(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete budgeted expense", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": string(id)})
}

func decodeBudgetedExpense(w http.ResponseWriter, r *http.Request, buildingID apportion.BuildingID, id budget.BudgetedExpenseID) (budget.BudgetedExpense, bool) {
	var e budget.BudgetedExpense

	var req SaveBudgetedExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return e, false
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount (use a decimal string like \"100.00\")", err)
		return e, false
	}

	var schedule budget.Schedule
	if req.ExpectedMonth != nil {
		m := *req.ExpectedMonth
		schedule.Month = &m
	}
	if req.ExpectedDate != nil {
		d, err := parseDate(*req.ExpectedDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid expected_date format (use YYYY-MM-DD)", err)
			return e, false
		}
		schedule.Date = &d
	}

	e = budget.BudgetedExpense{
		ID:          id,
		BuildingID:  buildingID,
		Description: req.Description,
		Amount:      amount,
		Year:        req.Year,
		Schedule:    schedule,
		Table:       apportion.TableID(req.Table),
		Rule: apportion.CostSharingRule{
			Mode:      apportion.SplitMode(req.Mode),
			OwnerPct:  req.OwnerPct,
			TenantPct: req.TenantPct,
		},
		Notes: req.Notes,
	}
	return e, true
}

// =============================================================================
// COMPUTATION HANDLERS
// =============================================================================

// GetApportionment runs the engine over all realized expenses and returns the
// flat per-person totals. ?table=X restricts the run to one share table.
func (h *Handler) GetApportionment(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	filter, ok := tableFilterFromQuery(w, r)
	if !ok {
		return
	}

	result, ok := h.runApportionment(w, r, buildingID, filter)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toFlatDTO(buildingID, result))
}

// GetDetailedApportionment returns the nested person → table → expense view.
func (h *Handler) GetDetailedApportionment(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	filter, ok := tableFilterFromQuery(w, r)
	if !ok {
		return
	}

	result, ok := h.runApportionment(w, r, buildingID, filter)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toDetailedDTO(buildingID, result))
}

func (h *Handler) runApportionment(w http.ResponseWriter, r *http.Request, buildingID apportion.BuildingID, filter *apportion.TableID) (*apportion.Result, bool) {
	snap, err := h.Factory.Snapshot(r.Context(), buildingID, filter)
	if err != nil {
		writeDomainError(w, "Failed to load building data", err)
		return nil, false
	}

	result, err := apportion.Apportion(snap, filter)
	if err != nil {
		writeDomainError(w, "Apportionment refused", err)
		return nil, false
	}
	return result, true
}

// GetBudgetCalculation apportions a year's budgeted expenses as if they were
// realized, giving each resident their projected annual quota.
// GET /api/buildings/{id}/budget-calculation/{year}
func (h *Handler) GetBudgetCalculation(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}

	snap, err := h.Factory.Snapshot(r.Context(), buildingID, nil)
	if err != nil {
		writeDomainError(w, "Failed to load building data", err)
		return
	}

	budgeted, err := h.Store.ListBudgetedExpenses(r.Context(), buildingID, year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list budgeted expenses", err)
		return
	}
	snap.Expenses = budget.AsExpenses(budgeted)

	result, err := apportion.Apportion(snap, nil)
	if err != nil {
		writeDomainError(w, "Budget calculation refused", err)
		return
	}

	dto := toDetailedDTO(buildingID, result)
	writeJSON(w, http.StatusOK, map[string]any{
		"year":   year,
		"result": dto,
	})
}

// GetYearOverYear runs the reconciliation analysis for ?reference_year=YYYY.
func (h *Handler) GetYearOverYear(w http.ResponseWriter, r *http.Request) {
	buildingID := apportion.BuildingID(chi.URLParam(r, "id"))

	year, ok := yearFromQuery(w, r, "reference_year")
	if !ok {
		return
	}

	in, err := h.Factory.AnalyzerInput(r.Context(), buildingID, year)
	if err != nil {
		writeDomainError(w, "Failed to load building data", err)
		return
	}

	report, err := budget.Analyze(in)
	if err != nil {
		writeDomainError(w, "Analysis refused", err)
		return
	}
	writeJSON(w, http.StatusOK, toAnalysisDTO(buildingID, report))
}

func toFlatDTO(buildingID apportion.BuildingID, result *apportion.Result) ApportionmentDTO {
	persons := make([]PersonShareDTO, 0, len(result.Persons))
	for _, p := range result.Persons {
		persons = append(persons, PersonShareDTO{
			PersonID: string(p.PersonID),
			Name:     p.Name,
			Role:     string(p.Role),
			UnitID:   p.UnitID,
			Total:    p.Total.StringFixed(2),
		})
	}
	return ApportionmentDTO{
		BuildingID:   string(buildingID),
		Table:        tableFilterString(result.Filter),
		ExpenseTotal: result.ExpenseTotal.StringFixed(2),
		Distributed:  result.Distributed.StringFixed(2),
		Unattributed: result.Unattributed.StringFixed(2),
		Persons:      persons,
		TableTotals:  toTableSubtotalDTOs(result.TableTotals),
	}
}

func toDetailedDTO(buildingID apportion.BuildingID, result *apportion.Result) DetailedApportionmentDTO {
	persons := make([]PersonBreakdownDTO, 0, len(result.Persons))
	for _, p := range result.Persons {
		persons = append(persons, PersonBreakdownDTO{
			PersonID: string(p.PersonID),
			Name:     p.Name,
			Role:     string(p.Role),
			UnitID:   p.UnitID,
			Total:    p.Total.StringFixed(2),
			Tables:   toTableBreakdownDTOs(p.Tables),
		})
	}
	return DetailedApportionmentDTO{
		BuildingID:   string(buildingID),
		Table:        tableFilterString(result.Filter),
		ExpenseTotal: result.ExpenseTotal.StringFixed(2),
		Distributed:  result.Distributed.StringFixed(2),
		Unattributed: result.Unattributed.StringFixed(2),
		Persons:      persons,
		TableTotals:  toTableSubtotalDTOs(result.TableTotals),
	}
}

func toAnalysisDTO(buildingID apportion.BuildingID, report *budget.Report) AnalysisDTO {
	persons := make([]PersonBreakdownDTO, 0, len(report.Persons))
	for _, p := range report.Persons {
		persons = append(persons, PersonBreakdownDTO{
			PersonID: string(p.PersonID),
			Name:     p.Name,
			Role:     string(p.Role),
			UnitID:   p.UnitID,
			Total:    p.Total.StringFixed(2),
			Tables:   toTableBreakdownDTOs(p.Tables),
		})
	}

	tables := make([]TableAnalysisDTO, 0, len(report.Tables))
	for _, t := range report.Tables {
		lines := make([]AnalysisLineDTO, 0, len(t.Lines))
		for _, l := range t.Lines {
			lines = append(lines, AnalysisLineDTO{
				PersonID: string(l.PersonID),
				Name:     l.Name,
				Role:     string(l.Role),
				UnitID:   l.UnitID,
				Amount:   l.Amount.StringFixed(2),
			})
		}
		tables = append(tables, TableAnalysisDTO{
			Table:    string(t.Table),
			Subtotal: t.Subtotal.StringFixed(2),
			Lines:    lines,
		})
	}

	return AnalysisDTO{
		BuildingID:    string(buildingID),
		ReferenceYear: report.ReferenceYear,
		TargetYear:    report.TargetYear,
		Source:        string(report.Source),
		Distributed:   report.Distributed.StringFixed(2),
		Unattributed:  report.Unattributed.StringFixed(2),
		Owners:        toRoleSummaryDTO(report.Owners),
		Tenants:       toRoleSummaryDTO(report.Tenants),
		Persons:       persons,
		Tables:        tables,
	}
}

func toRoleSummaryDTO(s budget.RoleSummary) RoleSummaryDTO {
	return RoleSummaryDTO{
		Subtotal: s.Subtotal.StringFixed(2),
		Count:    s.Count,
		Average:  s.Average.StringFixed(2),
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func tableFilterFromQuery(w http.ResponseWriter, r *http.Request) (*apportion.TableID, bool) {
	raw := r.URL.Query().Get("table")
	if raw == "" {
		return nil, true
	}
	id := apportion.TableID(raw)
	if !apportion.ValidTableID(id) {
		writeError(w, http.StatusBadRequest, "Unknown share table "+raw, nil)
		return nil, false
	}
	return &id, true
}

func yearFromQuery(w http.ResponseWriter, r *http.Request, param string) (int, bool) {
	raw := r.URL.Query().Get(param)
	year, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid or missing "+param, err)
		return 0, false
	}
	return year, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps domain errors to HTTP statuses: missing records to
// 404, computation refusals to 422, other client errors to 400, the rest
// to 500.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case apportion.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case apportion.IsPrecondition(err):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	case apportion.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
