/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY ON THE WIRE:
  All money amounts are fixed two-decimal strings ("600.00"), never JSON
  numbers. Clients echo them back verbatim; the handlers parse them into
  decimals. This keeps float64 out of the entire money path.

SEE ALSO:
  - handlers.go: Uses these types
  - apportion/types.go: Money and rule definitions
*/
package api

import (
	"time"

	"github.com/atrio/condo-engine/apportion"
	"github.com/atrio/condo-engine/budget"
)

// =============================================================================
// BUILDINGS AND PERSONS
// =============================================================================

// BuildingDTO represents a building in API responses.
type BuildingDTO struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Units   int    `json:"units"`
}

// SaveBuildingRequest creates or updates a building.
type SaveBuildingRequest struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Units   int    `json:"units"`
}

// PersonDTO represents a resident in API responses.
type PersonDTO struct {
	ID         string `json:"id"`
	BuildingID string `json:"building_id"`
	UnitID     int    `json:"unit_id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role"`
}

// SavePersonRequest creates or updates a resident.
type SavePersonRequest struct {
	UnitID    int    `json:"unit_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Role      string `json:"role"`
}

// =============================================================================
// SHARE TABLES
// =============================================================================

// ShareTableDTO represents one table's weights plus its validity state.
type ShareTableDTO struct {
	Table        string      `json:"table"`
	BuildingID   string      `json:"building_id"`
	Weights      map[int]int `json:"weights"`
	Total        int         `json:"total"`
	Valid        bool        `json:"valid"`
	MissingUnits []int       `json:"missing_units,omitempty"`
}

// SaveShareTableRequest replaces one table's full weight map.
type SaveShareTableRequest struct {
	Weights map[int]int `json:"weights"`
}

// CopyShareTableRequest copies one table's weights onto another.
type CopyShareTableRequest struct {
	Target string `json:"target"`
}

// TableValidationDTO is one line of the all-tables validation report.
type TableValidationDTO struct {
	Table        string `json:"table"`
	Total        int    `json:"total"`
	Valid        bool   `json:"valid"`
	MissingUnits []int  `json:"missing_units,omitempty"`
}

// =============================================================================
// EXPENSES
// =============================================================================

// RuleDTO represents a cost-sharing rule on the wire.
type RuleDTO struct {
	Mode      string `json:"mode"`
	OwnerPct  int    `json:"owner_pct,omitempty"`
	TenantPct int    `json:"tenant_pct,omitempty"`
	// Balanced is false when a custom pair does not sum to 100. The rule is
	// still applied as written; this is a warning flag, not an error.
	Balanced bool `json:"balanced"`
}

// ExpenseDTO represents a realized expense in API responses.
type ExpenseDTO struct {
	ID          string  `json:"id"`
	BuildingID  string  `json:"building_id"`
	Description string  `json:"description"`
	Amount      string  `json:"amount"`
	Date        string  `json:"date"`
	Table       string  `json:"table"`
	Rule        RuleDTO `json:"rule"`
}

// SaveExpenseRequest creates or updates a realized expense.
type SaveExpenseRequest struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Table       string `json:"table"`
	Mode        string `json:"mode"`
	OwnerPct    int    `json:"owner_pct,omitempty"`
	TenantPct   int    `json:"tenant_pct,omitempty"`
}

// =============================================================================
// BUDGETS
// =============================================================================

// BudgetDTO represents an annual budget with derived totals.
type BudgetDTO struct {
	ID         string `json:"id"`
	BuildingID string `json:"building_id"`
	Year       int    `json:"year"`
	Budgeted   string `json:"budgeted"`
	Realized   string `json:"realized"`
	Difference string `json:"difference"`
	Notes      string `json:"notes,omitempty"`
}

// BudgetedExpenseDTO represents a budgeted expense in API responses.
type BudgetedExpenseDTO struct {
	ID            string  `json:"id"`
	BudgetID      string  `json:"budget_id"`
	BuildingID    string  `json:"building_id"`
	Description   string  `json:"description"`
	Amount        string  `json:"amount"`
	Year          int     `json:"year"`
	ExpectedMonth *int    `json:"expected_month,omitempty"`
	ExpectedDate  *string `json:"expected_date,omitempty"`
	Table         string  `json:"table"`
	Rule          RuleDTO `json:"rule"`
	Notes         string  `json:"notes,omitempty"`
}

// SaveBudgetedExpenseRequest creates or updates a budgeted expense.
// ExpectedMonth and ExpectedDate are mutually exclusive; both absent means
// the expense is unscheduled within its year.
type SaveBudgetedExpenseRequest struct {
	Description   string  `json:"description"`
	Amount        string  `json:"amount"`
	Year          int     `json:"year"`
	ExpectedMonth *int    `json:"expected_month,omitempty"`
	ExpectedDate  *string `json:"expected_date,omitempty"`
	Table         string  `json:"table"`
	Mode          string  `json:"mode"`
	OwnerPct      int     `json:"owner_pct,omitempty"`
	TenantPct     int     `json:"tenant_pct,omitempty"`
	Notes         string  `json:"notes,omitempty"`
}

// =============================================================================
// COMPUTATION RESULTS
// =============================================================================

// ApportionmentDTO is the flat per-person view of one run.
type ApportionmentDTO struct {
	BuildingID   string            `json:"building_id"`
	Table        *string           `json:"table,omitempty"`
	ExpenseTotal string            `json:"expense_total"`
	Distributed  string            `json:"distributed"`
	Unattributed string            `json:"unattributed"`
	Persons      []PersonShareDTO  `json:"persons"`
	TableTotals  []TableSubtotalDTO `json:"table_totals"`
}

// PersonShareDTO is one person's flat total.
type PersonShareDTO struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	UnitID   int    `json:"unit_id"`
	Total    string `json:"total"`
}

// TableSubtotalDTO is one table's subtotal across all persons.
type TableSubtotalDTO struct {
	Table    string `json:"table"`
	Subtotal string `json:"subtotal"`
}

// DetailedApportionmentDTO nests the full person → table → expense breakdown.
type DetailedApportionmentDTO struct {
	BuildingID   string                  `json:"building_id"`
	Table        *string                 `json:"table,omitempty"`
	ExpenseTotal string                  `json:"expense_total"`
	Distributed  string                  `json:"distributed"`
	Unattributed string                  `json:"unattributed"`
	Persons      []PersonBreakdownDTO    `json:"persons"`
	TableTotals  []TableSubtotalDTO      `json:"table_totals"`
}

// PersonBreakdownDTO is one person's nested breakdown.
type PersonBreakdownDTO struct {
	PersonID string              `json:"person_id"`
	Name     string              `json:"name"`
	Role     string              `json:"role"`
	UnitID   int                 `json:"unit_id"`
	Total    string              `json:"total"`
	Tables   []TableBreakdownDTO `json:"tables"`
}

// TableBreakdownDTO groups one person's expense lines under one table.
type TableBreakdownDTO struct {
	Table    string           `json:"table"`
	Subtotal string           `json:"subtotal"`
	Lines    []ExpenseLineDTO `json:"lines"`
}

// ExpenseLineDTO is one person's share of one expense.
type ExpenseLineDTO struct {
	ExpenseID     string `json:"expense_id"`
	Description   string `json:"description"`
	Date          string `json:"date"`
	ExpenseAmount string `json:"expense_amount"`
	Weight        int    `json:"weight"`
	Owed          string `json:"owed"`
}

// =============================================================================
// YEAR-OVER-YEAR ANALYSIS
// =============================================================================

// RoleSummaryDTO is the subtotal/count/average triple for one role.
type RoleSummaryDTO struct {
	Subtotal string `json:"subtotal"`
	Count    int    `json:"count"`
	Average  string `json:"average"`
}

// AnalysisDTO is the year-over-year reconciliation report.
type AnalysisDTO struct {
	BuildingID    string               `json:"building_id"`
	ReferenceYear int                  `json:"reference_year"`
	TargetYear    int                  `json:"target_year"`
	Source        string               `json:"source"`
	Distributed   string               `json:"distributed"`
	Unattributed  string               `json:"unattributed"`
	Owners        RoleSummaryDTO       `json:"owners"`
	Tenants       RoleSummaryDTO       `json:"tenants"`
	Persons       []PersonBreakdownDTO `json:"persons"`
	Tables        []TableAnalysisDTO   `json:"tables"`
}

// TableAnalysisDTO is one table's subtotal with per-person line items.
type TableAnalysisDTO struct {
	Table    string             `json:"table"`
	Subtotal string             `json:"subtotal"`
	Lines    []AnalysisLineDTO  `json:"lines"`
}

// AnalysisLineDTO is one person's share within a table analysis.
type AnalysisLineDTO struct {
	PersonID string `json:"person_id"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	UnitID   int    `json:"unit_id"`
	Amount   string `json:"amount"`
}

// =============================================================================
// SCENARIOS AND ERRORS
// =============================================================================

// ScenarioDTO describes one loadable demo dataset.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toBuildingDTO(b apportion.Building) BuildingDTO {
	return BuildingDTO{ID: string(b.ID), Name: b.Name, Address: b.Address, Units: b.Units}
}

func toPersonDTO(p apportion.Person) PersonDTO {
	return PersonDTO{
		ID:         string(p.ID),
		BuildingID: string(p.BuildingID),
		UnitID:     p.UnitID,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      p.Email,
		Role:       string(p.Role),
	}
}

func toRuleDTO(r apportion.CostSharingRule) RuleDTO {
	return RuleDTO{
		Mode:      string(r.Mode),
		OwnerPct:  r.OwnerPct,
		TenantPct: r.TenantPct,
		Balanced:  r.Balanced(),
	}
}

func toExpenseDTO(e apportion.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          string(e.ID),
		BuildingID:  string(e.BuildingID),
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		Date:        e.Date.Format("2006-01-02"),
		Table:       string(e.Table),
		Rule:        toRuleDTO(e.Rule),
	}
}

func toBudgetDTO(b budget.AnnualBudget) BudgetDTO {
	return BudgetDTO{
		ID:         string(b.ID),
		BuildingID: string(b.BuildingID),
		Year:       b.Year,
		Budgeted:   b.Budgeted.StringFixed(2),
		Realized:   b.Realized.StringFixed(2),
		Difference: b.Difference().StringFixed(2),
		Notes:      b.Notes,
	}
}

func toBudgetedExpenseDTO(e budget.BudgetedExpense) BudgetedExpenseDTO {
	dto := BudgetedExpenseDTO{
		ID:          string(e.ID),
		BudgetID:    string(e.BudgetID),
		BuildingID:  string(e.BuildingID),
		Description: e.Description,
		Amount:      e.Amount.StringFixed(2),
		Year:        e.Year,
		Table:       string(e.Table),
		Rule:        toRuleDTO(e.Rule),
		Notes:       e.Notes,
	}
	if e.Schedule.Month != nil {
		m := *e.Schedule.Month
		dto.ExpectedMonth = &m
	}
	if e.Schedule.Date != nil {
		d := e.Schedule.Date.Format("2006-01-02")
		dto.ExpectedDate = &d
	}
	return dto
}

func toTableBreakdownDTOs(tables []apportion.TableBreakdown) []TableBreakdownDTO {
	out := make([]TableBreakdownDTO, 0, len(tables))
	for _, t := range tables {
		lines := make([]ExpenseLineDTO, 0, len(t.Lines))
		for _, l := range t.Lines {
			lines = append(lines, ExpenseLineDTO{
				ExpenseID:     string(l.ExpenseID),
				Description:   l.Description,
				Date:          l.Date.Format("2006-01-02"),
				ExpenseAmount: l.ExpenseAmount.StringFixed(2),
				Weight:        l.Weight,
				Owed:          l.Owed.StringFixed(2),
			})
		}
		out = append(out, TableBreakdownDTO{
			Table:    string(t.Table),
			Subtotal: t.Subtotal.StringFixed(2),
			Lines:    lines,
		})
	}
	return out
}

func toTableSubtotalDTOs(totals []apportion.TableTotal) []TableSubtotalDTO {
	out := make([]TableSubtotalDTO, 0, len(totals))
	for _, t := range totals {
		out = append(out, TableSubtotalDTO{
			Table:    string(t.Table),
			Subtotal: t.Subtotal.StringFixed(2),
		})
	}
	return out
}

func tableFilterString(filter *apportion.TableID) *string {
	if filter == nil {
		return nil
	}
	s := string(*filter)
	return &s
}

func parseDate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}
