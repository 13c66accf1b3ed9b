/*
expenses.go - Expense, budget and budgeted-expense persistence

PURPOSE:
  CRUD over realized expenses, annual budgets and budgeted expenses.
  Realized and budgeted records never mutate each other: the only shared
  ground is the annual budget row, whose budgeted total is recomputed from
  its budgeted expenses inside the writing transaction and whose realized
  total is derived from the expense table at read time.
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atrio/condo-engine/apportion"
	"github.com/atrio/condo-engine/budget"
)

const dateLayout = "2006-01-02"

// =============================================================================
// EXPENSES
// =============================================================================

// SaveExpense inserts or updates a realized expense, minting an id when
// absent. The record is validated before any write.
func (s *Store) SaveExpense(ctx context.Context, e apportion.Expense) (apportion.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = apportion.ExpenseID(uuid.NewString())
	}
	if e.Date.IsZero() {
		e.Date = time.Now().UTC()
	}

	query := `
		INSERT INTO expenses (id, building_id, description, amount, expense_date,
		                      table_id, rule_mode, owner_pct, tenant_pct, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			expense_date = excluded.expense_date,
			table_id = excluded.table_id,
			rule_mode = excluded.rule_mode,
			owner_pct = excluded.owner_pct,
			tenant_pct = excluded.tenant_pct
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.BuildingID, e.Description, e.Amount.String(), e.Date.Format(dateLayout),
		e.Table, e.Rule.Mode, e.Rule.OwnerPct, e.Rule.TenantPct,
		time.Now().UTC().Format(time.RFC3339),
	)
	return e, err
}

// GetExpense returns an expense, or nil when missing.
func (s *Store) GetExpense(ctx context.Context, id apportion.ExpenseID) (*apportion.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, building_id, description, amount, expense_date, table_id, rule_mode, owner_pct, tenant_pct
		 FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExpenses returns a building's expenses, optionally restricted to one
// share table, ordered by date.
func (s *Store) ListExpenses(ctx context.Context, buildingID apportion.BuildingID, tableFilter *apportion.TableID) ([]apportion.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, building_id, description, amount, expense_date, table_id, rule_mode, owner_pct, tenant_pct
	          FROM expenses WHERE building_id = ?`
	args := []any{buildingID}
	if tableFilter != nil {
		query += ` AND table_id = ?`
		args = append(args, *tableFilter)
	}
	query += ` ORDER BY expense_date, description`

	return s.queryExpenses(ctx, query, args...)
}

// ListExpensesForYear returns a building's expenses dated within a year.
func (s *Store) ListExpensesForYear(ctx context.Context, buildingID apportion.BuildingID, year int) ([]apportion.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, building_id, description, amount, expense_date, table_id, rule_mode, owner_pct, tenant_pct
	          FROM expenses
	          WHERE building_id = ? AND expense_date >= ? AND expense_date <= ?
	          ORDER BY expense_date, description`
	return s.queryExpenses(ctx, query, buildingID,
		fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
}

// DeleteExpense removes an expense permanently; it no longer participates in
// any future apportionment run.
func (s *Store) DeleteExpense(ctx context.Context, id apportion.ExpenseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apportion.ErrExpenseNotFound
	}
	return nil
}

func (s *Store) queryExpenses(ctx context.Context, query string, args ...any) ([]apportion.Expense, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []apportion.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (apportion.Expense, error) {
	var e apportion.Expense
	var amount, date string
	err := row.Scan(&e.ID, &e.BuildingID, &e.Description, &amount, &date,
		&e.Table, &e.Rule.Mode, &e.Rule.OwnerPct, &e.Rule.TenantPct)
	if err != nil {
		return e, err
	}
	e.Amount = parseMoney(amount)
	e.Date, _ = time.Parse(dateLayout, date)
	return e, nil
}

// =============================================================================
// ANNUAL BUDGETS
// =============================================================================

// GetBudget returns the building's budget for a year, or nil when missing.
// The realized total is derived from the expense table.
func (s *Store) GetBudget(ctx context.Context, buildingID apportion.BuildingID, year int) (*budget.AnnualBudget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getBudget(ctx, s.db, buildingID, year)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// sumAmounts totals money amounts stored as decimal TEXT. SQLite would sum
// them as floats, so aggregation happens here.
func (s *Store) sumAmounts(ctx context.Context, db querier, query string, args ...any) (apportion.Money, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return apportion.Money{}, err
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return apportion.Money{}, err
		}
		total = total.Add(parseMoney(amount))
	}
	return apportion.RoundMoney(total), rows.Err()
}

func (s *Store) getBudget(ctx context.Context, db querier, buildingID apportion.BuildingID, year int) (*budget.AnnualBudget, error) {
	var b budget.AnnualBudget
	var budgeted string
	var notes sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, building_id, year, budgeted, notes FROM annual_budgets
		 WHERE building_id = ? AND year = ?`, buildingID, year,
	).Scan(&b.ID, &b.BuildingID, &b.Year, &budgeted, &notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	b.Budgeted = parseMoney(budgeted)
	b.Notes = notes.String

	realized, err := s.sumAmounts(ctx, db,
		`SELECT amount FROM expenses
		 WHERE building_id = ? AND expense_date >= ? AND expense_date <= ?`,
		buildingID, fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year))
	if err != nil {
		return nil, err
	}
	b.Realized = realized
	return &b, nil
}

// ListBudgets returns a building's budgets ordered by year.
func (s *Store) ListBudgets(ctx context.Context, buildingID apportion.BuildingID) ([]budget.AnnualBudget, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT year FROM annual_budgets WHERE building_id = ? ORDER BY year`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]budget.AnnualBudget, 0, len(years))
	for _, y := range years {
		b, err := s.getBudget(ctx, s.db, buildingID, y)
		if err != nil {
			return nil, err
		}
		if b != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

// ensureBudget finds or creates the budget row for a building and year.
func (s *Store) ensureBudget(ctx context.Context, db querier, buildingID apportion.BuildingID, year int, notes string) (budget.BudgetID, error) {
	var id budget.BudgetID
	err := db.QueryRowContext(ctx,
		`SELECT id FROM annual_budgets WHERE building_id = ? AND year = ?`, buildingID, year).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	id = budget.BudgetID(uuid.NewString())
	now := time.Now().UTC().Format(time.RFC3339)
	if notes == "" {
		notes = fmt.Sprintf("Budget %d", year)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO annual_budgets (id, building_id, year, budgeted, notes, created_at, updated_at)
		 VALUES (?, ?, ?, '0', ?, ?, ?)`,
		id, buildingID, year, notes, now, now)
	return id, err
}

// refreshBudgetTotal recomputes a budget's budgeted total from its budgeted
// expenses. Runs inside the caller's transaction.
func (s *Store) refreshBudgetTotal(ctx context.Context, db querier, budgetID budget.BudgetID) error {
	total, err := s.sumAmounts(ctx, db,
		`SELECT amount FROM budgeted_expenses WHERE budget_id = ?`, budgetID)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		`UPDATE annual_budgets SET budgeted = ?, updated_at = ? WHERE id = ?`,
		total.String(), time.Now().UTC().Format(time.RFC3339), budgetID)
	return err
}

// =============================================================================
// BUDGETED EXPENSES
// =============================================================================

// SaveBudgetedExpense inserts or updates a budgeted expense, finding or
// creating the owning annual budget and keeping its total in sync.
// Realized expense records are never touched.
func (s *Store) SaveBudgetedExpense(ctx context.Context, e budget.BudgetedExpense) (budget.BudgetedExpense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := e.Validate(); err != nil {
		return e, err
	}
	if e.ID == "" {
		e.ID = budget.BudgetedExpenseID(uuid.NewString())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return e, err
	}
	defer tx.Rollback()

	budgetID, err := s.ensureBudget(ctx, tx, e.BuildingID, e.Year, "")
	if err != nil {
		return e, err
	}
	e.BudgetID = budgetID

	var month sql.NullInt64
	if e.Schedule.Month != nil {
		month = sql.NullInt64{Int64: int64(*e.Schedule.Month), Valid: true}
	}
	var date sql.NullString
	if e.Schedule.Date != nil {
		date = sql.NullString{String: e.Schedule.Date.Format(dateLayout), Valid: true}
	}

	query := `
		INSERT INTO budgeted_expenses (id, budget_id, building_id, description, amount, year,
		                               expected_month, expected_date, table_id, rule_mode,
		                               owner_pct, tenant_pct, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			amount = excluded.amount,
			expected_month = excluded.expected_month,
			expected_date = excluded.expected_date,
			table_id = excluded.table_id,
			rule_mode = excluded.rule_mode,
			owner_pct = excluded.owner_pct,
			tenant_pct = excluded.tenant_pct,
			notes = excluded.notes
	`
	_, err = tx.ExecContext(ctx, query,
		e.ID, e.BudgetID, e.BuildingID, e.Description, e.Amount.String(), e.Year,
		month, date, e.Table, e.Rule.Mode, e.Rule.OwnerPct, e.Rule.TenantPct,
		nullString(e.Notes), time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return e, err
	}
	if err := s.refreshBudgetTotal(ctx, tx, e.BudgetID); err != nil {
		return e, err
	}
	return e, tx.Commit()
}

// GetBudgetedExpense returns a budgeted expense, or nil when missing.
func (s *Store) GetBudgetedExpense(ctx context.Context, id budget.BudgetedExpenseID) (*budget.BudgetedExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, budget_id, building_id, description, amount, year, expected_month, expected_date,
		        table_id, rule_mode, owner_pct, tenant_pct, notes
		 FROM budgeted_expenses WHERE id = ?`, id)
	e, err := scanBudgetedExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListBudgetedExpenses returns a building's budgeted expenses for a year.
func (s *Store) ListBudgetedExpenses(ctx context.Context, buildingID apportion.BuildingID, year int) ([]budget.BudgetedExpense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, budget_id, building_id, description, amount, year, expected_month, expected_date,
		        table_id, rule_mode, owner_pct, tenant_pct, notes
		 FROM budgeted_expenses
		 WHERE building_id = ? AND year = ?
		 ORDER BY table_id, description`, buildingID, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []budget.BudgetedExpense
	for rows.Next() {
		e, err := scanBudgetedExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// DeleteBudgetedExpense removes a budgeted expense and re-syncs the owning
// budget's total.
func (s *Store) DeleteBudgetedExpense(ctx context.Context, id budget.BudgetedExpenseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var budgetID budget.BudgetID
	err = tx.QueryRowContext(ctx, `SELECT budget_id FROM budgeted_expenses WHERE id = ?`, id).Scan(&budgetID)
	if err == sql.ErrNoRows {
		return apportion.ErrExpenseNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM budgeted_expenses WHERE id = ?`, id); err != nil {
		return err
	}
	if err := s.refreshBudgetTotal(ctx, tx, budgetID); err != nil {
		return err
	}
	return tx.Commit()
}

func scanBudgetedExpense(row rowScanner) (budget.BudgetedExpense, error) {
	var e budget.BudgetedExpense
	var amount string
	var month sql.NullInt64
	var date, notes sql.NullString
	err := row.Scan(&e.ID, &e.BudgetID, &e.BuildingID, &e.Description, &amount, &e.Year,
		&month, &date, &e.Table, &e.Rule.Mode, &e.Rule.OwnerPct, &e.Rule.TenantPct, &notes)
	if err != nil {
		return e, err
	}
	e.Amount = parseMoney(amount)
	e.Notes = notes.String
	if month.Valid {
		m := int(month.Int64)
		e.Schedule.Month = &m
	}
	if date.Valid {
		d, perr := time.Parse(dateLayout, date.String)
		if perr == nil {
			e.Schedule.Date = &d
		}
	}
	return e, nil
}
