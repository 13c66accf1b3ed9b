/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Stores buildings, residents, millesimal share tables, realized expenses,
  annual budgets and budgeted expenses. The apportionment core never touches
  this package; the factory package reads consistent snapshots out of it
  before each computation.

VALIDATION AT THE BOUNDARY:
  SaveShareTable enforces the 1000-total invariant before writing and
  replaces the table's weights transactionally, so a rejected save leaves
  previously stored weights untouched. Budgeted-expense writes keep the
  owning annual budget's total in sync inside the same transaction.

KEY TABLES:
  buildings:          building records with their fixed unit count
  persons:            residents with unit assignment and occupancy role
  share_weights:      (building, table, unit) -> weight rows
  expenses:           realized costs
  annual_budgets:     one row per building and fiscal year
  budgeted_expenses:  planned costs tied to an annual budget

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency.

USAGE:
  store, err := sqlite.New("./data/condo.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - factory/snapshot.go: snapshot assembly on top of this store
  - apportion/errors.go: sentinel errors translated here
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/atrio/condo-engine/apportion"
)

// Store implements persistence for the whole system.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Buildings (condominiums)
	CREATE TABLE IF NOT EXISTS buildings (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT,
		units INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Persons (residents)
	CREATE TABLE IF NOT EXISTS persons (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		unit_id INTEGER NOT NULL,
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_persons_building
		ON persons(building_id);
	CREATE INDEX IF NOT EXISTS idx_persons_building_unit
		ON persons(building_id, unit_id);

	-- Millesimal share-table weights, one row per (building, table, unit)
	CREATE TABLE IF NOT EXISTS share_weights (
		building_id TEXT NOT NULL,
		table_id TEXT NOT NULL,
		unit_id INTEGER NOT NULL,
		weight INTEGER NOT NULL,
		PRIMARY KEY (building_id, table_id, unit_id)
	);

	CREATE INDEX IF NOT EXISTS idx_share_weights_building_table
		ON share_weights(building_id, table_id);

	-- Realized expenses
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		expense_date TEXT NOT NULL,
		table_id TEXT NOT NULL,
		rule_mode TEXT NOT NULL,
		owner_pct INTEGER NOT NULL DEFAULT 0,
		tenant_pct INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_building
		ON expenses(building_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_building_table
		ON expenses(building_id, table_id);
	CREATE INDEX IF NOT EXISTS idx_expenses_date
		ON expenses(expense_date);

	-- Annual budgets, one per building and fiscal year
	CREATE TABLE IF NOT EXISTS annual_budgets (
		id TEXT PRIMARY KEY,
		building_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		budgeted TEXT NOT NULL DEFAULT '0',
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(building_id, year)
	);

	-- Planned costs tied to an annual budget
	CREATE TABLE IF NOT EXISTS budgeted_expenses (
		id TEXT PRIMARY KEY,
		budget_id TEXT NOT NULL,
		building_id TEXT NOT NULL,
		description TEXT NOT NULL,
		amount TEXT NOT NULL,
		year INTEGER NOT NULL,
		expected_month INTEGER,
		expected_date TEXT,
		table_id TEXT NOT NULL,
		rule_mode TEXT NOT NULL,
		owner_pct INTEGER NOT NULL DEFAULT 0,
		tenant_pct INTEGER NOT NULL DEFAULT 0,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_budgeted_expenses_building_year
		ON budgeted_expenses(building_id, year);
	CREATE INDEX IF NOT EXISTS idx_budgeted_expenses_budget
		ON budgeted_expenses(budget_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// BUILDINGS
// =============================================================================

// SaveBuilding inserts or updates a building, minting an id when absent.
// The unit count of an existing building is immutable: persons and share
// tables are defined against it.
func (s *Store) SaveBuilding(ctx context.Context, b apportion.Building) (apportion.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b.Units < 1 {
		return b, &apportion.ValidationError{Field: "units", Message: "unit count must be positive"}
	}
	if b.ID == "" {
		b.ID = apportion.BuildingID(uuid.NewString())
	} else {
		var units int
		err := s.db.QueryRowContext(ctx, `SELECT units FROM buildings WHERE id = ?`, b.ID).Scan(&units)
		if err == nil && units != b.Units {
			return b, &apportion.ValidationError{Field: "units", Message: "unit count cannot change"}
		}
	}

	query := `
		INSERT INTO buildings (id, name, address, units, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			address = excluded.address
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.Name, b.Address, b.Units,
		time.Now().UTC().Format(time.RFC3339),
	)
	return b, err
}

// GetBuilding returns a building, or nil when missing.
func (s *Store) GetBuilding(ctx context.Context, id apportion.BuildingID) (*apportion.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b apportion.Building
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, address, units FROM buildings WHERE id = ?`, id,
	).Scan(&b.ID, &b.Name, &b.Address, &b.Units)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListBuildings returns all buildings ordered by name.
func (s *Store) ListBuildings(ctx context.Context) ([]apportion.Building, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, address, units FROM buildings ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []apportion.Building
	for rows.Next() {
		var b apportion.Building
		if err := rows.Scan(&b.ID, &b.Name, &b.Address, &b.Units); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBuilding removes a building and everything owned by it.
func (s *Store) DeleteBuilding(ctx context.Context, id apportion.BuildingID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM buildings WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apportion.ErrBuildingNotFound
	}
	for _, q := range []string{
		`DELETE FROM persons WHERE building_id = ?`,
		`DELETE FROM share_weights WHERE building_id = ?`,
		`DELETE FROM expenses WHERE building_id = ?`,
		`DELETE FROM budgeted_expenses WHERE building_id = ?`,
		`DELETE FROM annual_budgets WHERE building_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// =============================================================================
// PERSONS
// =============================================================================

// SavePerson inserts or updates a person, minting an id when absent. Unit
// range and role are validated against the owning building.
func (s *Store) SavePerson(ctx context.Context, p apportion.Person) (apportion.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var units int
	err := s.db.QueryRowContext(ctx, `SELECT units FROM buildings WHERE id = ?`, p.BuildingID).Scan(&units)
	if err == sql.ErrNoRows {
		return p, apportion.ErrBuildingNotFound
	}
	if err != nil {
		return p, err
	}
	if p.UnitID < 1 || p.UnitID > units {
		return p, &apportion.InvalidPersonAssignmentError{PersonID: p.ID, UnitID: p.UnitID, Units: units}
	}
	if !apportion.ValidRole(p.Role) {
		return p, &apportion.ValidationError{Field: "role", Message: "unknown occupancy role " + string(p.Role)}
	}
	if p.ID == "" {
		p.ID = apportion.PersonID(uuid.NewString())
	}

	query := `
		INSERT INTO persons (id, building_id, unit_id, first_name, last_name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unit_id = excluded.unit_id,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			role = excluded.role
	`
	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.BuildingID, p.UnitID, p.FirstName, p.LastName, p.Email, p.Role,
		time.Now().UTC().Format(time.RFC3339),
	)
	return p, err
}

// GetPerson returns a person, or nil when missing.
func (s *Store) GetPerson(ctx context.Context, id apportion.PersonID) (*apportion.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p apportion.Person
	err := s.db.QueryRowContext(ctx,
		`SELECT id, building_id, unit_id, first_name, last_name, email, role
		 FROM persons WHERE id = ?`, id,
	).Scan(&p.ID, &p.BuildingID, &p.UnitID, &p.FirstName, &p.LastName, &p.Email, &p.Role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPersons returns a building's residents ordered by unit and name.
func (s *Store) ListPersons(ctx context.Context, buildingID apportion.BuildingID) ([]apportion.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, building_id, unit_id, first_name, last_name, email, role
		 FROM persons WHERE building_id = ?
		 ORDER BY unit_id, last_name, first_name`, buildingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []apportion.Person
	for rows.Next() {
		var p apportion.Person
		if err := rows.Scan(&p.ID, &p.BuildingID, &p.UnitID, &p.FirstName, &p.LastName, &p.Email, &p.Role); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeletePerson removes a person permanently.
func (s *Store) DeletePerson(ctx context.Context, id apportion.PersonID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apportion.ErrPersonNotFound
	}
	return nil
}

// =============================================================================
// SHARE TABLES
// =============================================================================

// GetShareTable loads one table's weights into an apportion.ShareTable.
// A table with no stored rows is returned empty (and thus invalid).
func (s *Store) GetShareTable(ctx context.Context, buildingID apportion.BuildingID, tableID apportion.TableID) (*apportion.ShareTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadShareTable(ctx, buildingID, tableID)
}

func (s *Store) loadShareTable(ctx context.Context, buildingID apportion.BuildingID, tableID apportion.TableID) (*apportion.ShareTable, error) {
	var units int
	err := s.db.QueryRowContext(ctx, `SELECT units FROM buildings WHERE id = ?`, buildingID).Scan(&units)
	if err == sql.ErrNoRows {
		return nil, apportion.ErrBuildingNotFound
	}
	if err != nil {
		return nil, err
	}

	tbl := apportion.NewShareTable(buildingID, tableID, units)
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, weight FROM share_weights
		 WHERE building_id = ? AND table_id = ? ORDER BY unit_id`, buildingID, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var unit, weight int
		if err := rows.Scan(&unit, &weight); err != nil {
			return nil, err
		}
		if err := tbl.SetWeight(unit, weight); err != nil {
			return nil, err
		}
	}
	return tbl, rows.Err()
}

// GetShareTables loads all ten tables of a building.
func (s *Store) GetShareTables(ctx context.Context, buildingID apportion.BuildingID) (map[apportion.TableID]*apportion.ShareTable, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[apportion.TableID]*apportion.ShareTable, len(apportion.TableIDs))
	for _, id := range apportion.TableIDs {
		tbl, err := s.loadShareTable(ctx, buildingID, id)
		if err != nil {
			return nil, err
		}
		out[id] = tbl
	}
	return out, nil
}

// SaveShareTable validates and transactionally replaces one table's whole
// weight map. A weight set that misses units or does not total 1000 is
// rejected with no partial effect: previously stored weights stay intact.
func (s *Store) SaveShareTable(ctx context.Context, buildingID apportion.BuildingID, tableID apportion.TableID, weights map[int]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !apportion.ValidTableID(tableID) {
		return &apportion.ValidationError{Field: "table", Message: "unknown share table " + string(tableID)}
	}

	var units int
	err := s.db.QueryRowContext(ctx, `SELECT units FROM buildings WHERE id = ?`, buildingID).Scan(&units)
	if err == sql.ErrNoRows {
		return apportion.ErrBuildingNotFound
	}
	if err != nil {
		return err
	}

	// Validate the candidate in memory before touching the database.
	tbl := apportion.NewShareTable(buildingID, tableID, units)
	for unit, weight := range weights {
		if err := tbl.SetWeight(unit, weight); err != nil {
			return err
		}
	}
	if err := tbl.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM share_weights WHERE building_id = ? AND table_id = ?`, buildingID, tableID); err != nil {
		return err
	}
	for unit := 1; unit <= units; unit++ {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO share_weights (building_id, table_id, unit_id, weight) VALUES (?, ?, ?, ?)`,
			buildingID, tableID, unit, weights[unit]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CopyShareTable overwrites dst's weight rows with a duplicate of src's.
// A straight row copy: the total invariant is preserved by construction.
func (s *Store) CopyShareTable(ctx context.Context, buildingID apportion.BuildingID, src, dst apportion.TableID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !apportion.ValidTableID(src) || !apportion.ValidTableID(dst) {
		return &apportion.ValidationError{Field: "table", Message: "unknown share table"}
	}
	if src == dst {
		return &apportion.ValidationError{Field: "table", Message: "source and destination tables are the same"}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM share_weights WHERE building_id = ? AND table_id = ?`, buildingID, dst); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO share_weights (building_id, table_id, unit_id, weight)
		 SELECT building_id, ?, unit_id, weight FROM share_weights
		 WHERE building_id = ? AND table_id = ?`, dst, buildingID, src); err != nil {
		return err
	}
	return tx.Commit()
}

// Reset wipes all data. Used by demo scenario loading; never in normal flow.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range []string{
		`DELETE FROM buildings`,
		`DELETE FROM persons`,
		`DELETE FROM share_weights`,
		`DELETE FROM expenses`,
		`DELETE FROM budgeted_expenses`,
		`DELETE FROM annual_budgets`,
	} {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseMoney(s string) apportion.Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
