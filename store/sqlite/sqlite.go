/*
Package sqlite provides a SQLite-backed implementation of the vacation storage
interfaces.

PURPOSE:
  Implements vacation.TxStore (balances, requests, movements) and the employee
  directory using SQLite. The same SQL works on PostgreSQL with minor dialect
  changes.

KEY TABLES:
  employees:           Employee directory (id, name, dni, hire date)
  vacation_balances:   One row per (employee_id, year), created on first mutation
  vacation_requests:   Requests and their status
  balance_movements:   Append-only audit of debits and credits

DECIMALS:
  Day amounts are stored as TEXT in shopspring/decimal's canonical form so no
  float rounding creeps into balances.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole transaction; the Store handed to fn talks to the sql.Tx directly and
  never re-enters the lock.

USAGE:
  store, err := sqlite.New("./data/vacations.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  manager := vacation.NewManager(store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - vacation/store.go: Interface definitions
  - vacation/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/vacation-engine/vacation"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ vacation.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database lives and dies with its connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store, err := Open(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Open wraps an existing connection pool and migrates the schema.
func Open(db *sql.DB) (*Store, error) {
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
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
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dni TEXT,
		hire_date TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vacation_balances (
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		total_days TEXT NOT NULL,
		used_days TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (employee_id, year)
	);

	CREATE TABLE IF NOT EXISTS vacation_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		requested_days INTEGER NOT NULL,
		period INTEGER NOT NULL,
		reason TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		observations TEXT,
		submitted_at TEXT NOT NULL,
		approved_at TEXT,
		rejected_at TEXT,
		updated_at TEXT NOT NULL
	);

	-- Filter by employee and period (hot path for balances and listings)
	CREATE INDEX IF NOT EXISTS idx_requests_employee_period
		ON vacation_requests(employee_id, period);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON vacation_requests(status);

	-- Append-only audit of balance changes
	CREATE TABLE IF NOT EXISTS balance_movements (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		kind TEXT NOT NULL,
		days TEXT NOT NULL,
		request_id TEXT,
		at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_movements_employee_year
		ON balance_movements(employee_id, year, at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store vacation.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{db: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// EMPLOYEE DIRECTORY
// =============================================================================

// SaveEmployee inserts or updates an employee.
func (s *Store) SaveEmployee(ctx context.Context, emp vacation.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, dni, hire_date, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			dni = excluded.dni,
			hire_date = excluded.hire_date
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Name, nullString(emp.DNI), formatDate(emp.HireDate),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save employee: %w", err)
	}
	return nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]vacation.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, dni, hire_date FROM employees ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []vacation.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

func (s *Store) Employee(ctx context.Context, id vacation.EmployeeID) (vacation.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{db: s.db}.Employee(ctx, id)
}

// =============================================================================
// VACATION STORE (vacation.Store interface)
// =============================================================================

func (s *Store) GetBalance(ctx context.Context, employeeID vacation.EmployeeID, year int) (*vacation.Balance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{db: s.db}.GetBalance(ctx, employeeID, year)
}

func (s *Store) UpsertBalance(ctx context.Context, b vacation.Balance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{db: s.db}.UpsertBalance(ctx, b)
}

func (s *Store) CreateRequest(ctx context.Context, r vacation.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{db: s.db}.CreateRequest(ctx, r)
}

func (s *Store) GetRequest(ctx context.Context, id vacation.RequestID) (vacation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{db: s.db}.GetRequest(ctx, id)
}

func (s *Store) UpdateRequest(ctx context.Context, r vacation.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{db: s.db}.UpdateRequest(ctx, r)
}

func (s *Store) DeleteRequest(ctx context.Context, id vacation.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{db: s.db}.DeleteRequest(ctx, id)
}

func (s *Store) ListRequests(ctx context.Context, filter vacation.RequestFilter) ([]vacation.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{db: s.db}.ListRequests(ctx, filter)
}

func (s *Store) AppendMovement(ctx context.Context, m vacation.Movement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queries{db: s.db}.AppendMovement(ctx, m)
}

func (s *Store) ListMovements(ctx context.Context, employeeID vacation.EmployeeID, year int) ([]vacation.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return queries{db: s.db}.ListMovements(ctx, employeeID, year)
}

// =============================================================================
// QUERIES - Shared by the pool and by open transactions
// =============================================================================

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries runs SQL against db without taking the Store lock.
type queries struct {
	db dbtx
}

const requestColumns = `id, employee_id, start_date, end_date, requested_days, period, reason,
	status, observations, submitted_at, approved_at, rejected_at, updated_at`

func (q queries) Employee(ctx context.Context, id vacation.EmployeeID) (vacation.Employee, error) {
	row := q.db.QueryRowContext(ctx,
		"SELECT id, name, dni, hire_date FROM employees WHERE id = ?", id)
	emp, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return vacation.Employee{}, &vacation.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return emp, err
}

func (q queries) GetBalance(ctx context.Context, employeeID vacation.EmployeeID, year int) (*vacation.Balance, error) {
	var (
		b                    vacation.Balance
		total, used, updated string
	)
	err := q.db.QueryRowContext(ctx, `
		SELECT employee_id, year, total_days, used_days, updated_at
		FROM vacation_balances WHERE employee_id = ? AND year = ?`,
		employeeID, year,
	).Scan(&b.EmployeeID, &b.Year, &total, &used, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	if b.TotalDays, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("invalid total_days %q: %w", total, err)
	}
	if b.UsedDays, err = decimal.NewFromString(used); err != nil {
		return nil, fmt.Errorf("invalid used_days %q: %w", used, err)
	}
	b.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	b.Persisted = true
	return &b, nil
}

func (q queries) UpsertBalance(ctx context.Context, b vacation.Balance) error {
	query := `
		INSERT INTO vacation_balances (employee_id, year, total_days, used_days, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, year) DO UPDATE SET
			total_days = excluded.total_days,
			used_days = excluded.used_days,
			updated_at = excluded.updated_at
	`
	_, err := q.db.ExecContext(ctx, query,
		b.EmployeeID, b.Year, b.TotalDays.String(), b.UsedDays.String(),
		b.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert balance: %w", err)
	}
	return nil
}

func (q queries) CreateRequest(ctx context.Context, r vacation.Request) error {
	query := `INSERT INTO vacation_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := q.db.ExecContext(ctx, query, requestArgs(r)...)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	return nil
}

func (q queries) GetRequest(ctx context.Context, id vacation.RequestID) (vacation.Request, error) {
	rows, err := q.db.QueryContext(ctx,
		"SELECT "+requestColumns+" FROM vacation_requests WHERE id = ?", id)
	if err != nil {
		return vacation.Request{}, fmt.Errorf("failed to get request: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return vacation.Request{}, fmt.Errorf("failed to get request: %w", err)
		}
		return vacation.Request{}, &vacation.NotFoundError{Kind: "request", ID: string(id)}
	}
	return scanRequest(rows)
}

func (q queries) UpdateRequest(ctx context.Context, r vacation.Request) error {
	query := `
		UPDATE vacation_requests SET
			employee_id = ?, start_date = ?, end_date = ?, requested_days = ?, period = ?,
			reason = ?, status = ?, observations = ?, submitted_at = ?, approved_at = ?,
			rejected_at = ?, updated_at = ?
		WHERE id = ?
	`
	args := append(requestArgs(r)[1:], r.ID)
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update request: %w", err)
	}
	return requireAffected(res, "request", string(r.ID))
}

func (q queries) DeleteRequest(ctx context.Context, id vacation.RequestID) error {
	res, err := q.db.ExecContext(ctx, "DELETE FROM vacation_requests WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete request: %w", err)
	}
	return requireAffected(res, "request", string(id))
}

func (q queries) ListRequests(ctx context.Context, filter vacation.RequestFilter) ([]vacation.Request, error) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.Year != 0 {
		where = append(where, "period = ?")
		args = append(args, filter.Year)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := "SELECT " + requestColumns + " FROM vacation_requests"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_date ASC, submitted_at ASC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	var requests []vacation.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, r)
	}
	return requests, rows.Err()
}

func (q queries) AppendMovement(ctx context.Context, m vacation.Movement) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO balance_movements (id, employee_id, year, kind, days, request_id, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.EmployeeID, m.Year, m.Kind, m.Days.String(),
		nullString(string(m.RequestID)), m.At.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append movement: %w", err)
	}
	return nil
}

func (q queries) ListMovements(ctx context.Context, employeeID vacation.EmployeeID, year int) ([]vacation.Movement, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, employee_id, year, kind, days, request_id, at
		FROM balance_movements
		WHERE employee_id = ? AND year = ?
		ORDER BY at ASC, rowid ASC`,
		employeeID, year,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list movements: %w", err)
	}
	defer rows.Close()

	var movements []vacation.Movement
	for rows.Next() {
		var (
			m         vacation.Movement
			days, at  string
			requestID sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.EmployeeID, &m.Year, &m.Kind, &days, &requestID, &at); err != nil {
			return nil, fmt.Errorf("failed to scan movement: %w", err)
		}
		m.Days = parseDecimal(days)
		m.RequestID = vacation.RequestID(requestID.String)
		m.At, _ = time.Parse(time.RFC3339Nano, at)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row scanner) (vacation.Employee, error) {
	var (
		emp      vacation.Employee
		dni      sql.NullString
		hireDate sql.NullString
	)
	if err := row.Scan(&emp.ID, &emp.Name, &dni, &hireDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return emp, err
		}
		return emp, fmt.Errorf("failed to scan employee: %w", err)
	}
	emp.DNI = dni.String
	if hireDate.Valid && hireDate.String != "" {
		emp.HireDate, _ = vacation.ParseDate(hireDate.String)
	}
	return emp, nil
}

func scanRequest(row scanner) (vacation.Request, error) {
	var (
		r                                vacation.Request
		start, end, submitted, updated   string
		observations, approved, rejected sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.EmployeeID, &start, &end, &r.RequestedDays, &r.Period, &r.Reason,
		&r.Status, &observations, &submitted, &approved, &rejected, &updated,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan request: %w", err)
	}

	r.StartDate, _ = vacation.ParseDate(start)
	r.EndDate, _ = vacation.ParseDate(end)
	r.Observations = observations.String
	r.SubmittedAt, _ = time.Parse(time.RFC3339, submitted)
	r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	r.ApprovedAt = parseNullTime(approved)
	r.RejectedAt = parseNullTime(rejected)
	return r, nil
}

func requestArgs(r vacation.Request) []any {
	return []any{
		r.ID, r.EmployeeID, formatDate(r.StartDate), formatDate(r.EndDate),
		r.RequestedDays, r.Period, r.Reason, r.Status, nullString(r.Observations),
		r.SubmittedAt.UTC().Format(time.RFC3339), formatNullTime(r.ApprovedAt),
		formatNullTime(r.RejectedAt), r.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Helper functions

func requireAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return &vacation.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(vacation.DateLayout), Valid: true}
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
