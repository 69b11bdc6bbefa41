/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  The engine never talks to a database directly. It consumes:
  - EmployeeDirectory: hire dates and names, owned elsewhere
  - Store:             balances, requests and movements
  - TxStore:           Store plus WithTx for all-or-nothing writes

ATOMICITY:
  Approving a request writes three things: the balance row, a debit movement
  and the request status. WithTx runs them against one transactional view so
  either all land or none do.

IMPLEMENTATIONS:
  - vacation/store/memory.go: in-memory, for tests and local runs
  - store/sqlite/sqlite.go:   SQLite

SEE ALSO:
  - ledger.go, request.go: consumers
*/
package vacation

import "context"

// EmployeeDirectory resolves employee records.
// Employee returns ErrNotFound (or a NotFoundError) for unknown ids.
type EmployeeDirectory interface {
	Employee(ctx context.Context, id EmployeeID) (Employee, error)
}

// Store is the datastore for the vacation collections.
//
// Lookups of missing rows return (nil, nil) for balances and a NotFoundError
// for requests, so the ledger can tell "no row yet" from a failure.
type Store interface {
	EmployeeDirectory

	// GetBalance returns the persisted balance or nil when none exists.
	GetBalance(ctx context.Context, employeeID EmployeeID, year int) (*Balance, error)

	// UpsertBalance inserts or replaces the (employee, year) row.
	UpsertBalance(ctx context.Context, b Balance) error

	CreateRequest(ctx context.Context, r Request) error
	GetRequest(ctx context.Context, id RequestID) (Request, error)
	UpdateRequest(ctx context.Context, r Request) error
	DeleteRequest(ctx context.Context, id RequestID) error
	ListRequests(ctx context.Context, filter RequestFilter) ([]Request, error)

	// AppendMovement records a ledger change. Append-only.
	AppendMovement(ctx context.Context, m Movement) error
	ListMovements(ctx context.Context, employeeID EmployeeID, year int) ([]Movement, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the given Store is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
