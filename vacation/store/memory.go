// Package store provides in-memory Store implementations.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu   sync.RWMutex
	data *memoryData
}

type balanceKey struct {
	EmployeeID vacation.EmployeeID
	Year       int
}

type memoryData struct {
	employees map[vacation.EmployeeID]vacation.Employee
	balances  map[balanceKey]vacation.Balance
	requests  map[vacation.RequestID]vacation.Request
	movements []vacation.Movement
}

func newMemoryData() *memoryData {
	return &memoryData{
		employees: make(map[vacation.EmployeeID]vacation.Employee),
		balances:  make(map[balanceKey]vacation.Balance),
		requests:  make(map[vacation.RequestID]vacation.Request),
	}
}

func (d *memoryData) clone() *memoryData {
	c := newMemoryData()
	for k, v := range d.employees {
		c.employees[k] = v
	}
	for k, v := range d.balances {
		c.balances[k] = v
	}
	for k, v := range d.requests {
		c.requests[k] = v
	}
	c.movements = append([]vacation.Movement(nil), d.movements...)
	return c
}

var errDuplicateRequest = errors.New("request already exists")

var (
	_ vacation.TxStore = (*Memory)(nil)
	_ vacation.Store   = (*memoryTx)(nil)
)

func NewMemory() *Memory {
	return &Memory{data: newMemoryData()}
}

// SaveEmployee adds or replaces an employee in the directory.
func (m *Memory) SaveEmployee(_ context.Context, e vacation.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.employees[e.ID] = e
	return nil
}

// ListEmployees returns all employees ordered by name.
func (m *Memory) ListEmployees(_ context.Context) ([]vacation.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]vacation.Employee, 0, len(m.data.employees))
	for _, e := range m.data.employees {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// WithTx runs fn against a private copy and publishes it only if fn succeeds.
// Writers are serialized for the duration of fn.
func (m *Memory) WithTx(ctx context.Context, fn func(vacation.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{data: m.data.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.data = tx.data
	return nil
}

func (m *Memory) Employee(ctx context.Context, id vacation.EmployeeID) (vacation.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryTx{data: m.data}).Employee(ctx, id)
}

func (m *Memory) GetBalance(ctx context.Context, employeeID vacation.EmployeeID, year int) (*vacation.Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryTx{data: m.data}).GetBalance(ctx, employeeID, year)
}

func (m *Memory) UpsertBalance(ctx context.Context, b vacation.Balance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{data: m.data}).UpsertBalance(ctx, b)
}

func (m *Memory) CreateRequest(ctx context.Context, r vacation.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{data: m.data}).CreateRequest(ctx, r)
}

func (m *Memory) GetRequest(ctx context.Context, id vacation.RequestID) (vacation.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryTx{data: m.data}).GetRequest(ctx, id)
}

func (m *Memory) UpdateRequest(ctx context.Context, r vacation.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{data: m.data}).UpdateRequest(ctx, r)
}

func (m *Memory) DeleteRequest(ctx context.Context, id vacation.RequestID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{data: m.data}).DeleteRequest(ctx, id)
}

func (m *Memory) ListRequests(ctx context.Context, filter vacation.RequestFilter) ([]vacation.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryTx{data: m.data}).ListRequests(ctx, filter)
}

func (m *Memory) AppendMovement(ctx context.Context, mv vacation.Movement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memoryTx{data: m.data}).AppendMovement(ctx, mv)
}

func (m *Memory) ListMovements(ctx context.Context, employeeID vacation.EmployeeID, year int) ([]vacation.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return (&memoryTx{data: m.data}).ListMovements(ctx, employeeID, year)
}

// =============================================================================
// UNLOCKED VIEW - Operates on data; the caller holds the lock
// =============================================================================

type memoryTx struct {
	data *memoryData
}

func (t *memoryTx) Employee(_ context.Context, id vacation.EmployeeID) (vacation.Employee, error) {
	e, ok := t.data.employees[id]
	if !ok {
		return vacation.Employee{}, &vacation.NotFoundError{Kind: "employee", ID: string(id)}
	}
	return e, nil
}

func (t *memoryTx) GetBalance(_ context.Context, employeeID vacation.EmployeeID, year int) (*vacation.Balance, error) {
	b, ok := t.data.balances[balanceKey{employeeID, year}]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (t *memoryTx) UpsertBalance(_ context.Context, b vacation.Balance) error {
	b.Persisted = true
	t.data.balances[balanceKey{b.EmployeeID, b.Year}] = b
	return nil
}

func (t *memoryTx) CreateRequest(_ context.Context, r vacation.Request) error {
	if _, exists := t.data.requests[r.ID]; exists {
		return errDuplicateRequest
	}
	t.data.requests[r.ID] = r
	return nil
}

func (t *memoryTx) GetRequest(_ context.Context, id vacation.RequestID) (vacation.Request, error) {
	r, ok := t.data.requests[id]
	if !ok {
		return vacation.Request{}, &vacation.NotFoundError{Kind: "request", ID: string(id)}
	}
	return r, nil
}

func (t *memoryTx) UpdateRequest(_ context.Context, r vacation.Request) error {
	if _, ok := t.data.requests[r.ID]; !ok {
		return &vacation.NotFoundError{Kind: "request", ID: string(r.ID)}
	}
	t.data.requests[r.ID] = r
	return nil
}

func (t *memoryTx) DeleteRequest(_ context.Context, id vacation.RequestID) error {
	if _, ok := t.data.requests[id]; !ok {
		return &vacation.NotFoundError{Kind: "request", ID: string(id)}
	}
	delete(t.data.requests, id)
	return nil
}

func (t *memoryTx) ListRequests(_ context.Context, filter vacation.RequestFilter) ([]vacation.Request, error) {
	var out []vacation.Request
	for _, r := range t.data.requests {
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

func (t *memoryTx) AppendMovement(_ context.Context, mv vacation.Movement) error {
	t.data.movements = append(t.data.movements, mv)
	return nil
}

func (t *memoryTx) ListMovements(_ context.Context, employeeID vacation.EmployeeID, year int) ([]vacation.Movement, error) {
	var out []vacation.Movement
	for _, mv := range t.data.movements {
		if mv.EmployeeID == employeeID && mv.Year == year {
			out = append(out, mv)
		}
	}
	return out, nil
}
