/*
request.go - Vacation request lifecycle

PURPOSE:
  Creates, edits, approves, rejects and deletes vacation requests, keeping the
  Ledger consistent with every approved request.

REQUEST FLOW:
  ┌───────────────────────────────────────────────────────────────┐
  │                                                               │
  │  Create ──▶ validate dates ──▶ check available ──▶ pending    │
  │                                                     │         │
  │                              ┌──────────────────────┤         │
  │                              ▼                      ▼         │
  │                        ┌──────────┐           ┌──────────┐    │
  │                        │ Approved │──▶ Debit  │ Rejected │    │
  │                        └──────────┘           └──────────┘    │
  │                              │                                │
  │                           Delete ──▶ Credit                   │
  │                                                               │
  └───────────────────────────────────────────────────────────────┘

ATOMICITY:
  Approve reads the balance, checks it and debits it. Two approvals for the
  same (employee, period) could both pass the check against a stale read, so
  every mutating operation:
    1. takes the KeyedMutex for (employee, period)
    2. runs inside TxStore.WithTx when the store supports it
    3. re-reads the request inside the transaction
  A failed debit returns before the status is written; the transaction is
  rolled back and the request stays pending.

AVAILABILITY POLICY:
  Policy.EnforceAvailabilityOnCreate (default true) rejects Create and Update
  when the requested days exceed the available days. Approve always enforces.

SEE ALSO:
  - ledger.go: Debit / Credit
  - errors.go: error kinds returned here
*/
package vacation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// MANAGER
// =============================================================================

// Policy holds the configurable lifecycle rules.
type Policy struct {
	EnforceAvailabilityOnCreate bool
}

func DefaultPolicy() Policy {
	return Policy{EnforceAvailabilityOnCreate: true}
}

// Manager runs the request state machine.
type Manager struct {
	store  Store
	ledger *Ledger
	locks  *KeyedMutex
	policy Policy
	log    *zap.Logger
	now    func() time.Time
	newID  func() RequestID
}

type Option func(*Manager)

func WithPolicy(p Policy) Option { return func(m *Manager) { m.policy = p } }

func WithLogger(log *zap.Logger) Option { return func(m *Manager) { m.log = log } }

// WithClock replaces time.Now for submitted/approved/rejected timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
		m.ledger.now = now
	}
}

func WithIDGenerator(gen func() RequestID) Option { return func(m *Manager) { m.newID = gen } }

func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		ledger: NewLedger(store),
		locks:  NewKeyedMutex(),
		policy: DefaultPolicy(),
		log:    zap.NewNop(),
		now:    time.Now,
		newID:  func() RequestID { return RequestID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Ledger exposes the balance ledger backing this manager.
func (m *Manager) Ledger() *Ledger { return m.ledger }

// =============================================================================
// INPUTS
// =============================================================================

type CreateInput struct {
	EmployeeID   EmployeeID
	StartDate    time.Time
	EndDate      time.Time
	Period       int
	Reason       Reason // defaults to ReasonAnnual
	Observations string
}

// UpdateInput carries the fields to change. Nil fields are left as they are.
type UpdateInput struct {
	StartDate    *time.Time
	EndDate      *time.Time
	Period       *int
	Reason       *Reason
	Observations *string
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Create validates and stores a new pending request.
func (m *Manager) Create(ctx context.Context, in CreateInput) (Request, error) {
	r := Request{
		ID:           m.newID(),
		EmployeeID:   in.EmployeeID,
		StartDate:    in.StartDate,
		EndDate:      in.EndDate,
		Period:       in.Period,
		Reason:       in.Reason,
		Observations: in.Observations,
		Status:       StatusPending,
	}
	if r.Reason == "" {
		r.Reason = ReasonAnnual
	}
	if err := m.prepare(ctx, m.store, &r, true); err != nil {
		return Request{}, err
	}

	now := m.now().UTC()
	r.SubmittedAt = now
	r.UpdatedAt = now
	if err := m.store.CreateRequest(ctx, r); err != nil {
		return Request{}, storageErr("create request", err)
	}

	m.log.Info("vacation request created",
		zap.String("request_id", string(r.ID)),
		zap.String("employee_id", string(r.EmployeeID)),
		zap.Int("period", r.Period),
		zap.Int("days", r.RequestedDays),
	)
	return r, nil
}

// Approve debits the balance and marks the request approved, atomically.
func (m *Manager) Approve(ctx context.Context, id RequestID) (Request, error) {
	var out Request
	err := m.withRequestLock(ctx, id, func(s Store, r Request) error {
		if r.Status != StatusPending {
			return &InvalidTransitionError{RequestID: id, From: r.Status, Action: "approve"}
		}
		if _, err := m.ledger.WithStore(s).Debit(ctx, r.EmployeeID, r.Period, r.Days(), r.ID); err != nil {
			return err
		}

		now := m.now().UTC()
		r.Status = StatusApproved
		r.ApprovedAt = &now
		r.UpdatedAt = now
		if err := s.UpdateRequest(ctx, r); err != nil {
			return storageErr("update request", err)
		}
		out = r
		return nil
	})
	if err != nil {
		m.log.Warn("vacation request approval failed",
			zap.String("request_id", string(id)), zap.Error(err))
		return Request{}, err
	}

	m.log.Info("vacation request approved",
		zap.String("request_id", string(out.ID)),
		zap.String("employee_id", string(out.EmployeeID)),
		zap.Int("period", out.Period),
		zap.Int("days", out.RequestedDays),
	)
	return out, nil
}

// Reject marks a pending request rejected. The balance is not touched.
func (m *Manager) Reject(ctx context.Context, id RequestID) (Request, error) {
	var out Request
	err := m.withRequestLock(ctx, id, func(s Store, r Request) error {
		if r.Status != StatusPending {
			return &InvalidTransitionError{RequestID: id, From: r.Status, Action: "reject"}
		}
		now := m.now().UTC()
		r.Status = StatusRejected
		r.RejectedAt = &now
		r.UpdatedAt = now
		if err := s.UpdateRequest(ctx, r); err != nil {
			return storageErr("update request", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return Request{}, err
	}

	m.log.Info("vacation request rejected", zap.String("request_id", string(out.ID)))
	return out, nil
}

// Update edits a pending request. Changing the dates recomputes RequestedDays
// and re-runs the creation checks.
func (m *Manager) Update(ctx context.Context, id RequestID, in UpdateInput) (Request, error) {
	var out Request
	err := m.withRequestLock(ctx, id, func(s Store, r Request) error {
		if r.Status != StatusPending {
			return &InvalidTransitionError{RequestID: id, From: r.Status, Action: "update"}
		}

		datesChanged := false
		if in.StartDate != nil {
			datesChanged = datesChanged || !in.StartDate.Equal(r.StartDate)
			r.StartDate = *in.StartDate
		}
		if in.EndDate != nil {
			datesChanged = datesChanged || !in.EndDate.Equal(r.EndDate)
			r.EndDate = *in.EndDate
		}
		if in.Period != nil {
			r.Period = *in.Period
		}
		if in.Reason != nil {
			r.Reason = *in.Reason
			if r.Reason == "" {
				r.Reason = ReasonAnnual
			}
		}
		if in.Observations != nil {
			r.Observations = *in.Observations
		}

		if err := m.prepare(ctx, s, &r, datesChanged); err != nil {
			return err
		}
		r.UpdatedAt = m.now().UTC()
		if err := s.UpdateRequest(ctx, r); err != nil {
			return storageErr("update request", err)
		}
		out = r
		return nil
	})
	if err != nil {
		return Request{}, err
	}
	return out, nil
}

// Delete removes a request. An approved request's days are credited back to
// its balance in the same transaction.
func (m *Manager) Delete(ctx context.Context, id RequestID) error {
	var deleted Request
	err := m.withRequestLock(ctx, id, func(s Store, r Request) error {
		if r.Status == StatusApproved {
			if _, err := m.ledger.WithStore(s).Credit(ctx, r.EmployeeID, r.Period, r.Days(), r.ID); err != nil {
				return err
			}
		}
		if err := s.DeleteRequest(ctx, r.ID); err != nil {
			return storageErr("delete request", err)
		}
		deleted = r
		return nil
	})
	if err != nil {
		return err
	}

	m.log.Info("vacation request deleted",
		zap.String("request_id", string(deleted.ID)),
		zap.String("status", string(deleted.Status)),
	)
	return nil
}

func (m *Manager) Get(ctx context.Context, id RequestID) (Request, error) {
	r, err := m.store.GetRequest(ctx, id)
	if err != nil {
		return Request{}, storageErr("get request", err)
	}
	return r, nil
}

func (m *Manager) List(ctx context.Context, filter RequestFilter) ([]Request, error) {
	rs, err := m.store.ListRequests(ctx, filter)
	if err != nil {
		return nil, storageErr("list requests", err)
	}
	return rs, nil
}

// =============================================================================
// HELPERS
// =============================================================================

var errKeyMoved = errors.New("request moved to another balance")

// withRequestLock runs fn for the current state of request id while holding
// the lock of its (employee, period) balance, inside a store transaction.
// If the request was moved to another period between the read and the lock,
// the lock is released and the sequence retried.
func (m *Manager) withRequestLock(ctx context.Context, id RequestID, fn func(Store, Request) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, err := m.store.GetRequest(ctx, id)
		if err != nil {
			return storageErr("get request", err)
		}
		key := balanceKey(r.EmployeeID, r.Period)

		unlock := m.locks.Lock(key)
		err = m.inTx(ctx, func(s Store) error {
			cur, err := s.GetRequest(ctx, id)
			if err != nil {
				return storageErr("get request", err)
			}
			if balanceKey(cur.EmployeeID, cur.Period) != key {
				return errKeyMoved
			}
			return fn(s, cur)
		})
		unlock()

		if errors.Is(err, errKeyMoved) {
			continue
		}
		return err
	}
}

func (m *Manager) inTx(ctx context.Context, fn func(Store) error) error {
	txs, ok := m.store.(TxStore)
	if !ok {
		return fn(m.store)
	}
	err := txs.WithTx(ctx, fn)
	if errors.Is(err, errKeyMoved) {
		return err
	}
	return storageErr("transaction", err)
}

// prepare validates r, recomputes RequestedDays when asked, and applies the
// availability policy against the balance read through s.
func (m *Manager) prepare(ctx context.Context, s Store, r *Request, recompute bool) error {
	if err := validateRequest(r); err != nil {
		return err
	}
	if recompute || r.RequestedDays == 0 {
		r.StartDate = DateOf(r.StartDate)
		r.EndDate = DateOf(r.EndDate)
		days := InclusiveDayCount(r.StartDate, r.EndDate)
		if days <= 0 {
			return &DateRangeError{
				Start: r.StartDate.Format(DateLayout),
				End:   r.EndDate.Format(DateLayout),
			}
		}
		r.RequestedDays = days
	}

	if _, err := s.Employee(ctx, r.EmployeeID); err != nil {
		return storageErr("get employee", err)
	}
	if !m.policy.EnforceAvailabilityOnCreate {
		return nil
	}

	b, err := m.ledger.WithStore(s).Balance(ctx, r.EmployeeID, r.Period)
	if err != nil {
		return err
	}
	if !b.CanCover(r.Days()) {
		return &InsufficientBalanceError{
			EmployeeID: r.EmployeeID,
			Year:       r.Period,
			Requested:  r.Days(),
			Available:  b.AvailableDays(),
		}
	}
	return nil
}

func validateRequest(r *Request) error {
	switch {
	case r.EmployeeID == "":
		return &ValidationError{Field: "employee_id", Message: "is required"}
	case r.StartDate.IsZero():
		return &ValidationError{Field: "start_date", Message: "is required"}
	case r.EndDate.IsZero():
		return &ValidationError{Field: "end_date", Message: "is required"}
	case r.Period <= 0:
		return &ValidationError{Field: "period", Message: "is required"}
	case !r.Reason.Valid():
		return &ValidationError{Field: "reason", Message: "unknown reason " + string(r.Reason)}
	}
	return nil
}
