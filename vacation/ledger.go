/*
ledger.go - Per employee, per year vacation balance

PURPOSE:
  The Ledger answers "how many days does this employee have left this year?"
  and applies the debits and credits produced by the request lifecycle.

LAZY ROWS:
  A balance row is only written the first time it is mutated. Until then,
  Balance() synthesizes one from the employee's hire date and the entitlement
  rules with zero days used. Reading never writes.

INVARIANTS:
  - AvailableDays = TotalDays - UsedDays, computed on every read
  - AvailableDays >= 0 after every Debit
  - UsedDays >= 0 after every Credit (credits are floored at zero)
  - Every mutation appends a Movement in the same store

CONCURRENCY:
  Debit and Credit are read-modify-write. The Ledger does not serialize them;
  the Manager calls them while holding the (employee, year) lock and inside a
  store transaction (see request.go).

SEE ALSO:
  - entitlement.go: source of TotalDays for new rows
  - request.go: the only caller of Debit/Credit
*/
package vacation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ledger reads and mutates balances through a Store.
type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// WithStore returns a ledger bound to s, typically the transactional view
// handed out by TxStore.WithTx.
func (l *Ledger) WithStore(s Store) *Ledger {
	return &Ledger{store: s, now: l.now}
}

// Balance returns the persisted balance, or a synthesized one when no row
// exists for the year. The synthesized balance is not written.
func (l *Ledger) Balance(ctx context.Context, employeeID EmployeeID, year int) (Balance, error) {
	if err := validateKey(employeeID, year); err != nil {
		return Balance{}, err
	}

	persisted, err := l.store.GetBalance(ctx, employeeID, year)
	if err != nil {
		return Balance{}, storageErr("get balance", err)
	}
	if persisted != nil {
		return *persisted, nil
	}

	emp, err := l.store.Employee(ctx, employeeID)
	if err != nil {
		return Balance{}, storageErr("get employee", err)
	}

	return Balance{
		EmployeeID: employeeID,
		Year:       year,
		TotalDays:  Entitlement(emp.HireDate, year),
		UsedDays:   decimal.Zero,
	}, nil
}

// Debit consumes days from the balance. Fails with InsufficientBalanceError
// when fewer than days are available; nothing is written in that case.
func (l *Ledger) Debit(ctx context.Context, employeeID EmployeeID, year int, days decimal.Decimal, ref RequestID) (Balance, error) {
	if err := validateDays(days); err != nil {
		return Balance{}, err
	}
	b, err := l.Balance(ctx, employeeID, year)
	if err != nil {
		return Balance{}, err
	}
	if !b.CanCover(days) {
		return Balance{}, &InsufficientBalanceError{
			EmployeeID: employeeID,
			Year:       year,
			Requested:  days,
			Available:  b.AvailableDays(),
		}
	}

	b.UsedDays = b.UsedDays.Add(days)
	return l.apply(ctx, b, MovementDebit, days, ref)
}

// Credit returns days to the balance. UsedDays never goes below zero.
func (l *Ledger) Credit(ctx context.Context, employeeID EmployeeID, year int, days decimal.Decimal, ref RequestID) (Balance, error) {
	if err := validateDays(days); err != nil {
		return Balance{}, err
	}
	b, err := l.Balance(ctx, employeeID, year)
	if err != nil {
		return Balance{}, err
	}

	credited := decimal.Min(days, b.UsedDays)
	b.UsedDays = b.UsedDays.Sub(credited)
	return l.apply(ctx, b, MovementCredit, credited, ref)
}

// Movements returns the debit/credit history for a year, oldest first.
func (l *Ledger) Movements(ctx context.Context, employeeID EmployeeID, year int) ([]Movement, error) {
	if err := validateKey(employeeID, year); err != nil {
		return nil, err
	}
	ms, err := l.store.ListMovements(ctx, employeeID, year)
	if err != nil {
		return nil, storageErr("list movements", err)
	}
	return ms, nil
}

func (l *Ledger) apply(ctx context.Context, b Balance, kind MovementKind, days decimal.Decimal, ref RequestID) (Balance, error) {
	now := l.now().UTC()
	b.Persisted = true
	b.UpdatedAt = now

	if err := l.store.UpsertBalance(ctx, b); err != nil {
		return Balance{}, storageErr("upsert balance", err)
	}
	err := l.store.AppendMovement(ctx, Movement{
		ID:         uuid.NewString(),
		EmployeeID: b.EmployeeID,
		Year:       b.Year,
		Kind:       kind,
		Days:       days,
		RequestID:  ref,
		At:         now,
	})
	if err != nil {
		return Balance{}, storageErr("append movement", err)
	}
	return b, nil
}

func validateKey(employeeID EmployeeID, year int) error {
	if employeeID == "" {
		return &ValidationError{Field: "employee_id", Message: "is required"}
	}
	if year <= 0 {
		return &ValidationError{Field: "year", Message: "must be a positive year"}
	}
	return nil
}

func validateDays(days decimal.Decimal) error {
	if !days.IsPositive() {
		return &ValidationError{Field: "days", Message: "must be greater than zero"}
	}
	return nil
}
