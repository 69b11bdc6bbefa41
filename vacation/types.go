/*
Package vacation implements paid-leave entitlement, the per-year balance ledger
and the vacation request lifecycle.

PURPOSE:
  An employee earns a number of vacation days per calendar year depending on
  seniority. Requests draw days from that year's balance once approved. This
  package owns the rules; persistence and employee records are reached through
  the interfaces in store.go.

KEY CONCEPTS IN THIS FILE (types.go):
  - Balance: total/used days for one (employee, year); available is derived
  - Request: a vacation request and its status
  - Movement: audit entry for each debit/credit applied to a balance
  - Employee: the subset of the employee record this package needs

LIFECYCLE:
  pending ──approve──▶ approved   (balance debited)
     │
     └────reject────▶ rejected   (balance untouched)

  Terminal requests can only be deleted. Deleting an approved request credits
  its days back to the balance.

SEE ALSO:
  - entitlement.go: seniority brackets
  - ledger.go: balance reads and mutations
  - request.go: lifecycle manager
*/
package vacation

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RequestID string

// =============================================================================
// EMPLOYEE - Owned by the employee directory
// =============================================================================

// Employee is the read-only view of an employee record.
type Employee struct {
	ID       EmployeeID
	Name     string
	DNI      string
	HireDate time.Time // zero when unknown
}

// =============================================================================
// BALANCE - Per employee, per calendar year
// =============================================================================

// Balance is the entitlement and consumption of one employee for one year.
// Available is always computed from TotalDays and UsedDays.
type Balance struct {
	EmployeeID EmployeeID
	Year       int
	TotalDays  decimal.Decimal
	UsedDays   decimal.Decimal

	// Persisted is false when the balance was synthesized from the
	// entitlement rules and no row exists yet.
	Persisted bool
	UpdatedAt time.Time
}

func (b Balance) AvailableDays() decimal.Decimal { return b.TotalDays.Sub(b.UsedDays) }

// CanCover reports whether days fit in what is still available.
func (b Balance) CanCover(days decimal.Decimal) bool {
	return !days.GreaterThan(b.AvailableDays())
}

// =============================================================================
// REQUEST
// =============================================================================

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsTerminal() bool { return s == StatusApproved || s == StatusRejected }

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Reason categorizes why the days are requested.
type Reason string

const (
	ReasonAnnual    Reason = "annual"    // Regular yearly vacation
	ReasonAdvance   Reason = "advance"   // Taken ahead of the period it is drawn against
	ReasonCarryover Reason = "carryover" // Days left over from a previous period
	ReasonOther     Reason = "other"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonAnnual, ReasonAdvance, ReasonCarryover, ReasonOther:
		return true
	}
	return false
}

// Request is a vacation request. RequestedDays is fixed when the dates are set
// so later rule changes never alter a past request.
type Request struct {
	ID            RequestID
	EmployeeID    EmployeeID
	StartDate     time.Time
	EndDate       time.Time
	RequestedDays int
	Period        int
	Reason        Reason
	Status        Status
	Observations  string
	SubmittedAt   time.Time
	ApprovedAt    *time.Time
	RejectedAt    *time.Time
	UpdatedAt     time.Time
}

// Days returns RequestedDays as a decimal for ledger arithmetic.
func (r Request) Days() decimal.Decimal { return decimal.NewFromInt(int64(r.RequestedDays)) }

// =============================================================================
// MOVEMENT - Append-only audit of balance changes
// =============================================================================

type MovementKind string

const (
	MovementDebit  MovementKind = "debit"  // Approved request consumed days
	MovementCredit MovementKind = "credit" // Approved request was removed
)

// Movement records one change to a balance's used days.
type Movement struct {
	ID         string
	EmployeeID EmployeeID
	Year       int
	Kind       MovementKind
	Days       decimal.Decimal
	RequestID  RequestID
	At         time.Time
}

// RequestFilter narrows request listings. Zero fields are ignored.
type RequestFilter struct {
	EmployeeID EmployeeID
	Year       int
	Status     Status
}

func (f RequestFilter) Matches(r Request) bool {
	if f.EmployeeID != "" && r.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Year != 0 && r.Period != f.Year {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}
