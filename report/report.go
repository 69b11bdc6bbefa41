/*
Package report builds read-only projections of vacation data for display and
for certificate documents.

PURPOSE:
  The HTTP layer and any document generator read balances and requests through
  here instead of stitching ledger and store calls together themselves. Nothing
  in this package writes.

PROJECTIONS:
  BalanceSummary     one (employee, year) balance plus days still pending
  RequestSummaries   an employee's requests for a year, employee name inlined
  Certificate        the facts printed on an approved request's certificate

SEE ALSO:
  - render.go: Renderer and the PDF implementation
  - vacation/ledger.go: source of balance figures
*/
package report

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/vacation-engine/vacation"
)

// BalanceSummary is a balance as shown to a person.
type BalanceSummary struct {
	EmployeeID   vacation.EmployeeID `json:"employee_id"`
	EmployeeName string              `json:"employee_name"`
	Year         int                 `json:"year"`
	Total        decimal.Decimal     `json:"total"`
	Used         decimal.Decimal     `json:"used"`
	Available    decimal.Decimal     `json:"available"`
	PendingDays  decimal.Decimal     `json:"pending_days"`
}

// RequestSummary is one request row with the employee name denormalized.
type RequestSummary struct {
	ID            vacation.RequestID  `json:"id"`
	EmployeeID    vacation.EmployeeID `json:"employee_id"`
	EmployeeName  string              `json:"employee_name"`
	StartDate     string              `json:"start_date"`
	EndDate       string              `json:"end_date"`
	RequestedDays int                 `json:"requested_days"`
	Period        int                 `json:"period"`
	Reason        vacation.Reason     `json:"reason"`
	Status        vacation.Status     `json:"status"`
	SubmittedAt   time.Time           `json:"submitted_at"`
}

// Certificate holds what is printed on a vacation certificate.
type Certificate struct {
	RequestID    vacation.RequestID `json:"request_id"`
	EmployeeName string             `json:"employee_name"`
	DNI          string             `json:"dni"`
	StartDate    string             `json:"start_date"`
	EndDate      string             `json:"end_date"`
	Days         int                `json:"days"`
	Reason       vacation.Reason    `json:"reason"`
	Period       int                `json:"period"`
	ApprovedAt   time.Time          `json:"approved_at"`
}

// Reporter reads through a store and its ledger.
type Reporter struct {
	store  vacation.Store
	ledger *vacation.Ledger
}

func New(store vacation.Store, ledger *vacation.Ledger) *Reporter {
	return &Reporter{store: store, ledger: ledger}
}

// BalanceSummary reports the balance for (employeeID, year). The balance is
// synthesized when no row exists; PendingDays is informational only.
func (r *Reporter) BalanceSummary(ctx context.Context, employeeID vacation.EmployeeID, year int) (BalanceSummary, error) {
	b, err := r.ledger.Balance(ctx, employeeID, year)
	if err != nil {
		return BalanceSummary{}, err
	}
	emp, err := r.employee(ctx, employeeID)
	if err != nil {
		return BalanceSummary{}, err
	}

	pending, err := r.store.ListRequests(ctx, vacation.RequestFilter{
		EmployeeID: employeeID,
		Year:       year,
		Status:     vacation.StatusPending,
	})
	if err != nil {
		return BalanceSummary{}, &vacation.StorageError{Op: "list requests", Err: err}
	}
	pendingDays := decimal.Zero
	for _, req := range pending {
		pendingDays = pendingDays.Add(req.Days())
	}

	return BalanceSummary{
		EmployeeID:   employeeID,
		EmployeeName: emp.Name,
		Year:         year,
		Total:        b.TotalDays,
		Used:         b.UsedDays,
		Available:    b.AvailableDays(),
		PendingDays:  pendingDays,
	}, nil
}

// RequestSummaries lists an employee's requests for a year, oldest start first.
// A zero year lists every period.
func (r *Reporter) RequestSummaries(ctx context.Context, employeeID vacation.EmployeeID, year int) ([]RequestSummary, error) {
	emp, err := r.employee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	requests, err := r.store.ListRequests(ctx, vacation.RequestFilter{EmployeeID: employeeID, Year: year})
	if err != nil {
		return nil, &vacation.StorageError{Op: "list requests", Err: err}
	}

	out := make([]RequestSummary, 0, len(requests))
	for _, req := range requests {
		out = append(out, RequestSummary{
			ID:            req.ID,
			EmployeeID:    req.EmployeeID,
			EmployeeName:  emp.Name,
			StartDate:     req.StartDate.Format(vacation.DateLayout),
			EndDate:       req.EndDate.Format(vacation.DateLayout),
			RequestedDays: req.RequestedDays,
			Period:        req.Period,
			Reason:        req.Reason,
			Status:        req.Status,
			SubmittedAt:   req.SubmittedAt,
		})
	}
	return out, nil
}

// Certificate returns the certificate facts for an approved request.
func (r *Reporter) Certificate(ctx context.Context, id vacation.RequestID) (Certificate, error) {
	req, err := r.store.GetRequest(ctx, id)
	if err != nil {
		if vacation.IsNotFound(err) {
			return Certificate{}, err
		}
		return Certificate{}, &vacation.StorageError{Op: "get request", Err: err}
	}
	if req.Status != vacation.StatusApproved {
		return Certificate{}, &vacation.InvalidTransitionError{
			RequestID: id,
			From:      req.Status,
			Action:    "certify",
		}
	}
	emp, err := r.employee(ctx, req.EmployeeID)
	if err != nil {
		return Certificate{}, err
	}

	cert := Certificate{
		RequestID:    req.ID,
		EmployeeName: emp.Name,
		DNI:          emp.DNI,
		StartDate:    req.StartDate.Format(vacation.DateLayout),
		EndDate:      req.EndDate.Format(vacation.DateLayout),
		Days:         req.RequestedDays,
		Reason:       req.Reason,
		Period:       req.Period,
	}
	if req.ApprovedAt != nil {
		cert.ApprovedAt = *req.ApprovedAt
	}
	return cert, nil
}

func (r *Reporter) employee(ctx context.Context, id vacation.EmployeeID) (vacation.Employee, error) {
	emp, err := r.store.Employee(ctx, id)
	if err != nil {
		if vacation.IsNotFound(err) {
			return vacation.Employee{}, err
		}
		return vacation.Employee{}, &vacation.StorageError{Op: "get employee", Err: err}
	}
	return emp, nil
}
