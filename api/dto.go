/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the vacation domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  Calendar dates travel as "YYYY-MM-DD" strings; timestamps as RFC3339.
  Day amounts are decimals encoded as JSON strings ("14", "6.5").

VALIDATION:
  Validation is done in handlers and in the vacation package, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - report/report.go: BalanceSummary and RequestSummary are returned as-is
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/vacation-engine/vacation"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DNI      string `json:"dni,omitempty"`
	HireDate string `json:"hire_date,omitempty"`
}

// CreateEmployeeRequest is the request to create an employee.
// An empty ID is replaced by a generated one.
type CreateEmployeeRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DNI      string `json:"dni"`
	HireDate string `json:"hire_date"`
}

// =============================================================================
// VACATION REQUESTS
// =============================================================================

// SubmitRequestDTO is the body of POST /api/employees/{id}/requests.
// Period defaults to the start date's year.
type SubmitRequestDTO struct {
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Period       int    `json:"period,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Observations string `json:"observations,omitempty"`
}

// UpdateRequestDTO is the body of PUT /api/requests/{id}. Omitted fields
// are left unchanged.
type UpdateRequestDTO struct {
	StartDate    *string `json:"start_date,omitempty"`
	EndDate      *string `json:"end_date,omitempty"`
	Period       *int    `json:"period,omitempty"`
	Reason       *string `json:"reason,omitempty"`
	Observations *string `json:"observations,omitempty"`
}

// RequestDTO represents a vacation request in API responses.
type RequestDTO struct {
	ID            string     `json:"id"`
	EmployeeID    string     `json:"employee_id"`
	StartDate     string     `json:"start_date"`
	EndDate       string     `json:"end_date"`
	RequestedDays int        `json:"requested_days"`
	Period        int        `json:"period"`
	Reason        string     `json:"reason"`
	Status        string     `json:"status"`
	Observations  string     `json:"observations,omitempty"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	RejectedAt    *time.Time `json:"rejected_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// =============================================================================
// LEDGER
// =============================================================================

// MovementDTO is one ledger audit entry.
type MovementDTO struct {
	ID        string          `json:"id"`
	Kind      string          `json:"kind"`
	Days      decimal.Decimal `json:"days"`
	RequestID string          `json:"request_id,omitempty"`
	At        time.Time       `json:"at"`
}

// EntitlementDTO is the response of GET /api/entitlement.
type EntitlementDTO struct {
	HireDate       string          `json:"hire_date"`
	Year           int             `json:"year"`
	SeniorityYears int64           `json:"seniority_years"`
	Days           decimal.Decimal `json:"days"`
}

// ErrorResponse is returned for all failed requests.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e vacation.Employee) EmployeeDTO {
	dto := EmployeeDTO{ID: string(e.ID), Name: e.Name, DNI: e.DNI}
	if !e.HireDate.IsZero() {
		dto.HireDate = e.HireDate.Format(vacation.DateLayout)
	}
	return dto
}

func toRequestDTO(r vacation.Request) RequestDTO {
	return RequestDTO{
		ID:            string(r.ID),
		EmployeeID:    string(r.EmployeeID),
		StartDate:     r.StartDate.Format(vacation.DateLayout),
		EndDate:       r.EndDate.Format(vacation.DateLayout),
		RequestedDays: r.RequestedDays,
		Period:        r.Period,
		Reason:        string(r.Reason),
		Status:        string(r.Status),
		Observations:  r.Observations,
		SubmittedAt:   r.SubmittedAt,
		ApprovedAt:    r.ApprovedAt,
		RejectedAt:    r.RejectedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func toRequestDTOs(rs []vacation.Request) []RequestDTO {
	dtos := make([]RequestDTO, len(rs))
	for i, r := range rs {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toMovementDTO(m vacation.Movement) MovementDTO {
	return MovementDTO{
		ID:        m.ID,
		Kind:      string(m.Kind),
		Days:      m.Days,
		RequestID: string(m.RequestID),
		At:        m.At,
	}
}
