/*
handlers.go - HTTP API handlers for the vacation engine

PURPOSE:
  Exposes employees, balances and the vacation request lifecycle via REST.
  Handles HTTP request/response and JSON serialization, and delegates every
  rule to the vacation and report packages.

ENDPOINTS:
  Employees:
    GET    /api/employees                          List all employees
    POST   /api/employees                          Create employee
    GET    /api/employees/{id}                     Get employee details
    GET    /api/employees/{id}/balances/{year}     Balance summary for a year
    GET    /api/employees/{id}/movements/{year}    Ledger audit for a year
    GET    /api/employees/{id}/requests?year=      Employee's requests
    POST   /api/employees/{id}/requests            Submit vacation request

  Requests:
    GET    /api/requests?status=&employee_id=&year=  Filtered listing
    GET    /api/requests/{id}                        Get request
    PUT    /api/requests/{id}                        Edit pending request
    DELETE /api/requests/{id}                        Delete (credits if approved)
    POST   /api/requests/{id}/approve                Approve (debits balance)
    POST   /api/requests/{id}/reject                 Reject
    GET    /api/requests/{id}/certificate            PDF certificate

  Calculator:
    GET    /api/entitlement?hire_date=&year=        Entitlement for a year

  Scenarios:
    GET    /api/scenarios                           List demo scenarios
    POST   /api/scenarios/load                      Load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with a status derived from the error kind:
  - 400: Validation errors, invalid date range
  - 404: Employee or request not found
  - 409: Insufficient balance, invalid status transition
  - 500: Storage failures

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/warp/vacation-engine/report"
	"github.com/warp/vacation-engine/vacation"
	"go.uber.org/zap"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// EmployeeStore is the employee directory plus the writes the API needs.
type EmployeeStore interface {
	vacation.EmployeeDirectory
	SaveEmployee(ctx context.Context, e vacation.Employee) error
	ListEmployees(ctx context.Context) ([]vacation.Employee, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Employees EmployeeStore
	Requests  *vacation.Manager
	Reports   *report.Reporter
	Renderer  report.Renderer

	log *zap.Logger
}

// NewHandler creates a handler. A nil logger disables logging.
func NewHandler(employees EmployeeStore, requests *vacation.Manager, reports *report.Reporter, renderer report.Renderer, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if renderer == nil {
		renderer = report.PDFRenderer{}
	}
	return &Handler{
		Employees: employees,
		Requests:  requests,
		Reports:   reports,
		Renderer:  renderer,
		log:       log.Named("api"),
	}
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Employees.ListEmployees(r.Context())
	if err != nil {
		h.writeDomainError(w, r, &vacation.StorageError{Op: "list employees", Err: err})
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEmployee returns a single employee.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	id := vacation.EmployeeID(chi.URLParam(r, "id"))

	emp, err := h.Employees.Employee(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// CreateEmployee creates or replaces an employee.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	emp := vacation.Employee{
		ID:   vacation.EmployeeID(req.ID),
		Name: req.Name,
		DNI:  req.DNI,
	}
	if emp.ID == "" {
		emp.ID = vacation.EmployeeID(uuid.NewString())
	}
	if req.HireDate != "" {
		hireDate, err := vacation.ParseDate(req.HireDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
			return
		}
		emp.HireDate = hireDate
	}

	if err := h.Employees.SaveEmployee(r.Context(), emp); err != nil {
		h.writeDomainError(w, r, &vacation.StorageError{Op: "save employee", Err: err})
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetBalance returns the balance summary of an employee for a year.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id := vacation.EmployeeID(chi.URLParam(r, "id"))
	year, ok := yearParam(w, chi.URLParam(r, "year"))
	if !ok {
		return
	}

	summary, err := h.Reports.BalanceSummary(r.Context(), id, year)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// GetMovements returns the ledger audit entries of an employee for a year.
func (h *Handler) GetMovements(w http.ResponseWriter, r *http.Request) {
	id := vacation.EmployeeID(chi.URLParam(r, "id"))
	year, ok := yearParam(w, chi.URLParam(r, "year"))
	if !ok {
		return
	}

	movements, err := h.Requests.Ledger().Movements(r.Context(), id, year)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	dtos := make([]MovementDTO, len(movements))
	for i, m := range movements {
		dtos[i] = toMovementDTO(m)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetEntitlement evaluates the entitlement rules for a hire date and year.
func (h *Handler) GetEntitlement(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hireDate, err := vacation.ParseDate(q.Get("hire_date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hire_date format (use YYYY-MM-DD)", err)
		return
	}
	year, ok := yearParam(w, q.Get("year"))
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, EntitlementDTO{
		HireDate:       hireDate.Format(vacation.DateLayout),
		Year:           year,
		SeniorityYears: vacation.SeniorityYears(hireDate, vacation.YearEnd(year)),
		Days:           vacation.Entitlement(hireDate, year),
	})
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// ListEmployeeRequests lists an employee's requests, optionally for one year.
func (h *Handler) ListEmployeeRequests(w http.ResponseWriter, r *http.Request) {
	id := vacation.EmployeeID(chi.URLParam(r, "id"))
	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		var ok bool
		if year, ok = yearParam(w, v); !ok {
			return
		}
	}

	summaries, err := h.Reports.RequestSummaries(r.Context(), id, year)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

// SubmitRequest creates a pending vacation request for an employee.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	id := vacation.EmployeeID(chi.URLParam(r, "id"))

	var req SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := vacation.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
		return
	}
	end, err := vacation.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
		return
	}
	period := req.Period
	if period == 0 {
		period = start.Year()
	}

	created, err := h.Requests.Create(r.Context(), vacation.CreateInput{
		EmployeeID:   id,
		StartDate:    start,
		EndDate:      end,
		Period:       period,
		Reason:       vacation.Reason(req.Reason),
		Observations: req.Observations,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(created))
}

// ListRequests lists requests filtered by status, employee and year.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := vacation.RequestFilter{
		EmployeeID: vacation.EmployeeID(q.Get("employee_id")),
		Status:     vacation.Status(q.Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid status", nil)
		return
	}
	if v := q.Get("year"); v != "" {
		year, ok := yearParam(w, v)
		if !ok {
			return
		}
		filter.Year = year
	}

	requests, err := h.Requests.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// GetRequest returns a single request.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Requests.Get(r.Context(), requestID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

// UpdateRequest edits a pending request.
func (h *Handler) UpdateRequest(w http.ResponseWriter, r *http.Request) {
	var body UpdateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	in := vacation.UpdateInput{
		Period:       body.Period,
		Observations: body.Observations,
	}
	if body.StartDate != nil {
		start, err := vacation.ParseDate(*body.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date format (use YYYY-MM-DD)", err)
			return
		}
		in.StartDate = &start
	}
	if body.EndDate != nil {
		end, err := vacation.ParseDate(*body.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date format (use YYYY-MM-DD)", err)
			return
		}
		in.EndDate = &end
	}
	if body.Reason != nil {
		reason := vacation.Reason(*body.Reason)
		in.Reason = &reason
	}

	updated, err := h.Requests.Update(r.Context(), requestID(r), in)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(updated))
}

// DeleteRequest removes a request, crediting the balance if it was approved.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	if err := h.Requests.Delete(r.Context(), requestID(r)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApproveRequest approves a pending request and debits the balance.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	approved, err := h.Requests.Approve(r.Context(), requestID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(approved))
}

// RejectRequest rejects a pending request.
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	rejected, err := h.Requests.Reject(r.Context(), requestID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(rejected))
}

// GetCertificate renders the certificate of an approved request.
func (h *Handler) GetCertificate(w http.ResponseWriter, r *http.Request) {
	cert, err := h.Reports.Certificate(r.Context(), requestID(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	doc, err := h.Renderer.Render(r.Context(), cert)
	if err != nil {
		h.log.Error("certificate rendering failed",
			zap.String("request_id", string(cert.RequestID)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to render certificate", err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		h.log.Debug("certificate write failed",
			zap.String("request_id", string(cert.RequestID)), zap.Error(err))
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps a vacation error kind to its HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: err.Error(),
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, vacation.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, vacation.ErrInvalidDateRange):
		return http.StatusBadRequest, "invalid_date_range"
	case errors.Is(err, vacation.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, vacation.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, vacation.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	default:
		return http.StatusInternalServerError, "storage_failure"
	}
}

func requestID(r *http.Request) vacation.RequestID {
	return vacation.RequestID(chi.URLParam(r, "id"))
}

func yearParam(w http.ResponseWriter, v string) (int, bool) {
	year, err := strconv.Atoi(v)
	if err != nil || year <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return 0, false
	}
	return year, true
}
