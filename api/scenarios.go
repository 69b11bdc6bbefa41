/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the datastore with employees
	(and optionally requests) showing each entitlement tier and the request
	lifecycle.

AVAILABLE SCENARIOS:
	seniority-tiers:     One employee per seniority bracket (14/21/28/35 days)
	first-year-hire:     Employees hired this year, before and after 6 months
	vacation-lifecycle:  An employee with an approved and a pending request

HOW SCENARIOS WORK:
 1. Upsert the scenario's employees (fixed ids, so reloading is harmless)
 2. Optionally submit and approve requests through the Manager, only when
    the employee has no requests yet for the period

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "seniority-tiers"}

NOTE:
	Hire dates are relative to the current year. Only use in development/demo
	environments.

SEE ALSO:
  - handlers.go: shared helpers
  - vacation/entitlement.go: the tiers these scenarios demonstrate
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/vacation-engine/vacation"
	"go.uber.org/zap"
)

// ScenarioDTO describes a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "seniority-tiers",
		Name:        "Seniority Tiers",
		Description: "Employees with 3, 8, 15 and 25 years of service",
	},
	{
		ID:          "first-year-hire",
		Name:        "First-Year Hires",
		Description: "Proportional days for a recent hire, flat 14 after six months",
	},
	{
		ID:          "vacation-lifecycle",
		Name:        "Vacation Lifecycle",
		Description: "One approved and one pending request for the current year",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	year := time.Now().UTC().Year()
	employees, err := h.loadScenario(r.Context(), req.ScenarioID, year)
	if err != nil {
		if err == errUnknownScenario {
			writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%q", req.ScenarioID))
			return
		}
		h.writeDomainError(w, r, err)
		return
	}

	h.log.Info("scenario loaded",
		zap.String("scenario_id", req.ScenarioID), zap.Int("employees", len(employees)))

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario_id": req.ScenarioID,
		"employees":   dtos,
	})
}

var errUnknownScenario = fmt.Errorf("unknown scenario")

func (h *Handler) loadScenario(ctx context.Context, id string, year int) ([]vacation.Employee, error) {
	switch id {
	case "seniority-tiers":
		return h.seedEmployees(ctx, seniorityTierEmployees(year))
	case "first-year-hire":
		return h.seedEmployees(ctx, firstYearEmployees(year))
	case "vacation-lifecycle":
		return h.loadLifecycleScenario(ctx, year)
	default:
		return nil, errUnknownScenario
	}
}

// =============================================================================
// LOADERS
// =============================================================================

func seniorityTierEmployees(year int) []vacation.Employee {
	return []vacation.Employee{
		{ID: "demo-tier-14", Name: "Ana Tier14", DNI: "30111222", HireDate: vacation.NewDate(year-3, time.March, 1)},
		{ID: "demo-tier-21", Name: "Bruno Tier21", DNI: "28111333", HireDate: vacation.NewDate(year-8, time.June, 15)},
		{ID: "demo-tier-28", Name: "Carla Tier28", DNI: "25111444", HireDate: vacation.NewDate(year-15, time.January, 10)},
		{ID: "demo-tier-35", Name: "Diego Tier35", DNI: "20111555", HireDate: vacation.NewDate(year-25, time.September, 1)},
	}
}

func firstYearEmployees(year int) []vacation.Employee {
	return []vacation.Employee{
		// 62 days worked by Dec 31: round(62 / 20, 2) = 3.1
		{ID: "demo-recent-hire", Name: "Elena Recent", DNI: "40111666", HireDate: vacation.NewDate(year, time.October, 31)},
		{ID: "demo-early-hire", Name: "Franco Early", DNI: "40111777", HireDate: vacation.NewDate(year, time.February, 1)},
	}
}

func (h *Handler) loadLifecycleScenario(ctx context.Context, year int) ([]vacation.Employee, error) {
	emp := vacation.Employee{
		ID:       "demo-lifecycle",
		Name:     "Gabriela Lifecycle",
		DNI:      "27111888",
		HireDate: vacation.NewDate(year-6, time.April, 4),
	}
	if _, err := h.seedEmployees(ctx, []vacation.Employee{emp}); err != nil {
		return nil, err
	}

	existing, err := h.Requests.List(ctx, vacation.RequestFilter{EmployeeID: emp.ID, Year: year})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return []vacation.Employee{emp}, nil
	}

	approved, err := h.Requests.Create(ctx, vacation.CreateInput{
		EmployeeID: emp.ID,
		StartDate:  vacation.NewDate(year, time.January, 8),
		EndDate:    vacation.NewDate(year, time.January, 17),
		Period:     year,
	})
	if err != nil {
		return nil, err
	}
	if _, err := h.Requests.Approve(ctx, approved.ID); err != nil {
		return nil, err
	}

	_, err = h.Requests.Create(ctx, vacation.CreateInput{
		EmployeeID:   emp.ID,
		StartDate:    vacation.NewDate(year, time.July, 1),
		EndDate:      vacation.NewDate(year, time.July, 5),
		Period:       year,
		Observations: "Winter break",
	})
	if err != nil {
		return nil, err
	}
	return []vacation.Employee{emp}, nil
}

func (h *Handler) seedEmployees(ctx context.Context, employees []vacation.Employee) ([]vacation.Employee, error) {
	for _, e := range employees {
		if err := h.Employees.SaveEmployee(ctx, e); err != nil {
			return nil, &vacation.StorageError{Op: "save employee", Err: err}
		}
	}
	return employees, nil
}
