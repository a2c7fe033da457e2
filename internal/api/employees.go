package api

import (
	"database/sql"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/store"
)

// EmployeesHandler handles the employee directory endpoints.
type EmployeesHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

// List handles GET /api/employees.
func (h *EmployeesHandler) List(w http.ResponseWriter, r *http.Request) {
	employees, err := store.ListEmployees(r.Context(), h.DB)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, employees)
}

// Create handles POST /api/employees.
func (h *EmployeesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var e model.Employee
	if err := decodeJSON(r, &e); err != nil {
		writeError(w, h.Log, err)
		return
	}

	created, err := store.CreateEmployee(r.Context(), h.DB, &e)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Log.Info("employee created", zap.String("id", created.ID), zap.String("employee_id", created.EmployeeID))
	jsonResponse(w, http.StatusCreated, created)
}

// Get handles GET /api/employees/{id}.
func (h *EmployeesHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := store.GetEmployee(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, e)
}

// GetByEmployeeID handles GET /api/employees/employeeId/{empId}.
func (h *EmployeesHandler) GetByEmployeeID(w http.ResponseWriter, r *http.Request) {
	e, err := store.GetEmployeeByExternalID(r.Context(), h.DB, r.PathValue("empId"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, e)
}

// Update handles PATCH /api/employees/{id}.
func (h *EmployeesHandler) Update(w http.ResponseWriter, r *http.Request) {
	patch, err := readPatch(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	e, err := store.UpdateEmployee(r.Context(), h.DB, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, e)
}

// Delete handles DELETE /api/employees/{id}. Assignments keep their copy of
// the employee's details.
func (h *EmployeesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := store.DeleteEmployee(r.Context(), h.DB, id); err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Log.Info("employee deleted", zap.String("id", id))
	jsonResponse(w, http.StatusOK, messageResponse{Message: "employee deleted"})
}

// Assignments handles GET /api/employees/{id}/assignments.
func (h *EmployeesHandler) Assignments(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := store.GetEmployee(r.Context(), h.DB, id); err != nil {
		writeError(w, h.Log, err)
		return
	}

	assignments, err := store.ListAssignments(r.Context(), h.DB, store.AssignmentFilter{EmployeeRef: id})
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, assignments)
}

// Subresource serves GET /api/employees/{first}/{second}. Lookup by
// external id (employeeId/{empId}) and an employee's assignments
// ({id}/assignments) share that shape, so one pattern routes both.
func (h *EmployeesHandler) Subresource(w http.ResponseWriter, r *http.Request) {
	first, second := r.PathValue("first"), r.PathValue("second")
	switch {
	case first == "employeeId":
		r.SetPathValue("empId", second)
		h.GetByEmployeeID(w, r)
	case second == "assignments":
		r.SetPathValue("id", first)
		h.Assignments(w, r)
	default:
		jsonError(w, http.StatusNotFound, fmt.Sprintf("unknown employee subresource %q", second))
	}
}
