package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/cache"
	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/store"
)

// Waker is told when new notifications are queued.
type Waker interface {
	Wake()
}

// AssignmentsHandler handles the assignment ledger endpoints.
type AssignmentsHandler struct {
	DB      *sql.DB
	Catalog *cache.Catalog
	Policy  string
	Outbox  Waker
	Log     *zap.Logger
}

type returnRequest struct {
	ActualReturnDate *model.Date `json:"actualReturnDate"`
	Notes            string      `json:"notes"`
}

// List handles GET /api/assignments.
func (h *AssignmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, store.AssignmentFilter{})
}

// Active handles GET /api/assignments/active.
func (h *AssignmentsHandler) Active(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, store.AssignmentFilter{Active: true})
}

// History handles GET /api/assignments/history.
func (h *AssignmentsHandler) History(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, store.AssignmentFilter{History: true})
}

func (h *AssignmentsHandler) list(w http.ResponseWriter, r *http.Request, filter store.AssignmentFilter) {
	assignments, err := store.ListAssignments(r.Context(), h.DB, filter)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, assignments)
}

// Get handles GET /api/assignments/{id}.
func (h *AssignmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, err := store.GetAssignment(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, a)
}

// Create handles POST /api/assignments. The employee is identified by
// their external employeeId and must already exist.
func (h *AssignmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var a model.Assignment
	if err := decodeJSON(r, &a); err != nil {
		writeError(w, h.Log, err)
		return
	}

	employeeID := strings.TrimSpace(a.EmployeeID)
	if employeeID == "" {
		jsonError(w, http.StatusBadRequest, "employeeId: required")
		return
	}
	e, err := store.GetEmployeeByExternalID(r.Context(), h.DB, employeeID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, http.StatusNotFound, "employee "+employeeID+" not found")
		return
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	a.ApplyEmployee(e)

	if a.OperatorName == "" {
		if claims := GetClaims(r.Context()); claims != nil {
			a.OperatorName = claims.Username
		}
	}

	created, err := store.CreateAssignment(r.Context(), h.DB, &a, h.Policy)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.productChanged(r, created)
	if h.Outbox != nil {
		h.Outbox.Wake()
	}

	h.Log.Info("assignment created",
		zap.String("assignment_id", created.ID),
		zap.String("employee_id", created.EmployeeID),
		zap.String("asset_type", string(created.AssetType)),
		zap.String("serial_number", created.SerialNumber),
		zap.Bool("linked", created.ProductID != nil),
	)
	jsonResponse(w, http.StatusCreated, created)
}

// Return handles PATCH /api/assignments/{id}/return. Returning twice
// overwrites the recorded return date.
func (h *AssignmentsHandler) Return(w http.ResponseWriter, r *http.Request) {
	var req returnRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	a, err := store.ReturnAssignment(r.Context(), h.DB, r.PathValue("id"), req.ActualReturnDate, req.Notes)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.productChanged(r, a)

	h.Log.Info("assignment returned",
		zap.String("assignment_id", a.ID),
		zap.Time("returned", a.ActualReturnDate.Time),
	)
	jsonResponse(w, http.StatusOK, a)
}

// Update handles PATCH /api/assignments/{id}.
func (h *AssignmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	patch, err := readPatch(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	a, err := store.UpdateAssignment(r.Context(), h.DB, r.PathValue("id"), patch, h.Policy)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.productChanged(r, a)
	jsonResponse(w, http.StatusOK, a)
}

// Delete handles DELETE /api/assignments/{id}.
func (h *AssignmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := store.DeleteAssignment(r.Context(), h.DB, id); err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Log.Info("assignment deleted", zap.String("assignment_id", id))
	jsonResponse(w, http.StatusOK, messageResponse{Message: "assignment deleted"})
}

// productChanged drops the cached copy of a product whose status an
// assignment change may have touched.
func (h *AssignmentsHandler) productChanged(r *http.Request, a *model.Assignment) {
	if a.ProductID != nil {
		h.Catalog.Invalidate(r.Context(), *a.ProductID)
	}
}
