package api

import (
	"database/sql"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/auth"
	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/store"
)

// OperatorsHandler handles operator management endpoints (admin only).
type OperatorsHandler struct {
	DB  *sql.DB
	Log *zap.Logger
}

type createOperatorRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type updateOperatorRequest struct {
	Role string `json:"role"`
}

type resetPasswordRequest struct {
	Password string `json:"password"`
}

func operatorID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		return 0, model.Invalid("id", "invalid operator id")
	}
	return id, nil
}

// List handles GET /api/operators.
func (h *OperatorsHandler) List(w http.ResponseWriter, r *http.Request) {
	ops, err := store.ListOperators(r.Context(), h.DB)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, ops)
}

// Create handles POST /api/operators.
func (h *OperatorsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOperatorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}

	if req.Username == "" || req.Password == "" || req.Role == "" {
		jsonError(w, http.StatusBadRequest, "username, password and role required")
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	op, err := store.CreateOperator(r.Context(), h.DB, req.Username, hash, req.Role)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Log.Info("operator created",
		zap.String("by", GetClaims(r.Context()).Username),
		zap.String("operator", op.Username),
		zap.String("role", op.Role),
	)
	jsonResponse(w, http.StatusCreated, op)
}

// Get handles GET /api/operators/{id}.
func (h *OperatorsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := operatorID(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	op, err := store.GetOperator(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, op)
}

// Update handles PUT /api/operators/{id}.
func (h *OperatorsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := operatorID(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	var req updateOperatorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if !model.ValidRole(req.Role) {
		jsonError(w, http.StatusBadRequest, "invalid role")
		return
	}

	if err := store.UpdateOperatorRole(r.Context(), h.DB, id, req.Role); err != nil {
		writeError(w, h.Log, err)
		return
	}

	op, err := store.GetOperator(r.Context(), h.DB, id)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	h.Log.Info("operator role updated",
		zap.String("by", GetClaims(r.Context()).Username),
		zap.String("operator", op.Username),
		zap.String("role", op.Role),
	)
	jsonResponse(w, http.StatusOK, op)
}

// ResetPassword handles PUT /api/operators/{id}/password.
func (h *OperatorsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := operatorID(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.Log, err)
		return
	}
	if err := model.ValidatePassword(req.Password); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	if err := store.UpdateOperatorPassword(r.Context(), h.DB, id, hash); err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Log.Info("operator password reset",
		zap.String("by", GetClaims(r.Context()).Username),
		zap.Int64("operator_id", id),
	)
	jsonResponse(w, http.StatusOK, messageResponse{Message: "password reset"})
}

// Delete handles DELETE /api/operators/{id}.
func (h *OperatorsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := operatorID(r)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}

	claims := GetClaims(r.Context())
	if claims.OperatorID == id {
		jsonError(w, http.StatusBadRequest, "cannot delete yourself")
		return
	}

	if err := store.DeleteOperator(r.Context(), h.DB, id); err != nil {
		writeError(w, h.Log, err)
		return
	}

	h.Log.Info("operator deleted", zap.String("by", claims.Username), zap.Int64("operator_id", id))
	jsonResponse(w, http.StatusOK, messageResponse{Message: "operator deleted"})
}
