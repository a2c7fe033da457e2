package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/erazemk/assetdesk/internal/model"
	"github.com/erazemk/assetdesk/internal/notify"
	"github.com/erazemk/assetdesk/internal/store"
)

// SystemHandler serves health, outbox inspection and the notifier
// diagnostic.
type SystemHandler struct {
	DB            *sql.DB
	Notifier      notify.Notifier
	TestRecipient string
	Log           *zap.Logger
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Notifier string `json:"notifier"`
}

// Health handles GET /api/health.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok", Notifier: h.Notifier.Name()}
	if err := h.DB.PingContext(r.Context()); err != nil {
		h.Log.Error("health check: database unreachable", zap.Error(err))
		resp.Status, resp.Database = "degraded", "unreachable"
		jsonResponse(w, http.StatusServiceUnavailable, resp)
		return
	}
	jsonResponse(w, http.StatusOK, resp)
}

// Notifications handles GET /api/notifications?status=.
func (h *SystemHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", model.NotificationPending, model.NotificationSent, model.NotificationFailed:
	default:
		jsonError(w, http.StatusBadRequest, "invalid status "+status)
		return
	}

	notifications, err := store.ListNotifications(r.Context(), h.DB, status)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	jsonResponse(w, http.StatusOK, notifications)
}

// TestEmail handles GET /api/test-email. It verifies the notifier and sends
// a test message, retrying both a few times.
func (h *SystemHandler) TestEmail(w http.ResponseWriter, r *http.Request) {
	to := r.URL.Query().Get("to")
	if to == "" {
		to = h.TestRecipient
	}

	err := notify.Retry(r.Context(), 3, time.Second, h.Notifier.Verify)
	if err != nil {
		h.Log.Error("notifier verification failed", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "verification failed: "+err.Error())
		return
	}

	err = notify.Retry(r.Context(), 3, time.Second, func(ctx context.Context) error {
		return h.Notifier.SendTest(ctx, to)
	})
	if err != nil {
		h.Log.Error("test notification failed", zap.Error(err))
		jsonError(w, http.StatusInternalServerError, "sending failed: "+err.Error())
		return
	}

	h.Log.Info("test notification sent", zap.String("notifier", h.Notifier.Name()), zap.String("to", to))
	jsonResponse(w, http.StatusOK, messageResponse{Message: "test notification sent via " + h.Notifier.Name()})
}
