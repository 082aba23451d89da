package handler

import (
	"net/http"

	"github.com/socialhub/social-platform/internal/middleware"
	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/pkg/logger"
)

// maxMarkReadIDs bounds one mark-read request.
const maxMarkReadIDs = 500

// NotificationHandler handles notification endpoints.
type NotificationHandler struct {
	service *service.NotificationService
	logger  *logger.Logger
}

// NewNotificationHandler creates a new notification handler.
func NewNotificationHandler(svc *service.NotificationService, log *logger.Logger) *NotificationHandler {
	return &NotificationHandler{service: svc, logger: log}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	notifications, err := h.service.List(ctx, middleware.GetUserID(ctx))
	if err != nil {
		writeServiceError(w, r, h.logger, "list notifications", err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListNotificationsResponse{Result: ok, Notifications: notifications})
}

// MarkRead handles POST /api/v1/notifications/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.MarkNotificationsReadRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) > maxMarkReadIDs {
		writeError(w, http.StatusBadRequest, "too many ids")
		return
	}

	updated, err := h.service.MarkRead(ctx, middleware.GetUserID(ctx), req.IDs)
	if err != nil {
		writeServiceError(w, r, h.logger, "mark notifications read", err)
		return
	}

	writeJSON(w, http.StatusOK, model.MarkNotificationsReadResponse{Result: ok, Updated: updated})
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count := h.service.CountUnread(ctx, middleware.GetUserID(ctx))
	writeJSON(w, http.StatusOK, model.CountResponse{Result: ok, Count: count})
}
