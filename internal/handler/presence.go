package handler

import (
	"net/http"

	"github.com/socialhub/social-platform/internal/middleware"
	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/pkg/logger"
)

// PresenceHandler handles online status endpoints.
type PresenceHandler struct {
	service *service.PresenceService
	logger  *logger.Logger
}

// NewPresenceHandler creates a new presence handler.
func NewPresenceHandler(svc *service.PresenceService, log *logger.Logger) *PresenceHandler {
	return &PresenceHandler{service: svc, logger: log}
}

// Set handles POST /api/v1/online-status
func (h *PresenceHandler) Set(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SetPresenceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsOnline == nil {
		writeError(w, http.StatusBadRequest, "isOnline is required")
		return
	}

	profile, err := h.service.SetOnline(ctx, middleware.GetUserID(ctx), *req.IsOnline)
	if err != nil {
		writeServiceError(w, r, h.logger, "update online status", err)
		return
	}

	writeJSON(w, http.StatusOK, model.PresenceUpdateResponse{Result: ok, Data: profile})
}

// Get handles GET /api/v1/online-status?userId=
func (h *PresenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetStatus(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeServiceError(w, r, h.logger, "get online status", err)
		return
	}

	writeJSON(w, http.StatusOK, model.PresenceResponse{Result: ok, Data: status})
}
