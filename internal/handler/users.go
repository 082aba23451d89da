package handler

import (
	"net/http"

	"github.com/socialhub/social-platform/internal/middleware"
	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/pkg/logger"
)

// UserHandler handles account endpoints.
type UserHandler struct {
	service *service.UserService
	logger  *logger.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc *service.UserService, log *logger.Logger) *UserHandler {
	return &UserHandler{service: svc, logger: log}
}

// Sync handles POST /api/v1/users/sync
func (h *UserHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SyncUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	profile, err := h.service.Sync(ctx, middleware.GetSubject(ctx), &req)
	if err != nil {
		writeServiceError(w, r, h.logger, "sync user", err)
		return
	}

	writeJSON(w, http.StatusOK, model.UserResponse{Result: ok, User: profile})
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		writeServiceError(w, r, h.logger, "get user", service.ErrUnauthenticated)
		return
	}
	h.write(w, r, userID)
}

// Get handles GET /api/v1/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, valid := pathID(w, r, "id")
	if !valid {
		return
	}
	h.write(w, r, userID)
}

func (h *UserHandler) write(w http.ResponseWriter, r *http.Request, userID string) {
	profile, err := h.service.Get(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "get user", err)
		return
	}
	writeJSON(w, http.StatusOK, model.UserResponse{Result: ok, User: profile})
}
