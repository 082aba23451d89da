// Package handler provides HTTP handlers for the API.
package handler

import (
	"net/http"

	"github.com/socialhub/social-platform/internal/middleware"
	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/pkg/logger"
)

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	service *service.ConversationService
	logger  *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(svc *service.ConversationService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		service: svc,
		logger:  log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateConversationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	conv, err := h.service.Create(ctx, userID, req.ParticipantID)
	if err != nil {
		writeServiceError(w, r, h.logger, "create conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, model.ConversationResponse{Result: ok, Conversation: conv})
}

// List handles GET /api/v1/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	convs, err := h.service.List(ctx, userID)
	if err != nil {
		writeServiceError(w, r, h.logger, "list conversations", err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListConversationsResponse{
		Result:        ok,
		Conversations: convs,
		CurrentUserID: userID,
	})
}

// Get handles GET /api/v1/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, valid := pathID(w, r, "id")
	if !valid {
		return
	}

	conv, err := h.service.Get(ctx, middleware.GetUserID(ctx), conversationID)
	if err != nil {
		writeServiceError(w, r, h.logger, "get conversation", err)
		return
	}

	writeJSON(w, http.StatusOK, model.ConversationResponse{Result: ok, Conversation: conv})
}
