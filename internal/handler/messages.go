package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/socialhub/social-platform/internal/middleware"
	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	service *service.MessageService
	logger  *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(svc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		service: svc,
		logger:  log,
	}
}

// List handles GET /api/v1/conversations/{id}/messages. Listing marks the
// conversation read for the caller.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, valid := pathID(w, r, "id")
	if !valid {
		return
	}

	msgs, err := h.service.ListAndAcknowledge(ctx, middleware.GetUserID(ctx), conversationID)
	if err != nil {
		writeServiceError(w, r, h.logger, "list messages", err)
		return
	}

	writeJSON(w, http.StatusOK, model.ListMessagesResponse{Result: ok, Messages: msgs})
}

// Send handles POST /api/v1/conversations/{id}/messages. The id is passed
// through unchecked so that content errors are reported before lookups.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req model.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.service.Send(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"), req.Content)
	if err != nil {
		writeServiceError(w, r, h.logger, "send message", err)
		return
	}

	writeJSON(w, http.StatusCreated, model.MessageResponse{Result: ok, Message: msg})
}

// Read handles POST /api/v1/conversations/{id}/read
func (h *MessageHandler) Read(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conversationID, valid := pathID(w, r, "id")
	if !valid {
		return
	}

	var req model.AcknowledgeReadRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	var until time.Time
	if req.Until != nil {
		until = *req.Until
	}

	marker, err := h.service.AcknowledgeRead(ctx, middleware.GetUserID(ctx), conversationID, until)
	if err != nil {
		writeServiceError(w, r, h.logger, "acknowledge read", err)
		return
	}

	writeJSON(w, http.StatusOK, model.AcknowledgeReadResponse{Result: ok, LastReadAt: marker})
}

// UnreadCount handles GET /api/v1/messages/unread-count. Callers without an
// account get zero.
func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	count := h.service.CountUnread(ctx, middleware.GetUserID(ctx))
	writeJSON(w, http.StatusOK, model.CountResponse{Result: ok, Count: count})
}
