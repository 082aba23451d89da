package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/socialhub/social-platform/internal/middleware"
	"github.com/socialhub/social-platform/internal/model"
	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/internal/store/memstore"
	"github.com/socialhub/social-platform/pkg/logger"
)

const testSecret = "handler-test-secret"

type testServer struct {
	handler http.Handler
	store   *memstore.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := logger.NewNop()
	st := memstore.New()

	users := service.NewUserService(st, log)
	conversations := service.NewConversationService(st, log)
	notifications := service.NewNotificationService(st, nil, log)
	messages := service.NewMessageService(st, notifications, nil, log)
	presence := service.NewPresenceService(st, nil, 0, log)

	h := NewRouter(RouterConfig{
		Logger:             log,
		Resolver:           users,
		JWTSecret:          testSecret,
		RateLimitRequests:  1000,
		RateLimitWindow:    time.Minute,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		Health:             NewHealthHandler(Check{Name: "database", Pinger: st}),
		Users:              NewUserHandler(users, log),
		Conversations:      NewConversationHandler(conversations, log),
		Messages:           NewMessageHandler(messages, log),
		Presence:           NewPresenceHandler(presence, log),
		Notifications:      NewNotificationHandler(notifications, log),
	})

	return &testServer{handler: h, store: st}
}

func token(t *testing.T, subject string) string {
	t.Helper()
	claims := middleware.Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

// do sends a request as subject (anonymous when empty) and decodes the body into out.
func (s *testServer) do(t *testing.T, method, path, subject string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if subject != "" {
		req.Header.Set("Authorization", "Bearer "+token(t, subject))
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	if out != nil {
		if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w
}

func (s *testServer) signUp(t *testing.T, subject, username string) *model.Profile {
	t.Helper()
	var resp model.UserResponse
	w := s.do(t, http.MethodPost, "/api/v1/users/sync", subject, model.SyncUserRequest{Username: username}, &resp)
	if w.Code != http.StatusOK || !resp.Success || resp.User == nil {
		t.Fatalf("sync %s: %d %s", username, w.Code, w.Body.String())
	}
	return resp.User
}

func (s *testServer) startConversation(t *testing.T, subject, otherID string) *model.Conversation {
	t.Helper()
	var resp model.ConversationResponse
	w := s.do(t, http.MethodPost, "/api/v1/conversations", subject, model.CreateConversationRequest{ParticipantID: otherID}, &resp)
	if w.Code != http.StatusOK || resp.Conversation == nil {
		t.Fatalf("create conversation: %d %s", w.Code, w.Body.String())
	}
	return resp.Conversation
}

func (s *testServer) unread(t *testing.T, subject string) int64 {
	t.Helper()
	var resp model.CountResponse
	w := s.do(t, http.MethodGet, "/api/v1/messages/unread-count", subject, nil, &resp)
	if w.Code != http.StatusOK || !resp.Success {
		t.Fatalf("unread count: %d %s", w.Code, w.Body.String())
	}
	return resp.Count
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/health", "/ready"} {
		w := s.do(t, http.MethodGet, path, "", nil, nil)
		if w.Code != http.StatusOK {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
	if w := s.do(t, http.MethodGet, "/metrics", "", nil, nil); w.Code != http.StatusOK {
		t.Errorf("/metrics status = %d", w.Code)
	}
}

type downPinger struct{}

func (downPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func TestReadyReportsFailingCheck(t *testing.T) {
	h := NewHealthHandler(Check{Name: "cache", Pinger: downPinger{}})

	w := httptest.NewRecorder()
	h.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cache unreachable") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestAPIRequiresToken(t *testing.T) {
	s := newTestServer(t)

	var resp model.Result
	w := s.do(t, http.MethodGet, "/api/v1/conversations", "", nil, &resp)
	if w.Code != http.StatusUnauthorized || resp.Success || resp.Error == "" {
		t.Errorf("got %d %+v, want 401 envelope", w.Code, resp)
	}
}

func TestMessagingFlow(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t, "ext-alice", "alice")
	bob := s.signUp(t, "ext-bob", "bob")

	conv := s.startConversation(t, "ext-alice", bob.ID)
	again := s.startConversation(t, "ext-bob", alice.ID)
	if again.ID != conv.ID {
		t.Fatalf("expected the same conversation, got %s and %s", conv.ID, again.ID)
	}

	var sent model.MessageResponse
	w := s.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "ext-alice",
		model.SendMessageRequest{Content: "hello"}, &sent)
	if w.Code != http.StatusCreated || sent.Message == nil || sent.Message.Content != "hello" {
		t.Fatalf("send: %d %s", w.Code, w.Body.String())
	}
	if sent.Message.Sender == nil || sent.Message.Sender.Username != "alice" {
		t.Errorf("expected sender profile, got %+v", sent.Message.Sender)
	}

	if got := s.unread(t, "ext-bob"); got != 1 {
		t.Fatalf("bob unread = %d, want 1", got)
	}

	var listed model.ListMessagesResponse
	w = s.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "ext-bob", nil, &listed)
	if w.Code != http.StatusOK || len(listed.Messages) != 1 {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
	if got := s.unread(t, "ext-bob"); got != 0 {
		t.Fatalf("after listing, bob unread = %d, want 0", got)
	}

	s.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "ext-alice",
		model.SendMessageRequest{Content: "how are you"}, nil)
	if got := s.unread(t, "ext-bob"); got != 1 {
		t.Errorf("bob unread = %d, want 1", got)
	}

	var convs model.ListConversationsResponse
	w = s.do(t, http.MethodGet, "/api/v1/conversations", "ext-bob", nil, &convs)
	if w.Code != http.StatusOK || len(convs.Conversations) != 1 {
		t.Fatalf("list conversations: %d %s", w.Code, w.Body.String())
	}
	if convs.CurrentUserID != bob.ID {
		t.Errorf("currentUserId = %q, want %q", convs.CurrentUserID, bob.ID)
	}
	latest := convs.Conversations[0].Messages
	if len(latest) != 1 || latest[0].Content != "how are you" {
		t.Errorf("expected latest message preview, got %+v", latest)
	}

	var notes model.ListNotificationsResponse
	s.do(t, http.MethodGet, "/api/v1/notifications", "ext-bob", nil, &notes)
	if len(notes.Notifications) != 2 {
		t.Fatalf("bob notifications = %d, want 2", len(notes.Notifications))
	}
	if notes.Notifications[0].Message == nil || notes.Notifications[0].Message.Content != "how are you" {
		t.Errorf("expected newest message summary first, got %+v", notes.Notifications[0].Message)
	}

	var marked model.MarkNotificationsReadResponse
	s.do(t, http.MethodPost, "/api/v1/notifications/read", "ext-bob",
		model.MarkNotificationsReadRequest{IDs: []string{notes.Notifications[0].ID}}, &marked)
	if !marked.Success || marked.Updated != 1 {
		t.Errorf("mark read = %+v", marked)
	}
	var badge model.CountResponse
	s.do(t, http.MethodGet, "/api/v1/notifications/unread-count", "ext-bob", nil, &badge)
	if badge.Count != 1 {
		t.Errorf("notification badge = %d, want 1", badge.Count)
	}
}

func TestSendMessageStatuses(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "ext-alice", "alice")
	bob := s.signUp(t, "ext-bob", "bob")
	s.signUp(t, "ext-eve", "eve")
	conv := s.startConversation(t, "ext-alice", bob.ID)

	tests := []struct {
		name    string
		subject string
		convID  string
		content string
		want    int
	}{
		{"no account", "ext-stranger", conv.ID, "hi", http.StatusUnauthorized},
		{"empty content", "ext-alice", conv.ID, "   ", http.StatusBadRequest},
		{"too long", "ext-alice", conv.ID, strings.Repeat("a", service.MaxMessageLength+1), http.StatusBadRequest},
		{"unknown conversation", "ext-alice", "0190a0c2-0000-7000-8000-000000000000", "hi", http.StatusNotFound},
		{"not a participant", "ext-eve", conv.ID, "hi", http.StatusForbidden},
		{"ok", "ext-bob", conv.ID, "hi", http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp model.MessageResponse
			w := s.do(t, http.MethodPost, "/api/v1/conversations/"+tt.convID+"/messages", tt.subject,
				model.SendMessageRequest{Content: tt.content}, &resp)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
			if (w.Code < 300) != resp.Success {
				t.Errorf("success = %v for status %d", resp.Success, w.Code)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	s.signUp(t, "ext-alice", "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversations", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+token(t, "ext-alice"))
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestConversationEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t, "ext-alice", "alice")
	bob := s.signUp(t, "ext-bob", "bob")
	s.signUp(t, "ext-eve", "eve")

	var resp model.ConversationResponse
	if w := s.do(t, http.MethodPost, "/api/v1/conversations", "ext-alice",
		model.CreateConversationRequest{ParticipantID: alice.ID}, &resp); w.Code != http.StatusBadRequest {
		t.Errorf("self conversation status = %d, want 400", w.Code)
	}

	conv := s.startConversation(t, "ext-alice", bob.ID)

	if w := s.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID, "ext-bob", nil, &resp); w.Code != http.StatusOK || resp.Conversation.ID != conv.ID {
		t.Errorf("get status = %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID, "ext-eve", nil, nil); w.Code != http.StatusForbidden {
		t.Errorf("outsider get status = %d, want 403", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/v1/conversations/not-an-id/messages", "ext-bob", nil, nil); w.Code != http.StatusNotFound {
		t.Errorf("malformed id status = %d, want 404", w.Code)
	}

	var ack model.AcknowledgeReadResponse
	w := s.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/read", "ext-bob", nil, &ack)
	if w.Code != http.StatusOK || ack.LastReadAt.IsZero() {
		t.Errorf("read: %d %s", w.Code, w.Body.String())
	}
	past := conv.CreatedAt
	var ack2 model.AcknowledgeReadResponse
	s.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/read", "ext-bob", model.AcknowledgeReadRequest{Until: &past}, &ack2)
	if !ack2.LastReadAt.Equal(ack.LastReadAt) {
		t.Errorf("read marker moved backwards: %v -> %v", ack.LastReadAt, ack2.LastReadAt)
	}
}

func TestUnreadCountWithoutAccount(t *testing.T) {
	s := newTestServer(t)
	if got := s.unread(t, "ext-nobody"); got != 0 {
		t.Errorf("unread = %d, want 0", got)
	}
}

func TestPresenceEndpoints(t *testing.T) {
	s := newTestServer(t)
	alice := s.signUp(t, "ext-alice", "alice")
	s.signUp(t, "ext-bob", "bob")

	online := true
	var updated model.PresenceUpdateResponse
	w := s.do(t, http.MethodPost, "/api/v1/online-status", "ext-alice", model.SetPresenceRequest{IsOnline: &online}, &updated)
	if w.Code != http.StatusOK || updated.Data == nil || !updated.Data.IsOnline {
		t.Fatalf("set online: %d %s", w.Code, w.Body.String())
	}

	var status model.PresenceResponse
	w = s.do(t, http.MethodGet, "/api/v1/online-status?userId="+alice.ID, "ext-bob", nil, &status)
	if w.Code != http.StatusOK || status.Data == nil || !status.Data.IsOnline {
		t.Fatalf("get status: %d %s", w.Code, w.Body.String())
	}
	if !status.Data.LastSeen.Equal(updated.Data.LastSeen) {
		t.Errorf("lastSeen = %v, want %v", status.Data.LastSeen, updated.Data.LastSeen)
	}

	tests := []struct {
		name    string
		method  string
		path    string
		subject string
		body    any
		want    int
	}{
		{"missing flag", http.MethodPost, "/api/v1/online-status", "ext-alice", map[string]any{}, http.StatusBadRequest},
		{"no account", http.MethodPost, "/api/v1/online-status", "ext-stranger", model.SetPresenceRequest{IsOnline: &online}, http.StatusUnauthorized},
		{"missing user id", http.MethodGet, "/api/v1/online-status", "ext-bob", nil, http.StatusBadRequest},
		{"unknown user", http.MethodGet, "/api/v1/online-status?userId=ghost", "ext-bob", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(t, tt.method, tt.path, tt.subject, tt.body, nil); w.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestUserEndpoints(t *testing.T) {
	s := newTestServer(t)

	if w := s.do(t, http.MethodGet, "/api/v1/users/me", "ext-alice", nil, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("me before sync = %d, want 401", w.Code)
	}

	alice := s.signUp(t, "ext-alice", "alice")

	var me model.UserResponse
	if w := s.do(t, http.MethodGet, "/api/v1/users/me", "ext-alice", nil, &me); w.Code != http.StatusOK || me.User.ID != alice.ID {
		t.Errorf("me = %d %+v", w.Code, me.User)
	}

	var other model.UserResponse
	if w := s.do(t, http.MethodGet, "/api/v1/users/"+alice.ID, "ext-bob", nil, &other); w.Code != http.StatusOK || other.User.Username != "alice" {
		t.Errorf("get user = %d %+v", w.Code, other.User)
	}

	if w := s.do(t, http.MethodPost, "/api/v1/users/sync", "ext-bob", model.SyncUserRequest{Username: "alice"}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("taken username status = %d, want 400", w.Code)
	}

	// The JSON field names are a client contract.
	w := s.do(t, http.MethodGet, "/api/v1/users/me", "ext-alice", nil, nil)
	var raw struct {
		User map[string]any `json:"user"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, field := range []string{"id", "name", "username", "image", "isOnline", "lastSeen"} {
		if _, ok := raw.User[field]; !ok {
			t.Errorf("profile is missing %q", field)
		}
	}
}
