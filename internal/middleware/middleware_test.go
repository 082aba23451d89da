package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}
	return s
}

func validClaims(subject string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "https://id.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

// echoSubject writes the context subject and user id.
var echoSubject = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte(GetSubject(r.Context()) + "|" + GetUserID(r.Context())))
})

func decodeError(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	if body.Success {
		t.Error("expected success=false")
	}
	return body.Error
}

func TestAuth(t *testing.T) {
	expired := validClaims("ext-1")
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	noSubject := validClaims("")
	otherIssuer := validClaims("ext-1")
	otherIssuer.Issuer = "https://evil.example"

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid", "Bearer " + signToken(t, testSecret, validClaims("ext-1")), http.StatusOK, "ext-1|"},
		{"lowercase scheme", "bearer " + signToken(t, testSecret, validClaims("ext-1")), http.StatusOK, "ext-1|"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"bad signature", "Bearer " + signToken(t, "other", validClaims("ext-1")), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signToken(t, testSecret, expired), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + signToken(t, testSecret, noSubject), http.StatusUnauthorized, ""},
		{"wrong issuer", "Bearer " + signToken(t, testSecret, otherIssuer), http.StatusUnauthorized, ""},
		{"garbage", "Bearer not.a.token", http.StatusUnauthorized, ""},
	}

	h := Auth(testSecret, "https://id.example")(echoSubject)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusOK {
				if w.Body.String() != tt.wantBody {
					t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
				}
				return
			}
			if msg := decodeError(t, w); msg == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestAuthRejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, validClaims("ext-1"))
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+s)
	w := httptest.NewRecorder()
	Auth(testSecret, "")(echoSubject).ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

type stubResolver struct {
	ids map[string]string
	err error
}

func (s stubResolver) ResolveExternalID(_ context.Context, externalID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if id, ok := s.ids[externalID]; ok {
		return id, nil
	}
	return "", service.ErrNotFound
}

func TestIdentity(t *testing.T) {
	resolver := stubResolver{ids: map[string]string{"ext-1": "user-1"}}
	h := Auth(testSecret, "")(Identity(resolver, logger.NewNop())(echoSubject))

	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"known subject", "ext-1", "ext-1|user-1"},
		{"unknown subject passes through", "ext-2", "ext-2|"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims(tt.subject)))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusOK || w.Body.String() != tt.want {
				t.Errorf("got %d %q, want 200 %q", w.Code, w.Body.String(), tt.want)
			}
		})
	}
}

func TestIdentityUpstreamFailure(t *testing.T) {
	resolver := stubResolver{err: errors.New("db down")}
	h := Auth(testSecret, "")(Identity(resolver, logger.NewNop())(echoSubject))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, validClaims("ext-1")))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if msg := decodeError(t, w); strings.Contains(msg, "db down") {
		t.Errorf("upstream detail leaked: %q", msg)
	}
}

func TestLoggingCorrelationID(t *testing.T) {
	var seen string
	h := Logging(logger.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	incoming := uuid.New().String()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, incoming)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if seen != incoming || w.Header().Get(CorrelationIDHeader) != incoming {
		t.Errorf("expected incoming correlation id %s to be kept, got %q / %q", incoming, seen, w.Header().Get(CorrelationIDHeader))
	}
	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "not-a-uuid\ninjected")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if _, err := uuid.Parse(seen); err != nil {
		t.Errorf("expected a generated uuid, got %q", seen)
	}
}

func TestRateLimitPerUser(t *testing.T) {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(WithUserID(req.Context(), req.Header.Get("X-Test-User"))))
		})
	})
	r.Use(RateLimit(2, time.Minute))
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {})

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Test-User", user)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 2; i++ {
		if w := do("alice"); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	w := do("alice")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("third request status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q, want 60", w.Header().Get("Retry-After"))
	}
	decodeError(t, w)

	if w := do("bob"); w.Code != http.StatusOK {
		t.Errorf("other user should have its own budget, got %d", w.Code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if w.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}

func TestValidateID(t *testing.T) {
	if err := ValidateID(uuid.Must(uuid.NewV7()).String()); err != nil {
		t.Errorf("valid id rejected: %v", err)
	}
	for _, id := range []string{"", "abc", "../etc/passwd"} {
		if err := ValidateID(id); err == nil {
			t.Errorf("ValidateID(%q) should fail", id)
		}
	}
}

func TestLimitBody(t *testing.T) {
	h := LimitBody(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789abcdef")))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}
