package middleware

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/socialhub/social-platform/internal/service"
	"github.com/socialhub/social-platform/pkg/logger"
)

// Resolver maps an identity-provider subject to an internal user id.
type Resolver interface {
	ResolveExternalID(ctx context.Context, externalID string) (string, error)
}

// Identity resolves the authenticated subject to an internal user. A subject
// without an account passes through with an empty user id so that endpoints
// can decide how to treat it.
func Identity(resolver Resolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := GetSubject(r.Context())
			if subject == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := resolver.ResolveExternalID(r.Context(), subject)
			switch {
			case err == nil:
				noteUserID(r.Context(), userID)
				r = r.WithContext(WithUserID(r.Context(), userID))
			case errors.Is(err, service.ErrNotFound):
			default:
				log.Error("failed to resolve identity",
					zap.String("correlation_id", GetCorrelationID(r.Context())),
					zap.Error(err),
				)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
