package middleware

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
)

// MaxBodyBytes bounds JSON request bodies. A 10 000 character message
// fits with room for multi-byte characters and escaping.
const MaxBodyBytes = 256 << 10

// ValidateID checks that id is a well-formed entity id.
func ValidateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid id format")
	}
	return nil
}

// LimitBody caps the size of request bodies.
func LimitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
