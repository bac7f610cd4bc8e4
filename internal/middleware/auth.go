// Package middleware provides HTTP middlewares for authentication and logging.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/atinyakov/devtrack/internal/models"
)

type ctxKey string

const identityKey ctxKey = "identity"

// TokenParser verifies a bearer token and returns its identity.
type TokenParser interface {
	ParseToken(token string) (models.Identity, error)
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Could not validate credentials"})
}

// BearerAuth rejects requests without a valid "Authorization: Bearer"
// token. On success the identity is stored in the request context.
func BearerAuth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
				unauthorized(w)
				return
			}
			id, err := parser.ParseToken(strings.TrimSpace(token))
			if err != nil {
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext extracts the authenticated identity stored by
// BearerAuth. ok is false for unauthenticated requests.
func IdentityFromContext(ctx context.Context) (id models.Identity, ok bool) {
	id, ok = ctx.Value(identityKey).(models.Identity)
	return id, ok
}
