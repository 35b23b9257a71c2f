// Package identity resolves the caller of a request. Account management lives
// elsewhere; this package only reads who the caller is.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cardiovision/pkg/logging"
)

// Identity is the authenticated caller.
type Identity struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

// Provider resolves the caller from an incoming request.
type Provider interface {
	Identify(r *http.Request) (Identity, error)
}

var ErrUnauthenticated = errors.New("identity: unauthenticated")

type ctxKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by Middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Middleware rejects requests the provider cannot identify.
func Middleware(p Provider, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := p.Identify(r)
			if err != nil {
				if !errors.Is(err, ErrUnauthenticated) {
					logger.Error("identity lookup failed", "error", err, "path", r.URL.Path)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserName = "X-User-Name"
)

// HeaderProvider trusts identity headers set by an authenticating proxy.
type HeaderProvider struct{}

func (HeaderProvider) Identify(r *http.Request) (Identity, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return Identity{}, ErrUnauthenticated
	}
	name := strings.TrimSpace(r.Header.Get(HeaderUserName))
	if name == "" {
		name = userID
	}
	return Identity{UserID: userID, DisplayName: name}, nil
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(auth[7:])
}
