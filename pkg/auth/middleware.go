package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/pharmacore/pharmacore-backend/pkg/errors"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
)

type ownerKey struct{}

// Middleware validates the Bearer token on each request and places the
// authenticated user and owner scope in the request context. Handlers read
// the owner with OwnerID and pass it explicitly to services.
func Middleware(manager *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				httputil.Error(w, errors.Unauthorized("missing authorization header"))
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				httputil.Error(w, errors.Unauthorized("invalid authorization header"))
				return
			}

			claims, err := manager.ValidateAccessToken(parts[1])
			if err != nil {
				httputil.Error(w, err)
				return
			}
			if claims.OwnerID == "" {
				httputil.Error(w, errors.Forbidden("token carries no owner scope"))
				return
			}

			ctx := httputil.WithUserContext(r.Context(), claims.UserID, claims.Email, claims.Role)
			ctx = context.WithValue(ctx, ownerKey{}, claims.OwnerID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OwnerID returns the owner scope of the authenticated request, or an
// empty string when the request is unauthenticated.
func OwnerID(ctx context.Context) string {
	if id, ok := ctx.Value(ownerKey{}).(string); ok {
		return id
	}
	return ""
}

// WithOwner returns a context carrying the given owner scope. Used by
// consumers and tests that operate outside an HTTP request.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerKey{}, ownerID)
}
