package middleware

import (
	"context"
	"net/http"

	"github.com/campanio/backend/internal/service/auth"
	"github.com/campanio/backend/pkg/utils"
)

type principalKey struct{}

// Authenticator resolves the user of a request.
type Authenticator interface {
	RequireUser(r *http.Request) (auth.Principal, error)
}

// RequireUser rejects requests without a valid session before any handler runs.
func RequireUser(guard Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := guard.RequireUser(r)
			if err != nil {
				utils.RespondAppError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the principal stored by RequireUser.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok && p.UserID != ""
}
