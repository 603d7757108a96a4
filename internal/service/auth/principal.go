// Package auth resolves the user behind a request. Sessions are issued by an
// external collaborator; this package only verifies them.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/campanio/backend/internal/apperr"
	"github.com/campanio/backend/internal/logger"
)

var (
	ErrUnauthenticated = apperr.Unauthenticated("login first")
	errNoToken         = errors.New("no session token")
)

// Principal is the authenticated user of a request.
type Principal struct {
	UserID string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Image  string `json:"image,omitempty"`
}

// Verifier turns a raw session token into a Principal.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// Guard extracts the session token from a request and asks each verifier in
// turn until one accepts it.
type Guard struct {
	cookieName string
	verifiers  []Verifier
	log        *logger.Logger
}

// NewGuard builds a Guard. Nil verifiers are ignored.
func NewGuard(cookieName string, log *logger.Logger, verifiers ...Verifier) *Guard {
	active := make([]Verifier, 0, len(verifiers))
	for _, v := range verifiers {
		if v != nil {
			active = append(active, v)
		}
	}
	return &Guard{cookieName: cookieName, verifiers: active, log: log}
}

// RequireUser returns the Principal of r or ErrUnauthenticated.
func (g *Guard) RequireUser(r *http.Request) (Principal, error) {
	token, err := g.token(r)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}

	for _, v := range g.verifiers {
		p, err := v.Verify(r.Context(), token)
		if err == nil && p.UserID != "" {
			return p, nil
		}
		if err != nil {
			g.log.Debug("session rejected", "verifier", verifierName(v), "error", err)
		}
	}
	return Principal{}, ErrUnauthenticated
}

func (g *Guard) token(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(token) != "" {
			return strings.TrimSpace(token), nil
		}
	}
	if g.cookieName != "" {
		if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
			return c.Value, nil
		}
	}
	// browsers cannot set headers on a websocket upgrade
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", errNoToken
}

func verifierName(v Verifier) string {
	switch v.(type) {
	case *JWTVerifier:
		return "jwt"
	case *SessionStore:
		return "redis"
	default:
		return "custom"
	}
}
