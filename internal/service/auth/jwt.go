package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload of a session JWT. The subject is the user id.
type Claims struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier accepts HS256 tokens signed with a shared secret.
type JWTVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier returns nil when secret is empty.
func NewJWTVerifier(secret string) *JWTVerifier {
	if secret == "" {
		return nil
	}
	return &JWTVerifier{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		),
	}
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Principal, error) {
	parsed, err := v.parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Principal{}, errors.New("invalid or expired token")
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	return Principal{
		UserID: claims.Subject,
		Name:   claims.Name,
		Email:  claims.Email,
		Image:  claims.Picture,
	}, nil
}

// Sign issues a token for p. The auth collaborator owns issuance in production;
// this exists for tooling and tests.
func (v *JWTVerifier) Sign(p Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Name:    p.Name,
		Email:   p.Email,
		Picture: p.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
