package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errSessionNotFound = errors.New("session not found")

// sessionData is what the auth collaborator writes for every live session.
type sessionData struct {
	Principal Principal `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionStore verifies opaque session tokens stored in Redis. Tokens are
// never stored in clear; keys are sha256 digests.
type SessionStore struct {
	client *redis.Client
	prefix string
}

// NewSessionStore connects to redisURL and checks the connection.
func NewSessionStore(ctx context.Context, redisURL string) (*SessionStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewSessionStoreWithClient(client), nil
}

// NewSessionStoreWithClient wraps an existing client.
func NewSessionStoreWithClient(client *redis.Client) *SessionStore {
	return &SessionStore{client: client, prefix: "session:"}
}

func (s *SessionStore) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return s.prefix + hex.EncodeToString(sum[:])
}

// Save stores a session for p until expiresAt.
func (s *SessionStore) Save(ctx context.Context, token string, p Principal, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("session already expired")
	}

	payload, err := json.Marshal(sessionData{Principal: p, ExpiresAt: expiresAt.UTC()})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Delete removes a session. Deleting an unknown token is not an error.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Verify implements Verifier.
func (s *SessionStore) Verify(ctx context.Context, token string) (Principal, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Principal{}, errSessionNotFound
	}
	if err != nil {
		return Principal{}, fmt.Errorf("lookup session: %w", err)
	}

	var data sessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return Principal{}, fmt.Errorf("decode session: %w", err)
	}
	if !data.ExpiresAt.IsZero() && time.Now().After(data.ExpiresAt) {
		return Principal{}, errSessionNotFound
	}
	return data.Principal, nil
}

// Ping checks the Redis connection.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the Redis connection.
func (s *SessionStore) Close() error {
	return s.client.Close()
}
