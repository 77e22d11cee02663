// Package redis provides a Redis-backed refresh token store. Token
// records expire server-side via key TTLs, and revocation uses DEL's
// removed-key count so rotation fails closed under concurrent reuse.
package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/salwakit/storegate/pkg/auth"
)

const keyPrefix = "refresh:"

// Store is a Redis-backed auth.RefreshTokenStore.
type Store struct {
	client *redis.Client
}

var _ auth.RefreshTokenStore = (*Store)(nil)

// New connects to Redis at the given URL and verifies connectivity.
func New(url string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &Store{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close shuts down the Redis client.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Save persists an issued refresh token with a TTL matching its expiry.
// The raw token never reaches Redis; only its digest is stored.
func (s *Store) Save(ctx context.Context, userID, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("refresh token already expired")
	}
	if err := s.client.Set(ctx, tokenKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("saving refresh token: %w", err)
	}
	return nil
}

// Revoke deletes the token record. DEL reports the number of removed
// keys, so of N concurrent revokes exactly one observes true.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	removed, err := s.client.Del(ctx, tokenKey(token)).Result()
	if err != nil {
		return false, fmt.Errorf("revoking refresh token: %w", err)
	}
	return removed > 0, nil
}

// IsActive reports whether the token is stored for the user. Expiry is
// enforced by the key TTL.
func (s *Store) IsActive(ctx context.Context, userID, token string) (bool, error) {
	owner, err := s.client.Get(ctx, tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking refresh token: %w", err)
	}
	return owner == userID, nil
}

// tokenKey digests the signed token so keys stay short and the token
// itself is not recoverable from the store.
func tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}
