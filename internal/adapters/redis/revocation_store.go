// Package redis provides Redis-based adapters for portal-gate.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/coverdesk/portal-gate/internal/ports"
)

// DefaultRevocationPrefix namespaces revocation keys.
const DefaultRevocationPrefix = "portal-gate:revoked:"

var _ ports.RevocationStore = (*RevocationStore)(nil)

// RevocationStore records signed-out token ids until the token would have expired anyway.
// Keys expire on their own, so the set never outgrows the live token population.
type RevocationStore struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// RevocationStoreOption configures a RevocationStore.
type RevocationStoreOption func(*RevocationStore)

// WithPrefix overrides the key prefix.
func WithPrefix(prefix string) RevocationStoreOption {
	return func(s *RevocationStore) { s.prefix = prefix }
}

// WithClock overrides the clock used to compute key TTLs.
func WithClock(now func() time.Time) RevocationStoreOption {
	return func(s *RevocationStore) { s.now = now }
}

// NewRevocationStore creates a Redis-backed revocation store.
func NewRevocationStore(client redis.UniversalClient, opts ...RevocationStoreOption) *RevocationStore {
	s := &RevocationStore{
		client: client,
		prefix: DefaultRevocationPrefix,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Revoke marks tokenID as revoked until the given time.
// Tokens that are already past until need no record and are skipped.
func (s *RevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return errors.New("token ID cannot be empty")
	}
	ttl := until.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, s.prefix+tokenID, s.now().UTC().Format(time.RFC3339), ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	n, err := s.client.Exists(ctx, s.prefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("redis exists: %w", err)
	}
	return n > 0, nil
}
