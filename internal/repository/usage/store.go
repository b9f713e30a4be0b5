package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/fetchr/internal/db"
	"github.com/kailas-cloud/fetchr/internal/domain"
)

// DefaultTTL keeps a daily counter for two days.
const DefaultTTL = 48 * time.Hour

var keyPrefix = domain.KeyPrefix + "usage:tokens:"

// store is the consumer interface for usage counters (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) error
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store counts expansion tokens per UTC day.
type Store struct {
	store store
	ttl   time.Duration
	now   func() time.Time
}

// New creates a usage store. ttl <= 0 uses DefaultTTL.
func New(s store, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{store: s, ttl: ttl, now: time.Now}
}

// Key returns the counter key for a day.
func Key(day time.Time) string {
	return keyPrefix + day.UTC().Format("2006-01-02")
}

// AddTokens adds n tokens to today's counter. n <= 0 is a no-op.
func (s *Store) AddTokens(ctx context.Context, n int64) error {
	if n <= 0 {
		return nil
	}
	key := Key(s.now())
	if err := s.store.IncrBy(ctx, key, n); err != nil {
		return fmt.Errorf("usage INCRBY %s: %w", key, err)
	}
	// NX keeps the expiry of the first write of the day.
	if err := s.store.Expire(ctx, key, s.ttl, true); err != nil {
		return fmt.Errorf("usage EXPIRE %s: %w", key, err)
	}
	return nil
}

// Today returns today's token count. A missing key counts as 0.
func (s *Store) Today(ctx context.Context) (int64, error) {
	key := Key(s.now())
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("usage GET %s: %w", key, err)
	}
	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("usage GET %s parse: %w", key, err)
	}
	return val, nil
}
