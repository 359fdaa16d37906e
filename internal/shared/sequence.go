package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sequencer hands out human-readable reference numbers from atomic Redis
// counters. INCR is gap-tolerant and monotonic per key, so two concurrent
// creations of the same type can never compute the same number.
type Sequencer struct {
	client *redis.Client
	prefix string
}

// NewSequencer constructs Sequencer. keyPrefix namespaces the counters.
func NewSequencer(client *redis.Client, keyPrefix string) *Sequencer {
	if keyPrefix == "" {
		keyPrefix = "apotek:seq"
	}
	return &Sequencer{client: client, prefix: keyPrefix}
}

// Next returns the next reference number for a type prefix, e.g. PO-000001.
func (s *Sequencer) Next(ctx context.Context, typePrefix string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("sequencer not initialised")
	}
	if typePrefix == "" {
		return "", errors.New("sequencer type prefix required")
	}
	n, err := s.client.Incr(ctx, fmt.Sprintf("%s:%s", s.prefix, typePrefix)).Result()
	if err != nil {
		return "", fmt.Errorf("sequencer next %s: %w", typePrefix, err)
	}
	return fmt.Sprintf("%s-%06d", typePrefix, n), nil
}

// NextDated returns a date-scoped number, e.g. S-20250114-0001. The counter
// resets per day; stale keys expire after 48 hours.
func (s *Sequencer) NextDated(ctx context.Context, typePrefix string, day time.Time) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("sequencer not initialised")
	}
	if typePrefix == "" {
		return "", errors.New("sequencer type prefix required")
	}
	stamp := day.UTC().Format("20060102")
	key := fmt.Sprintf("%s:%s:%s", s.prefix, typePrefix, stamp)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return "", fmt.Errorf("sequencer next %s: %w", typePrefix, err)
	}
	if n == 1 {
		_ = s.client.Expire(ctx, key, 48*time.Hour).Err()
	}
	return fmt.Sprintf("%s-%s-%04d", typePrefix, stamp, n), nil
}
