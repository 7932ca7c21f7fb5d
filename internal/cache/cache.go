// Package cache owns the key layout of cached availability responses and
// drops them when a booking changes a (venue, date).
package cache

import (
	"context"
	"crypto/sha1"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultPrefix namespaces response cache keys.
const DefaultPrefix = "cache"

// DatePrefix is the key prefix shared by every cached response for one
// venue and local date.
func DatePrefix(prefix string, venueID uint64, date string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return fmt.Sprintf("%s:venue:%d:date:%s", prefix, venueID, date)
}

// Key returns the cache key for one response variant (route + query).
func Key(prefix string, venueID uint64, date, variant string) string {
	sum := sha1.Sum([]byte(variant))
	return fmt.Sprintf("%s:%x", DatePrefix(prefix, venueID, date), sum[:])
}

// Invalidator drops cached availability for a venue and date.
type Invalidator interface {
	Invalidate(ctx context.Context, venueID uint64, date string) error
}

// Noop is used when Redis is not configured.
type Noop struct{}

func (Noop) Invalidate(context.Context, uint64, string) error { return nil }

// RedisInvalidator deletes every key under DatePrefix with SCAN + DEL.
type RedisInvalidator struct {
	rdb    *redis.Client
	prefix string
	batch  int64
	log    *zap.Logger
}

// NewRedisInvalidator returns an invalidator over rdb.  A nil client yields
// an invalidator that does nothing.
func NewRedisInvalidator(rdb *redis.Client, prefix string, log *zap.Logger) Invalidator {
	if rdb == nil {
		return Noop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisInvalidator{rdb: rdb, prefix: prefix, batch: 100, log: log}
}

func (r *RedisInvalidator) Invalidate(ctx context.Context, venueID uint64, date string) error {
	pattern := DatePrefix(r.prefix, venueID, date) + ":*"
	var (
		cursor  uint64
		deleted int64
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, pattern, r.batch).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			n, err := r.rdb.Del(ctx, keys...).Result()
			if err != nil {
				return fmt.Errorf("del %s: %w", pattern, err)
			}
			deleted += n
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	r.log.Debug("cache invalidated",
		zap.Uint64("venue_id", venueID),
		zap.String("date", date),
		zap.Int64("keys", deleted),
	)
	return nil
}
