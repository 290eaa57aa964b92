// Package cache stores report snapshots in Redis for a short TTL.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nadmax/fieldops/internal/period"
	"github.com/nadmax/fieldops/internal/stats"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "reports:"
	scanBatch  = 100
	allWorkers = "all"
)

type SnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{client: client, ttl: ttl}
}

// Key is reports:<period>:<last day covered>:<worker id|all>. The date part
// retires snapshots when the period rolls over at midnight.
func Key(p period.Period, iv period.Interval, workerID *int64) string {
	worker := allWorkers
	if workerID != nil {
		worker = strconv.FormatInt(*workerID, 10)
	}
	asOf := period.DateKey(iv.End.AddDate(0, 0, -1))
	return keyPrefix + p.String() + ":" + asOf + ":" + worker
}

// Get returns (nil, nil) on a miss.
func (c *SnapshotCache) Get(ctx context.Context, p period.Period, iv period.Interval, workerID *int64) (*stats.Snapshot, error) {
	data, err := c.client.Get(ctx, Key(p, iv, workerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}

	var snap stats.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("cache decode: %w", err)
	}
	return &snap, nil
}

func (c *SnapshotCache) Set(ctx context.Context, iv period.Interval, snap *stats.Snapshot) error {
	if c.ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, Key(snap.Period, iv, snap.WorkerID), data, c.ttl).Err()
}

// Invalidate drops every cached snapshot.
func (c *SnapshotCache) Invalidate(ctx context.Context) (int, error) {
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("cache scan: %w", err)
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("cache delete: %w", err)
			}
			removed += int(n)
		}
		if next == 0 {
			return removed, nil
		}
		cursor = next
	}
}
