// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for room action logs.
const DefaultQueueName = "pobudka_actions"

// ConnectRedis opens a client for addr/db and pings it.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// ActionFeed pushes committed actions onto the historian queue.
type ActionFeed struct {
	rdb   redis.Cmdable
	queue string
}

// NewActionFeed returns a feed writing to queue, or DefaultQueueName when empty.
func NewActionFeed(rdb redis.Cmdable, queue string) *ActionFeed {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &ActionFeed{rdb: rdb, queue: queue}
}

// Publish serializes the record to JSON, then pushes it to the Redis queue.
func (f *ActionFeed) Publish(ctx context.Context, rec models.ActionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := f.rdb.RPush(ctx, f.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", f.queue, err)
	}
	return nil
}

// Pop waits up to wait for the oldest queued record. It returns nil, nil when
// the queue stayed empty.
func (f *ActionFeed) Pop(ctx context.Context, wait time.Duration) (*models.ActionRecord, error) {
	res, err := f.rdb.BLPop(ctx, wait, f.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("BLPop %s: %w", f.queue, err)
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var rec models.ActionRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid action record: %w", err)
	}
	return &rec, nil
}
