// internal/cache/locker.go
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	lockPrefix     = "pobudka:room-lock:"
	lockRetryDelay = 25 * time.Millisecond
)

// unlockScript deletes the lock only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RoomLocker serialises writers of a room across server instances with
// SET NX PX. The TTL bounds how long a crashed holder blocks the room.
type RoomLocker struct {
	rdb redis.UniversalClient
	ttl time.Duration
	log *logrus.Entry
}

func NewRoomLocker(rdb redis.UniversalClient, ttl time.Duration) *RoomLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &RoomLocker{rdb: rdb, ttl: ttl, log: logrus.WithField("component", "room-locker")}
}

// Lock blocks until the room lock is acquired or ctx is done.
func (l *RoomLocker) Lock(ctx context.Context, roomID string) (func(), error) {
	key := lockPrefix + roomID
	token := uuid.NewString()
	for {
		err := l.rdb.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: l.ttl}).Err()
		if err == nil {
			return func() { l.unlock(ctx, key, token) }, nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryDelay):
		}
	}
}

func (l *RoomLocker) unlock(ctx context.Context, key, token string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		l.log.WithError(err).WithField("key", key).Warn("failed to release room lock")
	}
}
