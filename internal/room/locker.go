// internal/room/locker.go
package room

import (
	"context"
	"sync"
)

// LocalLocker serialises room writers inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	rooms map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{rooms: make(map[string]chan struct{})}
}

// Lock blocks until roomID is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, roomID string) (func(), error) {
	l.mu.Lock()
	ch, ok := l.rooms[roomID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.rooms[roomID] = ch
	}
	l.mu.Unlock()

	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
