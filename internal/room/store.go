// internal/room/store.go
package room

import (
	"context"

	"github.com/jason-s-yu/pobudka/internal/models"
)

// Store persists one GameDocument per room. CommitAction replaces the document
// and finalizes the ledger entry (when non-nil) in a single atomic write.
type Store interface {
	CreateGame(ctx context.Context, doc models.GameDocument) error
	LoadGame(ctx context.Context, roomID string) (models.GameDocument, error)
	CommitAction(ctx context.Context, doc models.GameDocument, entry *models.LedgerEntry) error
}

// Ledger reserves idempotency keys. Reserve returns the recorded entry for a
// replay, nil when the caller now holds the reservation, or a conflict error.
type Ledger interface {
	Reserve(ctx context.Context, key, roomID, playerID string) (*models.LedgerEntry, error)
	Release(ctx context.Context, key string) error
}

// Roster lists the live seats of a room ordered by seat number.
type Roster interface {
	ListSeats(ctx context.Context, roomID string) ([]models.Seat, error)
}

// MatchRecorder receives one record per room when it reaches game_over.
// Implementations must ignore a second record for the same room.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, rec models.MatchRecord) error
}

// ActionFeed publishes committed actions for the historian.
type ActionFeed interface {
	Publish(ctx context.Context, rec models.ActionRecord) error
}

// Locker serialises writers of one room. The returned func releases the lock.
type Locker interface {
	Lock(ctx context.Context, roomID string) (func(), error)
}

// Notifier is told about every committed state, e.g. to push projections to
// connected viewers.
type Notifier interface {
	RoomChanged(roomID string, state models.GameState)
}
