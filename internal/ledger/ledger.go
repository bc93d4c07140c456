// internal/ledger/ledger.go
package ledger

import (
	"encoding/hex"

	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/models"
	"golang.org/x/crypto/blake2b"
)

// Check validates that a stored entry may be replayed for (roomID, playerID).
// A key is bound to the room and player that first used it.
func Check(entry models.LedgerEntry, roomID, playerID string) error {
	if entry.RoomID != roomID || entry.PlayerID != playerID {
		return game.NewError(game.CodeIdempotencyConflict,
			"idempotency key %q was already used by another room or player", entry.IdempotencyKey)
	}
	return nil
}

// Pending is returned when a key is reserved but its action has not committed yet.
func Pending(key string) error {
	return game.NewError(game.CodeIdempotencyConflict, "idempotency key %q is still in progress", key)
}

// Digest fingerprints the canonical action JSON stored with a ledger entry.
func Digest(action []byte) string {
	sum := blake2b.Sum256(action)
	return hex.EncodeToString(sum[:])
}
