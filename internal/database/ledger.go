// internal/database/ledger.go
package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jason-s-yu/pobudka/internal/ledger"
	"github.com/jason-s-yu/pobudka/internal/models"
)

// Reserve claims key with a pending row. The primary key on idempotency_key
// makes the claim a single atomic check-and-insert.
func (s *Store) Reserve(ctx context.Context, key, roomID, playerID string) (*models.LedgerEntry, error) {
	insertQ := `
		INSERT INTO action_ledger (idempotency_key, room_id, player_id, status, created_at)
		VALUES ($1, $2, $3, 'pending', NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, insertQ, key, roomID, playerID)
	if err != nil {
		return nil, fmt.Errorf("reserve key %s: %w", key, err)
	}
	if tag.RowsAffected() == 1 {
		return nil, nil
	}

	var (
		entry   = models.LedgerEntry{IdempotencyKey: key}
		status  string
		aType   *string
		payload []byte
		digest  *string
		created time.Time
	)
	selectQ := `
		SELECT room_id, player_id, status, action_type, payload, action_digest, created_at
		FROM action_ledger WHERE idempotency_key = $1
	`
	err = s.pool.QueryRow(ctx, selectQ, key).Scan(&entry.RoomID, &entry.PlayerID, &status, &aType, &payload, &digest, &created)
	if err != nil {
		return nil, fmt.Errorf("read ledger entry %s: %w", key, err)
	}
	if err := ledger.Check(entry, roomID, playerID); err != nil {
		return nil, err
	}
	if status == "pending" {
		return nil, ledger.Pending(key)
	}
	if aType != nil {
		entry.ActionType = *aType
	}
	if digest != nil {
		entry.ActionDigest = *digest
	}
	entry.CreatedAt = created
	if payload != nil {
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", key, err)
		}
	}
	return &entry, nil
}

// Release deletes a pending reservation. Recorded rows are never removed.
func (s *Store) Release(ctx context.Context, key string) error {
	q := `DELETE FROM action_ledger WHERE idempotency_key = $1 AND status = 'pending'`
	if _, err := s.pool.Exec(ctx, q, key); err != nil {
		return fmt.Errorf("release key %s: %w", key, err)
	}
	return nil
}

// LedgerEntries lists the recorded entries of a room in creation order.
func (s *Store) LedgerEntries(ctx context.Context, roomID string) ([]models.LedgerEntry, error) {
	q := `
		SELECT idempotency_key, player_id, action_type, payload, COALESCE(action_digest, ''), created_at
		FROM action_ledger
		WHERE room_id = $1 AND status = 'done'
		ORDER BY created_at
	`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, fmt.Errorf("list ledger for %s: %w", roomID, err)
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		e := models.LedgerEntry{RoomID: roomID}
		var payload []byte
		if err := rows.Scan(&e.IdempotencyKey, &e.PlayerID, &e.ActionType, &payload, &e.ActionDigest, &e.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &e.Payload); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", e.IdempotencyKey, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
