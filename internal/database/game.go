// internal/database/game.go
package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/models"
)

// CreateGame inserts the lobby document of a new room.
func (s *Store) CreateGame(ctx context.Context, doc models.GameDocument) error {
	state, err := json.Marshal(doc.State)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}
	q := `
		INSERT INTO games (room_id, state, version, idempotency_key, last_updated)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (room_id) DO NOTHING
	`
	tag, err := s.pool.Exec(ctx, q, doc.RoomID, state, doc.Version, doc.IdempotencyKey, doc.LastUpdated)
	if err != nil {
		return fmt.Errorf("insert game %s: %w", doc.RoomID, err)
	}
	if tag.RowsAffected() == 0 {
		return game.NewError(game.CodeRoomExists, "room %s already exists", doc.RoomID)
	}
	return nil
}

// LoadGame reads the current document of a room.
func (s *Store) LoadGame(ctx context.Context, roomID string) (models.GameDocument, error) {
	doc := models.GameDocument{RoomID: roomID}
	var (
		state []byte
		key   *string
	)
	q := `SELECT state, version, idempotency_key, last_updated FROM games WHERE room_id = $1`
	err := s.pool.QueryRow(ctx, q, roomID).Scan(&state, &doc.Version, &key, &doc.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.GameDocument{}, game.NewError(game.CodeRoomNotFound, "room %s not found", roomID)
	}
	if err != nil {
		return models.GameDocument{}, fmt.Errorf("load game %s: %w", roomID, err)
	}
	if err := json.Unmarshal(state, &doc.State); err != nil {
		return models.GameDocument{}, fmt.Errorf("decode game %s: %w", roomID, err)
	}
	if key != nil {
		doc.IdempotencyKey = *key
	}
	return doc, nil
}

// CommitAction replaces the document and finalizes the ledger entry in one
// transaction.
func (s *Store) CommitAction(ctx context.Context, doc models.GameDocument, entry *models.LedgerEntry) error {
	state, err := json.Marshal(doc.State)
	if err != nil {
		return fmt.Errorf("failed to marshal game state: %w", err)
	}
	var payload []byte
	if entry != nil {
		if payload, err = json.Marshal(entry.Payload); err != nil {
			return fmt.Errorf("failed to marshal ledger payload: %w", err)
		}
	}

	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		updateQ := `
			UPDATE games
			SET state = $2, version = $3, idempotency_key = NULLIF($4, ''), last_updated = $5
			WHERE room_id = $1
		`
		tag, err := tx.Exec(ctx, updateQ, doc.RoomID, state, doc.Version, doc.IdempotencyKey, doc.LastUpdated)
		if err != nil {
			return fmt.Errorf("update game %s: %w", doc.RoomID, err)
		}
		if tag.RowsAffected() == 0 {
			return game.NewError(game.CodeRoomNotFound, "room %s not found", doc.RoomID)
		}
		if entry == nil {
			return nil
		}

		ledgerQ := `
			INSERT INTO action_ledger (
				idempotency_key, room_id, player_id, status, action_type, payload, action_digest, created_at
			) VALUES ($1, $2, $3, 'done', $4, $5, $6, $7)
			ON CONFLICT (idempotency_key) DO UPDATE
			SET status = 'done', action_type = EXCLUDED.action_type, payload = EXCLUDED.payload,
			    action_digest = EXCLUDED.action_digest, created_at = EXCLUDED.created_at
			WHERE action_ledger.status = 'pending'
		`
		tag, err = tx.Exec(ctx, ledgerQ, entry.IdempotencyKey, entry.RoomID, entry.PlayerID,
			entry.ActionType, string(payload), entry.ActionDigest, entry.CreatedAt)
		if err != nil {
			return fmt.Errorf("record ledger entry %s: %w", entry.IdempotencyKey, err)
		}
		if tag.RowsAffected() == 0 {
			return game.NewError(game.CodeIdempotencyConflict, "idempotency key %q was already recorded", entry.IdempotencyKey)
		}
		return nil
	})
}
