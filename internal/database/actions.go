// internal/database/actions.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/pobudka/internal/models"
)

// InsertActions writes a batch drained from the action feed in one
// transaction. Records already stored are skipped.
func (s *Store) InsertActions(ctx context.Context, batch []models.ActionRecord) error {
	q := `
		INSERT INTO game_actions (room_id, action_index, actor_id, action_type, action_payload, phase, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (room_id, action_index) DO NOTHING
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batch {
			var payload []byte
			if len(rec.Action) > 0 {
				payload = rec.Action
			}
			_, err := tx.Exec(ctx, q, rec.RoomID, rec.ActionIndex, rec.PlayerID, rec.ActionType,
				payload, string(rec.Phase), time.UnixMilli(rec.Timestamp).UTC())
			if err != nil {
				return fmt.Errorf("insert action %s/%d: %w", rec.RoomID, rec.ActionIndex, err)
			}
		}
		return nil
	})
}

// RoomActions lists the stored history of a room.
func (s *Store) RoomActions(ctx context.Context, roomID string) ([]models.ActionRecord, error) {
	q := `
		SELECT action_index, actor_id, action_type, action_payload, COALESCE(phase, ''), created_at
		FROM game_actions WHERE room_id = $1 ORDER BY action_index
	`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ActionRecord
	for rows.Next() {
		rec := models.ActionRecord{RoomID: roomID}
		var (
			payload []byte
			phase   string
			created time.Time
		)
		if err := rows.Scan(&rec.ActionIndex, &rec.PlayerID, &rec.ActionType, &payload, &phase, &created); err != nil {
			return nil, err
		}
		rec.Action = payload
		rec.Phase = models.Phase(phase)
		rec.Timestamp = created.UnixMilli()
		out = append(out, rec)
	}
	return out, rows.Err()
}
