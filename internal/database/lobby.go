// internal/database/lobby.go
package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/pobudka/internal/models"
)

// JoinRoom seats a participant, updating the seat of a returning player.
func (s *Store) JoinRoom(ctx context.Context, roomID string, seat models.Seat) error {
	q := `
		INSERT INTO lobby_participants (room_id, player_id, name, seat_position, is_anonymous)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, player_id)
		DO UPDATE SET name = EXCLUDED.name, seat_position = EXCLUDED.seat_position, is_anonymous = EXCLUDED.is_anonymous
	`
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, roomID, seat.PlayerID, seat.Name, seat.Seat, seat.Anonymous)
		return err
	})
}

// LeaveRoom removes a participant's seat.
func (s *Store) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM lobby_participants WHERE room_id = $1 AND player_id = $2`, roomID, playerID)
	if err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	return nil
}

// ListSeats returns the live roster ordered by seat.
func (s *Store) ListSeats(ctx context.Context, roomID string) ([]models.Seat, error) {
	q := `
		SELECT player_id, name, seat_position, is_anonymous
		FROM lobby_participants
		WHERE room_id = $1
		ORDER BY seat_position
	`
	rows, err := s.pool.Query(ctx, q, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var seats []models.Seat
	for rows.Next() {
		var seat models.Seat
		if err := rows.Scan(&seat.PlayerID, &seat.Name, &seat.Seat, &seat.Anonymous); err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	return seats, rows.Err()
}
