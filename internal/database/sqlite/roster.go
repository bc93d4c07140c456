// internal/database/sqlite/roster.go
package sqlite

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/pobudka/internal/models"
)

// JoinRoom seats a participant, updating the seat of a returning player.
func (s *Store) JoinRoom(ctx context.Context, roomID string, seat models.Seat) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO lobby_participants (room_id, player_id, name, seat_position, is_anonymous)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (room_id, player_id) DO UPDATE SET
		   name = excluded.name, seat_position = excluded.seat_position, is_anonymous = excluded.is_anonymous`,
		roomID, seat.PlayerID, seat.Name, seat.Seat, seat.Anonymous)
	if err != nil {
		return fmt.Errorf("join room %s: %w", roomID, err)
	}
	return nil
}

func (s *Store) LeaveRoom(ctx context.Context, roomID, playerID string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM lobby_participants WHERE room_id = ? AND player_id = ?`, roomID, playerID); err != nil {
		return fmt.Errorf("leave room %s: %w", roomID, err)
	}
	return nil
}

func (s *Store) ListSeats(ctx context.Context, roomID string) ([]models.Seat, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT player_id, name, seat_position, is_anonymous
		 FROM lobby_participants WHERE room_id = ? ORDER BY seat_position`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list seats for %s: %w", roomID, err)
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

// RecordMatch stores the match and its placements once per room. Local play
// keeps no per-player aggregates.
func (s *Store) RecordMatch(ctx context.Context, rec models.MatchRecord) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin match record: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO matches (match_id, room_id, mode, ended_at, winner_player_id, winner_name, winning_score, player_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (room_id) DO NOTHING`,
		rec.MatchID, rec.RoomID, string(rec.Mode), toMillis(rec.EndedAt),
		rec.WinnerPlayerID, rec.WinnerName, rec.WinningScore, rec.PlayerCount)
	if err != nil {
		return fmt.Errorf("insert match for %s: %w", rec.RoomID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	for _, p := range rec.Placements {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO match_placements (match_id, room_id, player_id, name, final_score, place, ended_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.MatchID, rec.RoomID, p.PlayerID, p.Name, p.FinalScore, p.Place, toMillis(p.EndedAt)); err != nil {
			return fmt.Errorf("insert placement for %s: %w", p.PlayerID, err)
		}
	}
	return tx.Commit()
}

// Placements returns the recorded standings of roomID, best first.
func (s *Store) Placements(ctx context.Context, roomID string) ([]models.Placement, error) {
	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT match_id, player_id, name, final_score, place, ended_at
		 FROM match_placements WHERE room_id = ? ORDER BY place, player_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list placements for %s: %w", roomID, err)
	}
	defer rows.Close()

	var out []models.Placement
	for rows.Next() {
		p := models.Placement{RoomID: roomID}
		var ended int64
		if err := rows.Scan(&p.MatchID, &p.PlayerID, &p.Name, &p.FinalScore, &p.Place, &ended); err != nil {
			return nil, err
		}
		p.EndedAt = fromMillis(ended)
		out = append(out, p)
	}
	return out, rows.Err()
}
