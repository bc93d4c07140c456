// internal/database/match.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/pobudka/internal/models"
)

// PlayerStats are the running aggregates of an identified player.
type PlayerStats struct {
	PlayerID    string `json:"playerId"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	BestScore   *int   `json:"bestScore,omitempty"`
}

// RecordMatch persists the match, its placements and the aggregates of every
// identified participant. A second record for the same room is ignored.
func (s *Store) RecordMatch(ctx context.Context, rec models.MatchRecord) error {
	recorded := true
	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		matchQ := `
			INSERT INTO matches (match_id, room_id, mode, ended_at, winner_player_id, winner_name, winning_score, player_count)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (room_id) DO NOTHING
		`
		tag, err := tx.Exec(ctx, matchQ, rec.MatchID, rec.RoomID, string(rec.Mode), rec.EndedAt,
			rec.WinnerPlayerID, rec.WinnerName, rec.WinningScore, rec.PlayerCount)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			recorded = false
			return nil
		}

		anonymous, err := anonymousPlayers(ctx, tx, rec.RoomID)
		if err != nil {
			return err
		}
		placementQ := `
			INSERT INTO match_placements (match_id, room_id, player_id, name, final_score, place, ended_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`
		statsQ := `
			INSERT INTO player_stats (player_id, games_played, wins, losses, best_score)
			VALUES ($1, 1, $2, $3, $4)
			ON CONFLICT (player_id) DO UPDATE SET
				games_played = player_stats.games_played + 1,
				wins = player_stats.wins + EXCLUDED.wins,
				losses = player_stats.losses + EXCLUDED.losses,
				best_score = LEAST(player_stats.best_score, EXCLUDED.best_score)
		`
		for _, p := range rec.Placements {
			if _, err := tx.Exec(ctx, placementQ, rec.MatchID, rec.RoomID, p.PlayerID, p.Name, p.FinalScore, p.Place, p.EndedAt); err != nil {
				return err
			}
			if !identified(p.PlayerID, anonymous) {
				continue
			}
			win, loss := 0, 1
			if p.PlayerID == rec.WinnerPlayerID {
				win, loss = 1, 0
			}
			if _, err := tx.Exec(ctx, statsQ, p.PlayerID, win, loss, p.FinalScore); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx record match for %s: %w", rec.RoomID, err)
	}
	if !recorded {
		s.log.WithField("room", rec.RoomID).Debug("match already recorded")
	}
	return nil
}

// GetPlayerStats returns the aggregates of playerID, or zero stats if none.
func (s *Store) GetPlayerStats(ctx context.Context, playerID string) (PlayerStats, error) {
	st := PlayerStats{PlayerID: playerID}
	q := `SELECT games_played, wins, losses, best_score FROM player_stats WHERE player_id = $1`
	err := s.pool.QueryRow(ctx, q, playerID).Scan(&st.GamesPlayed, &st.Wins, &st.Losses, &st.BestScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return PlayerStats{}, fmt.Errorf("load stats for %s: %w", playerID, err)
	}
	return st, nil
}

func anonymousPlayers(ctx context.Context, tx pgx.Tx, roomID string) (map[string]bool, error) {
	rows, err := tx.Query(ctx, `SELECT player_id FROM lobby_participants WHERE room_id = $1 AND is_anonymous`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}

// identified reports whether stats are kept for playerID: it must be a user
// uuid that did not join anonymously.
func identified(playerID string, anonymous map[string]bool) bool {
	if anonymous[playerID] {
		return false
	}
	_, err := uuid.Parse(playerID)
	return err == nil
}
