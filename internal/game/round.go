// internal/game/round.go
package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/jason-s-yu/pobudka/internal/models"
)

const (
	// PobudkaPenalty is added to a caller whose hand is not the lowest.
	PobudkaPenalty = 5
	// GameOverScore ends the match once any cumulative score reaches it.
	GameOverScore = 100
)

// RoundSummary is returned with the action that ended a round.
type RoundSummary struct {
	Reason        models.RoundEndReason `json:"reason"`
	CallerID      string                `json:"callerId,omitempty"`
	RoundWinnerID string                `json:"roundWinnerId"`
	Scores        []models.RoundScore   `json:"scores"`
	GameOver      bool                  `json:"gameOver"`
	WinnerID      string                `json:"winnerId,omitempty"`
}

// ScoreRound computes per-player round lines for reason. It does not modify
// players. Ties at the minimum hand value resolve to the first player in seat
// order.
func ScoreRound(players []models.Player, reason models.RoundEndReason, callerID string) ([]models.RoundScore, string) {
	if len(players) == 0 {
		return nil, ""
	}
	values := make([]int, len(players))
	minValue, winner := 0, 0
	for i, p := range players {
		values[i] = p.HandValue()
		if i == 0 || values[i] < minValue {
			minValue, winner = values[i], i
		}
	}
	scores := make([]models.RoundScore, len(players))
	for i, p := range players {
		penalty := 0
		if reason == models.ReasonPobudka && p.ID == callerID && values[i] > minValue {
			penalty = PobudkaPenalty
		}
		round := values[i] + penalty
		scores[i] = models.RoundScore{
			PlayerID:   p.ID,
			HandValue:  values[i],
			Penalty:    penalty,
			RoundScore: round,
			TotalScore: p.Score + round,
		}
	}
	return scores, players[winner].ID
}

// endRound scores the round, reveals every hand and moves to round_end or
// game_over.
func (t *transition) endRound(reason models.RoundEndReason, callerID string) {
	t.discardHeld()
	if len(t.s.TempCards) > 0 {
		t.s.DiscardPile = append(t.s.DiscardPile, t.s.TempCards...)
	}
	t.clearTransient()

	scores, roundWinner := ScoreRound(t.s.Players, reason, callerID)
	gameOver := false
	for i := range t.s.Players {
		t.s.Players[i].Score = scores[i].TotalScore
		if t.s.Players[i].Score >= GameOverScore {
			gameOver = true
		}
		for si := range t.s.Players[i].Hand {
			t.s.Players[i].Hand[si].IsFaceUp = true
		}
	}

	t.s.LastRoundScores = scores
	t.s.LastCallerID = callerID
	t.s.RoundReason = reason
	t.s.RoundWinnerID = roundWinner
	summary := &RoundSummary{Reason: reason, CallerID: callerID, RoundWinnerID: roundWinner, Scores: scores}

	if gameOver {
		winner := overallLeader(t.s.Players)
		t.s.GamePhase = models.PhaseGameOver
		t.s.WinnerID = t.s.Players[winner].ID
		summary.GameOver = true
		summary.WinnerID = t.s.WinnerID
		t.msg = fmt.Sprintf("Game over: %s wins with %d", t.name(winner), t.s.Players[winner].Score)
	} else {
		t.s.GamePhase = models.PhaseRoundEnd
		ri := t.s.PlayerIndex(roundWinner)
		switch reason {
		case models.ReasonPobudka:
			t.msg = fmt.Sprintf("%s called pobudka; %s wins the round", t.name(t.s.PlayerIndex(callerID)), t.name(ri))
		default:
			t.msg = fmt.Sprintf("The deck ran out; %s wins the round", t.name(ri))
		}
	}
	t.result.Round = summary
}

// overallLeader returns the index of the lowest cumulative score, first seat
// winning ties.
func overallLeader(players []models.Player) int {
	best := 0
	for i, p := range players {
		if p.Score < players[best].Score {
			best = i
		}
	}
	return best
}

// Placements ranks players by final score ascending. Equal scores share a place
// and the next distinct score skips the shared places (1, 1, 3).
func Placements(players []models.Player) []models.Placement {
	order := make([]int, len(players))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int { return players[a].Score - players[b].Score })
	out := make([]models.Placement, len(order))
	for rank, pi := range order {
		place := rank + 1
		if rank > 0 && players[pi].Score == out[rank-1].FinalScore {
			place = out[rank-1].Place
		}
		out[rank] = models.Placement{
			PlayerID:   players[pi].ID,
			Name:       players[pi].Name,
			FinalScore: players[pi].Score,
			Place:      place,
		}
	}
	return out
}

// BuildMatchRecord assembles the record written when state reaches game_over.
func BuildMatchRecord(matchID, roomID string, state models.GameState, endedAt time.Time) (models.MatchRecord, error) {
	if state.GamePhase != models.PhaseGameOver {
		return models.MatchRecord{}, wrongPhase("match is not over")
	}
	if len(state.Players) == 0 {
		return models.MatchRecord{}, missingState("finished match has no players")
	}
	winner := state.Players[overallLeader(state.Players)]
	if wi := state.PlayerIndex(state.WinnerID); wi >= 0 {
		winner = state.Players[wi]
	}
	rec := models.MatchRecord{
		MatchID:        matchID,
		RoomID:         roomID,
		Mode:           state.GameMode,
		EndedAt:        endedAt,
		WinnerPlayerID: winner.ID,
		WinnerName:     winner.Name,
		WinningScore:   winner.Score,
		PlayerCount:    len(state.Players),
		Placements:     Placements(state.Players),
	}
	for i := range rec.Placements {
		rec.Placements[i].MatchID = matchID
		rec.Placements[i].RoomID = roomID
		rec.Placements[i].EndedAt = endedAt
	}
	return rec, nil
}
