// internal/game/sync_state.go
package game

import (
	"slices"

	"github.com/jason-s-yu/pobudka/internal/models"
)

// ViewerGameState is the projection of a room returned to one viewer. It has
// the same shape as the authoritative document.
type ViewerGameState struct {
	models.GameState
	ViewerID string `json:"viewerId,omitempty"`
}

// Project derives what viewerID may see of state. roster is the live lobby
// roster and is only used while the room is in the lobby. A nil result means
// the state requires an identity that was not supplied.
func Project(state models.GameState, viewerID string, roster []models.Seat) *ViewerGameState {
	if state.GameMode == models.ModeHotseat {
		return &ViewerGameState{GameState: state.Clone(), ViewerID: viewerID}
	}

	if state.GamePhase == models.PhaseLobby {
		out := state.Clone()
		seats := slices.Clone(roster)
		slices.SortStableFunc(seats, func(a, b models.Seat) int { return a.Seat - b.Seat })
		out.Players = make([]models.Player, len(seats))
		for i, s := range seats {
			out.Players[i] = models.Player{ID: s.PlayerID, Name: s.Name, Hand: []models.HandSlot{}}
		}
		return &ViewerGameState{GameState: out, ViewerID: viewerID}
	}

	if viewerID == "" {
		return nil
	}

	out := state.Clone()
	out.DrawPile = hideAll(out.DrawPile)

	if state.GamePhase == models.PhaseRoundEnd || state.GamePhase == models.PhaseGameOver {
		return &ViewerGameState{GameState: out, ViewerID: viewerID}
	}

	for pi := range out.Players {
		if out.Players[pi].ID == viewerID {
			continue
		}
		hand := out.Players[pi].Hand
		for si := range hand {
			hand[si].Card = models.HiddenCard
			hand[si].HasBeenPeeked = false
			if state.GamePhase == models.PhasePeeking {
				hand[si].IsFaceUp = false
			}
		}
	}

	active := activeViewerIndex(state)
	isActive := active >= 0 && state.Players[active].ID == viewerID
	if !isActive {
		out.TempCards = nil
		if out.DrawnCard != nil && out.DrawSource != models.DrawSourceDiscard {
			hidden := models.HiddenCard
			out.DrawnCard = &hidden
		}
	}
	return &ViewerGameState{GameState: out, ViewerID: viewerID}
}

func hideAll(cards []models.Card) []models.Card {
	out := make([]models.Card, len(cards))
	for i := range out {
		out[i] = models.HiddenCard
	}
	return out
}

// activeViewerIndex mirrors the engine's turn resolution without failing.
func activeViewerIndex(s models.GameState) int {
	idx := s.CurrentPlayerIndex
	if s.GamePhase == models.PhasePeeking && s.PeekingState != nil {
		idx = s.PeekingState.PlayerIndex
	}
	if idx < 0 || idx >= len(s.Players) {
		return -1
	}
	return idx
}
