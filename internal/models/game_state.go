// internal/models/game_state.go
package models

// GameMode is the session topology a room was created for.
type GameMode string

const (
	ModeMultiplayer  GameMode = "multiplayer"
	ModeHotseat      GameMode = "hotseat"
	ModeSinglePlayer GameMode = "single_player"
)

// Valid reports whether m is a known topology.
func (m GameMode) Valid() bool {
	switch m {
	case ModeMultiplayer, ModeHotseat, ModeSinglePlayer:
		return true
	}
	return false
}

// Phase is the state machine position of a room.
type Phase string

const (
	PhaseLobby              Phase = "lobby"
	PhasePeeking            Phase = "peeking"
	PhasePlaying            Phase = "playing"
	PhaseHoldingCard        Phase = "holding_card"
	PhaseActionTake2        Phase = "action_take_2"
	PhaseActionPeek1        Phase = "action_peek_1"
	PhaseActionSwap2Select1 Phase = "action_swap_2_select_1"
	PhaseActionSwap2Select2 Phase = "action_swap_2_select_2"
	PhaseRoundEnd           Phase = "round_end"
	PhaseGameOver           Phase = "game_over"
)

// RoundInProgress reports whether cards are dealt and the round has not been scored.
func (p Phase) RoundInProgress() bool {
	switch p {
	case PhaseLobby, PhaseRoundEnd, PhaseGameOver:
		return false
	}
	return true
}

// DrawSource records where the held card came from.
type DrawSource string

const (
	DrawSourceDeck    DrawSource = "deck"
	DrawSourceDiscard DrawSource = "discard"
	DrawSourceTake2   DrawSource = "take2"
)

// RoundEndReason explains why a round was scored.
type RoundEndReason string

const (
	ReasonPobudka       RoundEndReason = "pobudka"
	ReasonDeckExhausted RoundEndReason = "deck_exhausted"
)

// PeekingState tracks whose pre-round peek is in progress.
type PeekingState struct {
	PlayerIndex int `json:"playerIndex"`
	PeekedCount int `json:"peekedCount"`
}

// CardRef addresses one hand slot.
type CardRef struct {
	PlayerID  string `json:"playerId"`
	CardIndex int    `json:"cardIndex"`
}

// SwapState holds the first selection of a swap_2 action.
type SwapState struct {
	Card1 *CardRef `json:"card1,omitempty"`
}

// RoundScore is one player's line in a round summary.
type RoundScore struct {
	PlayerID   string `json:"playerId"`
	HandValue  int    `json:"handValue"`
	Penalty    int    `json:"penalty"`
	RoundScore int    `json:"roundScore"`
	TotalScore int    `json:"totalScore"`
}

// LastMove summarises the most recent accepted action for clients.
type LastMove struct {
	PlayerID string `json:"playerId,omitempty"`
	Type     string `json:"type"`
	Message  string `json:"message,omitempty"`
}

// GameState is the authoritative document for one room.
type GameState struct {
	GameMode            GameMode      `json:"gameMode"`
	HostID              string        `json:"hostId"`
	DrawPile            []Card        `json:"drawPile"`
	DiscardPile         []Card        `json:"discardPile"`
	Players             []Player      `json:"players"`
	StartingPlayerIndex int           `json:"startingPlayerIndex"`
	CurrentPlayerIndex  int           `json:"currentPlayerIndex"`
	GamePhase           Phase         `json:"gamePhase"`
	PeekingState        *PeekingState `json:"peekingState,omitempty"`
	DrawnCard           *Card         `json:"drawnCard,omitempty"`
	DrawSource          DrawSource    `json:"drawSource,omitempty"`
	TempCards           []Card        `json:"tempCards,omitempty"`
	SwapState           *SwapState    `json:"swapState,omitempty"`
	LastRoundScores     []RoundScore  `json:"lastRoundScores,omitempty"`
	LastCallerID        string        `json:"lastCallerId,omitempty"`
	LastMove            *LastMove     `json:"lastMove,omitempty"`
	TurnCount           int           `json:"turnCount"`
	ActionMessage       string        `json:"actionMessage"`

	RoundNumber   int            `json:"roundNumber"`
	RoundReason   RoundEndReason `json:"roundReason,omitempty"`
	RoundWinnerID string         `json:"roundWinnerId,omitempty"`
	WinnerID      string         `json:"winnerId,omitempty"`
}

// NewGameState returns the empty lobby document created with a room.
func NewGameState(mode GameMode, hostID string) GameState {
	return GameState{
		GameMode:    mode,
		HostID:      hostID,
		DrawPile:    []Card{},
		DiscardPile: []Card{},
		Players:     []Player{},
		GamePhase:   PhaseLobby,
	}
}

// PlayerIndex returns the seat index of playerID or -1.
func (s *GameState) PlayerIndex(playerID string) int {
	for i, p := range s.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// CardsInPlay counts every card the round is accountable for.
func (s *GameState) CardsInPlay() int {
	n := len(s.DrawPile) + len(s.DiscardPile) + len(s.TempCards)
	for _, p := range s.Players {
		n += len(p.Hand)
	}
	if s.DrawnCard != nil {
		n++
	}
	return n
}

// Clone returns a deep copy sharing no slices or pointers with s.
func (s GameState) Clone() GameState {
	out := s
	out.DrawPile = cloneCards(s.DrawPile)
	out.DiscardPile = cloneCards(s.DiscardPile)
	if s.TempCards != nil {
		out.TempCards = cloneCards(s.TempCards)
	}
	if s.Players != nil {
		out.Players = make([]Player, len(s.Players))
		for i, p := range s.Players {
			out.Players[i] = p
			if p.Hand != nil {
				out.Players[i].Hand = append(make([]HandSlot, 0, len(p.Hand)), p.Hand...)
			}
		}
	}
	if s.PeekingState != nil {
		ps := *s.PeekingState
		out.PeekingState = &ps
	}
	if s.DrawnCard != nil {
		c := *s.DrawnCard
		out.DrawnCard = &c
	}
	if s.SwapState != nil {
		ss := SwapState{}
		if s.SwapState.Card1 != nil {
			ref := *s.SwapState.Card1
			ss.Card1 = &ref
		}
		out.SwapState = &ss
	}
	if s.LastRoundScores != nil {
		out.LastRoundScores = append([]RoundScore(nil), s.LastRoundScores...)
	}
	if s.LastMove != nil {
		lm := *s.LastMove
		out.LastMove = &lm
	}
	return out
}

func cloneCards(cards []Card) []Card {
	if cards == nil {
		return nil
	}
	return append(make([]Card, 0, len(cards)), cards...)
}
