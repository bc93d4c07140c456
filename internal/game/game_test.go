// internal/game/game_test.go
package game

import (
	"encoding/json"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestEngine returns an engine with a fixed shuffle so deals are repeatable.
func newTestEngine() *Engine {
	return NewEngine(rand.New(rand.NewPCG(7, 11)))
}

func testRoster(names ...string) []models.Seat {
	seats := make([]models.Seat, len(names))
	for i, n := range names {
		seats[i] = models.Seat{PlayerID: n, Name: n, Seat: i + 1}
	}
	return seats
}

// mustApply applies an action that the test expects to succeed.
func mustApply(t *testing.T, e *Engine, s models.GameState, caller string, a Action) (models.GameState, Result) {
	t.Helper()
	next, res, err := e.Apply(s, caller, a, nil)
	require.NoError(t, err, "applying %s for %s", a.Type(), caller)
	return next, res
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, CodeOf(err), "unexpected error: %v", err)
}

func assertConserved(t *testing.T, s models.GameState) {
	t.Helper()
	assert.Equal(t, DeckSize, s.CardsInPlay(), "deck conservation broken in phase %s", s.GamePhase)
}

func snapshot(t *testing.T, s models.GameState) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

// dealtGame starts a round from the lobby for the given players.
func dealtGame(t *testing.T, e *Engine, names ...string) models.GameState {
	t.Helper()
	s := models.NewGameState(models.ModeMultiplayer, names[0])
	next, _, err := e.Apply(s, names[0], StartNewRound{}, testRoster(names...))
	require.NoError(t, err)
	return next
}

// playingGame deals a round and completes every player's peeks.
func playingGame(t *testing.T, e *Engine, names ...string) models.GameState {
	t.Helper()
	s := dealtGame(t, e, names...)
	for range names {
		peeker := s.Players[s.PeekingState.PlayerIndex].ID
		s, _ = mustApply(t, e, s, peeker, PeekCard{CardIndex: 0})
		s, _ = mustApply(t, e, s, peeker, PeekCard{CardIndex: 1})
		s, _ = mustApply(t, e, s, peeker, FinishPeeking{})
	}
	require.Equal(t, models.PhasePlaying, s.GamePhase)
	return s
}

func card(id, value int) models.Card {
	return models.Card{ID: id, Value: value}
}

func specialCard(id int, sa models.SpecialAction) models.Card {
	return models.Card{ID: id, Value: SpecialCardValue, IsSpecial: true, SpecialAction: sa}
}

func handOf(cards ...models.Card) []models.HandSlot {
	slots := make([]models.HandSlot, len(cards))
	for i, c := range cards {
		slots[i] = models.HandSlot{Card: c}
	}
	return slots
}

// fixedState builds a playing round from explicit hands. Card ids 100+ are free
// for piles.
func fixedState(players ...models.Player) models.GameState {
	s := models.NewGameState(models.ModeMultiplayer, players[0].ID)
	s.Players = players
	s.GamePhase = models.PhasePlaying
	s.RoundNumber = 1
	return s
}

func TestStartNewRoundFromLobby(t *testing.T) {
	e := newTestEngine()
	s := dealtGame(t, e, "alice", "bob")

	assert.Equal(t, models.PhasePeeking, s.GamePhase)
	require.Len(t, s.Players, 2)
	for _, p := range s.Players {
		assert.Len(t, p.Hand, HandSize)
		assert.Zero(t, p.Score)
		for _, slot := range p.Hand {
			assert.False(t, slot.IsFaceUp)
			assert.False(t, slot.HasBeenPeeked)
		}
	}
	assert.Len(t, s.DiscardPile, 1)
	assert.Len(t, s.DrawPile, 45)
	require.NotNil(t, s.PeekingState)
	assert.Equal(t, 0, s.PeekingState.PlayerIndex)
	assert.Equal(t, 1, s.RoundNumber)
	assert.Nil(t, s.DrawnCard)
	assertConserved(t, s)

	seen := map[int]bool{}
	for _, c := range append(append([]models.Card{}, s.DrawPile...), s.DiscardPile...) {
		seen[c.ID] = true
	}
	for _, p := range s.Players {
		for _, slot := range p.Hand {
			seen[slot.Card.ID] = true
		}
	}
	assert.Len(t, seen, DeckSize, "every card id should be dealt exactly once")
}

func TestStartNewRoundOrdersRosterBySeat(t *testing.T) {
	e := newTestEngine()
	roster := []models.Seat{
		{PlayerID: "carol", Name: "Carol", Seat: 3},
		{PlayerID: "alice", Name: "Alice", Seat: 1},
		{PlayerID: "bob", Name: "Bob", Seat: 2},
	}
	s, _, err := e.Apply(models.NewGameState(models.ModeMultiplayer, "alice"), "bob", StartNewRound{}, roster)
	require.NoError(t, err)
	ids := []string{s.Players[0].ID, s.Players[1].ID, s.Players[2].ID}
	assert.Equal(t, []string{"alice", "bob", "carol"}, ids)
}

func TestStartNewRoundRejections(t *testing.T) {
	e := newTestEngine()
	lobby := models.NewGameState(models.ModeMultiplayer, "alice")

	_, _, err := e.Apply(lobby, "alice", StartNewRound{}, testRoster("alice"))
	requireCode(t, err, CodeInsufficientPlayers)

	_, _, err = e.Apply(lobby, "mallory", StartNewRound{}, testRoster("alice", "bob"))
	requireCode(t, err, CodeNotYourTurn)

	s := dealtGame(t, e, "alice", "bob")
	_, _, err = e.Apply(s, "alice", StartNewRound{}, nil)
	requireCode(t, err, CodeWrongPhase)
}

func TestStartNewRoundInsufficientCards(t *testing.T) {
	e := newTestEngine()
	names := make([]string, 14)
	for i := range names {
		names[i] = string(rune('a' + i))
	}
	_, _, err := e.Apply(models.NewGameState(models.ModeMultiplayer, "a"), "a", StartNewRound{}, testRoster(names...))
	requireCode(t, err, CodeInsufficientCards)
}

func TestPeekingFlow(t *testing.T) {
	e := newTestEngine()
	s := dealtGame(t, e, "alice", "bob")

	_, _, err := e.Apply(s, "bob", PeekCard{CardIndex: 0}, nil)
	requireCode(t, err, CodeNotYourTurn)

	_, _, err = e.Apply(s, "alice", PeekCard{PlayerID: "bob", CardIndex: 0}, nil)
	requireCode(t, err, CodeInvalidTarget)

	_, _, err = e.Apply(s, "alice", PeekCard{CardIndex: 4}, nil)
	requireCode(t, err, CodeInvalidTarget)

	_, _, err = e.Apply(s, "alice", FinishPeeking{}, nil)
	requireCode(t, err, CodeWrongPhase)

	s, res := mustApply(t, e, s, "alice", PeekCard{CardIndex: 2})
	require.NotNil(t, res.RevealedCard)
	assert.Equal(t, s.Players[0].Hand[2].Card, res.RevealedCard.Card)
	assert.True(t, s.Players[0].Hand[2].IsFaceUp)
	assert.True(t, s.Players[0].Hand[2].HasBeenPeeked)
	assert.Equal(t, 1, s.PeekingState.PeekedCount)

	before := snapshot(t, s)
	again, _ := mustApply(t, e, s, "alice", PeekCard{CardIndex: 2})
	assert.Equal(t, before, snapshot(t, again), "peeking a face-up card is a no-op")

	s, _ = mustApply(t, e, s, "alice", PeekCard{CardIndex: 3})
	assert.Equal(t, 2, s.PeekingState.PeekedCount)

	before = snapshot(t, s)
	third, _ := mustApply(t, e, s, "alice", PeekCard{CardIndex: 0})
	assert.Equal(t, before, snapshot(t, third), "a third peek is a no-op")

	s, _ = mustApply(t, e, s, "alice", FinishPeeking{})
	assert.Equal(t, models.PhasePeeking, s.GamePhase)
	assert.Equal(t, 1, s.PeekingState.PlayerIndex)
	assert.Zero(t, s.PeekingState.PeekedCount)

	s, _ = mustApply(t, e, s, "bob", PeekCard{CardIndex: 0})
	s, _ = mustApply(t, e, s, "bob", PeekCard{CardIndex: 1})
	s, _ = mustApply(t, e, s, "bob", FinishPeeking{})

	assert.Equal(t, models.PhasePlaying, s.GamePhase)
	assert.Nil(t, s.PeekingState)
	assert.Equal(t, 0, s.CurrentPlayerIndex)
	assert.Zero(t, s.TurnCount)
	for _, p := range s.Players {
		for _, slot := range p.Hand {
			assert.False(t, slot.IsFaceUp, "hands are face down once play starts")
		}
	}
	assert.True(t, s.Players[0].Hand[2].HasBeenPeeked, "peek history is kept")
	assertConserved(t, s)
}

func TestDrawAndDiscardAdvancesTurn(t *testing.T) {
	e := newTestEngine()
	s := playingGame(t, e, "alice", "bob", "carol")
	top := s.DrawPile[len(s.DrawPile)-1]

	s, _ = mustApply(t, e, s, "alice", DrawFromDeck{})
	assert.Equal(t, models.PhaseHoldingCard, s.GamePhase)
	require.NotNil(t, s.DrawnCard)
	assert.Equal(t, top, *s.DrawnCard)
	assert.Equal(t, models.DrawSourceDeck, s.DrawSource)
	assertConserved(t, s)

	s, _ = mustApply(t, e, s, "alice", DiscardHeldCard{})
	assert.Equal(t, models.PhasePlaying, s.GamePhase)
	assert.Nil(t, s.DrawnCard)
	assert.Empty(t, s.DrawSource)
	assert.Equal(t, top, s.DiscardPile[len(s.DiscardPile)-1])
	assert.Equal(t, 1, s.CurrentPlayerIndex)
	assert.Equal(t, 1, s.TurnCount)
	assert.Equal(t, "DISCARD_HELD_CARD", s.LastMove.Type)
	assertConserved(t, s)
}

func TestSwapHeldCard(t *testing.T) {
	e := newTestEngine()
	s := playingGame(t, e, "alice", "bob")
	replaced := s.Players[0].Hand[1].Card

	s, _ = mustApply(t, e, s, "alice", DrawFromDiscard{})
	held := *s.DrawnCard

	_, _, err := e.Apply(s, "alice", SwapHeldCard{CardIndex: 4}, nil)
	requireCode(t, err, CodeInvalidTarget)

	s, _ = mustApply(t, e, s, "alice", SwapHeldCard{CardIndex: 1})
	assert.Equal(t, models.HandSlot{Card: held}, s.Players[0].Hand[1])
	assert.Equal(t, replaced, s.DiscardPile[len(s.DiscardPile)-1])
	assert.Equal(t, 1, s.CurrentPlayerIndex)
	assertConserved(t, s)
}

func TestDrawFromEmptyDeckEndsRound(t *testing.T) {
	e := newTestEngine()
	s := playingGame(t, e, "alice", "bob")
	s.DiscardPile = append(s.DiscardPile, s.DrawPile...)
	s.DrawPile = []models.Card{}

	next, res, err := e.Apply(s, "alice", DrawFromDeck{}, nil)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRoundEnd, next.GamePhase)
	require.NotNil(t, res.Round)
	assert.Equal(t, models.ReasonDeckExhausted, res.Round.Reason)
	for _, p := range next.Players {
		for _, slot := range p.Hand {
			assert.True(t, slot.IsFaceUp)
		}
	}
	for _, sc := range next.LastRoundScores {
		assert.Zero(t, sc.Penalty)
	}
	assertConserved(t, next)
}

func TestDiscardTakenFromDiscardRejected(t *testing.T) {
	e := newTestEngine()
	s := playingGame(t, e, "alice", "bob")
	s, _ = mustApply(t, e, s, "alice", DrawFromDiscard{})

	_, _, err := e.Apply(s, "alice", DiscardHeldCard{}, nil)
	requireCode(t, err, CodeWrongPhase)
	assert.Contains(t, err.Error(), "cannot discard a card taken from discard")
}

func TestDrawFromEmptyDiscardRejected(t *testing.T) {
	s := fixedState(
		models.Player{ID: "alice", Name: "alice", Hand: handOf(card(0, 1), card(1, 1), card(2, 1), card(3, 1))},
		models.Player{ID: "bob", Name: "bob", Hand: handOf(card(4, 1), card(5, 1), card(6, 1), card(7, 1))},
	)
	s.DrawPile = []models.Card{card(100, 3)}
	_, _, err := newTestEngine().Apply(s, "alice", DrawFromDiscard{}, nil)
	requireCode(t, err, CodeWrongPhase)
}

func TestNotYourTurnLeavesStateUntouched(t *testing.T) {
	e := newTestEngine()
	s := playingGame(t, e, "alice", "bob")
	before := snapshot(t, s)

	for _, a := range []Action{DrawFromDeck{}, DrawFromDiscard{}, CallPobudka{}} {
		_, _, err := e.Apply(s, "bob", a, nil)
		requireCode(t, err, CodeNotYourTurn)
		assert.Equal(t, before, snapshot(t, s), "%s must not mutate state", a.Type())
	}

	held, _ := mustApply(t, e, s, "alice", DrawFromDeck{})
	heldBefore := snapshot(t, held)
	for _, a := range []Action{DiscardHeldCard{}, SwapHeldCard{CardIndex: 0}, UseSpecialAction{}} {
		_, _, err := e.Apply(held, "bob", a, nil)
		requireCode(t, err, CodeNotYourTurn)
		assert.Equal(t, heldBefore, snapshot(t, held))
	}
	assert.Equal(t, before, snapshot(t, s), "applying to a state never mutates the input")
}

func TestWrongPhase(t *testing.T) {
	e := newTestEngine()
	s := playingGame(t, e, "alice", "bob")

	for _, a := range []Action{DiscardHeldCard{}, SwapHeldCard{CardIndex: 0}, UseSpecialAction{}, FinishPeeking{},
		PeekCard{CardIndex: 0}, Peek1Select{PlayerID: "bob", CardIndex: 0}, Swap2Select{PlayerID: "bob", CardIndex: 0},
		Take2Choose{CardID: 1}, StartNewRound{}} {
		_, _, err := e.Apply(s, "alice", a, nil)
		requireCode(t, err, CodeWrongPhase)
	}
}

func TestPeek1Special(t *testing.T) {
	s := fixedState(
		models.Player{ID: "alice", Name: "alice", Hand: handOf(card(0, 1), card(1, 2), card(2, 3), card(3, 4))},
		models.Player{ID: "bob", Name: "bob", Hand: handOf(card(4, 5), card(5, 6), card(6, 7), card(7, 8))},
	)
	s.DrawPile = []models.Card{card(100, 0), specialCard(101, models.SpecialPeek1)}
	e := newTestEngine()

	s, _ = mustApply(t, e, s, "alice", DrawFromDeck{})
	s, _ = mustApply(t, e, s, "alice", UseSpecialAction{})
	assert.Equal(t, models.PhaseActionPeek1, s.GamePhase)
	require.NotNil(t, s.DrawnCard, "the special stays held until a target is picked")

	_, _, err := e.Apply(s, "alice", Peek1Select{PlayerID: "nobody", CardIndex: 0}, nil)
	requireCode(t, err, CodeInvalidTarget)
	_, _, err = e.Apply(s, "alice", Peek1Select{PlayerID: "bob", CardIndex: 9}, nil)
	requireCode(t, err, CodeInvalidTarget)

	s, res := mustApply(t, e, s, "alice", Peek1Select{PlayerID: "bob", CardIndex: 2})
	require.NotNil(t, res.RevealedCard)
	assert.Equal(t, card(6, 7), res.RevealedCard.Card)
	assert.True(t, s.Players[1].Hand[2].HasBeenPeeked)
	assert.False(t, s.Players[1].Hand[2].IsFaceUp)
	assert.Equal(t, specialCard(101, models.SpecialPeek1), s.DiscardPile[len(s.DiscardPile)-1])
	assert.Nil(t, s.DrawnCard)
	assert.Equal(t, models.PhasePlaying, s.GamePhase)
	assert.Equal(t, 1, s.CurrentPlayerIndex)
}

func TestSwap2Special(t *testing.T) {
	base := fixedState(
		models.Player{ID: "alice", Name: "alice", Hand: handOf(card(0, 1), card(1, 2), card(2, 3), card(3, 4))},
		models.Player{ID: "bob", Name: "bob", Hand: handOf(card(4, 5), card(5, 6), card(6, 7), card(7, 8))},
	)
	base.DrawPile = []models.Card{card(100, 0), specialCard(101, models.SpecialSwap2)}
	e := newTestEngine()

	s, _ := mustApply(t, e, base, "alice", DrawFromDeck{})
	s, _ = mustApply(t, e, s, "alice", UseSpecialAction{})
	require.Equal(t, models.PhaseActionSwap2Select1, s.GamePhase)

	t.Run("between players", func(t *testing.T) {
		s1, _ := mustApply(t, e, s, "alice", Swap2Select{PlayerID: "alice", CardIndex: 0})
		assert.Equal(t, models.PhaseActionSwap2Select2, s1.GamePhase)
		require.NotNil(t, s1.SwapState)
		assert.Equal(t, models.CardRef{PlayerID: "alice", CardIndex: 0}, *s1.SwapState.Card1)

		s2, _ := mustApply(t, e, s1, "alice", Swap2Select{PlayerID: "bob", CardIndex: 3})
		assert.Equal(t, card(7, 8), s2.Players[0].Hand[0].Card)
		assert.Equal(t, card(0, 1), s2.Players[1].Hand[3].Card)
		assert.Nil(t, s2.SwapState)
		assert.Nil(t, s2.DrawnCard)
		assert.Equal(t, models.PhasePlaying, s2.GamePhase)
		assert.Equal(t, specialCard(101, models.SpecialSwap2), s2.DiscardPile[len(s2.DiscardPile)-1])
	})

	t.Run("within one hand", func(t *testing.T) {
		s1, _ := mustApply(t, e, s, "alice", Swap2Select{PlayerID: "bob", CardIndex: 0})
		s2, _ := mustApply(t, e, s1, "alice", Swap2Select{PlayerID: "bob", CardIndex: 1})
		assert.Equal(t, card(5, 6), s2.Players[1].Hand[0].Card)
		assert.Equal(t, card(4, 5), s2.Players[1].Hand[1].Card)
	})

	t.Run("missing first selection", func(t *testing.T) {
		broken := s.Clone()
		broken.GamePhase = models.PhaseActionSwap2Select2
		_, _, err := e.Apply(broken, "alice", Swap2Select{PlayerID: "bob", CardIndex: 1}, nil)
		requireCode(t, err, CodeMissingPrerequisiteState)
	})
}

func TestTake2Special(t *testing.T) {
	s := fixedState(
		models.Player{ID: "alice", Name: "alice", Hand: handOf(card(0, 1), card(1, 2), card(2, 3), card(3, 4))},
		models.Player{ID: "bob", Name: "bob", Hand: handOf(card(4, 5), card(5, 6), card(6, 7), card(7, 8))},
	)
	s.DrawPile = []models.Card{card(100, 9), card(102, 0), card(103, 5), specialCard(101, models.SpecialTake2)}
	e := newTestEngine()

	s, _ = mustApply(t, e, s, "alice", DrawFromDeck{})
	s, _ = mustApply(t, e, s, "alice", UseSpecialAction{})
	assert.Equal(t, models.PhaseActionTake2, s.GamePhase)
	assert.Nil(t, s.DrawnCard)
	assert.Equal(t, []models.Card{card(103, 5), card(102, 0)}, s.TempCards)
	assert.Equal(t, []models.Card{card(100, 9)}, s.DrawPile)

	_, _, err := e.Apply(s, "alice", Take2Choose{CardID: 100}, nil)
	requireCode(t, err, CodeInvalidTarget)

	s, _ = mustApply(t, e, s, "alice", Take2Choose{CardID: 102})
	assert.Equal(t, models.PhaseHoldingCard, s.GamePhase)
	assert.Equal(t, card(102, 0), *s.DrawnCard)
	assert.Equal(t, models.DrawSourceTake2, s.DrawSource)
	assert.Nil(t, s.TempCards)
	assert.Equal(t, card(103, 5), s.DiscardPile[len(s.DiscardPile)-1])

	_, _, err = e.Apply(s, "alice", DiscardHeldCard{}, nil)
	requireCode(t, err, CodeWrongPhase)

	s, _ = mustApply(t, e, s, "alice", SwapHeldCard{CardIndex: 3})
	assert.Equal(t, card(102, 0), s.Players[0].Hand[3].Card)
}

func TestTake2WithEmptyDeckEndsRound(t *testing.T) {
	s := fixedState(
		models.Player{ID: "alice", Name: "alice", Hand: handOf(card(0, 1), card(1, 2), card(2, 3), card(3, 4))},
		models.Player{ID: "bob", Name: "bob", Hand: handOf(card(4, 5), card(5, 6), card(6, 7), card(7, 8))},
	)
	s.DrawPile = []models.Card{specialCard(101, models.SpecialTake2)}
	e := newTestEngine()

	s, _ = mustApply(t, e, s, "alice", DrawFromDeck{})
	s, res := mustApply(t, e, s, "alice", UseSpecialAction{})
	assert.Equal(t, models.PhaseRoundEnd, s.GamePhase)
	require.NotNil(t, res.Round)
	assert.Equal(t, models.ReasonDeckExhausted, res.Round.Reason)
	assert.Nil(t, s.DrawnCard)
	assert.Contains(t, s.DiscardPile, specialCard(101, models.SpecialTake2))
}

func TestUseSpecialActionRejections(t *testing.T) {
	s := fixedState(
		models.Player{ID: "alice", Name: "alice", Hand: handOf(card(0, 1), card(1, 2), card(2, 3), card(3, 4))},
		models.Player{ID: "bob", Name: "bob", Hand: handOf(card(4, 5), card(5, 6), card(6, 7), card(7, 8))},
	)
	s.DrawPile = []models.Card{card(100, 4)}
	s.DiscardPile = []models.Card{specialCard(101, models.SpecialPeek1)}
	e := newTestEngine()

	fromDiscard, _ := mustApply(t, e, s, "alice", DrawFromDiscard{})
	_, _, err := e.Apply(fromDiscard, "alice", UseSpecialAction{}, nil)
	requireCode(t, err, CodeWrongPhase)

	plain, _ := mustApply(t, e, s, "alice", DrawFromDeck{})
	_, _, err = e.Apply(plain, "alice", UseSpecialAction{}, nil)
	requireCode(t, err, CodeWrongPhase)
}

func TestPobudkaPenalty(t *testing.T) {
	cases := []struct {
		name        string
		callerHand  []models.Card
		otherHand   []models.Card
		wantPenalty int
	}{
		{"caller above minimum", []models.Card{card(0, 3), card(1, 3), card(2, 3), card(3, 3)}, []models.Card{card(4, 0), card(5, 1), card(6, 0), card(7, 0)}, PobudkaPenalty},
		{"caller tied at minimum", []models.Card{card(0, 1), card(1, 0), card(2, 0), card(3, 0)}, []models.Card{card(4, 0), card(5, 1), card(6, 0), card(7, 0)}, 0},
		{"caller lowest", []models.Card{card(0, 0), card(1, 0), card(2, 0), card(3, 0)}, []models.Card{card(4, 2), card(5, 1), card(6, 0), card(7, 0)}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := fixedState(
				models.Player{ID: "alice", Name: "alice", Hand: handOf(tc.callerHand...)},
				models.Player{ID: "bob", Name: "bob", Hand: handOf(tc.otherHand...)},
			)
			next, res := mustApply(t, newTestEngine(), s, "alice", CallPobudka{})
			assert.Equal(t, models.PhaseRoundEnd, next.GamePhase)
			assert.Equal(t, tc.wantPenalty, next.LastRoundScores[0].Penalty)
			assert.Zero(t, next.LastRoundScores[1].Penalty)
			assert.Equal(t, s.Players[0].HandValue()+tc.wantPenalty, next.Players[0].Score)
			assert.Equal(t, "alice", next.LastCallerID)
			require.NotNil(t, res.Round)
			assert.Equal(t, models.ReasonPobudka, res.Round.Reason)
		})
	}
}

func TestPobudkaEndsGame(t *testing.T) {
	s := fixedState(
		models.Player{ID: "alice", Name: "alice", Score: 95, Hand: handOf(card(0, 1), card(1, 1), card(2, 1), card(3, 2))},
		models.Player{ID: "bob", Name: "bob", Score: 0, Hand: handOf(card(4, 0), card(5, 0), card(6, 0), card(7, 1))},
	)
	next, res := mustApply(t, newTestEngine(), s, "alice", CallPobudka{})

	assert.Equal(t, 105, next.Players[0].Score)
	assert.Equal(t, models.PhaseGameOver, next.GamePhase)
	assert.Equal(t, "bob", next.WinnerID)
	assert.Equal(t, "bob", next.RoundWinnerID)
	require.NotNil(t, res.Round)
	assert.True(t, res.Round.GameOver)
	assert.Equal(t, "bob", res.Round.WinnerID)
	for _, p := range next.Players {
		for _, slot := range p.Hand {
			assert.True(t, slot.IsFaceUp)
		}
	}

	_, _, err := newTestEngine().Apply(next, "alice", StartNewRound{}, nil)
	requireCode(t, err, CodeWrongPhase)
}

func TestNextRoundRotatesStartAndKeepsScores(t *testing.T) {
	e := newTestEngine()
	s := playingGame(t, e, "alice", "bob", "carol")
	s, _ = mustApply(t, e, s, "alice", CallPobudka{})
	require.Equal(t, models.PhaseRoundEnd, s.GamePhase)
	scores := []int{s.Players[0].Score, s.Players[1].Score, s.Players[2].Score}

	s, _ = mustApply(t, e, s, "carol", StartNewRound{})
	assert.Equal(t, models.PhasePeeking, s.GamePhase)
	assert.Equal(t, 1, s.StartingPlayerIndex)
	assert.Equal(t, 1, s.PeekingState.PlayerIndex)
	assert.Equal(t, 2, s.RoundNumber)
	assert.Nil(t, s.LastRoundScores)
	assert.Empty(t, s.LastCallerID)
	assert.Equal(t, scores, []int{s.Players[0].Score, s.Players[1].Score, s.Players[2].Score})
	assertConserved(t, s)

	_, _, err := e.Apply(s, "alice", PeekCard{CardIndex: 0}, nil)
	requireCode(t, err, CodeNotYourTurn)

	// Peeking wraps from the last seat back around to the round's start.
	for i := 0; i < 3; i++ {
		peeker := s.Players[s.PeekingState.PlayerIndex].ID
		s, _ = mustApply(t, e, s, peeker, PeekCard{CardIndex: 0})
		s, _ = mustApply(t, e, s, peeker, PeekCard{CardIndex: 1})
		s, _ = mustApply(t, e, s, peeker, FinishPeeking{})
	}
	assert.Equal(t, models.PhasePlaying, s.GamePhase)
	assert.Equal(t, 1, s.CurrentPlayerIndex)
}

func TestDeckConservationOverManyTurns(t *testing.T) {
	e := newTestEngine()
	s := playingGame(t, e, "alice", "bob", "carol", "dave")
	for turn := 0; s.GamePhase == models.PhasePlaying && turn < 200; turn++ {
		caller := s.Players[s.CurrentPlayerIndex].ID
		s, _ = mustApply(t, e, s, caller, DrawFromDeck{})
		assertConserved(t, s)
		if s.GamePhase != models.PhaseHoldingCard {
			break
		}
		if turn%2 == 0 {
			s, _ = mustApply(t, e, s, caller, DiscardHeldCard{})
		} else {
			s, _ = mustApply(t, e, s, caller, SwapHeldCard{CardIndex: turn % HandSize})
		}
		assertConserved(t, s)
	}
	assert.Equal(t, models.PhaseRoundEnd, s.GamePhase, "drawing every turn eventually exhausts the deck")
	assertConserved(t, s)
}

func TestPlacementsShareRanks(t *testing.T) {
	players := []models.Player{
		{ID: "a", Name: "A", Score: 40},
		{ID: "b", Name: "B", Score: 12},
		{ID: "c", Name: "C", Score: 40},
		{ID: "d", Name: "D", Score: 101},
	}
	got := Placements(players)
	require.Len(t, got, 4)
	assert.Equal(t, "b", got[0].PlayerID)
	assert.Equal(t, 1, got[0].Place)
	assert.Equal(t, 2, got[1].Place)
	assert.Equal(t, 2, got[2].Place)
	assert.Equal(t, "a", got[1].PlayerID, "equal scores keep seat order")
	assert.Equal(t, 4, got[3].Place)
}

func TestBuildMatchRecord(t *testing.T) {
	s := fixedState(
		models.Player{ID: "alice", Name: "Alice", Score: 105},
		models.Player{ID: "bob", Name: "Bob", Score: 31},
	)
	_, err := BuildMatchRecord("m1", "room", s, time.Now())
	requireCode(t, err, CodeWrongPhase)

	s.GamePhase = models.PhaseGameOver
	s.WinnerID = "bob"
	rec, err := BuildMatchRecord("m1", "room", s, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "bob", rec.WinnerPlayerID)
	assert.Equal(t, "Bob", rec.WinnerName)
	assert.Equal(t, 31, rec.WinningScore)
	assert.Equal(t, 2, rec.PlayerCount)
	require.Len(t, rec.Placements, 2)
	assert.Equal(t, "m1", rec.Placements[0].MatchID)
	assert.Equal(t, "room", rec.Placements[1].RoomID)
}

func TestVerifyDeck(t *testing.T) {
	require.NoError(t, VerifyDeck(NewDeck()))

	short := NewDeck()[1:]
	assert.Error(t, VerifyDeck(short))

	skewed := NewDeck()
	skewed[0].Value = 9
	assert.Error(t, VerifyDeck(skewed))
}

func TestParseAction(t *testing.T) {
	cases := []struct {
		in   string
		want Action
		code Code
	}{
		{`{"type":"DRAW_FROM_DECK"}`, DrawFromDeck{}, ""},
		{`{"type":"PEEK_CARD","payload":{"cardIndex":2}}`, PeekCard{CardIndex: 2}, ""},
		{`{"type":"ACTION_SWAP_2_SELECT","payload":{"playerId":"bob","cardIndex":1}}`, Swap2Select{PlayerID: "bob", CardIndex: 1}, ""},
		{`{"type":"ACTION_TAKE_2_CHOOSE","payload":{"cardId":17}}`, Take2Choose{CardID: 17}, ""},
		{`{"payload":{}}`, nil, CodeInvalidActionShape},
		{`[]`, nil, CodeInvalidActionShape},
		{`{"type":"FLIP_TABLE"}`, nil, CodeUnknownActionType},
		{`{"type":"SWAP_HELD_CARD"}`, nil, CodeInvalidActionShape},
		{`{"type":"SWAP_HELD_CARD","payload":{"cardIndex":"one"}}`, nil, CodeInvalidActionShape},
		{`{"type":"SWAP_HELD_CARD","payload":{"slot":1}}`, nil, CodeInvalidActionShape},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseAction([]byte(tc.in))
			if tc.code != "" {
				requireCode(t, err, tc.code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)

			raw, err := MarshalAction(got)
			require.NoError(t, err)
			again, err := ParseAction(raw)
			require.NoError(t, err)
			assert.Equal(t, got, again)
		})
	}
}

func TestApplyNilAction(t *testing.T) {
	_, _, err := newTestEngine().Apply(models.NewGameState(models.ModeMultiplayer, "a"), "a", nil, nil)
	requireCode(t, err, CodeInvalidActionShape)
}
