// internal/game/engine.go
package game

import (
	"fmt"
	"slices"

	"github.com/jason-s-yu/pobudka/internal/models"
)

// MinPlayers is the smallest roster that may leave the lobby.
const MinPlayers = 2

// Result is the action-specific value returned to the submitting caller and
// stored verbatim in the idempotency ledger.
type Result struct {
	OK           bool          `json:"ok"`
	Phase        models.Phase  `json:"phase"`
	RevealedCard *RevealedCard `json:"revealedCard,omitempty"`
	Round        *RoundSummary `json:"round,omitempty"`
}

// RevealedCard is the private answer to a peek.
type RevealedCard struct {
	PlayerID  string      `json:"playerId"`
	CardIndex int         `json:"cardIndex"`
	Card      models.Card `json:"card"`
}

// Engine is the single transition function shared by every topology. It holds
// no per-room state; callers source and persist GameState themselves.
type Engine struct {
	shuffler Shuffler
}

// NewEngine returns an engine shuffling with s, or DefaultShuffler when s is nil.
func NewEngine(s Shuffler) *Engine {
	if s == nil {
		s = DefaultShuffler
	}
	return &Engine{shuffler: s}
}

// transition carries the working copy through one Apply call.
type transition struct {
	engine *Engine
	s      *models.GameState
	caller string
	roster []models.Seat
	result Result
	msg    string
	noop   bool
}

// Apply validates action for callerID against state and returns the next state.
// state is never modified; on error the returned state is state itself.
// roster is only consulted when START_NEW_ROUND leaves the lobby.
func (e *Engine) Apply(state models.GameState, callerID string, action Action, roster []models.Seat) (models.GameState, Result, error) {
	if action == nil {
		return state, Result{}, NewError(CodeInvalidActionShape, "action is required")
	}
	next := state.Clone()
	t := &transition{engine: e, s: &next, caller: callerID, roster: roster}

	var err error
	switch a := action.(type) {
	case PeekCard:
		err = t.peekCard(a)
	case FinishPeeking:
		err = t.finishPeeking()
	case DrawFromDeck:
		err = t.drawFromDeck()
	case DrawFromDiscard:
		err = t.drawFromDiscard()
	case DiscardHeldCard:
		err = t.discardHeldCard()
	case SwapHeldCard:
		err = t.swapHeldCard(a)
	case UseSpecialAction:
		err = t.useSpecialAction()
	case Peek1Select:
		err = t.peek1Select(a)
	case Swap2Select:
		err = t.swap2Select(a)
	case Take2Choose:
		err = t.take2Choose(a)
	case CallPobudka:
		err = t.callPobudka()
	case StartNewRound:
		err = t.startNewRound()
	default:
		err = NewError(CodeUnknownActionType, "unknown action type %q", action.Type())
	}
	if err != nil {
		return state, Result{}, err
	}
	if t.noop {
		return state, Result{OK: true, Phase: state.GamePhase}, nil
	}

	next.ActionMessage = t.msg
	next.LastMove = &models.LastMove{PlayerID: callerID, Type: string(action.Type()), Message: t.msg}
	t.result.OK = true
	t.result.Phase = next.GamePhase
	return next, t.result, nil
}

// requirePhase fails with WRONG_PHASE unless the room is in one of phases.
func (t *transition) requirePhase(phases ...models.Phase) error {
	if slices.Contains(phases, t.s.GamePhase) {
		return nil
	}
	return wrongPhase("action not allowed during %s", t.s.GamePhase)
}

// activeIndex resolves whose turn it is: the peeker during peeking, otherwise
// the current player.
func (t *transition) activeIndex() (int, error) {
	idx := t.s.CurrentPlayerIndex
	if t.s.GamePhase == models.PhasePeeking {
		if t.s.PeekingState == nil {
			return -1, missingState("peeking state is missing")
		}
		idx = t.s.PeekingState.PlayerIndex
	}
	if idx < 0 || idx >= len(t.s.Players) {
		return -1, missingState("active player index %d is out of range", idx)
	}
	return idx, nil
}

// requireTurn checks the phase and that the caller is the active player.
func (t *transition) requireTurn(phases ...models.Phase) (int, error) {
	if err := t.requirePhase(phases...); err != nil {
		return -1, err
	}
	idx, err := t.activeIndex()
	if err != nil {
		return -1, err
	}
	if t.s.Players[idx].ID != t.caller {
		return -1, NewError(CodeNotYourTurn, "it is %s's turn", t.s.Players[idx].Name)
	}
	return idx, nil
}

// target resolves a (player, index) pair to hand coordinates.
func (t *transition) target(playerID string, cardIndex int) (int, error) {
	pi := t.s.PlayerIndex(playerID)
	if pi < 0 {
		return -1, invalidTarget("unknown player %q", playerID)
	}
	if cardIndex < 0 || cardIndex >= len(t.s.Players[pi].Hand) {
		return -1, invalidTarget("card index %d out of range", cardIndex)
	}
	return pi, nil
}

func (t *transition) name(idx int) string {
	return t.s.Players[idx].Name
}

func (t *transition) peekCard(a PeekCard) error {
	idx, err := t.requireTurn(models.PhasePeeking)
	if err != nil {
		return err
	}
	if a.PlayerID != "" && a.PlayerID != t.caller {
		return invalidTarget("you may only peek at your own cards")
	}
	hand := t.s.Players[idx].Hand
	if a.CardIndex < 0 || a.CardIndex >= len(hand) {
		return invalidTarget("card index %d out of range", a.CardIndex)
	}
	ps := t.s.PeekingState
	if ps.PeekedCount >= PeeksPerPlayer || hand[a.CardIndex].IsFaceUp {
		// Repeated or third peeks are accepted and change nothing.
		t.noop = true
		return nil
	}
	hand[a.CardIndex].IsFaceUp = true
	hand[a.CardIndex].HasBeenPeeked = true
	ps.PeekedCount = min(ps.PeekedCount+1, PeeksPerPlayer)
	t.result.RevealedCard = &RevealedCard{PlayerID: t.caller, CardIndex: a.CardIndex, Card: hand[a.CardIndex].Card}
	t.msg = fmt.Sprintf("%s peeked at a card", t.name(idx))
	return nil
}

func (t *transition) finishPeeking() error {
	idx, err := t.requireTurn(models.PhasePeeking)
	if err != nil {
		return err
	}
	if t.s.PeekingState.PeekedCount != PeeksPerPlayer {
		return wrongPhase("you must peek at %d cards first", PeeksPerPlayer)
	}
	next := (idx + 1) % len(t.s.Players)
	if next != t.s.StartingPlayerIndex {
		t.s.PeekingState = &models.PeekingState{PlayerIndex: next}
		t.msg = fmt.Sprintf("%s is peeking", t.name(next))
		return nil
	}
	for pi := range t.s.Players {
		for si := range t.s.Players[pi].Hand {
			t.s.Players[pi].Hand[si].IsFaceUp = false
		}
	}
	t.s.PeekingState = nil
	t.s.GamePhase = models.PhasePlaying
	t.s.CurrentPlayerIndex = t.s.StartingPlayerIndex
	t.s.TurnCount = 0
	t.msg = fmt.Sprintf("%s's turn", t.name(t.s.CurrentPlayerIndex))
	return nil
}

func (t *transition) drawFromDeck() error {
	idx, err := t.requireTurn(models.PhasePlaying)
	if err != nil {
		return err
	}
	if len(t.s.DrawPile) == 0 {
		t.endRound(models.ReasonDeckExhausted, "")
		return nil
	}
	var card models.Card
	card, t.s.DrawPile = popTop(t.s.DrawPile)
	t.hold(card, models.DrawSourceDeck)
	t.msg = fmt.Sprintf("%s drew from the deck", t.name(idx))
	return nil
}

func (t *transition) drawFromDiscard() error {
	idx, err := t.requireTurn(models.PhasePlaying)
	if err != nil {
		return err
	}
	if len(t.s.DiscardPile) == 0 {
		return wrongPhase("the discard pile is empty")
	}
	var card models.Card
	card, t.s.DiscardPile = popTop(t.s.DiscardPile)
	t.hold(card, models.DrawSourceDiscard)
	t.msg = fmt.Sprintf("%s took the top discard", t.name(idx))
	return nil
}

func (t *transition) hold(card models.Card, src models.DrawSource) {
	t.s.DrawnCard = &card
	t.s.DrawSource = src
	t.s.GamePhase = models.PhaseHoldingCard
}

func (t *transition) discardHeldCard() error {
	idx, err := t.requireTurn(models.PhaseHoldingCard)
	if err != nil {
		return err
	}
	switch t.s.DrawSource {
	case models.DrawSourceDiscard:
		return wrongPhase("cannot discard a card taken from discard")
	case models.DrawSourceTake2:
		return wrongPhase("cannot discard a card chosen with take 2; swap it into your hand")
	}
	if t.s.DrawnCard == nil {
		return missingState("no card is being held")
	}
	t.s.DiscardPile = append(t.s.DiscardPile, *t.s.DrawnCard)
	t.msg = fmt.Sprintf("%s discarded", t.name(idx))
	t.advanceTurn()
	return nil
}

func (t *transition) swapHeldCard(a SwapHeldCard) error {
	idx, err := t.requireTurn(models.PhaseHoldingCard)
	if err != nil {
		return err
	}
	hand := t.s.Players[idx].Hand
	if a.CardIndex < 0 || a.CardIndex >= len(hand) {
		return invalidTarget("card index %d out of range", a.CardIndex)
	}
	if t.s.DrawnCard == nil {
		return missingState("no card is being held")
	}
	t.s.DiscardPile = append(t.s.DiscardPile, hand[a.CardIndex].Card)
	hand[a.CardIndex] = models.HandSlot{Card: *t.s.DrawnCard}
	t.msg = fmt.Sprintf("%s swapped card %d", t.name(idx), a.CardIndex+1)
	t.advanceTurn()
	return nil
}

func (t *transition) callPobudka() error {
	idx, err := t.requireTurn(models.PhasePlaying)
	if err != nil {
		return err
	}
	t.endRound(models.ReasonPobudka, t.s.Players[idx].ID)
	return nil
}

// advanceTurn passes play to the next seat and clears every held-card field.
func (t *transition) advanceTurn() {
	t.clearTransient()
	t.s.GamePhase = models.PhasePlaying
	t.s.CurrentPlayerIndex = (t.s.CurrentPlayerIndex + 1) % len(t.s.Players)
	t.s.TurnCount++
}

func (t *transition) clearTransient() {
	t.s.DrawnCard = nil
	t.s.DrawSource = ""
	t.s.TempCards = nil
	t.s.SwapState = nil
	t.s.PeekingState = nil
}

// discardHeld moves the held card onto the discard pile.
func (t *transition) discardHeld() {
	if t.s.DrawnCard != nil {
		t.s.DiscardPile = append(t.s.DiscardPile, *t.s.DrawnCard)
		t.s.DrawnCard = nil
		t.s.DrawSource = ""
	}
}

func (t *transition) startNewRound() error {
	if err := t.requirePhase(models.PhaseLobby, models.PhaseRoundEnd); err != nil {
		return err
	}
	players := t.s.Players
	start := 0
	if t.s.GamePhase == models.PhaseLobby {
		if len(t.roster) < MinPlayers {
			return NewError(CodeInsufficientPlayers, "at least %d players are needed to start, %d seated", MinPlayers, len(t.roster))
		}
		seats := slices.Clone(t.roster)
		slices.SortStableFunc(seats, func(a, b models.Seat) int { return a.Seat - b.Seat })
		if !slices.ContainsFunc(seats, func(s models.Seat) bool { return s.PlayerID == t.caller }) {
			return NewError(CodeNotYourTurn, "only seated players may start the game")
		}
		players = make([]models.Player, len(seats))
		for i, seat := range seats {
			players[i] = models.Player{ID: seat.PlayerID, Name: seat.Name}
		}
	} else {
		if t.s.PlayerIndex(t.caller) < 0 {
			return NewError(CodeNotYourTurn, "only seated players may start a round")
		}
		start = (t.s.StartingPlayerIndex + 1) % len(players)
	}

	deck := NewDeck()
	if err := VerifyDeck(deck); err != nil {
		return WrapError(CodeMissingPrerequisiteState, "deck composition is invalid", err)
	}
	if need := len(players)*HandSize + 1; len(deck) < need {
		return NewError(CodeInsufficientCards, "deck has %d cards, %d needed", len(deck), need)
	}
	t.engine.shuffler.Shuffle(len(deck), func(i, j int) { deck[i], deck[j] = deck[j], deck[i] })

	for i := range players {
		players[i].Hand = make([]models.HandSlot, 0, HandSize)
	}
	for n := 0; n < HandSize; n++ {
		for i := range players {
			var card models.Card
			card, deck = popTop(deck)
			players[i].Hand = append(players[i].Hand, models.HandSlot{Card: card})
		}
	}
	var up models.Card
	up, deck = popTop(deck)

	t.clearTransient()
	t.s.Players = players
	t.s.DrawPile = deck
	t.s.DiscardPile = []models.Card{up}
	t.s.StartingPlayerIndex = start
	t.s.CurrentPlayerIndex = start
	t.s.PeekingState = &models.PeekingState{PlayerIndex: start}
	t.s.GamePhase = models.PhasePeeking
	t.s.TurnCount = 0
	t.s.LastRoundScores = nil
	t.s.LastCallerID = ""
	t.s.RoundReason = ""
	t.s.RoundWinnerID = ""
	t.s.RoundNumber++
	t.msg = fmt.Sprintf("Round %d: %s peeks first", t.s.RoundNumber, players[start].Name)
	return nil
}
