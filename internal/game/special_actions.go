// internal/game/special_actions.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/pobudka/internal/models"
)

// useSpecialAction triggers the effect printed on the held card. Only cards
// drawn from the deck or kept from a take 2 may be used.
func (t *transition) useSpecialAction() error {
	idx, err := t.requireTurn(models.PhaseHoldingCard)
	if err != nil {
		return err
	}
	held := t.s.DrawnCard
	if held == nil {
		return missingState("no card is being held")
	}
	if !held.IsSpecial {
		return wrongPhase("the held card has no special action")
	}
	if t.s.DrawSource != models.DrawSourceDeck && t.s.DrawSource != models.DrawSourceTake2 {
		return wrongPhase("special actions only work on cards drawn from the deck")
	}

	switch held.SpecialAction {
	case models.SpecialTake2:
		t.discardHeld()
		if len(t.s.DrawPile) == 0 {
			t.endRound(models.ReasonDeckExhausted, "")
			return nil
		}
		n := min(2, len(t.s.DrawPile))
		temp := make([]models.Card, 0, n)
		for range n {
			var c models.Card
			c, t.s.DrawPile = popTop(t.s.DrawPile)
			temp = append(temp, c)
		}
		t.s.TempCards = temp
		t.s.GamePhase = models.PhaseActionTake2
		t.msg = fmt.Sprintf("%s is choosing from %d cards", t.name(idx), n)
	case models.SpecialPeek1:
		t.s.GamePhase = models.PhaseActionPeek1
		t.msg = fmt.Sprintf("%s is peeking at a card", t.name(idx))
	case models.SpecialSwap2:
		t.s.GamePhase = models.PhaseActionSwap2Select1
		t.msg = fmt.Sprintf("%s is choosing two cards to swap", t.name(idx))
	default:
		return missingState("held card has unknown special action %q", held.SpecialAction)
	}
	return nil
}

func (t *transition) peek1Select(a Peek1Select) error {
	idx, err := t.requireTurn(models.PhaseActionPeek1)
	if err != nil {
		return err
	}
	pi, err := t.target(a.PlayerID, a.CardIndex)
	if err != nil {
		return err
	}
	if t.s.DrawnCard == nil {
		return missingState("the peek card is no longer held")
	}
	slot := &t.s.Players[pi].Hand[a.CardIndex]
	slot.HasBeenPeeked = true
	t.result.RevealedCard = &RevealedCard{PlayerID: a.PlayerID, CardIndex: a.CardIndex, Card: slot.Card}
	t.discardHeld()
	if pi == idx {
		t.msg = fmt.Sprintf("%s peeked at their own card %d", t.name(idx), a.CardIndex+1)
	} else {
		t.msg = fmt.Sprintf("%s peeked at %s's card %d", t.name(idx), t.name(pi), a.CardIndex+1)
	}
	t.advanceTurn()
	return nil
}

func (t *transition) swap2Select(a Swap2Select) error {
	idx, err := t.requireTurn(models.PhaseActionSwap2Select1, models.PhaseActionSwap2Select2)
	if err != nil {
		return err
	}
	pi, err := t.target(a.PlayerID, a.CardIndex)
	if err != nil {
		return err
	}
	if t.s.DrawnCard == nil {
		return missingState("the swap card is no longer held")
	}

	if t.s.GamePhase == models.PhaseActionSwap2Select1 {
		t.s.SwapState = &models.SwapState{Card1: &models.CardRef{PlayerID: a.PlayerID, CardIndex: a.CardIndex}}
		t.s.GamePhase = models.PhaseActionSwap2Select2
		t.msg = fmt.Sprintf("%s selected %s's card %d", t.name(idx), t.name(pi), a.CardIndex+1)
		return nil
	}

	if t.s.SwapState == nil || t.s.SwapState.Card1 == nil {
		return missingState("first swap selection is missing")
	}
	first := *t.s.SwapState.Card1
	fi, err := t.target(first.PlayerID, first.CardIndex)
	if err != nil {
		return missingState("first swap selection is no longer valid")
	}
	if fi == pi {
		hand := t.s.Players[pi].Hand
		hand[first.CardIndex], hand[a.CardIndex] = hand[a.CardIndex], hand[first.CardIndex]
	} else {
		h1, h2 := t.s.Players[fi].Hand, t.s.Players[pi].Hand
		h1[first.CardIndex], h2[a.CardIndex] = h2[a.CardIndex], h1[first.CardIndex]
	}
	t.discardHeld()
	t.msg = fmt.Sprintf("%s swapped %s's card %d with %s's card %d",
		t.name(idx), t.name(fi), first.CardIndex+1, t.name(pi), a.CardIndex+1)
	t.advanceTurn()
	return nil
}

func (t *transition) take2Choose(a Take2Choose) error {
	idx, err := t.requireTurn(models.PhaseActionTake2)
	if err != nil {
		return err
	}
	if len(t.s.TempCards) == 0 {
		return missingState("no take 2 candidates are pending")
	}
	chosen := -1
	for i, c := range t.s.TempCards {
		if c.ID == a.CardID {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		return invalidTarget("card %d is not one of the drawn candidates", a.CardID)
	}
	keep := t.s.TempCards[chosen]
	for i, c := range t.s.TempCards {
		if i != chosen {
			t.s.DiscardPile = append(t.s.DiscardPile, c)
		}
	}
	t.s.TempCards = nil
	t.hold(keep, models.DrawSourceTake2)
	t.msg = fmt.Sprintf("%s kept one card", t.name(idx))
	return nil
}
