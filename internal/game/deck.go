// internal/game/deck.go
package game

import (
	"fmt"
	"math/rand/v2"

	"github.com/jason-s-yu/pobudka/internal/models"
)

const (
	// DeckSize is the number of cards in every round.
	DeckSize = 54
	// HandSize is the number of slots dealt to each player.
	HandSize = 4
	// PeeksPerPlayer is how many own cards each player reveals before play.
	PeeksPerPlayer = 2

	numberedCopies = 4  // values 0..8
	nineCopies     = 9  // value 9
	specialCopies  = 3  // per special action
	// SpecialCardValue is the printed value special cards score at round end.
	SpecialCardValue = 9
)

var specialActions = []models.SpecialAction{models.SpecialTake2, models.SpecialPeek1, models.SpecialSwap2}

// Shuffler permutes a deck in place.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// DefaultShuffler uses the process-wide math/rand/v2 source, which is safe for
// concurrent use across rooms.
var DefaultShuffler Shuffler = globalShuffler{}

// NewDeck builds the unshuffled 54-card deck with ids 0..53.
func NewDeck() []models.Card {
	deck := make([]models.Card, 0, DeckSize)
	add := func(c models.Card) {
		c.ID = len(deck)
		deck = append(deck, c)
	}
	for v := 0; v <= 8; v++ {
		for i := 0; i < numberedCopies; i++ {
			add(models.Card{Value: v})
		}
	}
	for i := 0; i < nineCopies; i++ {
		add(models.Card{Value: 9})
	}
	for _, sa := range specialActions {
		for i := 0; i < specialCopies; i++ {
			add(models.Card{Value: SpecialCardValue, IsSpecial: true, SpecialAction: sa})
		}
	}
	return deck
}

// VerifyDeck checks the standing composition invariant of a full deck.
func VerifyDeck(deck []models.Card) error {
	if len(deck) != DeckSize {
		return fmt.Errorf("deck has %d cards, want %d", len(deck), DeckSize)
	}
	values := make(map[int]int)
	specials := make(map[models.SpecialAction]int)
	ids := make(map[int]struct{}, len(deck))
	for _, c := range deck {
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("duplicate card id %d", c.ID)
		}
		ids[c.ID] = struct{}{}
		if c.IsSpecial {
			specials[c.SpecialAction]++
			continue
		}
		if c.Value < 0 || c.Value > 9 {
			return fmt.Errorf("card %d has value %d", c.ID, c.Value)
		}
		values[c.Value]++
	}
	for v := 0; v <= 8; v++ {
		if values[v] != numberedCopies {
			return fmt.Errorf("value %d appears %d times, want %d", v, values[v], numberedCopies)
		}
	}
	if values[9] != nineCopies {
		return fmt.Errorf("value 9 appears %d times, want %d", values[9], nineCopies)
	}
	for _, sa := range specialActions {
		if specials[sa] != specialCopies {
			return fmt.Errorf("special %s appears %d times, want %d", sa, specials[sa], specialCopies)
		}
	}
	if len(specials) != len(specialActions) {
		return fmt.Errorf("deck holds an unknown special action")
	}
	return nil
}

// popTop removes and returns the top (last) card of a pile.
func popTop(pile []models.Card) (models.Card, []models.Card) {
	last := len(pile) - 1
	return pile[last], pile[:last]
}
