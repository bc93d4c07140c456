// internal/models/card.go
package models

// SpecialAction names the one-shot effect printed on a special card.
type SpecialAction string

const (
	SpecialTake2 SpecialAction = "take_2"
	SpecialPeek1 SpecialAction = "peek_1"
	SpecialSwap2 SpecialAction = "swap_2"
)

// Card is a single card in a round's deck. ID is an opaque handle that is only
// unique within one round; it is compared, never dereferenced.
type Card struct {
	ID            int           `json:"id"`
	Value         int           `json:"value"`
	IsSpecial     bool          `json:"isSpecial"`
	SpecialAction SpecialAction `json:"specialAction,omitempty"`
}

// HiddenCard is the sentinel used wherever a viewer may not see a card's face.
var HiddenCard = Card{ID: -1, Value: -1, IsSpecial: false}

// HandSlot is one of a player's four positions.
// IsFaceUp controls whether the owner's client may render the face right now;
// HasBeenPeeked is a permanent audit flag.
type HandSlot struct {
	Card          Card `json:"card"`
	IsFaceUp      bool `json:"isFaceUp"`
	HasBeenPeeked bool `json:"hasBeenPeeked"`
}
