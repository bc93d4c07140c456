// internal/models/player.go
package models

// Player is a seated participant's round snapshot. Hand holds exactly four slots
// once a round has been dealt and is empty before.
type Player struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Hand  []HandSlot `json:"hand"`
	Score int        `json:"score"`
}

// HandValue sums the printed values of every card in the hand.
func (p Player) HandValue() int {
	total := 0
	for _, slot := range p.Hand {
		total += slot.Card.Value
	}
	return total
}

// Seat is one row of a lobby roster, ordered by Seat number.
type Seat struct {
	PlayerID  string `json:"playerId"`
	Name      string `json:"name"`
	Seat      int    `json:"seat"`
	Anonymous bool   `json:"anonymous,omitempty"`
}
