// internal/models/records.go
package models

import (
	"encoding/json"
	"time"
)

// GameDocument is the persisted record for one room. Version and IdempotencyKey
// are audit data only.
type GameDocument struct {
	RoomID         string    `json:"roomId"`
	State          GameState `json:"state"`
	LastUpdated    time.Time `json:"lastUpdated"`
	Version        int64     `json:"version"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// LedgerPayload is what the ledger stores for an applied action.
type LedgerPayload struct {
	Action json.RawMessage `json:"action"`
	Result json.RawMessage `json:"result"`
}

// LedgerEntry records one applied action by idempotency key.
type LedgerEntry struct {
	RoomID         string        `json:"roomId"`
	PlayerID       string        `json:"playerId"`
	ActionType     string        `json:"actionType"`
	Payload        LedgerPayload `json:"payload"`
	IdempotencyKey string        `json:"idempotencyKey"`
	ActionDigest   string        `json:"actionDigest,omitempty"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// MatchRecord is written once when a room reaches game_over.
type MatchRecord struct {
	MatchID        string      `json:"matchId"`
	RoomID         string      `json:"roomId"`
	Mode           GameMode    `json:"mode"`
	EndedAt        time.Time   `json:"endedAt"`
	WinnerPlayerID string      `json:"winnerPlayerId"`
	WinnerName     string      `json:"winnerName"`
	WinningScore   int         `json:"winningScore"`
	PlayerCount    int         `json:"playerCount"`
	Placements     []Placement `json:"placements"`
}

// Placement is one player's final standing in a match.
type Placement struct {
	MatchID    string    `json:"matchId"`
	RoomID     string    `json:"roomId"`
	PlayerID   string    `json:"playerId"`
	Name       string    `json:"name"`
	FinalScore int       `json:"finalScore"`
	Place      int       `json:"place"`
	EndedAt    time.Time `json:"endedAt"`
}

// ActionRecord is published to the action feed after each committed action and
// drained into the game_actions history by the historian.
type ActionRecord struct {
	RoomID      string          `json:"room_id"`
	ActionIndex int64           `json:"action_index"`
	PlayerID    string          `json:"player_id"`
	ActionType  string          `json:"action_type"`
	Action      json.RawMessage `json:"action_payload"`
	Phase       Phase           `json:"phase"`
	Timestamp   int64           `json:"timestamp"`
}
