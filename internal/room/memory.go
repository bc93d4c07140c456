// internal/room/memory.go
package room

import (
	"context"
	"slices"
	"sync"

	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/ledger"
	"github.com/jason-s-yu/pobudka/internal/models"
)

// MemoryStore keeps documents and the idempotency ledger in process memory.
// It implements both Store and Ledger.
type MemoryStore struct {
	mu     sync.Mutex
	games  map[string]models.GameDocument
	ledger *ledger.Memory
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:  make(map[string]models.GameDocument),
		ledger: ledger.NewMemory(),
	}
}

func (s *MemoryStore) CreateGame(_ context.Context, doc models.GameDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[doc.RoomID]; exists {
		return game.NewError(game.CodeRoomExists, "room %s already exists", doc.RoomID)
	}
	doc.State = doc.State.Clone()
	s.games[doc.RoomID] = doc
	return nil
}

func (s *MemoryStore) LoadGame(_ context.Context, roomID string) (models.GameDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, exists := s.games[roomID]
	if !exists {
		return models.GameDocument{}, game.NewError(game.CodeRoomNotFound, "room %s not found", roomID)
	}
	doc.State = doc.State.Clone()
	return doc, nil
}

func (s *MemoryStore) CommitAction(_ context.Context, doc models.GameDocument, entry *models.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.games[doc.RoomID]; !exists {
		return game.NewError(game.CodeRoomNotFound, "room %s not found", doc.RoomID)
	}
	doc.State = doc.State.Clone()
	s.games[doc.RoomID] = doc
	if entry != nil {
		s.ledger.Record(*entry)
	}
	return nil
}

func (s *MemoryStore) Reserve(ctx context.Context, key, roomID, playerID string) (*models.LedgerEntry, error) {
	return s.ledger.Reserve(ctx, key, roomID, playerID)
}

func (s *MemoryStore) Release(ctx context.Context, key string) error {
	return s.ledger.Release(ctx, key)
}

// LedgerEntries lists the recorded entries of roomID.
func (s *MemoryStore) LedgerEntries(roomID string) []models.LedgerEntry {
	return s.ledger.Entries(roomID)
}

// MemoryRoster is a seat list per room for topologies without a lobby service.
type MemoryRoster struct {
	mu    sync.Mutex
	rooms map[string][]models.Seat
}

func NewMemoryRoster() *MemoryRoster {
	return &MemoryRoster{rooms: make(map[string][]models.Seat)}
}

// JoinRoom seats a player, replacing any earlier seat of the same player.
func (r *MemoryRoster) JoinRoom(_ context.Context, roomID string, seat models.Seat) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	seats := slices.DeleteFunc(r.rooms[roomID], func(s models.Seat) bool { return s.PlayerID == seat.PlayerID })
	r.rooms[roomID] = append(seats, seat)
	return nil
}

// LeaveRoom removes a player's seat.
func (r *MemoryRoster) LeaveRoom(_ context.Context, roomID, playerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rooms[roomID] = slices.DeleteFunc(r.rooms[roomID], func(s models.Seat) bool { return s.PlayerID == playerID })
	return nil
}

func (r *MemoryRoster) ListSeats(_ context.Context, roomID string) ([]models.Seat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seats := slices.Clone(r.rooms[roomID])
	slices.SortStableFunc(seats, func(a, b models.Seat) int { return a.Seat - b.Seat })
	return seats, nil
}

// MemoryRecorder keeps the first match record of each room.
type MemoryRecorder struct {
	mu      sync.Mutex
	matches map[string]models.MatchRecord
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{matches: make(map[string]models.MatchRecord)}
}

func (r *MemoryRecorder) RecordMatch(_ context.Context, rec models.MatchRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, done := r.matches[rec.RoomID]; !done {
		r.matches[rec.RoomID] = rec
	}
	return nil
}

// Match returns the recorded match of roomID.
func (r *MemoryRecorder) Match(roomID string) (models.MatchRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.matches[roomID]
	return rec, ok
}
