// internal/ledger/memory.go
package ledger

import (
	"context"
	"sort"
	"sync"

	"github.com/jason-s-yu/pobudka/internal/models"
)

type slot struct {
	entry   models.LedgerEntry
	pending bool
}

// Memory is a process-local ledger. Reserve is a single check-and-insert under
// one mutex, so two requests with the same key can never both proceed.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*slot
}

// NewMemory returns an empty ledger.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*slot)}
}

// Reserve claims key for (roomID, playerID). It returns the stored entry when
// the key has already been recorded for the same pair, nil when the caller now
// owns the reservation, or an IDEMPOTENCY_CONFLICT error.
func (m *Memory) Reserve(_ context.Context, key, roomID, playerID string) (*models.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.entries[key]; ok {
		if err := Check(s.entry, roomID, playerID); err != nil {
			return nil, err
		}
		if s.pending {
			return nil, Pending(key)
		}
		e := s.entry
		return &e, nil
	}
	m.entries[key] = &slot{
		entry:   models.LedgerEntry{RoomID: roomID, PlayerID: playerID, IdempotencyKey: key},
		pending: true,
	}
	return nil, nil
}

// Release drops a reservation whose action was rejected. Recorded entries are kept.
func (m *Memory) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.entries[key]; ok && s.pending {
		delete(m.entries, key)
	}
	return nil
}

// Record finalizes the entry for entry.IdempotencyKey.
func (m *Memory) Record(entry models.LedgerEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.IdempotencyKey] = &slot{entry: entry}
}

// Entries lists the recorded entries of a room in creation order.
func (m *Memory) Entries(roomID string) []models.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LedgerEntry
	for _, s := range m.entries {
		if !s.pending && s.entry.RoomID == roomID {
			out = append(out, s.entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
