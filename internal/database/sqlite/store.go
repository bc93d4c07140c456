// Package sqlite persists rooms for the single-device topologies in a local
// SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/ledger"
	"github.com/jason-s-yu/pobudka/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// Store implements the room Store, Ledger, Roster and MatchRecorder contracts.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows a single writer.
	sqlDB.SetMaxOpenConns(1)
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) CreateGame(ctx context.Context, doc models.GameDocument) error {
	state, err := json.Marshal(doc.State)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO games (room_id, state, version, idempotency_key, last_updated)
		 VALUES (?, ?, ?, NULLIF(?, ''), ?)
		 ON CONFLICT (room_id) DO NOTHING`,
		doc.RoomID, string(state), doc.Version, doc.IdempotencyKey, toMillis(doc.LastUpdated))
	if err != nil {
		return fmt.Errorf("insert game %s: %w", doc.RoomID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.NewError(game.CodeRoomExists, "room %s already exists", doc.RoomID)
	}
	return nil
}

func (s *Store) LoadGame(ctx context.Context, roomID string) (models.GameDocument, error) {
	doc := models.GameDocument{RoomID: roomID}
	var (
		state   string
		key     sql.NullString
		updated int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT state, version, idempotency_key, last_updated FROM games WHERE room_id = ?`, roomID,
	).Scan(&state, &doc.Version, &key, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GameDocument{}, game.NewError(game.CodeRoomNotFound, "room %s not found", roomID)
	}
	if err != nil {
		return models.GameDocument{}, fmt.Errorf("load game %s: %w", roomID, err)
	}
	if err := json.Unmarshal([]byte(state), &doc.State); err != nil {
		return models.GameDocument{}, fmt.Errorf("decode game %s: %w", roomID, err)
	}
	doc.IdempotencyKey = key.String
	doc.LastUpdated = fromMillis(updated)
	return doc, nil
}

// CommitAction replaces the document and finalizes the ledger row in one
// transaction.
func (s *Store) CommitAction(ctx context.Context, doc models.GameDocument, entry *models.LedgerEntry) error {
	state, err := json.Marshal(doc.State)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE games SET state = ?, version = ?, idempotency_key = NULLIF(?, ''), last_updated = ? WHERE room_id = ?`,
		string(state), doc.Version, doc.IdempotencyKey, toMillis(doc.LastUpdated), doc.RoomID)
	if err != nil {
		return fmt.Errorf("update game %s: %w", doc.RoomID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return game.NewError(game.CodeRoomNotFound, "room %s not found", doc.RoomID)
	}

	if entry != nil {
		payload, err := json.Marshal(entry.Payload)
		if err != nil {
			return fmt.Errorf("marshal ledger payload: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO action_ledger (idempotency_key, room_id, player_id, status, action_type, payload, action_digest, created_at)
			 VALUES (?, ?, ?, 'done', ?, ?, ?, ?)
			 ON CONFLICT (idempotency_key) DO UPDATE SET
			   status = 'done', action_type = excluded.action_type, payload = excluded.payload,
			   action_digest = excluded.action_digest, created_at = excluded.created_at
			 WHERE action_ledger.status = 'pending'`,
			entry.IdempotencyKey, entry.RoomID, entry.PlayerID, entry.ActionType,
			string(payload), entry.ActionDigest, toMillis(entry.CreatedAt))
		if err != nil {
			return fmt.Errorf("record ledger entry %s: %w", entry.IdempotencyKey, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return game.NewError(game.CodeIdempotencyConflict, "idempotency key %q was already recorded", entry.IdempotencyKey)
		}
	}
	return tx.Commit()
}

// Reserve claims key with a pending row; the primary key makes it atomic.
func (s *Store) Reserve(ctx context.Context, key, roomID, playerID string) (*models.LedgerEntry, error) {
	res, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO action_ledger (idempotency_key, room_id, player_id, status, created_at)
		 VALUES (?, ?, ?, 'pending', ?)
		 ON CONFLICT (idempotency_key) DO NOTHING`,
		key, roomID, playerID, toMillis(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("reserve key %s: %w", key, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil, nil
	}

	entry := models.LedgerEntry{IdempotencyKey: key}
	var (
		status, aType, payload, digest sql.NullString
		created                        int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT room_id, player_id, status, action_type, payload, action_digest, created_at
		 FROM action_ledger WHERE idempotency_key = ?`, key,
	).Scan(&entry.RoomID, &entry.PlayerID, &status, &aType, &payload, &digest, &created)
	if err != nil {
		return nil, fmt.Errorf("read ledger entry %s: %w", key, err)
	}
	if err := ledger.Check(entry, roomID, playerID); err != nil {
		return nil, err
	}
	if status.String == "pending" {
		return nil, ledger.Pending(key)
	}
	entry.ActionType = aType.String
	entry.ActionDigest = digest.String
	entry.CreatedAt = fromMillis(created)
	if payload.Valid {
		if err := json.Unmarshal([]byte(payload.String), &entry.Payload); err != nil {
			return nil, fmt.Errorf("decode ledger entry %s: %w", key, err)
		}
	}
	return &entry, nil
}

func (s *Store) Release(ctx context.Context, key string) error {
	if _, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM action_ledger WHERE idempotency_key = ? AND status = 'pending'`, key); err != nil {
		return fmt.Errorf("release key %s: %w", key, err)
	}
	return nil
}

// CountLedgerEntries reports how many actions of roomID were recorded by key.
func (s *Store) CountLedgerEntries(ctx context.Context, roomID string) (int, error) {
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM action_ledger WHERE room_id = ? AND status = 'done'`, roomID).Scan(&n)
	return n, err
}
