// internal/room/service.go
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/pobudka/internal/game"
	"github.com/jason-s-yu/pobudka/internal/ledger"
	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/sirupsen/logrus"
)

// feedTimeout bounds the best-effort publish to the action feed.
const feedTimeout = 2 * time.Second

// Outcome is returned by SubmitAction. Result holds the JSON encoded
// game.Result, byte-identical between the first call and any replay.
type Outcome struct {
	Result   json.RawMessage `json:"result"`
	Replayed bool            `json:"replayed"`
	Version  int64           `json:"version,omitempty"`
}

// Service is the write and read surface of every room. Networked and local
// topologies differ only in the collaborators they plug in.
type Service struct {
	engine   *game.Engine
	store    Store
	ledger   Ledger
	roster   Roster
	recorder MatchRecorder
	feed     ActionFeed
	locker   Locker
	notifier Notifier
	log      *logrus.Entry
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithEngine(e *game.Engine) Option      { return func(s *Service) { s.engine = e } }
func WithRoster(r Roster) Option            { return func(s *Service) { s.roster = r } }
func WithRecorder(r MatchRecorder) Option   { return func(s *Service) { s.recorder = r } }
func WithFeed(f ActionFeed) Option          { return func(s *Service) { s.feed = f } }
func WithLocker(l Locker) Option            { return func(s *Service) { s.locker = l } }
func WithNotifier(n Notifier) Option        { return func(s *Service) { s.notifier = n } }
func WithLogger(l *logrus.Entry) Option     { return func(s *Service) { s.log = l } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService wires a Service over store and ledger.
func NewService(store Store, l Ledger, opts ...Option) *Service {
	s := &Service{
		engine: game.NewEngine(nil),
		store:  store,
		ledger: l,
		locker: NewLocalLocker(),
		log:    logrus.WithField("component", "room"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetNotifier replaces the commit notifier after construction.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// CreateRoom stores an empty lobby document. An empty roomID is generated.
func (s *Service) CreateRoom(ctx context.Context, roomID, hostID string, mode models.GameMode) (models.GameDocument, error) {
	if mode == "" {
		mode = models.ModeMultiplayer
	}
	if !mode.Valid() {
		return models.GameDocument{}, game.NewError(game.CodeInvalidActionShape, "unknown game mode %q", mode)
	}
	if roomID == "" {
		roomID = uuid.NewString()
	}
	doc := models.GameDocument{
		RoomID:      roomID,
		State:       models.NewGameState(mode, hostID),
		LastUpdated: s.now().UTC(),
		Version:     1,
	}
	if err := s.store.CreateGame(ctx, doc); err != nil {
		return models.GameDocument{}, err
	}
	s.log.WithFields(logrus.Fields{"room": roomID, "player": hostID, "mode": mode}).Info("room created")
	return doc, nil
}

// SubmitAction applies action for playerID in roomID. A non-empty key makes the
// call idempotent: a retry returns the first result without applying again.
func (s *Service) SubmitAction(ctx context.Context, roomID, playerID string, action game.Action, key string) (Outcome, error) {
	log := s.log.WithFields(logrus.Fields{"room": roomID, "player": playerID})
	if action == nil {
		return Outcome{}, game.NewError(game.CodeInvalidActionShape, "action is required")
	}
	log = log.WithField("action", action.Type())
	actionJSON, err := game.MarshalAction(action)
	if err != nil {
		return Outcome{}, game.WrapError(game.CodeInvalidActionShape, "action cannot be encoded", err)
	}

	unlock, err := s.locker.Lock(ctx, roomID)
	if err != nil {
		return Outcome{}, fmt.Errorf("lock room %s: %w", roomID, err)
	}
	defer unlock()

	if key != "" {
		log = log.WithField("key", key)
		prior, err := s.ledger.Reserve(ctx, key, roomID, playerID)
		if err != nil {
			log.WithError(err).Warn("idempotency key rejected")
			return Outcome{}, err
		}
		if prior != nil {
			if prior.ActionDigest != "" && prior.ActionDigest != ledger.Digest(actionJSON) {
				log.Warn("replayed key carried a different action; serving the stored result")
			} else {
				log.Debug("replaying stored result")
			}
			return Outcome{Result: prior.Payload.Result, Replayed: true}, nil
		}
	}

	committed := false
	defer func() {
		if key != "" && !committed {
			if err := s.ledger.Release(context.WithoutCancel(ctx), key); err != nil {
				log.WithError(err).Error("failed to release idempotency key")
			}
		}
	}()

	doc, err := s.store.LoadGame(ctx, roomID)
	if err != nil {
		return Outcome{}, err
	}
	roster, err := s.rosterFor(ctx, roomID, doc.State, action)
	if err != nil {
		return Outcome{}, err
	}

	next, result, err := s.engine.Apply(doc.State, playerID, action, roster)
	if err != nil {
		log.WithError(err).Debug("action rejected")
		return Outcome{}, err
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return Outcome{}, fmt.Errorf("encode result: %w", err)
	}

	now := s.now().UTC()
	nextDoc := models.GameDocument{
		RoomID:         roomID,
		State:          next,
		LastUpdated:    now,
		Version:        doc.Version + 1,
		IdempotencyKey: key,
	}
	var entry *models.LedgerEntry
	if key != "" {
		entry = &models.LedgerEntry{
			RoomID:         roomID,
			PlayerID:       playerID,
			ActionType:     string(action.Type()),
			Payload:        models.LedgerPayload{Action: actionJSON, Result: resultJSON},
			IdempotencyKey: key,
			ActionDigest:   ledger.Digest(actionJSON),
			CreatedAt:      now,
		}
	}
	if err := s.store.CommitAction(ctx, nextDoc, entry); err != nil {
		log.WithError(err).Error("failed to commit action")
		return Outcome{}, fmt.Errorf("commit room %s: %w", roomID, err)
	}
	committed = true
	log.WithFields(logrus.Fields{"version": nextDoc.Version, "phase": next.GamePhase}).Info("action applied")

	s.publish(ctx, nextDoc, playerID, action.Type(), actionJSON)
	if doc.State.GamePhase != models.PhaseGameOver && next.GamePhase == models.PhaseGameOver {
		s.recordMatch(ctx, log, roomID, next, now)
	}
	if s.notifier != nil {
		s.notifier.RoomChanged(roomID, next)
	}
	return Outcome{Result: resultJSON, Version: nextDoc.Version}, nil
}

// QueryState returns the projection of roomID for viewerID. A nil projection
// means the room requires a viewer identity in its current phase.
func (s *Service) QueryState(ctx context.Context, roomID, viewerID string) (*game.ViewerGameState, error) {
	doc, err := s.store.LoadGame(ctx, roomID)
	if err != nil {
		return nil, err
	}
	var roster []models.Seat
	if doc.State.GamePhase == models.PhaseLobby && s.roster != nil {
		if roster, err = s.roster.ListSeats(ctx, roomID); err != nil {
			return nil, fmt.Errorf("list seats for %s: %w", roomID, err)
		}
	}
	return game.Project(doc.State, viewerID, roster), nil
}

// Seats exposes the live roster of roomID.
func (s *Service) Seats(ctx context.Context, roomID string) ([]models.Seat, error) {
	if s.roster == nil {
		return nil, nil
	}
	return s.roster.ListSeats(ctx, roomID)
}

// rosterFor loads the live seats only when a round is started from the lobby.
func (s *Service) rosterFor(ctx context.Context, roomID string, state models.GameState, action game.Action) ([]models.Seat, error) {
	if _, ok := action.(game.StartNewRound); !ok || state.GamePhase != models.PhaseLobby || s.roster == nil {
		return nil, nil
	}
	seats, err := s.roster.ListSeats(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list seats for %s: %w", roomID, err)
	}
	return seats, nil
}

func (s *Service) publish(ctx context.Context, doc models.GameDocument, playerID string, t game.ActionType, action []byte) {
	if s.feed == nil {
		return
	}
	rec := models.ActionRecord{
		RoomID:      doc.RoomID,
		ActionIndex: doc.Version,
		PlayerID:    playerID,
		ActionType:  string(t),
		Action:      action,
		Phase:       doc.State.GamePhase,
		Timestamp:   doc.LastUpdated.UnixMilli(),
	}
	go func() {
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), feedTimeout)
		defer cancel()
		if err := s.feed.Publish(pctx, rec); err != nil {
			s.log.WithError(err).WithField("room", rec.RoomID).Warn("failed to publish action")
		}
	}()
}

func (s *Service) recordMatch(ctx context.Context, log *logrus.Entry, roomID string, state models.GameState, endedAt time.Time) {
	if s.recorder == nil {
		return
	}
	rec, err := game.BuildMatchRecord(uuid.NewString(), roomID, state, endedAt)
	if err != nil {
		log.WithError(err).Error("failed to build match record")
		return
	}
	if err := s.recorder.RecordMatch(context.WithoutCancel(ctx), rec); err != nil {
		log.WithError(err).Error("failed to record match")
		return
	}
	log.WithFields(logrus.Fields{"winner": rec.WinnerPlayerID, "score": rec.WinningScore}).Info("match recorded")
}
