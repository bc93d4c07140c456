// internal/historian/historian.go drains the room action queue into the
// durable action log in batches.
package historian

import (
	"context"
	"errors"
	"time"

	"github.com/jason-s-yu/pobudka/internal/models"
	"github.com/sirupsen/logrus"
)

// Source yields queued action records. Pop returns nil, nil when nothing
// arrived within wait.
type Source interface {
	Pop(ctx context.Context, wait time.Duration) (*models.ActionRecord, error)
}

// Sink persists a batch of records. Inserting a record twice must be a no-op.
type Sink interface {
	InsertActions(ctx context.Context, recs []models.ActionRecord) error
}

// Service accumulates records from a Source and flushes them to a Sink when the
// batch fills or the flush delay elapses.
type Service struct {
	src        Source
	sink       Sink
	batchSize  int
	flushDelay time.Duration
	log        *logrus.Entry

	batch     []models.ActionRecord
	lastFlush time.Time
}

// New constructs a historian. Non-positive sizes fall back to 20 records and
// 500ms.
func New(src Source, sink Sink, batchSize int, flushDelay time.Duration, logger *logrus.Logger) *Service {
	if batchSize <= 0 {
		batchSize = 20
	}
	if flushDelay <= 0 {
		flushDelay = 500 * time.Millisecond
	}
	return &Service{
		src:        src,
		sink:       sink,
		batchSize:  batchSize,
		flushDelay: flushDelay,
		log:        logger.WithField("component", "historian"),
		batch:      make([]models.ActionRecord, 0, batchSize),
	}
}

// Run pops until ctx is cancelled, then flushes what is left.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("historian started")
	s.lastFlush = time.Now()
	for {
		if ctx.Err() != nil {
			s.flush(context.WithoutCancel(ctx))
			s.log.Info("historian shutting down")
			return nil
		}

		rec, err := s.src.Pop(ctx, s.flushDelay)
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			continue
		case err != nil:
			s.log.WithError(err).Warn("failed to pop action")
		case rec != nil:
			s.batch = append(s.batch, *rec)
		}

		if len(s.batch) >= s.batchSize || time.Since(s.lastFlush) >= s.flushDelay {
			s.flush(ctx)
		}
	}
}

// flush writes the pending batch. A failed batch is kept for the next attempt.
func (s *Service) flush(ctx context.Context) {
	s.lastFlush = time.Now()
	if len(s.batch) == 0 {
		return
	}
	if err := s.sink.InsertActions(ctx, s.batch); err != nil {
		s.log.WithError(err).WithField("pending", len(s.batch)).Error("failed to flush actions")
		return
	}
	s.log.Debugf("Flushed %d actions to DB.", len(s.batch))
	s.batch = s.batch[:0]
}

// Pending reports how many records await a flush.
func (s *Service) Pending() int {
	return len(s.batch)
}
