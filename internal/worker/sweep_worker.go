package worker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exam-engine/internal/metrics"
	"github.com/stemsi/exam-engine/internal/model"
	"github.com/stemsi/exam-engine/internal/service"
)

const (
	SweepBatchSize    = 200
	SweepBatchTimeout = 20 * time.Second
)

type overdueLister interface {
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}

type attemptForcer interface {
	ForceSubmit(ctx context.Context, attemptID uuid.UUID, reason model.SubmitReason) (*model.Attempt, error)
}

// SweepWorker finalizes in_progress attempts whose deadline and grace period
// have both passed. Clients that vanish mid-attempt are closed here.
type SweepWorker struct {
	attempts overdueLister
	forcer   attemptForcer
	interval time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewSweepWorker(attempts overdueLister, forcer attemptForcer, interval time.Duration, log zerolog.Logger) *SweepWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SweepWorker{
		attempts: attempts,
		forcer:   forcer,
		interval: interval,
		log:      log.With().Str("component", "sweep_worker").Logger(),
		now:      time.Now,
	}
}

// Start sweeps once immediately and then on every interval until ctx ends.
func (w *SweepWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("SweepWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		w.sweepSafe(ctx)

		select {
		case <-ctx.Done():
			w.log.Info().Msg("SweepWorker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *SweepWorker) sweepSafe(ctx context.Context) {
	closed, err := w.Sweep(ctx)
	switch {
	case err != nil && ctx.Err() == nil:
		metrics.SweepRuns.WithLabelValues("error").Inc()
		w.log.Error().Err(err).Int("closed", closed).Msg("Sweep failed")
	case err != nil:
		// shutting down
	default:
		metrics.SweepRuns.WithLabelValues("ok").Inc()
		if closed > 0 {
			w.log.Info().Int("closed", closed).Msg("Overdue attempts finalized")
		}
	}
}

// Sweep finalizes every overdue attempt and returns how many it closed.
// Batches are drained until one comes back short or a finalize fails.
func (w *SweepWorker) Sweep(ctx context.Context) (int, error) {
	closed := 0
	for {
		batchCtx, cancel := context.WithTimeout(ctx, SweepBatchTimeout)
		n, full, err := w.sweepBatch(batchCtx)
		cancel()
		closed += n
		if err != nil || !full {
			return closed, err
		}
	}
}

func (w *SweepWorker) sweepBatch(ctx context.Context) (int, bool, error) {
	ids, err := w.attempts.ListOverdue(ctx, w.now(), SweepBatchSize)
	if err != nil {
		return 0, false, err
	}

	closed := 0
	var failed error
	for _, id := range ids {
		_, err := w.forcer.ForceSubmit(ctx, id, model.SubmitSweep)
		switch {
		case err == nil:
			closed++
		case errors.Is(err, service.ErrAttemptNotFound):
			// deleted between list and finalize
		default:
			w.log.Error().Err(err).Str("attempt_id", id.String()).Msg("Sweep finalize failed")
			failed = err
		}
		if ctx.Err() != nil {
			return closed, false, ctx.Err()
		}
	}
	return closed, failed == nil && len(ids) == SweepBatchSize, failed
}
