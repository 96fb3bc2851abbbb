package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
	"github.com/skinflow/tradebot/internal/events"
)

// PendingLister lists pending transactions older than a cutoff.
type PendingLister interface {
	ListPendingOlderThan(ctx context.Context, cutoff time.Time) ([]domain.Transaction, error)
}

// StalePendingSweepJob surfaces transactions stuck in pending. It never
// completes them: only an accepted-state notification does that. The
// emitted events let an operator (or the retry queue) investigate.
type StalePendingSweepJob struct {
	JobBase
	log          zerolog.Logger
	ledger       PendingLister
	eventManager *events.Manager
	maxAge       time.Duration
}

// NewStalePendingSweepJob creates the sweep job. maxAge is how long a
// transaction may stay pending before it is reported.
func NewStalePendingSweepJob(ledger PendingLister, eventManager *events.Manager, maxAge time.Duration) *StalePendingSweepJob {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &StalePendingSweepJob{
		log:          zerolog.Nop(),
		ledger:       ledger,
		eventManager: eventManager,
		maxAge:       maxAge,
	}
}

// SetLogger sets the logger for the job
func (j *StalePendingSweepJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *StalePendingSweepJob) Name() string {
	return "stale_pending_sweep"
}

// Run executes the sweep
func (j *StalePendingSweepJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-j.maxAge)
	stale, err := j.ledger.ListPendingOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}

	reporter, _ := j.GetProgressReporter().(progressSink)

	for i, tx := range stale {
		if reporter != nil {
			reporter.Report(i+1, len(stale), "stale pending "+tx.TradeOfferID)
		}
		j.log.Warn().
			Str("transaction_id", tx.ID).
			Str("trade_offer_id", tx.TradeOfferID).
			Str("kind", string(tx.Kind)).
			Time("created_at", tx.CreatedAt).
			Msg("Transaction stuck in pending")

		if j.eventManager != nil {
			j.eventManager.EmitTyped("scheduler", &events.StalePendingDetectedData{
				TransactionID: tx.ID,
				TradeOfferID:  tx.TradeOfferID,
				Kind:          string(tx.Kind),
				CreatedAt:     tx.CreatedAt,
			})
		}
	}

	j.log.Info().
		Int("stale", len(stale)).
		Time("cutoff", cutoff).
		Msg("Stale pending sweep completed")
	return nil
}
