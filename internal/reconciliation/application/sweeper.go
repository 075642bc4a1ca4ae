package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/payment-engine/internal/reconciliation/domain"
)

const defaultBatch = 100

// Sweeper re-runs settlement for completed payments that were never settled.
// Settlement is idempotent, so racing with a live verification is harmless.
type Sweeper struct {
	log     *slog.Logger
	lister  Lister
	settler Settler
	batch   int
	nowFn   func() time.Time
}

func NewSweeper(log *slog.Logger, lister Lister, settler Settler) *Sweeper {
	return &Sweeper{log: log, lister: lister, settler: settler, batch: defaultBatch, nowFn: time.Now}
}

func (s *Sweeper) WithBatch(n int) *Sweeper {
	if n > 0 {
		s.batch = n
	}
	return s
}

// SweepOnce settles up to one batch. A failure on one payment does not stop
// the rest of the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) (domain.Report, error) {
	report := domain.Report{StartedAt: s.nowFn()}

	ids, err := s.lister.ListUnsettled(ctx, s.batch)
	if err != nil {
		return report, fmt.Errorf("list unsettled: %w", err)
	}
	report.Scanned = len(ids)

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		settled, err := s.settler.ProcessCommission(ctx, id)
		switch {
		case err != nil:
			s.log.Error("reconcile settlement failed", "payment_id", id, "err", err)
			report.Failed = append(report.Failed, id)
		case settled:
			report.Settled++
		default:
			report.Skipped++
		}
	}

	if report.Scanned > 0 {
		s.log.Info("reconcile sweep done", "scanned", report.Scanned, "settled", report.Settled,
			"skipped", report.Skipped, "failed", len(report.Failed))
	}
	return report, nil
}

// Run sweeps every interval until ctx ends.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.log.Error("reconcile sweep failed", "err", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
	}
}
