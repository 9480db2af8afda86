package queue

import (
	"context"
	"time"

	"github.com/ignite/blastcampaign/internal/pkg/clock"
	"github.com/ignite/blastcampaign/internal/pkg/logger"
)

// RecoveryWorker periodically sweeps Store for stale CLAIMED items,
// grounded on the teacher's internal/worker/queue_recovery.go periodic
// sweep launched alongside the main worker loop in cmd/worker/main.go.
type RecoveryWorker struct {
	store     Store
	clk       clock.Clock
	interval  time.Duration
	staleAge  time.Duration
}

// NewRecoveryWorker builds a RecoveryWorker that sweeps store every
// interval, reclaiming claims older than staleAge.
func NewRecoveryWorker(store Store, clk clock.Clock, interval, staleAge time.Duration) *RecoveryWorker {
	return &RecoveryWorker{store: store, clk: clk, interval: interval, staleAge: staleAge}
}

// Run blocks, sweeping once at startup and then on each tick until ctx is
// cancelled. Intended to be launched in its own goroutine by
// cmd/campaignworker.
func (w *RecoveryWorker) Run(ctx context.Context) {
	for {
		n, err := w.store.Recover(ctx, w.staleAge)
		if err != nil {
			logger.Warn("queue: recovery sweep failed", "error", err.Error())
		} else if n > 0 {
			logger.Info("queue: recovered stale claims", "count", n)
		}
		if err := w.clk.Sleep(ctx, w.interval); err != nil {
			return
		}
	}
}
