package validation

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/ignite/blastcampaign/internal/pkg/clock"
	"github.com/ignite/blastcampaign/internal/pkg/logger"
)

// backgroundJob is one address queued for validation outside the hot path.
type backgroundJob struct {
	address   string
	transport Transport
}

// BackgroundQueue processes uncached addresses one at a time with a
// per-item delay, guaranteeing no concurrent burst against the transport.
// Grounded on the teacher's worker.worker() single-goroutine consumer-loop
// idiom (internal/worker/campaign_processor.go).
type BackgroundQueue struct {
	cache *Cache
	clk   clock.Clock
	rng   *rand.Rand

	mu       sync.Mutex
	jobs     chan backgroundJob
	started  bool
	progWarm bool // at most one progressive warm active per process
}

// NewBackgroundQueue creates a BackgroundQueue backed by cache. clk lets
// tests virtualize the per-item delay; rng lets tests make jitter
// deterministic.
func NewBackgroundQueue(cache *Cache, clk clock.Clock, rng *rand.Rand) *BackgroundQueue {
	return &BackgroundQueue{
		cache: cache,
		clk:   clk,
		rng:   rng,
		jobs:  make(chan backgroundJob, 10000),
	}
}

// Start launches the single consumer goroutine. Safe to call multiple
// times; only the first call has effect.
func (q *BackgroundQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return
	}
	q.started = true
	q.mu.Unlock()

	go q.run(ctx)
}

func (q *BackgroundQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

func (q *BackgroundQueue) process(ctx context.Context, job backgroundJob) {
	if _, err := q.cache.Validate(ctx, job.address, job.transport); err != nil {
		logger.Warn("validation: background validate failed", "address", job.address, "error", err.Error())
	}
}

// EnqueueBackground inserts uncached addresses into the FIFO, processed
// with a per-item delay in [3s,5s] so no concurrent burst against the
// transport is ever produced.
func (q *BackgroundQueue) EnqueueBackground(ctx context.Context, addresses []string, transport Transport) {
	go func() {
		for _, addr := range addresses {
			if _, ok := q.cache.Lookup(ctx, addr); ok {
				continue
			}
			select {
			case q.jobs <- backgroundJob{address: addr, transport: transport}:
			case <-ctx.Done():
				return
			}
			delay := 3*time.Second + time.Duration(q.rng.Float64()*2*float64(time.Second))
			if err := q.clk.Sleep(ctx, delay); err != nil {
				return
			}
		}
	}()
}

// ProgressiveWarm distributes unvalidated addresses uniformly across
// duration with +/-20% per-item jitter. At most one progressive warm may
// be active per process; a second call while one is running is a no-op
// (returns false).
func (q *BackgroundQueue) ProgressiveWarm(ctx context.Context, addresses []string, transport Transport, duration time.Duration) bool {
	q.mu.Lock()
	if q.progWarm {
		q.mu.Unlock()
		return false
	}
	q.progWarm = true
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			q.progWarm = false
			q.mu.Unlock()
		}()

		toValidate := make([]string, 0, len(addresses))
		for _, addr := range addresses {
			if _, ok := q.cache.Lookup(ctx, addr); !ok {
				toValidate = append(toValidate, addr)
			}
		}
		if len(toValidate) == 0 {
			return
		}

		interval := duration / time.Duration(len(toValidate))
		for _, addr := range toValidate {
			if _, err := q.cache.Validate(ctx, addr, transport); err != nil {
				logger.Warn("validation: progressive warm validate failed", "address", addr, "error", err.Error())
			}
			jitterPct := 0.20
			jittered := time.Duration(float64(interval) * (1 + jitterPct*(q.rng.Float64()*2-1)))
			if jittered < 0 {
				jittered = 0
			}
			if err := q.clk.Sleep(ctx, jittered); err != nil {
				return
			}
		}
	}()

	return true
}
