// Package queue implements MessageQueueStore (§4.6): a durable per-campaign
// FIFO of recipient work items with atomic claim and terminal-state
// transitions. Grounded directly on the teacher's
// internal/worker/campaign_processor.go claimBatch
// (`UPDATE ... WHERE ... FOR UPDATE SKIP LOCKED ... RETURNING`), adapted to
// claim exactly one item per call since §4.6's contract is per-item, and on
// internal/worker/queue_recovery.go's stale-claim sweep.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/blastcampaign/internal/domain"
)

// ErrEmpty is returned by ClaimNext when no PENDING item remains —
// callers use this to distinguish "queue exhausted" from a real error
// (§4.7 step 3: "if none, transition to COMPLETED").
var ErrEmpty = errors.New("queue: no pending items")

// Store is the MessageQueueStore capability CampaignRunner depends on.
type Store interface {
	// Append inserts items for a campaign. Pre-start only (§4.6).
	Append(ctx context.Context, campaignID string, items []domain.QueueItem) error
	// ClaimNext atomically transitions one PENDING item to CLAIMED with
	// the lowest ordinal for campaignID, owned by workerID. Returns
	// ErrEmpty if none.
	ClaimNext(ctx context.Context, campaignID string, workerID string) (*domain.QueueItem, error)
	// Complete applies outcome to itemID. FAILED with Retryable=true and
	// attempt < maxRetries returns the item to PENDING with incremented
	// attempt; otherwise the transition is terminal.
	Complete(ctx context.Context, itemID string, outcome domain.Outcome, maxRetries int) error
	// Requeue transitions a CLAIMED item back to PENDING without touching
	// its attempt count, used when a cooperative pause aborts an in-flight
	// item mid-delay so the next claim (on resume) picks up the same item
	// rather than stranding it until the stale-claim recovery sweep.
	Requeue(ctx context.Context, itemID string) error
	// Stats returns totals by status for campaignID.
	Stats(ctx context.Context, campaignID string) (domain.QueueStats, error)
	// Recover transitions CLAIMED items whose claim is older than
	// staleAge back to PENDING, incrementing nothing (a crash recovery,
	// not a retry) — called by the recovery worker once at startup and
	// then periodically. The owning worker being gone is inferred from claim age
	// rather than tracked liveness, matching the teacher's
	// queue_recovery.go sweep.
	Recover(ctx context.Context, staleAge time.Duration) (int, error)
}
