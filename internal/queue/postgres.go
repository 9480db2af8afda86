package queue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/blastcampaign/internal/domain"
)

// PostgresStore is the durable Store backed by the queue_items table
// (§6 persisted state layout), grounded directly on the teacher's
// internal/worker/campaign_processor.go claimBatch
// (`UPDATE ... WHERE ... FOR UPDATE SKIP LOCKED ... RETURNING`), adapted
// to claim exactly one item per call.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps db.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, campaignID string, items []domain.QueueItem) error {
	if len(items) == 0 {
		return nil
	}

	ids := make([]string, len(items))
	ordinals := make([]int64, len(items))
	addresses := make([]string, len(items))
	labels := make([]string, len(items))
	messages := make([]string, len(items))

	for i, it := range items {
		id := it.ItemID
		if id == "" {
			id = uuid.NewString()
		}
		ids[i] = id
		ordinals[i] = int64(it.Ordinal)
		addresses[i] = it.RecipientAddress
		labels[i] = it.RecipientLabel
		messages[i] = it.RenderedMessage
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO queue_items (item_id, campaign_id, ordinal, recipient, recipient_label, rendered_message, status, attempt)
		SELECT * FROM unnest($1::uuid[], $2::uuid[], $3::bigint[], $4::text[], $5::text[], $6::text[])
			AS t(item_id, campaign_id, ordinal, recipient, recipient_label, rendered_message),
		LATERAL (SELECT 'PENDING'::text AS status, 0 AS attempt) s
	`, pq.Array(ids), pq.Array(repeat(campaignID, len(items))), pq.Array(ordinals), pq.Array(addresses), pq.Array(labels), pq.Array(messages))
	return err
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

// ClaimNext atomically transitions the lowest-ordinal PENDING item for
// campaignID to CLAIMED, owned by workerID, following the teacher's
// `WITH claimed AS (UPDATE ... FOR UPDATE SKIP LOCKED ...) SELECT ...`
// shape.
func (s *PostgresStore) ClaimNext(ctx context.Context, campaignID string, workerID string) (*domain.QueueItem, error) {
	row := s.db.QueryRowContext(ctx, `
		WITH next_item AS (
			SELECT item_id FROM queue_items
			WHERE campaign_id = $1 AND status = 'PENDING'
			ORDER BY ordinal ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		UPDATE queue_items q
		SET status = 'CLAIMED', claimed_by = $2, claimed_at = NOW()
		FROM next_item
		WHERE q.item_id = next_item.item_id
		RETURNING q.item_id, q.campaign_id, q.ordinal, q.recipient, q.recipient_label,
		          q.rendered_message, q.status, q.attempt, q.last_error, q.claimed_by, q.claimed_at
	`, campaignID, workerID)

	var item domain.QueueItem
	var label, lastErr, claimedBy sql.NullString
	var claimedAt sql.NullTime
	err := row.Scan(&item.ItemID, &item.CampaignID, &item.Ordinal, &item.RecipientAddress,
		&label, &item.RenderedMessage, &item.Status, &item.Attempt, &lastErr, &claimedBy, &claimedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}

	item.RecipientLabel = label.String
	item.LastError = lastErr.String
	item.ClaimedBy = claimedBy.String
	if claimedAt.Valid {
		item.ClaimedAt = &claimedAt.Time
	}
	return &item, nil
}

// Complete applies outcome to itemID, implementing the retry/terminal
// split of §4.6: FAILED with Retryable and attempt < maxRetries returns
// the item to PENDING with incremented attempt; otherwise it is terminal.
func (s *PostgresStore) Complete(ctx context.Context, itemID string, outcome domain.Outcome, maxRetries int) error {
	if outcome.Status == domain.ItemFailed && outcome.Retryable {
		res, err := s.db.ExecContext(ctx, `
			UPDATE queue_items
			SET status = 'PENDING', attempt = attempt + 1, last_error = $2,
			    claimed_by = NULL, claimed_at = NULL
			WHERE item_id = $1 AND attempt < $3
		`, itemID, outcome.Reason, maxRetries)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			return nil
		}
		// attempt == maxRetries: fall through to terminal FAILED below.
	}

	sentAtExpr := "NULL"
	if outcome.Status == domain.ItemSent {
		sentAtExpr = "NOW()"
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = $2, last_error = $3, sent_at = `+sentAtExpr+`
		WHERE item_id = $1
	`, itemID, string(outcome.Status), outcome.Reason)
	return err
}

// Requeue transitions itemID from CLAIMED back to PENDING, leaving attempt
// untouched — distinct from Recover's stale-claim sweep in that it runs
// synchronously at pause time rather than waiting out staleAge.
func (s *PostgresStore) Requeue(ctx context.Context, itemID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'PENDING', claimed_by = NULL, claimed_at = NULL
		WHERE item_id = $1
	`, itemID)
	return err
}

func (s *PostgresStore) Stats(ctx context.Context, campaignID string) (domain.QueueStats, error) {
	var stats domain.QueueStats
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM queue_items WHERE campaign_id = $1 GROUP BY status
	`, campaignID)
	if err != nil {
		return stats, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Total += count
		switch domain.QueueItemStatus(status) {
		case domain.ItemPending:
			stats.Pending = count
		case domain.ItemClaimed:
			stats.Claimed = count
		case domain.ItemSent:
			stats.Sent = count
		case domain.ItemFailed:
			stats.Failed = count
		case domain.ItemSkipped:
			stats.Skipped = count
		}
	}
	return stats, rows.Err()
}

// Recover reclaims CLAIMED items whose claim is older than staleAge,
// grounded on the teacher's internal/worker/queue_recovery.go sweep.
func (s *PostgresStore) Recover(ctx context.Context, staleAge time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE queue_items
		SET status = 'PENDING', claimed_by = NULL, claimed_at = NULL
		WHERE status = 'CLAIMED' AND claimed_at < NOW() - $1::interval
	`, staleAge.String())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
