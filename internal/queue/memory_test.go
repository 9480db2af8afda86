package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/blastcampaign/internal/domain"
)

func TestMemoryStoreClaimOrdersByOrdinal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "c1", []domain.QueueItem{
		{Ordinal: 2, RecipientAddress: "b"},
		{Ordinal: 1, RecipientAddress: "a"},
	}))

	item, err := s.ClaimNext(ctx, "c1", "worker-1")
	require.NoError(t, err)
	assert.Equal(t, "a", item.RecipientAddress)
	assert.Equal(t, domain.ItemClaimed, item.Status)
}

func TestMemoryStoreClaimNextEmpty(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.ClaimNext(context.Background(), "c1", "worker-1")
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestMemoryStoreCompleteRetriesWithinBudget(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "c1", []domain.QueueItem{{Ordinal: 1, RecipientAddress: "a"}}))

	item, err := s.ClaimNext(ctx, "c1", "worker-1")
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, item.ItemID, domain.Outcome{Status: domain.ItemFailed, Retryable: true, Reason: "timeout"}, 3))

	stats, err := s.Stats(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.Failed)
}

func TestMemoryStoreCompleteTerminalAfterMaxRetries(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Append(ctx, "c1", []domain.QueueItem{{Ordinal: 1, RecipientAddress: "a", Attempt: 3}}))

	item, err := s.ClaimNext(ctx, "c1", "worker-1")
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, item.ItemID, domain.Outcome{Status: domain.ItemFailed, Retryable: true, Reason: "timeout"}, 3))

	stats, err := s.Stats(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.Pending)
}

func TestMemoryStoreRecoverReclaimsStaleClaims(t *testing.T) {
	s := NewMemoryStore()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, "c1", []domain.QueueItem{{Ordinal: 1, RecipientAddress: "a"}}))
	_, err := s.ClaimNext(ctx, "c1", "worker-1")
	require.NoError(t, err)

	s.now = func() time.Time { return base.Add(10 * time.Minute) }
	n, err := s.Recover(ctx, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := s.Stats(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.Claimed)
}
