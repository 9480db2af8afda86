package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/blastcampaign/internal/domain"
)

// MemoryStore is an in-memory Store, grounded on the same claim/complete
// contract as the Postgres implementation but backed by two maps (items by
// ID, and each campaign's item IDs in ordinal order) guarded by a single
// mutex. Used by runner
// unit tests that must run without Postgres (§8 properties 3/4).
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]*domain.QueueItem // by itemID
	byCmp map[string][]string          // campaignID -> itemIDs in ordinal order
	now   func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]*domain.QueueItem),
		byCmp: make(map[string][]string),
		now:   time.Now,
	}
}

func (s *MemoryStore) Append(ctx context.Context, campaignID string, items []domain.QueueItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range items {
		item := items[i]
		if item.ItemID == "" {
			item.ItemID = uuid.NewString()
		}
		item.CampaignID = campaignID
		if item.Status == "" {
			item.Status = domain.ItemPending
		}
		cp := item
		s.items[cp.ItemID] = &cp
		s.byCmp[campaignID] = append(s.byCmp[campaignID], cp.ItemID)
	}

	sort.Slice(s.byCmp[campaignID], func(i, j int) bool {
		return s.items[s.byCmp[campaignID][i]].Ordinal < s.items[s.byCmp[campaignID][j]].Ordinal
	})

	return nil
}

func (s *MemoryStore) ClaimNext(ctx context.Context, campaignID string, workerID string) (*domain.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.byCmp[campaignID] {
		item := s.items[id]
		if item.Status == domain.ItemPending {
			item.Status = domain.ItemClaimed
			item.ClaimedBy = workerID
			now := s.now()
			item.ClaimedAt = &now
			cp := *item
			return &cp, nil
		}
	}
	return nil, ErrEmpty
}

func (s *MemoryStore) Complete(ctx context.Context, itemID string, outcome domain.Outcome, maxRetries int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return domain.ErrNotFound
	}

	if outcome.Status == domain.ItemFailed && outcome.Retryable && item.Attempt < maxRetries {
		item.Status = domain.ItemPending
		item.Attempt++
		item.LastError = outcome.Reason
		item.ClaimedBy = ""
		item.ClaimedAt = nil
		return nil
	}

	item.Status = outcome.Status
	item.LastError = outcome.Reason
	if outcome.Status == domain.ItemSent {
		now := s.now()
		item.SentAt = &now
	}
	return nil
}

func (s *MemoryStore) Requeue(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok {
		return domain.ErrNotFound
	}
	item.Status = domain.ItemPending
	item.ClaimedBy = ""
	item.ClaimedAt = nil
	return nil
}

func (s *MemoryStore) Stats(ctx context.Context, campaignID string) (domain.QueueStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats domain.QueueStats
	for _, id := range s.byCmp[campaignID] {
		item := s.items[id]
		stats.Total++
		switch item.Status {
		case domain.ItemPending:
			stats.Pending++
		case domain.ItemClaimed:
			stats.Claimed++
		case domain.ItemSent:
			stats.Sent++
		case domain.ItemFailed:
			stats.Failed++
		case domain.ItemSkipped:
			stats.Skipped++
		}
	}
	return stats, nil
}

func (s *MemoryStore) Recover(ctx context.Context, staleAge time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-staleAge)
	count := 0
	for _, item := range s.items {
		if item.Status == domain.ItemClaimed && item.ClaimedAt != nil && item.ClaimedAt.Before(cutoff) {
			item.Status = domain.ItemPending
			item.ClaimedBy = ""
			item.ClaimedAt = nil
			count++
		}
	}
	return count, nil
}
