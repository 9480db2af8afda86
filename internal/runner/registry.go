package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/emergency"
)

// Registry tracks every Runner currently live in the process, keyed by
// campaign ID. It is the control plane's entry point for starting,
// pausing, resuming, and stopping campaigns, and it satisfies the
// `runners` lookup emergency.Monitor needs to force-pause a breaching
// campaign without the two packages importing each other. Grounded on
// the teacher's internal/worker/campaign_processor.go, which keeps a
// similar map of active per-campaign processors behind a mutex.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]*Runner
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runners: make(map[string]*Runner)}
}

// Add registers r under its campaign ID. Replaces any prior entry for
// the same campaign (the caller is responsible for ensuring the old
// one has already stopped).
func (g *Registry) Add(r *Runner) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.runners[r.campaign.CampaignID] = r
}

// Remove drops campaignID from the registry.
func (g *Registry) Remove(campaignID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.runners, campaignID)
}

// Get returns the live Runner for campaignID, if any.
func (g *Registry) Get(campaignID string) (*Runner, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runners[campaignID]
	return r, ok
}

// Lookup adapts Get to emergency.RunnerHandle's resolver signature, so a
// Registry can be passed directly as emergency.NewMonitor's runners
// argument.
func (g *Registry) Lookup(campaignID string) (emergency.RunnerHandle, bool) {
	r, ok := g.Get(campaignID)
	if !ok {
		return nil, false
	}
	return r, true
}

// Snapshots returns a Campaign snapshot for every runner currently
// registered, used by the control plane's list endpoint.
func (g *Registry) Snapshots() []domain.Campaign {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]domain.Campaign, 0, len(g.runners))
	for _, r := range g.runners {
		out = append(out, r.Snapshot())
	}
	return out
}

// StopAll cooperatively stops every registered runner and waits for
// each worker goroutine to exit, used on process shutdown.
func (g *Registry) StopAll(ctx context.Context) error {
	g.mu.RLock()
	runners := make([]*Runner, 0, len(g.runners))
	for _, r := range g.runners {
		runners = append(runners, r)
	}
	g.mu.RUnlock()

	var firstErr error
	for _, r := range runners {
		if err := r.Pause(ctx, domain.PauseReasonShutdown); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stopping runner for campaign %s: %w", r.campaign.CampaignID, err)
		}
		r.Wait()
	}
	return firstErr
}
