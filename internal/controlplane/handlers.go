// Package controlplane implements the §6 control-plane operations as chi
// HTTP handlers: campaign creation, lifecycle transitions, state queries,
// and the per-tenant event subscription. Grounded on the teacher's
// internal/api/routes.go (chi + go-chi/cors wiring) and its handler
// package's httputil.JSON/Error conventions.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/blastcampaign/internal/config"
	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/emitter"
	"github.com/ignite/blastcampaign/internal/pkg/distlock"
	"github.com/ignite/blastcampaign/internal/pkg/httputil"
	"github.com/ignite/blastcampaign/internal/runner"
	"github.com/ignite/blastcampaign/internal/validation"
)

// lister is satisfied by repository/postgres.CampaignRepo; asserted for
// optionally so Repository (runner's minimal Get/Save contract) does not
// have to grow a List method just for this one endpoint.
type lister interface {
	List(ctx context.Context, tenantID string) ([]domain.Campaign, error)
}

// Handlers bundles everything the control plane needs to service HTTP
// requests: the shared runner.Deps template (Validation/Transport/
// AntiDetect/Adaptive/Health/Emitter/Clock are process-wide singletons),
// the Registry of live runners, and a seed source for new runners.
type Handlers struct {
	Deps     runner.Deps
	Registry *runner.Registry
	SeedFn   func() int64 // production: time-based; tests: fixed

	// Locker builds a distributed lock for key, guarding against two
	// control-plane replicas both winning a start/resume race for the same
	// campaign. Nil disables locking (single-replica deployments, tests).
	Locker func(key string) distlock.DistLock

	// BackgroundValidation pre-warms the validation cache for a newly
	// created campaign's recipients, spread across WarmWindow, so the
	// worker loop's step-4 cache consult mostly hits instead of blocking on
	// a synchronous ExistsOnPlatform call. Nil disables warming (tests).
	BackgroundValidation *validation.BackgroundQueue
	WarmWindow           time.Duration
}

// withStartLock runs fn while holding a short-lived distributed lock
// scoped to campaignID, if Locker is configured; otherwise it just calls
// fn. Returns domain.ErrIllegalTransition if another replica already holds
// the lock, since that means a start/resume is already in flight.
func (h *Handlers) withStartLock(ctx context.Context, campaignID string, fn func() error) error {
	if h.Locker == nil {
		return fn()
	}
	lock := h.Locker("campaign-start:" + campaignID)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire start lock: %w", err)
	}
	if !acquired {
		return domain.ErrIllegalTransition
	}
	defer lock.Release(ctx)
	return fn()
}

type recipientInput struct {
	Address string `json:"address"`
	Label   string `json:"label"`
}

type createCampaignRequest struct {
	TenantID        string           `json:"tenantId"`
	ChannelID       string           `json:"channelId"`
	CampaignName    string           `json:"campaignName"`
	MessageTemplate string           `json:"messageTemplate"`
	Recipients      []recipientInput `json:"recipients"`
	Config          domain.Config    `json:"config"`
}

type createCampaignResponse struct {
	CampaignID string `json:"campaignId"`
}

// CreateCampaign handles `POST campaigns` (§6): validates the request,
// resolves channel-age defaults deep-merged with the user config,
// persists the campaign SCHEDULED, and enqueues every recipient.
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	if req.TenantID == "" || req.ChannelID == "" || req.MessageTemplate == "" || len(req.Recipients) == 0 {
		writeError(w, fmt.Errorf("%w: tenantId, channelId, messageTemplate, and at least one recipient are required", domain.ErrValidation))
		return
	}

	resolved := config.Resolve(req.Config)

	campaign := &domain.Campaign{
		CampaignID: uuid.NewString(),
		TenantID:   req.TenantID,
		ChannelID:  req.ChannelID,
		Name:       req.CampaignName,
		Config:     resolved,
		Status:     domain.StatusScheduled,
		Total:      len(req.Recipients),
		CreatedAt:  time.Now(),
	}

	if err := h.Deps.Repo.Save(r.Context(), campaign); err != nil {
		writeError(w, err)
		return
	}

	// §4.7's initial-ordering policy: a partial Fisher-Yates shuffle over
	// 15-20% of the ordinals, seeded per-campaign, so claim order isn't a
	// strict sequential detection signature.
	ordinals := runner.PartialShuffle(rand.New(rand.NewSource(h.seed())), len(req.Recipients))

	items := make([]domain.QueueItem, len(req.Recipients))
	for i, rec := range req.Recipients {
		items[i] = domain.QueueItem{
			Ordinal:          ordinals[i],
			RecipientAddress: rec.Address,
			RecipientLabel:   rec.Label,
			RenderedMessage:  req.MessageTemplate,
		}
	}
	if err := h.Deps.Queue.Append(r.Context(), campaign.CampaignID, items); err != nil {
		writeError(w, err)
		return
	}

	if h.BackgroundValidation != nil {
		addresses := make([]string, len(req.Recipients))
		for i, rec := range req.Recipients {
			addresses[i] = rec.Address
		}
		// A progressive warm already running for another campaign means
		// this one falls back to the slower, unbounded background FIFO
		// instead of starving on a queued ProgressiveWarm.
		if !h.BackgroundValidation.ProgressiveWarm(context.Background(), addresses, h.Deps.Transport, h.WarmWindow) {
			h.BackgroundValidation.EnqueueBackground(context.Background(), addresses, h.Deps.Transport)
		}
	}

	httputil.Created(w, createCampaignResponse{CampaignID: campaign.CampaignID})
}

// resolveRunner returns the live Runner for campaignID, rebuilding one
// from persisted state (with a fresh seed) if the process has no
// in-memory Runner for it — the case right after a control-plane
// restart, when SCHEDULED/PAUSED campaigns have no running goroutine yet.
func (h *Handlers) resolveRunner(ctx context.Context, campaignID string) (*runner.Runner, error) {
	if r, ok := h.Registry.Get(campaignID); ok {
		return r, nil
	}
	c, err := h.Deps.Repo.Get(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	r := runner.New(c, h.Deps, h.seed())
	h.Registry.Add(r)
	return r, nil
}

func (h *Handlers) seed() int64 {
	if h.SeedFn != nil {
		return h.SeedFn()
	}
	return time.Now().UnixNano()
}

// StartCampaign handles `POST campaigns/{id}/start`.
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rn, err := h.resolveRunner(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	err = h.withStartLock(r.Context(), id, func() error { return rn.Start(r.Context()) })
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rn.Snapshot())
}

// PauseCampaign handles `POST campaigns/{id}/pause`.
func (h *Handlers) PauseCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rn, err := h.resolveRunner(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	if body.Reason == "" {
		body.Reason = domain.PauseReasonUser
	}
	if err := rn.Pause(r.Context(), body.Reason); err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rn.Snapshot())
}

// ResumeCampaign handles `POST campaigns/{id}/resume`.
func (h *Handlers) ResumeCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rn, err := h.resolveRunner(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	err = h.withStartLock(r.Context(), id, func() error { return rn.Resume(r.Context()) })
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rn.Snapshot())
}

// StopCampaign handles `POST campaigns/{id}/stop`.
func (h *Handlers) StopCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rn, err := h.resolveRunner(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rn.Stop(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, rn.Snapshot())
	h.Registry.Remove(id)
}

// GetCampaign handles `GET campaigns/{id}`: full state plus derived totals.
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if rn, ok := h.Registry.Get(id); ok {
		snap := rn.Snapshot()
		httputil.OK(w, withProgress(snap))
		return
	}
	c, err := h.Deps.Repo.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, withProgress(*c))
}

// ListCampaigns handles a tenant-scoped campaign listing, not named
// explicitly in §6 but required by any dashboard consuming the control
// plane; only available when Repo also implements lister (the Postgres
// repository does).
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenantId")
	if tenantID == "" {
		writeError(w, fmt.Errorf("%w: tenantId query parameter is required", domain.ErrValidation))
		return
	}
	l, ok := h.Deps.Repo.(lister)
	if !ok {
		httputil.OK(w, []domain.Campaign{})
		return
	}
	campaigns, err := l.List(r.Context(), tenantID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.OK(w, campaigns)
}

type campaignWithProgress struct {
	domain.Campaign
	ProgressPct float64 `json:"progressPct"`
}

func withProgress(c domain.Campaign) campaignWithProgress {
	return campaignWithProgress{Campaign: c, ProgressPct: c.ProgressPct()}
}

// NextRecipientPreview handles `GET campaigns/{id}/next` (§6): it responds
// with the campaign's queue totals by status when at least one item is
// PENDING, and NOT_FOUND otherwise. It claims nothing, and it does not
// return the next recipient itself.
func (h *Handlers) NextRecipientPreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	stats, err := h.Deps.Queue.Stats(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if stats.Pending == 0 {
		writeError(w, fmt.Errorf("%w: no pending recipients", domain.ErrNotFound))
		return
	}
	httputil.OK(w, stats)
}

// SubscribeEvents handles the per-tenant real-time event subscription as
// Server-Sent Events, grounded on RealTimeEmitter's non-blocking
// per-subscriber channel fan-out (§4.8).
func (h *Handlers) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantId")
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, fmt.Errorf("%w: streaming unsupported", domain.ErrValidation))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	subscriberID := uuid.NewString()
	events := h.Deps.Emitter.Subscribe(tenantID, subscriberID)
	defer h.Deps.Emitter.Unsubscribe(tenantID, subscriberID)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventName(ev), payload)
			flusher.Flush()
		}
	}
}

func eventName(ev emitter.Event) string {
	switch ev.Type {
	case emitter.EventProgress:
		return "progress"
	case emitter.EventItemSent:
		return "messageSuccess"
	case emitter.EventItemFailed:
		return "messageFailure"
	case emitter.EventItemSkipped:
		return "messageSkipped"
	case emitter.EventStatusChanged:
		return "statusChange"
	case emitter.EventCompleted:
		return "campaignCompleted"
	case emitter.EventToast:
		return "toast"
	default:
		return "event"
	}
}
