// Package runner implements CampaignRunner (§4.7), the heart of the
// system: the per-campaign state machine and worker loop that composes
// the validation cache, human simulator, anti-detection engine, adaptive
// delay controller, health monitor, message queue, and transport into one
// cooperative, cancellable task per running campaign. Grounded on the
// teacher's internal/worker/campaign_processor.go CampaignProcessor
// (ctx/cancel lifecycle, workerID, sync.WaitGroup) generalized from a
// fixed worker pool to one cooperative task per campaign.
package runner

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/blastcampaign/internal/adaptive"
	"github.com/ignite/blastcampaign/internal/antidetect"
	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/emitter"
	"github.com/ignite/blastcampaign/internal/health"
	"github.com/ignite/blastcampaign/internal/humansim"
	"github.com/ignite/blastcampaign/internal/pkg/clock"
	"github.com/ignite/blastcampaign/internal/pkg/logger"
	"github.com/ignite/blastcampaign/internal/queue"
	"github.com/ignite/blastcampaign/internal/transport"
	"github.com/ignite/blastcampaign/internal/validation"
)

// Repository persists Campaign state. The runner treats the in-memory
// *domain.Campaign as authoritative and writes through on every mutation,
// mirroring the teacher's markSent/markFailed/skipItem per-mutation
// write-through in campaign_processor.go, but collapsed to a single
// Save call per the simpler campaigns-table row model of §6.
type Repository interface {
	Get(ctx context.Context, campaignID string) (*domain.Campaign, error)
	Save(ctx context.Context, c *domain.Campaign) error
}

// Deps bundles every capability CampaignRunner composes (§2 data flow).
// All fields are required except Assessor (adaptive's optional
// RiskAssessor is configured on the Controller itself, not here).
type Deps struct {
	Repo       Repository
	Queue      queue.Store
	Validation *validation.Cache
	Transport  transport.Transport
	AntiDetect *antidetect.Engine
	Adaptive   *adaptive.Controller
	Health     *health.Monitor
	Emitter    *emitter.Emitter
	Clock      clock.Clock
}

// Runner is the CampaignRunner: one instance drives exactly one Campaign
// from RUNNING to a terminal or PAUSED state.
type Runner struct {
	deps Deps

	mu       sync.Mutex
	campaign *domain.Campaign
	rng      *rand.Rand
	forgot   *humansim.ForgotState

	sinceLastRest int
	restThreshold int
	dailyLimit    int

	workerID string
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
}

// New builds a Runner for an existing campaign (status SCHEDULED),
// seeding its RNG from seed so pacing decisions are reproducible in
// tests, per §4.7's "determinism of pacing" requirement.
func New(campaign *domain.Campaign, deps Deps, seed int64) *Runner {
	return &Runner{
		deps:     deps,
		campaign: campaign,
		rng:      rand.New(rand.NewSource(seed)),
		forgot:   humansim.NewForgotState(),
		workerID: fmt.Sprintf("runner-%s", uuid.NewString()[:8]),
		done:     make(chan struct{}),
	}
}

// Snapshot returns a copy of the campaign's current state.
func (r *Runner) Snapshot() domain.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.campaign
}

// Start transitions SCHEDULED -> RUNNING and spawns the worker goroutine.
// Returns domain.ErrIllegalTransition if the campaign is not SCHEDULED.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if !r.campaign.CanTransition("start") {
		r.mu.Unlock()
		return domain.ErrIllegalTransition
	}
	now := r.deps.Clock.Now()
	r.campaign.Status = domain.StatusRunning
	r.campaign.StartedAt = &now
	r.restThreshold = int(r.campaign.Config.RestThreshold.Min +
		r.rng.Float64()*(r.campaign.Config.RestThreshold.Max-r.campaign.Config.RestThreshold.Min))
	r.dailyLimit = int(r.campaign.Config.DailyLimit.Min +
		r.rng.Float64()*(r.campaign.Config.DailyLimit.Max-r.campaign.Config.DailyLimit.Min))
	campaignCopy := *r.campaign
	r.mu.Unlock()

	if err := r.deps.Repo.Save(ctx, &campaignCopy); err != nil {
		return err
	}
	r.publishStatusChange(domain.StatusScheduled, domain.StatusRunning, "")

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.run(runCtx)
	return nil
}

// Pause requests a cooperative pause: the worker finishes any in-flight
// send, then exits. Respects the ≤100ms cancellation budget of §5 by
// cancelling the run context, which aborts any in-progress Clock.Sleep.
func (r *Runner) Pause(ctx context.Context, reason string) error {
	return r.transitionOut(ctx, "pause", domain.StatusPaused, reason, nil)
}

// ForcePause satisfies emergency.RunnerHandle and health-driven forced
// rests: same cooperative pause as Pause, with resumeAt optionally set by
// the caller via ForcePauseUntil.
func (r *Runner) ForcePause(ctx context.Context, reason, detail string) error {
	full := reason
	if detail != "" {
		full = reason + ": " + detail
	}
	return r.transitionOut(ctx, "pause", domain.StatusPaused, full, nil)
}

// ForcePauseUntil pauses with a resumeAt timestamp, used by the
// business-hours gate and RecoveryController forced rests.
func (r *Runner) ForcePauseUntil(ctx context.Context, reason string, resumeAt time.Time) error {
	return r.transitionOut(ctx, "pause", domain.StatusPaused, reason, &resumeAt)
}

// Stop requests a cooperative, terminal stop. Remaining PENDING items are
// left untouched per §4.7 ("remaining PENDING items stay PENDING, not
// deleted").
func (r *Runner) Stop(ctx context.Context) error {
	return r.transitionOut(ctx, "stop", domain.StatusStopped, domain.PauseReasonUser, nil)
}

func (r *Runner) transitionOut(ctx context.Context, event string, to domain.CampaignStatus, reason string, resumeAt *time.Time) error {
	r.mu.Lock()
	if !r.campaign.CanTransition(event) {
		r.mu.Unlock()
		return domain.ErrIllegalTransition
	}
	from := r.campaign.Status
	r.campaign.Status = to
	if to == domain.StatusPaused {
		now := r.deps.Clock.Now()
		r.campaign.PausedAt = &now
		r.campaign.PauseReason = reason
		r.campaign.ResumeAt = resumeAt
	}
	campaignCopy := *r.campaign
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if err := r.deps.Repo.Save(ctx, &campaignCopy); err != nil {
		return err
	}
	r.publishStatusChange(from, to, reason)
	return nil
}

// Resume transitions PAUSED -> RUNNING and re-spawns the worker, per
// §4.7's `resume()` event.
func (r *Runner) Resume(ctx context.Context) error {
	r.mu.Lock()
	if !r.campaign.CanTransition("resume") {
		r.mu.Unlock()
		return domain.ErrIllegalTransition
	}
	r.campaign.Status = domain.StatusRunning
	r.campaign.PauseReason = ""
	r.campaign.ResumeAt = nil
	campaignCopy := *r.campaign
	r.mu.Unlock()

	if err := r.deps.Repo.Save(ctx, &campaignCopy); err != nil {
		return err
	}
	r.publishStatusChange(domain.StatusPaused, domain.StatusRunning, "")

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.run(runCtx)
	return nil
}

// Rehydrate resumes the worker loop for a campaign persisted as RUNNING,
// without replaying the SCHEDULED->RUNNING transition — the case at
// cmd/campaignworker startup, when a crash or deploy left campaigns
// RUNNING with no in-memory Runner. Restarting restores the restThreshold/
// dailyLimit jitter deterministically from the same seed, then re-enters
// the loop exactly as Resume does.
func (r *Runner) Rehydrate(ctx context.Context) error {
	r.mu.Lock()
	if r.campaign.Status != domain.StatusRunning {
		r.mu.Unlock()
		return domain.ErrIllegalTransition
	}
	r.restThreshold = int(r.campaign.Config.RestThreshold.Min +
		r.rng.Float64()*(r.campaign.Config.RestThreshold.Max-r.campaign.Config.RestThreshold.Min))
	r.dailyLimit = int(r.campaign.Config.DailyLimit.Min +
		r.rng.Float64()*(r.campaign.Config.DailyLimit.Max-r.campaign.Config.DailyLimit.Min))
	r.mu.Unlock()

	runCtx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancel = cancel
	r.running = true
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.run(runCtx)
	return nil
}

// Wait blocks until the current worker goroutine (if any) has exited.
// Used by tests to synchronize on run-loop completion instead of
// sleeping.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) publishStatusChange(from, to domain.CampaignStatus, reason string) {
	r.deps.Emitter.Publish(emitter.Event{
		TenantID:   r.campaign.TenantID,
		CampaignID: r.campaign.CampaignID,
		Type:       emitter.EventStatusChanged,
		Detail:     fmt.Sprintf("%s->%s: %s", from, to, reason),
		Timestamp:  r.deps.Clock.Now(),
	})
}

func (r *Runner) logf(format string, args ...interface{}) {
	logger.Info(fmt.Sprintf(format, args...), "campaign_id", r.campaign.CampaignID, "worker_id", r.workerID)
}
