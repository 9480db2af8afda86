package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/emitter"
	"github.com/ignite/blastcampaign/internal/humansim"
	"github.com/ignite/blastcampaign/internal/queue"
	"github.com/ignite/blastcampaign/internal/transport"
)

// run is the worker loop of §4.7: one iteration claims, validates,
// paces, sends, and records the outcome of exactly one QueueItem, then
// loops. It exits on cancellation, queue exhaustion, or any transition to
// a non-RUNNING state.
func (r *Runner) run(ctx context.Context) {
	defer close(r.done)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		r.mu.Lock()
		status := r.campaign.Status
		cfg := r.campaign.Config
		tenantID := r.campaign.TenantID
		campaignID := r.campaign.CampaignID
		channelID := r.campaign.ChannelID
		r.mu.Unlock()

		if status != domain.StatusRunning {
			return
		}

		// Step 2: business-hours gate.
		if cfg.BusinessHours.Enabled {
			local := localTime(cfg.BusinessHours, r.deps.Clock.Now())
			if !inWindow(cfg.BusinessHours, local) {
				resumeAt := nextWindowEntry(cfg.BusinessHours, local)
				_ = r.ForcePauseUntil(context.Background(), domain.PauseReasonBusinessHours, resumeAt)
				return
			}
		}

		// Step 3: claim.
		item, err := r.deps.Queue.ClaimNext(ctx, campaignID, r.workerID)
		if errors.Is(err, queue.ErrEmpty) {
			r.complete(context.Background())
			return
		}
		if err != nil {
			r.fail(context.Background(), err.Error())
			return
		}

		if !r.sendOne(ctx, item, cfg, tenantID, channelID) {
			return
		}
	}
}

// sendOne drives steps 4-11 of §4.7 for one claimed item. Returns false
// if the worker loop must exit (pause/stop/fail/complete already
// happened).
func (r *Runner) sendOne(ctx context.Context, item *domain.QueueItem, cfg domain.Config, tenantID, channelID string) bool {
	// Step 4: validation cache consult.
	res, err := r.deps.Validation.Validate(ctx, item.RecipientAddress, r.deps.Transport)
	if err == nil && !res.Exists {
		_ = r.deps.Queue.Complete(ctx, item.ItemID, domain.Outcome{Status: domain.ItemSkipped, Reason: "not-on-platform"}, cfg.RetryConfig.MaxRetries)
		r.mu.Lock()
		r.campaign.Skipped++
		r.mu.Unlock()
		r.publishProgress(tenantID)
		return true
	}

	// Step 5: compose pre-send delay.
	delay := r.composeDelay(item.RenderedMessage, cfg, channelID)
	if sleepErr := r.deps.Clock.Sleep(ctx, delay); sleepErr != nil {
		return r.abortClaim(item)
	}

	// Step 6: rest.
	r.sinceLastRest++
	if r.sinceLastRest >= r.restThreshold {
		weight := humansim.DrawRestWeight(r.rng)
		restDur := humansim.RestDuration(r.rng, weight, cfg.RestDelay.Min, cfg.RestDelay.Max)
		if sleepErr := r.deps.Clock.Sleep(ctx, restDur); sleepErr != nil {
			return r.abortClaim(item)
		}
		r.sinceLastRest = 0
	}

	// Step 7: chaos pauses.
	for _, kind := range []humansim.ChaosKind{humansim.ChaosDistraction, humansim.ChaosAppSwitching, humansim.ChaosLongBreak} {
		if d, fire := humansim.ChaosPause(r.rng, kind); fire {
			if sleepErr := r.deps.Clock.Sleep(ctx, d); sleepErr != nil {
				return r.abortClaim(item)
			}
		}
	}

	// Step 8: send, preceded by the micro per-API-call pacing gap.
	if sleepErr := r.deps.Clock.Sleep(ctx, r.messageDelay(cfg)); sleepErr != nil {
		return r.abortClaim(item)
	}
	headers := r.deps.AntiDetect.HeadersFor(r.campaign.CampaignID, r.rng)
	result := r.deps.Transport.Send(ctx, channelID, item.RecipientAddress, item.RenderedMessage, headers)

	if result.Err == nil {
		return r.onSuccess(ctx, item, tenantID, channelID)
	}
	return r.onFailure(ctx, item, cfg, result, tenantID, channelID)
}

// abortClaim requeues item to PENDING when a pause/stop cancels an
// in-flight delay before the send happens, so the same QueueItem — not the
// next PENDING one — is what Resume's claim picks up next (S5), instead of
// leaving it CLAIMED until the stale-claim recovery sweep reclaims it.
func (r *Runner) abortClaim(item *domain.QueueItem) bool {
	if err := r.deps.Queue.Requeue(context.Background(), item.ItemID); err != nil {
		r.logf("failed to requeue aborted item %s: %v", item.ItemID, err)
	}
	return false
}

func (r *Runner) onSuccess(ctx context.Context, item *domain.QueueItem, tenantID, channelID string) bool {
	_ = r.deps.Queue.Complete(ctx, item.ItemID, domain.Outcome{Status: domain.ItemSent}, 0)

	now := r.deps.Clock.Now()
	r.deps.Health.OnSuccess(channelID)
	r.deps.Adaptive.RecordOutcome(r.campaign.CampaignID, true)
	r.deps.AntiDetect.RecordTiming(r.campaign.CampaignID, "send", float64(now.UnixMilli()), now)

	r.mu.Lock()
	r.campaign.Sent++
	exceeded := r.campaign.Sent+r.campaign.Failed >= r.dailyLimit
	r.mu.Unlock()

	r.deps.Emitter.Publish(emitter.Event{
		TenantID: tenantID, CampaignID: r.campaign.CampaignID,
		Type: emitter.EventItemSent, ItemID: item.ItemID, Timestamp: now,
	})
	r.publishProgress(tenantID)

	if decision := r.deps.Health.ThrottleWithRNG(channelID, r.rng); decision.ForcePause {
		_ = r.ForcePauseUntil(context.Background(), decision.Reason, now.Add(decision.PauseDuration))
		return false
	}

	if exceeded {
		_ = r.ForcePauseUntil(context.Background(), domain.PauseReasonDailyLimit, startOfNextDay(now))
		return false
	}
	return true
}

func (r *Runner) onFailure(ctx context.Context, item *domain.QueueItem, cfg domain.Config, result transport.SendResult, tenantID, channelID string) bool {
	retryable := result.ErrorKind.Retryable() && item.Attempt < cfg.RetryConfig.MaxRetries
	outcome := domain.Outcome{
		Status:    domain.ItemFailed,
		ErrorKind: result.ErrorKind,
		Reason:    result.Err.Error(),
		Retryable: retryable,
	}
	_ = r.deps.Queue.Complete(ctx, item.ItemID, outcome, cfg.RetryConfig.MaxRetries)

	now := r.deps.Clock.Now()
	r.deps.Health.OnFailure(channelID)
	r.deps.Adaptive.RecordOutcome(r.campaign.CampaignID, false)

	r.mu.Lock()
	if !retryable {
		r.campaign.Failed++
	}
	exceeded := r.campaign.Sent+r.campaign.Failed >= r.dailyLimit
	r.mu.Unlock()

	r.deps.Emitter.Publish(emitter.Event{
		TenantID: tenantID, CampaignID: r.campaign.CampaignID,
		Type: emitter.EventItemFailed, ItemID: item.ItemID, Detail: string(result.ErrorKind), Timestamp: now,
	})
	r.publishProgress(tenantID)

	decision := r.deps.Health.ThrottleWithRNG(channelID, r.rng)
	if decision.ForcePause {
		_ = r.ForcePauseUntil(context.Background(), decision.Reason, now.Add(decision.PauseDuration))
		return false
	}

	if exceeded {
		_ = r.ForcePauseUntil(context.Background(), domain.PauseReasonDailyLimit, startOfNextDay(now))
		return false
	}
	return true
}

func startOfNextDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}

func (r *Runner) complete(ctx context.Context) {
	r.mu.Lock()
	r.campaign.Status = domain.StatusCompleted
	now := r.deps.Clock.Now()
	r.campaign.CompletedAt = &now
	campaignCopy := *r.campaign
	r.mu.Unlock()

	_ = r.deps.Repo.Save(ctx, &campaignCopy)
	r.deps.Adaptive.Reset(campaignCopy.CampaignID)
	r.publishStatusChange(domain.StatusRunning, domain.StatusCompleted, "")
	r.deps.Emitter.Publish(emitter.Event{
		TenantID: campaignCopy.TenantID, CampaignID: campaignCopy.CampaignID,
		Type: emitter.EventCompleted, Timestamp: r.deps.Clock.Now(),
	})
}

func (r *Runner) fail(ctx context.Context, reason string) {
	r.mu.Lock()
	r.campaign.Status = domain.StatusFailed
	r.campaign.LastError = reason
	campaignCopy := *r.campaign
	r.mu.Unlock()

	_ = r.deps.Repo.Save(ctx, &campaignCopy)
	r.publishStatusChange(domain.StatusRunning, domain.StatusFailed, reason)
	r.deps.Emitter.Publish(emitter.Event{
		TenantID: campaignCopy.TenantID, CampaignID: campaignCopy.CampaignID,
		Type: emitter.EventToast, ToastKind: emitter.ToastError,
		Title: "Campaign failed", Body: reason, Timestamp: r.deps.Clock.Now(),
	})
}

func (r *Runner) publishProgress(tenantID string) {
	r.mu.Lock()
	c := *r.campaign
	r.mu.Unlock()
	_ = r.deps.Repo.Save(context.Background(), &c)
	r.deps.Emitter.Publish(emitter.Event{
		TenantID: tenantID, CampaignID: c.CampaignID,
		Type: emitter.EventProgress, Detail: fmt.Sprintf("%.1f%%", c.ProgressPct()), Timestamp: r.deps.Clock.Now(),
	})
}
