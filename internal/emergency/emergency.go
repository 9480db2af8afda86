// Package emergency implements the emergency-halt monitor (§4.9): a
// periodic spike detector that force-pauses a campaign when its recent
// failure/complaint signal crosses an ISP-style hard threshold, requiring
// manual resume rather than the adaptive controller's self-recovery.
// Grounded on the teacher's internal/engine/agent_emergency.go
// EmergencyAgent.Evaluate.
package emergency

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/emitter"
	"github.com/ignite/blastcampaign/internal/pkg/clock"
	"github.com/ignite/blastcampaign/internal/pkg/logger"
)

// Thresholds mirrors the teacher's hard-coded spike thresholds
// (bounce>25%, deferral>50%, complaint>1%), renamed to the chat-delivery
// domain's failure taxonomy. FailureRatePause/FailureRateWarn implement
// §4.9's two-tier lifetime failure-rate policy: at or above the pause
// threshold the campaign is force-paused; at or above the warn threshold
// but below pause, a warning toast is emitted and the campaign keeps
// running.
type Thresholds struct {
	FailureRatePause float64 // lifetime failure rate >= this: force pause
	FailureRateWarn  float64 // lifetime failure rate >= this (but below pause): warn only
	TransientRate5m  float64 // fraction transient-failed (rate-limited/retried) in the last 5m
	BlockRate1h      float64 // fraction permanently blocked/banned in the last 1h
}

// DefaultThresholds matches the teacher's literal constants (25%, 50%, 1%)
// for the pause/transient/block tiers; FailureRateWarn has no teacher
// analogue (the teacher has no warn-only tier) so it defaults to half the
// pause threshold.
func DefaultThresholds() Thresholds {
	return Thresholds{FailureRatePause: 0.25, FailureRateWarn: 0.125, TransientRate5m: 0.50, BlockRate1h: 0.01}
}

// Snapshot is the signal window an EmergencyMonitor evaluates for one
// campaign, equivalent to the teacher's SignalSnapshot.
type Snapshot struct {
	CampaignID   string
	TenantID     string
	Sent5m       int
	Failed5m     int
	Transient5m  int
	Sent1h       int
	Blocked1h    int
	RecentErrors []string
}

// RunnerHandle is the subset of CampaignRunner the monitor acts on: force
// a pause tagged with domain.PauseReasonBanRate, requiring the normal
// resume flow rather than the adaptive controller's auto-recovery.
type RunnerHandle interface {
	ForcePause(ctx context.Context, reason, detail string) error
}

// Incident records one emergency halt, kept in-process for the control
// plane to surface via campaign status (§6's pause_reason/detail).
type Incident struct {
	CampaignID string
	Trigger    string
	Detail     string
	DetectedAt time.Time
}

// Monitor periodically evaluates snapshots for active campaigns and
// force-pauses any that breach Thresholds. Unlike AdaptiveDelayController,
// a Monitor trip is terminal until a human resumes the campaign.
type Monitor struct {
	thresholds Thresholds
	clk        clock.Clock
	interval   time.Duration
	emit       *emitter.Emitter

	mu        sync.Mutex
	incidents []Incident

	snapshot func(ctx context.Context) ([]Snapshot, error)
	runners  func(campaignID string) (RunnerHandle, bool)
}

// NewMonitor builds a Monitor. snapshot supplies the current per-campaign
// signal windows; runners resolves a campaign ID to its live RunnerHandle;
// emit (may be nil, e.g. in tests) publishes the §4.9 warning toast for
// campaigns in the warn-but-not-pause band.
func NewMonitor(thresholds Thresholds, clk clock.Clock, interval time.Duration,
	snapshot func(ctx context.Context) ([]Snapshot, error),
	runners func(campaignID string) (RunnerHandle, bool),
	emit *emitter.Emitter) *Monitor {
	return &Monitor{thresholds: thresholds, clk: clk, interval: interval, snapshot: snapshot, runners: runners, emit: emit}
}

// Run blocks, sweeping every interval until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		if err := m.clk.Sleep(ctx, m.interval); err != nil {
			return
		}
		m.sweep(ctx)
	}
}

func (m *Monitor) sweep(ctx context.Context) {
	snaps, err := m.snapshot(ctx)
	if err != nil {
		logger.Warn("emergency: snapshot fetch failed", "error", err.Error())
		return
	}
	for _, snap := range snaps {
		trigger, detail := m.Evaluate(snap)
		if trigger != "" {
			m.halt(ctx, snap.CampaignID, trigger, detail)
			continue
		}
		if warn, wdetail := m.evaluateWarn(snap); warn {
			m.warn(snap, wdetail)
		}
	}
}

// Evaluate returns the trigger name and a human-readable detail if snap
// breaches a pause threshold, or ("", "") if the campaign isn't pause-
// worthy. Exported standalone so tests and the control plane can ask
// "would this trip?" without a full sweep.
func (m *Monitor) Evaluate(snap Snapshot) (trigger, detail string) {
	if snap.Sent5m > 0 {
		if rate := float64(snap.Failed5m) / float64(snap.Sent5m); rate >= m.thresholds.FailureRatePause {
			return "failure_spike", fmt.Sprintf("failure rate %.1f%% over last 5m (%d/%d)", rate*100, snap.Failed5m, snap.Sent5m)
		}
		if rate := float64(snap.Transient5m) / float64(snap.Sent5m); rate > m.thresholds.TransientRate5m {
			return "transient_spike", fmt.Sprintf("transient-failure rate %.1f%% over last 5m (%d/%d)", rate*100, snap.Transient5m, snap.Sent5m)
		}
	}
	if snap.Sent1h > 0 {
		if rate := float64(snap.Blocked1h) / float64(snap.Sent1h); rate > m.thresholds.BlockRate1h {
			return "block_spike", fmt.Sprintf("block rate %.2f%% over last 1h (%d/%d)", rate*100, snap.Blocked1h, snap.Sent1h)
		}
	}
	return "", ""
}

// evaluateWarn reports whether snap's lifetime failure rate falls in
// [FailureRateWarn, FailureRatePause) — high enough to flag, not high
// enough to pause.
func (m *Monitor) evaluateWarn(snap Snapshot) (warn bool, detail string) {
	if snap.Sent5m == 0 {
		return false, ""
	}
	rate := float64(snap.Failed5m) / float64(snap.Sent5m)
	if rate >= m.thresholds.FailureRateWarn && rate < m.thresholds.FailureRatePause {
		return true, fmt.Sprintf("failure rate %.1f%% over last 5m (%d/%d)", rate*100, snap.Failed5m, snap.Sent5m)
	}
	return false, ""
}

func (m *Monitor) halt(ctx context.Context, campaignID, trigger, detail string) {
	runner, ok := m.runners(campaignID)
	if !ok {
		return
	}
	if err := runner.ForcePause(ctx, domain.PauseReasonBanRate, trigger+": "+detail); err != nil {
		logger.Warn("emergency: force pause failed", "campaign_id", campaignID, "error", err.Error())
		return
	}

	m.mu.Lock()
	m.incidents = append(m.incidents, Incident{
		CampaignID: campaignID,
		Trigger:    trigger,
		Detail:     detail,
		DetectedAt: time.Now(),
	})
	m.mu.Unlock()

	logger.Warn("emergency: campaign force-paused", "campaign_id", campaignID, "trigger", trigger, "detail", detail)
}

// warn emits a non-pausing warning toast for a campaign whose lifetime
// failure rate has crossed into the warn band.
func (m *Monitor) warn(snap Snapshot, detail string) {
	if m.emit == nil {
		return
	}
	m.emit.Publish(emitter.Event{
		TenantID:   snap.TenantID,
		CampaignID: snap.CampaignID,
		Type:       emitter.EventToast,
		ToastKind:  emitter.ToastWarning,
		Title:      "Elevated failure rate",
		Body:       detail,
		Timestamp:  time.Now(),
	})
	logger.Warn("emergency: campaign in warn band", "campaign_id", snap.CampaignID, "detail", detail)
}

// Incidents returns all recorded incidents, most recent last.
func (m *Monitor) Incidents() []Incident {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Incident, len(m.incidents))
	copy(out, m.incidents)
	return out
}
