package emergency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/emitter"
	"github.com/ignite/blastcampaign/internal/pkg/clock"
)

type fakeRunner struct {
	paused bool
	reason string
	detail string
}

func (f *fakeRunner) ForcePause(ctx context.Context, reason, detail string) error {
	f.paused = true
	f.reason = reason
	f.detail = detail
	return nil
}

func TestEvaluateHealthyNoTrigger(t *testing.T) {
	m := NewMonitor(DefaultThresholds(), clock.Real{}, 0, nil, nil, nil)
	trigger, _ := m.Evaluate(Snapshot{CampaignID: "c1", Sent5m: 100, Failed5m: 5, Sent1h: 1000, Blocked1h: 2})
	assert.Empty(t, trigger)
}

func TestEvaluateFailureSpike(t *testing.T) {
	m := NewMonitor(DefaultThresholds(), clock.Real{}, 0, nil, nil, nil)
	trigger, detail := m.Evaluate(Snapshot{CampaignID: "c1", Sent5m: 100, Failed5m: 30})
	assert.Equal(t, "failure_spike", trigger)
	assert.NotEmpty(t, detail)
}

func TestEvaluateBlockSpike(t *testing.T) {
	m := NewMonitor(DefaultThresholds(), clock.Real{}, 0, nil, nil, nil)
	trigger, _ := m.Evaluate(Snapshot{CampaignID: "c1", Sent1h: 1000, Blocked1h: 20})
	assert.Equal(t, "block_spike", trigger)
}

func TestSweepForcePausesBreachingCampaign(t *testing.T) {
	runner := &fakeRunner{}
	m := NewMonitor(DefaultThresholds(), clock.Real{}, 0,
		func(ctx context.Context) ([]Snapshot, error) {
			return []Snapshot{{CampaignID: "c1", Sent5m: 100, Failed5m: 40}}, nil
		},
		func(campaignID string) (RunnerHandle, bool) {
			require.Equal(t, "c1", campaignID)
			return runner, true
		},
		nil,
	)

	m.sweep(context.Background())

	assert.True(t, runner.paused)
	assert.Equal(t, domain.PauseReasonBanRate, runner.reason)

	incidents := m.Incidents()
	require.Len(t, incidents, 1)
	assert.Equal(t, "failure_spike", incidents[0].Trigger)
}

// §4.9's warn tier: a failure rate between FailureRateWarn and
// FailureRatePause emits a toast but never pauses the campaign.
func TestSweepWarnsWithoutPausingInWarnBand(t *testing.T) {
	runner := &fakeRunner{}
	emit := emitter.New()
	sub := emit.Subscribe("tenant-1", "sub-1")
	defer emit.Unsubscribe("tenant-1", "sub-1")

	m := NewMonitor(DefaultThresholds(), clock.Real{}, 0,
		func(ctx context.Context) ([]Snapshot, error) {
			return []Snapshot{{CampaignID: "c1", TenantID: "tenant-1", Sent5m: 100, Failed5m: 15}}, nil
		},
		func(campaignID string) (RunnerHandle, bool) {
			return runner, true
		},
		emit,
	)

	m.sweep(context.Background())

	assert.False(t, runner.paused)
	select {
	case ev := <-sub:
		assert.Equal(t, emitter.EventToast, ev.Type)
		assert.Equal(t, emitter.ToastWarning, ev.ToastKind)
	default:
		t.Fatal("expected a warning toast to be published")
	}
}
