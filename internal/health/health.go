// Package health implements AccountHealthMonitor / RecoveryController
// (§4.5): per-channel health scoring and the throttling ladder that forces
// rest when a channel looks like it is heading toward suspension.
// Grounded on the teacher's internal/engine/agent_warmup.go (threshold
// ladder -> decision) and internal/engine/agent_emergency.go (state carried
// across a rolling window).
package health

import (
	"math/rand"
	"sync"
	"time"

	"github.com/ignite/blastcampaign/internal/domain"
)

const (
	successDelta        = 1.0
	failureDelta        = -5.0
	maxQualityDowngrade = -30.0
	repeatOffenseWindow = 7 * 24 * time.Hour
)

// repeatPauseHours is the §4.5 forced-pause duration table for score<30,
// indexed by how many forced pauses this channel has already accumulated
// within the trailing 7 days (clamped to the last entry).
var repeatPauseHours = []float64{48, 24, 12, 6}

// Decision is what Throttle returns after evaluating the ladder for one
// channel.
type Decision struct {
	DelayMultiplier float64
	ConcurrencyCap  int // 0 means no cap imposed
	ForcePause      bool
	PauseDuration   time.Duration
	Reason          string
}

// Monitor is the AccountHealthMonitor / RecoveryController. One instance is
// shared across all channels in the process; per-channel state lives
// behind a single mutex, mirroring the teacher's per-agent
// sync.Mutex-protected state.
type Monitor struct {
	mu      sync.Mutex
	records map[string]*domain.HealthRecord
	now     func() time.Time
}

// NewMonitor creates a Monitor. nowFn is injectable for tests; pass nil to
// use time.Now.
func NewMonitor(nowFn func() time.Time) *Monitor {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Monitor{
		records: make(map[string]*domain.HealthRecord),
		now:     nowFn,
	}
}

func (m *Monitor) recordFor(channelID string) *domain.HealthRecord {
	r, ok := m.records[channelID]
	if !ok {
		r = &domain.HealthRecord{ChannelID: channelID, Score: 100}
		m.records[channelID] = r
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OnSuccess raises the channel's score by +1, clamped to 100.
func (m *Monitor) OnSuccess(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recordFor(channelID)
	r.Score = clamp(r.Score+successDelta, 0, 100)
	r.RecentFailureCount = 0
}

// OnFailure lowers the channel's score by -5, clamped to 0.
func (m *Monitor) OnFailure(channelID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recordFor(channelID)
	r.Score = clamp(r.Score+failureDelta, 0, 100)
	r.RecentFailureCount++
}

// OnQualityDowngrade subtracts up to 30 points for a connection-quality
// downgrade (amount must be in [0,30]; values outside are clamped).
func (m *Monitor) OnQualityDowngrade(channelID string, amount float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.recordFor(channelID)
	if amount > -maxQualityDowngrade {
		amount = -maxQualityDowngrade
	}
	if amount < 0 {
		amount = 0
	}
	r.Score = clamp(r.Score-amount, 0, 100)
	r.ConnectionQuality = amount
}

// Score returns the current score for channelID (100 if never seen).
func (m *Monitor) Score(channelID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recordFor(channelID).Score
}

// DelayMultiplier is a read-only peek at the §4.5 ladder's delay
// multiplier for channelID's current score, without the forced-pause
// bookkeeping Throttle/ThrottleWithRNG perform. CampaignRunner uses this
// to scale step-5 pre-send delay composition; the mutating Throttle calls
// stay confined to the post-send ladder evaluation so composing a delay
// never itself counts as a forced-pause occurrence.
func (m *Monitor) DelayMultiplier(channelID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	score := m.recordFor(channelID).Score
	if score < 70 {
		return 1.5
	}
	return 1.0
}

// Throttle evaluates the §4.5 ladder for channelID's current score using
// a fresh math/rand source seeded from the monitor's clock (now) for the
// score<50 uniform 2-4h draw.
// Runner call sites that need reproducible pacing should call
// ThrottleWithRNG with their own seeded *rand.Rand instead.
func (m *Monitor) Throttle(channelID string) Decision {
	return m.ThrottleWithRNG(channelID, rand.New(rand.NewSource(m.now().UnixNano())))
}

// ThrottleWithRNG is Throttle with the score<50 pause duration drawn
// uniformly from [2h,4h] using rng, so CampaignRunner can make the draw
// reproducible in tests via its own seeded RNG per §9's "seedable RNG
// owned by the runner" design note. Scores below 30 additionally register
// a forced pause timestamp so the repeat-count table advances for next
// time.
func (m *Monitor) ThrottleWithRNG(channelID string, rng *rand.Rand) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	r := m.recordFor(channelID)
	score := r.Score

	switch {
	case score < 30:
		now := m.now()
		r.ForcedPauseAt = pruneOld(r.ForcedPauseAt, now)
		idx := len(r.ForcedPauseAt)
		if idx >= len(repeatPauseHours) {
			idx = len(repeatPauseHours) - 1
		}
		hours := repeatPauseHours[idx]
		r.ForcedPauseAt = append(r.ForcedPauseAt, now)
		until := now.Add(time.Duration(hours * float64(time.Hour)))
		r.RecoveryUntil = &until
		return Decision{
			DelayMultiplier: 1.5,
			ConcurrencyCap:  1,
			ForcePause:      true,
			PauseDuration:   time.Duration(hours * float64(time.Hour)),
			Reason:          domain.PauseReasonHealth,
		}
	case score < 50:
		hours := 2.0 + rng.Float64()*2.0
		return Decision{
			DelayMultiplier: 1.5,
			ConcurrencyCap:  1,
			ForcePause:      true,
			PauseDuration:   time.Duration(hours * float64(time.Hour)),
			Reason:          domain.PauseReasonHealth,
		}
	case score < 70:
		return Decision{
			DelayMultiplier: 1.5,
			ConcurrencyCap:  1,
		}
	default:
		return Decision{DelayMultiplier: 1.0}
	}
}

// pruneOld drops forced-pause timestamps older than the 7-day repeat
// window, so the repeat count resets once a channel has been clean for a
// week.
func pruneOld(ts []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-repeatOffenseWindow)
	out := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			out = append(out, t)
		}
	}
	return out
}
