// Package adaptive implements the AdaptiveDelayController (§4.4): it
// converts observed per-campaign send outcomes into a multiplicative delay
// factor, directly grounded on the EMA + promote/demote state machine of
// the teacher's internal/engine/agent_throttle.go ThrottleAgent.
package adaptive

import (
	"math"
	"sync"
)

// RiskTier is the categorical risk level mapped onto a delay factor.
type RiskTier int

const (
	RiskLow RiskTier = iota
	RiskMedium
	RiskHigh
	RiskCritical
)

// tierFactors is the categorical risk -> factor mapping of §4.4.
var tierFactors = map[RiskTier]float64{
	RiskLow:      1.0,
	RiskMedium:   1.5,
	RiskHigh:     2.0,
	RiskCritical: 3.0,
}

// MaxFactor is the absolute ceiling §4.4/§8 property 6 requires the
// controller never exceed, regardless of tier or RiskAssessor input.
const MaxFactor = 5.0

// halfLifeMessages is the EMA half-life (in messages) for the per-campaign
// failure rate, per §4.4.
const halfLifeMessages = 20

// emaAlpha is the smoothing factor for a half-life EMA:
// alpha = 1 - 0.5^(1/halfLife).
var emaAlpha = 1 - math.Pow(0.5, 1.0/halfLifeMessages)

const (
	promoteThreshold     = 0.15
	demoteThreshold      = 0.03
	promoteHoldMessages  = 10
	demoteStreakRequired = 10
)

// RiskAssessor is the optional external collaborator (§4.4) feeding a
// categorical override that takes precedence over the controller's own
// EMA-derived tier. Interface-only per spec §9 — no implementation is part
// of this core.
type RiskAssessor interface {
	Assess(campaignID string) (RiskTier, bool)
}

type campaignState struct {
	ema            float64
	tier           RiskTier
	messagesAtTier int
	demoteStreak   int
}

// Controller is the AdaptiveDelayController. One instance is shared across
// all running campaigns; per-campaign state lives behind a single mutex,
// mirroring the teacher's per-agent sync.Mutex-protected state in
// ThrottleAgent.
type Controller struct {
	mu       sync.Mutex
	state    map[string]*campaignState
	assessor RiskAssessor
}

// NewController creates a Controller. assessor may be nil, in which case
// the factor is derived purely from the internal EMA.
func NewController(assessor RiskAssessor) *Controller {
	return &Controller{
		state:    make(map[string]*campaignState),
		assessor: assessor,
	}
}

func (c *Controller) stateFor(campaignID string) *campaignState {
	s, ok := c.state[campaignID]
	if !ok {
		s = &campaignState{tier: RiskLow}
		c.state[campaignID] = s
	}
	return s
}

// RecordOutcome feeds one send outcome into the per-campaign EMA and
// applies the promote/demote hysteresis of §4.4: promote one tier when
// the EMA reaches >=15% (held for at least 10 subsequent messages before
// another promotion/demotion is considered), demote one tier (never below
// LOW) after 10 consecutive messages with EMA <=3%.
func (c *Controller) RecordOutcome(campaignID string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stateFor(campaignID)
	failure := 0.0
	if !success {
		failure = 1.0
	}
	s.ema = s.ema + emaAlpha*(failure-s.ema)
	s.messagesAtTier++

	if s.ema >= promoteThreshold && s.messagesAtTier >= promoteHoldMessages {
		if s.tier < RiskCritical {
			s.tier++
		}
		s.messagesAtTier = 0
		s.demoteStreak = 0
		return
	}

	if s.ema <= demoteThreshold {
		s.demoteStreak++
		if s.demoteStreak >= demoteStreakRequired {
			if s.tier > RiskLow {
				s.tier--
			}
			s.demoteStreak = 0
			s.messagesAtTier = 0
		}
	} else {
		s.demoteStreak = 0
	}
}

// Factor returns the current multiplicative delay factor for campaignID.
// If a RiskAssessor is configured and returns an override, that tier takes
// precedence over the EMA-derived tier, per §4.4. The result is always
// clamped to [1.0, MaxFactor].
func (c *Controller) Factor(campaignID string) float64 {
	tier := c.tierFor(campaignID)

	factor := tierFactors[tier]
	if factor > MaxFactor {
		factor = MaxFactor
	}
	return factor
}

func (c *Controller) tierFor(campaignID string) RiskTier {
	if c.assessor != nil {
		if tier, ok := c.assessor.Assess(campaignID); ok {
			return tier
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateFor(campaignID).tier
}

// Tier returns the current internal (non-override) tier for campaignID,
// useful for tests and observability.
func (c *Controller) Tier(campaignID string) RiskTier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateFor(campaignID).tier
}

// Reset clears all per-campaign state for campaignID (used when a
// campaign completes and its state should not leak into a future run with
// a reused ID).
func (c *Controller) Reset(campaignID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state, campaignID)
}
