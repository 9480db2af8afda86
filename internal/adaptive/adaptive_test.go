package adaptive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFactorNeverExceedsMax(t *testing.T) {
	c := NewController(nil)
	for i := 0; i < 500; i++ {
		c.RecordOutcome("camp-1", false)
		assert.LessOrEqual(t, c.Factor("camp-1"), MaxFactor)
	}
}

func TestStartsAtLowTier(t *testing.T) {
	c := NewController(nil)
	assert.Equal(t, RiskLow, c.Tier("camp-1"))
	assert.Equal(t, 1.0, c.Factor("camp-1"))
}

func TestPromotesOnHighFailureRate(t *testing.T) {
	c := NewController(nil)
	for i := 0; i < 30; i++ {
		c.RecordOutcome("camp-1", false)
	}
	assert.Greater(t, c.Tier("camp-1"), RiskLow)
}

func TestDemotesAfterRecovery(t *testing.T) {
	c := NewController(nil)
	for i := 0; i < 30; i++ {
		c.RecordOutcome("camp-1", false)
	}
	promoted := c.Tier("camp-1")
	assert.Greater(t, promoted, RiskLow)

	for i := 0; i < 200; i++ {
		c.RecordOutcome("camp-1", true)
	}
	assert.Less(t, c.Tier("camp-1"), promoted)
}

func TestNeverDemotesBelowLow(t *testing.T) {
	c := NewController(nil)
	for i := 0; i < 500; i++ {
		c.RecordOutcome("camp-1", true)
	}
	assert.Equal(t, RiskLow, c.Tier("camp-1"))
}

type fakeAssessor struct {
	tier RiskTier
	ok   bool
}

func (f fakeAssessor) Assess(campaignID string) (RiskTier, bool) { return f.tier, f.ok }

func TestRiskAssessorOverride(t *testing.T) {
	c := NewController(fakeAssessor{tier: RiskCritical, ok: true})
	assert.Equal(t, tierFactors[RiskCritical], c.Factor("camp-1"))
}

func TestResetClearsState(t *testing.T) {
	c := NewController(nil)
	for i := 0; i < 30; i++ {
		c.RecordOutcome("camp-1", false)
	}
	c.Reset("camp-1")
	assert.Equal(t, RiskLow, c.Tier("camp-1"))
}
