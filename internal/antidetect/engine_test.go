package antidetect

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintForIdempotent(t *testing.T) {
	e := NewEngine()
	rng := rand.New(rand.NewSource(1))

	fp1 := e.FingerprintFor("camp-1", rng)
	fp2 := e.FingerprintFor("camp-1", rng)

	assert.Equal(t, fp1.DeviceID, fp2.DeviceID)
	assert.Equal(t, fp1.Generation, fp2.Generation)
}

func TestRotateChangesFingerprint(t *testing.T) {
	e := NewEngine()
	rng := rand.New(rand.NewSource(2))

	fp1 := e.FingerprintFor("camp-1", rng)
	fp2 := e.Rotate("camp-1", rng)

	assert.Equal(t, 2, fp2.Generation)
	assert.NotEqual(t, fp1.Generation, fp2.Generation)
}

func TestHeadersForRequiredKeys(t *testing.T) {
	e := NewEngine()
	rng := rand.New(rand.NewSource(3))
	e.FingerprintFor("camp-1", rng)

	headers := e.HeadersFor("camp-1", rng)
	require.Contains(t, headers, "User-Agent")
	require.Contains(t, headers, "X-Device-ID")
}

func TestJitterNeverNegative(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	for i := 0; i < 1000; i++ {
		d := Jitter(rng, time.Second, 0.2)
		assert.GreaterOrEqual(t, d, time.Duration(0))
	}
}

func TestSelfInspectInsufficientData(t *testing.T) {
	e := NewEngine()
	now := time.Now()
	for i := 0; i < 5; i++ {
		e.RecordTiming("camp-1", "send", float64(i)*1000, now)
	}
	result := e.SelfInspect("camp-1")
	assert.Empty(t, result.Issues)
}

// TestSelfInspectHumanlikeTimingsNoHighSeverity grounds §8 property 8:
// for 100 consecutive send timings produced with realistic jitter and no
// interventions, selfInspect must not report HIGH severity.
func TestSelfInspectHumanlikeTimingsNoHighSeverity(t *testing.T) {
	e := NewEngine()
	rng := rand.New(rand.NewSource(99))
	now := time.Now()

	cursor := 0.0
	for i := 0; i < 100; i++ {
		base := 60000.0 // 60s base contact delay
		jittered := float64(Jitter(rng, time.Duration(base)*time.Millisecond, 0.2).Milliseconds())
		cursor += jittered
		e.RecordTiming("camp-1", "send", cursor, now)
		now = now.Add(time.Duration(jittered) * time.Millisecond)
	}

	result := e.SelfInspect("camp-1")
	assert.False(t, result.HasHigh(), "expected no HIGH severity issues, got %+v", result.Issues)
}

func TestSelfInspectFlagsRoboticTiming(t *testing.T) {
	e := NewEngine()
	now := time.Now()
	cursor := 0.0
	for i := 0; i < 20; i++ {
		cursor += 5000 // exact 5s interval every time — robotic
		e.RecordTiming("camp-1", "send", cursor, now)
	}

	result := e.SelfInspect("camp-1")
	assert.True(t, result.HasHigh())
}
