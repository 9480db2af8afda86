// Package humansim computes plausible human-timing delays and pauses
// (§4.2). Every function is pure given its *rand.Rand argument — there is
// no package-level RNG singleton, per §9's singleton-elimination design
// note and the teacher's per-instance-state discipline in
// internal/engine/agent_throttle.go.
package humansim

import (
	"math/rand"
	"strings"
	"time"
)

// AccountAge mirrors domain.AccountAge without importing the domain
// package, so this package stays a leaf with zero internal dependencies —
// callers pass the string value straight through.
type AccountAge string

const (
	AgeNew         AccountAge = "NEW"
	AgeWarming     AccountAge = "WARMING"
	AgeEstablished AccountAge = "ESTABLISHED"
)

// Components is a composite delay broken into typing time and zero-or-more
// named pauses, so the caller (CampaignRunner) can pre-position some parts
// before send and others after, per §4.2.
type Components struct {
	Typing time.Duration
	Pauses []Pause
}

// Pause is one probabilistic pause drawn during delay composition.
type Pause struct {
	Kind     string
	Duration time.Duration
}

// Total sums typing time and every pause into one duration.
func (c Components) Total() time.Duration {
	total := c.Typing
	for _, p := range c.Pauses {
		total += p.Duration
	}
	return total
}

const (
	minTyping = 2 * time.Second
	maxTyping = 30 * time.Second
)

// TypingTime derives a typing duration from message length: 3-5 chars/sec
// plus per-punctuation pause 200-500ms and per-space pause 50-200ms,
// clamped to [2s, 30s].
func TypingTime(rng *rand.Rand, message string) time.Duration {
	charsPerSec := 3 + rng.Float64()*2 // 3..5
	base := time.Duration(float64(len([]rune(message))) / charsPerSec * float64(time.Second))

	var punctuation, spaces int
	for _, r := range message {
		switch {
		case r == ' ':
			spaces++
		case strings.ContainsRune(".,!?;:", r):
			punctuation++
		}
	}

	for i := 0; i < punctuation; i++ {
		base += time.Duration(200+rng.Intn(300)) * time.Millisecond
	}
	for i := 0; i < spaces; i++ {
		base += time.Duration(50+rng.Intn(150)) * time.Millisecond
	}

	if base < minTyping {
		return minTyping
	}
	if base > maxTyping {
		return maxTyping
	}
	return base
}

// ForgotState tracks the at-most-one-"forgot"-per-campaign-per-hour rule
// of §4.2. Callers own one ForgotState per campaign (threaded alongside
// the campaign's *rand.Rand), never shared across campaigns.
type ForgotState struct {
	lastForgotAt time.Time
}

// NewForgotState returns a fresh per-campaign forgot-pause tracker.
func NewForgotState() *ForgotState { return &ForgotState{} }

// ProbabilisticPauses draws the independent Bernoulli pauses of §4.2:
// second-thoughts 5% (3-8s), phone-check 10% (5-15s), distraction 8%
// (10-30s), "forgot" 3% (30-60min, at most one per campaign per hour).
// now is the caller's current time (virtualized via clock.Clock), used
// only to enforce the forgot-pause rate limit.
func ProbabilisticPauses(rng *rand.Rand, fs *ForgotState, now time.Time) []Pause {
	var pauses []Pause

	if rng.Float64() < 0.05 {
		pauses = append(pauses, Pause{Kind: "second_thoughts", Duration: randDuration(rng, 3, 8, time.Second)})
	}
	if rng.Float64() < 0.10 {
		pauses = append(pauses, Pause{Kind: "phone_check", Duration: randDuration(rng, 5, 15, time.Second)})
	}
	if rng.Float64() < 0.08 {
		pauses = append(pauses, Pause{Kind: "distraction", Duration: randDuration(rng, 10, 30, time.Second)})
	}
	if rng.Float64() < 0.03 && (fs == nil || fs.lastForgotAt.IsZero() || now.Sub(fs.lastForgotAt) >= time.Hour) {
		pauses = append(pauses, Pause{Kind: "forgot", Duration: randDuration(rng, 30, 60, time.Minute)})
		if fs != nil {
			fs.lastForgotAt = now
		}
	}

	return pauses
}

// TypoCorrection draws the 15% (1-4s) typo-correction pause of §4.2.
func TypoCorrection(rng *rand.Rand) (Pause, bool) {
	if rng.Float64() < 0.15 {
		return Pause{Kind: "typo_correction", Duration: randDuration(rng, 1, 4, time.Second)}, true
	}
	return Pause{}, false
}

// Delay composes the full §4.2 contract for one message: typing time plus
// probabilistic pauses plus an independent typo-correction draw.
func Delay(rng *rand.Rand, fs *ForgotState, now time.Time, age AccountAge, message string) Components {
	c := Components{Typing: TypingTime(rng, message)}
	c.Pauses = append(c.Pauses, ProbabilisticPauses(rng, fs, now)...)
	if p, ok := TypoCorrection(rng); ok {
		c.Pauses = append(c.Pauses, p)
	}
	return c
}

// ChaosKind enumerates the runner-step-7 chaos pauses of §4.7.
type ChaosKind string

const (
	ChaosDistraction  ChaosKind = "distraction"
	ChaosAppSwitching ChaosKind = "app_switching"
	ChaosLongBreak    ChaosKind = "long_break"
)

// chaosProbabilities mirrors §4.7 step 7: distraction 5%, app-switching
// 5%, long-break 10%.
var chaosProbabilities = map[ChaosKind]float64{
	ChaosDistraction:  0.05,
	ChaosAppSwitching: 0.05,
	ChaosLongBreak:    0.10,
}

var chaosRanges = map[ChaosKind][2]float64{
	ChaosDistraction:  {10, 30}, // seconds
	ChaosAppSwitching: {15, 45}, // seconds
	ChaosLongBreak:    {2, 8},  // minutes
}

var chaosUnits = map[ChaosKind]time.Duration{
	ChaosDistraction:  time.Second,
	ChaosAppSwitching: time.Second,
	ChaosLongBreak:    time.Minute,
}

// ChaosPause draws whether the given chaos kind fires this iteration, and
// if so, its duration.
func ChaosPause(rng *rand.Rand, kind ChaosKind) (time.Duration, bool) {
	p, ok := chaosProbabilities[kind]
	if !ok || rng.Float64() >= p {
		return 0, false
	}
	r := chaosRanges[kind]
	return randDuration(rng, r[0], r[1], chaosUnits[kind]), true
}

// randDuration draws a uniform float in [min,max] (in the given unit) and
// returns it as a time.Duration.
func randDuration(rng *rand.Rand, min, max float64, unit time.Duration) time.Duration {
	v := min + rng.Float64()*(max-min)
	return time.Duration(v * float64(unit))
}

// RestWeight is the 3-way weighted distribution of §4.7 step 6: SHORT 40%,
// MEDIUM 40%, LONG 20%.
type RestWeight string

const (
	RestShort  RestWeight = "SHORT"
	RestMedium RestWeight = "MEDIUM"
	RestLong   RestWeight = "LONG"
)

// DrawRestWeight picks SHORT/MEDIUM/LONG per the 40/40/20 distribution.
func DrawRestWeight(rng *rand.Rand) RestWeight {
	r := rng.Float64()
	switch {
	case r < 0.40:
		return RestShort
	case r < 0.80:
		return RestMedium
	default:
		return RestLong
	}
}

// RestDuration maps a RestWeight onto a fraction of the configured
// [min,max] rest-delay range (minutes): SHORT draws from the lower third,
// MEDIUM the middle third, LONG the upper third, so the weighting actually
// changes the sampled duration rather than just labeling it.
func RestDuration(rng *rand.Rand, weight RestWeight, minMin, maxMin float64) time.Duration {
	span := maxMin - minMin
	if span <= 0 {
		return time.Duration(minMin) * time.Minute
	}
	third := span / 3
	var lo, hi float64
	switch weight {
	case RestShort:
		lo, hi = minMin, minMin+third
	case RestMedium:
		lo, hi = minMin+third, minMin+2*third
	default:
		lo, hi = minMin+2*third, maxMin
	}
	return randDuration(rng, lo, hi, time.Minute)
}
