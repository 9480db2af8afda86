// Package antidetect implements the AntiDetectionEngine (§4.3): per-session
// fingerprint issuance, header/jitter variation, and self-inspection of
// outbound timing for bot-like patterns. Grounded on the teacher's
// static-config-table idiom (ISPConfig-style device pools) and its
// bounded-history ring (internal/engine/campaign_events.go).
package antidetect

import (
	"crypto/rand"
	"encoding/hex"
	"math"
	mrand "math/rand"
	"sync"
	"time"

	"github.com/ignite/blastcampaign/internal/domain"
)

// deviceDescriptor is one entry in the fixed device pool fingerprintFor
// samples from.
type deviceDescriptor struct {
	Manufacturer string
	Model        string
	OS           string
	UserAgent    string
	AppVersion   string
}

// devicePool is the fixed pool of plausible device descriptors,
// grounded on the teacher's ESPContracts-style static literal config
// tables in internal/config/config.go.
var devicePool = []deviceDescriptor{
	{"Samsung", "Galaxy S23", "Android 14", "Mozilla/5.0 (Linux; Android 14; SM-S911B)", "4.2.1"},
	{"Samsung", "Galaxy A54", "Android 13", "Mozilla/5.0 (Linux; Android 13; SM-A546B)", "4.1.9"},
	{"Apple", "iPhone 14", "iOS 17.4", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X)", "4.2.0"},
	{"Apple", "iPhone 13", "iOS 16.6", "Mozilla/5.0 (iPhone; CPU iPhone OS 16_6 like Mac OS X)", "4.0.5"},
	{"Google", "Pixel 8", "Android 14", "Mozilla/5.0 (Linux; Android 14; Pixel 8)", "4.2.1"},
	{"Xiaomi", "Redmi Note 12", "Android 13", "Mozilla/5.0 (Linux; Android 13; 22101316G)", "4.1.7"},
	{"OnePlus", "11", "Android 14", "Mozilla/5.0 (Linux; Android 14; CPH2449)", "4.2.1"},
	{"Motorola", "Edge 40", "Android 13", "Mozilla/5.0 (Linux; Android 13; XT2303-2)", "4.1.8"},
}

const ringCapacity = 100

// Engine issues fingerprints and headers and tracks per-campaign timing
// history for self-inspection. One Engine instance is shared across all
// campaigns in the process.
type Engine struct {
	mu           sync.Mutex
	fingerprints map[string]*domain.FingerprintRecord
	rings        map[string]*ring
}

// NewEngine creates an AntiDetectionEngine with an empty fingerprint/ring
// table.
func NewEngine() *Engine {
	return &Engine{
		fingerprints: make(map[string]*domain.FingerprintRecord),
		rings:        make(map[string]*ring),
	}
}

// FingerprintFor idempotently issues a fingerprint for campaignID: the
// first call selects a device descriptor and a random device ID;
// subsequent calls return the same record.
func (e *Engine) FingerprintFor(campaignID string, rng *mrand.Rand) domain.FingerprintRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	if fp, ok := e.fingerprints[campaignID]; ok {
		return *fp
	}
	fp := e.issue(campaignID, rng, 1)
	e.fingerprints[campaignID] = &fp
	return fp
}

// Rotate replaces the fingerprint for campaignID with a freshly-issued
// one, bumping Generation.
func (e *Engine) Rotate(campaignID string, rng *mrand.Rand) domain.FingerprintRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	gen := 1
	if fp, ok := e.fingerprints[campaignID]; ok {
		gen = fp.Generation + 1
	}
	fp := e.issue(campaignID, rng, gen)
	e.fingerprints[campaignID] = &fp
	return fp
}

func (e *Engine) issue(campaignID string, rng *mrand.Rand, generation int) domain.FingerprintRecord {
	d := devicePool[rng.Intn(len(devicePool))]
	return domain.FingerprintRecord{
		CampaignID:   campaignID,
		Manufacturer: d.Manufacturer,
		Model:        d.Model,
		OS:           d.OS,
		UserAgent:    d.UserAgent,
		AppVersion:   d.AppVersion,
		DeviceID:     randomDeviceID(),
		Generation:   generation,
	}
}

// randomDeviceID returns a random 16-character hex device ID, grounded on
// the teacher's crypto/rand-based RedisLock value generation in
// internal/pkg/distlock/redis_lock.go.
func randomDeviceID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// HeadersFor returns the header set for campaignID's current fingerprint:
// required UA/device headers plus optional timestamp/encoding headers
// present at 50% each.
func (e *Engine) HeadersFor(campaignID string, rng *mrand.Rand) map[string]string {
	e.mu.Lock()
	fp, ok := e.fingerprints[campaignID]
	e.mu.Unlock()
	if !ok {
		return map[string]string{}
	}

	headers := map[string]string{
		"User-Agent":    fp.UserAgent,
		"X-Device-ID":   fp.DeviceID,
		"X-Device-Make": fp.Manufacturer,
		"X-Device-Model": fp.Model,
		"X-App-Version": fp.AppVersion,
	}
	if rng.Float64() < 0.5 {
		headers["X-Client-Timestamp"] = time.Now().UTC().Format(time.RFC3339)
	}
	if rng.Float64() < 0.5 {
		headers["Accept-Encoding"] = "gzip, deflate, br"
	}
	return headers
}

// Jitter returns max(0, d + d*pct*uniform(-1,+1)).
func Jitter(rng *mrand.Rand, d time.Duration, pct float64) time.Duration {
	factor := pct * (rng.Float64()*2 - 1)
	jittered := time.Duration(float64(d) * (1 + factor))
	if jittered < 0 {
		return 0
	}
	return jittered
}

// RecordTiming appends a timing sample to campaignID's bounded ring,
// creating the ring on first use.
func (e *Engine) RecordTiming(campaignID string, op string, tMs float64, now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rings[campaignID]
	if !ok {
		r = newRing(ringCapacity)
		e.rings[campaignID] = r
	}
	r.push(domain.TimingEntry{Op: op, TMs: tMs, TsReal: now})
}

// Severity is the §4.3 selfInspect issue severity.
type Severity string

const (
	SeverityHigh   Severity = "HIGH"
	SeverityMedium Severity = "MEDIUM"
)

// Issue is one flagged pattern from selfInspect.
type Issue struct {
	Severity Severity
	Detail   string
}

// InspectionResult summarizes selfInspect's findings.
type InspectionResult struct {
	Issues     []Issue
	Confidence float64
}

// HasHigh reports whether any issue carries HIGH severity.
func (r InspectionResult) HasHigh() bool {
	for _, i := range r.Issues {
		if i.Severity == SeverityHigh {
			return true
		}
	}
	return false
}

// SelfInspect computes, over the last >=10 timings for campaignID:
// (a) the max repetition count of intervals bucketed to the nearest
// second, (b) the coefficient of variation of intervals, (c) the count of
// triples whose successive differences are both < 100ms. HIGH severity
// when repetition > 3 or perfect-triples > 5; MEDIUM when CoV < 0.15.
// Confidence = min(1, issues/3).
func (e *Engine) SelfInspect(campaignID string) InspectionResult {
	e.mu.Lock()
	r, ok := e.rings[campaignID]
	e.mu.Unlock()
	if !ok || r.len() < 10 {
		return InspectionResult{}
	}

	entries := r.entries()
	intervals := make([]float64, 0, len(entries)-1)
	for i := 1; i < len(entries); i++ {
		intervals = append(intervals, entries[i].TMs-entries[i-1].TMs)
	}

	repBuckets := map[int64]int{}
	maxRep := 0
	for _, iv := range intervals {
		bucket := int64(math.Round(iv / 1000))
		repBuckets[bucket]++
		if repBuckets[bucket] > maxRep {
			maxRep = repBuckets[bucket]
		}
	}

	mean := average(intervals)
	cov := 0.0
	if mean != 0 {
		cov = stddev(intervals, mean) / mean
	}

	perfectTriples := 0
	for i := 0; i+2 < len(intervals); i++ {
		d1 := math.Abs(intervals[i+1] - intervals[i])
		d2 := math.Abs(intervals[i+2] - intervals[i+1])
		if d1 < 100 && d2 < 100 {
			perfectTriples++
		}
	}

	var issues []Issue
	if maxRep > 3 || perfectTriples > 5 {
		issues = append(issues, Issue{Severity: SeverityHigh, Detail: "repetitive timing intervals"})
	}
	if cov < 0.15 {
		issues = append(issues, Issue{Severity: SeverityMedium, Detail: "low timing variance"})
	}

	confidence := float64(len(issues)) / 3
	if confidence > 1 {
		confidence = 1
	}

	return InspectionResult{Issues: issues, Confidence: confidence}
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64, mean float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
