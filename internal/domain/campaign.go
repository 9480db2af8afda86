// Package domain holds the core types of the Blast Campaign Execution Core:
// campaigns, queue items, and the small supporting records (validation cache
// entries, channel health, fingerprints, timing rings) that the rest of the
// packages operate on. Nothing in this package talks to a database, Redis,
// or the network — it is pure data plus the invariants that govern it.
package domain

import "time"

// CampaignStatus is the campaign lifecycle state, one of the values in the
// state machine driven by CampaignRunner.
type CampaignStatus string

const (
	StatusScheduled CampaignStatus = "SCHEDULED"
	StatusRunning   CampaignStatus = "RUNNING"
	StatusPaused    CampaignStatus = "PAUSED"
	StatusStopped   CampaignStatus = "STOPPED"
	StatusCompleted CampaignStatus = "COMPLETED"
	StatusFailed    CampaignStatus = "FAILED"
)

// IsTerminal reports whether no further state transition is legal.
func (s CampaignStatus) IsTerminal() bool {
	switch s {
	case StatusStopped, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// AccountAge is the coarse channel-maturity classification that selects
// safety defaults for pacing (§6 channel-age defaults table).
type AccountAge string

const (
	AgeNew         AccountAge = "NEW"
	AgeWarming     AccountAge = "WARMING"
	AgeEstablished AccountAge = "ESTABLISHED"
)

// PauseReason identifies why a campaign was moved to PAUSED, beyond a
// user-supplied free-text reason — these constants are the reasons other
// components (RecoveryController, EmergencyMonitor, business-hours gate)
// set themselves.
const (
	PauseReasonBanRate       = "AUTO_PAUSE_BAN_RATE"
	PauseReasonHealth        = "AUTO_PAUSE_HEALTH"
	PauseReasonBusinessHours = "AUTO_PAUSE_BUSINESS_HOURS"
	PauseReasonDailyLimit    = "AUTO_PAUSE_DAILY_LIMIT"
	PauseReasonUser          = "USER_REQUESTED"
	PauseReasonShutdown      = "AUTO_PAUSE_SHUTDOWN"
)

// Campaign is a user-scoped send run: one rendered message to N recipients
// from one bound outbound channel.
type Campaign struct {
	CampaignID string
	TenantID   string
	ChannelID  string
	Name       string

	Config Config

	Status CampaignStatus

	Total   int
	Sent    int
	Failed  int
	Skipped int

	CurrentIndex int

	CreatedAt   time.Time
	StartedAt   *time.Time
	PausedAt    *time.Time
	CompletedAt *time.Time

	PauseReason string
	ResumeAt    *time.Time

	LastError string
}

// ProgressPct returns the derived, monotonic-nondecreasing completion
// percentage: (sent+failed+skipped)/total*100, or 0 when total is 0.
func (c *Campaign) ProgressPct() float64 {
	if c.Total <= 0 {
		return 0
	}
	done := c.Sent + c.Failed + c.Skipped
	return float64(done) / float64(c.Total) * 100
}

// CheckInvariant verifies sent+failed+skipped <= total. Callers use this in
// tests and as a defensive assertion after counter mutation.
func (c *Campaign) CheckInvariant() bool {
	return c.Sent+c.Failed+c.Skipped <= c.Total
}

// transitions enumerates the legal (from, event) -> to moves of §4.7's
// state table. CampaignRunner consults this before mutating Status; it is
// the single source of truth for what ILLEGAL_TRANSITION means.
var transitions = map[CampaignStatus]map[string]CampaignStatus{
	StatusScheduled: {
		"start": StatusRunning,
	},
	StatusRunning: {
		"complete": StatusCompleted,
		"pause":    StatusPaused,
		"stop":     StatusStopped,
		"fail":     StatusFailed,
	},
	StatusPaused: {
		"resume": StatusRunning,
		"stop":   StatusStopped,
		"fail":   StatusFailed,
	},
}

// CanTransition reports whether the named event is legal from the
// campaign's current status, per the §4.7 state table. Terminal states
// reject every event.
func (c *Campaign) CanTransition(event string) bool {
	if c.Status.IsTerminal() {
		return false
	}
	to, ok := transitions[c.Status]
	if !ok {
		return false
	}
	_, ok = to[event]
	return ok
}

// NextStatus returns the destination status for event, and whether the
// transition is legal.
func (c *Campaign) NextStatus(event string) (CampaignStatus, bool) {
	if !c.CanTransition(event) {
		return c.Status, false
	}
	return transitions[c.Status][event], true
}
