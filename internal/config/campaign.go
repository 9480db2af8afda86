package config

import "github.com/ignite/blastcampaign/internal/domain"

// ageDefaults is the channel-age defaults table of spec §6. All units are
// seconds except RestDelay (minutes) and DailyLimit (messages).
var ageDefaults = map[domain.AccountAge]domain.Config{
	domain.AgeNew: {
		ContactDelay:  domain.Range{Min: 90, Max: 300},
		DailyLimit:    domain.Range{Min: 40, Max: 60},
		RestDelay:     domain.Range{Min: 60, Max: 120},
		MessageDelay:  domain.Range{Min: 2, Max: 10},
		RestThreshold: domain.Range{Min: 15, Max: 25},
	},
	domain.AgeWarming: {
		ContactDelay:  domain.Range{Min: 60, Max: 180},
		DailyLimit:    domain.Range{Min: 80, Max: 120},
		RestDelay:     domain.Range{Min: 60, Max: 120},
		MessageDelay:  domain.Range{Min: 2, Max: 10},
		RestThreshold: domain.Range{Min: 20, Max: 35},
	},
	domain.AgeEstablished: {
		ContactDelay:  domain.Range{Min: 45, Max: 150},
		DailyLimit:    domain.Range{Min: 150, Max: 200},
		RestDelay:     domain.Range{Min: 60, Max: 120},
		MessageDelay:  domain.Range{Min: 2, Max: 10},
		RestThreshold: domain.Range{Min: 25, Max: 50},
	},
}

// defaultBusinessHours and defaultRetryConfig fill in when a user omits
// those sections entirely; they have no age dependence in spec §6.
var defaultBusinessHours = domain.BusinessHours{
	Enabled: false,
}

var defaultRetryConfig = domain.RetryConfig{
	MaxRetries:        3,
	RetryDelaySeconds: 5,
}

// DefaultsFor returns the channel-age default config for age, falling back
// to ESTABLISHED defaults for an unrecognized or empty age (the safest
// default — the widest daily-limit range, the shortest contact delay floor
// of the three tiers is still conservative relative to NEW).
func DefaultsFor(age domain.AccountAge) domain.Config {
	d, ok := ageDefaults[age]
	if !ok {
		d = ageDefaults[domain.AgeEstablished]
	}
	d.BusinessHours = defaultBusinessHours
	d.RetryConfig = defaultRetryConfig
	d.AccountAge = age
	return d
}

// Merge implements the §9 deep-merge rule: "user value fully replaces
// default value at the leaf key; leaves not set by user fall through."
// It is NOT a shallow spread — every leaf field is considered
// independently, so a user who sets only ContactDelay.Min still gets
// ContactDelay.Max replaced too (Range has no sub-leaves finer than the
// whole range: a user supplying any part of a Range is considered to have
// set that Range, per S4's "contactDelay={min:30,max:40}" example, which
// replaces the whole range rather than merging Min and Max independently).
func Merge(defaults, user domain.Config) domain.Config {
	merged := defaults

	if !user.MessageDelay.IsZero() {
		merged.MessageDelay = user.MessageDelay
	}
	if !user.ContactDelay.IsZero() {
		merged.ContactDelay = user.ContactDelay
	}
	if !user.RestDelay.IsZero() {
		merged.RestDelay = user.RestDelay
	}
	if !user.RestThreshold.IsZero() {
		merged.RestThreshold = user.RestThreshold
	}
	if !user.DailyLimit.IsZero() {
		merged.DailyLimit = user.DailyLimit
	}

	merged.BusinessHours = mergeBusinessHours(merged.BusinessHours, user.BusinessHours)
	merged.RetryConfig = mergeRetryConfig(merged.RetryConfig, user.RetryConfig)

	if user.AccountAge != "" {
		merged.AccountAge = user.AccountAge
	}

	return merged
}

// mergeBusinessHours replaces the whole struct when the user enabled it
// (the only signal we have that the user touched this section at all,
// since a zero-value BusinessHours{} is indistinguishable from "omitted").
func mergeBusinessHours(def, user domain.BusinessHours) domain.BusinessHours {
	if user.Enabled {
		return user
	}
	return def
}

// mergeRetryConfig replaces the whole struct when MaxRetries is set
// (non-zero), the user-facing signal that this section was supplied.
func mergeRetryConfig(def, user domain.RetryConfig) domain.RetryConfig {
	if user.MaxRetries != 0 {
		return user
	}
	return def
}

// Resolve is the entry point CampaignRunner/control-plane use at campaign
// creation: compute the age-based defaults and deep-merge the user's
// config over them.
func Resolve(user domain.Config) domain.Config {
	return Merge(DefaultsFor(user.AccountAge), user)
}
