package runner

import (
	"time"

	"github.com/ignite/blastcampaign/internal/antidetect"
	"github.com/ignite/blastcampaign/internal/domain"
	"github.com/ignite/blastcampaign/internal/humansim"
)

// composeDelay implements §4.7 step 5: base contact-delay sampled from
// config range, scaled by the adaptive risk factor and the health
// throttle multiplier, with HumanSimulator's pre-send components added
// before AntiDetectionEngine jitters the total.
func (r *Runner) composeDelay(message string, cfg domain.Config, channelID string) time.Duration {
	base := cfg.ContactDelay.Min + r.rng.Float64()*(cfg.ContactDelay.Max-cfg.ContactDelay.Min)
	baseDur := time.Duration(base * float64(time.Second))

	adaptiveFactor := r.deps.Adaptive.Factor(r.campaign.CampaignID)
	healthFactor := r.deps.Health.DelayMultiplier(channelID)

	scaled := time.Duration(float64(baseDur) * adaptiveFactor * healthFactor)

	age := humansim.AccountAge(cfg.AccountAge)
	components := humansim.Delay(r.rng, r.forgot, r.deps.Clock.Now(), age, message)

	total := scaled + components.Total()

	// Fingerprint issuance is idempotent per campaign; HeadersFor reads it
	// back at send time (loop.go) to attach a consistent device signature.
	r.deps.AntiDetect.FingerprintFor(r.campaign.CampaignID, r.rng)

	return antidetect.Jitter(r.rng, total, 0.20)
}

// messageDelay draws the micro per-API-call delay (cfg.MessageDelay): a
// short pause immediately before the transport call, distinct from the
// much larger composeDelay pacing gap between recipients.
func (r *Runner) messageDelay(cfg domain.Config) time.Duration {
	d := cfg.MessageDelay.Min + r.rng.Float64()*(cfg.MessageDelay.Max-cfg.MessageDelay.Min)
	return time.Duration(d * float64(time.Second))
}
