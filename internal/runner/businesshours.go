package runner

import (
	"time"

	"github.com/ignite/blastcampaign/internal/domain"
)

// inWindow reports whether now falls inside the configured business-hours
// window (§4.7 step 2): between startHour and endHour, excluding weekends
// and the lunch window when configured. now must already be in the
// config's timezone.
func inWindow(bh domain.BusinessHours, now time.Time) bool {
	if !bh.Enabled {
		return true
	}
	if bh.ExcludeWeekends {
		if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	hour := now.Hour()
	if hour < bh.StartHour || hour >= bh.EndHour {
		return false
	}
	if bh.ExcludeLunch && hour >= bh.LunchStart && hour < bh.LunchEnd {
		return false
	}
	return true
}

// localTime converts now into the config's timezone, falling back to
// now's own location if the timezone is unset or unrecognized.
func localTime(bh domain.BusinessHours, now time.Time) time.Time {
	if bh.Timezone == "" {
		return now
	}
	loc, err := time.LoadLocation(bh.Timezone)
	if err != nil {
		return now
	}
	return now.In(loc)
}

// nextWindowEntry returns the next time at or after localNow that
// inWindow would report true, used to set resumeAt when the
// business-hours gate pauses a campaign. localNow must already be in the
// config's timezone (see localTime).
func nextWindowEntry(bh domain.BusinessHours, localNow time.Time) time.Time {
	candidate := localNow
	for i := 0; i < 24*8; i++ { // bound the scan to 8 days
		if inWindow(bh, candidate) {
			return candidate
		}
		candidate = nextHourBoundary(candidate)
	}
	return localNow.Add(24 * time.Hour)
}

func nextHourBoundary(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location()).Add(time.Hour)
}
