package scheduler

import (
	"time"

	"github.com/smallbiznis/escolar/internal/config"
)

// NextExecution is the first scheduled instant strictly after after. In test
// mode runs repeat every TestInterval; otherwise they fire monthly on the
// configured day, hour and minute in the billing time zone. Day 0 is read as
// the 1st and days past the end of a month fall on its last day.
func NextExecution(cfg config.BillingConfig, after time.Time) time.Time {
	if cfg.TestMode && cfg.TestInterval > 0 {
		return after.Add(cfg.TestInterval).UTC()
	}

	loc := cfg.Location()
	local := after.In(loc)
	for i := 0; i < 2; i++ {
		candidate := scheduledIn(cfg, local.Year(), local.Month()+time.Month(i), loc)
		if candidate.After(after) {
			return candidate.UTC()
		}
	}
	return scheduledIn(cfg, local.Year(), local.Month()+2, loc).UTC()
}

// BillingInstant is the scheduled run of a given month.
func BillingInstant(cfg config.BillingConfig, year int, month time.Month) time.Time {
	return scheduledIn(cfg, year, month, cfg.Location())
}

func scheduledIn(cfg config.BillingConfig, year int, month time.Month, loc *time.Location) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	last := first.AddDate(0, 1, -1).Day()

	day := cfg.Day
	if day <= 0 {
		day = 1
	}
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, cfg.Hour, cfg.Minute, 0, 0, loc)
}
