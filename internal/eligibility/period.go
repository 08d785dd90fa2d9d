package eligibility

import (
	"time"

	schooldomain "github.com/smallbiznis/escolar/internal/school/domain"
)

// MonthKey is the billing ledger key for t in loc, formatted YYYY-MM.
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(orUTC(loc)).Format("2006-01")
}

// MonthBounds returns [start, next) of the calendar month containing t in loc.
func MonthBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(orUTC(loc))
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location())
	return start, start.AddDate(0, 1, 0)
}

// Day truncates t to midnight of its calendar day in loc.
func Day(t time.Time, loc *time.Location) time.Time {
	local := t.In(orUTC(loc))
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
}

// DaysInMonth returns the number of days in the month of t.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}

// InSegments reports whether day falls inside any segment, bounds inclusive.
// Segments with unparseable bounds are ignored.
func InSegments(segments []schooldomain.Segment, day time.Time, loc *time.Location) bool {
	day = Day(day, loc)
	for _, seg := range segments {
		start, okStart := schooldomain.ParseDay(seg.Start, loc)
		end, okEnd := schooldomain.ParseDay(seg.End, loc)
		if !okStart || !okEnd {
			continue
		}
		if !day.Before(start) && !day.After(end) {
			return true
		}
	}
	return false
}

// InTerm reports whether day is inside [term.Start, term.End]. A missing
// bound leaves that side open.
func InTerm(term schooldomain.Term, day time.Time, loc *time.Location) bool {
	day = Day(day, loc)
	if start, ok := schooldomain.ParseDay(term.Start, loc); ok && day.Before(start) {
		return false
	}
	if end, ok := schooldomain.ParseDay(term.End, loc); ok && day.After(end) {
		return false
	}
	return true
}

// FrequencyFires reports whether a payment period is due on day. billingDay
// pins monthly payments to one day of the month; zero means days 1-2.
// Unknown periods are billed monthly.
func FrequencyFires(period schooldomain.PaymentPeriod, day time.Time, billingDay int, loc *time.Location) bool {
	local := day.In(orUTC(loc))
	d := local.Day()

	switch period {
	case schooldomain.PaymentPeriodDaily:
		return true
	case schooldomain.PaymentPeriodWeekly:
		return local.Weekday() == time.Monday
	case schooldomain.PaymentPeriodBiweekly:
		return d == 1 || d == 2 || d == 15 || d == 16
	case schooldomain.PaymentPeriodAnnual:
		return local.Month() == time.January && d <= 2
	default:
		if billingDay > 0 {
			target := billingDay
			if last := DaysInMonth(local); target > last {
				target = last
			}
			return d == target
		}
		return d <= 2
	}
}

func orUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
