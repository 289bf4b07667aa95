package sticky

import "time"

// minDailyLead keeps a daily post from being scheduled for replacement
// minutes after its own creation when creation lands just before the
// configured post time.
const minDailyLead = 6 * time.Hour

// NextRefresh computes the instant at which a post created (or observed) at
// ref is next due for replacement. Pure, total, fixed to UTC.
//
// Daily: start-of-day of ref plus the configured offset; if that candidate
// is less than minDailyLead past ref, it moves to the next day.
//
// Weekly: start-of-day of the next occurrence of the target weekday strictly
// after ref's calendar day, plus the offset. If ref already falls on the
// target weekday the result is a full week out, never same-day.
func NextRefresh(ref time.Time, freq Frequency, at TimeOfDay) time.Time {
	ref = ref.UTC()
	offset := time.Duration(at.Hour)*time.Hour + time.Duration(at.Minute)*time.Minute

	if freq == FreqDaily {
		cand := startOfDay(ref).Add(offset)
		if cand.Sub(ref) < minDailyLead {
			cand = cand.AddDate(0, 0, 1)
		}
		return cand
	}

	days := (int(freq.Weekday()) - int(ref.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return startOfDay(ref).AddDate(0, 0, days).Add(offset)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
