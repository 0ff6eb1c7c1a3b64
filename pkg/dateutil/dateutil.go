package dateutil

import "time"

// Truncate drops the time-of-day component, leaving midnight UTC.
func Truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AddMonths advances a date by whole calendar months, clamping to the last
// day of the target month instead of rolling over: Jan 31 + 1 month is
// Feb 28 (or Feb 29 in a leap year), not Mar 3.
func AddMonths(t time.Time, months int) time.Time {
	t = Truncate(t)
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

// DaysLate counts whole calendar days between a due date and an evaluation
// instant, never negative. Same-day is zero: an installment is not late on
// its due date.
func DaysLate(due, asOf time.Time) int {
	days := int(Truncate(asOf).Sub(Truncate(due)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}
