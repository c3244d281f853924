package core

import (
	"fmt"
	"time"
)

const (
	Daily    Frequency = "daily"
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Yearly   Frequency = "yearly"
)

// Frequency is the cadence of a recurring rule.
type Frequency string

// ErrUnknownFrequency wraps parse failures for frequency values read back
// from storage.
var ErrUnknownFrequency = fmt.Errorf("unknown frequency")

// ParseFrequency validates a stored frequency string.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(s)
	if err := f.Validate(); err != nil {
		return "", err
	}
	return f, nil
}

func (f Frequency) Validate() error {
	switch f {
	case Daily, Weekly, Biweekly, Monthly, Yearly:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFrequency, string(f))
	}
}

func (f Frequency) String() string { return string(f) }

// Step returns the next occurrence date after t for this frequency. The
// result is always strictly later than t. Month and year steps clamp the
// day-of-month when the target month is shorter (Jan 31 steps to Feb 28/29,
// never into March; Feb 29 steps to Feb 28 on non-leap years).
func (f Frequency) Step(t time.Time) time.Time {
	switch f {
	case Daily:
		return t.AddDate(0, 0, 1)
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Biweekly:
		return t.AddDate(0, 0, 14)
	case Monthly:
		return addMonthsClamped(t, 1)
	case Yearly:
		return addYearsClamped(t, 1)
	default:
		// Unknown values are rejected by Validate before stepping; falling
		// back to daily keeps Step total.
		return t.AddDate(0, 0, 1)
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	// Normalize via the zeroth day trick: day 0 of month n+1 is the last
	// day of month n.
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	last := firstOfNextMonth(first).AddDate(0, 0, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func addYearsClamped(t time.Time, years int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y+years, m, 1, 0, 0, 0, 0, t.Location())
	last := firstOfNextMonth(first).AddDate(0, 0, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func firstOfNextMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, t.Location())
}

// MonthWindow returns the inclusive [start, end] day range of the calendar
// month containing asOf, in UTC. A zero asOf yields an error: the window
// bounds cannot be computed and the caller must abort its pass.
func MonthWindow(asOf time.Time) (start, end time.Time, err error) {
	if asOf.IsZero() {
		return time.Time{}, time.Time{}, ErrZeroDate
	}
	y, m, _ := asOf.UTC().Date()
	start = time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0).AddDate(0, 0, -1)
	return start, end, nil
}
