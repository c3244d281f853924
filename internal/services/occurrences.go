package services

import (
	"time"

	"budgetbuddy/internal/core"
)

// Occurrences produces the due dates of a rule within [windowStart,
// windowEnd], inclusive, in strictly increasing order. Generation begins at
// the later of windowStart and the rule's anchor, so a rule that has not run
// for a while back-fills every missed occurrence inside the window. A rule
// anchored past the window yields nothing.
func Occurrences(rule core.RecurringRule, windowStart, windowEnd time.Time) []time.Time {
	current := rule.NextRunDate
	if current.Before(windowStart) {
		current = windowStart
	}

	var dates []time.Time
	for !current.After(windowEnd) {
		dates = append(dates, current)
		current = rule.Frequency.Step(current)
	}
	return dates
}
