/*

This file contains the weekly expiry schedule. Positions mature Fridays at
08:00 UTC; a vault that missed more than one interval resyncs to the nearest
future expiry instead of walking forward week by week.

*/

package lifecycle

import "time"

// ExpiryInterval is the length of one round.
const ExpiryInterval = 7 * 24 * time.Hour

const expiryHourUTC = 8

// NextFridayExpiry returns the nearest Friday 08:00 UTC strictly after now.
func NextFridayExpiry(now time.Time) time.Time {
	now = now.UTC()
	daysAhead := (int(time.Friday) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), expiryHourUTC, 0, 0, 0, time.UTC).
		AddDate(0, 0, daysAhead)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// NextMaturity computes the maturity for the next position. With no current
// position, or after more than one missed interval, it resyncs to the nearest
// future weekly expiry; otherwise the schedule advances exactly one interval.
func NextMaturity(now, currentMaturity time.Time) time.Time {
	if currentMaturity.IsZero() {
		return NextFridayExpiry(now)
	}
	if now.Sub(currentMaturity) > ExpiryInterval {
		return NextFridayExpiry(now)
	}
	return currentMaturity.Add(ExpiryInterval)
}
