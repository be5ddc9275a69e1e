package progression

import "time"

// dateOf truncates a timestamp to its UTC calendar day.
func dateOf(at time.Time) time.Time {
	at = at.UTC()
	return time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole UTC calendar days from earlier to later.
func daysBetween(earlier, later time.Time) int {
	return int(dateOf(later).Sub(dateOf(earlier)).Hours() / 24)
}

// advanceStreak applies the streak law for a purchase at the given time.
// Same-day purchases leave the streak untouched, the next day extends it,
// any gap resets it to 1. A user with no purchase history starts at 1.
func advanceStreak(current, longest int, lastPurchase *time.Time, at time.Time) (int, int) {
	next := current
	switch {
	case lastPurchase == nil:
		next = 1
	default:
		switch d := daysBetween(*lastPurchase, at); {
		case d == 0:
			// unchanged
		case d == 1:
			next = current + 1
		default:
			next = 1
		}
	}
	if next > longest {
		longest = next
	}
	return next, longest
}
