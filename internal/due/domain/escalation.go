package domain

import "time"

const MaxTier = 5

// DaysOverdue counts whole UTC calendar days from dueSince to now, floored
// at zero.
func DaysOverdue(dueSince, now time.Time) int {
	from := truncateDay(dueSince)
	to := truncateDay(now)
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

// TierFor maps days overdue to an escalation tier:
// 0 (<1), 1 (1-2), 2 (3-6), 3 (7-14), 4 (15-29), 5 (30+).
func TierFor(days int) int {
	switch {
	case days < 1:
		return 0
	case days <= 2:
		return 1
	case days <= 6:
		return 2
	case days <= 14:
		return 3
	case days <= 29:
		return 4
	default:
		return MaxTier
	}
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
