package period

import "time"

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AnchorDate is the billing date of a period for a subscriber anchored on
// anchorDay, clamped to the last day of shorter months.
func AnchorDate(p Period, anchorDay int) time.Time {
	day := clampDay(p.Year, p.Month, anchorDay)
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// AddMonthClamped moves t one calendar month forward and lands on anchorDay,
// or on the month's last day when anchorDay does not exist in it.
// 2025-01-31 with anchor 31 gives 2025-02-28, then 2025-03-31.
func AddMonthClamped(t time.Time, anchorDay int) time.Time {
	t = t.UTC()
	next := Of(t).Next()
	day := clampDay(next.Year, next.Month, anchorDay)
	return time.Date(next.Year, next.Month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func clampDay(year int, month time.Month, anchorDay int) int {
	if anchorDay < 1 {
		anchorDay = 1
	}
	if last := DaysIn(year, month); anchorDay > last {
		return last
	}
	return anchorDay
}
