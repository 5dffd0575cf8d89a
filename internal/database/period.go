package database

import "time"

const dateLayout = "2006-01-02"

// Today returns today's date as YYYY-MM-DD.
func Today() string {
	return time.Now().Format(dateLayout)
}

// SameUsagePeriod reports whether a stored period-start date falls in the
// same calendar month as now. Rollover is calendar-based, not a fixed
// 30-day window, so counters reset on the 1st regardless of first use.
func SameUsagePeriod(periodStart string, now time.Time) bool {
	start, err := time.Parse(dateLayout, periodStart)
	if err != nil {
		return false
	}
	return start.Year() == now.Year() && start.Month() == now.Month()
}

// PeriodStartFor returns the canonical period-start date for a point in time.
func PeriodStartFor(now time.Time) string {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).Format(dateLayout)
}
