// Package deadline derives the effective deadline of a task from its original deadline
// and the number of times it was shortened, and describes the time left until it.
package deadline

import (
	"fmt"
	"time"

	"finite-life/finitelife/utils/weeks"
)

// Adjusted moves original back by minusOneDays days. The result is not clamped to
// today so overdue tasks stay computable.
func Adjusted(original time.Time, minusOneDays int) time.Time {
	return original.AddDate(0, 0, -minusOneDays)
}

// DaysRemaining counts calendar days from now until deadline. Zero means due today,
// negative values mean overdue.
func DaysRemaining(deadline, now time.Time) int {
	return weeks.DaysBetween(now, deadline)
}

// WeeksRemaining rounds DaysRemaining up to whole weeks.
func WeeksRemaining(deadline, now time.Time) int {
	return ceilDiv(DaysRemaining(deadline, now), 7)
}

// FormatRelativeTime renders a days-remaining count for display.
func FormatRelativeTime(daysRemaining int) string {
	if daysRemaining < 0 {
		overdue := -daysRemaining
		if overdue >= 7 {
			return fmt.Sprintf("%d weeks overdue", overdue/7)
		}
		return fmt.Sprintf("%d days overdue", overdue)
	}

	switch {
	case daysRemaining == 0:
		return "Today"
	case daysRemaining == 1:
		return "Tomorrow"
	case daysRemaining < 7:
		return fmt.Sprintf("%d days", daysRemaining)
	case daysRemaining < 14:
		return "1 week"
	}
	return fmt.Sprintf("%d weeks", daysRemaining/7)
}

func ceilDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) == (b < 0) {
		q++
	}
	return q
}
