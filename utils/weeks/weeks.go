// Package weeks converts a birth date into positions on the life calendar: the number
// of weeks lived, the current week and where each week sits on the grid.
package weeks

import "time"

const (
	// Columns is the number of weeks drawn per grid row (one row per year).
	Columns = 52
	// Rows is the default number of years drawn on the grid.
	Rows = 80
	// DefaultLifeExpectancy is the "4,000 weeks" the calendar is built around.
	DefaultLifeExpectancy = 4000
	// MaxLifeExpectancy is the largest life expectancy a user may configure.
	MaxLifeExpectancy = 6000

	daysPerWeek   = 7
	secondsPerDay = 24 * 60 * 60
)

// State classifies a week relative to the current week.
type State string

const (
	Past    State = "past"
	Current State = "current"
	Future  State = "future"
)

// Position is a zero-indexed cell on the grid.
type Position struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// Midnight drops the clock component of t, keeping its location.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the number of calendar days from `from` to `to`. Both dates are
// taken at midnight in their own location, so DST shifts never produce a partial day.
// Unix seconds are used instead of time.Duration, which saturates after ~292 years.
func DaysBetween(from, to time.Time) int {
	return int(dayNumber(to) - dayNumber(from))
}

// dayNumber is the count of days since 1970-01-01 for t's calendar date
func dayNumber(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

// WeeksLived returns the number of whole weeks between birthDate and now.
// A birth date after now yields a negative count; callers validate birth dates.
func WeeksLived(birthDate, now time.Time) int {
	return floorDiv(DaysBetween(birthDate, now), daysPerWeek)
}

// CurrentWeekNumber returns the 1-indexed week of life now falls in, capped at
// lifeExpectancyWeeks. Week 1 is the week of birth.
func CurrentWeekNumber(birthDate time.Time, lifeExpectancyWeeks int, now time.Time) int {
	return min(WeeksLived(birthDate, now)+1, lifeExpectancyWeeks)
}

// WeekPosition places a 1-indexed week on the standard 52 column grid.
func WeekPosition(weekNumber int) Position {
	return WeekPositionIn(weekNumber, Columns)
}

// WeekPositionIn places a 1-indexed week on a grid with the given number of columns.
func WeekPositionIn(weekNumber, columns int) Position {
	return Position{
		Row: (weekNumber - 1) / columns,
		Col: (weekNumber - 1) % columns,
	}
}

// WeekState reports whether weekNumber is before, at or after currentWeek.
func WeekState(weekNumber, currentWeek int) State {
	switch {
	case weekNumber < currentWeek:
		return Past
	case weekNumber == currentWeek:
		return Current
	default:
		return Future
	}
}

// GridSize returns the dimensions of the life grid. The grid is 52x80 unless the life
// expectancy needs more cells, in which case it grows by whole rows.
func GridSize(lifeExpectancyWeeks int) (columns, rows, cells int) {
	cells = Columns * Rows
	if lifeExpectancyWeeks > cells {
		cells = lifeExpectancyWeeks
	}
	rows = (cells + Columns - 1) / Columns
	return Columns, rows, cells
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}
