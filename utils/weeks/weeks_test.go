package weeks

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeeksLived(t *testing.T) {
	birth := date(1990, time.January, 15)

	t.Run("Same day", func(t *testing.T) {
		is := is.New(t)
		is.Equal(WeeksLived(birth, birth), 0)
	})
	t.Run("Six days later", func(t *testing.T) {
		is := is.New(t)
		is.Equal(WeeksLived(birth, birth.AddDate(0, 0, 6)), 0)
	})
	t.Run("Exactly one week", func(t *testing.T) {
		is := is.New(t)
		is.Equal(WeeksLived(birth, birth.AddDate(0, 0, 7)), 1)
	})
	t.Run("Clock time is ignored", func(t *testing.T) {
		is := is.New(t)
		now := time.Date(1990, time.January, 21, 23, 59, 0, 0, time.UTC)
		is.Equal(WeeksLived(birth.Add(20*time.Hour), now), 0)
	})
	t.Run("Future birth date is negative", func(t *testing.T) {
		is := is.New(t)
		is.Equal(WeeksLived(birth, birth.AddDate(0, 0, -3)), -1)
	})
}

func TestWeeksLived_NonDecreasing(t *testing.T) {
	is := is.New(t)
	birth := date(2001, time.March, 3)
	prev := 0
	for day := 0; day < 3*365; day++ {
		got := WeeksLived(birth, birth.AddDate(0, 0, day))
		is.True(got >= 0)
		is.True(got >= prev)
		prev = got
	}
}

func TestWeeksLived_AcrossDST(t *testing.T) {
	is := is.New(t)
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	birth := time.Date(2024, time.March, 3, 0, 0, 0, 0, loc)
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, loc)
	is.Equal(WeeksLived(birth, now), 1)
}

func TestWeeksLived_DistantBirthDate(t *testing.T) {
	is := is.New(t)
	now := date(2026, time.October, 16)
	is.Equal(WeeksLived(date(1700, time.January, 1), now), 17051)
	is.Equal(DaysBetween(now, date(2400, time.October, 16)), 136601)
}

func TestCurrentWeekNumber(t *testing.T) {
	birth := date(2000, time.January, 1)

	t.Run("Week of birth is week one", func(t *testing.T) {
		is := is.New(t)
		is.Equal(CurrentWeekNumber(birth, 4000, birth.AddDate(0, 0, 3)), 1)
	})
	t.Run("Capped at life expectancy", func(t *testing.T) {
		is := is.New(t)
		is.Equal(CurrentWeekNumber(birth, 10, birth.AddDate(1, 0, 0)), 10)
	})
}

func TestWeekPosition(t *testing.T) {
	is := is.New(t)

	is.Equal(WeekPosition(1), Position{Row: 0, Col: 0})
	is.Equal(WeekPosition(52), Position{Row: 0, Col: 51})
	is.Equal(WeekPosition(53), Position{Row: 1, Col: 0})
	is.Equal(WeekPosition(4160), Position{Row: 79, Col: 51})

	for n := 1; n <= Columns*Rows; n++ {
		p := WeekPosition(n)
		is.True(p.Row >= 0 && p.Row <= 79)
		is.True(p.Col >= 0 && p.Col <= 51)
	}
}

func TestWeekPositionIn(t *testing.T) {
	is := is.New(t)
	is.Equal(WeekPositionIn(11, 10), Position{Row: 1, Col: 0})
}

func TestWeekState(t *testing.T) {
	is := is.New(t)

	is.Equal(WeekState(1, 5), Past)
	is.Equal(WeekState(5, 5), Current)
	is.Equal(WeekState(6, 5), Future)
	for c := 1; c < 100; c++ {
		is.Equal(WeekState(c, c), Current)
	}
}

func TestGridSize(t *testing.T) {
	t.Run("Default grid", func(t *testing.T) {
		is := is.New(t)
		cols, rows, cells := GridSize(DefaultLifeExpectancy)
		is.Equal(cols, 52)
		is.Equal(rows, 80)
		is.Equal(cells, 4160)
	})
	t.Run("Longer life grows the grid", func(t *testing.T) {
		is := is.New(t)
		cols, rows, cells := GridSize(MaxLifeExpectancy)
		is.Equal(cols, 52)
		is.Equal(rows, 116)
		is.Equal(cells, 6000)
	})
}
