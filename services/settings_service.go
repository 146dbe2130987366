package services

import (
	"errors"
	"math"
	"time"

	"finite-life/finitelife/broker"
	"finite-life/finitelife/database"
	"finite-life/finitelife/models"
	"finite-life/finitelife/utils/weeks"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingsServiceInterface interface {
	GetSettings(db *database.Database, userID uuid.UUID) (models.UserSettings, error)
	UpsertSettings(db *database.Database, userID uuid.UUID, data map[string]interface{}) (models.UserSettings, error)
	GetLifeSummary(db *database.Database, userID uuid.UUID, now time.Time) (LifeSummary, error)
	GetLifeGrid(db *database.Database, userID uuid.UUID, now time.Time) (LifeGrid, error)
}

// LifeSummary is what the home page shows above the grid
type LifeSummary struct {
	NeedsOnboarding     bool                 `json:"needs_onboarding"`
	Settings            *models.UserSettings `json:"settings"`
	LifeExpectancyWeeks int                  `json:"life_expectancy_weeks"`
	WeeksLived          int                  `json:"weeks_lived"`
	CurrentWeek         int                  `json:"current_week"`
	WeeksRemaining      int                  `json:"weeks_remaining"`
	YearsLived          int                  `json:"years_lived"`
	PercentComplete     float64              `json:"percent_complete"`
	Columns             int                  `json:"columns"`
	Rows                int                  `json:"rows"`
	TotalCells          int                  `json:"total_cells"`
}

// LifeCell is one week on the grid
type LifeCell struct {
	Week  int         `json:"week"`
	Row   int         `json:"row"`
	Col   int         `json:"col"`
	State weeks.State `json:"state"`
}

type LifeGrid struct {
	Columns     int        `json:"columns"`
	Rows        int        `json:"rows"`
	CurrentWeek int        `json:"current_week"`
	Cells       []LifeCell `json:"cells"`
}

type settingsInput struct {
	LifeExpectancyWeeks int    `json:"life_expectancy_weeks" validate:"min=1,max=6000"`
	Theme               string `json:"theme" validate:"oneof=light dark"`
}

type SettingsService struct {
	// Now overrides the clock used to check that birth dates are in the past
	Now func() time.Time
}

func (s *SettingsService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *SettingsService) GetSettings(db *database.Database, userID uuid.UUID) (models.UserSettings, error) {
	if userID == uuid.Nil {
		return models.UserSettings{}, ErrUnauthenticated
	}

	var settings models.UserSettings
	if err := db.DB.First(&settings, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.UserSettings{}, ErrSettingsNotFound
		}
		return models.UserSettings{}, backendError(err)
	}
	return settings, nil
}

// UpsertSettings writes the whole settings document for the user. A missing or zero
// life expectancy means the default 4000 weeks and a missing theme means light.
func (s *SettingsService) UpsertSettings(db *database.Database, userID uuid.UUID, data map[string]interface{}) (models.UserSettings, error) {
	if userID == uuid.Nil {
		return models.UserSettings{}, ErrUnauthenticated
	}

	settings, err := s.settingsFromInput(userID, data)
	if err != nil {
		return models.UserSettings{}, err
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return models.UserSettings{}, backendError(tx.Error)
	}

	upsert := clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"birth_date", "life_expectancy_weeks", "theme", "updated_at"}),
	}
	if err := tx.Clauses(upsert).Create(&settings).Error; err != nil {
		tx.Rollback()
		return models.UserSettings{}, backendError(err)
	}

	// The row may predate this call, so read back its real id and created_at
	var stored models.UserSettings
	if err := tx.First(&stored, "user_id = ?", userID).Error; err != nil {
		tx.Rollback()
		return models.UserSettings{}, backendError(err)
	}

	if err := recordEvent(tx, broker.SettingsUpdated, "settings", userID, stored); err != nil {
		tx.Rollback()
		return models.UserSettings{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.UserSettings{}, backendError(err)
	}

	return stored, nil
}

func (s *SettingsService) settingsFromInput(userID uuid.UUID, data map[string]interface{}) (models.UserSettings, error) {
	birthDate, _, err := dateInput(data, "birth_date")
	if err != nil {
		return models.UserSettings{}, err
	}
	if birthDate == nil {
		return models.UserSettings{}, &ValidationError{Field: "birth_date", Rule: "required"}
	}
	today := models.NewDate(s.now())
	if !birthDate.Before(today.Time) {
		return models.UserSettings{}, &ValidationError{Field: "birth_date", Rule: "past"}
	}

	lifeExpectancy, _, err := intInput(data, "life_expectancy_weeks")
	if err != nil {
		return models.UserSettings{}, err
	}
	theme, _, err := stringInput(data, "theme")
	if err != nil {
		return models.UserSettings{}, err
	}

	input := settingsInput{LifeExpectancyWeeks: weeks.DefaultLifeExpectancy, Theme: string(models.LightTheme)}
	if lifeExpectancy != nil && *lifeExpectancy != 0 {
		input.LifeExpectancyWeeks = *lifeExpectancy
	}
	if theme != "" {
		input.Theme = theme
	}
	if err := validateStruct(input); err != nil {
		return models.UserSettings{}, err
	}

	return models.UserSettings{
		UserID:              userID,
		BirthDate:           *birthDate,
		LifeExpectancyWeeks: input.LifeExpectancyWeeks,
		Theme:               models.Theme(input.Theme),
	}, nil
}

// GetLifeSummary reports the user's position in their life calendar. Users without
// settings get NeedsOnboarding and the default grid.
func (s *SettingsService) GetLifeSummary(db *database.Database, userID uuid.UUID, now time.Time) (LifeSummary, error) {
	settings, err := s.GetSettings(db, userID)
	if errors.Is(err, ErrSettingsNotFound) {
		columns, rows, cells := weeks.GridSize(weeks.DefaultLifeExpectancy)
		return LifeSummary{
			NeedsOnboarding:     true,
			LifeExpectancyWeeks: weeks.DefaultLifeExpectancy,
			Columns:             columns,
			Rows:                rows,
			TotalCells:          cells,
		}, nil
	}
	if err != nil {
		return LifeSummary{}, err
	}

	return summarize(settings, now), nil
}

func summarize(settings models.UserSettings, now time.Time) LifeSummary {
	lifeExpectancy := settings.LifeExpectancyWeeks
	birth := settings.BirthDate.In(now.Location())
	lived := weeks.WeeksLived(birth, now)
	columns, rows, cells := weeks.GridSize(lifeExpectancy)

	percent := float64(lived) / float64(lifeExpectancy) * 100
	return LifeSummary{
		Settings:            &settings,
		LifeExpectancyWeeks: lifeExpectancy,
		WeeksLived:          lived,
		CurrentWeek:         weeks.CurrentWeekNumber(birth, lifeExpectancy, now),
		WeeksRemaining:      max(lifeExpectancy-lived, 0),
		YearsLived:          lived / weeks.Columns,
		PercentComplete:     math.Round(percent*10) / 10,
		Columns:             columns,
		Rows:                rows,
		TotalCells:          cells,
	}
}

// GetLifeGrid lays out every week of the grid with its state
func (s *SettingsService) GetLifeGrid(db *database.Database, userID uuid.UUID, now time.Time) (LifeGrid, error) {
	settings, err := s.GetSettings(db, userID)
	if err != nil {
		return LifeGrid{}, err
	}
	return BuildLifeGrid(settings.BirthDate, settings.LifeExpectancyWeeks, now), nil
}

// BuildLifeGrid computes the grid without touching the store
func BuildLifeGrid(birthDate models.Date, lifeExpectancyWeeks int, now time.Time) LifeGrid {
	birth := birthDate.In(now.Location())
	current := weeks.CurrentWeekNumber(birth, lifeExpectancyWeeks, now)
	columns, rows, cells := weeks.GridSize(lifeExpectancyWeeks)

	grid := LifeGrid{
		Columns:     columns,
		Rows:        rows,
		CurrentWeek: current,
		Cells:       make([]LifeCell, cells),
	}
	for week := 1; week <= cells; week++ {
		pos := weeks.WeekPositionIn(week, columns)
		grid.Cells[week-1] = LifeCell{
			Week:  week,
			Row:   pos.Row,
			Col:   pos.Col,
			State: weeks.WeekState(week, current),
		}
	}
	return grid
}

var SettingsServiceInstance SettingsServiceInterface = &SettingsService{}
