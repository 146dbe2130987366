package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Theme is the UI colour scheme a user picked
type Theme string

const (
	LightTheme Theme = "light"
	DarkTheme  Theme = "dark"
)

// UserSettings holds the per-user life calendar configuration. There is at most one
// row per user.
type UserSettings struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"user_id"`
	User                *User     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	BirthDate           Date      `gorm:"type:date;not null" json:"birth_date"`
	LifeExpectancyWeeks int       `gorm:"not null;default:4000" json:"life_expectancy_weeks"`
	Theme               Theme     `gorm:"type:varchar(10);not null;default:'light'" json:"theme"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// BeforeCreate is a GORM hook that runs before creating a settings row
func (s *UserSettings) BeforeCreate(tx *gorm.DB) (err error) {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
