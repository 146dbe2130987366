package models

import (
	"time"

	"finite-life/finitelife/utils/deadline"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus is the lifecycle state of a task
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskArchived   TaskStatus = "archived"
)

// TaskStatuses lists every valid status
var TaskStatuses = []TaskStatus{TaskPending, TaskInProgress, TaskCompleted, TaskArchived}

// Task is a unit of work owned by one user. Subtasks reference their parent through
// ParentID; deleting a parent removes its descendants through the foreign key.
type Task struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User          *User      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	ParentID      *uuid.UUID `gorm:"type:uuid;index" json:"parent_id"`
	Parent        *Task      `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Title         string     `gorm:"size:200;not null" json:"title"`
	Description   string     `gorm:"size:1000" json:"description"`
	Deadline      *Date      `gorm:"type:date" json:"deadline"`
	Status        TaskStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	MinusOneCount int        `gorm:"not null;default:0" json:"minus_one_count"`
	SortOrder     *int       `json:"sort_order"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BeforeCreate is a GORM hook that assigns an ID and the default status
func (t *Task) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	return nil
}

// EffectiveDeadline is the deadline shortened by MinusOneCount days, or nil when the
// task has no deadline.
func (t Task) EffectiveDeadline() *Date {
	if t.Deadline == nil {
		return nil
	}
	adjusted := NewDate(deadline.Adjusted(t.Deadline.Time, t.MinusOneCount))
	return &adjusted
}

// IsValidTaskStatus reports whether s names a known status
func IsValidTaskStatus(s string) bool {
	for _, status := range TaskStatuses {
		if string(status) == s {
			return true
		}
	}
	return false
}
