package testutils

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"finite-life/finitelife/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
)

// MockEventRows builds outbox rows for sqlmock expectations
func MockEventRows(events []models.Event) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{
		"id", "event", "version", "entity", "user_id",
		"timestamp", "data", "status",
		"dispatched", "dispatched_at",
	})

	for _, event := range events {
		if event.ID == uuid.Nil {
			event.ID = uuid.New()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		if event.Data == nil {
			event.Data = json.RawMessage(`{}`)
		}
		if event.Status == "" {
			event.Status = "pending"
		}

		var dispatchedAt driver.Value
		if event.DispatchedAt != nil {
			dispatchedAt = *event.DispatchedAt
		}

		rows.AddRow(
			event.ID.String(),
			event.Event,
			event.Version,
			event.Entity,
			event.UserID.String(),
			event.Timestamp,
			[]byte(event.Data),
			event.Status,
			event.Dispatched,
			dispatchedAt,
		)
	}

	return rows
}

func NewResult(lastInsertID, rowsAffected int64) driver.Result {
	return sqlmock.NewResult(lastInsertID, rowsAffected)
}
