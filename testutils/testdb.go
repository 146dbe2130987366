package testutils

import (
	"fmt"
	"testing"
	"time"

	"finite-life/finitelife/database"
	"finite-life/finitelife/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a migrated in-memory SQLite database private to the test.
// Foreign keys are enforced and the pool holds a single connection, so queries
// issued inside a transaction must go through that transaction.
func SetupTestDB(t *testing.T) *database.Database {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.RunMigrations(gormDB))

	t.Cleanup(func() {
		sqlDB.Close()
	})

	return &database.Database{DB: gormDB}
}

// CreateTestUser inserts a confirmed user with the given email
func CreateTestUser(t *testing.T, db *database.Database, email string) models.User {
	t.Helper()

	now := time.Now()
	user := models.User{Email: email, EmailConfirmedAt: &now}
	require.NoError(t, db.DB.Create(&user).Error)
	return user
}

// CountEvents returns how many outbox rows carry the given event name
func CountEvents(t *testing.T, db *database.Database, event string) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.DB.Model(&models.Event{}).Where("event = ?", event).Count(&count).Error)
	return count
}
