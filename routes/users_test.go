package routes

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"finite-life/finitelife/database"
	"finite-life/finitelife/models"
	"finite-life/finitelife/services"
	"finite-life/finitelife/testutils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type MockUserService struct {
	err error
}

func (m *MockUserService) GetCurrentUser(db *database.Database, userID uuid.UUID) (models.User, error) {
	if m.err != nil {
		return models.User{}, m.err
	}
	return models.User{ID: userID, Email: "test@example.com"}, nil
}

func TestGetCurrentUser(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"found", nil, http.StatusOK, "test@example.com"},
		{"deleted user", services.ErrUserNotFound, http.StatusNotFound, "user not found"},
		{"store failure", &services.BackendError{Err: errors.New("database is locked")}, http.StatusInternalServerError, "database is locked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, group := testutils.AuthenticatedRouter(uuid.New())
			RegisterUserRoutes(group, &database.Database{}, &MockUserService{err: tt.err})

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/api/v1/user", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}
