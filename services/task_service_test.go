package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"finite-life/finitelife/models"
	"finite-life/finitelife/testutils"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int {
	return &n
}

func TestCreateTask_Success(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "tasks@example.com")
	taskService := &TaskService{}

	task, err := taskService.CreateTask(db, user.ID, map[string]interface{}{
		"title":       "  Write the report  ",
		"description": "Quarterly numbers",
		"deadline":    "2030-01-10",
		"sort_order":  float64(3),
	})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, task.ID)
	assert.Equal(t, user.ID, task.UserID)
	assert.Equal(t, "Write the report", task.Title)
	assert.Equal(t, models.TaskPending, task.Status)
	assert.Equal(t, 0, task.MinusOneCount)
	require.NotNil(t, task.Deadline)
	assert.Equal(t, "2030-01-10", task.Deadline.String())
	require.NotNil(t, task.SortOrder)
	assert.Equal(t, 3, *task.SortOrder)

	stored, err := taskService.GetTaskById(db, user.ID, task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Write the report", stored.Title)
	require.NotNil(t, stored.Deadline)
	assert.Equal(t, "2030-01-10", stored.Deadline.String())

	assert.Equal(t, int64(1), testutils.CountEvents(t, db, "task.created"))
}

func TestCreateTask_Validation(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "validation@example.com")
	taskService := &TaskService{}

	cases := []struct {
		name  string
		data  map[string]interface{}
		field string
		rule  string
	}{
		{"missing title", map[string]interface{}{}, "title", "required"},
		{"blank title", map[string]interface{}{"title": "   "}, "title", "required"},
		{"long title", map[string]interface{}{"title": strings.Repeat("a", 201)}, "title", "max=200"},
		{"title not a string", map[string]interface{}{"title": 12.0}, "title", "string"},
		{"long description", map[string]interface{}{"title": "ok", "description": strings.Repeat("d", 1001)}, "description", "max=1000"},
		{"bad deadline", map[string]interface{}{"title": "ok", "deadline": "10/01/2030"}, "deadline", "date"},
		{"bad status", map[string]interface{}{"title": "ok", "status": "done"}, "status", "task_status"},
		{"bad parent", map[string]interface{}{"title": "ok", "parent_id": "nope"}, "parent_id", "uuid"},
		{"fractional sort order", map[string]interface{}{"title": "ok", "sort_order": 1.5}, "sort_order", "integer"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := taskService.CreateTask(db, user.ID, tc.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var validationErr *ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tc.field, validationErr.Field)
			assert.Equal(t, tc.rule, validationErr.Rule)
		})
	}

	var count int64
	require.NoError(t, db.DB.Model(&models.Task{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
	assert.Equal(t, int64(0), testutils.CountEvents(t, db, "task.created"))
}

func TestCreateTask_TitleAtLimit(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "limit@example.com")

	title := strings.Repeat("é", 200)
	task, err := (&TaskService{}).CreateTask(db, user.ID, map[string]interface{}{"title": title})
	require.NoError(t, err)
	assert.Equal(t, title, task.Title)
}

func TestCreateTask_Unauthenticated(t *testing.T) {
	db := testutils.SetupTestDB(t)

	_, err := (&TaskService{}).CreateTask(db, uuid.Nil, map[string]interface{}{"title": "x"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestCreateTask_WithParent(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "parent@example.com")
	taskService := &TaskService{}

	parent, err := taskService.CreateTask(db, user.ID, map[string]interface{}{"title": "Parent"})
	require.NoError(t, err)

	child, err := taskService.CreateTask(db, user.ID, map[string]interface{}{
		"title":     "Child",
		"parent_id": parent.ID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, child.ParentID)
	assert.Equal(t, parent.ID, *child.ParentID)
}

func TestCreateTask_ParentOfAnotherUser(t *testing.T) {
	db := testutils.SetupTestDB(t)
	owner := testutils.CreateTestUser(t, db, "owner@example.com")
	intruder := testutils.CreateTestUser(t, db, "intruder@example.com")
	taskService := &TaskService{}

	parent, err := taskService.CreateTask(db, owner.ID, map[string]interface{}{"title": "Private"})
	require.NoError(t, err)

	_, err = taskService.CreateTask(db, intruder.ID, map[string]interface{}{
		"title":     "Sneaky",
		"parent_id": parent.ID.String(),
	})
	assert.ErrorIs(t, err, ErrParentNotFound)
	assert.True(t, IsNotFound(err))

	_, err = taskService.CreateTask(db, owner.ID, map[string]interface{}{
		"title":     "Orphan",
		"parent_id": uuid.New().String(),
	})
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestGetTaskById_NotFound(t *testing.T) {
	db := testutils.SetupTestDB(t)
	owner := testutils.CreateTestUser(t, db, "a@example.com")
	other := testutils.CreateTestUser(t, db, "b@example.com")
	taskService := &TaskService{}

	task, err := taskService.CreateTask(db, owner.ID, map[string]interface{}{"title": "Mine"})
	require.NoError(t, err)

	_, err = taskService.GetTaskById(db, other.ID, task.ID.String())
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = taskService.GetTaskById(db, owner.ID, uuid.New().String())
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = taskService.GetTaskById(db, owner.ID, "not-a-uuid")
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestGetTaskById_BackendErrorPassesThrough(t *testing.T) {
	db, mock, close := testutils.SetupMockDB()
	defer close()

	mock.ExpectQuery(`SELECT (.+) FROM "tasks"`).
		WillReturnError(errors.New("connection reset by peer"))

	_, err := (&TaskService{}).GetTaskById(db, uuid.New(), uuid.New().String())
	require.Error(t, err)

	var backendErr *BackendError
	assert.True(t, errors.As(err, &backendErr))
	assert.Equal(t, "connection reset by peer", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTask_BeginFailure(t *testing.T) {
	db, mock, close := testutils.SetupMockDB()
	defer close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	_, err := (&TaskService{}).CreateTask(db, uuid.New(), map[string]interface{}{"title": "x"})
	require.Error(t, err)
	assert.Equal(t, "too many connections", err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateTask_ValidationSkipsStore(t *testing.T) {
	db, mock, close := testutils.SetupMockDB()
	defer close()

	_, err := (&TaskService{}).CreateTask(db, uuid.New(), map[string]interface{}{"title": ""})
	assert.ErrorIs(t, err, ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetTasks_Ordering(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "order@example.com")
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	seed := []models.Task{
		{UserID: user.ID, Title: "old unordered", CreatedAt: base},
		{UserID: user.ID, Title: "second", SortOrder: intPtr(2), CreatedAt: base.Add(time.Hour)},
		{UserID: user.ID, Title: "new unordered", CreatedAt: base.Add(2 * time.Hour)},
		{UserID: user.ID, Title: "first", SortOrder: intPtr(1), CreatedAt: base.Add(3 * time.Hour)},
	}
	for i := range seed {
		require.NoError(t, db.DB.Create(&seed[i]).Error)
	}

	tasks, err := (&TaskService{}).GetTasks(db, user.ID, nil)
	require.NoError(t, err)

	var titles []string
	for _, task := range tasks {
		titles = append(titles, task.Title)
	}
	assert.Equal(t, []string{"first", "second", "new unordered", "old unordered"}, titles)
}

func TestGetTasks_ScopedAndFiltered(t *testing.T) {
	db := testutils.SetupTestDB(t)
	alice := testutils.CreateTestUser(t, db, "alice@example.com")
	bob := testutils.CreateTestUser(t, db, "bob@example.com")
	taskService := &TaskService{}

	_, err := taskService.CreateTask(db, alice.ID, map[string]interface{}{"title": "A1"})
	require.NoError(t, err)
	_, err = taskService.CreateTask(db, alice.ID, map[string]interface{}{"title": "A2", "status": "completed"})
	require.NoError(t, err)
	_, err = taskService.CreateTask(db, bob.ID, map[string]interface{}{"title": "B1"})
	require.NoError(t, err)

	tasks, err := taskService.GetTasks(db, alice.ID, nil)
	require.NoError(t, err)
	assert.Len(t, tasks, 2)
	for _, task := range tasks {
		assert.Equal(t, alice.ID, task.UserID)
	}

	completed, err := taskService.GetTasks(db, alice.ID, map[string]interface{}{"status": "completed"})
	require.NoError(t, err)
	require.Len(t, completed, 1)
	assert.Equal(t, "A2", completed[0].Title)

	_, err = taskService.GetTasks(db, alice.ID, map[string]interface{}{"status": "bogus"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = taskService.GetTasks(db, uuid.Nil, nil)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestUpdateTask_Success(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "update@example.com")
	taskService := &TaskService{}

	task, err := taskService.CreateTask(db, user.ID, map[string]interface{}{
		"title":      "Old Title",
		"deadline":   "2031-03-03",
		"sort_order": float64(5),
	})
	require.NoError(t, err)

	updated, err := taskService.UpdateTask(db, user.ID, task.ID.String(), map[string]interface{}{
		"title":           " New Title ",
		"status":          "in_progress",
		"deadline":        nil,
		"sort_order":      nil,
		"minus_one_count": float64(99),
	})
	require.NoError(t, err)

	assert.Equal(t, "New Title", updated.Title)
	assert.Equal(t, models.TaskInProgress, updated.Status)
	assert.Nil(t, updated.Deadline)
	assert.Nil(t, updated.SortOrder)
	assert.Equal(t, 0, updated.MinusOneCount)
	assert.Equal(t, int64(1), testutils.CountEvents(t, db, "task.updated"))
}

func TestUpdateTask_SetsDeadline(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "deadline@example.com")
	taskService := &TaskService{}

	task, err := taskService.CreateTask(db, user.ID, map[string]interface{}{"title": "No deadline"})
	require.NoError(t, err)
	assert.Nil(t, task.Deadline)

	updated, err := taskService.UpdateTask(db, user.ID, task.ID.String(), map[string]interface{}{
		"deadline": "2032-12-31",
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Deadline)
	assert.Equal(t, "2032-12-31", updated.Deadline.String())
	assert.Equal(t, "No deadline", updated.Title)
}

func TestUpdateTask_Errors(t *testing.T) {
	db := testutils.SetupTestDB(t)
	owner := testutils.CreateTestUser(t, db, "owner2@example.com")
	other := testutils.CreateTestUser(t, db, "other2@example.com")
	taskService := &TaskService{}

	task, err := taskService.CreateTask(db, owner.ID, map[string]interface{}{"title": "Keep"})
	require.NoError(t, err)

	_, err = taskService.UpdateTask(db, owner.ID, task.ID.String(), map[string]interface{}{"title": ""})
	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))
	assert.Equal(t, "title", validationErr.Field)

	_, err = taskService.UpdateTask(db, owner.ID, task.ID.String(), map[string]interface{}{"status": "finished"})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = taskService.UpdateTask(db, other.ID, task.ID.String(), map[string]interface{}{"title": "Mine now"})
	assert.ErrorIs(t, err, ErrTaskNotFound)

	stored, err := taskService.GetTaskById(db, owner.ID, task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Keep", stored.Title)
	assert.Equal(t, int64(0), testutils.CountEvents(t, db, "task.updated"))
}

func TestDecrementDeadline(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "minus@example.com")
	taskService := &TaskService{}

	task, err := taskService.CreateTask(db, user.ID, map[string]interface{}{
		"title":    "Ship it",
		"deadline": "2030-06-15",
	})
	require.NoError(t, err)

	first, err := taskService.DecrementDeadline(db, user.ID, task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 1, first.MinusOneCount)

	second, err := taskService.DecrementDeadline(db, user.ID, task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, second.MinusOneCount)
	assert.Equal(t, "2030-06-15", second.Deadline.String())
	assert.Equal(t, "2030-06-13", second.EffectiveDeadline().String())

	stored, err := taskService.GetTaskById(db, user.ID, task.ID.String())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.MinusOneCount)
	assert.Equal(t, int64(2), testutils.CountEvents(t, db, "task.decremented"))
}

func TestDecrementDeadline_NotFound(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "missing@example.com")

	_, err := (&TaskService{}).DecrementDeadline(db, user.ID, uuid.New().String())
	assert.ErrorIs(t, err, ErrTaskNotFound)

	_, err = (&TaskService{}).DecrementDeadline(db, uuid.Nil, uuid.New().String())
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestDeleteTask_CascadesToDescendants(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "cascade@example.com")
	taskService := &TaskService{}

	root, err := taskService.CreateTask(db, user.ID, map[string]interface{}{"title": "Root"})
	require.NoError(t, err)
	child, err := taskService.CreateTask(db, user.ID, map[string]interface{}{"title": "Child", "parent_id": root.ID.String()})
	require.NoError(t, err)
	_, err = taskService.CreateTask(db, user.ID, map[string]interface{}{"title": "Grandchild", "parent_id": child.ID.String()})
	require.NoError(t, err)
	keep, err := taskService.CreateTask(db, user.ID, map[string]interface{}{"title": "Unrelated"})
	require.NoError(t, err)

	require.NoError(t, taskService.DeleteTask(db, user.ID, root.ID.String()))

	tasks, err := taskService.GetTasks(db, user.ID, nil)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, keep.ID, tasks[0].ID)
	assert.Equal(t, int64(1), testutils.CountEvents(t, db, "task.deleted"))
}

func TestDeleteTask_NotFound(t *testing.T) {
	db := testutils.SetupTestDB(t)
	owner := testutils.CreateTestUser(t, db, "del-owner@example.com")
	other := testutils.CreateTestUser(t, db, "del-other@example.com")
	taskService := &TaskService{}

	task, err := taskService.CreateTask(db, owner.ID, map[string]interface{}{"title": "Stay"})
	require.NoError(t, err)

	assert.ErrorIs(t, taskService.DeleteTask(db, other.ID, task.ID.String()), ErrTaskNotFound)
	assert.ErrorIs(t, taskService.DeleteTask(db, owner.ID, uuid.New().String()), ErrTaskNotFound)

	_, err = taskService.GetTaskById(db, owner.ID, task.ID.String())
	assert.NoError(t, err)
}

func TestGetTaskTree(t *testing.T) {
	db := testutils.SetupTestDB(t)
	user := testutils.CreateTestUser(t, db, "tree@example.com")
	taskService := &TaskService{}

	parent, err := taskService.CreateTask(db, user.ID, map[string]interface{}{
		"title":      "Parent",
		"deadline":   "2025-01-20",
		"sort_order": float64(1),
	})
	require.NoError(t, err)
	child, err := taskService.CreateTask(db, user.ID, map[string]interface{}{
		"title":      "Child",
		"parent_id":  parent.ID.String(),
		"deadline":   "2025-01-05",
		"sort_order": float64(2),
	})
	require.NoError(t, err)
	_, err = taskService.CreateTask(db, user.ID, map[string]interface{}{
		"title":      "Loose",
		"sort_order": float64(3),
	})
	require.NoError(t, err)

	_, err = taskService.DecrementDeadline(db, user.ID, parent.ID.String())
	require.NoError(t, err)

	now := time.Date(2025, 1, 10, 15, 30, 0, 0, time.UTC)
	roots, err := taskService.GetTaskTree(db, user.ID, now)
	require.NoError(t, err)
	require.Len(t, roots, 2)

	p := roots[0]
	assert.Equal(t, "Parent", p.Title)
	assert.Equal(t, 0, p.Depth)
	require.NotNil(t, p.EffectiveDeadline)
	assert.Equal(t, "2025-01-19", p.EffectiveDeadline.String())
	require.NotNil(t, p.DaysRemaining)
	assert.Equal(t, 9, *p.DaysRemaining)
	assert.Equal(t, 2, *p.WeeksRemaining)
	assert.Equal(t, "1 week", p.RelativeTime)

	require.Len(t, p.Children, 1)
	c := p.Children[0]
	assert.Equal(t, child.ID, c.ID)
	assert.Equal(t, 1, c.Depth)
	assert.Equal(t, -5, *c.DaysRemaining)
	assert.Equal(t, "5 days overdue", c.RelativeTime)

	loose := roots[1]
	assert.Equal(t, "Loose", loose.Title)
	assert.Nil(t, loose.EffectiveDeadline)
	assert.Nil(t, loose.DaysRemaining)
	assert.Equal(t, "", loose.RelativeTime)
	assert.NotNil(t, loose.Children)
	assert.Empty(t, loose.Children)
}
