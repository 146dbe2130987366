package services

import (
	"errors"
	"time"

	"finite-life/finitelife/broker"
	"finite-life/finitelife/database"
	"finite-life/finitelife/models"
	"finite-life/finitelife/utils/deadline"
	"finite-life/finitelife/utils/tasktree"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TaskServiceInterface interface {
	CreateTask(db *database.Database, userID uuid.UUID, taskData map[string]interface{}) (models.Task, error)
	GetTaskById(db *database.Database, userID uuid.UUID, id string) (models.Task, error)
	GetTasks(db *database.Database, userID uuid.UUID, params map[string]interface{}) ([]models.Task, error)
	GetTaskTree(db *database.Database, userID uuid.UUID, now time.Time) ([]*TaskNode, error)
	UpdateTask(db *database.Database, userID uuid.UUID, id string, updates map[string]interface{}) (models.Task, error)
	DecrementDeadline(db *database.Database, userID uuid.UUID, id string) (models.Task, error)
	DeleteTask(db *database.Database, userID uuid.UUID, id string) error
}

// TaskNode is a task in the tree view with its deadline figures worked out
type TaskNode struct {
	models.Task
	EffectiveDeadline *models.Date `json:"effective_deadline"`
	DaysRemaining     *int         `json:"days_remaining"`
	WeeksRemaining    *int         `json:"weeks_remaining"`
	RelativeTime      string       `json:"relative_time,omitempty"`
	Depth             int          `json:"depth"`
	Children          []*TaskNode  `json:"children"`
}

type createTaskInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=1000"`
	Status      string `json:"status" validate:"omitempty,task_status"`
}

type updateTaskInput struct {
	Title       *string `json:"title" validate:"omitnil,min=1,max=200"`
	Description *string `json:"description" validate:"omitnil,max=1000"`
	Status      *string `json:"status" validate:"omitnil,task_status"`
}

type TaskService struct{}

func (s *TaskService) CreateTask(db *database.Database, userID uuid.UUID, taskData map[string]interface{}) (models.Task, error) {
	if userID == uuid.Nil {
		return models.Task{}, ErrUnauthenticated
	}

	task, err := taskFromInput(userID, taskData)
	if err != nil {
		return models.Task{}, err
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return models.Task{}, backendError(tx.Error)
	}

	if task.ParentID != nil {
		var parentCount int64
		if err := tx.Model(&models.Task{}).
			Where("id = ? AND user_id = ?", *task.ParentID, userID).
			Count(&parentCount).Error; err != nil {
			tx.Rollback()
			return models.Task{}, backendError(err)
		}
		if parentCount == 0 {
			tx.Rollback()
			return models.Task{}, ErrParentNotFound
		}
	}

	if err := tx.Create(&task).Error; err != nil {
		tx.Rollback()
		return models.Task{}, backendError(err)
	}

	if err := recordEvent(tx, broker.TaskCreated, "task", userID, task); err != nil {
		tx.Rollback()
		return models.Task{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.Task{}, backendError(err)
	}

	return task, nil
}

func taskFromInput(userID uuid.UUID, taskData map[string]interface{}) (models.Task, error) {
	title, _, err := trimmedStringInput(taskData, "title")
	if err != nil {
		return models.Task{}, err
	}
	description, _, err := stringInput(taskData, "description")
	if err != nil {
		return models.Task{}, err
	}
	status, _, err := stringInput(taskData, "status")
	if err != nil {
		return models.Task{}, err
	}

	input := createTaskInput{Title: title, Description: description, Status: status}
	if err := validateStruct(input); err != nil {
		return models.Task{}, err
	}

	taskDeadline, _, err := dateInput(taskData, "deadline")
	if err != nil {
		return models.Task{}, err
	}
	parentID, _, err := uuidInput(taskData, "parent_id")
	if err != nil {
		return models.Task{}, err
	}
	sortOrder, _, err := intInput(taskData, "sort_order")
	if err != nil {
		return models.Task{}, err
	}

	task := models.Task{
		UserID:      userID,
		ParentID:    parentID,
		Title:       input.Title,
		Description: input.Description,
		Deadline:    taskDeadline,
		Status:      models.TaskStatus(input.Status),
		SortOrder:   sortOrder,
	}
	return task, nil
}

func (s *TaskService) GetTaskById(db *database.Database, userID uuid.UUID, id string) (models.Task, error) {
	if userID == uuid.Nil {
		return models.Task{}, ErrUnauthenticated
	}
	taskID, err := uuid.Parse(id)
	if err != nil {
		return models.Task{}, ErrTaskNotFound
	}

	var task models.Task
	if err := db.DB.First(&task, "id = ? AND user_id = ?", taskID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, backendError(err)
	}
	return task, nil
}

// GetTasks lists the user's tasks, manually ordered ones first, then newest first.
// The optional "status" param filters by status.
func (s *TaskService) GetTasks(db *database.Database, userID uuid.UUID, params map[string]interface{}) ([]models.Task, error) {
	if userID == uuid.Nil {
		return nil, ErrUnauthenticated
	}

	query := db.DB.Where("user_id = ?", userID)

	if status, ok := params["status"].(string); ok && status != "" {
		if !models.IsValidTaskStatus(status) {
			return nil, &ValidationError{Field: "status", Rule: "task_status"}
		}
		query = query.Where("status = ?", status)
	}

	var tasks []models.Task
	result := query.
		Order("CASE WHEN sort_order IS NULL THEN 1 ELSE 0 END").
		Order("sort_order ASC").
		Order("created_at DESC").
		Find(&tasks)
	if result.Error != nil {
		return nil, backendError(result.Error)
	}
	return tasks, nil
}

// GetTaskTree returns the user's tasks as a forest, siblings in list order
func (s *TaskService) GetTaskTree(db *database.Database, userID uuid.UUID, now time.Time) ([]*TaskNode, error) {
	tasks, err := s.GetTasks(db, userID, nil)
	if err != nil {
		return nil, err
	}

	forest := tasktree.Build(tasks)

	nodes := make([]*TaskNode, forest.Len())
	for i := range forest.Nodes {
		nodes[i] = newTaskNode(forest.Nodes[i].Task, now)
	}
	for i := range forest.Nodes {
		for _, child := range forest.Nodes[i].Children {
			nodes[i].Children = append(nodes[i].Children, nodes[child])
		}
	}

	forest.Walk(func(node *tasktree.Node, depth int) bool {
		if i, ok := forest.Lookup(node.Task.ID); ok {
			nodes[i].Depth = depth
		}
		return true
	})

	roots := make([]*TaskNode, 0, len(forest.Roots))
	for _, r := range forest.Roots {
		roots = append(roots, nodes[r])
	}
	return roots, nil
}

func newTaskNode(task models.Task, now time.Time) *TaskNode {
	node := &TaskNode{Task: task, Children: []*TaskNode{}}
	effective := task.EffectiveDeadline()
	if effective == nil {
		return node
	}
	days := deadline.DaysRemaining(effective.Time, now)
	weeksLeft := deadline.WeeksRemaining(effective.Time, now)
	node.EffectiveDeadline = effective
	node.DaysRemaining = &days
	node.WeeksRemaining = &weeksLeft
	node.RelativeTime = deadline.FormatRelativeTime(days)
	return node
}

// UpdateTask applies any subset of title, description, deadline, status and
// sort_order. A null deadline or sort_order clears it. Other keys are ignored.
func (s *TaskService) UpdateTask(db *database.Database, userID uuid.UUID, id string, updates map[string]interface{}) (models.Task, error) {
	if userID == uuid.Nil {
		return models.Task{}, ErrUnauthenticated
	}
	taskID, err := uuid.Parse(id)
	if err != nil {
		return models.Task{}, ErrTaskNotFound
	}

	changes, err := taskChanges(updates)
	if err != nil {
		return models.Task{}, err
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return models.Task{}, backendError(tx.Error)
	}

	var task models.Task
	if err := tx.First(&task, "id = ? AND user_id = ?", taskID, userID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, backendError(err)
	}

	if len(changes) == 0 {
		tx.Rollback()
		return task, nil
	}

	if err := tx.Model(&task).Updates(changes).Error; err != nil {
		tx.Rollback()
		return models.Task{}, backendError(err)
	}

	// Reload so cleared columns come back as nil
	if err := tx.First(&task, "id = ?", taskID).Error; err != nil {
		tx.Rollback()
		return models.Task{}, backendError(err)
	}

	if err := recordEvent(tx, broker.TaskUpdated, "task", userID, task); err != nil {
		tx.Rollback()
		return models.Task{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.Task{}, backendError(err)
	}

	return task, nil
}

func taskChanges(updates map[string]interface{}) (map[string]interface{}, error) {
	var input updateTaskInput
	changes := make(map[string]interface{})

	title, present, err := trimmedStringInput(updates, "title")
	if err != nil {
		return nil, err
	}
	if present {
		input.Title = &title
		changes["title"] = title
	}

	description, present, err := stringInput(updates, "description")
	if err != nil {
		return nil, err
	}
	if present {
		input.Description = &description
		changes["description"] = description
	}

	status, present, err := stringInput(updates, "status")
	if err != nil {
		return nil, err
	}
	if present {
		input.Status = &status
		changes["status"] = status
	}

	if err := validateStruct(input); err != nil {
		return nil, err
	}

	taskDeadline, present, err := dateInput(updates, "deadline")
	if err != nil {
		return nil, err
	}
	if present {
		if taskDeadline == nil {
			changes["deadline"] = nil
		} else {
			changes["deadline"] = *taskDeadline
		}
	}

	sortOrder, present, err := intInput(updates, "sort_order")
	if err != nil {
		return nil, err
	}
	if present {
		if sortOrder == nil {
			changes["sort_order"] = nil
		} else {
			changes["sort_order"] = *sortOrder
		}
	}

	return changes, nil
}

// DecrementDeadline shortens the task's deadline by one more day. The stored
// deadline is untouched; only minus_one_count grows.
func (s *TaskService) DecrementDeadline(db *database.Database, userID uuid.UUID, id string) (models.Task, error) {
	if userID == uuid.Nil {
		return models.Task{}, ErrUnauthenticated
	}
	taskID, err := uuid.Parse(id)
	if err != nil {
		return models.Task{}, ErrTaskNotFound
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return models.Task{}, backendError(tx.Error)
	}

	var task models.Task
	if err := tx.First(&task, "id = ? AND user_id = ?", taskID, userID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Task{}, ErrTaskNotFound
		}
		return models.Task{}, backendError(err)
	}

	task.MinusOneCount++
	if err := tx.Model(&task).Update("minus_one_count", task.MinusOneCount).Error; err != nil {
		tx.Rollback()
		return models.Task{}, backendError(err)
	}

	payload := map[string]interface{}{
		"id":                 task.ID,
		"minus_one_count":    task.MinusOneCount,
		"effective_deadline": task.EffectiveDeadline(),
	}
	if err := recordEvent(tx, broker.TaskDecremented, "task", userID, payload); err != nil {
		tx.Rollback()
		return models.Task{}, err
	}

	if err := tx.Commit().Error; err != nil {
		return models.Task{}, backendError(err)
	}

	return task, nil
}

// DeleteTask removes the task. Subtasks go with it through the foreign key.
func (s *TaskService) DeleteTask(db *database.Database, userID uuid.UUID, id string) error {
	if userID == uuid.Nil {
		return ErrUnauthenticated
	}
	taskID, err := uuid.Parse(id)
	if err != nil {
		return ErrTaskNotFound
	}

	tx := db.DB.Begin()
	if tx.Error != nil {
		return backendError(tx.Error)
	}

	result := tx.Where("id = ? AND user_id = ?", taskID, userID).Delete(&models.Task{})
	if result.Error != nil {
		tx.Rollback()
		return backendError(result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return ErrTaskNotFound
	}

	payload := map[string]interface{}{"id": taskID}
	if err := recordEvent(tx, broker.TaskDeleted, "task", userID, payload); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return backendError(err)
	}

	return nil
}

// recordEvent writes an outbox row inside tx
func recordEvent(tx *gorm.DB, eventType broker.EventType, entity string, userID uuid.UUID, data interface{}) error {
	event, err := models.NewEvent(string(eventType), entity, userID, data)
	if err != nil {
		return err
	}
	if err := tx.Create(event).Error; err != nil {
		return backendError(err)
	}
	return nil
}

var TaskServiceInstance TaskServiceInterface = &TaskService{}
