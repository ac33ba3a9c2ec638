package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/apipulse/pkg/models"
	"github.com/ignatij/apipulse/pkg/storage"
	"github.com/pkg/errors"
)

const (
	MaxTaskNameLength = 100
	DefaultLogLimit   = 100
	MaxLogLimit       = 1000
)

// CreateTaskInput is the caller-supplied part of a new task.
type CreateTaskInput struct {
	TaskName         string `json:"task_name"`
	APIURL           string `json:"api_url"`
	Method           string `json:"method"`
	ScheduleInterval string `json:"schedule_interval"`
}

// TaskService implements the owner-scoped task operations. Every operation
// that targets a single task goes through authorize before touching the row.
type TaskService struct {
	store  storage.Store
	logger Logger
	now    func() time.Time
}

func NewTaskService(store storage.Store, logger Logger) *TaskService {
	return &TaskService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateTask validates the input and stores a new active task owned by userID.
func (ts *TaskService) CreateTask(ctx context.Context, userID string, in CreateTaskInput) (models.Task, error) {
	userID, err := canonicalUserID(userID)
	if err != nil {
		return models.Task{}, err
	}
	task, err := ts.newTask(userID, in)
	if err != nil {
		return models.Task{}, err
	}
	saved, err := ts.store.SaveTask(ctx, task)
	if err != nil {
		ts.logger.Errorf("Failed to save task for user %s: %v", userID, err)
		return models.Task{}, errors.Wrap(err, "failed to create task")
	}
	ts.logger.Infof("Created task '%s' with ID %s for user %s", saved.TaskName, saved.ID, userID)
	return saved, nil
}

func (ts *TaskService) newTask(userID string, in CreateTaskInput) (models.Task, error) {
	name := strings.TrimSpace(in.TaskName)
	if name == "" {
		return models.Task{}, invalid("task_name", "is required")
	}
	if len(name) > MaxTaskNameLength {
		return models.Task{}, invalid("task_name", "is too long (max %d characters)", MaxTaskNameLength)
	}

	apiURL := strings.TrimSpace(in.APIURL)
	u, err := url.Parse(apiURL)
	if apiURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return models.Task{}, invalid("api_url", "must be an absolute http or https URL")
	}

	method := models.HTTPMethod(strings.ToUpper(strings.TrimSpace(in.Method)))
	if !method.Valid() {
		return models.Task{}, invalid("method", "must be one of GET, POST")
	}

	interval, err := models.ParseScheduleInterval(strings.TrimSpace(in.ScheduleInterval))
	if err != nil {
		return models.Task{}, &ValidationError{Field: "schedule_interval", Message: err.Error()}
	}

	now := ts.now()
	return models.Task{
		ID:               uuid.NewString(),
		UserID:           userID,
		TaskName:         name,
		APIURL:           apiURL,
		Method:           method,
		ScheduleInterval: interval.String(),
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ListTasks returns every task owned by userID, newest first.
func (ts *TaskService) ListTasks(ctx context.Context, userID string) ([]models.Task, error) {
	userID, err := canonicalUserID(userID)
	if err != nil {
		return nil, err
	}
	tasks, err := ts.store.ListTasksByUser(ctx, userID)
	if err != nil {
		ts.logger.Errorf("Failed to list tasks for user %s: %v", userID, err)
		return nil, errors.Wrap(err, "failed to list tasks")
	}
	return tasks, nil
}

// SetTaskActive sets the task's active flag to an absolute value, so repeating
// the call is idempotent apart from updated_at.
func (ts *TaskService) SetTaskActive(ctx context.Context, userID, taskID string, active bool) (task models.Task, err error) {
	txStore, err := ts.store.Begin()
	if err != nil {
		ts.logger.Errorf("Failed to begin transaction for SetTaskActive: %v", err)
		return models.Task{}, errors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rollbackErr := txStore.Rollback(); rollbackErr != nil {
				ts.logger.Errorf("Failed to rollback: %v (original error: %v)", rollbackErr, err)
			}
			return
		}
		if commitErr := txStore.Commit(); commitErr != nil {
			ts.logger.Errorf("Failed to commit: %v", commitErr)
			task, err = models.Task{}, errors.Wrap(commitErr, "failed to commit")
		}
	}()

	owned, err := ts.authorize(ctx, txStore, userID, taskID)
	if err != nil {
		return models.Task{}, err
	}
	task, err = txStore.UpdateTaskActive(ctx, owned.ID, active, ts.now())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			ts.logger.Errorf("Failed to update task %s: %v", taskID, err)
			err = errors.Wrapf(err, "failed to update task %s", taskID)
		}
		return models.Task{}, err
	}
	ts.logger.Infof("Updated task %s to is_active=%t", taskID, active)
	return task, nil
}

// ListExecutionLogs returns the logs of a task owned by userID, most recent first.
// A non-positive limit selects DefaultLogLimit; larger limits are capped at MaxLogLimit.
func (ts *TaskService) ListExecutionLogs(ctx context.Context, userID, taskID string, limit int) ([]models.ExecutionLog, error) {
	owned, err := ts.authorize(ctx, ts.store, userID, taskID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultLogLimit
	}
	if limit > MaxLogLimit {
		limit = MaxLogLimit
	}
	logs, err := ts.store.ListExecutionLogs(ctx, owned.ID, limit)
	if err != nil {
		ts.logger.Errorf("Failed to list execution logs for task %s: %v", taskID, err)
		return nil, errors.Wrap(err, "failed to list execution logs")
	}
	return logs, nil
}

// authorize fetches the task and checks that userID owns it.
// The store has no row-level policy, so this is the only ownership check.
func (ts *TaskService) authorize(ctx context.Context, store storage.Store, userID, taskID string) (models.Task, error) {
	userID, err := canonicalUserID(userID)
	if err != nil {
		return models.Task{}, err
	}
	id, err := uuid.Parse(taskID)
	if err != nil {
		return models.Task{}, ErrNotFound
	}
	taskID = id.String()
	task, err := store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Task{}, ErrNotFound
		}
		ts.logger.Errorf("Failed to fetch task %s: %v", taskID, err)
		return models.Task{}, errors.Wrapf(err, "failed to fetch task %s", taskID)
	}
	if task.UserID != userID {
		ts.logger.Infof("User %s denied access to task %s", userID, taskID)
		return models.Task{}, ErrForbidden
	}
	return task, nil
}

// canonicalUserID returns userID in the lowercase hyphenated form the
// database stores, so ownership compares equal whatever form the caller used.
func canonicalUserID(userID string) (string, error) {
	if userID == "" {
		return "", ErrUnauthorized
	}
	id, err := uuid.Parse(userID)
	if err != nil {
		return "", ErrUnauthorized
	}
	return id.String(), nil
}
