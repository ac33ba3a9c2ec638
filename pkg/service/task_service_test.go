package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/apipulse/pkg/models"
	"github.com/ignatij/apipulse/pkg/service"
	"github.com/ignatij/apipulse/pkg/storage"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logger struct{}

func (l logger) Infof(format string, args ...interface{}) {
	// no-op
}

func (l logger) Errorf(format string, args ...interface{}) {
	// no-op
}

// failingStore fails every read and write with errBoom.
type failingStore struct {
	storage.Store
}

var errBoom = errors.New("boom")

func (f failingStore) Begin() (storage.Store, error) { return f, nil }
func (f failingStore) Commit() error                 { return nil }
func (f failingStore) Rollback() error               { return nil }
func (f failingStore) SaveTask(context.Context, models.Task) (models.Task, error) {
	return models.Task{}, errBoom
}
func (f failingStore) GetTask(context.Context, string) (models.Task, error) {
	return models.Task{}, errBoom
}
func (f failingStore) ListTasksByUser(context.Context, string) ([]models.Task, error) {
	return nil, errBoom
}

// clock hands out strictly increasing timestamps.
type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

var (
	userA = uuid.NewString()
	userB = uuid.NewString()
)

func validInput() service.CreateTaskInput {
	return service.CreateTaskInput{
		TaskName:         "ping",
		APIURL:           "https://x.test/h",
		Method:           "GET",
		ScheduleInterval: "5m",
	}
}

func TestTaskService(t *testing.T) {
	ctx := context.Background()

	newTaskService := func() (*service.TaskService, storage.Store) {
		store := storage.NewMockStore()
		svc := service.NewTaskService(store, logger{})
		c := &clock{cur: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		svc.SetNow(c.Now)
		return svc, store
	}

	t.Run("CreateTask", func(t *testing.T) {
		svc, _ := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)
		assert.NotEmpty(t, task.ID)
		assert.Equal(t, userA, task.UserID)
		assert.Equal(t, "ping", task.TaskName)
		assert.Equal(t, "https://x.test/h", task.APIURL)
		assert.Equal(t, models.GetHTTPMethod, task.Method)
		assert.Equal(t, "5m", task.ScheduleInterval)
		assert.True(t, task.IsActive)
		assert.Equal(t, task.CreatedAt, task.UpdatedAt)
	})

	t.Run("CreateTaskNormalizesInput", func(t *testing.T) {
		svc, _ := newTaskService()
		task, err := svc.CreateTask(ctx, userA, service.CreateTaskInput{
			TaskName:         "  trimmed  ",
			APIURL:           " http://x.test/h ",
			Method:           "post",
			ScheduleInterval: "1d",
		})
		require.NoError(t, err)
		assert.Equal(t, "trimmed", task.TaskName)
		assert.Equal(t, "http://x.test/h", task.APIURL)
		assert.Equal(t, models.PostHTTPMethod, task.Method)
	})

	t.Run("CreateTaskValidation", func(t *testing.T) {
		svc, store := newTaskService()
		long := make([]byte, service.MaxTaskNameLength+1)
		for i := range long {
			long[i] = 'a'
		}
		cases := map[string]func(in *service.CreateTaskInput){
			"task_name":          func(in *service.CreateTaskInput) { in.TaskName = "   " },
			"task_name too long": func(in *service.CreateTaskInput) { in.TaskName = string(long) },
			"api_url":            func(in *service.CreateTaskInput) { in.APIURL = "not a url" },
			"api_url scheme":     func(in *service.CreateTaskInput) { in.APIURL = "ftp://x.test/h" },
			"api_url relative":   func(in *service.CreateTaskInput) { in.APIURL = "/relative" },
			"method":             func(in *service.CreateTaskInput) { in.Method = "DELETE" },
			"interval unit":      func(in *service.CreateTaskInput) { in.ScheduleInterval = "5s" },
			"interval zero":      func(in *service.CreateTaskInput) { in.ScheduleInterval = "0m" },
			"interval empty":     func(in *service.CreateTaskInput) { in.ScheduleInterval = "" },
		}
		for name, mutate := range cases {
			in := validInput()
			mutate(&in)
			_, err := svc.CreateTask(ctx, userA, in)
			assert.Error(t, err, name)
			assert.True(t, service.IsValidation(err), name)
		}
		tasks, err := store.ListTasksByUser(ctx, userA)
		require.NoError(t, err)
		assert.Empty(t, tasks)
	})

	t.Run("CreateTaskWithoutUser", func(t *testing.T) {
		svc, _ := newTaskService()
		_, err := svc.CreateTask(ctx, "", validInput())
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("ListTasksOnlyReturnsOwnTasks", func(t *testing.T) {
		svc, _ := newTaskService()
		a1, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)
		a2, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)
		b1, err := svc.CreateTask(ctx, userB, validInput())
		require.NoError(t, err)

		tasks, err := svc.ListTasks(ctx, userA)
		require.NoError(t, err)
		require.Len(t, tasks, 2)
		assert.Equal(t, a2.ID, tasks[0].ID)
		assert.Equal(t, a1.ID, tasks[1].ID)

		tasks, err = svc.ListTasks(ctx, userB)
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, b1.ID, tasks[0].ID)
	})

	t.Run("ListTasksEmpty", func(t *testing.T) {
		svc, _ := newTaskService()
		tasks, err := svc.ListTasks(ctx, userA)
		require.NoError(t, err)
		assert.NotNil(t, tasks)
		assert.Empty(t, tasks)
	})

	t.Run("SetTaskActive", func(t *testing.T) {
		svc, _ := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)

		updated, err := svc.SetTaskActive(ctx, userA, task.ID, false)
		require.NoError(t, err)
		assert.False(t, updated.IsActive)
		assert.True(t, updated.UpdatedAt.After(task.UpdatedAt))
		assert.Equal(t, task.CreatedAt, updated.CreatedAt)
	})

	t.Run("SetTaskActiveIsIdempotent", func(t *testing.T) {
		svc, _ := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)

		first, err := svc.SetTaskActive(ctx, userA, task.ID, true)
		require.NoError(t, err)
		second, err := svc.SetTaskActive(ctx, userA, task.ID, true)
		require.NoError(t, err)
		assert.True(t, first.IsActive)
		assert.True(t, second.IsActive)
		assert.True(t, first.UpdatedAt.After(task.UpdatedAt))
		assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
	})

	t.Run("SetTaskActiveByOtherUserIsForbidden", func(t *testing.T) {
		svc, store := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)

		_, err = svc.SetTaskActive(ctx, userB, task.ID, false)
		assert.ErrorIs(t, err, service.ErrForbidden)

		unchanged, err := store.GetTask(ctx, task.ID)
		require.NoError(t, err)
		assert.True(t, unchanged.IsActive)
		assert.Equal(t, task.UpdatedAt, unchanged.UpdatedAt)
	})

	t.Run("SetTaskActiveNotFound", func(t *testing.T) {
		svc, _ := newTaskService()
		_, err := svc.SetTaskActive(ctx, userA, uuid.NewString(), false)
		assert.ErrorIs(t, err, service.ErrNotFound)

		_, err = svc.SetTaskActive(ctx, userA, "not-a-uuid", false)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("SetTaskActiveWithoutUser", func(t *testing.T) {
		svc, _ := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)
		_, err = svc.SetTaskActive(ctx, "", task.ID, false)
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("OwnerMatchesInAnyUUIDForm", func(t *testing.T) {
		svc, store := newTaskService()
		// Stored rows carry the lowercase form the database returns.
		stored, err := store.SaveTask(ctx, models.Task{
			ID:               uuid.NewString(),
			UserID:           userA,
			TaskName:         "ping",
			APIURL:           "https://x.test/h",
			Method:           models.GetHTTPMethod,
			ScheduleInterval: "5m",
			IsActive:         true,
		})
		require.NoError(t, err)

		for _, caller := range []string{strings.ToUpper(userA), "{" + userA + "}", "urn:uuid:" + userA} {
			updated, err := svc.SetTaskActive(ctx, caller, stored.ID, false)
			require.NoError(t, err, caller)
			assert.False(t, updated.IsActive)

			_, err = svc.ListExecutionLogs(ctx, caller, strings.ToUpper(stored.ID), 0)
			require.NoError(t, err, caller)

			tasks, err := svc.ListTasks(ctx, caller)
			require.NoError(t, err, caller)
			require.Len(t, tasks, 1)
		}

		created, err := svc.CreateTask(ctx, strings.ToUpper(userB), validInput())
		require.NoError(t, err)
		assert.Equal(t, userB, created.UserID)
	})

	t.Run("MalformedUserIsUnauthorized", func(t *testing.T) {
		svc, _ := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)

		_, err = svc.CreateTask(ctx, "alice", validInput())
		assert.ErrorIs(t, err, service.ErrUnauthorized)
		_, err = svc.ListTasks(ctx, "alice")
		assert.ErrorIs(t, err, service.ErrUnauthorized)
		_, err = svc.SetTaskActive(ctx, "alice", task.ID, false)
		assert.ErrorIs(t, err, service.ErrUnauthorized)
	})

	t.Run("ListExecutionLogsNewestFirst", func(t *testing.T) {
		svc, store := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)

		base := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
		for _, offset := range []int{2, 0, 1} {
			_, err := store.SaveExecutionLog(ctx, models.ExecutionLog{
				ID:         uuid.NewString(),
				TaskID:     task.ID,
				ExecutedAt: base.Add(time.Duration(offset) * time.Minute),
			})
			require.NoError(t, err)
		}

		logs, err := svc.ListExecutionLogs(ctx, userA, task.ID, 0)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, base.Add(2*time.Minute), logs[0].ExecutedAt)
		assert.Equal(t, base.Add(time.Minute), logs[1].ExecutedAt)
		assert.Equal(t, base, logs[2].ExecutedAt)

		limited, err := svc.ListExecutionLogs(ctx, userA, task.ID, 1)
		require.NoError(t, err)
		require.Len(t, limited, 1)
		assert.Equal(t, base.Add(2*time.Minute), limited[0].ExecutedAt)
	})

	t.Run("ListExecutionLogsEmpty", func(t *testing.T) {
		svc, _ := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)

		logs, err := svc.ListExecutionLogs(ctx, userA, task.ID, 0)
		require.NoError(t, err)
		assert.NotNil(t, logs)
		assert.Empty(t, logs)
	})

	t.Run("ListExecutionLogsOwnership", func(t *testing.T) {
		svc, _ := newTaskService()
		task, err := svc.CreateTask(ctx, userA, validInput())
		require.NoError(t, err)

		_, err = svc.ListExecutionLogs(ctx, userB, task.ID, 0)
		assert.ErrorIs(t, err, service.ErrForbidden)

		_, err = svc.ListExecutionLogs(ctx, userA, uuid.NewString(), 0)
		assert.ErrorIs(t, err, service.ErrNotFound)
	})

	t.Run("StoreFailuresAreWrapped", func(t *testing.T) {
		svc := service.NewTaskService(failingStore{}, logger{})

		_, err := svc.CreateTask(ctx, userA, validInput())
		assert.ErrorIs(t, err, errBoom)
		assert.False(t, service.IsValidation(err))

		_, err = svc.ListTasks(ctx, userA)
		assert.ErrorIs(t, err, errBoom)

		_, err = svc.SetTaskActive(ctx, userA, uuid.NewString(), true)
		assert.ErrorIs(t, err, errBoom)
		assert.NotErrorIs(t, err, service.ErrNotFound)
	})
}
