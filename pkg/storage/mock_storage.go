package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignatij/apipulse/pkg/models"
	"github.com/pkg/errors"
)

// memData is the state shared by a mockStore and every transaction begun from it.
type memData struct {
	mu    sync.Mutex
	tasks []models.Task
	logs  []models.ExecutionLog
}

// mockStore implements storage.Store with in-memory storage
type mockStore struct {
	data *memData
	tx   bool
	done bool // Transaction state

	// State at Begin, restored on Rollback.
	savedTasks []models.Task
	savedLogs  []models.ExecutionLog
}

// NewMockStore returns an in-memory Store. Transactions write through to the
// shared data; Rollback restores the data as it was at Begin, which also
// discards anything written outside the transaction in the meantime.
func NewMockStore() Store {
	return &mockStore{data: &memData{}}
}

func (m *mockStore) Begin() (Store, error) {
	if m.tx {
		return nil, errors.New("nested transactions are not supported")
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	return &mockStore{
		data:       m.data,
		tx:         true,
		savedTasks: append([]models.Task(nil), m.data.tasks...),
		savedLogs:  append([]models.ExecutionLog(nil), m.data.logs...),
	}, nil
}

func (m *mockStore) Commit() error {
	if !m.tx {
		return errors.New("cannot commit: not a transaction")
	}
	if m.done {
		return errors.New("transaction already finished")
	}
	m.done = true
	return nil
}

func (m *mockStore) Rollback() error {
	if !m.tx {
		return errors.New("cannot rollback: not a transaction")
	}
	if m.done {
		return errors.New("transaction already finished")
	}
	m.done = true
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	m.data.tasks = m.savedTasks
	m.data.logs = m.savedLogs
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

func (m *mockStore) check() error {
	if m.done {
		return errors.New("transaction already finished")
	}
	return nil
}

func (m *mockStore) SaveTask(ctx context.Context, t models.Task) (models.Task, error) {
	if err := m.check(); err != nil {
		return models.Task{}, err
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	for _, existing := range m.data.tasks {
		if existing.ID == t.ID {
			return models.Task{}, errors.New("task already exists")
		}
	}
	m.data.tasks = append(m.data.tasks, t)
	return t, nil
}

func (m *mockStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	if err := m.check(); err != nil {
		return models.Task{}, err
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	for _, t := range m.data.tasks {
		if t.ID == id {
			return t, nil
		}
	}
	return models.Task{}, ErrNotFound
}

func (m *mockStore) ListTasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	tasks := []models.Task{}
	for _, t := range m.data.tasks {
		if t.UserID == userID {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (m *mockStore) ListActiveTasks(ctx context.Context) ([]models.Task, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	tasks := []models.Task{}
	for _, t := range m.data.tasks {
		if t.IsActive {
			tasks = append(tasks, t)
		}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
	return tasks, nil
}

func (m *mockStore) UpdateTaskActive(ctx context.Context, id string, active bool, updatedAt time.Time) (models.Task, error) {
	if err := m.check(); err != nil {
		return models.Task{}, err
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	for i, t := range m.data.tasks {
		if t.ID == id {
			m.data.tasks[i].IsActive = active
			m.data.tasks[i].UpdatedAt = updatedAt
			return m.data.tasks[i], nil
		}
	}
	return models.Task{}, ErrNotFound
}

func (m *mockStore) SaveExecutionLog(ctx context.Context, l models.ExecutionLog) (models.ExecutionLog, error) {
	if err := m.check(); err != nil {
		return models.ExecutionLog{}, err
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	found := false
	for _, t := range m.data.tasks {
		if t.ID == l.TaskID {
			found = true
			break
		}
	}
	if !found {
		return models.ExecutionLog{}, ErrNotFound
	}
	m.data.logs = append(m.data.logs, l)
	return l, nil
}

func (m *mockStore) ListExecutionLogs(ctx context.Context, taskID string, limit int) ([]models.ExecutionLog, error) {
	if err := m.check(); err != nil {
		return nil, err
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	logs := []models.ExecutionLog{}
	for _, l := range m.data.logs {
		if l.TaskID == taskID {
			logs = append(logs, l)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].ExecutedAt.After(logs[j].ExecutedAt)
	})
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}

func (m *mockStore) DeleteExecutionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := m.check(); err != nil {
		return 0, err
	}
	m.data.mu.Lock()
	defer m.data.mu.Unlock()
	kept := m.data.logs[:0]
	var deleted int64
	for _, l := range m.data.logs {
		if l.ExecutedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, l)
	}
	m.data.logs = kept
	return deleted, nil
}
