package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignatij/apipulse/pkg/models"
	"github.com/ignatij/apipulse/pkg/storage"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DBInterface interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

const taskColumns = "id, user_id, task_name, api_url, method, schedule_interval, is_active, created_at, updated_at"

const logColumns = "id, task_id, executed_at, status_code, response_time_ms, response_body, response_headers, error_message"

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already opened handle, e.g. one backed by sqlmock.
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// SaveTask inserts a task and returns the stored row
func (s *PostgresStore) SaveTask(ctx context.Context, t models.Task) (models.Task, error) {
	var saved models.Task
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO tasks (id, user_id, task_name, api_url, method, schedule_interval, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+taskColumns,
		t.ID, t.UserID, t.TaskName, t.APIURL, t.Method, t.ScheduleInterval, t.IsActive, t.CreatedAt, t.UpdatedAt).StructScan(&saved)
	if err != nil {
		return models.Task{}, fmt.Errorf("save task: %w", err)
	}
	return saved, nil
}

// GetTask retrieves a task by ID
func (s *PostgresStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	var task models.Task
	err := s.db.GetContext(ctx, &task, "SELECT "+taskColumns+" FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return task, nil
}

func (s *PostgresStore) ListTasksByUser(ctx context.Context, userID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.SelectContext(ctx, &tasks, "SELECT "+taskColumns+" FROM tasks WHERE user_id = $1 ORDER BY created_at DESC", userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks for user %s: %w", userID, err)
	}
	return tasks, nil
}

func (s *PostgresStore) ListActiveTasks(ctx context.Context) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.SelectContext(ctx, &tasks, "SELECT "+taskColumns+" FROM tasks WHERE is_active ORDER BY created_at")
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTaskActive sets the active flag and refreshes updated_at, returning the updated row
func (s *PostgresStore) UpdateTaskActive(ctx context.Context, id string, active bool, updatedAt time.Time) (models.Task, error) {
	var task models.Task
	err := s.db.QueryRowxContext(ctx, `
		UPDATE tasks
		SET is_active = $1,
		updated_at = $2
		WHERE id = $3
		RETURNING `+taskColumns,
		active, updatedAt, id).StructScan(&task)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("update task %s: %w", id, err)
	}
	return task, nil
}

// SaveExecutionLog inserts one execution log. A missing parent task yields storage.ErrNotFound.
func (s *PostgresStore) SaveExecutionLog(ctx context.Context, l models.ExecutionLog) (models.ExecutionLog, error) {
	var saved models.ExecutionLog
	// The INSERT ... SELECT yields no row when the parent task is absent, so we never rely on the FK error text.
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO execution_logs (id, task_id, executed_at, status_code, response_time_ms, response_body, response_headers, error_message)
		SELECT $1::uuid, t.id, $3::timestamptz, $4::integer, $5::integer, $6::text, $7::jsonb, $8::text FROM tasks t WHERE t.id = $2
		RETURNING `+logColumns,
		l.ID, l.TaskID, l.ExecutedAt, l.StatusCode, l.ResponseTimeMs, l.ResponseBody, l.ResponseHeaders, l.ErrorMessage).StructScan(&saved)
	if err == sql.ErrNoRows {
		return models.ExecutionLog{}, storage.ErrNotFound
	}
	if err != nil {
		return models.ExecutionLog{}, fmt.Errorf("save execution log for task %s: %w", l.TaskID, err)
	}
	return saved, nil
}

// ListExecutionLogs returns the most recent logs of a task first
func (s *PostgresStore) ListExecutionLogs(ctx context.Context, taskID string, limit int) ([]models.ExecutionLog, error) {
	logs := []models.ExecutionLog{}
	var lim interface{} // LIMIT NULL means no limit
	if limit > 0 {
		lim = limit
	}
	err := s.db.SelectContext(ctx, &logs,
		"SELECT "+logColumns+" FROM execution_logs WHERE task_id = $1 ORDER BY executed_at DESC, id LIMIT $2",
		taskID, lim)
	if err != nil {
		return nil, fmt.Errorf("list execution logs for task %s: %w", taskID, err)
	}
	return logs, nil
}

func (s *PostgresStore) DeleteExecutionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM execution_logs WHERE executed_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete execution logs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return res.RowsAffected()
}
