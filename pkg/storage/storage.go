package storage

import (
	"context"
	"time"

	"github.com/ignatij/apipulse/pkg/models"
	"github.com/pkg/errors"
)

// ErrNotFound is returned when a row addressed by id does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the storage operations for API Pulse.
type Store interface {
	// Transaction handling
	Begin() (Store, error)
	Commit() error
	Rollback() error
	Close() error

	// Task operations
	SaveTask(ctx context.Context, t models.Task) (models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	ListTasksByUser(ctx context.Context, userID string) ([]models.Task, error)
	ListActiveTasks(ctx context.Context) ([]models.Task, error)
	UpdateTaskActive(ctx context.Context, id string, active bool, updatedAt time.Time) (models.Task, error)

	// Execution log operations
	SaveExecutionLog(ctx context.Context, l models.ExecutionLog) (models.ExecutionLog, error)
	ListExecutionLogs(ctx context.Context, taskID string, limit int) ([]models.ExecutionLog, error)
	DeleteExecutionLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
