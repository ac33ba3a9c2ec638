package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignatij/apipulse/pkg/models"
	"github.com/ignatij/apipulse/pkg/storage"
	"github.com/pkg/errors"
)

// Plan names and the execution-log history each one keeps.
const (
	PlanFree       = "free"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

var planRetention = map[string]time.Duration{
	PlanFree:       24 * time.Hour,
	PlanPro:        30 * 24 * time.Hour,
	PlanEnterprise: 90 * 24 * time.Hour,
}

// PlanRetention returns how long logs are kept on the named plan.
func PlanRetention(plan string) (time.Duration, error) {
	d, ok := planRetention[strings.ToLower(strings.TrimSpace(plan))]
	if !ok {
		return 0, invalid("plan", "must be one of %s, %s, %s", PlanFree, PlanPro, PlanEnterprise)
	}
	return d, nil
}

// RecordExecutionInput is what the execution engine reports after calling a task's URL.
type RecordExecutionInput struct {
	ExecutedAt      *time.Time     `json:"executed_at"`
	StatusCode      *int           `json:"status_code"`
	ResponseTimeMs  int            `json:"response_time_ms"`
	ResponseBody    *string        `json:"response_body"`
	ResponseHeaders models.Headers `json:"response_headers"`
	ErrorMessage    *string        `json:"error_message"`
}

// EngineService is the boundary used by the external execution engine.
// Callers must already hold the elevated credential; no ownership checks apply.
type EngineService struct {
	store  storage.Store
	logger Logger
	now    func() time.Time
}

func NewEngineService(store storage.Store, logger Logger) *EngineService {
	return &EngineService{
		store:  store,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ActiveTasks lists every active task across all users.
func (es *EngineService) ActiveTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := es.store.ListActiveTasks(ctx)
	if err != nil {
		es.logger.Errorf("Failed to list active tasks: %v", err)
		return nil, errors.Wrap(err, "failed to list active tasks")
	}
	return tasks, nil
}

// RecordExecution appends one immutable log entry to an existing task.
func (es *EngineService) RecordExecution(ctx context.Context, taskID string, in RecordExecutionInput) (models.ExecutionLog, error) {
	if _, err := uuid.Parse(taskID); err != nil {
		return models.ExecutionLog{}, ErrNotFound
	}
	if in.ResponseTimeMs < 0 || in.ResponseTimeMs > math.MaxInt32 {
		return models.ExecutionLog{}, invalid("response_time_ms", "must be between 0 and %d", math.MaxInt32)
	}
	if in.StatusCode != nil && (*in.StatusCode < 100 || *in.StatusCode > 599) {
		return models.ExecutionLog{}, invalid("status_code", "must be between 100 and 599")
	}
	executedAt := es.now()
	if in.ExecutedAt != nil {
		executedAt = in.ExecutedAt.UTC()
	}
	entry := models.ExecutionLog{
		ID:              uuid.NewString(),
		TaskID:          taskID,
		ExecutedAt:      executedAt,
		StatusCode:      in.StatusCode,
		ResponseTimeMs:  in.ResponseTimeMs,
		ResponseBody:    in.ResponseBody,
		ResponseHeaders: in.ResponseHeaders,
		ErrorMessage:    in.ErrorMessage,
	}
	saved, err := es.store.SaveExecutionLog(ctx, entry)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.ExecutionLog{}, ErrNotFound
		}
		es.logger.Errorf("Failed to save execution log for task %s: %v", taskID, err)
		return models.ExecutionLog{}, errors.Wrap(err, "failed to record execution")
	}
	return saved, nil
}

// PruneExecutionLogs deletes logs executed before now minus retention.
func (es *EngineService) PruneExecutionLogs(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, invalid("retention", "must be positive")
	}
	cutoff := es.now().Add(-retention)
	deleted, err := es.store.DeleteExecutionLogsBefore(ctx, cutoff)
	if err != nil {
		es.logger.Errorf("Failed to prune execution logs before %s: %v", cutoff.Format(time.RFC3339), err)
		return 0, errors.Wrap(err, "failed to prune execution logs")
	}
	es.logger.Infof("Pruned %d execution logs executed before %s", deleted, cutoff.Format(time.RFC3339))
	return deleted, nil
}
