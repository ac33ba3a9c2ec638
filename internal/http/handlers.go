package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ignatij/apipulse/internal/log"
	"github.com/ignatij/apipulse/pkg/service"
	"github.com/pkg/errors"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeServiceError maps the service error taxonomy onto HTTP status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Error())
	case errors.Is(err, service.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "Task not found")
	default:
		log.GetLogger().Errorf("%s %s failed: %v", r.Method, r.URL.Path, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// userID is only called behind requireUser.
func userID(r *http.Request) string {
	id, _ := identityFrom(r.Context())
	return id.UserID
}

func (s *server) createTask(w http.ResponseWriter, r *http.Request) {
	var in service.CreateTaskInput
	if err := decodeBody(w, r, &in); err != nil {
		log.GetLogger().Errorf("Invalid JSON in POST /tasks: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	task, err := s.tasks.CreateTask(r.Context(), userID(r), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.metrics.tasksCreated.Inc()
	writeJSON(w, http.StatusOK, task)
}

func (s *server) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.tasks.ListTasks(r.Context(), userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *server) toggleTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	// The body is validated before the task is looked up, so a bad payload never reaches the store.
	if err := decodeBody(w, r, &req); err != nil || req.IsActive == nil {
		writeError(w, http.StatusBadRequest, "is_active must be a boolean")
		return
	}
	task, err := s.tasks.SetTaskActive(r.Context(), userID(r), chi.URLParam(r, "id"), *req.IsActive)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.metrics.tasksToggled.WithLabelValues(strconv.FormatBool(task.IsActive)).Inc()
	writeJSON(w, http.StatusOK, task)
}

func (s *server) listLogs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > service.MaxLogLimit {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and "+strconv.Itoa(service.MaxLogLimit))
			return
		}
		limit = n
	}
	logs, err := s.tasks.ListExecutionLogs(r.Context(), userID(r), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *server) engineActiveTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.engine.ActiveTasks(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *server) engineRecordLog(w http.ResponseWriter, r *http.Request) {
	var in service.RecordExecutionInput
	if err := decodeBody(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	entry, err := s.engine.RecordExecution(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	s.metrics.logsRecorded.Inc()
	writeJSON(w, http.StatusOK, entry)
}
