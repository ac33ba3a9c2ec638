package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ExecutionLog records one past invocation of a task's target URL.
// Logs are written once by the execution engine and never updated.
type ExecutionLog struct {
	ID              string    `json:"id" db:"id"`                             // UUID
	TaskID          string    `json:"task_id" db:"task_id"`                   // Parent task
	ExecutedAt      time.Time `json:"executed_at" db:"executed_at"`           // When the call was made
	StatusCode      *int      `json:"status_code" db:"status_code"`           // Nil when no response was received
	ResponseTimeMs  int       `json:"response_time_ms" db:"response_time_ms"` // Round trip in milliseconds
	ResponseBody    *string   `json:"response_body" db:"response_body"`       // Opaque body, may be truncated by the engine
	ResponseHeaders Headers   `json:"response_headers" db:"response_headers"` // Nil when no response was received
	ErrorMessage    *string   `json:"error_message" db:"error_message"`       // Transport or engine error
}

// Headers is a flat header map persisted as JSONB.
type Headers map[string]string

func (h Headers) Value() (driver.Value, error) {
	if h == nil {
		return nil, nil
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, err
	}
	// lib/pq sends []byte as bytea, jsonb needs text.
	return string(b), nil
}

func (h *Headers) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*h = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Headers", src)
	}
	return json.Unmarshal(raw, h)
}
