package models

import "time"

type HTTPMethod string

const (
	GetHTTPMethod  HTTPMethod = "GET"
	PostHTTPMethod HTTPMethod = "POST"
)

// Valid reports whether the method is one the execution engine can issue.
func (m HTTPMethod) Valid() bool {
	switch m {
	case GetHTTPMethod, PostHTTPMethod:
		return true
	}
	return false
}

// Task is a user-owned recurring HTTP call.
type Task struct {
	ID               string     `json:"id" db:"id"`                               // UUID
	UserID           string     `json:"user_id" db:"user_id"`                     // Owner, immutable after creation
	TaskName         string     `json:"task_name" db:"task_name"`                 // Display name
	APIURL           string     `json:"api_url" db:"api_url"`                     // Target URL
	Method           HTTPMethod `json:"method" db:"method"`                       // GET or POST
	ScheduleInterval string     `json:"schedule_interval" db:"schedule_interval"` // e.g. "5m", "1h", "1d"
	IsActive         bool       `json:"is_active" db:"is_active"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}
