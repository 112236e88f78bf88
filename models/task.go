package models

import "time"

// TaskStatus is the lifecycle state of a crawl task.
type TaskStatus string

const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
)

// CrawlTask is the tracked state of one submitted search. It is safe
// to serialize for API status responses; the coordinator hands out
// copies, never its internal pointer.
type CrawlTask struct {
	ID       string     `json:"id"`
	Keyword  string     `json:"keyword"`
	Location string     `json:"location"`
	Limit    int        `json:"limit"`
	Priority int        `json:"priority,omitempty"`
	Status   TaskStatus `json:"status"`

	// FromCache marks tasks answered from the result cache without
	// browser work.
	FromCache bool `json:"from_cache,omitempty"`

	RecordCount int    `json:"record_count"`
	Error       string `json:"error,omitempty"`
	Attempts    int    `json:"attempts,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	FinishedAt  time.Time `json:"finished_at,omitempty"`
}
