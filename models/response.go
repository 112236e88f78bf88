package models

// SearchResponse is the success payload for a finished search.
type SearchResponse struct {
	Task    *CrawlTask  `json:"task"`
	Records []JobRecord `json:"records"`
}

// TaskAccepted is returned when a search is queued asynchronously.
type TaskAccepted struct {
	TaskID string     `json:"task_id"`
	Status TaskStatus `json:"status"`
}

// ErrorResponse is the error payload for all API endpoints.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	ActiveTasks   int    `json:"active_tasks"`
	QueuedTasks   int    `json:"queued_tasks"`
}
