package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

type LogLevel string

const (
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// CrawlRun is the operational record of one crawl-and-reconcile run.
type CrawlRun struct {
	ID              int64      `json:"id" db:"id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	FinishedAt      *time.Time `json:"finished_at" db:"finished_at"`
	Status          RunStatus  `json:"status" db:"status"`
	CodesDiscovered int        `json:"codes_discovered" db:"codes_discovered"`
	DetailsOK       int        `json:"details_ok" db:"details_ok"`
	DetailsFailed   int        `json:"details_failed" db:"details_failed"`
	Inserted        int        `json:"inserted" db:"inserted"`
	Updated         int        `json:"updated" db:"updated"`
	Skipped         int        `json:"skipped" db:"skipped"`
	Deleted         int        `json:"deleted" db:"deleted"`
	ErrorMessage    string     `json:"error_message" db:"error_message"`
}

type CrawlLog struct {
	ID        int64     `json:"id" db:"id"`
	RunID     *int64    `json:"run_id" db:"run_id"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Level     LogLevel  `json:"level" db:"level"`
	Message   string    `json:"message" db:"message"`
}
