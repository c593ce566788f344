package models

import "time"

type CommandType string

const (
	CmdCrawlNow      CommandType = "crawl_now"
	CmdPause         CommandType = "pause"
	CmdResume        CommandType = "resume"
	CmdCheckLiveness CommandType = "check_liveness"
)

type Command struct {
	ID          int64       `json:"id" db:"id"`
	Command     CommandType `json:"command" db:"command"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time  `json:"processed_at" db:"processed_at"`
}
