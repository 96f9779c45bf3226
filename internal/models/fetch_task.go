package models

import "time"

// TaskKind is the kind of fetch a task performs.
type TaskKind string

const (
	TaskKindSearchSweep   TaskKind = "search_sweep"
	TaskKindCalendarSweep TaskKind = "calendar_sweep"
	TaskKindDetailRefresh TaskKind = "detail_refresh"
)

// FetchTask is the durable state of one scheduled fetch. The scheduler keeps
// a row per task so retry state (attempts, next_retry_at) survives restarts
// and permanently failed tasks stay visible instead of vanishing.
type FetchTask struct {
	ID        int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind      TaskKind `gorm:"type:varchar(30);not null;index" json:"kind"`
	TargetID  *uint    `gorm:"index" json:"target_id,omitempty"`
	ListingID *uint    `gorm:"index" json:"listing_id,omitempty"`
	Host      string   `gorm:"type:varchar(255);not null" json:"host"`

	// CrawlLogID ties the task to the sweep run it belongs to, so the run's
	// counters can be closed out when its last task settles
	CrawlLogID *uint `gorm:"index" json:"crawl_log_id,omitempty"`

	// Tier 1 runs strictly before tier 2 before tier 3; FIFO within a tier
	Tier        int        `gorm:"not null;default:3;index:idx_task_tier" json:"tier"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_task_status" json:"status"`
	Attempts    int        `gorm:"default:0" json:"attempts"`
	LastError   string     `gorm:"type:text" json:"last_error,omitempty"`
	NextRetryAt *time.Time `gorm:"index" json:"next_retry_at,omitempty"`

	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TableName specifies the table name
func (FetchTask) TableName() string {
	return "fetch_tasks"
}

// Task status constants
const (
	TaskStatusPending       = "pending"
	TaskStatusProcessing    = "processing"
	TaskStatusDone          = "done"
	TaskStatusFailed        = "failed"
	TaskStatusPermanentFail = "permanent_fail" // retries exhausted or non-retryable
)

// MaxTaskAttempts before a task is marked permanently failed
const MaxTaskAttempts = 4

// NextRetryDelay returns the task-local backoff for a given attempt count.
// This backoff is independent of the host-level governor backoff.
func NextRetryDelay(attempts int) time.Duration {
	delays := []time.Duration{
		30 * time.Second,
		2 * time.Minute,
		10 * time.Minute,
		30 * time.Minute,
	}
	if attempts >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempts]
}
