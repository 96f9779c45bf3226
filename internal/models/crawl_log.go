package models

import "time"

// CrawlLog records one sweep run for monitoring: request counters and the
// final verdict. Permanently failed tasks surface here instead of being
// dropped silently.
type CrawlLog struct {
	ID         uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	JobType    string     `gorm:"type:varchar(30);not null;index:idx_crawllog_type_time" json:"job_type"`
	StartedAt  time.Time  `gorm:"not null;index:idx_crawllog_type_time,priority:2" json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     string     `gorm:"type:varchar(20)" json:"status"`

	TotalRequests      int `gorm:"default:0" json:"total_requests"`
	SuccessfulRequests int `gorm:"default:0" json:"successful_requests"`
	FailedRequests     int `gorm:"default:0" json:"failed_requests"`
	BlockedRequests    int `gorm:"default:0" json:"blocked_requests"`

	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`
}

// TableName specifies the table name
func (CrawlLog) TableName() string {
	return "crawl_logs"
}

// Crawl log job types
const (
	JobTypeSearch   = "search"
	JobTypeCalendar = "calendar"
	JobTypeDetail   = "detail"
)

// Crawl log status values
const (
	CrawlStatusSuccess = "success"
	CrawlStatusPartial = "partial"
	CrawlStatusFailed  = "failed"
)
