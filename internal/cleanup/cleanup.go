package cleanup

import (
	"log"
	"time"

	"staywatch/internal/clock"
	"staywatch/internal/store"
)

// Service prunes operational state: settled fetch tasks and old crawl
// logs. Observation tables are append-only and never touched here.
type Service struct {
	store store.Store
	clk   clock.Clock
}

// NewService creates a new cleanup service
func NewService(st store.Store, clk clock.Clock) *Service {
	return &Service{store: st, clk: clk}
}

// Config holds retention settings for cleanup runs
type Config struct {
	TaskRetentionDays     int  `json:"task_retention_days"`
	CrawlLogRetentionDays int  `json:"crawl_log_retention_days"`
	DryRun                bool `json:"dry_run"`
}

// DefaultConfig returns default retention settings
func DefaultConfig() Config {
	return Config{
		TaskRetentionDays:     14,
		CrawlLogRetentionDays: 90,
	}
}

// Result holds the outcome of one cleanup run
type Result struct {
	TasksDeleted     int64     `json:"tasks_deleted"`
	CrawlLogsDeleted int64     `json:"crawl_logs_deleted"`
	DryRun           bool      `json:"dry_run"`
	ExecutedAt       time.Time `json:"executed_at"`
}

// Run deletes settled tasks and crawl logs past their retention windows.
func (s *Service) Run(cfg Config) (*Result, error) {
	now := s.clk.Now()
	result := &Result{DryRun: cfg.DryRun, ExecutedAt: now}

	taskCutoff := now.AddDate(0, 0, -cfg.TaskRetentionDays)
	logCutoff := now.AddDate(0, 0, -cfg.CrawlLogRetentionDays)

	if cfg.DryRun {
		log.Printf("Cleanup: Dry run, would delete tasks settled before %s and crawl logs before %s",
			taskCutoff.Format("2006-01-02"), logCutoff.Format("2006-01-02"))
		return result, nil
	}

	tasks, err := s.store.DeleteSettledTasksBefore(taskCutoff)
	if err != nil {
		return result, err
	}
	result.TasksDeleted = tasks

	logs, err := s.store.DeleteCrawlLogsBefore(logCutoff)
	if err != nil {
		return result, err
	}
	result.CrawlLogsDeleted = logs

	log.Printf("Cleanup: Deleted %d settled tasks and %d crawl logs", tasks, logs)
	return result, nil
}
