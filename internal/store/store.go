package store

import (
	"time"

	"staywatch/internal/models"
)

// Store is the persistence interface the engine runs against. Observation
// tables (search snapshots, calendar observations) are append-only: rows are
// never mutated or deleted once inserted, because the history itself is the
// input to reconciliation. Derived tables (classifications, daily stats) are
// recomputed in place.
type Store interface {
	InitSchema() error
	Close() error

	// Targets: reference data, loaded at startup, read-only afterwards
	SaveTarget(t *models.Target) error
	Targets(priorities []int) ([]models.Target, error)
	GetTarget(id uint) (*models.Target, error)

	// Listings: created on first appearance, updated with last-observed
	// values, marked stale when absent from recent sweeps, never deleted
	UpsertListing(l *models.Listing) (*models.Listing, error)
	GetListing(id uint) (*models.Listing, error)
	Listings(targetID uint, roomType string) ([]models.Listing, error)
	ActiveListings() ([]models.Listing, error)
	// MarkStaleListings flags active listings absent from sweeps since the
	// cutoff and returns the ids it touched, so callers can drop them from
	// the search index.
	MarkStaleListings(lastSeenBefore time.Time) ([]uint, error)

	// Append-only observation ingestion. Duplicate content is legitimate
	// (re-observations differ by observed_at) and must never fail.
	AppendSearchSnapshot(s *models.SearchSnapshot) error
	AppendCalendarObservations(obs []models.CalendarObservation) error

	// History returns every observation of one (listing, date), ordered by
	// observed_at ascending. Replayable any number of times.
	History(listingID uint, date time.Time) ([]models.CalendarObservation, error)
	// ListingHistory returns a listing's full observation history ordered
	// by date then observed_at.
	ListingHistory(listingID uint) ([]models.CalendarObservation, error)

	// Derived classification rows, owned by the reconciliation engine
	ReplaceClassifications(listingID uint, classes []models.DateClassification) error
	Classifications(listingID uint, from, to time.Time) ([]models.DateClassification, error)
	ClassificationsForDate(listingIDs []uint, date time.Time) ([]models.DateClassification, error)

	// Derived daily stats, owned by the aggregation engine
	UpsertDailyStat(stat *models.DailyStat) error
	DailyStats(targetID uint, from, to time.Time, roomType string) ([]models.DailyStat, error)

	// Durable task and run state for the scheduler
	SaveTask(t *models.FetchTask) error
	ReadyTasks(now time.Time, limit int) ([]models.FetchTask, error)
	// ResetProcessingTasks returns tasks stuck in processing to pending,
	// recovering work orphaned by a crash mid-dispatch.
	ResetProcessingTasks() (int64, error)
	TaskCounts() (map[string]int64, error)
	// OpenTasksForLog counts tasks of a sweep run not yet in a terminal state
	OpenTasksForLog(crawlLogID uint) (int64, error)

	SaveCrawlLog(l *models.CrawlLog) error
	GetCrawlLog(id uint) (*models.CrawlLog, error)
	// AddCrawlCounts atomically bumps a run's request counters
	AddCrawlCounts(id uint, total, success, failed, blocked int) error
	RecentCrawlLogs(limit int) ([]models.CrawlLog, error)

	// Retention: settled tasks and old run records are operational state,
	// not observations, and may be pruned
	DeleteSettledTasksBefore(cutoff time.Time) (int64, error)
	DeleteCrawlLogsBefore(cutoff time.Time) (int64, error)
}
