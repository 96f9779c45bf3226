package store

import (
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"staywatch/internal/models"
)

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB exposes the underlying connection for the admin handlers.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// InitSchema creates tables using GORM AutoMigrate
func (s *GormStore) InitSchema() error {
	return s.db.AutoMigrate(
		&models.Target{},
		&models.Listing{},
		&models.SearchSnapshot{},
		&models.CalendarObservation{},
		&models.DateClassification{},
		&models.DailyStat{},
		&models.FetchTask{},
		&models.CrawlLog{},
	)
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveTarget inserts a target if no row with the same name+line exists
func (s *GormStore) SaveTarget(t *models.Target) error {
	var existing models.Target
	err := s.db.Where("name = ? AND line = ?", t.Name, t.Line).First(&existing).Error
	if err == nil {
		t.ID = existing.ID
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return s.db.Create(t).Error
}

func (s *GormStore) Targets(priorities []int) ([]models.Target, error) {
	var targets []models.Target
	q := s.db.Order("priority ASC, id ASC")
	if len(priorities) > 0 {
		q = q.Where("priority IN ?", priorities)
	}
	if err := q.Find(&targets).Error; err != nil {
		return nil, err
	}
	return targets, nil
}

func (s *GormStore) GetTarget(id uint) (*models.Target, error) {
	var t models.Target
	if err := s.db.First(&t, id).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertListing creates the listing on first appearance or refreshes the
// last-observed attributes of an existing one. FirstSeen is preserved and a
// stale listing reappearing becomes active again.
func (s *GormStore) UpsertListing(l *models.Listing) (*models.Listing, error) {
	var existing models.Listing
	err := s.db.Where("external_id = ?", l.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		l.Status = models.ListingStatusActive
		if err := s.db.Create(l).Error; err != nil {
			return nil, err
		}
		return l, nil
	}
	if err != nil {
		return nil, err
	}

	l.ID = existing.ID
	l.FirstSeen = existing.FirstSeen
	l.CreatedAt = existing.CreatedAt
	l.Status = models.ListingStatusActive
	if l.Name == "" {
		l.Name = existing.Name
	}
	if l.RoomType == "" {
		l.RoomType = existing.RoomType
	}
	if l.BasePrice == nil {
		l.BasePrice = existing.BasePrice
	}
	if err := s.db.Save(l).Error; err != nil {
		return nil, err
	}
	return l, nil
}

func (s *GormStore) GetListing(id uint) (*models.Listing, error) {
	var l models.Listing
	if err := s.db.First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *GormStore) Listings(targetID uint, roomType string) ([]models.Listing, error) {
	var listings []models.Listing
	q := s.db.Where("target_id = ?", targetID)
	if roomType != "" {
		q = q.Where("room_type = ?", roomType)
	}
	if err := q.Order("id ASC").Find(&listings).Error; err != nil {
		return nil, err
	}
	return listings, nil
}

func (s *GormStore) ActiveListings() ([]models.Listing, error) {
	var listings []models.Listing
	err := s.db.Where("status = ?", models.ListingStatusActive).Order("id ASC").Find(&listings).Error
	if err != nil {
		return nil, err
	}
	return listings, nil
}

// MarkStaleListings flags listings absent from sweeps since the cutoff.
// Listings are never deleted; stale ones drop out of new sweeps but their
// observation history stays replayable.
func (s *GormStore) MarkStaleListings(lastSeenBefore time.Time) ([]uint, error) {
	var ids []uint
	if err := s.db.Model(&models.Listing{}).
		Where("status = ? AND last_seen < ?", models.ListingStatusActive, lastSeenBefore).
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	res := s.db.Model(&models.Listing{}).
		Where("id IN ?", ids).
		Update("status", models.ListingStatusStale)
	return ids, res.Error
}

func (s *GormStore) AppendSearchSnapshot(snap *models.SearchSnapshot) error {
	return s.db.Create(snap).Error
}

func (s *GormStore) AppendCalendarObservations(obs []models.CalendarObservation) error {
	if len(obs) == 0 {
		return nil
	}
	return s.db.CreateInBatches(obs, 200).Error
}

func (s *GormStore) History(listingID uint, date time.Time) ([]models.CalendarObservation, error) {
	var obs []models.CalendarObservation
	err := s.db.Where("listing_id = ? AND date = ?", listingID, dateOnly(date)).
		Order("observed_at ASC, id ASC").
		Find(&obs).Error
	if err != nil {
		return nil, err
	}
	return obs, nil
}

func (s *GormStore) ListingHistory(listingID uint) ([]models.CalendarObservation, error) {
	var obs []models.CalendarObservation
	err := s.db.Where("listing_id = ?", listingID).
		Order("date ASC, observed_at ASC, id ASC").
		Find(&obs).Error
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// ReplaceClassifications swaps a listing's derived classification rows in one
// transaction. Full replacement keeps recompute idempotent.
func (s *GormStore) ReplaceClassifications(listingID uint, classes []models.DateClassification) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("listing_id = ?", listingID).
			Delete(&models.DateClassification{}).Error; err != nil {
			return err
		}
		if len(classes) == 0 {
			return nil
		}
		return tx.CreateInBatches(classes, 200).Error
	})
}

func (s *GormStore) Classifications(listingID uint, from, to time.Time) ([]models.DateClassification, error) {
	var classes []models.DateClassification
	q := s.db.Where("listing_id = ?", listingID)
	if !from.IsZero() {
		q = q.Where("date >= ?", dateOnly(from))
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", dateOnly(to))
	}
	if err := q.Order("date ASC").Find(&classes).Error; err != nil {
		return nil, err
	}
	return classes, nil
}

func (s *GormStore) ClassificationsForDate(listingIDs []uint, date time.Time) ([]models.DateClassification, error) {
	if len(listingIDs) == 0 {
		return nil, nil
	}
	var classes []models.DateClassification
	err := s.db.Where("listing_id IN ? AND date = ?", listingIDs, dateOnly(date)).
		Find(&classes).Error
	if err != nil {
		return nil, err
	}
	return classes, nil
}

// UpsertDailyStat fully replaces the stat row for its (target, date, room
// type) key
func (s *GormStore) UpsertDailyStat(stat *models.DailyStat) error {
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "target_id"}, {Name: "date"}, {Name: "room_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_listings", "booked_count", "occupancy_rate",
			"avg_daily_price", "estimated_revenue", "computed_at",
		}),
	}).Create(stat).Error
}

func (s *GormStore) DailyStats(targetID uint, from, to time.Time, roomType string) ([]models.DailyStat, error) {
	var stats []models.DailyStat
	q := s.db.Where("target_id = ?", targetID)
	if !from.IsZero() {
		q = q.Where("date >= ?", dateOnly(from))
	}
	if !to.IsZero() {
		q = q.Where("date <= ?", dateOnly(to))
	}
	if roomType != "" {
		q = q.Where("room_type = ?", roomType)
	} else {
		q = q.Where("room_type = ''")
	}
	if err := q.Order("date ASC").Find(&stats).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *GormStore) SaveTask(t *models.FetchTask) error {
	return s.db.Save(t).Error
}

func (s *GormStore) ReadyTasks(now time.Time, limit int) ([]models.FetchTask, error) {
	var tasks []models.FetchTask
	q := s.db.
		Where("status = ? OR (status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?)",
			models.TaskStatusPending, models.TaskStatusFailed, now).
		Order("tier ASC, created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *GormStore) TaskCounts() (map[string]int64, error) {
	counts := make(map[string]int64)
	for _, status := range []string{
		models.TaskStatusPending, models.TaskStatusProcessing,
		models.TaskStatusDone, models.TaskStatusFailed, models.TaskStatusPermanentFail,
	} {
		var n int64
		if err := s.db.Model(&models.FetchTask{}).Where("status = ?", status).Count(&n).Error; err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, nil
}

func (s *GormStore) ResetProcessingTasks() (int64, error) {
	res := s.db.Model(&models.FetchTask{}).
		Where("status = ?", models.TaskStatusProcessing).
		Update("status", models.TaskStatusPending)
	return res.RowsAffected, res.Error
}

func (s *GormStore) OpenTasksForLog(crawlLogID uint) (int64, error) {
	var n int64
	err := s.db.Model(&models.FetchTask{}).
		Where("crawl_log_id = ? AND status NOT IN ?", crawlLogID,
			[]string{models.TaskStatusDone, models.TaskStatusPermanentFail}).
		Count(&n).Error
	return n, err
}

func (s *GormStore) SaveCrawlLog(l *models.CrawlLog) error {
	return s.db.Save(l).Error
}

func (s *GormStore) GetCrawlLog(id uint) (*models.CrawlLog, error) {
	var l models.CrawlLog
	if err := s.db.First(&l, id).Error; err != nil {
		return nil, err
	}
	return &l, nil
}

func (s *GormStore) AddCrawlCounts(id uint, total, success, failed, blocked int) error {
	return s.db.Model(&models.CrawlLog{}).Where("id = ?", id).
		Updates(map[string]any{
			"total_requests":      gorm.Expr("total_requests + ?", total),
			"successful_requests": gorm.Expr("successful_requests + ?", success),
			"failed_requests":     gorm.Expr("failed_requests + ?", failed),
			"blocked_requests":    gorm.Expr("blocked_requests + ?", blocked),
		}).Error
}

func (s *GormStore) RecentCrawlLogs(limit int) ([]models.CrawlLog, error) {
	var logs []models.CrawlLog
	q := s.db.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *GormStore) DeleteSettledTasksBefore(cutoff time.Time) (int64, error) {
	res := s.db.
		Where("status IN ? AND completed_at IS NOT NULL AND completed_at < ?",
			[]string{models.TaskStatusDone, models.TaskStatusPermanentFail}, cutoff).
		Delete(&models.FetchTask{})
	return res.RowsAffected, res.Error
}

func (s *GormStore) DeleteCrawlLogsBefore(cutoff time.Time) (int64, error) {
	res := s.db.Where("started_at < ?", cutoff).Delete(&models.CrawlLog{})
	return res.RowsAffected, res.Error
}

// dateOnly truncates a timestamp to its calendar date in UTC
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
