package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"staywatch/internal/models"
)

// PostgresStore is the raw-SQL PostgreSQL Store.
type PostgresStore struct {
	conn *sql.DB
}

// NewPostgresStore opens a PostgreSQL connection.
func NewPostgresStore(host, port, user, password, dbname, sslmode string) (*PostgresStore, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{conn: conn}, nil
}

func (s *PostgresStore) Close() error {
	return s.conn.Close()
}

// InitSchema creates the observation and derived tables
func (s *PostgresStore) InitSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS targets (
		id SERIAL PRIMARY KEY,
		name VARCHAR(50) NOT NULL,
		line VARCHAR(30) NOT NULL,
		district VARCHAR(30),
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		radius_km DOUBLE PRECISION NOT NULL DEFAULT 3.0,
		priority INTEGER NOT NULL DEFAULT 3,
		UNIQUE (name, line)
	);

	CREATE TABLE IF NOT EXISTS listings (
		id SERIAL PRIMARY KEY,
		external_id VARCHAR(30) NOT NULL UNIQUE,
		name TEXT,
		host_id VARCHAR(30),
		room_type VARCHAR(30),
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		target_id INTEGER NOT NULL,
		bedrooms INTEGER,
		bathrooms DOUBLE PRECISION,
		max_guests INTEGER,
		base_price DOUBLE PRECISION,
		rating DOUBLE PRECISION,
		review_count INTEGER,
		status VARCHAR(20) NOT NULL DEFAULT 'active',
		first_seen TIMESTAMP NOT NULL,
		last_seen TIMESTAMP NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS idx_listings_target ON listings(target_id);
	CREATE INDEX IF NOT EXISTS idx_listings_room_type ON listings(room_type);

	CREATE TABLE IF NOT EXISTS search_snapshots (
		id SERIAL PRIMARY KEY,
		target_id INTEGER NOT NULL,
		observed_at TIMESTAMP NOT NULL,
		checkin_date DATE,
		checkout_date DATE,
		total_listings INTEGER,
		avg_price DOUBLE PRECISION,
		min_price DOUBLE PRECISION,
		max_price DOUBLE PRECISION,
		median_price DOUBLE PRECISION,
		available_count INTEGER,
		payload_hash VARCHAR(64)
	);
	CREATE INDEX IF NOT EXISTS idx_search_target_time ON search_snapshots(target_id, observed_at);

	CREATE TABLE IF NOT EXISTS calendar_observations (
		id SERIAL PRIMARY KEY,
		listing_id INTEGER NOT NULL,
		observed_at TIMESTAMP NOT NULL,
		date DATE NOT NULL,
		available BOOLEAN NOT NULL,
		price DOUBLE PRECISION,
		min_nights INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_cal_listing_date ON calendar_observations(listing_id, date);
	CREATE INDEX IF NOT EXISTS idx_cal_observed ON calendar_observations(observed_at);

	CREATE TABLE IF NOT EXISTS date_classifications (
		id SERIAL PRIMARY KEY,
		listing_id INTEGER NOT NULL,
		date DATE NOT NULL,
		status VARCHAR(20) NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		recomputed_at TIMESTAMP NOT NULL,
		UNIQUE (listing_id, date)
	);

	CREATE TABLE IF NOT EXISTS daily_stats (
		id SERIAL PRIMARY KEY,
		target_id INTEGER NOT NULL,
		date DATE NOT NULL,
		room_type VARCHAR(30) NOT NULL DEFAULT '',
		total_listings INTEGER,
		booked_count INTEGER,
		occupancy_rate DOUBLE PRECISION,
		avg_daily_price DOUBLE PRECISION,
		estimated_revenue DOUBLE PRECISION,
		computed_at TIMESTAMP NOT NULL,
		UNIQUE (target_id, date, room_type)
	);

	CREATE TABLE IF NOT EXISTS fetch_tasks (
		id BIGSERIAL PRIMARY KEY,
		kind VARCHAR(30) NOT NULL,
		target_id INTEGER,
		listing_id INTEGER,
		host VARCHAR(255) NOT NULL,
		crawl_log_id INTEGER,
		tier INTEGER NOT NULL DEFAULT 3,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		attempts INTEGER DEFAULT 0,
		last_error TEXT,
		next_retry_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_tasks_status ON fetch_tasks(status);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id SERIAL PRIMARY KEY,
		job_type VARCHAR(30) NOT NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP,
		status VARCHAR(20),
		total_requests INTEGER DEFAULT 0,
		successful_requests INTEGER DEFAULT 0,
		failed_requests INTEGER DEFAULT 0,
		blocked_requests INTEGER DEFAULT 0,
		error_message TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_crawllog_type_time ON crawl_logs(job_type, started_at);
	`
	_, err := s.conn.Exec(query)
	return err
}

func (s *PostgresStore) SaveTarget(t *models.Target) error {
	return s.conn.QueryRow(`
		INSERT INTO targets (name, line, district, latitude, longitude, radius_km, priority)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (name, line) DO UPDATE SET priority = targets.priority
		RETURNING id`,
		t.Name, t.Line, t.District, t.Latitude, t.Longitude, t.RadiusKM, t.Priority,
	).Scan(&t.ID)
}

func (s *PostgresStore) Targets(priorities []int) ([]models.Target, error) {
	query := `SELECT id, name, line, district, latitude, longitude, radius_km, priority
		FROM targets`
	var args []any
	if len(priorities) > 0 {
		query += ` WHERE priority = ANY($1)`
		args = append(args, intArray(priorities))
	}
	query += ` ORDER BY priority ASC, id ASC`

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []models.Target
	for rows.Next() {
		var t models.Target
		var district sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &t.Line, &district, &t.Latitude, &t.Longitude, &t.RadiusKM, &t.Priority); err != nil {
			return nil, err
		}
		t.District = district.String
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

func (s *PostgresStore) GetTarget(id uint) (*models.Target, error) {
	var t models.Target
	var district sql.NullString
	err := s.conn.QueryRow(`
		SELECT id, name, line, district, latitude, longitude, radius_km, priority
		FROM targets WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.Line, &district, &t.Latitude, &t.Longitude, &t.RadiusKM, &t.Priority)
	if err != nil {
		return nil, err
	}
	t.District = district.String
	return &t, nil
}

func (s *PostgresStore) UpsertListing(l *models.Listing) (*models.Listing, error) {
	err := s.conn.QueryRow(`
		INSERT INTO listings (
			external_id, name, host_id, room_type, latitude, longitude, target_id,
			bedrooms, bathrooms, max_guests, base_price, rating, review_count,
			status, first_seen, last_seen, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 'active', $14, $15, NOW(), NOW())
		ON CONFLICT (external_id) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name = '' THEN listings.name ELSE EXCLUDED.name END,
			host_id = EXCLUDED.host_id,
			room_type = CASE WHEN EXCLUDED.room_type = '' THEN listings.room_type ELSE EXCLUDED.room_type END,
			latitude = COALESCE(EXCLUDED.latitude, listings.latitude),
			longitude = COALESCE(EXCLUDED.longitude, listings.longitude),
			base_price = COALESCE(EXCLUDED.base_price, listings.base_price),
			rating = COALESCE(EXCLUDED.rating, listings.rating),
			review_count = COALESCE(EXCLUDED.review_count, listings.review_count),
			status = 'active',
			last_seen = EXCLUDED.last_seen,
			updated_at = NOW()
		RETURNING id, first_seen`,
		l.ExternalID, l.Name, l.HostID, l.RoomType, l.Latitude, l.Longitude, l.TargetID,
		l.Bedrooms, l.Bathrooms, l.MaxGuests, l.BasePrice, l.Rating, l.ReviewCount,
		l.FirstSeen, l.LastSeen,
	).Scan(&l.ID, &l.FirstSeen)
	if err != nil {
		return nil, err
	}
	l.Status = models.ListingStatusActive
	return l, nil
}

func (s *PostgresStore) GetListing(id uint) (*models.Listing, error) {
	row := s.conn.QueryRow(listingSelect+` WHERE id = $1`, id)
	return scanListing(row)
}

func (s *PostgresStore) Listings(targetID uint, roomType string) ([]models.Listing, error) {
	query := listingSelect + ` WHERE target_id = $1`
	args := []any{targetID}
	if roomType != "" {
		query += ` AND room_type = $2`
		args = append(args, roomType)
	}
	query += ` ORDER BY id ASC`
	return s.queryListings(query, args...)
}

func (s *PostgresStore) ActiveListings() ([]models.Listing, error) {
	return s.queryListings(listingSelect+` WHERE status = 'active' ORDER BY id ASC`)
}

func (s *PostgresStore) MarkStaleListings(lastSeenBefore time.Time) ([]uint, error) {
	rows, err := s.conn.Query(`
		UPDATE listings SET status = 'stale', updated_at = NOW()
		WHERE status = 'active' AND last_seen < $1
		RETURNING id`, lastSeenBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint
	for rows.Next() {
		var id uint
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) AppendSearchSnapshot(snap *models.SearchSnapshot) error {
	return s.conn.QueryRow(`
		INSERT INTO search_snapshots (
			target_id, observed_at, checkin_date, checkout_date, total_listings,
			avg_price, min_price, max_price, median_price, available_count, payload_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		snap.TargetID, snap.ObservedAt, snap.CheckinDate, snap.CheckoutDate, snap.TotalListings,
		snap.AvgPrice, snap.MinPrice, snap.MaxPrice, snap.MedianPrice, snap.AvailableCount, snap.PayloadHash,
	).Scan(&snap.ID)
}

func (s *PostgresStore) AppendCalendarObservations(obs []models.CalendarObservation) error {
	if len(obs) == 0 {
		return nil
	}
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO calendar_observations (listing_id, observed_at, date, available, price, min_nights)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range obs {
		o := obs[i]
		if _, err := stmt.Exec(o.ListingID, o.ObservedAt, dateOnly(o.Date), o.Available, o.Price, o.MinNights); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) History(listingID uint, date time.Time) ([]models.CalendarObservation, error) {
	return s.queryObservations(`
		SELECT id, listing_id, observed_at, date, available, price, min_nights
		FROM calendar_observations
		WHERE listing_id = $1 AND date = $2
		ORDER BY observed_at ASC, id ASC`, listingID, dateOnly(date))
}

func (s *PostgresStore) ListingHistory(listingID uint) ([]models.CalendarObservation, error) {
	return s.queryObservations(`
		SELECT id, listing_id, observed_at, date, available, price, min_nights
		FROM calendar_observations
		WHERE listing_id = $1
		ORDER BY date ASC, observed_at ASC, id ASC`, listingID)
}

func (s *PostgresStore) ReplaceClassifications(listingID uint, classes []models.DateClassification) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM date_classifications WHERE listing_id = $1`, listingID); err != nil {
		_ = tx.Rollback()
		return err
	}
	for i := range classes {
		c := classes[i]
		_, err := tx.Exec(`
			INSERT INTO date_classifications (listing_id, date, status, confidence, recomputed_at)
			VALUES ($1, $2, $3, $4, $5)`,
			c.ListingID, dateOnly(c.Date), string(c.Status), c.Confidence, c.RecomputedAt)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) Classifications(listingID uint, from, to time.Time) ([]models.DateClassification, error) {
	query := `
		SELECT id, listing_id, date, status, confidence, recomputed_at
		FROM date_classifications WHERE listing_id = $1`
	args := []any{listingID}
	if !from.IsZero() {
		args = append(args, dateOnly(from))
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, dateOnly(to))
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	query += ` ORDER BY date ASC`
	return s.queryClassifications(query, args...)
}

func (s *PostgresStore) ClassificationsForDate(listingIDs []uint, date time.Time) ([]models.DateClassification, error) {
	if len(listingIDs) == 0 {
		return nil, nil
	}
	return s.queryClassifications(`
		SELECT id, listing_id, date, status, confidence, recomputed_at
		FROM date_classifications
		WHERE listing_id = ANY($1) AND date = $2`, uintArray(listingIDs), dateOnly(date))
}

func (s *PostgresStore) UpsertDailyStat(stat *models.DailyStat) error {
	return s.conn.QueryRow(`
		INSERT INTO daily_stats (
			target_id, date, room_type, total_listings, booked_count,
			occupancy_rate, avg_daily_price, estimated_revenue, computed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (target_id, date, room_type) DO UPDATE SET
			total_listings = EXCLUDED.total_listings,
			booked_count = EXCLUDED.booked_count,
			occupancy_rate = EXCLUDED.occupancy_rate,
			avg_daily_price = EXCLUDED.avg_daily_price,
			estimated_revenue = EXCLUDED.estimated_revenue,
			computed_at = EXCLUDED.computed_at
		RETURNING id`,
		stat.TargetID, dateOnly(stat.Date), stat.RoomType, stat.TotalListings, stat.BookedCount,
		stat.OccupancyRate, stat.AvgDailyPrice, stat.EstimatedRevenue, stat.ComputedAt,
	).Scan(&stat.ID)
}

func (s *PostgresStore) DailyStats(targetID uint, from, to time.Time, roomType string) ([]models.DailyStat, error) {
	query := `
		SELECT id, target_id, date, room_type, total_listings, booked_count,
			occupancy_rate, avg_daily_price, estimated_revenue, computed_at
		FROM daily_stats WHERE target_id = $1 AND room_type = $2`
	args := []any{targetID, roomType}
	if !from.IsZero() {
		args = append(args, dateOnly(from))
		query += fmt.Sprintf(` AND date >= $%d`, len(args))
	}
	if !to.IsZero() {
		args = append(args, dateOnly(to))
		query += fmt.Sprintf(` AND date <= $%d`, len(args))
	}
	query += ` ORDER BY date ASC`

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.DailyStat
	for rows.Next() {
		var st models.DailyStat
		if err := rows.Scan(&st.ID, &st.TargetID, &st.Date, &st.RoomType, &st.TotalListings,
			&st.BookedCount, &st.OccupancyRate, &st.AvgDailyPrice, &st.EstimatedRevenue, &st.ComputedAt); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func (s *PostgresStore) SaveTask(t *models.FetchTask) error {
	if t.ID == 0 {
		return s.conn.QueryRow(`
			INSERT INTO fetch_tasks (kind, target_id, listing_id, host, crawl_log_id, tier,
				status, attempts, last_error, next_retry_at, created_at, updated_at, completed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW(), $11)
			RETURNING id`,
			string(t.Kind), t.TargetID, t.ListingID, t.Host, t.CrawlLogID, t.Tier, t.Status,
			t.Attempts, t.LastError, t.NextRetryAt, t.CompletedAt,
		).Scan(&t.ID)
	}
	_, err := s.conn.Exec(`
		UPDATE fetch_tasks SET status = $1, attempts = $2, last_error = $3,
			next_retry_at = $4, updated_at = NOW(), completed_at = $5
		WHERE id = $6`,
		t.Status, t.Attempts, t.LastError, t.NextRetryAt, t.CompletedAt, t.ID)
	return err
}

func (s *PostgresStore) ReadyTasks(now time.Time, limit int) ([]models.FetchTask, error) {
	query := `
		SELECT id, kind, target_id, listing_id, host, crawl_log_id, tier, status,
			attempts, last_error, next_retry_at, created_at, updated_at, completed_at
		FROM fetch_tasks
		WHERE status = 'pending'
			OR (status = 'failed' AND next_retry_at IS NOT NULL AND next_retry_at <= $1)
		ORDER BY tier ASC, created_at ASC`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.FetchTask
	for rows.Next() {
		var t models.FetchTask
		var kind string
		var lastErr sql.NullString
		if err := rows.Scan(&t.ID, &kind, &t.TargetID, &t.ListingID, &t.Host, &t.CrawlLogID, &t.Tier,
			&t.Status, &t.Attempts, &lastErr, &t.NextRetryAt, &t.CreatedAt, &t.UpdatedAt, &t.CompletedAt); err != nil {
			return nil, err
		}
		t.Kind = models.TaskKind(kind)
		t.LastError = lastErr.String
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *PostgresStore) ResetProcessingTasks() (int64, error) {
	res, err := s.conn.Exec(`
		UPDATE fetch_tasks SET status = 'pending', updated_at = NOW()
		WHERE status = 'processing'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) OpenTasksForLog(crawlLogID uint) (int64, error) {
	var n int64
	err := s.conn.QueryRow(`
		SELECT COUNT(*) FROM fetch_tasks
		WHERE crawl_log_id = $1 AND status NOT IN ('done', 'permanent_fail')`, crawlLogID,
	).Scan(&n)
	return n, err
}

func (s *PostgresStore) TaskCounts() (map[string]int64, error) {
	rows, err := s.conn.Query(`SELECT status, COUNT(*) FROM fetch_tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) SaveCrawlLog(l *models.CrawlLog) error {
	if l.ID == 0 {
		return s.conn.QueryRow(`
			INSERT INTO crawl_logs (job_type, started_at, finished_at, status,
				total_requests, successful_requests, failed_requests, blocked_requests, error_message)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING id`,
			l.JobType, l.StartedAt, l.FinishedAt, l.Status,
			l.TotalRequests, l.SuccessfulRequests, l.FailedRequests, l.BlockedRequests, l.ErrorMessage,
		).Scan(&l.ID)
	}
	_, err := s.conn.Exec(`
		UPDATE crawl_logs SET finished_at = $1, status = $2, total_requests = $3,
			successful_requests = $4, failed_requests = $5, blocked_requests = $6, error_message = $7
		WHERE id = $8`,
		l.FinishedAt, l.Status, l.TotalRequests, l.SuccessfulRequests,
		l.FailedRequests, l.BlockedRequests, l.ErrorMessage, l.ID)
	return err
}

func (s *PostgresStore) GetCrawlLog(id uint) (*models.CrawlLog, error) {
	var l models.CrawlLog
	var errMsg sql.NullString
	err := s.conn.QueryRow(`
		SELECT id, job_type, started_at, finished_at, status, total_requests,
			successful_requests, failed_requests, blocked_requests, error_message
		FROM crawl_logs WHERE id = $1`, id,
	).Scan(&l.ID, &l.JobType, &l.StartedAt, &l.FinishedAt, &l.Status,
		&l.TotalRequests, &l.SuccessfulRequests, &l.FailedRequests, &l.BlockedRequests, &errMsg)
	if err != nil {
		return nil, err
	}
	l.ErrorMessage = errMsg.String
	return &l, nil
}

func (s *PostgresStore) AddCrawlCounts(id uint, total, success, failed, blocked int) error {
	_, err := s.conn.Exec(`
		UPDATE crawl_logs SET
			total_requests = total_requests + $1,
			successful_requests = successful_requests + $2,
			failed_requests = failed_requests + $3,
			blocked_requests = blocked_requests + $4
		WHERE id = $5`,
		total, success, failed, blocked, id)
	return err
}

func (s *PostgresStore) RecentCrawlLogs(limit int) ([]models.CrawlLog, error) {
	query := `
		SELECT id, job_type, started_at, finished_at, status, total_requests,
			successful_requests, failed_requests, blocked_requests, error_message
		FROM crawl_logs ORDER BY started_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.CrawlLog
	for rows.Next() {
		var l models.CrawlLog
		var errMsg sql.NullString
		if err := rows.Scan(&l.ID, &l.JobType, &l.StartedAt, &l.FinishedAt, &l.Status,
			&l.TotalRequests, &l.SuccessfulRequests, &l.FailedRequests, &l.BlockedRequests, &errMsg); err != nil {
			return nil, err
		}
		l.ErrorMessage = errMsg.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *PostgresStore) DeleteSettledTasksBefore(cutoff time.Time) (int64, error) {
	res, err := s.conn.Exec(`
		DELETE FROM fetch_tasks
		WHERE status IN ('done', 'permanent_fail')
			AND completed_at IS NOT NULL AND completed_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *PostgresStore) DeleteCrawlLogsBefore(cutoff time.Time) (int64, error) {
	res, err := s.conn.Exec(`DELETE FROM crawl_logs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listingSelect = `
	SELECT id, external_id, name, host_id, room_type, latitude, longitude, target_id,
		bedrooms, bathrooms, max_guests, base_price, rating, review_count,
		status, first_seen, last_seen, created_at, updated_at
	FROM listings`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*models.Listing, error) {
	var l models.Listing
	var name, hostID, roomType, status sql.NullString
	err := row.Scan(&l.ID, &l.ExternalID, &name, &hostID, &roomType, &l.Latitude, &l.Longitude,
		&l.TargetID, &l.Bedrooms, &l.Bathrooms, &l.MaxGuests, &l.BasePrice, &l.Rating,
		&l.ReviewCount, &status, &l.FirstSeen, &l.LastSeen, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Name = name.String
	l.HostID = hostID.String
	l.RoomType = roomType.String
	l.Status = models.ListingStatus(status.String)
	return &l, nil
}

func (s *PostgresStore) queryListings(query string, args ...any) ([]models.Listing, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) queryObservations(query string, args ...any) ([]models.CalendarObservation, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var obs []models.CalendarObservation
	for rows.Next() {
		var o models.CalendarObservation
		if err := rows.Scan(&o.ID, &o.ListingID, &o.ObservedAt, &o.Date, &o.Available, &o.Price, &o.MinNights); err != nil {
			return nil, err
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

func (s *PostgresStore) queryClassifications(query string, args ...any) ([]models.DateClassification, error) {
	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var classes []models.DateClassification
	for rows.Next() {
		var c models.DateClassification
		var status string
		if err := rows.Scan(&c.ID, &c.ListingID, &c.Date, &status, &c.Confidence, &c.RecomputedAt); err != nil {
			return nil, err
		}
		c.Status = models.DateStatus(status)
		classes = append(classes, c)
	}
	return classes, rows.Err()
}

func intArray(values []int) any {
	arr := make([]int64, len(values))
	for i, v := range values {
		arr[i] = int64(v)
	}
	return pq.Array(arr)
}

func uintArray(values []uint) any {
	arr := make([]int64, len(values))
	for i, v := range values {
		arr[i] = int64(v)
	}
	return pq.Array(arr)
}
