package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"staywatch/internal/aggregate"
	"staywatch/internal/cleanup"
	"staywatch/internal/clock"
	"staywatch/internal/config"
	"staywatch/internal/models"
	"staywatch/internal/reconcile"
	"staywatch/internal/store"
)

// Scheduler owns the crawl cadence: search sweeps every interval, calendar
// sweeps nightly, detail refreshes weekly, and the reconcile+aggregate
// pipeline after the nightly window. Each sweep opens a CrawlLog and
// enqueues its tasks on the dispatcher; the dispatcher closes the log when
// the last task settles.
type Scheduler struct {
	cron       *cron.Cron
	store      store.Store
	dispatcher *Dispatcher
	reconciler *reconcile.Engine
	aggregator *aggregate.Engine
	cleaner    *cleanup.Service
	indexer    Indexer
	cfg        *config.Config
	clk        clock.Clock
	host       string
	isRunning  bool
}

func NewScheduler(st store.Store, d *Dispatcher, rec *reconcile.Engine, agg *aggregate.Engine, idx Indexer, cfg *config.Config, clk clock.Clock, host string) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		store:      st,
		dispatcher: d,
		reconciler: rec,
		aggregator: agg,
		cleaner:    cleanup.NewService(st, clk),
		indexer:    idx,
		cfg:        cfg,
		clk:        clk,
		host:       host,
	}
}

// Start registers the cron entries and starts ticking.
func (s *Scheduler) Start() error {
	interval := s.cfg.Scheduler.SearchIntervalMinutes
	if interval < 1 {
		interval = 60
	}
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %dm", interval), func() {
		if err := s.RunSearchSweep(); err != nil {
			log.Printf("Scheduler: Search sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}

	calendarSpec := parseDailyRunTime(s.cfg.Scheduler.CalendarRunTime, "03:00")
	if _, err := s.cron.AddFunc(calendarSpec, func() {
		if err := s.RunCalendarSweep(); err != nil {
			log.Printf("Scheduler: Calendar sweep failed: %v", err)
		}
	}); err != nil {
		return err
	}

	detailSpec := parseWeeklyRunTime(s.cfg.Scheduler.DetailRunDay, s.cfg.Scheduler.DetailRunTime)
	if _, err := s.cron.AddFunc(detailSpec, func() {
		if err := s.RunDetailRefresh(); err != nil {
			log.Printf("Scheduler: Detail refresh failed: %v", err)
		}
	}); err != nil {
		return err
	}

	// Analysis runs two hours after the calendar sweep opens, giving the
	// nightly tasks time to drain
	analysisSpec := shiftDailySpec(calendarSpec, 2)
	if _, err := s.cron.AddFunc(analysisSpec, func() {
		s.RunAnalysis()
	}); err != nil {
		return err
	}

	// Retention runs weekly, an hour after the detail refresh
	cleanupSpec := shiftWeeklySpec(detailSpec, 1)
	if _, err := s.cron.AddFunc(cleanupSpec, func() {
		if _, err := s.cleaner.Run(cleanup.DefaultConfig()); err != nil {
			log.Printf("Scheduler: Cleanup failed: %v", err)
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true
	log.Printf("Scheduler: Started (search=@every %dm, calendar=%q, detail=%q, analysis=%q)",
		interval, calendarSpec, detailSpec, analysisSpec)
	return nil
}

// Stop stops the cron loop. In-flight jobs finish on their own.
func (s *Scheduler) Stop() {
	if s.isRunning {
		s.cron.Stop()
		s.isRunning = false
		log.Println("Scheduler: Stopped")
	}
}

// RunSearchSweep enqueues one search task per configured target.
func (s *Scheduler) RunSearchSweep() error {
	targets, err := s.store.Targets(s.cfg.Crawler.TargetPriorities)
	if err != nil {
		return fmt.Errorf("load targets: %w", err)
	}
	if len(targets) == 0 {
		log.Println("Scheduler: Search sweep skipped, no targets configured")
		return nil
	}

	crawlLog := s.openCrawlLog(models.JobTypeSearch)
	enqueued := 0
	for i := range targets {
		targetID := targets[i].ID
		task := models.FetchTask{
			Kind:       models.TaskKindSearchSweep,
			TargetID:   &targetID,
			Host:       s.host,
			Tier:       targets[i].Priority,
			CrawlLogID: crawlLogID(crawlLog),
		}
		if err := s.dispatcher.Enqueue(task); err != nil {
			log.Printf("Scheduler: Failed to enqueue search for target %d: %v", targetID, err)
			continue
		}
		enqueued++
	}
	log.Printf("Scheduler: Search sweep enqueued %d/%d targets", enqueued, len(targets))

	s.markStale()
	return nil
}

// RunCalendarSweep enqueues one calendar task per active listing.
func (s *Scheduler) RunCalendarSweep() error {
	listings, err := s.store.ActiveListings()
	if err != nil {
		return fmt.Errorf("load active listings: %w", err)
	}
	if len(listings) == 0 {
		log.Println("Scheduler: Calendar sweep skipped, no active listings")
		return nil
	}

	crawlLog := s.openCrawlLog(models.JobTypeCalendar)
	enqueued := 0
	for i := range listings {
		listingID := listings[i].ID
		target, err := s.store.GetTarget(listings[i].TargetID)
		tier := models.TierLow
		if err == nil {
			tier = target.Priority
		}
		task := models.FetchTask{
			Kind:       models.TaskKindCalendarSweep,
			ListingID:  &listingID,
			Host:       s.host,
			Tier:       tier,
			CrawlLogID: crawlLogID(crawlLog),
		}
		if err := s.dispatcher.Enqueue(task); err != nil {
			log.Printf("Scheduler: Failed to enqueue calendar for listing %d: %v", listingID, err)
			continue
		}
		enqueued++
	}
	log.Printf("Scheduler: Calendar sweep enqueued %d/%d listings", enqueued, len(listings))
	return nil
}

// RunDetailRefresh enqueues one detail task per active listing.
func (s *Scheduler) RunDetailRefresh() error {
	listings, err := s.store.ActiveListings()
	if err != nil {
		return fmt.Errorf("load active listings: %w", err)
	}
	if len(listings) == 0 {
		return nil
	}

	crawlLog := s.openCrawlLog(models.JobTypeDetail)
	enqueued := 0
	for i := range listings {
		listingID := listings[i].ID
		task := models.FetchTask{
			Kind:       models.TaskKindDetailRefresh,
			ListingID:  &listingID,
			Host:       s.host,
			Tier:       models.TierLow,
			CrawlLogID: crawlLogID(crawlLog),
		}
		if err := s.dispatcher.Enqueue(task); err != nil {
			log.Printf("Scheduler: Failed to enqueue detail for listing %d: %v", listingID, err)
			continue
		}
		enqueued++
	}
	log.Printf("Scheduler: Detail refresh enqueued %d listings", enqueued)
	return nil
}

// RunAnalysis reconciles every active listing across a worker pool, then
// re-aggregates yesterday and the forward booking horizon.
func (s *Scheduler) RunAnalysis() {
	start := s.clk.Now()
	log.Println("Scheduler: Analysis starting")

	listings, err := s.store.ActiveListings()
	if err != nil {
		log.Printf("Scheduler: Analysis aborted, cannot load listings: %v", err)
		return
	}

	workers := s.cfg.Scheduler.ReconcileWorkers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	classified := 0

	for i := range listings {
		listingID := listings[i].ID
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			n, err := s.reconciler.ReconcileListing(listingID)
			if err != nil {
				log.Printf("Scheduler: Reconcile failed for listing %d: %v", listingID, err)
				return
			}
			mu.Lock()
			classified += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	from := dayStart(start.AddDate(0, 0, -1))
	to := dayStart(start.AddDate(0, 0, s.cfg.Crawler.LookaheadDays))
	rows, err := s.aggregator.AggregateRange(from, to)
	if err != nil {
		log.Printf("Scheduler: Aggregation failed: %v", err)
	}

	log.Printf("Scheduler: Analysis done in %v (%d listings, %d dates classified, %d stat rows)",
		s.clk.Now().Sub(start), len(listings), classified, rows)
}

// markStale flags listings absent from sweeps longer than the configured
// window and drops them from the search index.
func (s *Scheduler) markStale() {
	days := s.cfg.Crawler.StaleAfterDays
	if days <= 0 {
		return
	}
	cutoff := s.clk.Now().AddDate(0, 0, -days)
	ids, err := s.store.MarkStaleListings(cutoff)
	if err != nil {
		log.Printf("Scheduler: Failed to mark stale listings: %v", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	log.Printf("Scheduler: Marked %d listings stale (last seen before %s)",
		len(ids), cutoff.Format("2006-01-02"))

	if s.indexer == nil {
		return
	}
	for _, id := range ids {
		if err := s.indexer.RemoveListing(id); err != nil {
			log.Printf("Scheduler: Failed to deindex stale listing %d: %v", id, err)
		}
	}
}

func (s *Scheduler) openCrawlLog(jobType string) *models.CrawlLog {
	l := &models.CrawlLog{
		JobType:   jobType,
		StartedAt: s.clk.Now(),
	}
	if err := s.store.SaveCrawlLog(l); err != nil {
		log.Printf("Scheduler: Failed to open crawl log for %s: %v", jobType, err)
		return nil
	}
	return l
}

func crawlLogID(l *models.CrawlLog) *uint {
	if l == nil {
		return nil
	}
	id := l.ID
	return &id
}

// parseDailyRunTime converts HH:MM to a daily cron spec.
func parseDailyRunTime(timeStr, fallback string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n == 2 && hour >= 0 && hour < 24 && minute >= 0 && minute < 60 {
		return fmt.Sprintf("%d %d * * *", minute, hour)
	}
	log.Printf("Scheduler: Failed to parse time %q, using default %s", timeStr, fallback)
	fmt.Sscanf(fallback, "%d:%d", &hour, &minute)
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// parseWeeklyRunTime converts a day-of-week name and HH:MM to a weekly
// cron spec.
func parseWeeklyRunTime(day, timeStr string) string {
	var hour, minute int
	n, _ := fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
	if n != 2 || hour < 0 || hour >= 24 || minute < 0 || minute >= 60 {
		hour, minute = 5, 0
	}
	if day == "" {
		day = "MON"
	}
	return fmt.Sprintf("%d %d * * %s", minute, hour, day)
}

// shiftDailySpec moves a daily "m h * * *" spec forward by hours, wrapping
// at midnight.
func shiftDailySpec(spec string, hours int) string {
	var minute, hour int
	n, _ := fmt.Sscanf(spec, "%d %d", &minute, &hour)
	if n != 2 {
		return spec
	}
	hour = (hour + hours) % 24
	return fmt.Sprintf("%d %d * * *", minute, hour)
}

// shiftWeeklySpec moves a weekly "m h * * DOW" spec forward by hours within
// the same day.
func shiftWeeklySpec(spec string, hours int) string {
	var minute, hour int
	var dow string
	n, _ := fmt.Sscanf(spec, "%d %d * * %s", &minute, &hour, &dow)
	if n != 3 {
		return spec
	}
	hour = (hour + hours) % 24
	return fmt.Sprintf("%d %d * * %s", minute, hour, dow)
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
