package scheduler

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"staywatch/internal/clock"
	"staywatch/internal/config"
	"staywatch/internal/fetch"
	"staywatch/internal/models"
	"staywatch/internal/store"
)

// Indexer pushes listing documents into the search index. Indexing is
// best-effort: a nil Indexer disables it and failures never fail the task.
type Indexer interface {
	IndexListing(listing *models.Listing) error
	IndexListings(listings []models.Listing) error
	RemoveListing(id uint) error
}

// Runner executes one fetch task: it calls the marketplace client and
// persists what came back. All writes to the observation tables are
// appends; listing rows are the only thing a sweep mutates in place.
type Runner struct {
	store   store.Store
	client  fetch.Client
	indexer Indexer
	cfg     *config.Config
	clk     clock.Clock
}

func NewRunner(st store.Store, client fetch.Client, idx Indexer, cfg *config.Config, clk clock.Clock) *Runner {
	return &Runner{store: st, client: client, indexer: idx, cfg: cfg, clk: clk}
}

// Run executes a task by kind.
func (r *Runner) Run(ctx context.Context, task *models.FetchTask) error {
	switch task.Kind {
	case models.TaskKindSearchSweep:
		return r.runSearch(ctx, task)
	case models.TaskKindCalendarSweep:
		return r.runCalendar(ctx, task)
	case models.TaskKindDetailRefresh:
		return r.runDetail(ctx, task)
	default:
		return fmt.Errorf("unknown task kind: %s", task.Kind)
	}
}

// runSearch sweeps one target: appends a SearchSnapshot with the market
// aggregates of the payload and upserts every listing seen.
func (r *Runner) runSearch(ctx context.Context, task *models.FetchTask) error {
	if task.TargetID == nil {
		return fmt.Errorf("search_sweep task %d has no target", task.ID)
	}
	target, err := r.store.GetTarget(*task.TargetID)
	if err != nil {
		return fmt.Errorf("load target %d: %w", *task.TargetID, err)
	}

	now := r.clk.Now()
	window := fetch.StayWindow{
		Checkin:  now.AddDate(0, 0, 1),
		Checkout: now.AddDate(0, 0, 2),
	}

	payload, err := r.client.FetchSearch(ctx, *target, window)
	if err != nil {
		return err
	}

	snap := buildSearchSnapshot(target.ID, now, window, payload)
	if err := r.store.AppendSearchSnapshot(snap); err != nil {
		return fmt.Errorf("append search snapshot: %w", err)
	}

	upserted := make([]models.Listing, 0, len(payload.Listings))
	for i := range payload.Listings {
		sl := payload.Listings[i]
		if sl.ExternalID == "" {
			continue
		}
		listing := &models.Listing{
			ExternalID:  sl.ExternalID,
			Name:        sl.Name,
			HostID:      sl.HostID,
			RoomType:    sl.RoomType,
			Latitude:    sl.Latitude,
			Longitude:   sl.Longitude,
			TargetID:    target.ID,
			BasePrice:   sl.Price,
			Rating:      sl.Rating,
			ReviewCount: sl.ReviewCount,
			FirstSeen:   now,
			LastSeen:    now,
		}
		saved, err := r.store.UpsertListing(listing)
		if err != nil {
			return fmt.Errorf("upsert listing %s: %w", sl.ExternalID, err)
		}
		upserted = append(upserted, *saved)
	}

	if r.indexer != nil {
		if err := r.indexer.IndexListings(upserted); err != nil {
			log.Printf("Runner: Failed to index %d listings for target %d: %v", len(upserted), target.ID, err)
		}
	}
	return nil
}

// runCalendar fetches a listing's forward calendar and appends one
// observation per day, all stamped with the same observed_at.
func (r *Runner) runCalendar(ctx context.Context, task *models.FetchTask) error {
	if task.ListingID == nil {
		return fmt.Errorf("calendar_sweep task %d has no listing", task.ID)
	}
	listing, err := r.store.GetListing(*task.ListingID)
	if err != nil {
		return fmt.Errorf("load listing %d: %w", *task.ListingID, err)
	}

	now := r.clk.Now()
	months := (r.cfg.Crawler.LookaheadDays + 29) / 30
	if months < 1 {
		months = 1
	}

	payload, err := r.client.FetchCalendar(ctx, *listing, now, months)
	if err != nil {
		return err
	}

	horizon := now.AddDate(0, 0, r.cfg.Crawler.LookaheadDays)
	obs := make([]models.CalendarObservation, 0, len(payload.Days))
	for i := range payload.Days {
		day := payload.Days[i]
		if day.Date.After(horizon) {
			continue
		}
		obs = append(obs, models.CalendarObservation{
			ListingID:  listing.ID,
			ObservedAt: now,
			Date:       day.Date,
			Available:  day.Available,
			Price:      day.Price,
			MinNights:  day.MinNights,
		})
	}
	if err := r.store.AppendCalendarObservations(obs); err != nil {
		return fmt.Errorf("append calendar observations: %w", err)
	}
	return nil
}

// runDetail refreshes a listing's descriptive attributes.
func (r *Runner) runDetail(ctx context.Context, task *models.FetchTask) error {
	if task.ListingID == nil {
		return fmt.Errorf("detail_refresh task %d has no listing", task.ID)
	}
	listing, err := r.store.GetListing(*task.ListingID)
	if err != nil {
		return fmt.Errorf("load listing %d: %w", *task.ListingID, err)
	}

	payload, err := r.client.FetchDetail(ctx, *listing)
	if err != nil {
		return err
	}

	now := r.clk.Now()
	listing.Name = payload.Name
	if payload.HostID != "" {
		listing.HostID = payload.HostID
	}
	if payload.RoomType != "" {
		listing.RoomType = payload.RoomType
	}
	listing.Bedrooms = payload.Bedrooms
	listing.Bathrooms = payload.Bathrooms
	listing.MaxGuests = payload.MaxGuests
	listing.LastSeen = now
	saved, err := r.store.UpsertListing(listing)
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", listing.ExternalID, err)
	}

	if r.indexer != nil {
		if err := r.indexer.IndexListing(saved); err != nil {
			log.Printf("Runner: Failed to index listing %d: %v", saved.ID, err)
		}
	}
	return nil
}

// buildSearchSnapshot computes the per-sweep market aggregates.
func buildSearchSnapshot(targetID uint, now time.Time, window fetch.StayWindow, payload *fetch.SearchPayload) *models.SearchSnapshot {
	snap := &models.SearchSnapshot{
		TargetID:      targetID,
		ObservedAt:    now,
		CheckinDate:   window.Checkin,
		CheckoutDate:  window.Checkout,
		TotalListings: len(payload.Listings),
		PayloadHash:   fetch.PayloadHash(payload.Raw),
	}

	var prices []float64
	for i := range payload.Listings {
		if payload.Listings[i].Available {
			snap.AvailableCount++
		}
		if p := payload.Listings[i].Price; p != nil && *p > 0 {
			prices = append(prices, *p)
		}
	}
	if len(prices) == 0 {
		return snap
	}

	sort.Float64s(prices)
	sum := 0.0
	for _, p := range prices {
		sum += p
	}
	snap.AvgPrice = sum / float64(len(prices))
	snap.MinPrice = prices[0]
	snap.MaxPrice = prices[len(prices)-1]

	mid := len(prices) / 2
	if len(prices)%2 == 1 {
		snap.MedianPrice = prices[mid]
	} else {
		snap.MedianPrice = (prices[mid-1] + prices[mid]) / 2
	}
	return snap
}
