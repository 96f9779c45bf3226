package aggregate

import (
	"log"
	"time"

	"staywatch/internal/clock"
	"staywatch/internal/models"
	"staywatch/internal/store"
)

// Engine rolls date classifications up into per-target daily stats, split
// by room type plus an all-types bucket. Stats are fully recomputed from
// classifications and price history on every run; nothing accumulates
// incrementally, so a re-run after late-arriving observations converges to
// the corrected numbers.
type Engine struct {
	store store.Store
	clk   clock.Clock
}

func NewEngine(st store.Store, clk clock.Clock) *Engine {
	return &Engine{store: st, clk: clk}
}

// AggregateTargetDate computes and upserts one DailyStat per room type
// (including the "" all-types bucket) for a target and calendar date.
// Returns the number of rows written.
func (e *Engine) AggregateTargetDate(targetID uint, date time.Time) (int, error) {
	rows := 0
	for _, roomType := range models.AggregatedRoomTypes {
		listings, err := e.store.Listings(targetID, roomType)
		if err != nil {
			return rows, err
		}
		if len(listings) == 0 {
			continue
		}

		stat, err := e.computeStat(targetID, date, roomType, listings)
		if err != nil {
			return rows, err
		}
		if err := e.store.UpsertDailyStat(stat); err != nil {
			return rows, err
		}
		rows++
	}
	return rows, nil
}

// AggregateDate aggregates every known target for one date.
func (e *Engine) AggregateDate(date time.Time) (int, error) {
	targets, err := e.store.Targets(nil)
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range targets {
		n, err := e.AggregateTargetDate(targets[i].ID, date)
		if err != nil {
			log.Printf("Aggregate: target %d on %s failed: %v",
				targets[i].ID, date.Format("2006-01-02"), err)
			continue
		}
		total += n
	}
	return total, nil
}

// AggregateRange re-aggregates each date in [from, to] inclusive.
func (e *Engine) AggregateRange(from, to time.Time) (int, error) {
	total := 0
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		n, err := e.AggregateDate(d)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// computeStat builds one DailyStat row. Occupancy counts booked over
// booked+available: unknown dates carry no information and blocked dates
// are not sellable inventory, so neither belongs in the denominator.
// Revenue sums each booked date's last observed nightly price.
func (e *Engine) computeStat(targetID uint, date time.Time, roomType string, listings []models.Listing) (*models.DailyStat, error) {
	ids := make([]uint, len(listings))
	for i := range listings {
		ids[i] = listings[i].ID
	}

	classes, err := e.store.ClassificationsForDate(ids, date)
	if err != nil {
		return nil, err
	}

	var booked, available int
	var revenue, priceSum float64
	var priced int

	for i := range classes {
		switch classes[i].Status {
		case models.StatusAvailable:
			available++
		case models.StatusBooked:
			booked++
			price, err := e.lastObservedPrice(classes[i].ListingID, date)
			if err != nil {
				return nil, err
			}
			if price > 0 {
				revenue += price
				priceSum += price
				priced++
			}
		}
	}

	stat := &models.DailyStat{
		TargetID:         targetID,
		Date:             date,
		RoomType:         roomType,
		TotalListings:    len(listings),
		BookedCount:      booked,
		EstimatedRevenue: revenue,
		ComputedAt:       e.clk.Now(),
	}
	if denom := booked + available; denom > 0 {
		stat.OccupancyRate = float64(booked) / float64(denom)
	}
	if priced > 0 {
		stat.AvgDailyPrice = priceSum / float64(priced)
	}
	return stat, nil
}

// lastObservedPrice returns the most recent non-nil price seen for the
// listing on the given date, or 0 when no observation carried one.
func (e *Engine) lastObservedPrice(listingID uint, date time.Time) (float64, error) {
	history, err := e.store.History(listingID, date)
	if err != nil {
		return 0, err
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Price != nil {
			return *history[i].Price, nil
		}
	}
	return 0, nil
}
