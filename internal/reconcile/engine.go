package reconcile

import (
	"log"
	"sort"
	"time"

	"staywatch/internal/clock"
	"staywatch/internal/config"
	"staywatch/internal/models"
	"staywatch/internal/store"
)

// Engine turns the append-only calendar observation history into per-date
// classifications. Classifications are derived state: every run recomputes
// them from scratch off the full history, so re-running over the same data
// is a no-op.
//
// The status model: a date starts unknown; the first observation sets a
// baseline (available, or blocked when the date was never seen open); an
// available→unavailable flip marks it booked, weighted by how far ahead of
// the stay date the flip was seen. An unavailable→available reversal is a
// cancellation and resets the baseline with low confidence.
type Engine struct {
	store store.Store
	cfg   config.ReconcileConfig
	clk   clock.Clock
}

func NewEngine(st store.Store, cfg config.ReconcileConfig, clk clock.Clock) *Engine {
	return &Engine{store: st, cfg: cfg, clk: clk}
}

// ReconcileListing recomputes every date classification for one listing.
// Returns the number of dates classified.
func (e *Engine) ReconcileListing(listingID uint) (int, error) {
	history, err := e.store.ListingHistory(listingID)
	if err != nil {
		return 0, err
	}
	if len(history) == 0 {
		return 0, nil
	}

	now := e.clk.Now()
	classes := ClassifyHistory(listingID, history, e.cfg, now)
	if err := e.store.ReplaceClassifications(listingID, classes); err != nil {
		return 0, err
	}
	return len(classes), nil
}

// ReconcileAll runs reconciliation over every active listing.
func (e *Engine) ReconcileAll() (int, error) {
	listings, err := e.store.ActiveListings()
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range listings {
		n, err := e.ReconcileListing(listings[i].ID)
		if err != nil {
			log.Printf("Reconcile: listing %d failed: %v", listings[i].ID, err)
			continue
		}
		total += n
	}
	return total, nil
}

// ClassifyHistory classifies every calendar date appearing in a listing's
// observation history. The input may be in any order; observations are
// grouped by date and replayed oldest first.
func ClassifyHistory(listingID uint, history []models.CalendarObservation, cfg config.ReconcileConfig, now time.Time) []models.DateClassification {
	byDate := make(map[time.Time][]models.CalendarObservation)
	for i := range history {
		d := dayKey(history[i].Date)
		byDate[d] = append(byDate[d], history[i])
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	classes := make([]models.DateClassification, 0, len(dates))
	for _, d := range dates {
		status, confidence := ClassifyDate(d, byDate[d], cfg)
		classes = append(classes, models.DateClassification{
			ListingID:    listingID,
			Date:         d,
			Status:       status,
			Confidence:   confidence,
			RecomputedAt: now,
		})
	}
	return classes
}

// ClassifyDate replays the observations of a single calendar date and
// returns its status and confidence.
//
// Rules, in replay order:
//   - no observations: unknown.
//   - first observation available: available at the baseline confidence.
//   - first observation unavailable: blocked, never booked. A date that was
//     never seen open gives no evidence of a transaction, only of a host
//     that kept it closed.
//   - available→available: corroboration, confidence steps up.
//   - available→unavailable: booked. Confidence depends on lead time: a
//     flip seen the day before the stay is near MaxFlipConfidence, one
//     seen LeadTimeHorizonDays out floors at MinFlipConfidence. Far-future
//     closures are more often host blocks placed in advance.
//   - unavailable→unavailable: corroborates booked or blocked.
//   - unavailable→available: cancellation. Back to available, confidence
//     reset low since the history is ambiguous again.
//   - once a date's history spans a gap wider than MaxGap, confidence is
//     capped at GapConfidenceCeiling for the rest of the replay; later
//     corroboration cannot lift it back out. Gaps widen uncertainty; they
//     never invent a transition.
//
// Observations made after the stay date has passed are ignored: remote
// calendars show past dates as unavailable regardless of what happened.
func ClassifyDate(date time.Time, obs []models.CalendarObservation, cfg config.ReconcileConfig) (models.DateStatus, float64) {
	sort.SliceStable(obs, func(i, j int) bool {
		return obs[i].ObservedAt.Before(obs[j].ObservedAt)
	})

	dayEnd := dayKey(date).Add(24 * time.Hour)
	maxGap := cfg.GetMaxGap()

	status := models.StatusUnknown
	confidence := 0.0
	gapped := false
	var prev *models.CalendarObservation

	for i := range obs {
		o := &obs[i]
		if !o.ObservedAt.Before(dayEnd) {
			continue
		}

		if prev != nil && maxGap > 0 && o.ObservedAt.Sub(prev.ObservedAt) > maxGap {
			gapped = true
		}

		if prev == nil {
			if o.Available {
				status = models.StatusAvailable
				confidence = cfg.BaselineConfidence
			} else {
				status = models.StatusBlocked
				confidence = cfg.FirstBlockedConfidence
			}
			prev = o
			continue
		}

		switch {
		case prev.Available && o.Available:
			confidence += cfg.CorroborationStep
		case prev.Available && !o.Available:
			status = models.StatusBooked
			confidence = flipConfidence(date, o.ObservedAt, cfg)
		case !prev.Available && !o.Available:
			confidence += cfg.CorroborationStep
		case !prev.Available && o.Available:
			status = models.StatusAvailable
			confidence = cfg.CancellationConfidence
		}

		if gapped && confidence > cfg.GapConfidenceCeiling {
			confidence = cfg.GapConfidenceCeiling
		}
		prev = o
	}

	if confidence > cfg.ConfidenceCap {
		confidence = cfg.ConfidenceCap
	}
	return status, confidence
}

// flipConfidence interpolates between MaxFlipConfidence (flip observed at
// the stay date) and MinFlipConfidence (flip observed LeadTimeHorizonDays
// or more ahead).
func flipConfidence(date, observedAt time.Time, cfg config.ReconcileConfig) float64 {
	horizon := float64(cfg.LeadTimeHorizonDays)
	if horizon <= 0 {
		return cfg.MaxFlipConfidence
	}

	lead := dayKey(date).Sub(dayKey(observedAt)).Hours() / 24
	if lead < 0 {
		lead = 0
	}
	frac := lead / horizon
	if frac > 1 {
		frac = 1
	}
	return cfg.MaxFlipConfidence + (cfg.MinFlipConfidence-cfg.MaxFlipConfidence)*frac
}

func dayKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
