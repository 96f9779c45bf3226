package reconcile

import (
	"testing"
	"time"

	"staywatch/internal/config"
	"staywatch/internal/models"
)

func testConfig() config.ReconcileConfig {
	return config.DefaultConfig().Reconcile
}

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func at(d, hour int) time.Time {
	return time.Date(2026, 3, d, hour, 0, 0, 0, time.UTC)
}

func obs(observed time.Time, date time.Time, available bool) models.CalendarObservation {
	return models.CalendarObservation{
		ListingID:  1,
		ObservedAt: observed,
		Date:       date,
		Available:  available,
	}
}

func TestClassifyDateNoObservations(t *testing.T) {
	status, confidence := ClassifyDate(day(20), nil, testConfig())
	if status != models.StatusUnknown {
		t.Errorf("expected unknown, got %s", status)
	}
	if confidence != 0 {
		t.Errorf("expected zero confidence, got %f", confidence)
	}
}

func TestClassifyDateFirstAvailable(t *testing.T) {
	cfg := testConfig()
	history := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
	}
	status, confidence := ClassifyDate(day(20), history, cfg)
	if status != models.StatusAvailable {
		t.Errorf("expected available, got %s", status)
	}
	if confidence != cfg.BaselineConfidence {
		t.Errorf("expected baseline confidence %f, got %f", cfg.BaselineConfidence, confidence)
	}
}

func TestClassifyDateFirstObservationUnavailableIsBlocked(t *testing.T) {
	cfg := testConfig()
	history := []models.CalendarObservation{
		obs(at(1, 3), day(20), false),
	}
	status, confidence := ClassifyDate(day(20), history, cfg)
	if status != models.StatusBlocked {
		t.Errorf("date never seen open must classify blocked, got %s", status)
	}
	if confidence != cfg.FirstBlockedConfidence {
		t.Errorf("expected %f, got %f", cfg.FirstBlockedConfidence, confidence)
	}
}

func TestClassifyDateFlipIsBooked(t *testing.T) {
	history := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
		obs(at(2, 3), day(20), false),
	}
	status, confidence := ClassifyDate(day(20), history, testConfig())
	if status != models.StatusBooked {
		t.Errorf("available then unavailable must classify booked, got %s", status)
	}
	if confidence <= 0.5 {
		t.Errorf("near-term flip should score high, got %f", confidence)
	}
}

func TestClassifyDateLeadTimeWeighting(t *testing.T) {
	cfg := testConfig()

	// Flip observed 18 days before the stay date.
	near := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
		obs(at(2, 3), day(20), false),
	}
	// Same history shape, stay date ~3 months out.
	farDate := time.Date(2026, 6, 20, 0, 0, 0, 0, time.UTC)
	far := []models.CalendarObservation{
		obs(at(1, 3), farDate, true),
		obs(at(2, 3), farDate, false),
	}

	_, nearConf := ClassifyDate(day(20), near, cfg)
	_, farConf := ClassifyDate(farDate, far, cfg)

	if nearConf <= farConf {
		t.Errorf("near-term flip (%f) must outrank far-future flip (%f)", nearConf, farConf)
	}
	if farConf != cfg.MinFlipConfidence {
		t.Errorf("flip beyond the horizon should floor at %f, got %f", cfg.MinFlipConfidence, farConf)
	}
}

func TestClassifyDateCorroborationIsMonotonic(t *testing.T) {
	cfg := testConfig()
	history := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
	}

	prev := 0.0
	for d := 2; d <= 8; d++ {
		history = append(history, obs(at(d, 3), day(20), true))
		status, confidence := ClassifyDate(day(20), history, cfg)
		if status != models.StatusAvailable {
			t.Fatalf("status changed without a transition: %s", status)
		}
		if confidence < prev {
			t.Fatalf("confidence decreased on corroboration: %f -> %f", prev, confidence)
		}
		prev = confidence
	}
}

func TestClassifyDateConfidenceCap(t *testing.T) {
	cfg := testConfig()
	history := []models.CalendarObservation{obs(at(1, 3), day(25), false)}
	for d := 2; d <= 15; d++ {
		history = append(history, obs(at(d, 3), day(25), false))
	}
	_, confidence := ClassifyDate(day(25), history, cfg)
	if confidence > cfg.ConfidenceCap {
		t.Errorf("confidence %f exceeds cap %f", confidence, cfg.ConfidenceCap)
	}
}

func TestClassifyDateCancellation(t *testing.T) {
	cfg := testConfig()
	reversed := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
		obs(at(2, 3), day(20), false),
		obs(at(3, 3), day(20), true),
	}
	clean := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
	}

	status, revConf := ClassifyDate(day(20), reversed, cfg)
	if status != models.StatusAvailable {
		t.Errorf("cancellation must revert to available, got %s", status)
	}
	_, cleanConf := ClassifyDate(day(20), clean, cfg)
	if revConf >= cleanConf {
		t.Errorf("reversed history (%f) must score below a clean one (%f)", revConf, cleanConf)
	}
}

func TestClassifyDateGapCapsConfidence(t *testing.T) {
	cfg := testConfig()

	// The flip is observed across a 10-day gap: it cannot reach high
	// confidence no matter how close the stay date is.
	history := []models.CalendarObservation{
		obs(at(1, 3), day(12), true),
		obs(at(11, 3), day(12), false),
	}
	status, confidence := ClassifyDate(day(12), history, cfg)
	if status != models.StatusBooked {
		t.Fatalf("expected booked, got %s", status)
	}
	if confidence > cfg.GapConfidenceCeiling {
		t.Errorf("gapped flip confidence %f exceeds ceiling %f", confidence, cfg.GapConfidenceCeiling)
	}
}

func TestClassifyDateGapCapIsSticky(t *testing.T) {
	cfg := testConfig()

	// Dense corroboration after a 10-day gap must not step confidence back
	// above the ceiling: the gap stays in the date's history.
	history := []models.CalendarObservation{
		obs(at(1, 3), day(21), false),
		obs(at(11, 3), day(21), false),
	}
	for d := 12; d <= 20; d++ {
		history = append(history, obs(at(d, 3), day(21), false))
	}

	status, confidence := ClassifyDate(day(21), history, cfg)
	if status != models.StatusBlocked {
		t.Fatalf("expected blocked, got %s", status)
	}
	if confidence > cfg.GapConfidenceCeiling {
		t.Errorf("post-gap corroboration lifted confidence to %f, ceiling is %f",
			confidence, cfg.GapConfidenceCeiling)
	}
}

func TestClassifyDateGapCapAfterFlipIsSticky(t *testing.T) {
	cfg := testConfig()

	// Same invariant on the booked path: a gapped flip plus daily
	// corroboration stays at the ceiling.
	history := []models.CalendarObservation{
		obs(at(1, 3), day(21), true),
		obs(at(11, 3), day(21), false),
	}
	for d := 12; d <= 20; d++ {
		history = append(history, obs(at(d, 3), day(21), false))
	}

	status, confidence := ClassifyDate(day(21), history, cfg)
	if status != models.StatusBooked {
		t.Fatalf("expected booked, got %s", status)
	}
	if confidence > cfg.GapConfidenceCeiling {
		t.Errorf("post-gap corroboration lifted confidence to %f, ceiling is %f",
			confidence, cfg.GapConfidenceCeiling)
	}
}

func TestClassifyDateIgnoresObservationsAfterStayDate(t *testing.T) {
	cfg := testConfig()

	// The calendar shows past dates closed regardless of what happened;
	// an observation made after the stay must not flip it to booked.
	history := []models.CalendarObservation{
		obs(at(1, 3), day(5), true),
		obs(at(10, 3), day(5), false),
	}
	status, _ := ClassifyDate(day(5), history, cfg)
	if status != models.StatusAvailable {
		t.Errorf("post-stay observation leaked into classification: %s", status)
	}
}

func TestClassifyDateDeterministic(t *testing.T) {
	cfg := testConfig()
	history := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
		obs(at(2, 3), day(20), true),
		obs(at(3, 3), day(20), false),
	}

	s1, c1 := ClassifyDate(day(20), history, cfg)
	s2, c2 := ClassifyDate(day(20), history, cfg)
	if s1 != s2 || c1 != c2 {
		t.Errorf("same history produced different results: %s/%f vs %s/%f", s1, c1, s2, c2)
	}
}

func TestClassifyHistoryGroupsByDate(t *testing.T) {
	now := at(4, 12)
	history := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
		obs(at(2, 3), day(20), false),
		obs(at(1, 3), day(21), false),
		obs(at(1, 3), day(22), true),
	}

	classes := ClassifyHistory(1, history, testConfig(), now)
	if len(classes) != 3 {
		t.Fatalf("expected 3 classified dates, got %d", len(classes))
	}

	byDate := make(map[time.Time]models.DateClassification)
	for _, c := range classes {
		byDate[c.Date] = c
		if !c.RecomputedAt.Equal(now) {
			t.Errorf("recomputed_at not stamped: %v", c.RecomputedAt)
		}
	}

	if got := byDate[day(20)].Status; got != models.StatusBooked {
		t.Errorf("day 20: expected booked, got %s", got)
	}
	if got := byDate[day(21)].Status; got != models.StatusBlocked {
		t.Errorf("day 21: expected blocked, got %s", got)
	}
	if got := byDate[day(22)].Status; got != models.StatusAvailable {
		t.Errorf("day 22: expected available, got %s", got)
	}
}

func TestClassifyHistoryOrderIndependent(t *testing.T) {
	cfg := testConfig()
	now := at(4, 12)
	ordered := []models.CalendarObservation{
		obs(at(1, 3), day(20), true),
		obs(at(2, 3), day(20), true),
		obs(at(3, 3), day(20), false),
	}
	shuffled := []models.CalendarObservation{ordered[2], ordered[0], ordered[1]}

	a := ClassifyHistory(1, ordered, cfg, now)
	b := ClassifyHistory(1, shuffled, cfg, now)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected one date each, got %d and %d", len(a), len(b))
	}
	if a[0].Status != b[0].Status || a[0].Confidence != b[0].Confidence {
		t.Errorf("input order changed the result: %s/%f vs %s/%f",
			a[0].Status, a[0].Confidence, b[0].Status, b[0].Confidence)
	}
}
