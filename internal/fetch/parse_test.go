package fetch

import (
	"errors"
	"fmt"
	"testing"

	"staywatch/internal/ratelimit"
)

func TestParseSearchPayload(t *testing.T) {
	body := []byte(`{"data":{"results":[
		{"id":"a1","name":"Riverside loft","host_id":"h9","room_type":"entire_home","price":95000,"rating":4.8,"review_count":120,"available":true},
		{"id":"","name":"ghost"},
		{"id":"b2","name":"Garden studio","room_type":"private_room"}
	]}}`)

	payload, err := parseSearchPayload(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(payload.Listings) != 2 {
		t.Fatalf("expected 2 listings (empty id skipped), got %d", len(payload.Listings))
	}
	first := payload.Listings[0]
	if first.ExternalID != "a1" || first.Name != "Riverside loft" {
		t.Errorf("first listing mismatch: %+v", first)
	}
	if first.Price == nil || *first.Price != 95000 {
		t.Errorf("expected price 95000, got %v", first.Price)
	}
	// available defaults to true when the field is absent
	if !payload.Listings[1].Available {
		t.Error("missing available field should default to true")
	}
	if len(payload.Raw) == 0 {
		t.Error("raw body must be preserved for snapshot hashing")
	}
}

func TestParseSearchPayloadMalformed(t *testing.T) {
	_, err := parseSearchPayload([]byte(`<<not json>>`))
	if err == nil {
		t.Fatal("expected an error")
	}
	if !IsParse(err) {
		t.Errorf("malformed body should yield a ParseError, got %T", err)
	}
}

func TestParseCalendarPayload(t *testing.T) {
	body := []byte(`{"data":{"calendar":{"months":[{"days":[
		{"date":"2026-04-05","available":true,"price":{"amount":88000},"min_nights":2},
		{"date":"2026-04-06","available":false},
		{"date":"oops","available":true}
	]}]}}}`)

	payload, err := parseCalendarPayload(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(payload.Days) != 2 {
		t.Fatalf("expected 2 days (malformed date skipped), got %d", len(payload.Days))
	}
	d := payload.Days[0]
	if d.Date.Format("2006-01-02") != "2026-04-05" || !d.Available {
		t.Errorf("first day mismatch: %+v", d)
	}
	if d.Price == nil || *d.Price != 88000 {
		t.Errorf("expected price 88000, got %v", d.Price)
	}
	if d.MinNights == nil || *d.MinNights != 2 {
		t.Errorf("expected min nights 2, got %v", d.MinNights)
	}
	if payload.Days[1].Price != nil {
		t.Error("unavailable day without price should carry nil price")
	}
}

func TestParseCalendarPayloadEmpty(t *testing.T) {
	_, err := parseCalendarPayload([]byte(`{"data":{"calendar":{"months":[]}}}`))
	if !IsParse(err) {
		t.Errorf("empty calendar should yield a ParseError, got %v", err)
	}
}

func TestParseDetailPayload(t *testing.T) {
	body := []byte(`{"data":{"listing":{"name":"Riverside loft","host_id":"h9","room_type":"entire_home","bedrooms":2,"bathrooms":1.5,"max_guests":4}}}`)
	payload, err := parseDetailPayload(body)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if payload.Name != "Riverside loft" || payload.RoomType != "entire_home" {
		t.Errorf("detail mismatch: %+v", payload)
	}
	if payload.Bathrooms == nil || *payload.Bathrooms != 1.5 {
		t.Errorf("expected 1.5 bathrooms, got %v", payload.Bathrooms)
	}

	_, err = parseDetailPayload([]byte(`{"data":{"listing":{}}}`))
	if !IsParse(err) {
		t.Errorf("empty listing should yield a ParseError, got %v", err)
	}
}

func TestErrorClassification(t *testing.T) {
	blocked := &BlockedError{Reason: "captcha", StatusCode: 200}
	transport := &TransportError{Op: "calendar", Err: errors.New("connection reset")}
	parse := &ParseError{Op: "search", Err: errors.New("unexpected shape")}

	if !IsBlocked(blocked) || IsBlocked(transport) || IsBlocked(parse) {
		t.Error("IsBlocked misclassifies")
	}
	if !IsTransport(transport) || IsTransport(blocked) {
		t.Error("IsTransport misclassifies")
	}
	if !IsParse(parse) || IsParse(blocked) {
		t.Error("IsParse misclassifies")
	}

	// classification must survive wrapping
	wrapped := fmt.Errorf("task 7: %w", blocked)
	if !IsBlocked(wrapped) {
		t.Error("IsBlocked should see through wrapping")
	}
}

func TestGovernorOutcome(t *testing.T) {
	if got := GovernorOutcome(nil); got != ratelimit.OutcomeSuccess {
		t.Errorf("nil error: got %v", got)
	}
	if got := GovernorOutcome(&BlockedError{Reason: "forbidden", StatusCode: 403}); got != ratelimit.OutcomeSoftBlock {
		t.Errorf("blocked: got %v", got)
	}
	if got := GovernorOutcome(&TransportError{Op: "search", Err: errors.New("timeout")}); got != ratelimit.OutcomeHardError {
		t.Errorf("transport: got %v", got)
	}
	// a parse failure means the request itself succeeded
	if got := GovernorOutcome(&ParseError{Op: "search", Err: errors.New("shape")}); got != ratelimit.OutcomeSuccess {
		t.Errorf("parse: got %v", got)
	}
	if got := GovernorOutcome(errors.New("unclassified")); got != ratelimit.OutcomeRejected {
		t.Errorf("other: got %v", got)
	}
}
