package models

import "time"

// SearchSnapshot is one immutable record of a search sweep over a target:
// aggregate stats for the listings visible at ObservedAt for a stay window.
// Append-only; rows are never mutated after insert.
type SearchSnapshot struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetID   uint      `gorm:"not null;index:idx_search_target_time" json:"target_id"`
	ObservedAt time.Time `gorm:"not null;index:idx_search_target_time,priority:2" json:"observed_at"`

	CheckinDate  time.Time `gorm:"type:date" json:"checkin_date"`
	CheckoutDate time.Time `gorm:"type:date" json:"checkout_date"`

	TotalListings  int     `json:"total_listings"`
	AvgPrice       float64 `json:"avg_price"`
	MinPrice       float64 `json:"min_price"`
	MaxPrice       float64 `json:"max_price"`
	MedianPrice    float64 `json:"median_price"`
	AvailableCount int     `json:"available_count"`

	// PayloadHash detects byte-identical payloads across re-crawls
	PayloadHash string `gorm:"type:varchar(64)" json:"payload_hash,omitempty"`
}

// TableName specifies the table name
func (SearchSnapshot) TableName() string {
	return "search_snapshots"
}

// CalendarObservation is one immutable observation of a single calendar date
// of a listing: what the calendar said at ObservedAt. Multiple observations
// accumulate for the same (listing, date) as re-crawls happen; the ordered
// history is the input to reconciliation and is never overwritten.
type CalendarObservation struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID  uint      `gorm:"not null;index:idx_cal_listing_date" json:"listing_id"`
	ObservedAt time.Time `gorm:"not null;index" json:"observed_at"`
	Date       time.Time `gorm:"type:date;not null;index:idx_cal_listing_date,priority:2" json:"date"`

	Available bool     `json:"available"`
	Price     *float64 `json:"price,omitempty"`
	MinNights *int     `json:"min_nights,omitempty"`
}

// TableName specifies the table name
func (CalendarObservation) TableName() string {
	return "calendar_observations"
}
