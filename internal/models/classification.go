package models

import "time"

// DateStatus is the reconciled state of one calendar date of a listing.
type DateStatus string

const (
	// StatusAvailable: the calendar currently shows the date as open.
	StatusAvailable DateStatus = "available"
	// StatusBooked: the date flipped available -> unavailable across
	// observations, which is the signature of a genuine booking.
	StatusBooked DateStatus = "booked"
	// StatusBlocked: the date was unavailable from its first observation
	// onward. No state change was ever seen, so no transaction is implied.
	StatusBlocked DateStatus = "blocked"
	// StatusUnknown: no observation covers the date.
	StatusUnknown DateStatus = "unknown"
)

// DateClassification is the derived verdict for one (listing, date). It is
// recomputed in place, never appended: for a fixed observation history the
// recompute always yields the same row. Owned by the reconciliation engine;
// the aggregation engine only reads it.
type DateClassification struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID uint      `gorm:"not null;uniqueIndex:idx_class_listing_date" json:"listing_id"`
	Date      time.Time `gorm:"type:date;not null;uniqueIndex:idx_class_listing_date,priority:2" json:"date"`

	Status     DateStatus `gorm:"type:varchar(20);not null" json:"status"`
	Confidence float64    `gorm:"not null" json:"confidence"` // 0..1

	RecomputedAt time.Time `gorm:"not null" json:"recomputed_at"`
}

// TableName specifies the table name
func (DateClassification) TableName() string {
	return "date_classifications"
}
