package models

// Target is a fixed geographic search anchor: a station coordinate plus a
// search radius. Targets are reference data loaded once at startup and
// read-only afterwards.
type Target struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string  `gorm:"type:varchar(50);not null;index:idx_target_name" json:"name"`
	Line      string  `gorm:"type:varchar(30);not null;index:idx_target_name" json:"line"`
	District  string  `gorm:"type:varchar(30)" json:"district,omitempty"`
	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`
	RadiusKM  float64 `gorm:"not null;default:3.0" json:"radius_km"`
	Priority  int     `gorm:"not null;default:3;index" json:"priority"` // 1=highest tier
}

// TableName specifies the table name
func (Target) TableName() string {
	return "targets"
}

// Priority tiers for scheduling. Tier 1 targets are always fetched before
// tier 2, tier 2 before tier 3.
const (
	TierHigh   = 1
	TierMedium = 2
	TierLow    = 3
)
