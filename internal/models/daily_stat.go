package models

import "time"

// DailyStat is the per (target, date, room type) rollup of reconciled
// classifications and price observations. Fully replaceable: recomputing from
// the same inputs overwrites the row with identical values.
type DailyStat struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	TargetID uint      `gorm:"not null;uniqueIndex:idx_stat_key" json:"target_id"`
	Date     time.Time `gorm:"type:date;not null;uniqueIndex:idx_stat_key,priority:2" json:"date"`
	// RoomType "" is the all-types bucket
	RoomType string `gorm:"type:varchar(30);not null;default:'';uniqueIndex:idx_stat_key,priority:3" json:"room_type"`

	TotalListings    int     `json:"total_listings"`
	BookedCount      int     `json:"booked_count"`
	OccupancyRate    float64 `json:"occupancy_rate"` // 0..1, unknown dates excluded
	AvgDailyPrice    float64 `json:"avg_daily_price"`
	EstimatedRevenue float64 `json:"estimated_revenue"`

	ComputedAt time.Time `gorm:"not null" json:"computed_at"`
}

// TableName specifies the table name
func (DailyStat) TableName() string {
	return "daily_stats"
}
