package models

import "time"

// Listing is a rental unit identified by its stable external id. Attribute
// fields hold last-observed values; FirstSeen/LastSeen bound the known
// lifetime. Listings are created on first appearance in a search result and
// never deleted, only marked stale when they stop showing up.
type Listing struct {
	ID         uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ExternalID string `gorm:"type:varchar(30);not null;uniqueIndex" json:"external_id"`
	Name       string `gorm:"type:text" json:"name,omitempty"`
	HostID     string `gorm:"type:varchar(30)" json:"host_id,omitempty"`
	RoomType   string `gorm:"type:varchar(30);index" json:"room_type,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	TargetID  uint     `gorm:"not null;index" json:"target_id"`

	Bedrooms    *int     `json:"bedrooms,omitempty"`
	Bathrooms   *float64 `json:"bathrooms,omitempty"`
	MaxGuests   *int     `json:"max_guests,omitempty"`
	BasePrice   *float64 `json:"base_price,omitempty"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount *int     `json:"review_count,omitempty"`

	Status    ListingStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	FirstSeen time.Time     `gorm:"not null" json:"first_seen"`
	LastSeen  time.Time     `gorm:"not null;index" json:"last_seen"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ListingStatus is the listing lifecycle state
type ListingStatus string

const (
	ListingStatusActive ListingStatus = "active"
	ListingStatusStale  ListingStatus = "stale"
)

// TableName specifies the table name
func (Listing) TableName() string {
	return "listings"
}

// IsActive reports whether the listing appeared in a recent sweep
func (l *Listing) IsActive() bool {
	return l.Status == ListingStatusActive
}

// Room type values as reported by the remote marketplace.
const (
	RoomTypeEntireHome  = "entire_home"
	RoomTypePrivateRoom = "private_room"
	RoomTypeSharedRoom  = "shared_room"
	RoomTypeHotel       = "hotel"
)

// AggregatedRoomTypes is the set of room-type buckets the aggregation engine
// produces. The empty string is the all-types bucket.
var AggregatedRoomTypes = []string{
	RoomTypeEntireHome,
	RoomTypePrivateRoom,
	RoomTypeSharedRoom,
	RoomTypeHotel,
	"",
}
