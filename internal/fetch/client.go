package fetch

import (
	"context"
	"time"

	"staywatch/internal/models"
)

// StayWindow is the checkin/checkout pair a search is run for.
type StayWindow struct {
	Checkin  time.Time
	Checkout time.Time
}

// SearchListing is one listing as it appears in a search payload.
type SearchListing struct {
	ExternalID  string
	Name        string
	HostID      string
	RoomType    string
	Latitude    *float64
	Longitude   *float64
	Price       *float64
	Rating      *float64
	ReviewCount *int
	Available   bool
}

// SearchPayload is a parsed search response plus the raw bytes for hashing.
type SearchPayload struct {
	Listings []SearchListing
	Raw      []byte
}

// CalendarDay is one day of a parsed calendar payload.
type CalendarDay struct {
	Date      time.Time
	Available bool
	Price     *float64
	MinNights *int
}

// CalendarPayload is a parsed calendar response.
type CalendarPayload struct {
	Days []CalendarDay
}

// DetailPayload is a parsed listing-detail response.
type DetailPayload struct {
	Name      string
	HostID    string
	RoomType  string
	Bedrooms  *int
	Bathrooms *float64
	MaxGuests *int
}

// Client is the collaborator interface the crawl engine fetches through. The
// concrete wire format and authentication live behind it. Every method
// returns a *TransportError, *BlockedError or *ParseError on failure.
type Client interface {
	// FetchSearch runs one search sweep around a target for a stay window
	FetchSearch(ctx context.Context, target models.Target, window StayWindow) (*SearchPayload, error)
	// FetchCalendar fetches months of availability calendar for a listing,
	// starting at the month containing from
	FetchCalendar(ctx context.Context, listing models.Listing, from time.Time, months int) (*CalendarPayload, error)
	// FetchDetail refreshes a listing's descriptive attributes
	FetchDetail(ctx context.Context, listing models.Listing) (*DetailPayload, error)
	// Host is the remote host all requests go to; the governor keys on it
	Host() string
}
