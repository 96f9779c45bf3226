package fetch

import (
	"encoding/json"
	"fmt"
	"time"
)

type searchResponse struct {
	Data struct {
		Results []struct {
			ID          string   `json:"id"`
			Name        string   `json:"name"`
			HostID      string   `json:"host_id"`
			RoomType    string   `json:"room_type"`
			Lat         *float64 `json:"lat"`
			Lng         *float64 `json:"lng"`
			Price       *float64 `json:"price"`
			Rating      *float64 `json:"rating"`
			ReviewCount *int     `json:"review_count"`
			Available   *bool    `json:"available"`
		} `json:"results"`
	} `json:"data"`
}

func parseSearchPayload(body []byte) (*SearchPayload, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ParseError{Op: "search", Err: err}
	}

	payload := &SearchPayload{Raw: body}
	for _, r := range resp.Data.Results {
		if r.ID == "" {
			continue
		}
		available := true
		if r.Available != nil {
			available = *r.Available
		}
		payload.Listings = append(payload.Listings, SearchListing{
			ExternalID:  r.ID,
			Name:        r.Name,
			HostID:      r.HostID,
			RoomType:    r.RoomType,
			Latitude:    r.Lat,
			Longitude:   r.Lng,
			Price:       r.Price,
			Rating:      r.Rating,
			ReviewCount: r.ReviewCount,
			Available:   available,
		})
	}
	return payload, nil
}

type calendarResponse struct {
	Data struct {
		Calendar struct {
			Months []struct {
				Days []struct {
					Date      string `json:"date"`
					Available bool   `json:"available"`
					Price     *struct {
						Amount float64 `json:"amount"`
					} `json:"price"`
					MinNights *int `json:"min_nights"`
				} `json:"days"`
			} `json:"months"`
		} `json:"calendar"`
	} `json:"data"`
}

func parseCalendarPayload(body []byte) (*CalendarPayload, error) {
	var resp calendarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ParseError{Op: "calendar", Err: err}
	}

	payload := &CalendarPayload{}
	for _, month := range resp.Data.Calendar.Months {
		for _, day := range month.Days {
			date, err := time.Parse("2006-01-02", day.Date)
			if err != nil {
				// tolerate stray malformed dates, the rest of the month
				// is still usable
				continue
			}
			cd := CalendarDay{
				Date:      date,
				Available: day.Available,
				MinNights: day.MinNights,
			}
			if day.Price != nil {
				amount := day.Price.Amount
				cd.Price = &amount
			}
			payload.Days = append(payload.Days, cd)
		}
	}

	if len(payload.Days) == 0 {
		return nil, &ParseError{Op: "calendar", Err: fmt.Errorf("no calendar days in payload")}
	}
	return payload, nil
}

type detailResponse struct {
	Data struct {
		Listing struct {
			Name      string   `json:"name"`
			HostID    string   `json:"host_id"`
			RoomType  string   `json:"room_type"`
			Bedrooms  *int     `json:"bedrooms"`
			Bathrooms *float64 `json:"bathrooms"`
			MaxGuests *int     `json:"max_guests"`
		} `json:"listing"`
	} `json:"data"`
}

func parseDetailPayload(body []byte) (*DetailPayload, error) {
	var resp detailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ParseError{Op: "detail", Err: err}
	}
	l := resp.Data.Listing
	if l.Name == "" && l.RoomType == "" {
		return nil, &ParseError{Op: "detail", Err: fmt.Errorf("empty listing in payload")}
	}
	return &DetailPayload{
		Name:      l.Name,
		HostID:    l.HostID,
		RoomType:  l.RoomType,
		Bedrooms:  l.Bedrooms,
		Bathrooms: l.Bathrooms,
		MaxGuests: l.MaxGuests,
	}, nil
}
