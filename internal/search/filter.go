package search

import (
	"fmt"
	"strconv"
	"strings"

	"staywatch/internal/models"
)

type FilterParams struct {
	Query     string
	TargetID  *uint
	MinPrice  *float64
	MaxPrice  *float64
	RoomTypes []string
	MinRating *float64
	SortBy    string
	Limit     int64
}

// FilterSearch performs listing search with structured filters
func (s *SearchClient) FilterSearch(params FilterParams) ([]models.Listing, error) {
	var filters []string

	if params.TargetID != nil {
		filters = append(filters, fmt.Sprintf("target_id = %d", *params.TargetID))
	}
	if params.MinPrice != nil {
		filters = append(filters, fmt.Sprintf("base_price >= %g", *params.MinPrice))
	}
	if params.MaxPrice != nil {
		filters = append(filters, fmt.Sprintf("base_price <= %g", *params.MaxPrice))
	}
	if len(params.RoomTypes) > 0 {
		typeFilters := make([]string, len(params.RoomTypes))
		for i, rt := range params.RoomTypes {
			typeFilters[i] = fmt.Sprintf("room_type = '%s'", rt)
		}
		filters = append(filters, fmt.Sprintf("(%s)", strings.Join(typeFilters, " OR ")))
	}
	if params.MinRating != nil {
		filters = append(filters, fmt.Sprintf("rating >= %g", *params.MinRating))
	}

	var sort []string
	if params.SortBy != "" {
		sort = []string{params.SortBy}
	}

	limit := params.Limit
	if limit == 0 {
		limit = 20
	}

	result, err := s.AdvancedSearch(SearchRequest{
		Query:  params.Query,
		Limit:  limit,
		Filter: filters,
		Sort:   sort,
	})
	if err != nil {
		return nil, err
	}
	return result.Hits, nil
}

func toDocumentID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
