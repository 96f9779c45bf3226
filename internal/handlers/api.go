package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"staywatch/internal/search"
	"staywatch/internal/store"
)

// APIHandler serves the public query surface: daily stats, classifications
// and listing search. Everything here is read-only.
type APIHandler struct {
	store        store.Store
	searchClient *search.SearchClient
}

func NewAPIHandler(st store.Store, sc *search.SearchClient) *APIHandler {
	return &APIHandler{store: st, searchClient: sc}
}

// GetTargets returns all configured targets
func (h *APIHandler) GetTargets(c *gin.Context) {
	targets, err := h.store.Targets(nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"targets": targets,
		"count":   len(targets),
	})
}

// GetDailyStats returns the daily stats of a target over a date range.
// Query params: from, to (YYYY-MM-DD), room_type ("" = all-types bucket).
func (h *APIHandler) GetDailyStats(c *gin.Context) {
	targetID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	roomType := c.Query("room_type")

	stats, err := h.store.DailyStats(targetID, from, to, roomType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"target_id": targetID,
		"room_type": roomType,
		"stats":     stats,
		"count":     len(stats),
	})
}

// GetClassifications returns the per-date classifications of a listing.
func (h *APIHandler) GetClassifications(c *gin.Context) {
	listingID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	from, to, err := parseDateRange(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	classes, err := h.store.Classifications(listingID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"listing_id":      listingID,
		"classifications": classes,
		"count":           len(classes),
	})
}

// GetListingHistory returns the raw observation history of a listing,
// optionally narrowed to one calendar date.
func (h *APIHandler) GetListingHistory(c *gin.Context) {
	listingID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	if dateStr := c.Query("date"); dateStr != "" {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		obs, err := h.store.History(listingID, date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"listing_id": listingID, "observations": obs, "count": len(obs)})
		return
	}

	obs, err := h.store.ListingHistory(listingID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing_id": listingID, "observations": obs, "count": len(obs)})
}

// GetListing returns one listing row
func (h *APIHandler) GetListing(c *gin.Context) {
	listingID, err := parseUintParam(c, "id")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid listing id"})
		return
	}

	listing, err := h.store.GetListing(listingID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	c.JSON(http.StatusOK, listing)
}

// SearchListings runs a filtered full-text search over the listing index.
func (h *APIHandler) SearchListings(c *gin.Context) {
	if h.searchClient == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search index not available"})
		return
	}

	params := search.FilterParams{
		Query:  c.Query("q"),
		SortBy: c.Query("sort"),
	}
	if v := c.Query("target_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target_id"})
			return
		}
		targetID := uint(id)
		params.TargetID = &targetID
	}
	if v := c.Query("min_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params.MinPrice = &f
		}
	}
	if v := c.Query("max_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params.MaxPrice = &f
		}
	}
	if v := c.Query("min_rating"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			params.MinRating = &f
		}
	}
	if v := c.QueryArray("room_type"); len(v) > 0 {
		params.RoomTypes = v
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			params.Limit = n
		}
	}

	listings, err := h.searchClient.FilterSearch(params)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"listings": listings,
		"count":    len(listings),
	})
}

func parseUintParam(c *gin.Context, name string) (uint, error) {
	v, err := strconv.ParseUint(c.Param(name), 10, 32)
	return uint(v), err
}

// parseDateRange reads from/to query params; missing values stay zero,
// which the store treats as unbounded.
func parseDateRange(c *gin.Context) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			return from, to, err
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}
