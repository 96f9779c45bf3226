package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"sync"
	"time"

	"staywatch/internal/models"
	"staywatch/internal/ratelimit"
)

// HTTPClientConfig configures the JSON API client.
type HTTPClientConfig struct {
	BaseURL     string
	APIKey      string
	Currency    string
	Timeout     time.Duration
	LogRequests bool
}

// HTTPClient is the production Client: a thin JSON API client that attaches
// rotating identity material from the pool and classifies failures into the
// transport/blocked/parse taxonomy. Pacing is NOT done here; callers admit
// every request through the governor first.
type HTTPClient struct {
	cfg        HTTPClientConfig
	host       string
	identities *ratelimit.IdentityPool

	mu      sync.Mutex
	clients map[string]*http.Client // keyed by proxy URL, "" = direct
}

// NewHTTPClient builds a client for the configured marketplace API.
func NewHTTPClient(cfg HTTPClientConfig, identities *ratelimit.IdentityPool) (*HTTPClient, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid api base url %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HTTPClient{
		cfg:        cfg,
		host:       u.Host,
		identities: identities,
		clients:    make(map[string]*http.Client),
	}, nil
}

// Host returns the remote host the governor keys on.
func (h *HTTPClient) Host() string {
	return h.host
}

// FetchSearch runs a search around the target's coordinates.
func (h *HTTPClient) FetchSearch(ctx context.Context, target models.Target, window StayWindow) (*SearchPayload, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(target.Latitude, 'f', 6, 64))
	params.Set("lng", strconv.FormatFloat(target.Longitude, 'f', 6, 64))
	params.Set("radius_km", strconv.FormatFloat(target.RadiusKM, 'f', 1, 64))
	params.Set("checkin", window.Checkin.Format("2006-01-02"))
	params.Set("checkout", window.Checkout.Format("2006-01-02"))
	params.Set("currency", h.cfg.Currency)

	body, err := h.get(ctx, "search", "/api/v3/search", params)
	if err != nil {
		return nil, err
	}
	return parseSearchPayload(body)
}

// FetchCalendar fetches months of availability for a listing.
func (h *HTTPClient) FetchCalendar(ctx context.Context, listing models.Listing, from time.Time, months int) (*CalendarPayload, error) {
	params := url.Values{}
	params.Set("listing_id", listing.ExternalID)
	params.Set("month", strconv.Itoa(int(from.Month())))
	params.Set("year", strconv.Itoa(from.Year()))
	params.Set("count", strconv.Itoa(months))
	params.Set("currency", h.cfg.Currency)

	body, err := h.get(ctx, "calendar", "/api/v3/calendar", params)
	if err != nil {
		return nil, err
	}
	return parseCalendarPayload(body)
}

// FetchDetail refreshes a listing's descriptive attributes.
func (h *HTTPClient) FetchDetail(ctx context.Context, listing models.Listing) (*DetailPayload, error) {
	body, err := h.get(ctx, "detail", "/api/v3/listings/"+url.PathEscape(listing.ExternalID), nil)
	if err != nil {
		return nil, err
	}
	return parseDetailPayload(body)
}

func (h *HTTPClient) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	identity := h.identities.Current()

	reqURL := h.cfg.BaseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	req.Header.Set("User-Agent", identity.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", h.cfg.APIKey)
	req.Header.Set("X-Currency", h.cfg.Currency)

	if h.cfg.LogRequests {
		log.Printf("Fetch: %s %s", op, req.URL.Redacted())
	}

	resp, err := h.clientFor(identity.Proxy).Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if reason, blocked := DetectBlock(resp.StatusCode, body); blocked {
		h.identities.ReportBlocked()
		return nil, &BlockedError{Reason: reason, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 500 {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s rejected: status %d", op, resp.StatusCode)
	}

	h.identities.ReportSuccess()
	return body, nil
}

// clientFor returns the shared http.Client for a proxy, creating it on first
// use. Cookie jars are kept per proxy so sessions don't leak across exits.
func (h *HTTPClient) clientFor(proxy string) *http.Client {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.clients[proxy]; ok {
		return c
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		} else {
			log.Printf("Fetch: invalid proxy url, using direct connection: %v", err)
		}
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		jar = nil
	}

	c := &http.Client{
		Timeout:   h.cfg.Timeout,
		Jar:       jar,
		Transport: transport,
	}
	h.clients[proxy] = c
	return c
}

// PayloadHash fingerprints a raw payload for duplicate detection.
func PayloadHash(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}
