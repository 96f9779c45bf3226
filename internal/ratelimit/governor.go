package ratelimit

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"staywatch/internal/clock"
)

// Outcome classifies the result of one fetch as reported back to the governor.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	// OutcomeSoftBlock: CAPTCHA, challenge page, suspicious empty payload
	OutcomeSoftBlock
	// OutcomeHardError: timeout or 5xx
	OutcomeHardError
	// OutcomeRejected: 4xx
	OutcomeRejected
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSoftBlock:
		return "soft_block"
	case OutcomeHardError:
		return "hard_error"
	case OutcomeRejected:
		return "rejected"
	}
	return "unknown"
}

// Decision is the governor's answer to an admission request.
type Decision struct {
	// Allowed is false while the host is suspended
	Allowed bool
	// ProceedAt is the earliest time the request may go out when Allowed
	ProceedAt time.Time
	// Cooldown is how long until the host becomes eligible when !Allowed
	Cooldown time.Duration
}

// Config tunes per-host pacing and backoff.
type Config struct {
	// DelayLow/DelayHigh bound the base inter-request interval; each host
	// samples its interval uniformly from this band
	DelayLow  time.Duration
	DelayHigh time.Duration
	// Jitter is added on top of the interval, uniformly in [0, Jitter)
	Jitter time.Duration
	// MaxMultiplier caps the exponential backoff
	MaxMultiplier float64
	// DecayFactor relaxes the multiplier toward 1.0 on success
	DecayFactor float64
	// SuspendAfterSoftBlocks / SuspendAfterHardErrors trigger a cooldown
	SuspendAfterSoftBlocks int
	SuspendAfterHardErrors int
	Cooldown               time.Duration
	// Request budgets per host (0 disables the check)
	MaxPerHour int
	MaxPerDay  int
}

// DefaultConfig returns conservative pacing suitable for an unproxied crawl.
func DefaultConfig() Config {
	return Config{
		DelayLow:               7 * time.Second,
		DelayHigh:              12 * time.Second,
		Jitter:                 3 * time.Second,
		MaxMultiplier:          10,
		DecayFactor:            0.9,
		SuspendAfterSoftBlocks: 3,
		SuspendAfterHardErrors: 5,
		Cooldown:               30 * time.Minute,
		MaxPerHour:             500,
		MaxPerDay:              8000,
	}
}

type hostState struct {
	baseInterval time.Duration
	multiplier   float64

	nextEligibleAt time.Time
	suspendedUntil time.Time

	softBlockStreak int
	hardErrorStreak int
	successStreak   int

	hourWindow []time.Time
	dayWindow  []time.Time

	totalRequests int
	totalBlocked  int
}

// Governor is the single shared choke point for all fetches against remote
// hosts. It paces requests per host, backs off on failure signals and
// suspends a host after repeated blocks. All concurrent fetch tasks must go
// through the same instance; internal state is mutex-protected.
type Governor struct {
	mu    sync.Mutex
	cfg   Config
	clk   clock.Clock
	rnd   *rand.Rand
	hosts map[string]*hostState
}

// NewGovernor creates a governor with the given pacing config.
func NewGovernor(cfg Config, clk clock.Clock) *Governor {
	return NewGovernorWithSeed(cfg, clk, time.Now().UnixNano())
}

// NewGovernorWithSeed fixes the interval-sampling seed (used by tests).
func NewGovernorWithSeed(cfg Config, clk clock.Clock, seed int64) *Governor {
	if cfg.MaxMultiplier <= 1 {
		cfg.MaxMultiplier = 10
	}
	if cfg.DecayFactor <= 0 || cfg.DecayFactor >= 1 {
		cfg.DecayFactor = 0.9
	}
	if cfg.SuspendAfterSoftBlocks <= 0 {
		cfg.SuspendAfterSoftBlocks = 3
	}
	if cfg.SuspendAfterHardErrors <= 0 {
		cfg.SuspendAfterHardErrors = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Minute
	}
	return &Governor{
		cfg:   cfg,
		clk:   clk,
		rnd:   rand.New(rand.NewSource(seed)),
		hosts: make(map[string]*hostState),
	}
}

// Admit asks for permission to send one request to host. When the host is
// suspended the decision carries the remaining cooldown; callers requeue with
// that delay instead of polling.
func (g *Governor) Admit(host string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.state(host)
	now := g.clk.Now()

	if now.Before(s.suspendedUntil) {
		return Decision{
			Allowed:  false,
			Cooldown: s.suspendedUntil.Sub(now),
		}
	}

	g.pruneWindows(s, now)
	if g.cfg.MaxPerHour > 0 && len(s.hourWindow) >= g.cfg.MaxPerHour {
		wait := s.hourWindow[0].Add(time.Hour).Sub(now)
		return Decision{Allowed: false, Cooldown: wait}
	}
	if g.cfg.MaxPerDay > 0 && len(s.dayWindow) >= g.cfg.MaxPerDay {
		wait := s.dayWindow[0].Add(24 * time.Hour).Sub(now)
		return Decision{Allowed: false, Cooldown: wait}
	}

	interval := time.Duration(float64(s.baseInterval) * s.multiplier)
	if g.cfg.Jitter > 0 {
		interval += time.Duration(g.rnd.Int63n(int64(g.cfg.Jitter)))
	}

	proceedAt := now
	if s.nextEligibleAt.After(now) {
		proceedAt = s.nextEligibleAt
	}
	s.nextEligibleAt = proceedAt.Add(interval)

	s.totalRequests++
	s.hourWindow = append(s.hourWindow, proceedAt)
	s.dayWindow = append(s.dayWindow, proceedAt)

	return Decision{Allowed: true, ProceedAt: proceedAt}
}

// Report feeds the outcome of a request back into the host's pacing state.
func (g *Governor) Report(host string, outcome Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := g.state(host)
	now := g.clk.Now()

	switch outcome {
	case OutcomeSuccess:
		s.successStreak++
		s.softBlockStreak = 0
		s.hardErrorStreak = 0
		if s.multiplier > 1.0 {
			s.multiplier = s.multiplier * g.cfg.DecayFactor
			if s.multiplier < 1.0 {
				s.multiplier = 1.0
			}
		}

	case OutcomeSoftBlock:
		s.successStreak = 0
		s.softBlockStreak++
		s.totalBlocked++
		g.double(s)
		if s.softBlockStreak >= g.cfg.SuspendAfterSoftBlocks {
			s.suspendedUntil = now.Add(g.cfg.Cooldown)
			s.softBlockStreak = 0
			log.Printf("Governor: host %s suspended for %v after repeated soft blocks", host, g.cfg.Cooldown)
		}

	case OutcomeHardError:
		s.successStreak = 0
		s.hardErrorStreak++
		if s.hardErrorStreak >= 2 {
			g.double(s)
		}
		if s.hardErrorStreak >= g.cfg.SuspendAfterHardErrors {
			s.suspendedUntil = now.Add(g.cfg.Cooldown)
			s.hardErrorStreak = 0
			log.Printf("Governor: host %s suspended for %v after repeated hard errors", host, g.cfg.Cooldown)
		}

	case OutcomeRejected:
		// a 4xx is usually a bad request on our side, not a defense
		// response; widen the interval mildly without suspending
		s.successStreak = 0
		s.multiplier = minFloat(s.multiplier*1.5, g.cfg.MaxMultiplier)
	}
}

func (g *Governor) double(s *hostState) {
	s.multiplier = minFloat(s.multiplier*2, g.cfg.MaxMultiplier)
}

func (g *Governor) state(host string) *hostState {
	s, ok := g.hosts[host]
	if !ok {
		s = &hostState{
			baseInterval: g.sampleInterval(),
			multiplier:   1.0,
		}
		g.hosts[host] = s
	}
	return s
}

// sampleInterval draws the host's base interval uniformly from the band
func (g *Governor) sampleInterval() time.Duration {
	low, high := g.cfg.DelayLow, g.cfg.DelayHigh
	if high <= low {
		return low
	}
	return low + time.Duration(g.rnd.Int63n(int64(high-low)))
}

func (g *Governor) pruneWindows(s *hostState, now time.Time) {
	s.hourWindow = filterAfter(s.hourWindow, now.Add(-time.Hour))
	s.dayWindow = filterAfter(s.dayWindow, now.Add(-24*time.Hour))
}

func filterAfter(times []time.Time, cutoff time.Time) []time.Time {
	result := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			result = append(result, t)
		}
	}
	return result
}

// HostStats is a snapshot of one host's governor state.
type HostStats struct {
	BaseInterval    time.Duration `json:"base_interval"`
	Multiplier      float64       `json:"multiplier"`
	Suspended       bool          `json:"suspended"`
	SuspendedUntil  time.Time     `json:"suspended_until,omitempty"`
	SuccessStreak   int           `json:"success_streak"`
	RequestsLastHr  int           `json:"requests_last_hour"`
	RequestsLastDay int           `json:"requests_last_day"`
	TotalRequests   int           `json:"total_requests"`
	TotalBlocked    int           `json:"total_blocked"`
}

// Stats returns per-host state for the admin surface.
func (g *Governor) Stats() map[string]HostStats {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clk.Now()
	out := make(map[string]HostStats, len(g.hosts))
	for host, s := range g.hosts {
		g.pruneWindows(s, now)
		out[host] = HostStats{
			BaseInterval:    s.baseInterval,
			Multiplier:      s.multiplier,
			Suspended:       now.Before(s.suspendedUntil),
			SuspendedUntil:  s.suspendedUntil,
			SuccessStreak:   s.successStreak,
			RequestsLastHr:  len(s.hourWindow),
			RequestsLastDay: len(s.dayWindow),
			TotalRequests:   s.totalRequests,
			TotalBlocked:    s.totalBlocked,
		}
	}
	return out
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
