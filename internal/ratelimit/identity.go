package ratelimit

import (
	"log"
	"math/rand"
	"sync"
	"time"

	"staywatch/internal/clock"
)

// Identity is the fingerprint material attached to outgoing requests.
type Identity struct {
	UserAgent string `json:"user_agent"`
	Proxy     string `json:"proxy,omitempty"` // empty = direct connection
}

type proxyState struct {
	url           string
	totalRequests int
	blockedCount  int
	cooldownUntil time.Time
}

func (p *proxyState) available(now time.Time) bool {
	return now.After(p.cooldownUntil)
}

// IdentityPool rotates user-agent and proxy on a schedule independent of the
// governor's backoff, so fingerprint changes do not correlate with block
// recovery. Rotation failure (every proxy cooling down) is non-fatal: the
// pool keeps serving the last identity that worked.
type IdentityPool struct {
	mu sync.Mutex

	userAgents     []string
	proxies        []*proxyState
	rotateInterval time.Duration
	proxyCooldown  time.Duration

	clk clock.Clock
	rnd *rand.Rand

	current     Identity
	lastGood    Identity
	lastRotated time.Time
	proxyIndex  int
}

// NewIdentityPool builds a pool from the user-agent list and optional proxy
// URLs. An empty proxy list means direct connections.
func NewIdentityPool(userAgents, proxyURLs []string, rotateInterval, proxyCooldown time.Duration, clk clock.Clock) *IdentityPool {
	p := &IdentityPool{
		userAgents:     userAgents,
		rotateInterval: rotateInterval,
		proxyCooldown:  proxyCooldown,
		clk:            clk,
		rnd:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, u := range proxyURLs {
		if u != "" {
			p.proxies = append(p.proxies, &proxyState{url: u})
		}
	}
	p.rotateLocked()
	p.lastGood = p.current
	return p
}

// Current returns the identity to attach to the next request, rotating first
// if the rotation interval has elapsed.
func (p *IdentityPool) Current() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.clk.Now().Sub(p.lastRotated) >= p.rotateInterval {
		p.rotateLocked()
	}
	return p.current
}

// ReportBlocked puts the current proxy into cooldown and rotates immediately.
func (p *IdentityPool) ReportBlocked() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.proxies) > 0 {
		cur := p.proxies[p.proxyIndex]
		cur.blockedCount++
		cur.cooldownUntil = p.clk.Now().Add(p.proxyCooldown)
		log.Printf("IdentityPool: proxy blocked (blocks=%d), cooling down %v", cur.blockedCount, p.proxyCooldown)
	}
	p.rotateLocked()
}

// ReportSuccess marks the current identity as known-good.
func (p *IdentityPool) ReportSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastGood = p.current
}

func (p *IdentityPool) rotateLocked() {
	now := p.clk.Now()
	p.lastRotated = now

	ua := ""
	if len(p.userAgents) > 0 {
		ua = p.userAgents[p.rnd.Intn(len(p.userAgents))]
	}

	if len(p.proxies) == 0 {
		p.current = Identity{UserAgent: ua}
		p.lastGood = p.current
		return
	}

	// next available proxy, round robin
	for i := 0; i < len(p.proxies); i++ {
		p.proxyIndex = (p.proxyIndex + 1) % len(p.proxies)
		candidate := p.proxies[p.proxyIndex]
		if candidate.available(now) {
			candidate.totalRequests++
			p.current = Identity{UserAgent: ua, Proxy: candidate.url}
			p.lastGood = p.current
			return
		}
	}

	// all proxies cooling down: fall back to the last identity that worked
	log.Printf("IdentityPool: all %d proxies in cooldown, keeping last-known-good identity", len(p.proxies))
	p.current = p.lastGood
}

// PoolStats summarizes the proxy pool for the admin surface.
type PoolStats struct {
	Proxies   int `json:"proxies"`
	Available int `json:"available"`
	Blocked   int `json:"blocked_total"`
}

// Stats returns the pool summary.
func (p *IdentityPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clk.Now()
	st := PoolStats{Proxies: len(p.proxies)}
	for _, pr := range p.proxies {
		if pr.available(now) {
			st.Available++
		}
		st.Blocked += pr.blockedCount
	}
	return st
}
