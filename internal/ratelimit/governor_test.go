package ratelimit

import (
	"testing"
	"time"

	"staywatch/internal/clock"
)

func testGovConfig() Config {
	return Config{
		DelayLow:               2 * time.Second,
		DelayHigh:              4 * time.Second,
		Jitter:                 0,
		MaxMultiplier:          8,
		DecayFactor:            0.5,
		SuspendAfterSoftBlocks: 3,
		SuspendAfterHardErrors: 5,
		Cooldown:               30 * time.Minute,
		MaxPerHour:             0,
		MaxPerDay:              0,
	}
}

const host = "www.example-market.com"

func TestGovernorPacesRequests(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGovernorWithSeed(testGovConfig(), clk, 1)

	first := g.Admit(host)
	if !first.Allowed {
		t.Fatal("first request must be admitted")
	}
	if first.ProceedAt.Before(clk.Now()) {
		t.Errorf("ProceedAt %v is in the past", first.ProceedAt)
	}

	second := g.Admit(host)
	if !second.Allowed {
		t.Fatal("second request must be admitted")
	}
	gap := second.ProceedAt.Sub(first.ProceedAt)
	if gap < 2*time.Second || gap >= 4*time.Second {
		t.Errorf("inter-request gap %v outside the configured band", gap)
	}

	third := g.Admit(host)
	if third.ProceedAt.Sub(second.ProceedAt) != gap {
		t.Errorf("base interval drifted without any failure report: %v vs %v",
			third.ProceedAt.Sub(second.ProceedAt), gap)
	}
}

func TestGovernorSoftBlockBackoff(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGovernorWithSeed(testGovConfig(), clk, 1)

	a := g.Admit(host)
	b := g.Admit(host)
	base := b.ProceedAt.Sub(a.ProceedAt)

	// The widened interval applies from the next admission onward.
	g.Report(host, OutcomeSoftBlock)
	c := g.Admit(host)
	d := g.Admit(host)
	if got := d.ProceedAt.Sub(c.ProceedAt); got != 2*base {
		t.Errorf("one soft block should double the interval: got %v, base %v", got, base)
	}

	g.Report(host, OutcomeSoftBlock)
	e := g.Admit(host)
	f := g.Admit(host)
	if got := f.ProceedAt.Sub(e.ProceedAt); got != 4*base {
		t.Errorf("two soft blocks should quadruple the interval: got %v, base %v", got, base)
	}
}

func TestGovernorBackoffCappedAtMaxMultiplier(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := testGovConfig()
	cfg.SuspendAfterSoftBlocks = 100 // keep doubling without suspending
	g := NewGovernorWithSeed(cfg, clk, 1)

	a := g.Admit(host)
	b := g.Admit(host)
	base := b.ProceedAt.Sub(a.ProceedAt)

	for i := 0; i < 10; i++ {
		g.Report(host, OutcomeSoftBlock)
	}
	c := g.Admit(host)
	d := g.Admit(host)
	if got := d.ProceedAt.Sub(c.ProceedAt); got != 8*base {
		t.Errorf("backoff must cap at MaxMultiplier: got %v, base %v", got, base)
	}
}

func TestGovernorSuspendsAfterSoftBlockStreak(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGovernorWithSeed(testGovConfig(), clk, 1)

	g.Admit(host)
	for i := 0; i < 3; i++ {
		g.Report(host, OutcomeSoftBlock)
	}

	d := g.Admit(host)
	if d.Allowed {
		t.Fatal("host must be suspended after the soft-block streak")
	}
	if d.Cooldown <= 0 || d.Cooldown > 30*time.Minute {
		t.Errorf("cooldown should be within the configured window, got %v", d.Cooldown)
	}

	clk.Advance(30 * time.Minute)
	if d := g.Admit(host); !d.Allowed {
		t.Error("host should be eligible again after the cooldown")
	}
}

func TestGovernorSuccessResetsStreakAndDecaysMultiplier(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGovernorWithSeed(testGovConfig(), clk, 1)

	a := g.Admit(host)
	b := g.Admit(host)
	base := b.ProceedAt.Sub(a.ProceedAt)

	// Two blocks, then a success: the streak resets so a third block must
	// not suspend, and the multiplier relaxes toward 1.
	g.Report(host, OutcomeSoftBlock)
	g.Report(host, OutcomeSoftBlock)
	g.Report(host, OutcomeSuccess)
	g.Report(host, OutcomeSoftBlock)

	d := g.Admit(host)
	if !d.Allowed {
		t.Fatal("interrupted streak must not suspend the host")
	}

	// multiplier went 1 -> 2 -> 4 -> 2 (decay 0.5) -> 4
	e := g.Admit(host)
	if got := e.ProceedAt.Sub(d.ProceedAt); got != 4*base {
		t.Errorf("expected decayed-then-doubled interval 4x base, got %v (base %v)", got, base)
	}
}

func TestGovernorHardErrorsSuspendAtThreshold(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGovernorWithSeed(testGovConfig(), clk, 1)

	g.Admit(host)
	for i := 0; i < 4; i++ {
		g.Report(host, OutcomeHardError)
	}
	if d := g.Admit(host); !d.Allowed {
		t.Fatal("four hard errors must not suspend yet")
	}
	g.Report(host, OutcomeHardError)
	if d := g.Admit(host); d.Allowed {
		t.Error("fifth consecutive hard error must suspend the host")
	}
}

func TestGovernorRejectedWidensWithoutSuspending(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGovernorWithSeed(testGovConfig(), clk, 1)

	a := g.Admit(host)
	b := g.Admit(host)
	base := b.ProceedAt.Sub(a.ProceedAt)

	for i := 0; i < 10; i++ {
		g.Report(host, OutcomeRejected)
	}
	d := g.Admit(host)
	if !d.Allowed {
		t.Fatal("rejections alone must never suspend")
	}
	e := g.Admit(host)
	if got := e.ProceedAt.Sub(d.ProceedAt); got <= base {
		t.Errorf("rejections should widen the interval, got %v (base %v)", got, base)
	}
}

func TestGovernorHourlyBudget(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	cfg := testGovConfig()
	cfg.MaxPerHour = 5
	g := NewGovernorWithSeed(cfg, clk, 1)

	for i := 0; i < 5; i++ {
		if d := g.Admit(host); !d.Allowed {
			t.Fatalf("request %d within budget denied", i)
		}
	}
	over := g.Admit(host)
	if over.Allowed {
		t.Fatal("sixth request in the hour must be denied")
	}
	if over.Cooldown <= 0 {
		t.Errorf("budget denial should carry a positive wait, got %v", over.Cooldown)
	}

	clk.Advance(time.Hour + time.Minute)
	if d := g.Admit(host); !d.Allowed {
		t.Error("budget should free up once the window slides past")
	}
}

func TestGovernorHostsAreIndependent(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGovernorWithSeed(testGovConfig(), clk, 1)

	g.Admit(host)
	for i := 0; i < 3; i++ {
		g.Report(host, OutcomeSoftBlock)
	}
	if d := g.Admit(host); d.Allowed {
		t.Fatal("primary host should be suspended")
	}
	if d := g.Admit("other.example.net"); !d.Allowed {
		t.Error("an unrelated host must not inherit the suspension")
	}
}

func TestGovernorStats(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	g := NewGovernorWithSeed(testGovConfig(), clk, 1)

	g.Admit(host)
	g.Admit(host)
	g.Report(host, OutcomeSoftBlock)

	stats := g.Stats()
	s, ok := stats[host]
	if !ok {
		t.Fatal("stats missing tracked host")
	}
	if s.TotalRequests != 2 {
		t.Errorf("expected 2 total requests, got %d", s.TotalRequests)
	}
	if s.TotalBlocked != 1 {
		t.Errorf("expected 1 blocked, got %d", s.TotalBlocked)
	}
	if s.Suspended {
		t.Error("a single soft block must not show as suspended")
	}
	if s.Multiplier != 2.0 {
		t.Errorf("expected multiplier 2.0 after one soft block, got %f", s.Multiplier)
	}
}
