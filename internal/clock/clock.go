package clock

import "time"

// Clock abstracts wall time so governor cooldowns and reconciliation can run
// against synthetic time in tests.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// Real returns the wall clock.
func Real() Clock {
	return realClock{}
}

// Fake is a manually advanced clock for tests.
type Fake struct {
	current time.Time
}

// NewFake creates a fake clock starting at t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

func (f *Fake) Now() time.Time { return f.current }

// Sleep advances the fake clock instead of blocking.
func (f *Fake) Sleep(d time.Duration) { f.current = f.current.Add(d) }

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) { f.current = f.current.Add(d) }

// Set jumps the clock to t.
func (f *Fake) Set(t time.Time) { f.current = t }
