// internal/tick/tick.go
package tick

import (
	"sync"
	"time"
)

// Ticks is a reading of a wrapping monotonic counter.
type Ticks uint32

// Max is the largest value of a full-width 32-bit tick counter.
const Max Ticks = 0xFFFFFFFF

// Elapsed returns the ticks between last and now, assuming at most one
// wrap of the counter in between. max is the platform's largest tick value.
//
// This is the only place "ticks since X" may be computed.
func Elapsed(last, now, max Ticks) Ticks {
	if now >= last {
		return now - last
	}
	return max - last + now
}

// Clock is the source of "current time" for all deadline arithmetic.
type Clock interface {
	Now() Ticks
}

// ------------------------------------------------------------
// HOST CLOCK
// ------------------------------------------------------------

// Host derives ticks from the process monotonic clock.
// The counter wraps at max+1 the way a hardware timer of that width would.
type Host struct {
	start time.Time
	rate  uint32
	max   Ticks
}

// NewHost creates a clock counting rate ticks per second, wrapping after max.
func NewHost(rate uint32, max Ticks) *Host {
	if rate == 0 {
		rate = 1000
	}
	if max == 0 {
		max = Max
	}
	return &Host{start: time.Now(), rate: rate, max: max}
}

func (h *Host) Now() Ticks {
	n := scale(time.Since(h.start), h.rate)
	if h.max == Max {
		return Ticks(uint32(n))
	}
	return Ticks(n % (uint64(h.max) + 1))
}

// FromDuration converts d into ticks at rate ticks per second.
// Results that do not fit the counter saturate at Max.
func FromDuration(d time.Duration, rate uint32) Ticks {
	if d <= 0 {
		return 0
	}
	n := scale(d, rate)
	if n > uint64(Max) {
		return Max
	}
	return Ticks(n)
}

// scale converts d to ticks without overflowing for long durations.
func scale(d time.Duration, rate uint32) uint64 {
	sec := uint64(d / time.Second)
	frac := uint64(d % time.Second)
	return sec*uint64(rate) + frac*uint64(rate)/uint64(time.Second)
}

// ------------------------------------------------------------
// MANUAL CLOCK
// ------------------------------------------------------------

// Manual is a clock that only moves when told to.
type Manual struct {
	mu  sync.Mutex
	now Ticks
}

func NewManual(start Ticks) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() Ticks {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *Manual) Set(t Ticks) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d, wrapping like a 32-bit counter.
func (m *Manual) Advance(d Ticks) Ticks {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now += d
	return m.now
}
