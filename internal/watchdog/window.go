// internal/watchdog/window.go
package watchdog

import (
	"sync"
	"time"

	"github.com/tamzrod/safety-supervisor/internal/tick"
)

// Kicker is the hardware watchdog trigger.
type Kicker interface {
	Kick()
}

// KickerFunc adapts a function to Kicker.
type KickerFunc func()

func (f KickerFunc) Kick() { f() }

// TriggerTicks is the trigger time at the centre of the open window:
// timeout * (100 - window/2) / 100.
func TriggerTicks(timeout time.Duration, windowPercent int, rate uint32) tick.Ticks {
	if windowPercent < 0 {
		windowPercent = 0
	}
	if windowPercent > 100 {
		windowPercent = 100
	}
	t := uint64(tick.FromDuration(timeout, rate))
	return tick.Ticks(t * uint64(200-windowPercent) / 200)
}

// Window triggers a window watchdog no earlier than its trigger time.
// Kicking too early would reset a window watchdog just like not kicking.
type Window struct {
	hw      Kicker
	trigger tick.Ticks
	max     tick.Ticks

	mu   sync.Mutex
	last tick.Ticks
}

// NewWindow builds a window trigger. max is the platform maximum tick value.
func NewWindow(hw Kicker, trigger, max tick.Ticks) *Window {
	if max == 0 {
		max = tick.Max
	}
	return &Window{hw: hw, trigger: trigger, max: max}
}

// Init marks now as the last trigger.
func (w *Window) Init(now tick.Ticks) {
	w.mu.Lock()
	w.last = now
	w.mu.Unlock()
}

// Service kicks the hardware when more than the trigger time elapsed since
// the last kick. It reports whether it kicked.
func (w *Window) Service(now tick.Ticks) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if tick.Elapsed(w.last, now, w.max) <= w.trigger {
		return false
	}
	w.last = now
	w.hw.Kick()
	return true
}
