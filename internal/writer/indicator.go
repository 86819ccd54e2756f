// internal/writer/indicator.go
package writer

import (
	"log/slog"
	"sync"
	"time"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
	"github.com/tamzrod/safety-supervisor/internal/status"
)

// Indicator shows a hard error in the status block.
// It is also the StatusWriter of the running supervisor so that the
// terminal block keeps the last published domain state.
type Indicator struct {
	w      StatusWriter
	period time.Duration
	log    *slog.Logger

	// replaceable in tests
	now   func() time.Time
	sleep func(time.Duration)

	mu        sync.Mutex
	last      status.Snapshot
	since     time.Time
	lastWrite error
}

// NewIndicator wraps w. Each Signal call writes once and then waits period.
func NewIndicator(w StatusWriter, period time.Duration, logger *slog.Logger) *Indicator {
	if period <= 0 {
		period = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indicator{
		w:      w,
		period: period,
		log:    logger.With(slog.String("component", "indicator")),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// WriteStatus remembers s and forwards it.
func (ind *Indicator) WriteStatus(s status.Snapshot) error {
	ind.mu.Lock()
	ind.last = s
	ind.mu.Unlock()
	return ind.w.WriteStatus(s)
}

// Signal implements hardfault.Indicator.
func (ind *Indicator) Signal(code hardfault.Code, permanent bool) {
	ind.mu.Lock()
	now := ind.now()
	if ind.since.IsZero() {
		ind.since = now
	}

	s := ind.last
	s.Health = status.HealthHardError
	if permanent {
		s.Health = status.HealthPermanentError
	}
	s.LastErrorCode = uint16(code)

	secs := now.Sub(ind.since) / time.Second
	if secs > 65535 {
		secs = 65535
	}
	s.SecondsInError = uint16(secs)
	ind.last = s
	ind.mu.Unlock()

	err := ind.w.WriteStatus(s)

	// log transitions only; this runs forever
	if (err == nil) != (ind.lastWrite == nil) {
		if err != nil {
			ind.log.Warn("hard error indication failed", slog.String("error", err.Error()))
		} else {
			ind.log.Info("hard error indicated", slog.String("code", code.String()), slog.Bool("permanent", permanent))
		}
	}
	ind.lastWrite = err

	ind.sleep(ind.period)
}
