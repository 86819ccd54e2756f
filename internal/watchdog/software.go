// internal/watchdog/software.go
package watchdog

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
)

// ErrExpired is returned by Run when the watchdog was not kicked in time.
var ErrExpired = errors.New("watchdog: expired")

// CauseRecorder persists the reset cause for the next boot.
type CauseRecorder interface {
	RecordResetCause(c hardfault.ResetCause) error
}

// Software is a host stand-in for the hardware watchdog.
// If not kicked within its timeout it records a watchdog reset cause and
// calls reset.
type Software struct {
	timeout time.Duration
	rec     CauseRecorder
	reset   func()
	log     *slog.Logger

	kicks chan struct{}
}

func NewSoftware(timeout time.Duration, rec CauseRecorder, reset func(), logger *slog.Logger) *Software {
	if logger == nil {
		logger = slog.Default()
	}
	return &Software{
		timeout: timeout,
		rec:     rec,
		reset:   reset,
		log:     logger.With(slog.String("component", "watchdog")),
		kicks:   make(chan struct{}, 1),
	}
}

// Kick implements Kicker. Never blocks.
func (s *Software) Kick() {
	select {
	case s.kicks <- struct{}{}:
	default:
	}
}

// Run supervises kicks until ctx is done or the watchdog expires.
func (s *Software) Run(ctx context.Context) error {
	t := time.NewTimer(s.timeout)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-s.kicks:
			t.Reset(s.timeout)

		case <-t.C:
			s.log.Error("watchdog expired", slog.Duration("timeout", s.timeout))
			if s.rec != nil {
				if err := s.rec.RecordResetCause(hardfault.ResetWatchdog); err != nil {
					s.log.Error("record reset cause failed", slog.String("error", err.Error()))
				}
			}
			if s.reset != nil {
				s.reset()
			}
			return ErrExpired
		}
	}
}
