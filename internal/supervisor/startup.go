// internal/supervisor/startup.go
package supervisor

import (
	"errors"
	"log/slog"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
	"github.com/tamzrod/safety-supervisor/internal/selftest"
	"github.com/tamzrod/safety-supervisor/internal/watchdog"
)

// StartupConfig wires the power-on sequence.
// Schedulers are full-mode instances; a nil scheduler skips its domain.
type StartupConfig struct {
	Subsystem *selftest.Subsystem
	RAM       *selftest.Scheduler
	ROM       *selftest.Scheduler
	CPU       *selftest.Scheduler

	// CPUAtStartup runs the CPU sweep at boot.
	CPUAtStartup bool

	Escalator Escalator

	// Kicker is kicked before every step. Optional.
	Kicker watchdog.Kicker

	Logger *slog.Logger
}

// Startup runs the power-on self-tests.
type Startup struct {
	cfg StartupConfig
	log *slog.Logger
}

func NewStartup(cfg StartupConfig) (*Startup, error) {
	if cfg.Subsystem == nil {
		return nil, errors.New("supervisor: subsystem required")
	}
	if cfg.Escalator == nil {
		return nil, errors.New("supervisor: escalator required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Startup{
		cfg: cfg,
		log: cfg.Logger.With(slog.String("component", "startup")),
	}, nil
}

// PowerOnSelfTests runs
//
//	subsystem start -> permanent gate -> RAM -> ROM -> CPU (optional) -> watchdog reset check
//
// and returns only if every step passed. Any failure escalates.
//
// The permanent gate runs before the self-tests so that a device with a
// recorded permanent error never exercises its hardware again.
func (s *Startup) PowerOnSelfTests() {
	c := s.cfg
	s.log.Info("power-on self-tests started")

	s.kick()
	if err := c.Subsystem.Start(); err != nil {
		s.fail(hardfault.SafetyInit, "subsystem", err)
		return
	}

	s.kick()
	if err := c.Escalator.CheckPermanent(); err != nil {
		s.fail(hardfault.SafetyInit, "permanent_gate", err)
		return
	}

	full := []*selftest.Scheduler{c.RAM, c.ROM}
	if c.CPUAtStartup {
		full = append(full, c.CPU)
	}
	for _, sch := range full {
		if sch == nil {
			continue
		}
		s.kick()
		if err := sch.RunAll(); err != nil {
			s.fail(startupCode(sch.Domain()), sch.Domain().String(), err)
			return
		}
		s.log.Info("full self-test passed", slog.String("domain", sch.Domain().String()))
	}

	s.kick()
	if err := c.Escalator.CheckWatchdogReset(); err != nil {
		s.fail(hardfault.InternRTC, "watchdog_reset", err)
		return
	}

	s.log.Info("power-on self-tests passed")
}

func (s *Startup) kick() {
	if s.cfg.Kicker != nil {
		s.cfg.Kicker.Kick()
	}
}

func (s *Startup) fail(code hardfault.Code, step string, err error) {
	s.log.Error("power-on self-test failed",
		slog.String("step", step),
		slog.String("code", code.String()),
		slog.String("error", err.Error()),
	)
	s.cfg.Escalator.HardError(code)
}
