// internal/supervisor/runtime.go
package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
	"github.com/tamzrod/safety-supervisor/internal/metrics"
	"github.com/tamzrod/safety-supervisor/internal/monitor"
	"github.com/tamzrod/safety-supervisor/internal/sampler"
	"github.com/tamzrod/safety-supervisor/internal/selftest"
	"github.com/tamzrod/safety-supervisor/internal/status"
	"github.com/tamzrod/safety-supervisor/internal/tick"
	"github.com/tamzrod/safety-supervisor/internal/writer"
)

// WatchdogTrigger is the window watchdog as seen by the safety task.
type WatchdogTrigger interface {
	Init(now tick.Ticks)
	Service(now tick.Ticks) bool
}

// SampleSource delivers one supply sample per call.
type SampleSource interface {
	SampleOnce() sampler.Sample
}

// Evaluator judges supply samples.
type Evaluator interface {
	Evaluate(s sampler.Sample) monitor.Verdict
}

// RegisterChecker verifies that a register range did not change.
type RegisterChecker interface {
	CaptureReference() error
	CheckRegisters() error
}

// RuntimeConfig wires the periodic safety task.
type RuntimeConfig struct {
	Subsystem *selftest.Subsystem

	// Cyclic-mode schedulers, run in order every period.
	Schedulers []*selftest.Scheduler

	PST     tick.Ticks
	TickMax tick.Ticks
	Clock   tick.Clock
	Period  time.Duration

	// MaxGap bounds the ticks between two periods. Zero disables the check.
	MaxGap tick.Ticks

	// Optional collaborators.
	Watchdog          WatchdogTrigger
	Samples           SampleSource
	Monitor           Evaluator
	Registers         RegisterChecker
	RegisterTolerance int
	Status            writer.StatusWriter

	Escalator Escalator
	Logger    *slog.Logger
}

// Runtime is the single periodic safety task.
// Init and Execute must be called from one goroutine.
type Runtime struct {
	cfg RuntimeConfig
	log *slog.Logger

	ranOnce  bool
	lastExec tick.Ticks

	regFailures int
	sweeps      map[selftest.Domain]uint64
	statusErr   error
}

func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.Subsystem == nil {
		return nil, errors.New("supervisor: subsystem required")
	}
	if cfg.Escalator == nil {
		return nil, errors.New("supervisor: escalator required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("supervisor: clock required")
	}
	if cfg.PST == 0 {
		return nil, errors.New("supervisor: pst must be > 0")
	}
	if cfg.TickMax == 0 {
		cfg.TickMax = tick.Max
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Runtime{
		cfg:    cfg,
		log:    cfg.Logger.With(slog.String("component", "runtime")),
		sweeps: make(map[selftest.Domain]uint64),
	}, nil
}

// Init arms cyclic mode. Any failure escalates SafetyInit.
func (r *Runtime) Init() {
	c := r.cfg

	if err := c.Subsystem.Start(); err != nil {
		r.fatal(hardfault.SafetyInit, "subsystem start failed", err)
		return
	}
	for _, s := range c.Schedulers {
		if err := s.SetupCyclic(c.PST); err != nil {
			r.fatal(hardfault.SafetyInit, "cyclic setup failed", err)
			return
		}
	}
	if c.Registers != nil {
		if err := c.Registers.CaptureReference(); err != nil {
			r.fatal(hardfault.SafetyInit, "register reference capture failed", err)
			return
		}
	}

	now := c.Clock.Now()
	if c.Watchdog != nil {
		c.Watchdog.Init(now)
	}

	r.log.Info("cyclic supervision armed",
		slog.Int("domains", len(c.Schedulers)),
		slog.Uint64("pst_ticks", uint64(c.PST)),
	)
	r.publish(now, 0)
}

// Execute runs one safety period at now. It returns normally only when
// nothing escalated.
func (r *Runtime) Execute(now tick.Ticks) {
	c := r.cfg
	start := time.Now()

	// program flow: the task itself must keep its period
	if r.ranOnce && c.MaxGap > 0 {
		if gap := tick.Elapsed(r.lastExec, now, c.TickMax); gap > c.MaxGap {
			r.log.Error("safety period overrun",
				slog.Uint64("gap_ticks", uint64(gap)),
				slog.Uint64("max_ticks", uint64(c.MaxGap)),
			)
			c.Escalator.HardError(hardfault.InternSafetyCyclic)
			return
		}
	}
	r.ranOnce = true
	r.lastExec = now

	if c.Watchdog != nil && c.Watchdog.Service(now) {
		metrics.RecordWatchdogKick()
	}

	for _, s := range c.Schedulers {
		if err := s.RunCyclic(now); err != nil {
			r.fatal(classify(s.Domain(), err), "cyclic self-test failed", err)
			return
		}
	}

	if c.Registers != nil && !r.checkRegisters() {
		return
	}

	var flags uint16
	if c.Samples != nil && c.Monitor != nil {
		v := c.Monitor.Evaluate(c.Samples.SampleOnce())
		flags = v.Flags
		metrics.RecordMonitorFlags(flags)

		if v.Escalate {
			if v.Permanent {
				c.Escalator.PermanentHardError(v.Code)
			} else {
				c.Escalator.HardError(v.Code)
			}
			return
		}
	}

	r.publish(now, flags)
	metrics.RecordPeriod(time.Since(start))
}

// Run executes one period per tick of a fixed-period ticker until ctx is done.
// No overlap, no catch-up.
func (r *Runtime) Run(ctx context.Context) error {
	period := r.cfg.Period
	if period <= 0 {
		return errors.New("supervisor: period must be > 0")
	}

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.Execute(r.cfg.Clock.Now())
		}
	}
}

// checkRegisters reports whether the period may continue. Read failures are
// tolerated for RegisterTolerance consecutive periods; a mismatch is not.
func (r *Runtime) checkRegisters() bool {
	err := r.cfg.Registers.CheckRegisters()
	if err == nil {
		r.regFailures = 0
		return true
	}

	if !errors.Is(err, sampler.ErrRegisterMismatch) && r.regFailures < r.cfg.RegisterTolerance {
		r.regFailures++
		r.log.Warn("register check read failed", slog.Int("attempt", r.regFailures), slog.String("error", err.Error()))
		return true
	}

	r.fatal(hardfault.InternCheckRegisterCyclic, "register check failed", err)
	return false
}

func (r *Runtime) publish(now tick.Ticks, flags uint16) {
	s := status.Snapshot{Health: status.HealthOK, MonitorFlags: flags}
	for i := range s.DomainState {
		s.DomainState[i] = status.DomainDisabled
	}

	for _, sch := range r.cfg.Schedulers {
		snap := sch.Snapshot()
		d := snap.Domain
		if int(d) >= status.NumDomains {
			continue
		}

		configured := snap.State == selftest.Configured
		s.DomainState[d] = status.DomainIdle
		if configured {
			s.DomainState[d] = status.DomainConfigured
		}
		s.Sweeps[d] = uint16(snap.Sweeps)

		elapsed, _ := sch.Elapsed(now)
		metrics.RecordDomain(d.String(), configured, uint32(elapsed), snap.Sweeps-r.sweeps[d])
		r.sweeps[d] = snap.Sweeps
	}

	if r.cfg.Status == nil {
		return
	}

	err := r.cfg.Status.WriteStatus(s)
	if err != nil {
		metrics.RecordStatusWriteError()
	}
	// log transitions only
	if (err == nil) != (r.statusErr == nil) {
		if err != nil {
			r.log.Warn("status write failed", slog.String("error", err.Error()))
		} else {
			r.log.Info("status write recovered")
		}
	}
	r.statusErr = err
}

func (r *Runtime) fatal(code hardfault.Code, msg string, err error) {
	r.log.Error(msg, slog.String("code", code.String()), slog.String("error", err.Error()))
	r.cfg.Escalator.HardError(code)
}
