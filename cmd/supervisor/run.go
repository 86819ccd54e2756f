// cmd/supervisor/run.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/safety-supervisor/internal/backend/sim"
	"github.com/tamzrod/safety-supervisor/internal/config"
	"github.com/tamzrod/safety-supervisor/internal/hardfault"
	"github.com/tamzrod/safety-supervisor/internal/metrics"
	"github.com/tamzrod/safety-supervisor/internal/monitor"
	"github.com/tamzrod/safety-supervisor/internal/sampler"
	"github.com/tamzrod/safety-supervisor/internal/selftest"
	"github.com/tamzrod/safety-supervisor/internal/status"
	"github.com/tamzrod/safety-supervisor/internal/supervisor"
	"github.com/tamzrod/safety-supervisor/internal/tick"
	"github.com/tamzrod/safety-supervisor/internal/watchdog"
	"github.com/tamzrod/safety-supervisor/internal/writer"
)

const (
	// exitWatchdogReset is the exit status of a process the software
	// watchdog took down. A service manager restarts it into the
	// watchdog-reset path of the boot sequence.
	exitWatchdogReset = 3

	defaultBlink  = 500 * time.Millisecond
	shutdownGrace = 2 * time.Second
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Boot the supervisor and run the periodic safety task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, c, newLogger(opts, os.Stderr))
		},
	}
}

func run(ctx context.Context, c *config.Config, logger *slog.Logger) error {
	s := c.Supervisor

	bootID := uuid.New()
	logger = logger.With(slog.String("boot_id", bootID.String()))
	logger.Info("supervisor starting", slog.String("name", s.Name))

	// --------------------
	// Non-volatile store
	// --------------------

	st, err := openStores(s.Store, logger)
	if err != nil {
		return fmt.Errorf("store open failed: %w", err)
	}
	defer st.Close()

	// --------------------
	// Status block + indicator
	// --------------------

	var (
		statusWriter writer.StatusWriter
		indicator    hardfault.Indicator
	)
	if plan := writer.BuildPlan(*c); plan != nil {
		dsw, closeStatus, err := writer.BuildStatusWriter(plan)
		if err != nil {
			return fmt.Errorf("status writer failed: %w", err)
		}
		defer closeStatus()

		ind := writer.NewIndicator(dsw, ms(s.Status.BlinkMs), logger)
		statusWriter, indicator = ind, ind

		// identity re-assert before anything else runs
		if err := ind.WriteStatus(status.Snapshot{Health: status.HealthUnknown}); err != nil {
			logger.Warn("status write failed on start", slog.String("error", err.Error()))
		}
	} else {
		indicator = logIndicator(logger, defaultBlink)
	}

	// --------------------
	// Escalation
	// --------------------

	g, gctx := errgroup.WithContext(ctx)

	// the safety task runs under appCtx; freezing cancels it
	appCtx, freeze := context.WithCancel(gctx)
	defer freeze()

	var halted atomic.Bool
	esc, err := hardfault.New(hardfault.Config{
		NV:        st.nv,
		Log:       st.log,
		Resets:    st.nv,
		Freezer:   hardfault.FreezerFunc(freeze),
		Indicator: indicator,
		Hook: func(code hardfault.Code, permanent bool) {
			halted.Store(true)
			metrics.RecordHardError(code.String(), permanent)
		},
		BootID: bootID,
		Logger: logger,
	})
	if err != nil {
		return err
	}

	// --------------------
	// Watchdog + clock
	// --------------------

	timeout := ms(s.Watchdog.TimeoutMs)
	swd := watchdog.NewSoftware(timeout, st.nv, func() {
		logger.Error("watchdog reset", slog.Duration("timeout", timeout))
		os.Exit(exitWatchdogReset)
	}, logger)

	tickMax := tick.Ticks(s.TickMax)
	clock := tick.NewHost(s.TickRateHz, tickMax)
	window := watchdog.NewWindow(swd, watchdog.TriggerTicks(timeout, s.Watchdog.WindowPercent, s.TickRateHz), tickMax)

	// --------------------
	// Self-test schedulers
	// --------------------

	platform, err := sim.NewPlatform(s.SelfTest)
	if err != nil {
		return fmt.Errorf("platform build failed: %w", err)
	}

	sub := selftest.NewSubsystem(func() error {
		logger.Debug("self-test subsystem started")
		return nil
	})

	// full and cyclic mode never share registries or backends
	full, err := supervisor.BuildSchedulers(s, sub, platform.Units, logger)
	if err != nil {
		return fmt.Errorf("full-mode schedulers failed: %w", err)
	}
	cyclic, err := supervisor.BuildSchedulers(s, sub, platform.Units, logger)
	if err != nil {
		return fmt.Errorf("cyclic-mode schedulers failed: %w", err)
	}

	// --------------------
	// Supply monitor (optional)
	// --------------------

	rc := supervisor.RuntimeConfig{
		Subsystem:  sub,
		Schedulers: cyclic.Ordered(),
		PST:        tick.FromDuration(ms(s.PSTMs), s.TickRateHz),
		TickMax:    tickMax,
		Clock:      clock,
		Period:     ms(s.PeriodMs),
		MaxGap:     tick.FromDuration(ms(s.MaxPeriodGapMs), s.TickRateHz),
		Watchdog:   window,
		Status:     statusWriter,
		Escalator:  esc,
		Logger:     logger,
	}

	if m := s.Monitor; m != nil {
		smp, closeSampler, err := sampler.Build(*m)
		if err != nil {
			return fmt.Errorf("sampler build failed: %w", err)
		}
		defer closeSampler()

		rc.Samples = smp
		rc.Monitor = monitor.New(monitor.Config{
			Voltage:     limit(m.Voltage),
			Power:       limit(m.Power),
			Temperature: limit(m.Temperature),
			Tolerance:   m.Tolerance,
		}, logger)

		if smp.HasRegisterCheck() {
			rc.Registers = smp
			rc.RegisterTolerance = m.Tolerance
		}
	}

	startup, err := supervisor.NewStartup(supervisor.StartupConfig{
		Subsystem:    sub,
		RAM:          full.RAM,
		ROM:          full.ROM,
		CPU:          full.CPU,
		CPUAtStartup: s.SelfTest.CPU.RunAtStartup,
		Escalator:    esc,
		Kicker:       swd,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	rt, err := supervisor.NewRuntime(rc)
	if err != nil {
		return err
	}

	// --------------------
	// Run
	// --------------------

	g.Go(func() error { return swd.Run(gctx) })

	if addr := s.Metrics.Listen; addr != "" {
		g.Go(func() error { return serveMetrics(gctx, addr, logger) })
	}

	g.Go(func() error {
		startup.PowerOnSelfTests()

		// a restart from here on is not a watchdog reset unless the watchdog says so
		if err := st.nv.RecordResetCause(hardfault.ResetSoftware); err != nil {
			logger.Warn("record reset cause failed", slog.String("error", err.Error()))
		}

		rt.Init()
		return rt.Run(appCtx)
	})

	errc := make(chan error, 1)
	go func() { errc <- g.Wait() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	// a hard error never returns from the safety task
	select {
	case err := <-errc:
		logger.Info("supervisor stopped")
		return err
	case <-time.After(shutdownGrace):
		if halted.Load() {
			return errors.New("stopped in hard error state")
		}
		return errors.New("shutdown timed out")
	}
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// logIndicator signals a hard error in the log when no status block is configured.
func logIndicator(logger *slog.Logger, period time.Duration) hardfault.Indicator {
	var signals int
	return hardfault.IndicatorFunc(func(code hardfault.Code, permanent bool) {
		if signals == 0 {
			logger.Error("hard error indicator active",
				slog.String("code", code.String()),
				slog.Bool("permanent", permanent),
			)
		}
		signals++
		time.Sleep(period)
	})
}

func limit(l *config.LimitConfig) *monitor.Limit {
	if l == nil {
		return nil
	}
	return &monitor.Limit{Min: l.Min, Max: l.Max}
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
