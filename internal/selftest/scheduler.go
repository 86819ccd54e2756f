// internal/selftest/scheduler.go
package selftest

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tamzrod/safety-supervisor/internal/tick"
)

// Options is the per-instance scheduler configuration.
type Options struct {
	// Regions handed to every backend of the domain. Empty for CPU.
	Regions []Region

	// Check validates Regions before any backend call.
	// A nil Check only accepts an empty Regions list.
	Check RegionCheck

	// SectionsPerSlice is used by cyclic mode. Zero means one section.
	SectionsPerSlice uint32

	// TickMax is the platform's largest tick value. Zero means tick.Max.
	TickMax tick.Ticks

	Logger *slog.Logger
}

// Snapshot is a consistent copy of the scheduler state.
type Snapshot struct {
	Domain   Domain
	State    State
	Index    int
	Statuses []Status
	Seeded   bool
	LastPass tick.Ticks
	PST      tick.Ticks
	Sweeps   uint64
}

// Scheduler runs the units of one registry, either all at once (full mode)
// or one slice per call (cyclic mode). Full and cyclic mode are separate
// instances with separate registries and backends.
//
// All methods are safe for concurrent use.
type Scheduler struct {
	mu   sync.Mutex
	sub  *Subsystem
	reg  *Registry
	opts Options
	log  *slog.Logger

	state    State
	index    int
	seeded   bool
	lastPass tick.Ticks
	pst      tick.Ticks
	sweeps   uint64
}

// NewScheduler creates an Idle scheduler over reg.
func NewScheduler(sub *Subsystem, reg *Registry, opts Options) (*Scheduler, error) {
	if sub == nil {
		return nil, errors.New("selftest: subsystem required")
	}
	if reg == nil {
		return nil, errors.New("selftest: registry required")
	}
	if opts.SectionsPerSlice == 0 {
		opts.SectionsPerSlice = 1
	}
	if opts.TickMax == 0 {
		opts.TickMax = tick.Max
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	regions := make([]Region, len(opts.Regions))
	copy(regions, opts.Regions)
	opts.Regions = regions

	return &Scheduler{
		sub:  sub,
		reg:  reg,
		opts: opts,
		log:  opts.Logger.With(slog.String("domain", reg.Domain().String())),
	}, nil
}

func (s *Scheduler) Domain() Domain { return s.reg.Domain() }

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns the current state for status queries.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Domain:   s.reg.Domain(),
		State:    s.state,
		Index:    s.index,
		Statuses: s.reg.Statuses(),
		Seeded:   s.seeded,
		LastPass: s.lastPass,
		PST:      s.pst,
		Sweeps:   s.sweeps,
	}
}

// Elapsed returns the ticks since the last completed sweep.
// ok is false until the first cyclic run seeded the reference.
func (s *Scheduler) Elapsed(now tick.Ticks) (tick.Ticks, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.seeded {
		return 0, false
	}
	return tick.Elapsed(s.lastPass, now, s.opts.TickMax), true
}

// ------------------------------------------------------------
// SETUP
// ------------------------------------------------------------

// SetupCyclic validates the regions, initializes and configures every enabled
// backend and arms cyclic mode with the given process safety time.
// On any failure the scheduler is left Idle and no test runs.
func (s *Scheduler) SetupCyclic(pst tick.Ticks) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = Idle

	if pst == 0 {
		return &ConfigError{Domain: s.Domain(), Err: errors.New("process safety time must be > 0")}
	}
	if !s.sub.Started() {
		return &ConfigError{Domain: s.Domain(), Err: ErrNotStarted}
	}
	if err := s.checkRegions(); err != nil {
		return &ConfigError{Domain: s.Domain(), Err: err}
	}

	plan := s.plan(s.opts.SectionsPerSlice)
	for i := 0; i < s.reg.Len(); i++ {
		u := s.reg.Unit(i)
		if !u.Enabled {
			continue
		}
		if err := prepare(u.Backend, plan); err != nil {
			return &ConfigError{
				Domain: s.Domain(),
				Err:    &UnitError{Domain: s.Domain(), Index: i, Name: u.Name, Status: NotTested, Err: err},
			}
		}
	}

	s.reg.ResetAll()
	s.index = 0
	s.seeded = false
	s.lastPass = 0
	s.pst = pst
	s.state = Configured

	s.log.Info("cyclic self-test configured",
		slog.Uint64("pst_ticks", uint64(pst)),
		slog.Int("units", s.reg.Len()),
		slog.Int("enabled", s.reg.EnabledCount()),
		slog.Uint64("sections_per_slice", uint64(s.opts.SectionsPerSlice)),
	)
	return nil
}

// ------------------------------------------------------------
// FULL MODE
// ------------------------------------------------------------

// RunAll resets every status and runs every enabled unit to completion.
// A failing unit never stops the remaining units from running.
// The result is nil only if no unit reported an error and the status audit holds.
func (s *Scheduler) RunAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.sub.Started() {
		return ErrNotStarted
	}
	if err := s.checkRegions(); err != nil {
		return &ConfigError{Domain: s.Domain(), Err: err}
	}

	s.reg.ResetAll()
	plan := s.plan(AllSections)

	var errs []error
	reported := make(map[int]bool)
	for i := 0; i < s.reg.Len(); i++ {
		u := s.reg.Unit(i)
		if !u.Enabled {
			continue
		}

		st, err := runOneShot(u.Backend, plan)
		s.reg.record(i, st)

		if err := executionError(st, err); err != nil {
			errs = append(errs, s.unitError(i, err))
			reported[i] = true
		}
	}

	errs = append(errs, s.auditFull(reported)...)

	if len(errs) > 0 {
		s.log.Warn("full self-test failed", slog.Int("failures", len(errs)))
		return errors.Join(errs...)
	}

	s.log.Debug("full self-test passed")
	return nil
}

// RunSingle runs one unit to completion for diagnostics.
// The result depends on the unit's status only. No deadline is checked.
// A Configured scheduler returns to Idle because the unit's backend is
// reconfigured for a one-shot run.
func (s *Scheduler) RunSingle(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= s.reg.Len() {
		return fmt.Errorf("%w: %d (registry has %d units)", ErrIndexOutOfRange, index, s.reg.Len())
	}
	if !s.sub.Started() {
		return ErrNotStarted
	}

	u := s.reg.Unit(index)
	if !u.Enabled {
		return s.unitError(index, ErrUnitDisabled)
	}
	if err := s.checkRegions(); err != nil {
		return &ConfigError{Domain: s.Domain(), Err: err}
	}

	if s.state == Configured {
		s.state = Idle
		s.log.Info("single run leaves cyclic mode", slog.Int("unit", index))
	}

	st, err := runOneShot(u.Backend, s.plan(AllSections))
	s.reg.record(index, st)

	if err != nil {
		return s.unitError(index, err)
	}
	if st != Passed {
		return s.unitError(index, fmt.Errorf("backend reported %s", st))
	}
	return nil
}

// ------------------------------------------------------------
// CYCLIC MODE
// ------------------------------------------------------------

// RunCyclic runs one slice of the current unit and then checks the process
// safety time. The deadline is refreshed only when a sweep over all enabled
// units completes. Execution and audit failures drop the scheduler to Idle.
//
// The returned error joins any *UnitError and *DeadlineError of this call.
func (s *Scheduler) RunCyclic(now tick.Ticks) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Configured {
		return ErrNotConfigured
	}
	if !s.sub.Started() {
		s.state = Idle
		return ErrNotStarted
	}

	// the deadline reference cannot be known before the clock runs
	if !s.seeded {
		s.seeded = true
		s.lastPass = now
	}

	var errs []error

	if s.index == 0 {
		s.reg.ResetAll()
	}
	s.skipDisabled()

	if s.index >= s.reg.Len() {
		// nothing enabled: every call is a complete sweep
		s.completeSweep(now)
	} else if unitErrs := s.step(now); len(unitErrs) > 0 {
		errs = append(errs, unitErrs...)
		s.state = Idle
		s.log.Warn("cyclic self-test failed, scheduler idle",
			slog.Int("unit", s.index),
			slog.Int("failures", len(unitErrs)),
		)
	}

	elapsed := tick.Elapsed(s.lastPass, now, s.opts.TickMax)
	if elapsed > s.pst {
		errs = append(errs, &DeadlineError{Domain: s.Domain(), Elapsed: elapsed, Budget: s.pst})
		s.log.Warn("process safety time exceeded",
			slog.Uint64("elapsed_ticks", uint64(elapsed)),
			slog.Uint64("pst_ticks", uint64(s.pst)),
		)
	}

	return errors.Join(errs...)
}

// step runs one slice of the current unit and advances on Passed.
func (s *Scheduler) step(now tick.Ticks) []error {
	i := s.index
	u := s.reg.Unit(i)

	st, err := u.Backend.RunSlice()
	s.reg.record(i, st)

	var errs []error
	reported := make(map[int]bool)
	if err := executionError(st, err); err != nil {
		errs = append(errs, s.unitError(i, err))
		reported[i] = true
	}
	errs = append(errs, s.auditCyclic(i, reported)...)
	if len(errs) > 0 {
		return errs
	}

	if st != Passed {
		return nil
	}

	// unit finished its sweep; rearm it for the next one
	if err := expectNotTested(u.Backend.Reset()); err != nil {
		return []error{s.unitError(i, fmt.Errorf("reset: %w", err))}
	}

	s.index++
	s.skipDisabled()
	if s.index >= s.reg.Len() {
		s.completeSweep(now)
	}
	return nil
}

func (s *Scheduler) completeSweep(now tick.Ticks) {
	s.index = 0
	s.lastPass = now
	s.sweeps++
	s.log.Debug("cyclic sweep complete", slog.Uint64("at_ticks", uint64(now)), slog.Uint64("sweeps", s.sweeps))
}

func (s *Scheduler) skipDisabled() {
	for s.index < s.reg.Len() && !s.reg.Unit(s.index).Enabled {
		s.index++
	}
}

// ------------------------------------------------------------
// AUDIT
// ------------------------------------------------------------

// auditFull checks every unit after a full run. All units are evaluated;
// units in reported already carry an execution error and are not repeated.
func (s *Scheduler) auditFull(reported map[int]bool) []error {
	var errs []error
	for i := 0; i < s.reg.Len(); i++ {
		if reported[i] {
			continue
		}
		want := NotTested
		if s.reg.Unit(i).Enabled {
			want = Passed
		}
		if st := s.reg.Status(i); st != want {
			errs = append(errs, s.unitError(i, fmt.Errorf("%w: want %s", ErrAudit, want)))
		}
	}
	return errs
}

// auditCyclic checks every unit against its position in the current sweep:
// enabled units before current are Passed, current is Passed or
// PartialPassed, everything else is NotTested. All units are evaluated.
func (s *Scheduler) auditCyclic(current int, reported map[int]bool) []error {
	var errs []error
	for i := 0; i < s.reg.Len(); i++ {
		if reported[i] {
			continue
		}
		st := s.reg.Status(i)
		ok := false

		switch {
		case !s.reg.Unit(i).Enabled:
			ok = st == NotTested
		case i < current:
			ok = st == Passed
		case i == current:
			ok = st == Passed || st == PartialPassed
		default:
			ok = st == NotTested
		}

		if !ok {
			errs = append(errs, s.unitError(i, ErrAudit))
		}
	}
	return errs
}

// ------------------------------------------------------------
// helpers
// ------------------------------------------------------------

func (s *Scheduler) checkRegions() error {
	if s.opts.Check != nil {
		return s.opts.Check.CheckRegions(s.opts.Regions)
	}
	if len(s.opts.Regions) > 0 {
		return fmt.Errorf("%w: %s takes no regions", ErrInvalidRegion, s.Domain())
	}
	return nil
}

func (s *Scheduler) plan(sections uint32) Plan {
	regions := make([]Region, len(s.opts.Regions))
	copy(regions, s.opts.Regions)
	return Plan{Regions: regions, SectionsPerSlice: sections}
}

func (s *Scheduler) unitError(i int, err error) *UnitError {
	u := s.reg.Unit(i)
	return &UnitError{
		Domain: s.Domain(),
		Index:  i,
		Name:   u.Name,
		Status: s.reg.Status(i),
		Err:    err,
	}
}

// prepare runs Init then Configure. Both must leave the backend NotTested.
func prepare(b Backend, p Plan) error {
	if err := expectNotTested(b.Init()); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := expectNotTested(b.Configure(p)); err != nil {
		return fmt.Errorf("configure: %w", err)
	}
	return nil
}

func runOneShot(b Backend, p Plan) (Status, error) {
	if err := prepare(b, p); err != nil {
		return Error, err
	}
	return b.RunSlice()
}

func expectNotTested(st Status, err error) error {
	if err != nil {
		return err
	}
	if st != NotTested {
		return fmt.Errorf("%w: status %s", ErrBackendRejected, st)
	}
	return nil
}

// executionError classifies what the backend said about the slice it ran.
func executionError(st Status, err error) error {
	if err != nil {
		return err
	}
	if st == Failed || st == Error {
		return fmt.Errorf("backend reported %s", st)
	}
	return nil
}
