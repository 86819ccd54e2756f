// internal/supervisor/fake_test.go
package supervisor

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
	"github.com/tamzrod/safety-supervisor/internal/monitor"
	"github.com/tamzrod/safety-supervisor/internal/sampler"
	"github.com/tamzrod/safety-supervisor/internal/selftest"
	"github.com/tamzrod/safety-supervisor/internal/status"
	"github.com/tamzrod/safety-supervisor/internal/tick"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// ---- trace ----

type trace struct {
	lines []string
}

func (t *trace) add(format string, args ...any) {
	t.lines = append(t.lines, fmt.Sprintf(format, args...))
}

func (t *trace) String() string {
	return strings.Join(t.lines, "\n") + "\n"
}

func assertGolden(t *testing.T, name string, tr *trace) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(tr.String()))
}

// ---- backend ----

// traceBackend needs `slices` RunSlice calls per sweep unless run one-shot.
type traceBackend struct {
	name   string
	tr     *trace
	slices int
	fail   bool

	all bool
	pos int
}

func (b *traceBackend) Init() (selftest.Status, error) {
	b.tr.add("%s init", b.name)
	return selftest.NotTested, nil
}

func (b *traceBackend) Configure(p selftest.Plan) (selftest.Status, error) {
	b.pos = 0
	b.all = p.SectionsPerSlice == selftest.AllSections
	sections := fmt.Sprint(p.SectionsPerSlice)
	if b.all {
		sections = "all"
	}
	b.tr.add("%s configure regions=%d sections=%s", b.name, len(p.Regions), sections)
	return selftest.NotTested, nil
}

func (b *traceBackend) RunSlice() (selftest.Status, error) {
	st := selftest.PartialPassed
	switch {
	case b.fail:
		st = selftest.Failed
	case b.all:
		st = selftest.Passed
	default:
		b.pos++
		if b.pos >= b.slices {
			st = selftest.Passed
		}
	}
	b.tr.add("%s run_slice -> %s", b.name, st)
	return st, nil
}

func (b *traceBackend) Reset() (selftest.Status, error) {
	b.pos = 0
	b.tr.add("%s reset", b.name)
	return selftest.NotTested, nil
}

// ---- escalator ----

// halted is panicked by the fake escalator in place of the endless loop.
type halted struct {
	code      hardfault.Code
	permanent bool
}

type fakeEscalator struct {
	tr *trace

	permanent *hardfault.Code // recorded permanent error found at boot
	watchdog  *hardfault.Code // code re-entered after a watchdog reset
	permErr   error
	wdErr     error
}

func (f *fakeEscalator) HardError(code hardfault.Code) {
	f.tr.add("hard_error %s", code)
	panic(halted{code: code})
}

func (f *fakeEscalator) PermanentHardError(code hardfault.Code) {
	f.tr.add("permanent_hard_error %s", code)
	panic(halted{code: code, permanent: true})
}

func (f *fakeEscalator) CheckPermanent() error {
	f.tr.add("check_permanent")
	if f.permanent != nil {
		f.PermanentHardError(*f.permanent)
	}
	return f.permErr
}

func (f *fakeEscalator) CheckWatchdogReset() error {
	f.tr.add("check_watchdog_reset")
	if f.watchdog != nil {
		f.HardError(*f.watchdog)
	}
	return f.wdErr
}

// catchHalt runs fn and returns the escalation it ended in, if any.
func catchHalt(fn func()) (h *halted) {
	defer func() {
		if r := recover(); r != nil {
			hh, ok := r.(halted)
			if !ok {
				panic(r)
			}
			h = &hh
		}
	}()
	fn()
	return nil
}

func codePtr(c hardfault.Code) *hardfault.Code { return &c }

// ---- status ----

type traceStatus struct {
	tr   *trace
	err  error
	last status.Snapshot
	n    int
}

func (s *traceStatus) WriteStatus(snap status.Snapshot) error {
	s.n++
	s.last = snap
	if s.tr != nil {
		s.tr.add("status health=%d state=%v sweeps=%v flags=%d", snap.Health, snap.DomainState, snap.Sweeps, snap.MonitorFlags)
	}
	return s.err
}

// ---- runtime collaborators ----

type fakeWatchdog struct {
	initAt   tick.Ticks
	services []tick.Ticks
}

func (w *fakeWatchdog) Init(now tick.Ticks) { w.initAt = now }

func (w *fakeWatchdog) Service(now tick.Ticks) bool {
	w.services = append(w.services, now)
	return true
}

type fakeSamples struct{ n int }

func (f *fakeSamples) SampleOnce() sampler.Sample {
	f.n++
	return sampler.Sample{VoltageMilli: 3300}
}

type fakeEvaluator struct {
	verdict monitor.Verdict
}

func (f *fakeEvaluator) Evaluate(sampler.Sample) monitor.Verdict { return f.verdict }

type fakeRegisters struct {
	captureErr error
	checkErrs  []error // consumed one per check; nil entries pass
	checks     int
}

func (f *fakeRegisters) CaptureReference() error { return f.captureErr }

func (f *fakeRegisters) CheckRegisters() error {
	f.checks++
	if len(f.checkErrs) == 0 {
		return nil
	}
	err := f.checkErrs[0]
	f.checkErrs = f.checkErrs[1:]
	return err
}

// ---- rig ----

var (
	ramRegions = []selftest.Region{{Start: 0x0000, End: 0x00FF}}
	romRegions = []selftest.Region{{Start: 0x8000, End: 0x83FF}}
	romLayout  = selftest.ROMLayout{FlashBase: 0x8000, CRCStart: 0x9000}
)

type rig struct {
	tr       *trace
	sub      *selftest.Subsystem
	esc      *fakeEscalator
	backends map[string]*traceBackend
}

func newRig() *rig {
	tr := &trace{}
	return &rig{
		tr:       tr,
		esc:      &fakeEscalator{tr: tr},
		backends: make(map[string]*traceBackend),
		sub: selftest.NewSubsystem(func() error {
			tr.add("subsystem.start")
			return nil
		}),
	}
}

func (r *rig) unit(name string, slices int) selftest.Unit {
	b := &traceBackend{name: name, tr: r.tr, slices: slices}
	r.backends[name] = b
	return selftest.Unit{Name: name, Enabled: true, Backend: b}
}

func (r *rig) scheduler(t *testing.T, d selftest.Domain, opts selftest.Options, units ...selftest.Unit) *selftest.Scheduler {
	t.Helper()
	reg, err := selftest.NewRegistry(d, units)
	require.NoError(t, err)
	opts.Logger = discard()
	s, err := selftest.NewScheduler(r.sub, reg, opts)
	require.NoError(t, err)
	return s
}

func ramOpts() selftest.Options {
	return selftest.Options{Regions: ramRegions, Check: selftest.RAMLayout{}}
}

func romOpts() selftest.Options {
	return selftest.Options{Regions: romRegions, Check: romLayout}
}
