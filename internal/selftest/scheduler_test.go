// internal/selftest/scheduler_test.go
package selftest

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamzrod/safety-supervisor/internal/tick"
)

// helper to build a started scheduler over the given backends
func newScheduler(t *testing.T, d Domain, enabled []bool, backends []*fakeBackend, opts Options) (*Scheduler, *Subsystem) {
	t.Helper()

	units := make([]Unit, len(backends))
	for i, b := range backends {
		units[i] = Unit{Name: fmt.Sprintf("unit%d", i), Enabled: enabled[i], Backend: b}
	}

	reg, err := NewRegistry(d, units)
	require.NoError(t, err)

	sub := NewSubsystem(nil)
	require.NoError(t, sub.Start())

	opts.Logger = discardLogger()
	s, err := NewScheduler(sub, reg, opts)
	require.NoError(t, err)
	return s, sub
}

func threeUnits() ([]bool, []*fakeBackend) {
	return []bool{true, true, true}, []*fakeBackend{{}, {}, {}}
}

// ---- setup ----

func TestSetupCyclic_RequiresStartedSubsystem(t *testing.T) {
	enabled, backends := threeUnits()
	s, sub := newScheduler(t, CPU, enabled, backends, Options{})
	sub.Stop()

	err := s.SetupCyclic(100)

	require.ErrorIs(t, err, ErrNotStarted)
	assert.Equal(t, Idle, s.State())
	assert.Zero(t, backends[0].inits)
}

func TestSetupCyclic_InvalidRegionNeverReachesBackend(t *testing.T) {
	enabled, backends := threeUnits()
	s, _ := newScheduler(t, RAM, enabled, backends, Options{
		Regions: []Region{{Start: 0x20000002, End: 0x200000FF}},
		Check:   RAMLayout{},
	})

	err := s.SetupCyclic(100)

	require.ErrorIs(t, err, ErrInvalidRegion)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, Idle, s.State())
	for _, b := range backends {
		assert.Zero(t, b.inits)
		assert.Zero(t, b.configs)
	}
}

func TestSetupCyclic_RegionsWithoutCheckRejected(t *testing.T) {
	enabled, backends := threeUnits()
	s, _ := newScheduler(t, CPU, enabled, backends, Options{
		Regions: []Region{{Start: 0, End: 31}},
	})

	require.ErrorIs(t, s.SetupCyclic(100), ErrInvalidRegion)
}

func TestSetupCyclic_BackendMustStayNotTested(t *testing.T) {
	enabled, backends := threeUnits()
	backends[1].initSt = Passed
	s, _ := newScheduler(t, CPU, enabled, backends, Options{})

	err := s.SetupCyclic(100)

	require.ErrorIs(t, err, ErrBackendRejected)
	assert.Equal(t, Idle, s.State())
}

func TestSetupCyclic_ConfigureError(t *testing.T) {
	enabled, backends := threeUnits()
	backends[2].cfgErr = errors.New("bad subset")
	s, _ := newScheduler(t, CPU, enabled, backends, Options{})

	require.Error(t, s.SetupCyclic(100))
	assert.Equal(t, Idle, s.State())
}

func TestSetupCyclic_ZeroBudgetRejected(t *testing.T) {
	enabled, backends := threeUnits()
	s, _ := newScheduler(t, CPU, enabled, backends, Options{})

	require.Error(t, s.SetupCyclic(0))
	assert.Equal(t, Idle, s.State())
}

func TestSetupCyclic_PassesSectionsPerSlice(t *testing.T) {
	enabled, backends := threeUnits()
	s, _ := newScheduler(t, CPU, enabled, backends, Options{SectionsPerSlice: 4})

	require.NoError(t, s.SetupCyclic(100))

	assert.Equal(t, Configured, s.State())
	assert.Equal(t, uint32(4), backends[0].lastPlan.SectionsPerSlice)
	assert.Equal(t, 1, backends[0].inits)
}

func TestSetupCyclic_SkipsDisabledBackends(t *testing.T) {
	backends := []*fakeBackend{{}, {}}
	s, _ := newScheduler(t, CPU, []bool{true, false}, backends, Options{})

	require.NoError(t, s.SetupCyclic(100))
	assert.Zero(t, backends[1].inits)
}

// ---- cyclic ----

func TestRunCyclic_NotConfiguredFailsImmediately(t *testing.T) {
	enabled, backends := threeUnits()
	s, _ := newScheduler(t, CPU, enabled, backends, Options{})

	require.ErrorIs(t, s.RunCyclic(0), ErrNotConfigured)
	assert.Zero(t, backends[0].runs)
}

func TestRunCyclic_ThreeUnitSweepAndDeadline(t *testing.T) {
	enabled, backends := threeUnits()
	s, _ := newScheduler(t, RAM, enabled, backends, Options{
		Regions: []Region{{Start: 0x20000000, End: 0x200000FF}},
		Check:   RAMLayout{Backup: Region{Start: 0x20010000, End: 0x2001007F}},
	})
	require.NoError(t, s.SetupCyclic(100))

	require.NoError(t, s.RunCyclic(0))
	assert.Equal(t, 1, s.Snapshot().Index)
	require.NoError(t, s.RunCyclic(10))
	assert.Equal(t, 2, s.Snapshot().Index)
	require.NoError(t, s.RunCyclic(20))

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, tick.Ticks(20), snap.LastPass)
	assert.Equal(t, uint64(1), snap.Sweeps)

	// second sweep does not finish in time
	require.NoError(t, s.RunCyclic(120))

	err := s.RunCyclic(121)
	require.Error(t, err)

	var dl *DeadlineError
	require.ErrorAs(t, err, &dl)
	assert.Equal(t, tick.Ticks(101), dl.Elapsed)
	assert.Equal(t, tick.Ticks(100), dl.Budget)
	assert.Empty(t, unitErrors(err), "unit under test passed")
	assert.Equal(t, Passed, s.Snapshot().Statuses[1])

	// a deadline miss alone does not latch the scheduler
	assert.Equal(t, Configured, s.State())
}

func TestRunCyclic_FirstCallSeedsDeadline(t *testing.T) {
	backends := []*fakeBackend{{slices: 1000}}
	s, _ := newScheduler(t, CPU, []bool{true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(50))

	_, ok := s.Elapsed(5000)
	assert.False(t, ok)

	require.NoError(t, s.RunCyclic(5000))
	require.NoError(t, s.RunCyclic(5050))
	require.Error(t, s.RunCyclic(5051))
}

func TestRunCyclic_PartialPassedStaysOnUnit(t *testing.T) {
	backends := []*fakeBackend{{slices: 3}, {}}
	s, _ := newScheduler(t, CPU, []bool{true, true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(1000))

	require.NoError(t, s.RunCyclic(1))
	require.NoError(t, s.RunCyclic(2))

	snap := s.Snapshot()
	assert.Equal(t, 0, snap.Index)
	assert.Equal(t, PartialPassed, snap.Statuses[0])
	assert.Zero(t, backends[1].runs)

	require.NoError(t, s.RunCyclic(3))
	assert.Equal(t, 1, s.Snapshot().Index)
	assert.Equal(t, 1, backends[0].resets)
}

func TestRunCyclic_DeadlineAcrossTickWrap(t *testing.T) {
	backends := []*fakeBackend{{slices: 2}}
	s, _ := newScheduler(t, CPU, []bool{true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(100))

	require.NoError(t, s.RunCyclic(tick.Max-10))
	require.NoError(t, s.RunCyclic(tick.Max-5)) // sweep complete

	// counter wrapped; only a few ticks passed
	require.NoError(t, s.RunCyclic(20))

	elapsed, ok := s.Elapsed(20)
	require.True(t, ok)
	assert.Equal(t, tick.Ticks(25), elapsed)

	// sweep completes at 94 (elapsed 99) so the reference moves on
	require.NoError(t, s.RunCyclic(94))
	assert.Equal(t, tick.Ticks(94), s.Snapshot().LastPass)
}

func TestRunCyclic_DeadlineMissAcrossTickWrap(t *testing.T) {
	backends := []*fakeBackend{{slices: 1000}}
	s, _ := newScheduler(t, CPU, []bool{true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(100))

	require.NoError(t, s.RunCyclic(tick.Max-50))
	require.NoError(t, s.RunCyclic(50)) // elapsed 100, still within budget

	var dl *DeadlineError
	require.ErrorAs(t, s.RunCyclic(51), &dl)
	assert.Equal(t, tick.Ticks(101), dl.Elapsed)
}

func TestRunCyclic_NarrowTickCounter(t *testing.T) {
	backends := []*fakeBackend{{slices: 1000}}
	s, _ := newScheduler(t, CPU, []bool{true}, backends, Options{TickMax: 0xFFFF})
	require.NoError(t, s.SetupCyclic(100))

	require.NoError(t, s.RunCyclic(0xFFF0))
	require.NoError(t, s.RunCyclic(0x0050))
	require.Error(t, s.RunCyclic(0x0060))
}

func TestRunCyclic_FailFastLatch(t *testing.T) {
	enabled, backends := threeUnits()
	backends[1].failOn = 1
	s, _ := newScheduler(t, ROM, enabled, backends, Options{
		Regions: []Region{{Start: 0x08000000, End: 0x080003FF}},
		Check:   ROMLayout{FlashBase: 0x08000000, CRCStart: 0x08010000},
	})
	require.NoError(t, s.SetupCyclic(1000))

	require.NoError(t, s.RunCyclic(1))
	err := s.RunCyclic(2)

	ues := unitErrors(err)
	require.Len(t, ues, 1)
	assert.Equal(t, 1, ues[0].Index)
	assert.Equal(t, Failed, ues[0].Status)
	assert.Equal(t, Idle, s.State())

	// latched until reconfigured
	require.ErrorIs(t, s.RunCyclic(3), ErrNotConfigured)
	require.ErrorIs(t, s.RunCyclic(4), ErrNotConfigured)
	assert.Equal(t, 1, backends[1].runs)

	require.NoError(t, s.SetupCyclic(1000))
	require.NoError(t, s.RunCyclic(5))
	assert.Equal(t, 2, backends[0].runs)
}

func TestRunCyclic_ExecutionErrorLatches(t *testing.T) {
	backends := []*fakeBackend{{runErr: errors.New("bus fault")}}
	s, _ := newScheduler(t, CPU, []bool{true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(1000))

	err := s.RunCyclic(1)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus fault")
	assert.Equal(t, Idle, s.State())
}

func TestRunCyclic_AuditCatchesSilentBackend(t *testing.T) {
	// no error, but the unit claims it never ran
	backends := []*fakeBackend{{lie: statusPtr(NotTested)}, {}}
	s, _ := newScheduler(t, CPU, []bool{true, true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(1000))

	err := s.RunCyclic(1)

	ues := unitErrors(err)
	require.Len(t, ues, 1)
	assert.ErrorIs(t, ues[0], ErrAudit)
	assert.Equal(t, Idle, s.State())
}

func TestRunCyclic_ResetFailureLatches(t *testing.T) {
	backends := []*fakeBackend{{resetSt: Error}, {}}
	s, _ := newScheduler(t, CPU, []bool{true, true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(1000))

	err := s.RunCyclic(1)

	require.ErrorIs(t, err, ErrBackendRejected)
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, 0, s.Snapshot().Index)
}

func TestRunCyclic_FailureStillChecksDeadline(t *testing.T) {
	backends := []*fakeBackend{{slices: 1000}, {failOn: 1}}
	s, _ := newScheduler(t, CPU, []bool{true, true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(10))

	require.NoError(t, s.RunCyclic(0))
	backends[0].slices = 1
	require.NoError(t, s.RunCyclic(5))
	err := s.RunCyclic(11)

	var dl *DeadlineError
	assert.ErrorAs(t, err, &dl)
	assert.Len(t, unitErrors(err), 1)
}

func TestRunCyclic_SweepVisitsEnabledUnitsInOrder(t *testing.T) {
	const n = 4

	for mask := 0; mask < 1<<n; mask++ {
		t.Run(fmt.Sprintf("mask=%04b", mask), func(t *testing.T) {
			var trace []string
			enabled := make([]bool, n)
			backends := make([]*fakeBackend, n)
			var want []string

			for i := 0; i < n; i++ {
				enabled[i] = mask&(1<<i) != 0
				backends[i] = &fakeBackend{name: fmt.Sprintf("u%d", i), trace: &trace}
				if enabled[i] {
					want = append(want, backends[i].name)
				}
			}

			s, _ := newScheduler(t, CPU, enabled, backends, Options{})
			require.NoError(t, s.SetupCyclic(1000))

			calls := 0
			for s.Snapshot().Sweeps == 0 {
				calls++
				require.NoError(t, s.RunCyclic(tick.Ticks(calls)))
				require.LessOrEqual(t, calls, n+1)
			}

			assert.Equal(t, want, trace)
			if len(want) > 0 {
				// one enabled unit per invocation
				assert.Equal(t, len(want), calls)
			} else {
				assert.Equal(t, 1, calls)
			}
			for i := 0; i < n; i++ {
				if !enabled[i] {
					assert.Equal(t, NotTested, s.Snapshot().Statuses[i])
				}
			}
		})
	}
}

func TestRunCyclic_NewSweepResetsStatuses(t *testing.T) {
	backends := []*fakeBackend{{}, {slices: 2}}
	s, _ := newScheduler(t, CPU, []bool{true, true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(1000))

	require.NoError(t, s.RunCyclic(1))
	require.NoError(t, s.RunCyclic(2))
	require.NoError(t, s.RunCyclic(3)) // sweep done
	assert.Equal(t, []Status{Passed, Passed}, s.Snapshot().Statuses)

	require.NoError(t, s.RunCyclic(4))
	assert.Equal(t, []Status{Passed, NotTested}, s.Snapshot().Statuses)
}

func TestRunCyclic_SubsystemStopped(t *testing.T) {
	enabled, backends := threeUnits()
	s, sub := newScheduler(t, CPU, enabled, backends, Options{})
	require.NoError(t, s.SetupCyclic(1000))
	sub.Stop()

	require.ErrorIs(t, s.RunCyclic(1), ErrNotStarted)
	assert.Equal(t, Idle, s.State())
}

// ---- full ----

func TestRunAll_RequiresStartedSubsystem(t *testing.T) {
	enabled, backends := threeUnits()
	s, sub := newScheduler(t, CPU, enabled, backends, Options{})
	sub.Stop()

	require.ErrorIs(t, s.RunAll(), ErrNotStarted)
}

func TestRunAll_DoesNotNeedConfiguredState(t *testing.T) {
	backends := []*fakeBackend{{slices: 50}, {slices: 3}}
	s, _ := newScheduler(t, CPU, []bool{true, true}, backends, Options{SectionsPerSlice: 1})

	require.NoError(t, s.RunAll())

	assert.Equal(t, Idle, s.State())
	assert.Equal(t, AllSections, backends[0].lastPlan.SectionsPerSlice)
	assert.Equal(t, []Status{Passed, Passed}, s.Snapshot().Statuses)
}

func TestRunAll_EveryUnitRunsDespiteFailure(t *testing.T) {
	enabled, backends := threeUnits()
	backends[0].failOn = 1
	s, _ := newScheduler(t, CPU, enabled, backends, Options{})

	err := s.RunAll()
	require.Error(t, err)

	for i, b := range backends {
		assert.Equal(t, 1, b.runs, "unit %d", i)
	}
	assert.Equal(t, []Status{Failed, Passed, Passed}, s.Snapshot().Statuses)
}

func TestRunAll_AuditEvaluatesEveryUnit(t *testing.T) {
	// backends report no error but never finish
	backends := []*fakeBackend{
		{lie: statusPtr(PartialPassed)},
		{},
		{lie: statusPtr(PartialPassed)},
	}
	s, _ := newScheduler(t, CPU, []bool{true, true, true}, backends, Options{})

	err := s.RunAll()

	ues := unitErrors(err)
	require.Len(t, ues, 2)
	assert.Equal(t, 0, ues[0].Index)
	assert.Equal(t, 2, ues[1].Index)
	for _, ue := range ues {
		assert.ErrorIs(t, ue, ErrAudit)
	}
}

func TestRunAll_DisabledUnitsIdempotent(t *testing.T) {
	backends := []*fakeBackend{{}, {}, {}}
	s, _ := newScheduler(t, CPU, []bool{true, false, true}, backends, Options{})

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RunAll())
		assert.Equal(t, NotTested, s.Snapshot().Statuses[1])
	}
	assert.Zero(t, backends[1].runs)
}

func TestRunAll_ResetsPreviousStatuses(t *testing.T) {
	backends := []*fakeBackend{{}, {failOn: 1}}
	s, _ := newScheduler(t, CPU, []bool{true, true}, backends, Options{})

	require.Error(t, s.RunAll())
	require.NoError(t, s.RunAll())
	assert.Equal(t, []Status{Passed, Passed}, s.Snapshot().Statuses)
}

// ---- single ----

func TestRunSingle(t *testing.T) {
	backends := []*fakeBackend{{}, {failOn: 1}, {}}
	s, sub := newScheduler(t, CPU, []bool{true, true, false}, backends, Options{})

	require.ErrorIs(t, s.RunSingle(3), ErrIndexOutOfRange)
	require.ErrorIs(t, s.RunSingle(-1), ErrIndexOutOfRange)
	require.ErrorIs(t, s.RunSingle(2), ErrUnitDisabled)

	require.NoError(t, s.RunSingle(0))
	assert.Equal(t, 1, backends[0].runs)
	assert.Zero(t, backends[1].runs)

	err := s.RunSingle(1)
	ues := unitErrors(err)
	require.Len(t, ues, 1)
	assert.Equal(t, Failed, ues[0].Status)

	sub.Stop()
	require.ErrorIs(t, s.RunSingle(0), ErrNotStarted)
}

func TestRunSingle_LeavesCyclicMode(t *testing.T) {
	backends := []*fakeBackend{{slices: 4}}
	s, _ := newScheduler(t, CPU, []bool{true}, backends, Options{})
	require.NoError(t, s.SetupCyclic(100))
	require.NoError(t, s.RunCyclic(1))

	require.NoError(t, s.RunSingle(0))

	assert.Equal(t, Idle, s.State())
	require.ErrorIs(t, s.RunCyclic(2), ErrNotConfigured)
}
