// internal/backend/sim/engine.go
package sim

import (
	"errors"

	"github.com/tamzrod/safety-supervisor/internal/selftest"
)

var (
	ErrNotInitialized = errors.New("sim: backend not initialized")
	ErrNotConfigured  = errors.New("sim: backend not configured")
	ErrSweepDone      = errors.New("sim: sweep complete, reset required")
)

type section struct {
	addr uint32
	n    uint32
}

// sections cuts regions into chunks of at most size bytes.
func sections(regions []selftest.Region, size uint32) []section {
	var out []section
	for _, r := range regions {
		left := r.Size()
		addr := r.Start
		for left > 0 {
			n := uint64(size)
			if left < n {
				n = left
			}
			out = append(out, section{addr: addr, n: uint32(n)})
			addr += uint32(n)
			left -= n
		}
	}
	return out
}

// engine is the slice bookkeeping shared by the memory backends.
// test returns false when a fault was detected in the section.
type engine struct {
	sectionSize uint32
	test        func(s section) (bool, error)

	initialized bool
	configured  bool
	secs        []section
	next        int
	perSlice    uint32
}

func (e *engine) init() (selftest.Status, error) {
	e.initialized = true
	e.configured = false
	e.secs = nil
	e.next = 0
	return selftest.NotTested, nil
}

func (e *engine) configure(p selftest.Plan) (selftest.Status, error) {
	if !e.initialized {
		return selftest.Error, ErrNotInitialized
	}
	e.secs = sections(p.Regions, e.sectionSize)
	e.perSlice = p.SectionsPerSlice
	if e.perSlice == 0 {
		e.perSlice = 1
	}
	e.next = 0
	e.configured = true
	return selftest.NotTested, nil
}

func (e *engine) runSlice() (selftest.Status, error) {
	if !e.configured {
		return selftest.Error, ErrNotConfigured
	}
	remaining := len(e.secs) - e.next
	if remaining <= 0 {
		return selftest.Error, ErrSweepDone
	}

	// larger than the configured range: one-shot
	n := remaining
	if uint64(e.perSlice) < uint64(remaining) {
		n = int(e.perSlice)
	}

	for k := 0; k < n; k++ {
		ok, err := e.test(e.secs[e.next])
		if err != nil {
			return selftest.Error, err
		}
		if !ok {
			return selftest.Failed, nil
		}
		e.next++
	}

	if e.next == len(e.secs) {
		return selftest.Passed, nil
	}
	return selftest.PartialPassed, nil
}

func (e *engine) reset() (selftest.Status, error) {
	if !e.configured {
		return selftest.Error, ErrNotConfigured
	}
	e.next = 0
	return selftest.NotTested, nil
}
