// internal/selftest/types.go
package selftest

import "fmt"

// Status is the outcome of a test unit.
type Status uint8

const (
	NotTested Status = iota
	Passed
	PartialPassed
	Failed
	Error
)

func (s Status) String() string {
	switch s {
	case NotTested:
		return "not_tested"
	case Passed:
		return "passed"
	case PartialPassed:
		return "partial_passed"
	case Failed:
		return "failed"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

// Domain is one test category. Each domain owns its registry and scheduler state.
type Domain uint8

const (
	CPU Domain = iota
	RAM
	ROM
)

func (d Domain) String() string {
	switch d {
	case CPU:
		return "cpu"
	case RAM:
		return "ram"
	case ROM:
		return "rom"
	default:
		return fmt.Sprintf("domain(%d)", uint8(d))
	}
}

// State is the scheduler state.
type State uint8

const (
	Idle State = iota
	Configured
)

func (s State) String() string {
	if s == Configured {
		return "configured"
	}
	return "idle"
}

// Region is a contiguous address range. End is inclusive.
type Region struct {
	Start uint32
	End   uint32
}

// Size returns the number of bytes covered by the region.
func (r Region) Size() uint64 {
	if r.End < r.Start {
		return 0
	}
	return uint64(r.End) - uint64(r.Start) + 1
}

// AllSections asks the backend to test everything in one slice.
const AllSections uint32 = 0xFFFFFFFF

// Plan is what a backend is configured with.
type Plan struct {
	Regions []Region

	// SectionsPerSlice bounds the work of one RunSlice call.
	// Values larger than the configured range fall back to one-shot.
	SectionsPerSlice uint32
}

// Backend is the external test executor for one unit.
//
// Init, Configure and Reset succeed only when they return NotTested and no
// error. RunSlice returns PartialPassed while work remains and Passed once
// the unit finished its sweep.
type Backend interface {
	Init() (Status, error)
	Configure(p Plan) (Status, error)
	RunSlice() (Status, error)
	Reset() (Status, error)
}

// Unit is one registry entry.
type Unit struct {
	Name    string
	Enabled bool
	Backend Backend
}
