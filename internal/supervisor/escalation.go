// internal/supervisor/escalation.go
package supervisor

import (
	"errors"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
	"github.com/tamzrod/safety-supervisor/internal/selftest"
)

// Escalator is the fatal error channel. HardError and PermanentHardError
// never return; code after a call to either is unreachable.
type Escalator interface {
	HardError(code hardfault.Code)
	PermanentHardError(code hardfault.Code)
	CheckPermanent() error
	CheckWatchdogReset() error
}

// startupCode is the code for a failed full sweep of d.
func startupCode(d selftest.Domain) hardfault.Code {
	switch d {
	case selftest.RAM:
		return hardfault.MemRAM
	case selftest.ROM:
		return hardfault.MemROM
	default:
		return hardfault.CPU
	}
}

func cyclicCode(d selftest.Domain) hardfault.Code {
	switch d {
	case selftest.RAM:
		return hardfault.MemRAMCyclic
	case selftest.ROM:
		return hardfault.MemROMCyclic
	default:
		return hardfault.CPUCyclic
	}
}

func timeoutCode(d selftest.Domain) hardfault.Code {
	switch d {
	case selftest.RAM:
		return hardfault.MemRAMCyclicTimeout
	case selftest.ROM:
		return hardfault.MemROMCyclicTimeout
	default:
		return hardfault.CPUCyclicTimeout
	}
}

// classify maps a cyclic run error to a hard error code.
// A test failure wins over a missed deadline in the same call.
func classify(d selftest.Domain, err error) hardfault.Code {
	var ue *selftest.UnitError
	if errors.As(err, &ue) {
		return cyclicCode(d)
	}
	var de *selftest.DeadlineError
	if errors.As(err, &de) {
		return timeoutCode(d)
	}
	return cyclicCode(d)
}
