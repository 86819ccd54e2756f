// internal/selftest/errors.go
package selftest

import (
	"errors"
	"fmt"

	"github.com/tamzrod/safety-supervisor/internal/tick"
)

var (
	ErrNotStarted      = errors.New("selftest: subsystem not started")
	ErrNotConfigured   = errors.New("selftest: scheduler not configured")
	ErrIndexOutOfRange = errors.New("selftest: unit index out of range")
	ErrInvalidRegion   = errors.New("selftest: invalid region")
	ErrUnitDisabled    = errors.New("selftest: unit disabled")

	// ErrAudit marks a unit whose status contradicts its enabled flag
	// or its position in the sweep, although the backend reported no error.
	ErrAudit = errors.New("selftest: status audit failed")

	// ErrBackendRejected marks Init/Configure/Reset calls that did not
	// leave the backend in NotTested.
	ErrBackendRejected = errors.New("selftest: backend rejected request")
)

// UnitError is an execution or audit failure of one unit.
type UnitError struct {
	Domain Domain
	Index  int
	Name   string
	Status Status
	Err    error
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("selftest: %s unit %d (%s) status=%s: %v", e.Domain, e.Index, e.Name, e.Status, e.Err)
}

func (e *UnitError) Unwrap() error { return e.Err }

// DeadlineError reports a missed process safety time.
type DeadlineError struct {
	Domain  Domain
	Elapsed tick.Ticks
	Budget  tick.Ticks
}

func (e *DeadlineError) Error() string {
	return fmt.Sprintf("selftest: %s sweep deadline missed: elapsed=%d budget=%d ticks", e.Domain, e.Elapsed, e.Budget)
}

// ConfigError is a rejected setup. The scheduler stays Idle.
type ConfigError struct {
	Domain Domain
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("selftest: %s setup failed: %v", e.Domain, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }
