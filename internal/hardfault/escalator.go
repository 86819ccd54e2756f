// internal/hardfault/escalator.go
package hardfault

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config wires the escalator to its collaborators.
type Config struct {
	NV        NVStore
	Log       ErrorLog
	Resets    ResetReader
	Freezer   Freezer
	Indicator Indicator

	// Hook is the application-specific action run right before the
	// indicator loop. It may be nil.
	Hook func(code Code, permanent bool)

	// BootID stamps every entry written during this boot.
	BootID uuid.UUID

	Now    func() time.Time
	Logger *slog.Logger
}

// Escalator owns the process-wide fatal error channel.
type Escalator struct {
	cfg Config
	log *slog.Logger

	// terminal is taken by the first escalation and never released.
	terminal sync.Mutex
}

// New validates cfg and builds an escalator.
func New(cfg Config) (*Escalator, error) {
	if cfg.NV == nil {
		return nil, errors.New("hardfault: nv store required")
	}
	if cfg.Log == nil {
		return nil, errors.New("hardfault: error log required")
	}
	if cfg.Indicator == nil {
		return nil, errors.New("hardfault: indicator required")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Escalator{
		cfg: cfg,
		log: cfg.Logger.With(slog.String("component", "hardfault")),
	}, nil
}

// HardError enters the transient terminal state. It never returns.
// A reset brings the device back; the code survives it in non-volatile storage.
func (e *Escalator) HardError(code Code) {
	e.enter(code, false)
}

// PermanentHardError enters the permanent terminal state. It never returns.
// The entry goes to the permanent channel of the log and re-triggers on
// every boot until the device is power-cycled.
func (e *Escalator) PermanentHardError(code Code) {
	e.enter(code, true)
}

func (e *Escalator) enter(code Code, permanent bool) {
	// concurrent escalations block here forever
	e.terminal.Lock()

	e.log.Error("hard error",
		slog.String("code", code.String()),
		slog.Int("value", int(code)),
		slog.Bool("permanent", permanent),
	)

	if e.cfg.Freezer != nil {
		e.cfg.Freezer.Freeze()
	}

	// collaborator failures are reported but never stop the escalation
	if err := e.cfg.NV.Set(SlotLastError, uint32(code)); err != nil {
		e.log.Error("persist last error failed", slog.String("error", err.Error()))
	}

	entry := HardErrorEntry(code, permanent)
	entry.At = e.cfg.Now()
	entry.BootID = e.cfg.BootID
	if _, err := AppendUnique(e.cfg.Log, entry); err != nil {
		e.log.Error("error log append failed", slog.String("error", err.Error()))
	}

	if e.cfg.Hook != nil {
		e.cfg.Hook(code, permanent)
	}

	for {
		e.cfg.Indicator.Signal(code, permanent)
	}
}

// AppendUnique appends entry unless it repeats the most recent log entry.
// Permanent entries go to the permanent channel. It reports whether an
// entry was written.
//
// A failed read does not suppress the append.
func AppendUnique(log ErrorLog, entry Entry) (bool, error) {
	latest, ok, readErr := log.ReadLatest()
	if readErr == nil && ok && latest.SameAs(entry) {
		return false, nil
	}

	var err error
	if entry.Permanent {
		err = log.AppendPermanent(entry)
	} else {
		err = log.Append(entry)
	}
	if err != nil {
		return false, errors.Join(readErr, err)
	}
	if readErr != nil {
		return true, fmt.Errorf("read latest: %w", readErr)
	}
	return true, nil
}

// ------------------------------------------------------------
// BOOT CHECKS
// ------------------------------------------------------------

// CheckPermanent re-enters the permanent terminal state when the log holds
// a permanent hard error. It returns only if there is none.
// A returned error means the log could not be read.
func (e *Escalator) CheckPermanent() error {
	entry, ok, err := e.cfg.Log.ReadLatestPermanent()
	if err != nil {
		return fmt.Errorf("hardfault: read permanent log: %w", err)
	}
	if !ok {
		return nil
	}

	code, isHard := entry.HardErrorCode()
	if !isHard {
		return nil
	}

	e.log.Error("permanent hard error recorded before reset", slog.String("code", code.String()))
	e.PermanentHardError(code)
	return nil
}

// CheckWatchdogReset re-enters the transient terminal state after a
// watchdog reset, using the code persisted before the reset. On any other
// reset the persisted code is cleared. A returned error means the reset
// cause could not be determined or the slot could not be cleared.
func (e *Escalator) CheckWatchdogReset() error {
	if e.cfg.Resets == nil {
		return errors.New("hardfault: reset cause reader not configured")
	}

	cause, err := e.cfg.Resets.ResetCause()
	if err != nil {
		return fmt.Errorf("hardfault: read reset cause: %w", err)
	}

	if !cause.Watchdog() {
		if err := e.cfg.NV.Set(SlotLastError, uint32(NoError)); err != nil {
			return fmt.Errorf("hardfault: clear last error: %w", err)
		}
		return nil
	}

	code := e.storedCode()
	if code == NoError {
		code = InternWDT
	}

	e.log.Error("watchdog reset", slog.String("code", code.String()))
	e.HardError(code)
	return nil
}

// storedCode reads the last error slot. An unreadable or implausible slot
// is itself a fault of the non-volatile storage.
func (e *Escalator) storedCode() Code {
	v, err := e.cfg.NV.Get(SlotLastError)
	if err != nil {
		e.log.Error("read last error failed", slog.String("error", err.Error()))
		return InternRTC
	}
	if v > 0xFF {
		return InternRTC
	}
	return Code(v)
}
