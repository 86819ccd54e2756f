// internal/hardfault/capabilities.go
package hardfault

// Slot addresses a non-volatile register.
type Slot uint8

// SlotLastError holds the code of the last hard error.
// It survives warm resets and is cleared on power loss.
const SlotLastError Slot = 0

// NVStore is the non-volatile register file.
type NVStore interface {
	Set(slot Slot, value uint32) error
	Get(slot Slot) (uint32, error)
}

// ErrorLog is the append-only error log.
// ReadLatest returns the most recent entry of either channel.
type ErrorLog interface {
	Append(e Entry) error
	AppendPermanent(e Entry) error
	ReadLatest() (Entry, bool, error)
	ReadLatestPermanent() (Entry, bool, error)
	Count() (int, error)
}

// ResetCause is the bitset describing why the device last reset.
type ResetCause uint32

const (
	ResetPowerOn ResetCause = 1 << iota
	ResetPin
	ResetSoftware
	ResetWatchdog
)

func (c ResetCause) Watchdog() bool { return c&ResetWatchdog != 0 }

// ResetReader queries the reset cause register.
type ResetReader interface {
	ResetCause() (ResetCause, error)
}

// Freezer stops interrupts and task scheduling.
type Freezer interface {
	Freeze()
}

// FreezerFunc adapts a function to Freezer.
type FreezerFunc func()

func (f FreezerFunc) Freeze() { f() }

// Indicator signals a hard error to the outside world.
// Signal is called in an endless loop and paces itself.
type Indicator interface {
	Signal(code Code, permanent bool)
}

// IndicatorFunc adapts a function to Indicator.
type IndicatorFunc func(code Code, permanent bool)

func (f IndicatorFunc) Signal(code Code, permanent bool) { f(code, permanent) }
