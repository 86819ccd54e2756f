// internal/status/constants.go
package status

// Supervisor Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of holding registers per supervisor.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the supervisor health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last hard error code (0 = none).
const SlotLastErrorCode = 1

// SlotSecondsInError holds the seconds spent in the terminal state.
const SlotSecondsInError = 2

// SlotDomainStateStart is the first of three scheduler state slots (CPU, RAM, ROM).
const SlotDomainStateStart = 3

// SlotSweepsStart is the first of three sweep counter slots (CPU, RAM, ROM).
// Counters carry the low 16 bits and wrap.
const SlotSweepsStart = 6

// SlotMonitorFlags holds one bit per supply monitor channel currently out of limits.
const SlotMonitorFlags = 9

// SlotLiveEnd is the last slot carrying live state (inclusive).
const SlotLiveEnd = SlotMonitorFlags

// ---- RESERVED ----

// Slot 10 and 19 are reserved.
const SlotReserved = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the device name.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the device name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the device name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for device name.
const DeviceNameMaxChars = 16

// ---- HEALTH CODES ----

// HealthUnknown is the state before the power-on self-tests completed.
const HealthUnknown uint16 = 0

// HealthOK means cyclic supervision is running.
const HealthOK uint16 = 1

// HealthHardError means the supervisor halted in the transient terminal state.
const HealthHardError uint16 = 2

// HealthPermanentError means the supervisor halted in the permanent terminal state.
const HealthPermanentError uint16 = 3

// ---- DOMAIN STATE CODES ----

const (
	DomainIdle       uint16 = 0
	DomainConfigured uint16 = 1
	DomainDisabled   uint16 = 2
)
