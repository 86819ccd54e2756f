// internal/hardfault/entry.go
package hardfault

import (
	"time"

	"github.com/google/uuid"
)

// EntryType classifies error log entries.
type EntryType uint8

const (
	// TypeInternalStatus is used for everything the supervisor itself logs.
	TypeInternalStatus EntryType = 0x01
)

// HardErrorMarker is the upper byte of a logged hard error value.
const HardErrorMarker uint8 = 0x08

// Entry is one error log record.
//
// Value layout: upper byte is HardErrorMarker, the next byte is the Code.
// The low 16 bits are reserved.
type Entry struct {
	Type      EntryType
	Value     uint32
	Permanent bool

	At     time.Time
	BootID uuid.UUID
}

// HardErrorEntry builds the log record for a hard error.
func HardErrorEntry(code Code, permanent bool) Entry {
	return Entry{
		Type:      TypeInternalStatus,
		Value:     uint32(HardErrorMarker)<<24 | uint32(code)<<16,
		Permanent: permanent,
	}
}

// HardErrorCode extracts the code if the entry records a hard error.
func (e Entry) HardErrorCode() (Code, bool) {
	if e.Type != TypeInternalStatus || uint8(e.Value>>24) != HardErrorMarker {
		return NoError, false
	}
	return Code(e.Value >> 16), true
}

// SameAs compares the fields that identify a fault.
// Timestamps and boot ids are not part of the identity.
func (e Entry) SameAs(o Entry) bool {
	return e.Type == o.Type && e.Value == o.Value && e.Permanent == o.Permanent
}
