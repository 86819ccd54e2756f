// internal/selftest/regions.go
package selftest

import "fmt"

// RegionCheck validates a set of regions before any backend sees them.
type RegionCheck interface {
	CheckRegions(regions []Region) error
}

// ------------------------------------------------------------
// RAM
// ------------------------------------------------------------

const (
	ramAlignment = 4
	ramBlockSize = 16

	// RAMSectionSize is the number of bytes a RAM backend tests per section.
	RAMSectionSize = 128
)

// RAMLayout describes the constraints of RAM test regions.
type RAMLayout struct {
	// Backup is the scratch buffer the march test saves cells into.
	// It must never be part of a test region. The zero Region means none.
	Backup Region
}

// CheckRegions accepts regions that are word aligned on both ends, a multiple
// of two blocks long, disjoint from each other and disjoint from the backup buffer.
func (l RAMLayout) CheckRegions(regions []Region) error {
	if len(regions) == 0 {
		return fmt.Errorf("%w: no ram regions", ErrInvalidRegion)
	}

	for i, r := range regions {
		if r.End < r.Start {
			return fmt.Errorf("%w: ram region %d end 0x%08x before start 0x%08x", ErrInvalidRegion, i, r.End, r.Start)
		}
		if r.Start%ramAlignment != 0 {
			return fmt.Errorf("%w: ram region %d start 0x%08x not %d-byte aligned", ErrInvalidRegion, i, r.Start, ramAlignment)
		}
		if (uint64(r.End)+1)%ramAlignment != 0 {
			return fmt.Errorf("%w: ram region %d end 0x%08x not %d-byte aligned", ErrInvalidRegion, i, r.End, ramAlignment)
		}
		if r.Size()%(2*ramBlockSize) != 0 {
			return fmt.Errorf("%w: ram region %d size %d not a multiple of %d", ErrInvalidRegion, i, r.Size(), 2*ramBlockSize)
		}

		// backup buffer must lie entirely before or entirely after the region
		if l.Backup != (Region{}) && overlaps(r, l.Backup) {
			return fmt.Errorf(
				"%w: ram region %d 0x%08x-0x%08x overlaps backup buffer 0x%08x-0x%08x",
				ErrInvalidRegion, i, r.Start, r.End, l.Backup.Start, l.Backup.End,
			)
		}
	}

	return checkDisjoint("ram", regions)
}

// ------------------------------------------------------------
// ROM
// ------------------------------------------------------------

// ROMSectorSize is the flash sector granularity of ROM test regions.
const ROMSectorSize = 1024

// ROMLayout describes the flash window that may be tested.
type ROMLayout struct {
	// FlashBase is the first flash address.
	FlashBase uint32
	// CRCStart is the first address of the CRC metadata area.
	// It and everything above it is excluded from testing.
	CRCStart uint32
}

// CheckRegions accepts regions inside [FlashBase, CRCStart) that start on a
// sector boundary, end word aligned and do not overlap each other.
func (l ROMLayout) CheckRegions(regions []Region) error {
	if len(regions) == 0 {
		return fmt.Errorf("%w: no rom regions", ErrInvalidRegion)
	}
	if l.CRCStart <= l.FlashBase {
		return fmt.Errorf("%w: crc area 0x%08x not above flash base 0x%08x", ErrInvalidRegion, l.CRCStart, l.FlashBase)
	}

	for i, r := range regions {
		if r.Start < l.FlashBase || r.Start >= l.CRCStart {
			return fmt.Errorf("%w: rom region %d start 0x%08x outside flash window", ErrInvalidRegion, i, r.Start)
		}
		if r.End < l.FlashBase || r.End >= l.CRCStart {
			return fmt.Errorf("%w: rom region %d end 0x%08x outside flash window", ErrInvalidRegion, i, r.End)
		}
		if r.End <= r.Start {
			return fmt.Errorf("%w: rom region %d end 0x%08x not after start 0x%08x", ErrInvalidRegion, i, r.End, r.Start)
		}
		if (r.Start-l.FlashBase)%ROMSectorSize != 0 {
			return fmt.Errorf("%w: rom region %d start 0x%08x not on a %d-byte sector", ErrInvalidRegion, i, r.Start, ROMSectorSize)
		}
		if (uint64(r.End)+1)%4 != 0 {
			return fmt.Errorf("%w: rom region %d end 0x%08x not 4-byte aligned", ErrInvalidRegion, i, r.End)
		}
	}

	return checkDisjoint("rom", regions)
}

// ------------------------------------------------------------
// helpers
// ------------------------------------------------------------

// overlaps reports whether two inclusive ranges share an address.
func overlaps(a, b Region) bool {
	return !(a.End < b.Start || a.Start > b.End)
}

func checkDisjoint(kind string, regions []Region) error {
	for i := range regions {
		for j := 0; j < i; j++ {
			if overlaps(regions[i], regions[j]) {
				return fmt.Errorf(
					"%w: %s region %d 0x%08x-0x%08x overlaps region %d 0x%08x-0x%08x",
					ErrInvalidRegion, kind,
					i, regions[i].Start, regions[i].End,
					j, regions[j].Start, regions[j].End,
				)
			}
		}
	}
	return nil
}
