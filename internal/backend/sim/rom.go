// internal/backend/sim/rom.go
package sim

import (
	"fmt"
	"hash/crc32"

	"github.com/tamzrod/safety-supervisor/internal/selftest"
)

// ROM checks flash per 1024-byte sector against a CRC32 reference table.
// The table is computed from the image as programmed, so later upsets of
// the live memory are detected.
type ROM struct {
	engine
	flash  *Memory
	golden []byte
	ref    map[uint32]uint32 // section start -> crc
}

// NewROM captures the current content of flash as the programmed image.
func NewROM(flash *Memory) *ROM {
	r := &ROM{flash: flash, golden: flash.Snapshot()}
	r.engine = engine{sectionSize: selftest.ROMSectorSize, test: r.check}
	return r
}

func (r *ROM) Init() (selftest.Status, error) { return r.init() }

// Configure builds the reference table for the planned sectors.
func (r *ROM) Configure(p selftest.Plan) (selftest.Status, error) {
	st, err := r.configure(p)
	if err != nil {
		return st, err
	}
	r.ref = make(map[uint32]uint32, len(r.secs))
	for _, s := range r.secs {
		off := uint64(s.addr) - uint64(r.flash.Base())
		if s.addr < r.flash.Base() || off+uint64(s.n) > uint64(len(r.golden)) {
			r.configured = false
			return selftest.Error, fmt.Errorf("sim: sector 0x%08x outside flash image", s.addr)
		}
		r.ref[s.addr] = crc32.ChecksumIEEE(r.golden[off : off+uint64(s.n)])
	}
	return st, nil
}

func (r *ROM) RunSlice() (selftest.Status, error) { return r.runSlice() }
func (r *ROM) Reset() (selftest.Status, error)    { return r.reset() }

func (r *ROM) check(s section) (bool, error) {
	buf := make([]byte, s.n)
	if err := r.flash.Load(s.addr, buf); err != nil {
		return false, err
	}
	return crc32.ChecksumIEEE(buf) == r.ref[s.addr], nil
}

// Image fills n bytes with a deterministic pseudo-random pattern, standing
// in for program code.
func Image(n int, seed uint32) []byte {
	out := make([]byte, n)
	x := seed | 1
	for i := range out {
		// xorshift32
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x)
	}
	return out
}
