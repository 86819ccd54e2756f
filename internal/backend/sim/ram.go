// internal/backend/sim/ram.go
package sim

import (
	"fmt"

	"github.com/tamzrod/safety-supervisor/internal/selftest"
)

// RAM runs a March C- test per 128-byte section. Cell contents are saved to
// the backup buffer before the march and restored afterwards.
type RAM struct {
	engine
	mem    *Memory
	backup selftest.Region
	save   []byte // used when there is no backup buffer
}

// NewRAM builds a RAM backend over mem. A zero backup keeps the saved cells
// in a private buffer.
func NewRAM(mem *Memory, backup selftest.Region) (*RAM, error) {
	if backup != (selftest.Region{}) && backup.Size() < selftest.RAMSectionSize {
		return nil, fmt.Errorf("sim: backup buffer %d bytes, need %d", backup.Size(), selftest.RAMSectionSize)
	}
	r := &RAM{mem: mem, backup: backup, save: make([]byte, selftest.RAMSectionSize)}
	r.engine = engine{sectionSize: selftest.RAMSectionSize, test: r.march}
	return r, nil
}

func (r *RAM) Init() (selftest.Status, error) { return r.init() }
func (r *RAM) Configure(p selftest.Plan) (selftest.Status, error) { return r.configure(p) }
func (r *RAM) RunSlice() (selftest.Status, error) { return r.runSlice() }
func (r *RAM) Reset() (selftest.Status, error) { return r.reset() }

// march runs
//
//	up(w0) up(r0,w1) up(r1,w0) down(r0,w1) down(r1,w0) down(r0)
//
// over whole bytes.
func (r *RAM) march(s section) (bool, error) {
	saved := r.save[:s.n]
	if err := r.mem.Load(s.addr, saved); err != nil {
		return false, err
	}
	if r.backup != (selftest.Region{}) {
		if err := r.mem.Fill(r.backup.Start, saved); err != nil {
			return false, err
		}
	}

	ok, err := r.elements(s)

	// restore regardless of the verdict
	restore := saved
	if r.backup != (selftest.Region{}) {
		restore = make([]byte, s.n)
		if lerr := r.mem.Load(r.backup.Start, restore); lerr != nil && err == nil {
			err = lerr
		}
	}
	if ferr := r.mem.Fill(s.addr, restore); ferr != nil && err == nil {
		err = ferr
	}
	return ok, err
}

func (r *RAM) elements(s section) (bool, error) {
	const zero, one = 0x00, 0xFF

	type element struct {
		down  bool
		read  int // -1 means no read
		write int // -1 means no write
	}
	steps := []element{
		{read: -1, write: zero},
		{read: zero, write: one},
		{read: one, write: zero},
		{down: true, read: zero, write: one},
		{down: true, read: one, write: zero},
		{down: true, read: zero, write: -1},
	}

	for _, st := range steps {
		for k := uint32(0); k < s.n; k++ {
			addr := s.addr + k
			if st.down {
				addr = s.addr + s.n - 1 - k
			}
			if st.read >= 0 {
				b, err := r.mem.Read(addr)
				if err != nil {
					return false, err
				}
				if b != byte(st.read) {
					return false, nil
				}
			}
			if st.write >= 0 {
				if err := r.mem.Write(addr, byte(st.write)); err != nil {
					return false, err
				}
			}
		}
	}
	return true, nil
}
