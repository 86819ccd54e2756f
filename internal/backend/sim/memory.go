// internal/backend/sim/memory.go
package sim

import (
	"fmt"
	"sync"

	"github.com/tamzrod/safety-supervisor/internal/selftest"
)

// MaxMemory bounds a simulated address space.
const MaxMemory = 64 << 20

// Memory is a simulated byte-addressed memory starting at Base.
// Stuck bits model permanent cell faults; Flip models a transient upset.
type Memory struct {
	mu     sync.Mutex
	base   uint32
	data   []byte
	stuck0 map[uint32]byte // bits forced to 0
	stuck1 map[uint32]byte // bits forced to 1
}

// NewMemory allocates size bytes at base.
func NewMemory(base uint32, size uint32) (*Memory, error) {
	if size == 0 || size > MaxMemory {
		return nil, fmt.Errorf("sim: memory size %d out of range 1..%d", size, MaxMemory)
	}
	if uint64(base)+uint64(size) > 1<<32 {
		return nil, fmt.Errorf("sim: memory 0x%08x+%d exceeds address space", base, size)
	}
	return &Memory{
		base:   base,
		data:   make([]byte, size),
		stuck0: make(map[uint32]byte),
		stuck1: make(map[uint32]byte),
	}, nil
}

// Covering allocates the smallest memory spanning all regions.
func Covering(regions ...selftest.Region) (*Memory, error) {
	if len(regions) == 0 {
		return nil, fmt.Errorf("sim: no regions")
	}
	lo, hi := regions[0].Start, regions[0].End
	for _, r := range regions[1:] {
		lo = min(lo, r.Start)
		hi = max(hi, r.End)
	}
	size := uint64(hi) - uint64(lo) + 1
	if size > MaxMemory {
		return nil, fmt.Errorf("sim: regions span %d bytes, more than %d", size, MaxMemory)
	}
	return NewMemory(lo, uint32(size))
}

func (m *Memory) Base() uint32 { return m.base }

func (m *Memory) Size() uint32 { return uint32(len(m.data)) }

func (m *Memory) index(addr uint32) (int, error) {
	if addr < m.base || uint64(addr-m.base) >= uint64(len(m.data)) {
		return 0, fmt.Errorf("sim: address 0x%08x outside memory", addr)
	}
	return int(addr - m.base), nil
}

// Read returns the byte at addr.
func (m *Memory) Read(addr uint32) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(addr)
	if err != nil {
		return 0, err
	}
	return m.data[i], nil
}

// Write stores b at addr subject to stuck bits.
func (m *Memory) Write(addr uint32, b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(addr)
	if err != nil {
		return err
	}
	m.data[i] = (b &^ m.stuck0[addr]) | m.stuck1[addr]
	return nil
}

// Load copies len(p) bytes from addr.
func (m *Memory) Load(addr uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(addr)
	if err != nil {
		return err
	}
	if i+len(p) > len(m.data) {
		return fmt.Errorf("sim: load 0x%08x+%d outside memory", addr, len(p))
	}
	copy(p, m.data[i:i+len(p)])
	return nil
}

// Fill writes p starting at addr, bypassing stuck bits. Used to program images.
func (m *Memory) Fill(addr uint32, p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(addr)
	if err != nil {
		return err
	}
	if i+len(p) > len(m.data) {
		return fmt.Errorf("sim: fill 0x%08x+%d outside memory", addr, len(p))
	}
	copy(m.data[i:], p)
	return nil
}

// StickBit forces bit of the cell at addr to value on every write.
func (m *Memory) StickBit(addr uint32, bit uint8, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.index(addr); err != nil {
		return err
	}
	mask := byte(1) << (bit & 7)
	if value {
		m.stuck1[addr] |= mask
		m.stuck0[addr] &^= mask
	} else {
		m.stuck0[addr] |= mask
		m.stuck1[addr] &^= mask
	}
	return nil
}

// Flip xors the cell at addr with mask.
func (m *Memory) Flip(addr uint32, mask byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.index(addr)
	if err != nil {
		return err
	}
	m.data[i] ^= mask
	return nil
}

// Snapshot returns a copy of the whole memory.
func (m *Memory) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out
}
