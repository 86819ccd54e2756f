// internal/backend/sim/cpu.go
package sim

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/tamzrod/safety-supervisor/internal/selftest"
)

// cpuChecks are deterministic core checks by unit name.
// Each returns true when the core computed the expected result.
var cpuChecks = map[string]func(corrupt uint32) bool{
	"registers": checkRegisters,
	"alu":       checkALU,
	"shift":     checkShift,
	"multiply":  checkMultiply,
}

// CPUChecks lists the known check names.
func CPUChecks() []string {
	out := make([]string, 0, len(cpuChecks))
	for k := range cpuChecks {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// CPU runs one core check per slice; it always completes in one slice.
type CPU struct {
	name    string
	check   func(corrupt uint32) bool
	corrupt uint32

	initialized bool
	configured  bool
	done        bool
}

// NewCPU returns the backend for the named check.
func NewCPU(name string) (*CPU, error) {
	f, ok := cpuChecks[name]
	if !ok {
		return nil, fmt.Errorf("sim: unknown cpu check %q", name)
	}
	return &CPU{name: name, check: f}, nil
}

// Corrupt makes every computation of the check xor its result with mask.
// Zero restores a healthy core.
func (c *CPU) Corrupt(mask uint32) { c.corrupt = mask }

func (c *CPU) Init() (selftest.Status, error) {
	c.initialized = true
	c.configured = false
	c.done = false
	return selftest.NotTested, nil
}

func (c *CPU) Configure(p selftest.Plan) (selftest.Status, error) {
	if !c.initialized {
		return selftest.Error, ErrNotInitialized
	}
	if len(p.Regions) > 0 {
		return selftest.Error, fmt.Errorf("sim: cpu check %s takes no regions", c.name)
	}
	c.configured = true
	c.done = false
	return selftest.NotTested, nil
}

func (c *CPU) RunSlice() (selftest.Status, error) {
	if !c.configured {
		return selftest.Error, ErrNotConfigured
	}
	if c.done {
		return selftest.Error, ErrSweepDone
	}
	if !c.check(c.corrupt) {
		return selftest.Failed, nil
	}
	c.done = true
	return selftest.Passed, nil
}

func (c *CPU) Reset() (selftest.Status, error) {
	if !c.configured {
		return selftest.Error, ErrNotConfigured
	}
	c.done = false
	return selftest.NotTested, nil
}

// ---- checks ----

func checkRegisters(corrupt uint32) bool {
	var regs [16]uint32
	for _, pattern := range []uint32{0xAAAAAAAA, 0x55555555, 0x00000000, 0xFFFFFFFF} {
		for i := range regs {
			regs[i] = pattern ^ corrupt
		}
		for i := range regs {
			if regs[i] != pattern {
				return false
			}
		}
	}
	return true
}

func checkALU(corrupt uint32) bool {
	vectors := []struct{ a, b, sum, diff, xor uint32 }{
		{0x00000001, 0x00000001, 0x00000002, 0x00000000, 0x00000000},
		{0xFFFFFFFF, 0x00000001, 0x00000000, 0xFFFFFFFE, 0xFFFFFFFE},
		{0xAAAAAAAA, 0x55555555, 0xFFFFFFFF, 0x55555555, 0xFFFFFFFF},
		{0x80000000, 0x80000000, 0x00000000, 0x00000000, 0x00000000},
	}
	for _, v := range vectors {
		if (v.a+v.b)^corrupt != v.sum {
			return false
		}
		if (v.a-v.b)^corrupt != v.diff {
			return false
		}
		if (v.a^v.b)^corrupt != v.xor {
			return false
		}
	}
	return true
}

func checkShift(corrupt uint32) bool {
	x := uint32(1)
	for i := 0; i < 32; i++ {
		if (x<<i)^corrupt != 1<<i {
			return false
		}
		if bits.RotateLeft32(0x80000001, i)^corrupt != bits.RotateLeft32(0x80000001, i) {
			return false
		}
	}
	return true
}

func checkMultiply(corrupt uint32) bool {
	hi, lo := bits.Mul32(0xFFFFFFFF, 0xFFFFFFFF)
	if hi^corrupt != 0xFFFFFFFE || lo^corrupt != 0x00000001 {
		return false
	}
	if (uint32(12345)*uint32(6789))^corrupt != 83810205 {
		return false
	}
	return true
}
