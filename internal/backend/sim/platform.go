// internal/backend/sim/platform.go
package sim

import (
	"fmt"
	"sync"

	cfg "github.com/tamzrod/safety-supervisor/internal/config"
	"github.com/tamzrod/safety-supervisor/internal/selftest"
)

// Platform is the simulated target the self-tests run against on a host.
// Memories are shared; every Units call builds fresh backends over them so
// that full and cyclic schedulers never share backend state.
type Platform struct {
	RAM   *Memory
	Flash *Memory

	st     cfg.SelfTestConfig
	backup selftest.Region

	mu      sync.Mutex
	cpus    map[string][]*CPU
	corrupt map[string]uint32
}

// NewPlatform builds the memories of the enabled domains.
// Assumes config has already passed validation.
func NewPlatform(st cfg.SelfTestConfig) (*Platform, error) {
	p := &Platform{
		st:      st,
		cpus:    make(map[string][]*CPU),
		corrupt: make(map[string]uint32),
	}

	if st.RAM.Enabled {
		regions := Regions(st.RAM.Regions)
		if st.RAM.Backup != nil {
			p.backup = selftest.Region{Start: st.RAM.Backup.Start, End: st.RAM.Backup.End}
			regions = append(regions, p.backup)
		}
		mem, err := Covering(regions...)
		if err != nil {
			return nil, fmt.Errorf("ram: %w", err)
		}
		p.RAM = mem
	}

	if st.ROM.Enabled {
		size := st.ROM.CRCStart - st.ROM.FlashBase
		flash, err := NewMemory(st.ROM.FlashBase, size)
		if err != nil {
			return nil, fmt.Errorf("rom: %w", err)
		}
		if err := flash.Fill(st.ROM.FlashBase, Image(int(size), st.ROM.FlashBase)); err != nil {
			return nil, fmt.Errorf("rom: %w", err)
		}
		p.Flash = flash
	}

	if st.CPU.Enabled {
		for _, u := range st.CPU.Units {
			if _, ok := cpuChecks[u.Name]; !ok {
				return nil, fmt.Errorf("cpu: unknown check %q (known: %v)", u.Name, CPUChecks())
			}
		}
	}

	return p, nil
}

// Units builds fresh backends for d; nil when the domain is disabled.
func (p *Platform) Units(d selftest.Domain) ([]selftest.Unit, error) {
	var (
		conf []cfg.UnitConfig
		mk   func(name string) (selftest.Backend, error)
	)

	switch d {
	case selftest.RAM:
		if !p.st.RAM.Enabled {
			return nil, nil
		}
		conf = p.st.RAM.Units
		mk = func(string) (selftest.Backend, error) { return NewRAM(p.RAM, p.backup) }

	case selftest.ROM:
		if !p.st.ROM.Enabled {
			return nil, nil
		}
		conf = p.st.ROM.Units
		mk = func(string) (selftest.Backend, error) { return NewROM(p.Flash), nil }

	case selftest.CPU:
		if !p.st.CPU.Enabled {
			return nil, nil
		}
		conf = p.st.CPU.Units
		mk = p.newCPU

	default:
		return nil, fmt.Errorf("sim: unknown domain %s", d)
	}

	units := make([]selftest.Unit, 0, len(conf))
	for _, u := range conf {
		b, err := mk(u.Name)
		if err != nil {
			return nil, fmt.Errorf("%s unit %q: %w", d, u.Name, err)
		}
		units = append(units, selftest.Unit{Name: u.Name, Enabled: u.IsEnabled(), Backend: b})
	}
	return units, nil
}

func (p *Platform) newCPU(name string) (selftest.Backend, error) {
	c, err := NewCPU(name)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	c.Corrupt(p.corrupt[name])
	p.cpus[name] = append(p.cpus[name], c)
	return c, nil
}

// CorruptCPU injects a fault into every present and future backend of the
// named CPU check. Zero heals it.
func (p *Platform) CorruptCPU(name string, mask uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.corrupt[name] = mask
	for _, c := range p.cpus[name] {
		c.Corrupt(mask)
	}
}

// Regions converts config regions.
func Regions(in []cfg.RegionConfig) []selftest.Region {
	out := make([]selftest.Region, 0, len(in))
	for _, r := range in {
		out = append(out, selftest.Region{Start: r.Start, End: r.End})
	}
	return out
}
