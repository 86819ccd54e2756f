// internal/supervisor/builder.go
package supervisor

import (
	"fmt"
	"log/slog"

	cfg "github.com/tamzrod/safety-supervisor/internal/config"
	"github.com/tamzrod/safety-supervisor/internal/selftest"
	"github.com/tamzrod/safety-supervisor/internal/tick"
)

// UnitSource builds the units of a domain. It returns nil for a disabled
// domain and fresh backends on every call.
type UnitSource func(d selftest.Domain) ([]selftest.Unit, error)

// Schedulers holds one scheduler per enabled domain.
type Schedulers struct {
	RAM *selftest.Scheduler
	ROM *selftest.Scheduler
	CPU *selftest.Scheduler
}

// Ordered returns the enabled schedulers in execution order RAM, ROM, CPU.
func (s Schedulers) Ordered() []*selftest.Scheduler {
	var out []*selftest.Scheduler
	for _, sch := range []*selftest.Scheduler{s.RAM, s.ROM, s.CPU} {
		if sch != nil {
			out = append(out, sch)
		}
	}
	return out
}

// BuildSchedulers creates the schedulers of every enabled domain over
// fresh units. Assumes config has already passed validation and Normalize.
func BuildSchedulers(c cfg.SupervisorConfig, sub *selftest.Subsystem, units UnitSource, logger *slog.Logger) (Schedulers, error) {
	st := c.SelfTest
	var out Schedulers

	type domainPlan struct {
		domain   selftest.Domain
		enabled  bool
		sections uint32
		regions  []selftest.Region
		check    selftest.RegionCheck
		dst      **selftest.Scheduler
	}

	ramLayout := selftest.RAMLayout{}
	if st.RAM.Backup != nil {
		ramLayout.Backup = selftest.Region{Start: st.RAM.Backup.Start, End: st.RAM.Backup.End}
	}

	plans := []domainPlan{
		{selftest.RAM, st.RAM.Enabled, st.RAM.SectionsPerSlice, regions(st.RAM.Regions), ramLayout, &out.RAM},
		{selftest.ROM, st.ROM.Enabled, st.ROM.SectionsPerSlice, regions(st.ROM.Regions),
			selftest.ROMLayout{FlashBase: st.ROM.FlashBase, CRCStart: st.ROM.CRCStart}, &out.ROM},
		{selftest.CPU, st.CPU.Enabled, 1, nil, nil, &out.CPU},
	}

	for _, p := range plans {
		if !p.enabled {
			continue
		}
		us, err := units(p.domain)
		if err != nil {
			return Schedulers{}, err
		}
		reg, err := selftest.NewRegistry(p.domain, us)
		if err != nil {
			return Schedulers{}, fmt.Errorf("%s: %w", p.domain, err)
		}
		sch, err := selftest.NewScheduler(sub, reg, selftest.Options{
			Regions:          p.regions,
			Check:            p.check,
			SectionsPerSlice: p.sections,
			TickMax:          tick.Ticks(c.TickMax),
			Logger:           logger,
		})
		if err != nil {
			return Schedulers{}, fmt.Errorf("%s: %w", p.domain, err)
		}
		*p.dst = sch
	}

	return out, nil
}

func regions(in []cfg.RegionConfig) []selftest.Region {
	out := make([]selftest.Region, 0, len(in))
	for _, r := range in {
		out = append(out, selftest.Region{Start: r.Start, End: r.End})
	}
	return out
}
