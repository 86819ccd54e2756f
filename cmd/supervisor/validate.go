// cmd/supervisor/validate.go
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tamzrod/safety-supervisor/internal/config"
	"github.com/tamzrod/safety-supervisor/internal/selftest"
)

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file, including test region geometry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig(opts.ConfigPath)
			if err != nil {
				return err
			}
			if err := checkRegions(c.Supervisor.SelfTest); err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), c.Supervisor)
			return nil
		},
	}
}

// checkRegions runs the same region checks the schedulers run before any
// backend call, so that a bad layout is reported without booting.
func checkRegions(st config.SelfTestConfig) error {
	if st.RAM.Enabled {
		layout := selftest.RAMLayout{}
		if st.RAM.Backup != nil {
			layout.Backup = selftest.Region{Start: st.RAM.Backup.Start, End: st.RAM.Backup.End}
		}
		if err := layout.CheckRegions(toRegions(st.RAM.Regions)); err != nil {
			return fmt.Errorf("self_test.ram: %w", err)
		}
	}
	if st.ROM.Enabled {
		layout := selftest.ROMLayout{FlashBase: st.ROM.FlashBase, CRCStart: st.ROM.CRCStart}
		if err := layout.CheckRegions(toRegions(st.ROM.Regions)); err != nil {
			return fmt.Errorf("self_test.rom: %w", err)
		}
	}
	return nil
}

func toRegions(in []config.RegionConfig) []selftest.Region {
	out := make([]selftest.Region, 0, len(in))
	for _, r := range in {
		out = append(out, selftest.Region{Start: r.Start, End: r.End})
	}
	return out
}

func printSummary(w io.Writer, s config.SupervisorConfig) {
	fmt.Fprintf(w, "config ok: %s\n", s.Name)
	fmt.Fprintf(w, "  period=%dms pst=%dms max_gap=%dms tick_rate=%dHz\n", s.PeriodMs, s.PSTMs, s.MaxPeriodGapMs, s.TickRateHz)
	fmt.Fprintf(w, "  watchdog timeout=%dms window=%d%%\n", s.Watchdog.TimeoutMs, s.Watchdog.WindowPercent)
	fmt.Fprintf(w, "  ram=%s rom=%s cpu=%s\n",
		domainSummary(s.SelfTest.RAM.Enabled, s.SelfTest.RAM.Units),
		domainSummary(s.SelfTest.ROM.Enabled, s.SelfTest.ROM.Units),
		domainSummary(s.SelfTest.CPU.Enabled, s.SelfTest.CPU.Units),
	)
	if s.Status != nil {
		fmt.Fprintf(w, "  status %s unit=%d base_slot=%d\n", s.Status.Endpoint, s.Status.UnitID, s.Status.BaseSlot)
	}
	if s.Monitor != nil {
		fmt.Fprintf(w, "  monitor %s unit=%d address=%d tolerance=%d\n", s.Monitor.Endpoint, s.Monitor.UnitID, s.Monitor.Address, s.Monitor.Tolerance)
	}
}

func domainSummary(enabled bool, units []config.UnitConfig) string {
	if !enabled {
		return "off"
	}
	n := 0
	for _, u := range units {
		if u.IsEnabled() {
			n++
		}
	}
	return fmt.Sprintf("%d/%d", n, len(units))
}
