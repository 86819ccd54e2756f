// internal/config/validate.go
package config

import (
	"fmt"

	"github.com/tamzrod/safety-supervisor/internal/status"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
//
// Region geometry (alignment, backup overlap, flash bounds) is checked by the
// test schedulers at setup so that a bad layout surfaces as a safety init
// failure rather than a config error.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	s := cfg.Supervisor

	// name sanity (ASCII only)
	for i := 0; i < len(s.Name); i++ {
		if s.Name[i] > 0x7F {
			return fmt.Errorf("supervisor %q: name must contain ASCII characters only", s.Name)
		}
	}

	// ------------------------------------------------------------
	// TIMING
	// ------------------------------------------------------------

	if s.PeriodMs < 0 || s.PSTMs < 0 || s.MaxPeriodGapMs < 0 {
		return fmt.Errorf("period_ms, pst_ms and max_period_gap_ms must not be negative")
	}
	if s.PSTMs > 0 && s.PeriodMs > 0 && s.PSTMs < s.PeriodMs {
		return fmt.Errorf("pst_ms=%d is shorter than period_ms=%d", s.PSTMs, s.PeriodMs)
	}
	if s.MaxPeriodGapMs > 0 && s.PeriodMs > 0 && s.MaxPeriodGapMs < s.PeriodMs {
		return fmt.Errorf("max_period_gap_ms=%d is shorter than period_ms=%d", s.MaxPeriodGapMs, s.PeriodMs)
	}
	if s.TickMax != 0 && s.TickMax < 0xFF {
		return fmt.Errorf("tick_max=%d is too small", s.TickMax)
	}

	w := s.Watchdog
	if w.WindowPercent < 0 || w.WindowPercent > 100 {
		return fmt.Errorf("watchdog: window_percent=%d out of range 0..100", w.WindowPercent)
	}
	if w.TimeoutMs < 0 {
		return fmt.Errorf("watchdog: timeout_ms must not be negative")
	}
	if w.TimeoutMs > 0 && s.PeriodMs > 0 && w.TimeoutMs <= s.PeriodMs {
		return fmt.Errorf("watchdog: timeout_ms=%d must exceed period_ms=%d", w.TimeoutMs, s.PeriodMs)
	}
	if err := validateWatchdogWindow(s); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// SELF TEST
	// ------------------------------------------------------------

	st := s.SelfTest
	if err := validateUnits("ram", st.RAM.Units); err != nil {
		return err
	}
	if err := validateUnits("rom", st.ROM.Units); err != nil {
		return err
	}
	if err := validateUnits("cpu", st.CPU.Units); err != nil {
		return err
	}

	if st.RAM.Enabled && len(st.RAM.Regions) == 0 {
		return fmt.Errorf("self_test.ram: enabled but no regions defined")
	}
	if st.ROM.Enabled && len(st.ROM.Regions) == 0 {
		return fmt.Errorf("self_test.rom: enabled but no regions defined")
	}
	if st.ROM.Enabled && st.ROM.CRCStart <= st.ROM.FlashBase {
		return fmt.Errorf("self_test.rom: crc_start=0x%x must be above flash_base=0x%x", st.ROM.CRCStart, st.ROM.FlashBase)
	}
	for i, r := range st.RAM.Regions {
		if r.End < r.Start {
			return fmt.Errorf("self_test.ram: region %d ends before it starts", i)
		}
	}
	for i, r := range st.ROM.Regions {
		if r.End < r.Start {
			return fmt.Errorf("self_test.rom: region %d ends before it starts", i)
		}
	}
	if b := st.RAM.Backup; b != nil && b.End < b.Start {
		return fmt.Errorf("self_test.ram: backup ends before it starts")
	}

	// ------------------------------------------------------------
	// STATUS BLOCK (OPT-IN)
	// ------------------------------------------------------------

	if sc := s.Status; sc != nil {
		if sc.Endpoint == "" {
			return fmt.Errorf("status: endpoint required")
		}
		if (int(sc.BaseSlot)+1)*status.SlotsPerDevice > 0x10000 {
			return fmt.Errorf("status: base_slot=%d exceeds register space", sc.BaseSlot)
		}
		if sc.TimeoutMs < 0 || sc.BlinkMs < 0 {
			return fmt.Errorf("status: timeout_ms and blink_ms must not be negative")
		}
	}

	// ------------------------------------------------------------
	// SUPPLY MONITOR (OPT-IN)
	// ------------------------------------------------------------

	m := s.Monitor
	if m == nil {
		return nil
	}

	if m.Endpoint == "" {
		return fmt.Errorf("monitor: endpoint required")
	}
	if m.Tolerance < 0 {
		return fmt.Errorf("monitor: tolerance must not be negative")
	}
	if int(m.Address)+3 > 0x10000 {
		return fmt.Errorf("monitor: address=%d leaves no room for three sample registers", m.Address)
	}

	for name, l := range map[string]*LimitConfig{
		"voltage":     m.Voltage,
		"power":       m.Power,
		"temperature": m.Temperature,
	} {
		if l != nil && l.Min > l.Max {
			return fmt.Errorf("monitor: %s min=%d above max=%d", name, l.Min, l.Max)
		}
	}

	rc := m.RegisterCheck
	if rc == nil {
		return nil
	}
	if rc.Quantity == 0 || rc.Quantity > 125 {
		return fmt.Errorf("monitor: register_check quantity=%d out of range 1..125", rc.Quantity)
	}
	if int(rc.Address)+int(rc.Quantity) > 0x10000 {
		return fmt.Errorf("monitor: register_check range exceeds register space")
	}

	// The checked range must not cover the status block when both live in
	// the same holding memory: the block changes every period.
	if sc := s.Status; sc != nil && sc.Endpoint == m.Endpoint && sc.UnitID == m.UnitID {
		start := uint32(sc.BaseSlot) * status.SlotsPerDevice
		end := start + status.SlotsPerDevice - 1

		cs := uint32(rc.Address)
		ce := cs + uint32(rc.Quantity) - 1

		// overlap check (inclusive)
		if !(ce < start || cs > end) {
			return fmt.Errorf(
				"register_check overlap: endpoint=%s unit_id=%d range=%d-%d overlaps status block range=%d-%d",
				m.Endpoint,
				m.UnitID,
				cs,
				ce,
				start,
				end,
			)
		}
	}

	return nil
}

func validateUnits(domain string, units []UnitConfig) error {
	seen := make(map[string]struct{}, len(units))
	for i, u := range units {
		if u.Name == "" {
			return fmt.Errorf("self_test.%s: unit %d has no name", domain, i)
		}
		if _, exists := seen[u.Name]; exists {
			return fmt.Errorf("self_test.%s: duplicate unit name %q", domain, u.Name)
		}
		seen[u.Name] = struct{}{}
	}
	return nil
}

// validateWatchdogWindow checks the window watchdog against the values
// Normalize will apply. The trigger opens at timeout*(200-window)/200 and the
// first kick lands on the next period after it, so that kick must still come
// before the timeout.
func validateWatchdogWindow(s SupervisorConfig) error {
	period := s.PeriodMs
	if period == 0 {
		period = DefaultPeriodMs
	}
	window := s.Watchdog.WindowPercent
	if window == 0 {
		window = DefaultWindowPercent
	}
	timeout := s.Watchdog.TimeoutMs
	if timeout == 0 {
		timeout = DefaultWatchdogPeriods * period
	}

	trigger := timeout * (200 - window) / 200
	if trigger+period >= timeout {
		return fmt.Errorf(
			"watchdog: timeout_ms=%d window_percent=%d opens at %dms; with period_ms=%d the first kick would not come before the timeout",
			timeout, window, trigger, period,
		)
	}
	return nil
}
