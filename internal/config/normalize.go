// internal/config/normalize.go
package config

// Defaults applied by Normalize.
const (
	DefaultTickRateHz      = 1000
	DefaultTickMax         = 0xFFFFFFFF
	DefaultPeriodMs        = 10
	DefaultPSTMs           = 1000
	DefaultWindowPercent   = 50
	DefaultWatchdogPeriods = 10 // watchdog timeout in safety periods
	DefaultStatusTimeout   = 1000
	DefaultBlinkMs         = 500
	DefaultMonitorTimeout  = 1000
	DefaultTolerance       = 3
	DefaultStorePath       = "supervisor.db"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	s := &cfg.Supervisor

	// Normalize name:
	// - ASCII already validated
	// - Truncate to max 16 characters
	if len(s.Name) > 16 {
		s.Name = s.Name[:16]
	}

	if s.TickRateHz == 0 {
		s.TickRateHz = DefaultTickRateHz
	}
	if s.TickMax == 0 {
		s.TickMax = DefaultTickMax
	}
	if s.PeriodMs == 0 {
		s.PeriodMs = DefaultPeriodMs
	}
	if s.PSTMs == 0 {
		s.PSTMs = DefaultPSTMs
	}
	if s.MaxPeriodGapMs == 0 {
		s.MaxPeriodGapMs = 3 * s.PeriodMs
	}

	if s.Watchdog.WindowPercent == 0 {
		s.Watchdog.WindowPercent = DefaultWindowPercent
	}
	if s.Watchdog.TimeoutMs == 0 {
		s.Watchdog.TimeoutMs = DefaultWatchdogPeriods * s.PeriodMs
	}

	if !s.Store.InMemory && s.Store.Path == "" {
		s.Store.Path = DefaultStorePath
	}

	st := &s.SelfTest
	if st.RAM.SectionsPerSlice == 0 {
		st.RAM.SectionsPerSlice = 1
	}
	if st.ROM.SectionsPerSlice == 0 {
		st.ROM.SectionsPerSlice = 1
	}
	if len(st.RAM.Units) == 0 {
		st.RAM.Units = []UnitConfig{{Name: "march-c"}}
	}
	if len(st.ROM.Units) == 0 {
		st.ROM.Units = []UnitConfig{{Name: "crc32"}}
	}
	if len(st.CPU.Units) == 0 {
		st.CPU.Units = []UnitConfig{{Name: "registers"}, {Name: "alu"}}
	}

	if s.Status != nil {
		if s.Status.TimeoutMs == 0 {
			s.Status.TimeoutMs = DefaultStatusTimeout
		}
		if s.Status.BlinkMs == 0 {
			s.Status.BlinkMs = DefaultBlinkMs
		}
	}

	if s.Monitor != nil {
		if s.Monitor.TimeoutMs == 0 {
			s.Monitor.TimeoutMs = DefaultMonitorTimeout
		}
		if s.Monitor.Tolerance == 0 {
			s.Monitor.Tolerance = DefaultTolerance
		}
	}
}
