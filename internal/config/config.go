// internal/config/config.go
package config

type Config struct {
	Supervisor SupervisorConfig `yaml:"supervisor"`
}

type SupervisorConfig struct {
	Name string `yaml:"name"`

	// Tick source of the safety task.
	TickRateHz uint32 `yaml:"tick_rate_hz"`
	TickMax    uint32 `yaml:"tick_max"` // platform maximum tick value

	PeriodMs       int `yaml:"period_ms"`
	PSTMs          int `yaml:"pst_ms"`
	MaxPeriodGapMs int `yaml:"max_period_gap_ms"`

	Store    StoreConfig    `yaml:"store"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Watchdog WatchdogConfig `yaml:"watchdog"`
	SelfTest SelfTestConfig `yaml:"self_test"`

	// Optional, opt-in
	Status  *StatusConfig  `yaml:"status"`
	Monitor *MonitorConfig `yaml:"monitor"`
}

// ---- STORE ----

type StoreConfig struct {
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Listen string `yaml:"listen"` // empty = disabled
}

// ---- WATCHDOG ----

type WatchdogConfig struct {
	TimeoutMs     int `yaml:"timeout_ms"`
	WindowPercent int `yaml:"window_percent"`
}

// ---- SELF TEST ----

type SelfTestConfig struct {
	RAM RAMConfig `yaml:"ram"`
	ROM ROMConfig `yaml:"rom"`
	CPU CPUConfig `yaml:"cpu"`
}

type RegionConfig struct {
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"` // inclusive
}

type UnitConfig struct {
	Name    string `yaml:"name"`
	Enabled *bool  `yaml:"enabled"` // nil = enabled
}

// IsEnabled reports the effective enable flag.
func (u UnitConfig) IsEnabled() bool {
	return u.Enabled == nil || *u.Enabled
}

type RAMConfig struct {
	Enabled          bool           `yaml:"enabled"`
	SectionsPerSlice uint32         `yaml:"sections_per_slice"`
	Regions          []RegionConfig `yaml:"regions"`
	Backup           *RegionConfig  `yaml:"backup"`
	Units            []UnitConfig   `yaml:"units"`
}

type ROMConfig struct {
	Enabled          bool           `yaml:"enabled"`
	SectionsPerSlice uint32         `yaml:"sections_per_slice"`
	FlashBase        uint32         `yaml:"flash_base"`
	CRCStart         uint32         `yaml:"crc_start"`
	Regions          []RegionConfig `yaml:"regions"`
	Units            []UnitConfig   `yaml:"units"`
}

type CPUConfig struct {
	Enabled      bool         `yaml:"enabled"`
	RunAtStartup bool         `yaml:"run_at_startup"`
	Units        []UnitConfig `yaml:"units"`
}

// ---- STATUS BLOCK ----

type StatusConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot"`
	TimeoutMs int    `yaml:"timeout_ms"`
	BlinkMs   int    `yaml:"blink_ms"`
}

// ---- SUPPLY MONITOR ----

type MonitorConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UnitID    uint8  `yaml:"unit_id"`
	TimeoutMs int    `yaml:"timeout_ms"`

	// First of three input registers: voltage (mV), power (mW), temperature (0.1 C, signed).
	Address   uint16 `yaml:"address"`
	Tolerance int    `yaml:"tolerance"`

	Voltage     *LimitConfig `yaml:"voltage"`
	Power       *LimitConfig `yaml:"power"`
	Temperature *LimitConfig `yaml:"temperature"`

	RegisterCheck *RegisterCheckConfig `yaml:"register_check"`
}

type LimitConfig struct {
	Min int32 `yaml:"min"`
	Max int32 `yaml:"max"`
}

// RegisterCheckConfig names a holding register range that must not change
// while the supervisor runs.
type RegisterCheckConfig struct {
	Address  uint16 `yaml:"address"`
	Quantity uint16 `yaml:"quantity"`
}
