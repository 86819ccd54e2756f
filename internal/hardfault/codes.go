// internal/hardfault/codes.go
package hardfault

import "fmt"

// Code is the single-byte hard error code signalled on the indicator
// and persisted across warm resets.
type Code uint8

// Hard error catalogue.
// These values are part of the persisted log format and MUST NOT change.
const (
	NoError Code = 0x00

	// ---- startup ----
	SafetyInit Code = 0x10
	MemRAM     Code = 0x11
	MemROM     Code = 0x12
	CPU        Code = 0x13

	// ---- cyclic execution / audit ----
	MemRAMCyclic Code = 0x21
	MemROMCyclic Code = 0x22
	CPUCyclic    Code = 0x23

	// ---- cyclic process safety time ----
	MemRAMCyclicTimeout Code = 0x31
	MemROMCyclicTimeout Code = 0x32
	CPUCyclicTimeout    Code = 0x33

	// ---- internal supervision ----
	InternWDT                 Code = 0x50
	InternRTC                 Code = 0x51
	InternCheckRegisterCyclic Code = 0x52
	InternSafetyCyclic        Code = 0x53
	InternMPUCyclicTest       Code = 0x54

	// ---- supply monitor ----
	SafetyMeasurement   Code = 0x60
	VoltageExceeded     Code = 0x61
	PowerExceeded       Code = 0x62
	TemperatureExceeded Code = 0x63
)

var codeNames = map[Code]string{
	NoError:                   "no_error",
	SafetyInit:                "safety_init",
	MemRAM:                    "mem_ram",
	MemROM:                    "mem_rom",
	CPU:                       "cpu",
	MemRAMCyclic:              "mem_ram_cyclic",
	MemROMCyclic:              "mem_rom_cyclic",
	CPUCyclic:                 "cpu_cyclic",
	MemRAMCyclicTimeout:       "mem_ram_cyclic_timeout",
	MemROMCyclicTimeout:       "mem_rom_cyclic_timeout",
	CPUCyclicTimeout:          "cpu_cyclic_timeout",
	InternWDT:                 "intern_wdt",
	InternRTC:                 "intern_rtc",
	InternCheckRegisterCyclic: "intern_check_register_cyclic",
	InternSafetyCyclic:        "intern_safety_cyclic",
	InternMPUCyclicTest:       "intern_mpu_cyclic_test",
	SafetyMeasurement:         "safety_measurement",
	VoltageExceeded:           "voltage_exceeded",
	PowerExceeded:             "power_exceeded",
	TemperatureExceeded:       "temperature_exceeded",
}

func (c Code) String() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return fmt.Sprintf("code(0x%02x)", uint8(c))
}

// Known reports whether c is part of the catalogue.
func (c Code) Known() bool {
	_, ok := codeNames[c]
	return ok
}
