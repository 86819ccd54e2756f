// internal/sampler/types.go
package sampler

import "time"

// SampleRegisters is the number of input registers making up one sample.
const SampleRegisters = 3

// Sample is one supply measurement.
// Geometry is fixed: voltage, power, temperature at consecutive input registers.
type Sample struct {
	At time.Time

	VoltageMilli int32 // mV
	PowerMilli   int32 // mW
	TempDeci     int32 // 0.1 degC, signed on the wire

	Err error // non-nil means the measurement is invalid
}

// Decode unpacks raw input registers into a Sample.
// Temperature is a two's complement 16-bit value.
func Decode(regs []uint16) Sample {
	if len(regs) < SampleRegisters {
		return Sample{Err: errShortSample}
	}
	return Sample{
		VoltageMilli: int32(regs[0]),
		PowerMilli:   int32(regs[1]),
		TempDeci:     int32(int16(regs[2])),
	}
}
