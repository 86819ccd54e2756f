// internal/monitor/monitor.go
package monitor

import (
	"log/slog"

	"github.com/tamzrod/safety-supervisor/internal/hardfault"
	"github.com/tamzrod/safety-supervisor/internal/sampler"
)

// Channel is one supervised supply quantity.
type Channel int

const (
	Voltage Channel = iota
	Power
	Temperature

	numChannels
)

func (c Channel) String() string {
	switch c {
	case Voltage:
		return "voltage"
	case Power:
		return "power"
	case Temperature:
		return "temperature"
	default:
		return "unknown"
	}
}

// Monitor flag bits, as published in the status block.
const (
	FlagVoltage uint16 = 1 << iota
	FlagPower
	FlagTemperature
	FlagMeasurement
)

// Limit is an inclusive absolute range.
type Limit struct {
	Min int32
	Max int32
}

func (l Limit) contains(v int32) bool {
	return v >= l.Min && v <= l.Max
}

// Config enables channels by giving them a limit.
type Config struct {
	Voltage     *Limit
	Power       *Limit
	Temperature *Limit

	// Consecutive out-of-limit periods tolerated before escalation.
	// Also the number of invalid samples tolerated before the first valid one.
	Tolerance int
}

// Verdict is the outcome of one evaluation.
type Verdict struct {
	Flags uint16

	Escalate  bool
	Code      hardfault.Code
	Permanent bool
}

// Monitor evaluates one sample per safety period.
// Not safe for concurrent use; the safety task owns it.
type Monitor struct {
	limits    [numChannels]*Limit
	tolerance int
	log       *slog.Logger

	over  [numChannels]int
	grace int
	valid bool
}

func New(cfg Config, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	tol := cfg.Tolerance
	if tol < 0 {
		tol = 0
	}
	return &Monitor{
		limits:    [numChannels]*Limit{cfg.Voltage, cfg.Power, cfg.Temperature},
		tolerance: tol,
		grace:     tol,
		log:       logger.With(slog.String("component", "monitor")),
	}
}

// Evaluate checks s. Escalation codes are permanent for limit violations
// and transient for an invalid measurement.
func (m *Monitor) Evaluate(s sampler.Sample) Verdict {
	if s.Err != nil {
		return m.invalid(s.Err)
	}

	// a valid reading ends the startup grace
	m.valid = true
	m.grace = 0

	var v Verdict
	values := [numChannels]int32{s.VoltageMilli, s.PowerMilli, s.TempDeci}

	for ch := Channel(0); ch < numChannels; ch++ {
		lim := m.limits[ch]
		if lim == nil {
			continue
		}
		if lim.contains(values[ch]) {
			m.over[ch] = 0
			continue
		}

		v.Flags |= 1 << uint(ch)
		if m.over[ch] == 0 {
			m.log.Warn("supply out of limits",
				slog.String("channel", ch.String()),
				slog.Int("value", int(values[ch])),
				slog.Int("min", int(lim.Min)),
				slog.Int("max", int(lim.Max)),
			)
		}
		if m.over[ch] < m.tolerance {
			m.over[ch]++
			continue
		}

		// first violated channel in order wins
		if !v.Escalate {
			v.Escalate = true
			v.Permanent = true
			v.Code = codeFor(ch)
		}
	}

	return v
}

func (m *Monitor) invalid(err error) Verdict {
	v := Verdict{Flags: FlagMeasurement}

	if !m.valid && m.grace > 0 {
		m.grace--
		m.log.Debug("measurement not yet available", slog.String("error", err.Error()))
		return v
	}

	m.log.Error("invalid measurement", slog.String("error", err.Error()))
	v.Escalate = true
	v.Code = hardfault.SafetyMeasurement
	return v
}

func codeFor(ch Channel) hardfault.Code {
	switch ch {
	case Voltage:
		return hardfault.VoltageExceeded
	case Power:
		return hardfault.PowerExceeded
	default:
		return hardfault.TemperatureExceeded
	}
}
