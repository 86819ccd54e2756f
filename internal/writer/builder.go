// internal/writer/builder.go
package writer

import (
	"errors"
	"time"

	cfg "github.com/tamzrod/safety-supervisor/internal/config"
	wmodbus "github.com/tamzrod/safety-supervisor/internal/writer/modbus"
)

// BuildPlan converts the status config into a StatusPlan.
// Returns nil when status publishing is not configured.
// Assumes config has already passed validation.
func BuildPlan(c cfg.Config) *StatusPlan {
	sc := c.Supervisor.Status
	if sc == nil {
		return nil
	}

	return &StatusPlan{
		Endpoint:   sc.Endpoint,
		UnitID:     sc.UnitID,
		BaseSlot:   sc.BaseSlot,
		DeviceName: c.Supervisor.Name,
		Timeout:    time.Duration(sc.TimeoutMs) * time.Millisecond,
	}
}

// BuildStatusWriter connects to the status endpoint and returns the writer
// plus its closer.
func BuildStatusWriter(plan *StatusPlan) (*DeviceStatusWriter, func() error, error) {
	if plan == nil {
		return nil, nil, errors.New("writer: status not configured")
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: plan.Endpoint,
		Timeout:  plan.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	return NewDeviceStatusWriter(*plan, c), c.Close, nil
}
