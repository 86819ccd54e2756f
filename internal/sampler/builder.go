// internal/sampler/builder.go
package sampler

import (
	"time"

	cfg "github.com/tamzrod/safety-supervisor/internal/config"
	smodbus "github.com/tamzrod/safety-supervisor/internal/sampler/modbus"
)

// Build constructs a Sampler and wires Modbus client lifecycle.
// Connection is reused while healthy.
// On transport death, Sampler discards the client and uses factory on a future call.
// No retries, no loops, no semantics.
func Build(m cfg.MonitorConfig) (*Sampler, func() error, error) {
	// client factory: ONE attempt per call
	factory := func() (Client, error) {
		return smodbus.New(smodbus.Config{
			Endpoint: m.Endpoint,
			UnitID:   m.UnitID,
			Timeout:  time.Duration(m.TimeoutMs) * time.Millisecond,
		})
	}

	// initial client (fail fast at startup)
	client, err := factory()
	if err != nil {
		return nil, nil, err
	}

	c := Config{Address: m.Address}
	if rc := m.RegisterCheck; rc != nil {
		c.CheckAddress = rc.Address
		c.CheckQuantity = rc.Quantity
	}

	s, err := New(c, client, factory)
	if err != nil {
		return nil, nil, err
	}

	closer := func() error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if cl, ok := s.client.(interface{ Close() error }); ok {
			return cl.Close()
		}
		return nil
	}
	return s, closer, nil
}
