// internal/writer/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

// MaxWriteRegisters is the FC16 limit of registers per request.
const MaxWriteRegisters = 123

// ErrTooManyRegisters rejects writes the endpoint would refuse anyway.
var ErrTooManyRegisters = errors.New("writer modbus: too many registers for one write")

// EndpointClient is a single TCP connection to one status endpoint.
// It serializes requests because it mutates SlaveId per write.
//
// A failed write drops the connection; the next write dials again. The
// status block is re-asserted in full by the caller after a failure, so a
// fresh connection never carries a half-written block forward.
type EndpointClient struct {
	endpoint string

	mu      sync.Mutex
	handler *modbus.TCPClientHandler
	client  modbus.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

func NewEndpointClient(cfg Config) (*EndpointClient, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("writer modbus: endpoint required")
	}

	h := modbus.NewTCPClientHandler(cfg.Endpoint)
	h.Timeout = cfg.Timeout

	// fail fast at startup; later reconnects happen on demand
	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("writer modbus: connect %s: %w", cfg.Endpoint, err)
	}

	return &EndpointClient{
		endpoint: cfg.Endpoint,
		handler:  h,
		client:   modbus.NewClient(h),
	}, nil
}

func (c *EndpointClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handler.Close()
}

// WriteRegisters writes holding registers (FC 16).
// Errors name the endpoint, unit and register range written.
func (c *EndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if err := checkWrite(addr, len(regs)); err != nil {
		return c.wrap(unitID, addr, len(regs), err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.handler.SlaveId = unitID

	if _, err := c.client.WriteMultipleRegisters(addr, uint16(len(regs)), PackRegisters(regs)); err != nil {
		// the transport redials on the next request once closed
		_ = c.handler.Close()
		return c.wrap(unitID, addr, len(regs), err)
	}
	return nil
}

func (c *EndpointClient) wrap(unitID uint8, addr uint16, n int, err error) error {
	return fmt.Errorf("status write %s unit=%d addr=%d count=%d: %w", c.endpoint, unitID, addr, n, err)
}

// checkWrite rejects empty writes, writes above the FC16 limit and ranges
// running past the end of the register space.
func checkWrite(addr uint16, n int) error {
	switch {
	case n == 0:
		return errors.New("writer modbus: empty write")
	case n > MaxWriteRegisters:
		return fmt.Errorf("%w: %d > %d", ErrTooManyRegisters, n, MaxWriteRegisters)
	case int(addr)+n > 0x10000:
		return fmt.Errorf("writer modbus: range %d+%d exceeds register space", addr, n)
	}
	return nil
}

// PackRegisters lays registers out big-endian, Modbus wire order.
func PackRegisters(regs []uint16) []byte {
	out := make([]byte, len(regs)*2)
	for i, r := range regs {
		out[2*i] = byte(r >> 8)
		out[2*i+1] = byte(r)
	}
	return out
}
