// internal/sampler/sampler.go
package sampler

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var (
	errShortSample = errors.New("sampler: short sample")

	// ErrRegisterMismatch means a checked register range changed.
	ErrRegisterMismatch = errors.New("sampler: register check mismatch")
)

// Client abstracts the Modbus reads the sampler needs.
type Client interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) // FC 3
	ReadInputRegisters(addr, qty uint16) ([]uint16, error)   // FC 4
}

// Factory makes a fresh client. One attempt per call.
type Factory func() (Client, error)

// Config is the minimal runtime config the sampler needs.
type Config struct {
	Address uint16 // first sample register

	// Optional holding register range checked for changes.
	CheckAddress  uint16
	CheckQuantity uint16
}

// Sampler is a dumb, caller-clocked reader.
// A transport failure discards the client; the factory is used on a later call.
type Sampler struct {
	cfg     Config
	factory Factory

	// replaceable in tests
	now func() time.Time

	mu     sync.Mutex
	client Client
	ref    []uint16
}

// New creates a sampler with immutable config. client may be nil when a
// factory is given.
func New(cfg Config, client Client, factory Factory) (*Sampler, error) {
	if client == nil && factory == nil {
		return nil, errors.New("sampler: client or factory required")
	}
	if cfg.CheckQuantity > 125 {
		return nil, errors.New("sampler: register check quantity must be <= 125")
	}
	return &Sampler{cfg: cfg, client: client, factory: factory, now: time.Now}, nil
}

// SampleOnce performs exactly one read. Failures are reported in Sample.Err.
func (s *Sampler) SampleOnce() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()

	c, err := s.clientLocked()
	if err != nil {
		return Sample{At: at, Err: err}
	}

	regs, err := c.ReadInputRegisters(s.cfg.Address, SampleRegisters)
	if err != nil {
		s.dropLocked()
		return Sample{At: at, Err: fmt.Errorf("sampler: read inputs: %w", err)}
	}

	out := Decode(regs)
	out.At = at
	return out
}

// HasRegisterCheck reports whether a register range is configured.
func (s *Sampler) HasRegisterCheck() bool {
	return s.cfg.CheckQuantity > 0
}

// CaptureReference reads the checked range and stores it as reference.
func (s *Sampler) CaptureReference() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.readCheckLocked()
	if err != nil {
		return err
	}
	s.ref = regs
	return nil
}

// CheckRegisters compares the checked range against the reference.
// Without a reference the first successful read becomes the reference.
func (s *Sampler) CheckRegisters() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs, err := s.readCheckLocked()
	if err != nil {
		return err
	}
	if s.ref == nil {
		s.ref = regs
		return nil
	}
	if !slices.Equal(regs, s.ref) {
		return fmt.Errorf("%w: addr=%d qty=%d", ErrRegisterMismatch, s.cfg.CheckAddress, s.cfg.CheckQuantity)
	}
	return nil
}

func (s *Sampler) readCheckLocked() ([]uint16, error) {
	if s.cfg.CheckQuantity == 0 {
		return nil, errors.New("sampler: register check not configured")
	}
	c, err := s.clientLocked()
	if err != nil {
		return nil, err
	}
	regs, err := c.ReadHoldingRegisters(s.cfg.CheckAddress, s.cfg.CheckQuantity)
	if err != nil {
		s.dropLocked()
		return nil, fmt.Errorf("sampler: read holding: %w", err)
	}
	if len(regs) != int(s.cfg.CheckQuantity) {
		return nil, fmt.Errorf("sampler: register check got %d registers, want %d", len(regs), s.cfg.CheckQuantity)
	}
	return regs, nil
}

func (s *Sampler) clientLocked() (Client, error) {
	if s.client != nil {
		return s.client, nil
	}
	if s.factory == nil {
		return nil, errors.New("sampler: not connected")
	}
	c, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("sampler: connect: %w", err)
	}
	s.client = c
	return c, nil
}

func (s *Sampler) dropLocked() {
	if s.factory == nil {
		return
	}
	if cl, ok := s.client.(interface{ Close() error }); ok {
		_ = cl.Close()
	}
	s.client = nil
}
