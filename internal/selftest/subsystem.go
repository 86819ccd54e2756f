// internal/selftest/subsystem.go
package selftest

import "sync"

// Subsystem is the global test library switch.
// Schedulers refuse to configure or run while it is not started.
type Subsystem struct {
	mu      sync.Mutex
	started bool
	init    func() error
}

// NewSubsystem creates a stopped subsystem. init runs on every Start and may be nil.
func NewSubsystem(init func() error) *Subsystem {
	return &Subsystem{init: init}
}

// Start initializes the subsystem. It is idempotent.
func (s *Subsystem) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.init != nil {
		if err := s.init(); err != nil {
			return err
		}
	}
	s.started = true
	return nil
}

// Stop puts the subsystem back into its initial state.
func (s *Subsystem) Stop() {
	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}

func (s *Subsystem) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
