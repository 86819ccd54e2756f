// internal/selftest/registry.go
package selftest

import (
	"errors"
	"fmt"
)

// Registry is the ordered set of test units of one domain.
// Statuses are mutated only by the scheduler that owns the registry.
type Registry struct {
	domain Domain
	units  []Unit
	status []Status
}

// NewRegistry builds a registry. Unit order is execution order.
func NewRegistry(d Domain, units []Unit) (*Registry, error) {
	if len(units) == 0 {
		return nil, fmt.Errorf("selftest: %s registry needs at least one unit", d)
	}
	for i, u := range units {
		if u.Backend == nil {
			return nil, fmt.Errorf("selftest: %s unit %d (%s) has no backend", d, i, u.Name)
		}
		if u.Name == "" {
			return nil, errors.New("selftest: unit name required")
		}
	}

	cp := make([]Unit, len(units))
	copy(cp, units)

	return &Registry{
		domain: d,
		units:  cp,
		status: make([]Status, len(units)),
	}, nil
}

func (r *Registry) Domain() Domain { return r.domain }

func (r *Registry) Len() int { return len(r.units) }

func (r *Registry) Unit(i int) Unit { return r.units[i] }

func (r *Registry) Status(i int) Status { return r.status[i] }

// Statuses returns a copy of all unit statuses in registry order.
func (r *Registry) Statuses() []Status {
	out := make([]Status, len(r.status))
	copy(out, r.status)
	return out
}

// EnabledCount returns the number of enabled units.
func (r *Registry) EnabledCount() int {
	n := 0
	for _, u := range r.units {
		if u.Enabled {
			n++
		}
	}
	return n
}

// ResetAll forces every unit back to NotTested. No I/O.
func (r *Registry) ResetAll() {
	for i := range r.status {
		r.status[i] = NotTested
	}
}

// record stores the outcome of a backend call.
// Disabled units never leave NotTested.
func (r *Registry) record(i int, s Status) {
	if !r.units[i].Enabled {
		r.status[i] = NotTested
		return
	}
	r.status[i] = s
}
