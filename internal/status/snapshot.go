// internal/status/snapshot.go
package status

// NumDomains is the number of test domains, indexed CPU, RAM, ROM.
const NumDomains = 3

// Snapshot represents exactly what the writer is allowed to deliver.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16

	DomainState [NumDomains]uint16
	Sweeps      [NumDomains]uint16

	MonitorFlags uint16
}
