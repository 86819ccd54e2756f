// internal/status/encode.go
package status

// Encode converts a Snapshot into a full status block.
// Layout is protocol-locked. The device name slots are left zero.
// No IO. No side effects.
func Encode(s Snapshot) []uint16 {
	regs := make([]uint16, SlotsPerDevice)

	regs[SlotHealthCode] = s.Health
	regs[SlotLastErrorCode] = s.LastErrorCode
	regs[SlotSecondsInError] = s.SecondsInError

	for i := 0; i < NumDomains; i++ {
		regs[SlotDomainStateStart+i] = s.DomainState[i]
		regs[SlotSweepsStart+i] = s.Sweeps[i]
	}

	regs[SlotMonitorFlags] = s.MonitorFlags

	return regs
}
