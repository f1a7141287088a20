// internal/status/snapshot.go
package status

import "github.com/tamzrod/ecat-master/internal/fieldbus"

// Snapshot represents exactly what the writer is allowed to deliver for one slave.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
	ALState        uint16
	Lost           bool
}

// FromSlave derives the live part of a snapshot from a slave record.
// SecondsInError is owned by the publisher and left at zero.
func FromSlave(d fieldbus.SlaveDescriptor) Snapshot {
	return Snapshot{
		Health:        healthOf(d),
		LastErrorCode: d.ALStatus,
		ALState:       uint16(d.State),
		Lost:          d.Lost,
	}
}

func healthOf(d fieldbus.SlaveDescriptor) uint16 {
	switch {
	case d.Lost, d.State.HasError(), d.State.IsNone():
		return HealthError
	case d.State.IsOperational():
		return HealthOK
	default:
		return HealthStale
	}
}
