// internal/fieldbus/state.go
package fieldbus

import "fmt"

// State is the AL (application layer) state of a slave as reported by the
// network. The low nibble is the state, bit 4 is the error/ack flag.
type State uint16

const (
	StateNone   State = 0x00
	StateInit   State = 0x01
	StatePreOp  State = 0x02
	StateBoot   State = 0x03
	StateSafeOp State = 0x04
	StateOp     State = 0x08

	// StateError is set by the slave together with its current state.
	// Written by the master it acknowledges the error (same bit).
	StateError State = 0x10
	StateAck   State = 0x10

	StateSafeOpError = StateSafeOp | StateError
	StateSafeOpAck   = StateSafeOp | StateAck
)

// Base returns the state without the error flag.
func (s State) Base() State { return s &^ StateError }

// HasError reports whether the error flag is set.
func (s State) HasError() bool { return s&StateError != 0 }

// IsNone reports whether the slave did not answer (lost).
func (s State) IsNone() bool { return s == StateNone }

// IsOperational reports a clean OPERATIONAL state.
func (s State) IsOperational() bool { return s == StateOp }

func (s State) String() string {
	var name string
	switch s.Base() {
	case StateNone:
		name = "NONE"
	case StateInit:
		name = "INIT"
	case StatePreOp:
		name = "PRE_OP"
	case StateBoot:
		name = "BOOT"
	case StateSafeOp:
		name = "SAFE_OP"
	case StateOp:
		name = "OPERATIONAL"
	default:
		name = fmt.Sprintf("0x%02x", uint16(s.Base()))
	}
	if s.HasError() {
		return name + "+ERROR"
	}
	return name
}
