// internal/fieldbus/adapter.go
package fieldbus

import "time"

// Adapter is the narrow operation set the master needs from a fieldbus stack.
// It is the only component that touches the stack's raw context.
// Calls are made from a single goroutine.
type Adapter interface {
	// Open binds the adapter to a network interface.
	Open(ifname string) error

	// Scan enumerates slaves and brings them to PRE_OP.
	Scan() ([]SlaveInfo, error)

	// MapIO maps the process data of one group into iomap, starting at
	// iomap[0]. Offsets in the result are relative to iomap. The adapter keeps
	// iomap and moves frame data through it on every Exchange.
	MapIO(group uint8, iomap []byte) (Mapping, error)

	// ConfigureClockSync sets up distributed clocks. Opaque to the master.
	ConfigureClockSync() error

	// Exchange sends the outputs of group and receives its inputs, waiting at
	// most timeout. It returns the working counter, or ErrExchangeTimeout when
	// no frame came back.
	Exchange(group uint8, timeout time.Duration) (int, error)

	// WriteState requests state on target.
	WriteState(target Target, state State) error

	// CheckState waits up to timeout for target to reach state and returns the
	// state read last. For a broadcast it is the lowest state of all slaves.
	CheckState(target Target, state State, timeout time.Duration) (State, error)

	// ReadStates refreshes the state of every slave in one batched read.
	ReadStates() ([]SlaveStatus, error)

	// ReconfigureSlave re-runs configuration of one slave. Bounded by timeout.
	ReconfigureSlave(index int, timeout time.Duration) bool

	// RecoverSlave re-addresses a lost slave. Bounded by timeout.
	RecoverSlave(index int, timeout time.Duration) bool

	// Close releases the network handle.
	Close() error
}

// SlaveStatus is one entry of a batched state read.
type SlaveStatus struct {
	Index    int
	State    State
	ALStatus uint16
}

// SlaveMapping is the placement of one slave inside a group mapping.
type SlaveMapping struct {
	Index   int
	Outputs Span
	Inputs  Span
}

// Mapping is the result of MapIO for one group.
type Mapping struct {
	Group      uint8
	Outputs    Span
	Inputs     Span
	OutputsWKC int
	InputsWKC  int
	Slaves     []SlaveMapping
}

// Size returns the number of iomap bytes the mapping occupies.
func (m Mapping) Size() int {
	end := m.Outputs.End()
	if e := m.Inputs.End(); e > end {
		end = e
	}
	return end
}

// Shift returns a copy of m with every offset moved by delta.
func (m Mapping) Shift(delta int) Mapping {
	out := m
	out.Outputs.Offset += delta
	out.Inputs.Offset += delta
	out.Slaves = make([]SlaveMapping, len(m.Slaves))
	for i, s := range m.Slaves {
		s.Outputs.Offset += delta
		s.Inputs.Offset += delta
		out.Slaves[i] = s
	}
	return out
}
