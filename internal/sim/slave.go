// internal/sim/slave.go
package sim

import (
	"fmt"

	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

// ALCodeSyncWatchdog is the AL status code an injected error reports when
// the fault does not name one.
const ALCodeSyncWatchdog uint16 = 0x001B

// FaultKind is what happens to a slave at a scripted cycle.
type FaultKind uint8

const (
	// FaultDrop removes the slave from the segment. It stops answering.
	FaultDrop FaultKind = iota + 1
	// FaultError raises the error flag with an AL status code.
	FaultError
	// FaultReturn plugs a dropped slave back in. It answers again but has
	// lost its configured address until it is recovered.
	FaultReturn
)

func (k FaultKind) String() string {
	switch k {
	case FaultDrop:
		return "drop"
	case FaultError:
		return "error"
	case FaultReturn:
		return "return"
	default:
		return "unknown"
	}
}

// ParseFaultKind maps a config name to a FaultKind.
func ParseFaultKind(s string) (FaultKind, error) {
	switch s {
	case "drop":
		return FaultDrop, nil
	case "error":
		return FaultError, nil
	case "return":
		return FaultReturn, nil
	default:
		return 0, fmt.Errorf("unknown fault kind %q", s)
	}
}

// Fault fires once when the segment runs its AtCycle-th exchange.
type Fault struct {
	AtCycle uint64
	Kind    FaultKind
	ALCode  uint16
}

// SlaveSpec describes one simulated slave.
type SlaveSpec struct {
	Name      string
	VendorID  uint32
	ProductID uint32
	Revision  uint32
	Group     uint8

	OutputBytes int
	InputBytes  int

	// DelayCycles is how many polls a requested state change takes.
	DelayCycles int

	Faults []Fault
}

// slave is the runtime model of one device on the segment.
type slave struct {
	spec  SlaveSpec
	index int

	present   bool
	addressed bool

	state fieldbus.State
	al    uint16

	pending   fieldbus.State
	remaining int
	waiting   bool

	out     fieldbus.Span // relative to the group iomap
	in      fieldbus.Span
	counter byte
}

func newSlave(index int, spec SlaveSpec) *slave {
	s := &slave{spec: spec, index: index}
	s.powerOn()
	return s
}

func (s *slave) powerOn() {
	s.present = true
	s.addressed = true
	s.state = fieldbus.StateInit
	s.al = 0
	s.waiting = false
	s.counter = 0
}

func (s *slave) info() fieldbus.SlaveInfo {
	return fieldbus.SlaveInfo{
		Index:     s.index,
		Name:      s.spec.Name,
		VendorID:  s.spec.VendorID,
		ProductID: s.spec.ProductID,
		Revision:  s.spec.Revision,
		Group:     s.spec.Group,
	}
}

// answering reports whether the slave processes datagrams addressed to it.
func (s *slave) answering() bool { return s.present && s.addressed }

// observed is the state the master reads. A slave that does not answer
// reads as NONE.
func (s *slave) observed() fieldbus.State {
	if !s.answering() {
		return fieldbus.StateNone
	}
	return s.state
}

// request handles an AL control write.
func (s *slave) request(st fieldbus.State) {
	if !s.answering() {
		return
	}

	// acknowledge: clear the error, stay in the current state
	if st.HasError() {
		if s.state.HasError() && st.Base() == s.state.Base() {
			s.state = s.state.Base()
			s.al = 0
		}
		return
	}

	// an unacknowledged error only allows falling back
	if s.state.HasError() && st >= s.state.Base() {
		return
	}

	if s.spec.DelayCycles <= 0 {
		s.state = st
		s.waiting = false
		return
	}
	s.pending = st
	s.remaining = s.spec.DelayCycles
	s.waiting = true
}

// poll advances a pending state change by one step.
func (s *slave) poll() {
	if !s.waiting || !s.answering() {
		return
	}
	s.remaining--
	if s.remaining > 0 {
		return
	}
	s.waiting = false
	if s.state.HasError() && s.pending >= s.state.Base() {
		return
	}
	s.state = s.pending
}

func (s *slave) apply(f Fault) {
	switch f.Kind {
	case FaultDrop:
		s.present = false
		s.waiting = false
	case FaultError:
		if !s.answering() {
			return
		}
		code := f.ALCode
		if code == 0 {
			code = ALCodeSyncWatchdog
		}
		// the device falls back to SAFE_OP with the error flag
		base := s.state.Base()
		if base > fieldbus.StateSafeOp {
			base = fieldbus.StateSafeOp
		}
		s.state = base | fieldbus.StateError
		s.al = code
		s.waiting = false
	case FaultReturn:
		if s.present {
			return
		}
		s.present = true
		s.addressed = false
		s.state = fieldbus.StateInit
		s.al = 0
	}
}

// process is the slave's share of one frame: read its outputs, write its
// inputs and return its working counter contribution.
func (s *slave) process(iomap []byte) int {
	if !s.answering() {
		return 0
	}
	wkc := 0
	base := s.state.Base()

	if s.out.Len > 0 && base == fieldbus.StateOp {
		wkc += 2
	}
	if s.in.Len > 0 && (base == fieldbus.StateSafeOp || base == fieldbus.StateOp) {
		s.counter++
		in := iomap[s.in.Offset:s.in.End()]
		if s.out.Len > 0 {
			out := iomap[s.out.Offset:s.out.End()]
			for i := range in {
				in[i] = out[i%len(out)]
			}
		} else {
			for i := range in {
				in[i] = s.counter
			}
		}
		wkc++
	}
	return wkc
}
