// internal/master/fake_adapter_test.go
package master

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

type fakeSlave struct {
	info  fieldbus.SlaveInfo
	out   int
	in    int
	state fieldbus.State
	al    uint16

	// stuck caps the state the slave can reach while set
	stuck    fieldbus.State
	hasStuck bool
}

// fakeAdapter is a scripted fieldbus.Adapter. State changes requested by
// WriteState apply immediately; CheckState(OP) on the broadcast target
// completes the transition after opPollsNeeded checks.
type fakeAdapter struct {
	openErr error
	scanErr error
	mapErr  error
	slaves  []*fakeSlave

	// wkcSkew is added to the output count MapIO reports
	wkcSkew int

	opPollsNeeded int
	wkcs          []int // scripted working counters, consumed per exchange
	exchangeErr   error
	opCheckErr    error // returned by every broadcast OP check
	reconfigureOK bool
	recoverOK     bool

	// unstickOnOpen clears stuck slaves once Open was called this many times
	unstickOnOpen int

	opens, closes, scans, maps int
	exchanges, readStates      int
	reconfigures, recovers     int
	opChecks                   int
	calls                      []string
}

func newFakeAdapter(slaves ...*fakeSlave) *fakeAdapter {
	for i, s := range slaves {
		s.info.Index = i + 1
		if s.info.Name == "" {
			s.info.Name = fmt.Sprintf("FAKE-%d", i+1)
		}
		if s.state == fieldbus.StateNone {
			s.state = fieldbus.StateInit
		}
	}
	return &fakeAdapter{slaves: slaves, opPollsNeeded: 1}
}

func slave(out, in int) *fakeSlave { return &fakeSlave{out: out, in: in} }

func (f *fakeAdapter) Open(ifname string) error {
	f.opens++
	f.calls = append(f.calls, "open")
	if f.openErr != nil {
		return f.openErr
	}
	if f.unstickOnOpen > 0 && f.opens >= f.unstickOnOpen {
		for _, s := range f.slaves {
			s.hasStuck = false
		}
	}
	f.opChecks = 0
	return nil
}

func (f *fakeAdapter) Scan() ([]fieldbus.SlaveInfo, error) {
	f.scans++
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	out := make([]fieldbus.SlaveInfo, 0, len(f.slaves))
	for _, s := range f.slaves {
		if s.state < fieldbus.StatePreOp {
			s.set(fieldbus.StatePreOp)
		}
		out = append(out, s.info)
	}
	return out, nil
}

func (f *fakeAdapter) MapIO(group uint8, iomap []byte) (fieldbus.Mapping, error) {
	f.maps++
	if f.mapErr != nil {
		return fieldbus.Mapping{}, f.mapErr
	}
	m := fieldbus.Mapping{Group: group}
	off := 0
	var members []*fakeSlave
	for _, s := range f.slaves {
		if s.info.Group == group {
			members = append(members, s)
		}
	}
	sm := make(map[int]*fieldbus.SlaveMapping)
	for _, s := range members {
		sm[s.info.Index] = &fieldbus.SlaveMapping{Index: s.info.Index}
		sm[s.info.Index].Outputs = fieldbus.Span{Offset: off, Len: s.out}
		off += s.out
		if s.out > 0 {
			m.OutputsWKC++
		}
	}
	m.Outputs = fieldbus.Span{Offset: 0, Len: off}
	inStart := off
	for _, s := range members {
		sm[s.info.Index].Inputs = fieldbus.Span{Offset: off, Len: s.in}
		off += s.in
		if s.in > 0 {
			m.InputsWKC++
		}
	}
	m.Inputs = fieldbus.Span{Offset: inStart, Len: off - inStart}
	m.OutputsWKC += f.wkcSkew
	if off > len(iomap) {
		return fieldbus.Mapping{}, errors.New("iomap too small")
	}
	for _, s := range members {
		m.Slaves = append(m.Slaves, *sm[s.info.Index])
	}
	return m, nil
}

func (f *fakeAdapter) ConfigureClockSync() error { return nil }

func (f *fakeAdapter) Exchange(group uint8, timeout time.Duration) (int, error) {
	f.exchanges++
	if f.exchangeErr != nil {
		return 0, f.exchangeErr
	}
	if len(f.wkcs) > 0 {
		w := f.wkcs[0]
		f.wkcs = f.wkcs[1:]
		return w, nil
	}
	wkc := 0
	for _, s := range f.slaves {
		if s.info.Group != group {
			continue
		}
		switch s.state {
		case fieldbus.StateOp:
			if s.out > 0 {
				wkc += 2
			}
			if s.in > 0 {
				wkc++
			}
		case fieldbus.StateSafeOp, fieldbus.StateSafeOpError:
			if s.in > 0 {
				wkc++
			}
		}
	}
	return wkc, nil
}

func (f *fakeAdapter) WriteState(target fieldbus.Target, state fieldbus.State) error {
	f.calls = append(f.calls, fmt.Sprintf("write %s %s", target, state))
	if target.IsBroadcast() {
		if state == fieldbus.StateOp {
			// completed by CheckState polling
			return nil
		}
		for _, s := range f.slaves {
			if s.state != fieldbus.StateNone {
				s.set(state)
			}
		}
		return nil
	}
	s := f.slaves[target.Index()-1]
	switch state {
	case fieldbus.StateSafeOpAck:
		s.set(fieldbus.StateSafeOp)
		s.al = 0
	default:
		s.set(state)
	}
	return nil
}

func (f *fakeAdapter) CheckState(target fieldbus.Target, state fieldbus.State, timeout time.Duration) (fieldbus.State, error) {
	if !target.IsBroadcast() {
		f.calls = append(f.calls, fmt.Sprintf("check %s", target))
		return f.slaves[target.Index()-1].state, nil
	}
	if state == fieldbus.StateOp {
		f.opChecks++
		if f.opCheckErr != nil {
			return fieldbus.StateNone, f.opCheckErr
		}
		if f.opChecks >= f.opPollsNeeded {
			for _, s := range f.slaves {
				if s.state != fieldbus.StateNone {
					s.set(fieldbus.StateOp)
				}
			}
		}
	}
	return f.lowest(), nil
}

func (f *fakeAdapter) ReadStates() ([]fieldbus.SlaveStatus, error) {
	f.readStates++
	out := make([]fieldbus.SlaveStatus, 0, len(f.slaves))
	for _, s := range f.slaves {
		out = append(out, fieldbus.SlaveStatus{Index: s.info.Index, State: s.state, ALStatus: s.al})
	}
	return out, nil
}

func (f *fakeAdapter) ReconfigureSlave(index int, timeout time.Duration) bool {
	f.reconfigures++
	f.calls = append(f.calls, fmt.Sprintf("reconfigure %d", index))
	return f.reconfigureOK
}

func (f *fakeAdapter) RecoverSlave(index int, timeout time.Duration) bool {
	f.recovers++
	f.calls = append(f.calls, fmt.Sprintf("recover %d", index))
	return f.recoverOK
}

func (f *fakeAdapter) Close() error {
	f.closes++
	f.calls = append(f.calls, "close")
	return nil
}

func (f *fakeAdapter) lowest() fieldbus.State {
	low := fieldbus.StateOp
	for _, s := range f.slaves {
		if s.state.Base() < low.Base() || (s.state.Base() == low.Base() && s.state.HasError()) {
			low = s.state
		}
	}
	return low
}

func (f *fakeAdapter) called(call string) bool {
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeAdapter) indexOf(call string) int {
	for i, c := range f.calls {
		if c == call {
			return i
		}
	}
	return -1
}

func (s *fakeSlave) set(state fieldbus.State) {
	if s.hasStuck && state.Base() > s.stuck.Base() {
		s.state = s.stuck
		return
	}
	s.state = state
}

var _ fieldbus.Adapter = (*fakeAdapter)(nil)
