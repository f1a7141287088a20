// internal/sim/segment.go
package sim

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

var errNotOpen = errors.New("sim: segment not open")

// groupMap is where a group's process data lives in the master's image.
type groupMap struct {
	iomap  []byte
	slaves []*slave
}

// Segment is an in-process network segment. A frame passes every slave of
// a group in order; each answering slave adds its working counter share.
//
// Opening the segment powers every slave on again, so a closed segment can
// be brought up from scratch.
type Segment struct {
	mu sync.Mutex

	specs  []SlaveSpec
	slaves []*slave
	groups map[uint8]*groupMap

	open   bool
	cycle  uint64
	dc     bool
	ifname string
}

// NewSegment builds a segment with one slave per spec, in wiring order.
func NewSegment(specs []SlaveSpec) *Segment {
	seg := &Segment{specs: append([]SlaveSpec(nil), specs...)}
	seg.reset()
	return seg
}

func (seg *Segment) reset() {
	seg.slaves = make([]*slave, len(seg.specs))
	for i, sp := range seg.specs {
		seg.slaves[i] = newSlave(i+1, sp)
	}
	seg.groups = make(map[uint8]*groupMap)
	seg.cycle = 0
	seg.dc = false
}

// Cycle returns the number of exchanges since Open.
func (seg *Segment) Cycle() uint64 {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	return seg.cycle
}

// ClockSync reports whether distributed clocks were configured.
func (seg *Segment) ClockSync() bool {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	return seg.dc
}

// Inject applies a fault to slave index right away.
func (seg *Segment) Inject(index int, f Fault) error {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	sl, err := seg.slave(index)
	if err != nil {
		return err
	}
	sl.apply(f)
	return nil
}

// ---- fieldbus.Adapter ----

func (seg *Segment) Open(ifname string) error {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if seg.open {
		return fmt.Errorf("sim: %s already open", seg.ifname)
	}
	seg.reset()
	seg.open = true
	seg.ifname = ifname
	return nil
}

func (seg *Segment) Scan() ([]fieldbus.SlaveInfo, error) {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if !seg.open {
		return nil, errNotOpen
	}
	var out []fieldbus.SlaveInfo
	for _, sl := range seg.slaves {
		if !sl.answering() {
			break
		}
		// configuration leaves every slave in PRE_OP
		sl.state = fieldbus.StatePreOp
		out = append(out, sl.info())
	}
	return out, nil
}

func (seg *Segment) MapIO(group uint8, iomap []byte) (fieldbus.Mapping, error) {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if !seg.open {
		return fieldbus.Mapping{}, errNotOpen
	}

	var members []*slave
	for _, sl := range seg.slaves {
		if sl.spec.Group == group {
			members = append(members, sl)
		}
	}
	if len(members) == 0 {
		return fieldbus.Mapping{}, fmt.Errorf("sim: group %d has no slaves", group)
	}

	m := fieldbus.Mapping{Group: group}
	offset := 0

	// outputs of every slave first, then inputs
	for _, sl := range members {
		sl.out = fieldbus.Span{Offset: offset, Len: sl.spec.OutputBytes}
		offset += sl.spec.OutputBytes
		if sl.spec.OutputBytes > 0 {
			m.OutputsWKC++
		}
	}
	m.Outputs = fieldbus.Span{Offset: 0, Len: offset}
	inStart := offset
	for _, sl := range members {
		sl.in = fieldbus.Span{Offset: offset, Len: sl.spec.InputBytes}
		offset += sl.spec.InputBytes
		if sl.spec.InputBytes > 0 {
			m.InputsWKC++
		}
	}
	m.Inputs = fieldbus.Span{Offset: inStart, Len: offset - inStart}

	if offset > len(iomap) {
		return fieldbus.Mapping{}, fmt.Errorf("sim: group %d needs %d bytes, iomap has %d", group, offset, len(iomap))
	}

	for _, sl := range members {
		m.Slaves = append(m.Slaves, fieldbus.SlaveMapping{
			Index:   sl.index,
			Outputs: sl.out,
			Inputs:  sl.in,
		})
	}
	seg.groups[group] = &groupMap{iomap: iomap[:offset], slaves: members}
	return m, nil
}

func (seg *Segment) ConfigureClockSync() error {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if !seg.open {
		return errNotOpen
	}
	seg.dc = true
	return nil
}

// Exchange runs one frame round for group. Scripted faults due at this
// cycle fire before the frame leaves.
func (seg *Segment) Exchange(group uint8, timeout time.Duration) (int, error) {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if !seg.open {
		return 0, errNotOpen
	}
	gm, ok := seg.groups[group]
	if !ok {
		return 0, fmt.Errorf("sim: group %d not mapped", group)
	}

	seg.cycle++
	seg.fireFaults()

	wkc := 0
	anyPresent := false
	for _, sl := range gm.slaves {
		if sl.present {
			anyPresent = true
		}
		sl.poll()
		wkc += sl.process(gm.iomap)
	}
	if !anyPresent {
		return 0, fmt.Errorf("%w: no frame returned within %s", fieldbus.ErrExchangeTimeout, timeout)
	}
	return wkc, nil
}

func (seg *Segment) WriteState(target fieldbus.Target, st fieldbus.State) error {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if !seg.open {
		return errNotOpen
	}
	if target.IsBroadcast() {
		for _, sl := range seg.slaves {
			sl.request(st)
		}
		return nil
	}
	sl, err := seg.slave(target.Index())
	if err != nil {
		return err
	}
	sl.request(st)
	return nil
}

// CheckState polls the target once and returns the lowest state seen.
// Pending state changes advance by one step per call.
func (seg *Segment) CheckState(target fieldbus.Target, st fieldbus.State, timeout time.Duration) (fieldbus.State, error) {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if !seg.open {
		return fieldbus.StateNone, errNotOpen
	}
	if !target.IsBroadcast() {
		sl, err := seg.slave(target.Index())
		if err != nil {
			return fieldbus.StateNone, err
		}
		sl.poll()
		return sl.observed(), nil
	}

	lowest := fieldbus.StateOp
	for _, sl := range seg.slaves {
		sl.poll()
		obs := sl.observed()
		if obs.Base() < lowest.Base() || (obs.Base() == lowest.Base() && obs.HasError()) {
			lowest = obs
		}
	}
	return lowest, nil
}

func (seg *Segment) ReadStates() ([]fieldbus.SlaveStatus, error) {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if !seg.open {
		return nil, errNotOpen
	}
	out := make([]fieldbus.SlaveStatus, 0, len(seg.slaves))
	for _, sl := range seg.slaves {
		st := fieldbus.SlaveStatus{Index: sl.index, State: sl.observed()}
		if sl.answering() {
			st.ALStatus = sl.al
		}
		out = append(out, st)
	}
	return out, nil
}

// ReconfigureSlave rewrites the mapping of an answering slave and brings it
// to SAFE_OP.
func (seg *Segment) ReconfigureSlave(index int, timeout time.Duration) bool {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	sl, err := seg.slave(index)
	if err != nil || !seg.open || !sl.answering() {
		return false
	}
	sl.state = fieldbus.StateSafeOp
	sl.al = 0
	sl.waiting = false
	return true
}

// RecoverSlave gives a returned slave its configured address back.
func (seg *Segment) RecoverSlave(index int, timeout time.Duration) bool {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	sl, err := seg.slave(index)
	if err != nil || !seg.open || !sl.present {
		return false
	}
	sl.addressed = true
	sl.state = fieldbus.StateInit
	return true
}

func (seg *Segment) Close() error {
	seg.mu.Lock()
	defer seg.mu.Unlock()
	if !seg.open {
		return errNotOpen
	}
	seg.open = false
	return nil
}

// ---- internals ----

func (seg *Segment) slave(index int) (*slave, error) {
	if index < 1 || index > len(seg.slaves) {
		return nil, fmt.Errorf("%w: %d", fieldbus.ErrUnknownSlave, index)
	}
	return seg.slaves[index-1], nil
}

func (seg *Segment) fireFaults() {
	type due struct {
		sl *slave
		f  Fault
	}
	var fire []due
	for _, sl := range seg.slaves {
		for _, f := range sl.spec.Faults {
			if f.AtCycle == seg.cycle {
				fire = append(fire, due{sl, f})
			}
		}
	}
	sort.SliceStable(fire, func(i, j int) bool { return fire[i].sl.index < fire[j].sl.index })
	for _, d := range fire {
		d.sl.apply(d.f)
	}
}

var _ fieldbus.Adapter = (*Segment)(nil)
