// internal/master/lifecycle.go
package master

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/ecat-master/internal/eventlog"
	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

// operationalPolls is the number of exchange+check rounds spent waiting for
// OPERATIONAL after the request.
const operationalPolls = 10

// SlaveDiagnostic is the state of one slave that did not reach OPERATIONAL.
type SlaveDiagnostic struct {
	Index    int
	Name     string
	State    fieldbus.State
	ALStatus uint16
}

// OperationalTimeoutError is returned by BringUp when OPERATIONAL was not
// reached within the poll budget. It lists every slave that lags behind.
type OperationalTimeoutError struct {
	Lowest fieldbus.State
	Slaves []SlaveDiagnostic
}

func (e *OperationalTimeoutError) Error() string {
	parts := make([]string, 0, len(e.Slaves))
	for _, d := range e.Slaves {
		parts = append(parts, fmt.Sprintf("%d:%s al=0x%04x", d.Index, d.State, d.ALStatus))
	}
	return fmt.Sprintf("%v (lowest %s) [%s]", fieldbus.ErrOperationalTimeout, e.Lowest, strings.Join(parts, ", "))
}

func (e *OperationalTimeoutError) Unwrap() error { return fieldbus.ErrOperationalTimeout }

// BringUp drives the network on ifname from discovery to OPERATIONAL.
//
// It returns a usable session or an error, never both. On any error after
// the network was opened, the handle is closed before returning. After an
// OperationalTimeout the slaves are left in whatever state they reached.
func BringUp(a fieldbus.Adapter, ifname string, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	log := opts.Logger.With("interface", ifname)

	// --------------------
	// Open
	// --------------------

	log.Info("opening network")
	if err := a.Open(ifname); err != nil {
		log.Error("no socket connection", "err", err)
		return nil, fmt.Errorf("%w: %s: %v", fieldbus.ErrAdapterUnavailable, ifname, err)
	}

	s := newSession(a, ifname, opts)
	fail := func(err error) (*Session, error) {
		s.record(eventlog.Event{Kind: eventlog.KindBringUpFailed, Detail: err.Error()})
		if cerr := a.Close(); cerr != nil {
			s.log.Warn("close after failed bring-up", "err", cerr)
		}
		s.closed = true
		return nil, err
	}

	// --------------------
	// Scan
	// --------------------

	s.log.Info("finding slaves")
	infos, err := a.Scan()
	if err != nil {
		return fail(fmt.Errorf("%w: %v", fieldbus.ErrNoSlavesFound, err))
	}
	if len(infos) == 0 {
		s.log.Error("no slaves found")
		return fail(fieldbus.ErrNoSlavesFound)
	}
	s.log.Info("slaves found", "count", len(infos))
	for _, in := range infos {
		s.log.Info("slave",
			"slave", in.Index,
			"name", in.Name,
			"vendor", fmt.Sprintf("0x%08x", in.VendorID),
			"product", fmt.Sprintf("0x%08x", in.ProductID),
			"revision", fmt.Sprintf("0x%08x", in.Revision),
			"group", in.Group,
		)
	}

	// --------------------
	// Map
	// --------------------

	s.log.Info("mapping process data")
	reg, err := fieldbus.NewRegistry(infos)
	if err != nil {
		return fail(fmt.Errorf("%w: %v", fieldbus.ErrMappingFailure, err))
	}
	img := fieldbus.NewProcessImage(opts.IOMapBytes)
	groups, err := mapGroups(a, reg, img)
	if err != nil {
		return fail(err)
	}
	s.registry = reg
	s.image = img
	s.groups = groups
	for _, g := range groups {
		s.log.Info("group mapped",
			"group", g.ID,
			"outputs", g.Outputs.Len,
			"inputs", g.Inputs.Len,
			"expected_wkc", g.ExpectedWKC(),
		)
	}

	// --------------------
	// Distributed clocks
	// --------------------

	s.log.Info("configuring distributed clocks")
	if err := a.ConfigureClockSync(); err != nil {
		s.log.Warn("distributed clock configuration failed", "err", err)
	}

	// --------------------
	// SAFE_OP
	// --------------------

	s.log.Info("waiting for all slaves in SAFE_OP")
	if err := a.WriteState(fieldbus.Broadcast(), fieldbus.StateSafeOp); err != nil {
		s.log.Warn("SAFE_OP request failed", "err", err)
	}
	st, err := a.CheckState(fieldbus.Broadcast(), fieldbus.StateSafeOp, 4*s.timing.StateTimeout)
	if err != nil || st != fieldbus.StateSafeOp {
		s.log.Warn("not all slaves reached SAFE_OP", "state", st.String(), "err", err)
	}

	// Outputs must hold valid data before OPERATIONAL is requested.
	s.log.Debug("priming outputs with one exchange")
	s.exchangeAll()

	// --------------------
	// OPERATIONAL
	// --------------------

	s.log.Info("requesting OPERATIONAL")
	if err := a.WriteState(fieldbus.Broadcast(), fieldbus.StateOp); err != nil {
		s.log.Warn("OPERATIONAL request failed", "err", err)
	}

	for i := 0; i < operationalPolls; i++ {
		s.exchangeAll()
		st, err = a.CheckState(fieldbus.Broadcast(), fieldbus.StateOp, s.timing.StateTimeout/operationalPolls)
		if err == nil && st == fieldbus.StateOp {
			s.refreshStates()
			s.log.Info("all slaves operational", "polls", i+1)
			s.record(eventlog.Event{Kind: eventlog.KindBringUp, State: uint16(st)})
			return s, nil
		}
	}

	// Surface the per-slave picture before giving up.
	s.refreshStates()
	terr := &OperationalTimeoutError{Lowest: lowestState(reg.All())}
	for _, d := range reg.All() {
		if d.State.IsOperational() {
			continue
		}
		terr.Slaves = append(terr.Slaves, SlaveDiagnostic{
			Index:    d.Index,
			Name:     d.Name,
			State:    d.State,
			ALStatus: d.ALStatus,
		})
		s.log.Error("slave not operational",
			"slave", d.Index,
			"name", d.Name,
			"state", d.State.String(),
			"al_status", fmt.Sprintf("0x%04x", d.ALStatus),
		)
	}
	s.log.Error("failed to reach OPERATIONAL", "lowest", terr.Lowest.String())
	return fail(terr)
}

// BringUpWithRetry calls BringUp up to retries+1 times. Only an
// OperationalTimeout is retried; every other error is returned at once.
func BringUpWithRetry(a fieldbus.Adapter, ifname string, opts Options, retries int) (*Session, error) {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		var s *Session
		s, err = BringUp(a, ifname, opts)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, fieldbus.ErrOperationalTimeout) {
			return nil, err
		}
		if attempt < retries && opts.Logger != nil {
			opts.Logger.Warn("retrying bring-up", "attempt", attempt+2, "of", retries+1)
		}
	}
	return nil, err
}

// ShutDown requests INIT on every slave and closes the network handle.
// It is best effort: errors are logged, and the handle is always released.
func (s *Session) ShutDown() {
	if s.closed {
		return
	}
	s.closed = true

	s.log.Info("requesting INIT on all slaves")
	if err := s.adapter.WriteState(fieldbus.Broadcast(), fieldbus.StateInit); err != nil {
		s.log.Warn("INIT request failed", "err", err)
	}

	s.log.Info("closing network")
	if err := s.adapter.Close(); err != nil {
		s.log.Warn("close failed", "err", err)
	}
	s.record(eventlog.Event{Kind: eventlog.KindShutdown})
}

// Closed reports whether the network handle was released.
func (s *Session) Closed() bool { return s.closed }

// mapGroups maps every group the scan reported, back to back in img.
// Offsets in the result are absolute image offsets.
func mapGroups(a fieldbus.Adapter, reg *fieldbus.Registry, img *fieldbus.ProcessImage) ([]*fieldbus.Group, error) {
	var groups []*fieldbus.Group
	raw := img.Raw()
	offset := 0
	mapped := 0

	for _, gid := range reg.GroupIDs() {
		m, err := a.MapIO(gid, raw[offset:])
		if err != nil {
			return nil, fmt.Errorf("%w: group %d: %v", fieldbus.ErrMappingFailure, gid, err)
		}
		if m.Group != gid {
			return nil, fmt.Errorf("%w: group %d: adapter mapped group %d", fieldbus.ErrMappingFailure, gid, m.Group)
		}
		size := m.Size()
		if size > len(raw)-offset {
			return nil, fmt.Errorf("%w: group %d needs %d bytes, %d left in image",
				fieldbus.ErrMappingFailure, gid, size, len(raw)-offset)
		}

		m = m.Shift(offset)
		for _, sm := range m.Slaves {
			d, err := reg.Get(sm.Index)
			if err != nil {
				return nil, fmt.Errorf("%w: group %d: %v", fieldbus.ErrMappingFailure, gid, err)
			}
			if d.Group != gid {
				return nil, fmt.Errorf("%w: slave %d belongs to group %d, mapped in %d",
					fieldbus.ErrMappingFailure, sm.Index, d.Group, gid)
			}
			d.Outputs = sm.Outputs
			d.Inputs = sm.Inputs
			mapped++
		}

		g := fieldbus.NewGroup(m)
		if want := fieldbus.SumContributions(reg.InGroup(gid)); g.ExpectedWKC() != want {
			return nil, fmt.Errorf("%w: group %d: adapter reports expected wkc %d, slaves contribute %d",
				fieldbus.ErrMappingFailure, gid, g.ExpectedWKC(), want)
		}

		groups = append(groups, g)
		offset += size
	}

	if mapped != reg.Len() {
		return nil, fmt.Errorf("%w: %d of %d slaves mapped", fieldbus.ErrMappingFailure, mapped, reg.Len())
	}
	return groups, nil
}

// lowestState is the lowest state among slaves, an error flag winning a tie.
func lowestState(slaves []*fieldbus.SlaveDescriptor) fieldbus.State {
	if len(slaves) == 0 {
		return fieldbus.StateNone
	}
	low := slaves[0].State
	for _, d := range slaves[1:] {
		b, lb := d.State.Base(), low.Base()
		if b < lb || (b == lb && d.State.HasError()) {
			low = d.State
		}
	}
	return low
}

func (s *Session) exchangeAll() {
	for _, g := range s.groups {
		s.Exchange(g)
	}
}

func (s *Session) refreshStates() {
	states, err := s.adapter.ReadStates()
	if err != nil {
		s.log.Warn("state read failed", "err", err)
		return
	}
	s.registry.ApplyStates(states)
}
