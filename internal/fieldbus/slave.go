// internal/fieldbus/slave.go
package fieldbus

import (
	"fmt"
	"sort"
)

// SlaveInfo is the identity of one slave as reported by the scan.
type SlaveInfo struct {
	Index     int
	Name      string
	VendorID  uint32
	ProductID uint32
	Revision  uint32
	Group     uint8
}

// SlaveDescriptor is the master-side record for one slave.
type SlaveDescriptor struct {
	SlaveInfo

	// Process image placement, absolute offsets. Zero length when the slave
	// has no data in that direction.
	Outputs Span
	Inputs  Span

	State    State
	ALStatus uint16
	Lost     bool
}

// WKCContribution is what this slave adds to the working counter of a
// read/write frame when it processes it: 2 for a write, 1 for a read.
func (d *SlaveDescriptor) WKCContribution() int {
	n := 0
	if d.Outputs.Len > 0 {
		n += 2
	}
	if d.Inputs.Len > 0 {
		n++
	}
	return n
}

// MarkLost sets the lost flag. It only takes effect when the state reads NONE.
func (d *SlaveDescriptor) MarkLost() bool {
	if !d.State.IsNone() {
		return false
	}
	d.Lost = true
	return true
}

// ClearLost clears the lost flag.
func (d *SlaveDescriptor) ClearLost() { d.Lost = false }

func (d *SlaveDescriptor) String() string {
	return fmt.Sprintf("slave %d (%s)", d.Index, d.Name)
}

// Registry holds the descriptors of all discovered slaves, indexed 1..N.
type Registry struct {
	slaves []*SlaveDescriptor
}

// NewRegistry builds a registry from scan results. Indices must be 1..N
// without gaps.
func NewRegistry(infos []SlaveInfo) (*Registry, error) {
	r := &Registry{slaves: make([]*SlaveDescriptor, len(infos))}
	for _, in := range infos {
		if in.Index < 1 || in.Index > len(infos) {
			return nil, fmt.Errorf("registry: slave index %d outside 1..%d", in.Index, len(infos))
		}
		if r.slaves[in.Index-1] != nil {
			return nil, fmt.Errorf("registry: duplicate slave index %d", in.Index)
		}
		r.slaves[in.Index-1] = &SlaveDescriptor{SlaveInfo: in}
	}
	return r, nil
}

// Len returns the number of slaves.
func (r *Registry) Len() int { return len(r.slaves) }

// Get returns the descriptor of slave index (1..N).
func (r *Registry) Get(index int) (*SlaveDescriptor, error) {
	if index < 1 || index > len(r.slaves) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSlave, index)
	}
	return r.slaves[index-1], nil
}

// All returns every descriptor in index order.
func (r *Registry) All() []*SlaveDescriptor { return r.slaves }

// InGroup returns the descriptors of one group in index order.
func (r *Registry) InGroup(group uint8) []*SlaveDescriptor {
	var out []*SlaveDescriptor
	for _, s := range r.slaves {
		if s.Group == group {
			out = append(out, s)
		}
	}
	return out
}

// GroupIDs returns the distinct group ids in ascending order.
func (r *Registry) GroupIDs() []uint8 {
	seen := map[uint8]struct{}{}
	var ids []uint8
	for _, s := range r.slaves {
		if _, ok := seen[s.Group]; ok {
			continue
		}
		seen[s.Group] = struct{}{}
		ids = append(ids, s.Group)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ApplyStates copies a batched state read into the registry.
func (r *Registry) ApplyStates(states []SlaveStatus) {
	for _, st := range states {
		if d, err := r.Get(st.Index); err == nil {
			d.State = st.State
			d.ALStatus = st.ALStatus
		}
	}
}
