// internal/fieldbus/group.go
package fieldbus

import "fmt"

// Group is a set of slaves sharing one contiguous I/O mapping and one
// expected working counter.
type Group struct {
	ID uint8

	Outputs Span
	Inputs  Span

	// Number of slaves with outputs / inputs. Fixed once mapping completes.
	OutputsWKC int
	InputsWKC  int

	// DoCheckState is set while any member slave is not OPERATIONAL.
	DoCheckState bool

	expected int
}

// NewGroup builds a group from a completed mapping. The expected WKC is
// computed here and never changes afterwards.
func NewGroup(m Mapping) *Group {
	return &Group{
		ID:         m.Group,
		Outputs:    m.Outputs,
		Inputs:     m.Inputs,
		OutputsWKC: m.OutputsWKC,
		InputsWKC:  m.InputsWKC,
		expected:   m.OutputsWKC*2 + m.InputsWKC,
	}
}

// ExpectedWKC is the working counter of a frame every member slave
// processed: each output slave counts 2 (write), each input slave 1 (read).
func (g *Group) ExpectedWKC() int { return g.expected }

// SumContributions is the working counter a frame collects when every slave
// in slaves processes it.
func SumContributions(slaves []*SlaveDescriptor) int {
	n := 0
	for _, d := range slaves {
		n += d.WKCContribution()
	}
	return n
}

func (g *Group) String() string {
	return fmt.Sprintf("group %d (O %d bytes, I %d bytes, expected wkc %d)", g.ID, g.Outputs.Len, g.Inputs.Len, g.expected)
}
