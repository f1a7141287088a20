// internal/sim/build.go
package sim

import (
	"fmt"

	"github.com/tamzrod/ecat-master/internal/config"
)

// beckhoff is the vendor id of the default segment devices.
const beckhoff uint32 = 0x00000002

// DefaultSlaves is the segment used when the config lists no slaves:
// a bus coupler, an 8 channel digital output and an 8 channel digital input.
func DefaultSlaves() []SlaveSpec {
	return []SlaveSpec{
		{Name: "EK1100", VendorID: beckhoff, ProductID: 0x044c2c52, Revision: 0x00110000},
		{Name: "EL2008", VendorID: beckhoff, ProductID: 0x07d83052, Revision: 0x00100000, OutputBytes: 1},
		{Name: "EL1008", VendorID: beckhoff, ProductID: 0x03f03052, Revision: 0x00100000, InputBytes: 1},
	}
}

// Build converts the simulation section of a validated config into slave specs.
func Build(cfg config.SimulationConfig) ([]SlaveSpec, error) {
	if len(cfg.Slaves) == 0 {
		return DefaultSlaves(), nil
	}

	specs := make([]SlaveSpec, 0, len(cfg.Slaves))
	for i, sc := range cfg.Slaves {
		sp := SlaveSpec{
			Name:        sc.Name,
			VendorID:    sc.VendorID,
			ProductID:   sc.ProductID,
			Revision:    sc.Revision,
			Group:       sc.Group,
			OutputBytes: sc.OutputBytes,
			InputBytes:  sc.InputBytes,
			DelayCycles: sc.DelayCycles,
		}
		for j, fc := range sc.Faults {
			kind, err := ParseFaultKind(fc.Kind)
			if err != nil {
				return nil, fmt.Errorf("simulation.slaves[%d].faults[%d]: %w", i, j, err)
			}
			sp.Faults = append(sp.Faults, Fault{AtCycle: fc.AtCycle, Kind: kind, ALCode: fc.ALCode})
		}
		specs = append(specs, sp)
	}
	return specs, nil
}

// NewFromConfig builds a segment from the simulation config section.
func NewFromConfig(cfg config.SimulationConfig) (*Segment, error) {
	specs, err := Build(cfg)
	if err != nil {
		return nil, err
	}
	return NewSegment(specs), nil
}
