// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/ecat-master/internal/status"
)

// StatusWriter is the delivery-only contract for one slave's status.
// It receives a snapshot and writes it verbatim.
// No logic, no state, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// slaveStatusWriter owns the status block of one slave.
type slaveStatusWriter struct {
	plan  StatusPlan
	index int
	cli   endpointClient

	needFull bool
	last     status.Snapshot
	nameRegs []uint16
}

// newSlaveStatusWriter builds the writer for slave index (1-based).
func newSlaveStatusWriter(plan StatusPlan, index int, name string, cli endpointClient) (*slaveStatusWriter, error) {
	if index < 1 {
		return nil, fmt.Errorf("status writer: slave index %d out of range", index)
	}
	end := (int(plan.BaseSlot) + index) * status.SlotsPerDevice
	if end > 0x10000 {
		return nil, fmt.Errorf("status writer: slave %d block ends past register 65535", index)
	}

	return &slaveStatusWriter{
		plan:     plan,
		index:    index,
		cli:      cli,
		needFull: true, // full re-assert on first successful write
		last: status.Snapshot{
			Health: status.HealthUnknown,
		},
		nameRegs: status.EncodeName(name),
	}, nil
}

// WriteStatus delivers a slave status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *slaveStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}

	baseAddr := sw.baseAddr()
	unitID := sw.plan.UnitID

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		regs := sw.fullBlockRegs(s)

		if err := sw.cli.WriteRegisters(unitID, baseAddr, regs); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: slave %d full block write failed: %w", sw.index, err)
		}

		sw.needFull = false
		sw.last = s
		return nil
	}

	var errs []string

	// Slot 0: health_code
	if sw.last.Health != s.Health {
		if err := sw.cli.WriteRegisters(unitID, baseAddr+status.SlotHealthCode, []uint16{s.Health}); err != nil {
			errs = append(errs, fmt.Sprintf("slot0 health write failed: %v", err))
		} else {
			sw.last.Health = s.Health
		}
	}

	// Slot 1: last_error_code (AL status code)
	if sw.last.LastErrorCode != s.LastErrorCode {
		if err := sw.cli.WriteRegisters(unitID, baseAddr+status.SlotLastErrorCode, []uint16{s.LastErrorCode}); err != nil {
			errs = append(errs, fmt.Sprintf("slot1 last_error write failed: %v", err))
		} else {
			sw.last.LastErrorCode = s.LastErrorCode
		}
	}

	// Slot 2: seconds_in_error
	if sw.last.SecondsInError != s.SecondsInError {
		if err := sw.cli.WriteRegisters(unitID, baseAddr+status.SlotSecondsInError, []uint16{s.SecondsInError}); err != nil {
			errs = append(errs, fmt.Sprintf("slot2 seconds write failed: %v", err))
		} else {
			sw.last.SecondsInError = s.SecondsInError
		}
	}

	// Slots 3-4: al_state and lost, one write
	if sw.last.ALState != s.ALState || sw.last.Lost != s.Lost {
		regs := status.Encode(s)[status.SlotALState : status.SlotLost+1]
		if err := sw.cli.WriteRegisters(unitID, baseAddr+status.SlotALState, regs); err != nil {
			errs = append(errs, fmt.Sprintf("slot3-4 state write failed: %v", err))
		} else {
			sw.last.ALState = s.ALState
			sw.last.Lost = s.Lost
		}
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt, re-assert on next success.
		sw.needFull = true
		return fmt.Errorf("status writer: slave %d: %s", sw.index, strings.Join(errs, " | "))
	}

	return nil
}

func (sw *slaveStatusWriter) baseAddr() uint16 {
	// Each slave owns a fixed SlotsPerDevice block.
	return (sw.plan.BaseSlot + uint16(sw.index-1)) * status.SlotsPerDevice
}

func (sw *slaveStatusWriter) fullBlockRegs(s status.Snapshot) []uint16 {
	regs := status.Encode(s)

	// Slave name always lives at the end of the block
	for i := 0; i < status.SlotDeviceNameSlots && i < len(sw.nameRegs); i++ {
		regs[status.SlotDeviceNameStart+i] = sw.nameRegs[i]
	}

	return regs
}
