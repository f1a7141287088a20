// internal/master/health.go
package master

import (
	"errors"
	"fmt"

	"github.com/tamzrod/ecat-master/internal/eventlog"
	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

// Action is what the health monitor did to one slave.
type Action uint8

const (
	ActionErrorAcked Action = iota + 1
	ActionPromoted
	ActionReconfigured
	ActionReconfigureFailed
	ActionLost
	ActionRecovered
	ActionRecoverFailed
	ActionFound
)

func (a Action) String() string {
	switch a {
	case ActionErrorAcked:
		return "error acknowledged"
	case ActionPromoted:
		return "promoted to OPERATIONAL"
	case ActionReconfigured:
		return "reconfigured"
	case ActionReconfigureFailed:
		return "reconfigure failed"
	case ActionLost:
		return "lost"
	case ActionRecovered:
		return "recovered"
	case ActionRecoverFailed:
		return "recover failed"
	case ActionFound:
		return "found"
	default:
		return "unknown"
	}
}

func (a Action) eventKind() eventlog.Kind {
	switch a {
	case ActionErrorAcked:
		return eventlog.KindErrorAcked
	case ActionPromoted:
		return eventlog.KindPromoted
	case ActionReconfigured:
		return eventlog.KindReconfigured
	case ActionReconfigureFailed:
		return eventlog.KindReconfigureFailed
	case ActionLost:
		return eventlog.KindLost
	case ActionRecovered:
		return eventlog.KindRecovered
	case ActionRecoverFailed:
		return eventlog.KindRecoverFailed
	default:
		return eventlog.KindFound
	}
}

// Repair records one per-slave action of a health pass.
type Repair struct {
	Slave  int
	Action Action
	State  fieldbus.State
	Err    error // *fieldbus.SlaveError for lost / failed repairs
}

// Report summarizes one health pass over a group.
type Report struct {
	Group   uint8
	Repairs []Repair
	// Resumed is true when every slave of the group was OPERATIONAL.
	Resumed bool
}

// Err joins the per-slave errors of the pass. They never abort the loop.
func (r Report) Err() error {
	var errs []error
	for _, rp := range r.Repairs {
		if rp.Err != nil {
			errs = append(errs, rp.Err)
		}
	}
	return errors.Join(errs...)
}

// CheckAndRepair classifies and repairs the slaves of g that are not
// OPERATIONAL. Every attempt is bounded, so one unresponsive slave cannot
// stall the pass for the others.
//
// Error state slaves are serviced before lost slaves are recovered.
func (s *Session) CheckAndRepair(g *fieldbus.Group) (Report, error) {
	rep := Report{Group: g.ID}

	g.DoCheckState = false

	states, err := s.adapter.ReadStates()
	if err != nil {
		g.DoCheckState = true
		return rep, fmt.Errorf("health: read states: %w", err)
	}
	s.registry.ApplyStates(states)

	slaves := s.registry.InGroup(g.ID)

	// ---- triage: anything below OPERATIONAL ----
	for _, d := range slaves {
		if d.State.IsOperational() {
			continue
		}
		g.DoCheckState = true
		target := fieldbus.Slave(d.Index)

		switch {
		case d.State == fieldbus.StateSafeOpError:
			s.log.Warn("slave in SAFE_OP+ERROR, acknowledging",
				"slave", d.Index, "al_status", fmt.Sprintf("0x%04x", d.ALStatus))
			if err := s.adapter.WriteState(target, fieldbus.StateSafeOpAck); err != nil {
				s.log.Warn("acknowledge failed", "slave", d.Index, "err", err)
			}
			s.addRepair(&rep, d, ActionErrorAcked, nil)

		case d.State == fieldbus.StateSafeOp:
			s.log.Warn("slave in SAFE_OP, changing to OPERATIONAL", "slave", d.Index)
			if err := s.adapter.WriteState(target, fieldbus.StateOp); err != nil {
				s.log.Warn("OPERATIONAL request failed", "slave", d.Index, "err", err)
			}
			s.addRepair(&rep, d, ActionPromoted, nil)

		case d.State > fieldbus.StateNone:
			if s.adapter.ReconfigureSlave(d.Index, s.timing.MonitorTimeout) {
				d.ClearLost()
				s.log.Info("slave reconfigured", "slave", d.Index)
				s.addRepair(&rep, d, ActionReconfigured, nil)
			} else {
				s.log.Warn("slave reconfigure failed", "slave", d.Index, "state", d.State.String())
				s.addRepair(&rep, d, ActionReconfigureFailed,
					&fieldbus.SlaveError{Index: d.Index, Err: fieldbus.ErrRecoveryFailed})
			}

		case !d.Lost:
			st, err := s.adapter.CheckState(target, fieldbus.StateOp, s.timing.ReturnTimeout)
			if err == nil {
				d.State = st
			}
			if d.MarkLost() {
				s.log.Error("slave lost", "slave", d.Index)
				s.addRepair(&rep, d, ActionLost,
					&fieldbus.SlaveError{Index: d.Index, Err: fieldbus.ErrSlaveLost})
			}
		}
	}

	// ---- lost slaves ----
	for _, d := range slaves {
		if !d.Lost {
			continue
		}
		if d.State.IsNone() {
			if s.adapter.RecoverSlave(d.Index, s.timing.MonitorTimeout) {
				d.ClearLost()
				s.log.Info("slave recovered", "slave", d.Index)
				s.addRepair(&rep, d, ActionRecovered, nil)
			} else {
				s.addRepair(&rep, d, ActionRecoverFailed,
					&fieldbus.SlaveError{Index: d.Index, Err: fieldbus.ErrRecoveryFailed})
			}
			continue
		}
		d.ClearLost()
		s.log.Info("slave found", "slave", d.Index, "state", d.State.String())
		s.addRepair(&rep, d, ActionFound, nil)
	}

	if !g.DoCheckState {
		rep.Resumed = true
		s.log.Info("all slaves resumed OPERATIONAL", "group", g.ID)
		s.record(eventlog.Event{Kind: eventlog.KindResumed, Group: g.ID})
	}
	return rep, nil
}

func (s *Session) addRepair(rep *Report, d *fieldbus.SlaveDescriptor, a Action, err error) {
	rep.Repairs = append(rep.Repairs, Repair{Slave: d.Index, Action: a, State: d.State, Err: err})
	s.record(eventlog.Event{
		Kind:     a.eventKind(),
		Slave:    d.Index,
		Group:    d.Group,
		State:    uint16(d.State),
		ALStatus: d.ALStatus,
	})
}
