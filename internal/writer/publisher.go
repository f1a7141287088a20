// internal/writer/publisher.go
package writer

import (
	"context"
	"time"

	"github.com/tamzrod/ecat-master/internal/logger"
	"github.com/tamzrod/ecat-master/internal/status"
)

// Publisher delivers the slave status board into status memory.
// It owns seconds_in_error; the control loop never sees this state.
// One goroutine. No retries beyond the full re-assert of the writers.
type Publisher struct {
	plan  StatusPlan
	board *status.Board
	cli   endpointClient
	log   logger.Logger

	writers map[int]*slaveStatusWriter
	snaps   map[int]status.Snapshot

	tick time.Duration
}

func NewPublisher(plan StatusPlan, board *status.Board, cli endpointClient, log logger.Logger) *Publisher {
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{
		plan:    plan,
		board:   board,
		cli:     cli,
		log:     log.With("endpoint", plan.Endpoint),
		writers: make(map[int]*slaveStatusWriter),
		snaps:   make(map[int]status.Snapshot),
		tick:    time.Second,
	}
}

// Run publishes until ctx is cancelled, then marks every slave disabled.
func (p *Publisher) Run(ctx context.Context) {
	secTicker := time.NewTicker(p.tick)
	defer secTicker.Stop()

	// Full block write on start (identity re-assert).
	p.Sync()

	for {
		select {
		case <-ctx.Done():
			p.Sync()
			p.Disable()
			return

		case <-p.board.Updates():
			p.Sync()

		case <-secTicker.C:
			p.Tick()
		}
	}
}

// Sync applies the latest board entries and writes what changed.
func (p *Publisher) Sync() {
	for _, e := range p.board.Entries() {
		sw, ok := p.writer(e)
		if !ok {
			continue
		}

		prev, seen := p.snaps[e.Index]
		snap := e.Snap

		// seconds_in_error survives across updates while not OK,
		// and resets on recovery.
		if snap.Health != status.HealthOK && seen && prev.Health != status.HealthOK {
			snap.SecondsInError = prev.SecondsInError
		}

		if seen && snap == prev {
			continue
		}
		p.snaps[e.Index] = snap
		p.write(sw, e.Index, snap)
	}
}

// Tick advances seconds_in_error of every unhealthy slave (1 Hz).
func (p *Publisher) Tick() {
	for idx, snap := range p.snaps {
		if snap.Health == status.HealthOK || snap.Health == status.HealthDisabled {
			continue
		}
		if snap.SecondsInError >= status.SecondsInErrorMax {
			continue
		}
		snap.SecondsInError++
		p.snaps[idx] = snap
		p.write(p.writers[idx], idx, snap)
	}
}

// Disable marks every known slave as released by the master.
func (p *Publisher) Disable() {
	for idx, snap := range p.snaps {
		snap.Health = status.HealthDisabled
		p.snaps[idx] = snap
		p.write(p.writers[idx], idx, snap)
	}
}

// Snapshot returns the last snapshot handed to the writer of slave index.
func (p *Publisher) Snapshot(index int) (status.Snapshot, bool) {
	s, ok := p.snaps[index]
	return s, ok
}

func (p *Publisher) writer(e status.Entry) (*slaveStatusWriter, bool) {
	if sw, ok := p.writers[e.Index]; ok {
		return sw, true
	}
	sw, err := newSlaveStatusWriter(p.plan, e.Index, e.Name, p.cli)
	if err != nil {
		p.log.Error("status block unavailable", "slave", e.Index, "err", err)
		return nil, false
	}
	p.writers[e.Index] = sw
	return sw, true
}

func (p *Publisher) write(sw StatusWriter, index int, snap status.Snapshot) {
	if err := sw.WriteStatus(snap); err != nil {
		p.log.Warn("status write failed", "slave", index, "err", err)
	}
}
