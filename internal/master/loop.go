// internal/master/loop.go
package master

import (
	"context"
	"log/slog"
	"time"

	"github.com/tamzrod/ecat-master/internal/eventlog"
	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

// Application is the layer above the control loop. Cycle is only called
// with inputs from a frame that every slave of the group processed; outputs
// written there go out with the next exchange.
type Application interface {
	Cycle(iter uint64, g *fieldbus.Group, in fieldbus.Region, out fieldbus.Outputs)
}

// SlaveSink receives a copy of the slave records after bring-up and after
// every health pass. It must not block.
type SlaveSink interface {
	PublishSlaves(slaves []fieldbus.SlaveDescriptor)
}

// LoopConfig is the runtime config of the control loop.
type LoopConfig struct {
	Cycle      time.Duration
	Iterations uint64 // 0 = until the context is cancelled
	StatsEvery uint64 // 0 = stats only at the end
}

// Loop runs the fixed period cycle over a session.
// It is a single goroutine: no overlap, no parallel mutators.
type Loop struct {
	s     *Session
	cfg   LoopConfig
	app   Application
	sink  SlaveSink
	stats Stats
	iter  uint64
}

// LoopOption customizes a Loop.
type LoopOption func(*Loop)

// WithApplication sets the application called on valid cycles.
func WithApplication(app Application) LoopOption {
	return func(l *Loop) { l.app = app }
}

// WithSlaveSink sets where slave snapshots are published.
func WithSlaveSink(sink SlaveSink) LoopOption {
	return func(l *Loop) { l.sink = sink }
}

// NewLoop builds a control loop for s.
func NewLoop(s *Session, cfg LoopConfig, opts ...LoopOption) *Loop {
	if cfg.Cycle <= 0 {
		cfg.Cycle = 5 * time.Millisecond
	}
	l := &Loop{s: s, cfg: cfg}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Stats returns the counters collected so far.
func (l *Loop) Stats() Stats { return l.stats }

// Run ticks until the iteration budget is spent or ctx is cancelled, then
// shuts the session down. A stop is only observed between ticks, so shutdown
// always follows a complete frame round.
func (l *Loop) Run(ctx context.Context) Stats {
	defer l.s.ShutDown()

	l.publish()

	timer := time.NewTimer(l.cfg.Cycle)
	defer timer.Stop()

	for l.cfg.Iterations == 0 || l.iter < l.cfg.Iterations {
		if ctx.Err() != nil {
			break
		}

		l.Tick()

		if l.cfg.StatsEvery > 0 && l.iter%l.cfg.StatsEvery == 0 {
			l.s.log.Info("cycle statistics", l.stats.Fields()...)
		}

		if l.cfg.Iterations != 0 && l.iter >= l.cfg.Iterations {
			break
		}

		// ---- inter-cycle sleep ----
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(l.cfg.Cycle)
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}

	l.s.log.Info("control loop stopped", l.stats.Fields()...)
	return l.stats
}

// Tick performs one exchange per group. A group whose working counter is
// short goes to the health monitor and its inputs are not handed to the
// application.
func (l *Loop) Tick() []Result {
	l.iter++
	results := make([]Result, 0, len(l.s.groups))
	checked := false

	for _, g := range l.s.groups {
		res := l.s.Exchange(g)
		l.stats.Observe(res)
		results = append(results, res)

		if !res.Valid() {
			g.DoCheckState = true
			l.reportProblem(res)
		}

		if g.DoCheckState {
			rep, err := l.s.CheckAndRepair(g)
			if err != nil {
				l.s.log.Warn("health pass failed", "group", g.ID, "err", err)
			}
			l.stats.ObserveHealth(rep)
			checked = true
		}

		if !res.Valid() {
			continue
		}
		l.deliver(g, res)
	}

	if checked {
		l.publish()
	}
	return results
}

// Iteration returns the number of ticks run.
func (l *Loop) Iteration() uint64 { return l.iter }

func (l *Loop) reportProblem(res Result) {
	kind := eventlog.KindWkcMismatch
	if res.Err != nil {
		kind = eventlog.KindExchangeTimeout
	}
	l.s.log.Warn("invalid frame",
		"group", res.Group,
		"wkc", res.WKC,
		"expected", res.Expected,
		"err", res.Problem(),
	)
	l.s.record(eventlog.Event{
		Kind:     kind,
		Group:    res.Group,
		WKC:      res.WKC,
		Expected: res.Expected,
	})
}

func (l *Loop) deliver(g *fieldbus.Group, res Result) {
	in, err := l.s.Inputs(g)
	if err != nil {
		l.s.log.Error("input region", "group", g.ID, "err", err)
		return
	}
	out, err := l.s.Outputs(g)
	if err != nil {
		l.s.log.Error("output region", "group", g.ID, "err", err)
		return
	}

	if l.s.log.Enabled(slog.LevelDebug) {
		l.s.log.Debug("process image",
			"iteration", l.iter,
			"group", g.ID,
			"wkc", res.WKC,
			"expected", res.Expected,
			"rt_us", res.Roundtrip.Microseconds(),
			"O", out.Hex(),
			"I", in.Hex(),
		)
	}

	if l.app != nil {
		l.app.Cycle(l.iter, g, in, out)
	}
}

func (l *Loop) publish() {
	if l.sink == nil {
		return
	}
	all := l.s.registry.All()
	snap := make([]fieldbus.SlaveDescriptor, len(all))
	for i, d := range all {
		snap[i] = *d
	}
	l.sink.PublishSlaves(snap)
}
