// internal/master/loop_test.go
package master

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tamzrod/ecat-master/internal/eventlog"
	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

type recordingApp struct {
	iters  []uint64
	inputs [][]byte
	onTick func(iter uint64)
}

func (a *recordingApp) Cycle(iter uint64, g *fieldbus.Group, in fieldbus.Region, out fieldbus.Outputs) {
	a.iters = append(a.iters, iter)
	a.inputs = append(a.inputs, in.Copy())
	if a.onTick != nil {
		a.onTick(iter)
	}
}

type recordingSink struct {
	snaps [][]fieldbus.SlaveDescriptor
}

func (s *recordingSink) PublishSlaves(slaves []fieldbus.SlaveDescriptor) {
	s.snaps = append(s.snaps, slaves)
}

func TestTick_ShortWkcGoesToHealthMonitor(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	s := bringUp(t, f, nil)
	app := &recordingApp{}
	l := NewLoop(s, LoopConfig{Cycle: time.Millisecond}, WithApplication(app))

	g := s.Groups()[0]
	require.Equal(t, 3, g.ExpectedWKC())

	reads := f.readStates
	f.wkcs = []int{2}

	res := l.Tick()
	require.Len(t, res, 1)
	require.Equal(t, 2, res[0].WKC)
	require.False(t, res[0].Valid())
	require.ErrorIs(t, res[0].Problem(), fieldbus.ErrWkcMismatch)
	require.Equal(t, reads+1, f.readStates)
	require.Empty(t, app.iters)

	// next frame is complete again
	res = l.Tick()
	require.True(t, res[0].Valid())
	require.Equal(t, []uint64{2}, app.iters)

	st := l.Stats()
	require.Equal(t, uint64(2), st.Cycles)
	require.Equal(t, uint64(1), st.ValidCycles)
	require.Equal(t, uint64(1), st.WkcMismatches)
	require.Equal(t, uint64(1), st.HealthPasses)
}

func TestTick_ExchangeTimeout(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	events := &eventlog.Memory{}
	s := bringUp(t, f, events)
	app := &recordingApp{}
	l := NewLoop(s, LoopConfig{}, WithApplication(app))

	f.exchangeErr = errors.New("no frame")
	res := l.Tick()

	require.Equal(t, 0, res[0].WKC)
	require.ErrorIs(t, res[0].Err, fieldbus.ErrExchangeTimeout)
	require.Empty(t, app.iters)
	require.Equal(t, uint64(1), l.Stats().ExchangeTimeouts)
	require.Contains(t, events.Kinds(), eventlog.KindExchangeTimeout)
}

func TestTick_StableWkcIsIdempotent(t *testing.T) {
	f := newFakeAdapter(slave(1, 1), slave(2, 2))
	s := bringUp(t, f, nil)
	app := &recordingApp{}
	l := NewLoop(s, LoopConfig{}, WithApplication(app))

	reads := f.readStates
	for i := 0; i < 5; i++ {
		res := l.Tick()
		require.Equal(t, 6, res[0].WKC)
		require.True(t, res[0].Valid())
	}
	require.Equal(t, reads, f.readStates)
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, app.iters)
	require.Equal(t, uint64(5), l.Stats().ValidCycles)
	require.Zero(t, l.Stats().HealthPasses)
}

func TestTick_PublishesAfterHealthPass(t *testing.T) {
	f := newFakeAdapter(slave(1, 1), slave(1, 1))
	s := bringUp(t, f, nil)
	sink := &recordingSink{}
	l := NewLoop(s, LoopConfig{}, WithSlaveSink(sink))

	f.slaves[1].state = fieldbus.StateSafeOp
	l.Tick()

	require.Len(t, sink.snaps, 1)
	require.Len(t, sink.snaps[0], 2)
	require.Equal(t, fieldbus.StateSafeOp, sink.snaps[0][1].State)

	// snapshot is a copy
	d, err := s.Registry().Get(2)
	require.NoError(t, err)
	d.State = fieldbus.StateInit
	require.Equal(t, fieldbus.StateSafeOp, sink.snaps[0][1].State)
}

func TestRun_IterationBudget(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	s := bringUp(t, f, nil)
	sink := &recordingSink{}
	l := NewLoop(s, LoopConfig{Cycle: time.Millisecond, Iterations: 3, StatsEvery: 2}, WithSlaveSink(sink))

	st := l.Run(context.Background())

	require.Equal(t, uint64(3), st.Cycles)
	require.Equal(t, uint64(3), l.Iteration())
	require.True(t, s.Closed())
	require.Equal(t, 1, f.closes)
	require.True(t, f.called("write all INIT"))
	require.NotEmpty(t, sink.snaps)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	s := bringUp(t, f, nil)
	l := NewLoop(s, LoopConfig{Cycle: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st := l.Run(ctx)
	require.Zero(t, st.Cycles)
	require.True(t, s.Closed())
	require.Equal(t, 1, f.closes)
}

func TestRun_StopsBetweenTicks(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	s := bringUp(t, f, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := &recordingApp{}
	app.onTick = func(iter uint64) {
		if iter == 5 {
			cancel()
		}
	}
	l := NewLoop(s, LoopConfig{Cycle: time.Millisecond}, WithApplication(app))

	st := l.Run(ctx)
	require.Equal(t, uint64(5), st.Cycles)
	require.Len(t, app.iters, 5)
	require.True(t, s.Closed())
}

func TestStats_Roundtrip(t *testing.T) {
	var st Stats
	st.Observe(Result{WKC: 3, Expected: 3, Roundtrip: 100 * time.Microsecond})
	st.Observe(Result{WKC: 3, Expected: 3, Roundtrip: 300 * time.Microsecond})
	st.Observe(Result{Expected: 3, Err: fieldbus.ErrExchangeTimeout, Roundtrip: time.Second})
	st.Observe(Result{WKC: 1, Expected: 3, Roundtrip: 200 * time.Microsecond})

	require.Equal(t, uint64(4), st.Cycles)
	require.Equal(t, uint64(2), st.ValidCycles)
	require.Equal(t, uint64(1), st.ExchangeTimeouts)
	require.Equal(t, uint64(1), st.WkcMismatches)
	require.Equal(t, 100*time.Microsecond, st.RoundtripMin)
	require.Equal(t, 300*time.Microsecond, st.RoundtripMax)
	require.Equal(t, 200*time.Microsecond, st.RoundtripMean())
	require.Equal(t, 200*time.Microsecond, st.Jitter())

	st.ObserveHealth(Report{Repairs: []Repair{{Slave: 1}, {Slave: 2}}})
	require.Equal(t, uint64(1), st.HealthPasses)
	require.Equal(t, uint64(2), st.Repairs)
	require.Len(t, st.Fields(), 20)
}
