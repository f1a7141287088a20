// internal/master/lifecycle_test.go
package master

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tamzrod/ecat-master/internal/eventlog"
	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

func bringUp(t *testing.T, f *fakeAdapter, events *eventlog.Memory) *Session {
	t.Helper()
	opts := Options{IOMapBytes: 64}
	if events != nil {
		opts.Events = events
	}
	s, err := BringUp(f, "fake0", opts)
	require.NoError(t, err)
	require.NotNil(t, s)
	return s
}

func TestBringUp_ThreeSlavesReachOperational(t *testing.T) {
	f := newFakeAdapter(slave(1, 1), slave(2, 0), slave(0, 4))
	f.opPollsNeeded = 2
	events := &eventlog.Memory{}

	s := bringUp(t, f, events)

	require.Equal(t, 3, s.Registry().Len())
	require.Len(t, s.Groups(), 1)

	g := s.Groups()[0]
	// two output slaves (2 each) and two input slaves (1 each)
	require.Equal(t, 6, g.ExpectedWKC())
	require.Equal(t, 3, g.Outputs.Len)
	require.Equal(t, 5, g.Inputs.Len)

	// priming exchange plus one per poll
	require.Equal(t, 3, f.exchanges)
	require.Equal(t, 0, f.closes)
	require.False(t, s.Closed())

	for _, d := range s.Registry().All() {
		require.Equal(t, fieldbus.StateOp, d.State, "slave %d", d.Index)
	}
	require.Equal(t, []eventlog.Kind{eventlog.KindBringUp}, events.Kinds())
	require.Equal(t, s.ID(), events.Events[0].SessionID)
}

func TestBringUp_SlaveRegionsAreDisjoint(t *testing.T) {
	f := newFakeAdapter(slave(1, 1), slave(2, 3))
	s := bringUp(t, f, nil)

	out1, err := s.SlaveOutputs(1)
	require.NoError(t, err)
	out2, err := s.SlaveOutputs(2)
	require.NoError(t, err)
	d2, err := s.Registry().Get(2)
	require.NoError(t, err)
	in2, err := s.Image().Region(d2.Inputs)
	require.NoError(t, err)

	require.Equal(t, 1, out1.Len())
	require.Equal(t, 2, out2.Len())
	require.Equal(t, 3, in2.Len())

	require.NoError(t, out2.SetByte(0, 0xAB))
	b, err := out1.Byte(0)
	require.NoError(t, err)
	require.Equal(t, byte(0), b)
}

func TestBringUp_MultipleGroupsMapBackToBack(t *testing.T) {
	a, b := slave(1, 1), slave(2, 2)
	b.info.Group = 1
	f := newFakeAdapter(a, b)

	s := bringUp(t, f, nil)
	require.Len(t, s.Groups(), 2)

	g0, g1 := s.Groups()[0], s.Groups()[1]
	require.Equal(t, uint8(0), g0.ID)
	require.Equal(t, uint8(1), g1.ID)

	require.Equal(t, 0, g0.Outputs.Offset)
	require.Equal(t, g0.Inputs.End(), g1.Outputs.Offset)
	require.Equal(t, 3, g0.ExpectedWKC())
	require.Equal(t, 3, g1.ExpectedWKC())

	d2, err := s.Registry().Get(2)
	require.NoError(t, err)
	require.Equal(t, g1.Outputs, d2.Outputs)
}

func TestBringUp_AdapterUnavailable(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	f.openErr = errors.New("permission denied")

	s, err := BringUp(f, "eth9", Options{})
	require.Nil(t, s)
	require.ErrorIs(t, err, fieldbus.ErrAdapterUnavailable)
	require.Contains(t, err.Error(), "eth9")

	require.Equal(t, 0, f.scans)
	require.Equal(t, 0, f.maps)
	require.Equal(t, 0, f.closes)
}

func TestBringUp_NoSlavesClosesHandle(t *testing.T) {
	f := newFakeAdapter()
	events := &eventlog.Memory{}

	s, err := BringUp(f, "fake0", Options{Events: events})
	require.Nil(t, s)
	require.ErrorIs(t, err, fieldbus.ErrNoSlavesFound)
	require.Equal(t, 1, f.closes)
	require.Equal(t, 0, f.maps)
	require.Equal(t, []eventlog.Kind{eventlog.KindBringUpFailed}, events.Kinds())
}

func TestBringUp_ScanErrorIsNoSlaves(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	f.scanErr = errors.New("frame lost")

	_, err := BringUp(f, "fake0", Options{})
	require.ErrorIs(t, err, fieldbus.ErrNoSlavesFound)
	require.Equal(t, 1, f.closes)
}

func TestBringUp_MappingFailureClosesHandle(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	f.mapErr = errors.New("sync manager conflict")

	s, err := BringUp(f, "fake0", Options{})
	require.Nil(t, s)
	require.ErrorIs(t, err, fieldbus.ErrMappingFailure)
	require.Equal(t, 1, f.closes)
	require.Equal(t, 0, f.exchanges)
}

func TestBringUp_ReportedWKCMustMatchSlaves(t *testing.T) {
	f := newFakeAdapter(slave(0, 0), slave(1, 0), slave(0, 1))
	f.wkcSkew = 1

	s, err := BringUp(f, "fake0", Options{})
	require.Nil(t, s)
	require.ErrorIs(t, err, fieldbus.ErrMappingFailure)
	require.Contains(t, err.Error(), "expected wkc 5, slaves contribute 3")
	require.Equal(t, 1, f.closes)
	require.Equal(t, 0, f.exchanges)
}

func TestBringUp_ImageTooSmall(t *testing.T) {
	f := newFakeAdapter(slave(32, 32), slave(32, 32))

	_, err := BringUp(f, "fake0", Options{IOMapBytes: 64})
	require.ErrorIs(t, err, fieldbus.ErrMappingFailure)
	require.Equal(t, 1, f.closes)
}

func TestBringUp_OperationalTimeout(t *testing.T) {
	stuck := slave(1, 1)
	stuck.stuck = fieldbus.StateSafeOpError
	stuck.hasStuck = true
	stuck.al = 0x001B
	f := newFakeAdapter(slave(1, 1), stuck, slave(1, 1))

	s, err := BringUp(f, "fake0", Options{})
	require.Nil(t, s)
	require.ErrorIs(t, err, fieldbus.ErrOperationalTimeout)

	var terr *OperationalTimeoutError
	require.True(t, errors.As(err, &terr))
	require.Equal(t, fieldbus.StateSafeOpError, terr.Lowest)
	require.Len(t, terr.Slaves, 1)
	require.Equal(t, 2, terr.Slaves[0].Index)
	require.Equal(t, "FAKE-2", terr.Slaves[0].Name)
	require.Equal(t, uint16(0x001B), terr.Slaves[0].ALStatus)
	require.Contains(t, err.Error(), "al=0x001b")

	// priming exchange plus the full poll budget
	require.Equal(t, 1+operationalPolls, f.exchanges)
	require.Equal(t, 1, f.closes)
	// slaves are left where they are
	require.False(t, f.called("write all INIT"))
}

func TestBringUp_OperationalTimeoutLowestFromSlaveStates(t *testing.T) {
	stuck := slave(1, 1)
	stuck.stuck = fieldbus.StateSafeOp
	stuck.hasStuck = true
	f := newFakeAdapter(slave(1, 1), stuck)
	f.opCheckErr = errors.New("frame lost")

	_, err := BringUp(f, "fake0", Options{})

	var terr *OperationalTimeoutError
	require.True(t, errors.As(err, &terr))
	// a failed check reads NONE; the registry still knows SAFE_OP
	require.Equal(t, fieldbus.StateSafeOp, terr.Lowest)
}

func TestBringUpWithRetry_RetriesOperationalTimeout(t *testing.T) {
	stuck := slave(1, 1)
	stuck.stuck = fieldbus.StateSafeOp
	stuck.hasStuck = true
	f := newFakeAdapter(stuck)
	f.unstickOnOpen = 2

	s, err := BringUpWithRetry(f, "fake0", Options{}, 2)
	require.NoError(t, err)
	require.NotNil(t, s)
	require.Equal(t, 2, f.opens)
	require.Equal(t, 1, f.closes)
}

func TestBringUpWithRetry_GivesUp(t *testing.T) {
	stuck := slave(1, 1)
	stuck.stuck = fieldbus.StateSafeOp
	stuck.hasStuck = true
	f := newFakeAdapter(stuck)

	_, err := BringUpWithRetry(f, "fake0", Options{}, 1)
	require.ErrorIs(t, err, fieldbus.ErrOperationalTimeout)
	require.Equal(t, 2, f.opens)
	require.Equal(t, 2, f.closes)
}

func TestBringUpWithRetry_OtherErrorsNotRetried(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	f.openErr = errors.New("no such device")

	_, err := BringUpWithRetry(f, "fake0", Options{}, 3)
	require.ErrorIs(t, err, fieldbus.ErrAdapterUnavailable)
	require.Equal(t, 1, f.opens)
}

func TestShutDown_IsIdempotent(t *testing.T) {
	f := newFakeAdapter(slave(1, 1))
	events := &eventlog.Memory{}
	s := bringUp(t, f, events)

	s.ShutDown()
	s.ShutDown()

	require.True(t, s.Closed())
	require.Equal(t, 1, f.closes)
	require.True(t, f.called("write all INIT"))
	require.Less(t, f.indexOf("write all INIT"), f.indexOf("close"))
	require.Equal(t, []eventlog.Kind{eventlog.KindBringUp, eventlog.KindShutdown}, events.Kinds())
}
