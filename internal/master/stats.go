// internal/master/stats.go
package master

import (
	"errors"
	"time"

	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

// Stats tracks cycle counters and round-trip jitter over a run.
type Stats struct {
	Cycles           uint64
	ValidCycles      uint64
	WkcMismatches    uint64
	ExchangeTimeouts uint64
	HealthPasses     uint64
	Repairs          uint64

	RoundtripMin time.Duration
	RoundtripMax time.Duration
	roundtripSum time.Duration
	measured     uint64
}

// Observe accounts one exchange result.
func (st *Stats) Observe(r Result) {
	st.Cycles++
	switch {
	case r.Valid():
		st.ValidCycles++
	case errors.Is(r.Err, fieldbus.ErrExchangeTimeout):
		st.ExchangeTimeouts++
	default:
		st.WkcMismatches++
	}

	if r.Err != nil {
		return
	}
	if st.measured == 0 || r.Roundtrip < st.RoundtripMin {
		st.RoundtripMin = r.Roundtrip
	}
	if r.Roundtrip > st.RoundtripMax {
		st.RoundtripMax = r.Roundtrip
	}
	st.roundtripSum += r.Roundtrip
	st.measured++
}

// ObserveHealth accounts one health pass.
func (st *Stats) ObserveHealth(rep Report) {
	st.HealthPasses++
	st.Repairs += uint64(len(rep.Repairs))
}

// RoundtripMean returns the mean round-trip of answered exchanges.
func (st *Stats) RoundtripMean() time.Duration {
	if st.measured == 0 {
		return 0
	}
	return st.roundtripSum / time.Duration(st.measured)
}

// Jitter is the spread between the slowest and fastest round trip.
func (st *Stats) Jitter() time.Duration { return st.RoundtripMax - st.RoundtripMin }

// Fields renders the stats as logger key/values.
func (st *Stats) Fields() []any {
	return []any{
		"cycles", st.Cycles,
		"valid", st.ValidCycles,
		"wkc_mismatches", st.WkcMismatches,
		"exchange_timeouts", st.ExchangeTimeouts,
		"health_passes", st.HealthPasses,
		"repairs", st.Repairs,
		"rt_min_us", st.RoundtripMin.Microseconds(),
		"rt_max_us", st.RoundtripMax.Microseconds(),
		"rt_mean_us", st.RoundtripMean().Microseconds(),
		"rt_jitter_us", st.Jitter().Microseconds(),
	}
}
