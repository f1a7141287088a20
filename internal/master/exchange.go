// internal/master/exchange.go
package master

import (
	"errors"
	"fmt"
	"time"

	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

// Result is the outcome of one exchange round for one group.
type Result struct {
	Group     uint8
	WKC       int
	Expected  int
	Roundtrip time.Duration

	// Err is ErrExchangeTimeout (possibly wrapped) when no frame came back.
	Err error
}

// Valid reports whether every slave of the group processed the frame.
func (r Result) Valid() bool { return r.Err == nil && r.WKC >= r.Expected }

// Problem classifies an invalid result as ErrExchangeTimeout or ErrWkcMismatch.
func (r Result) Problem() error {
	switch {
	case r.Err != nil:
		return r.Err
	case r.WKC < r.Expected:
		return fmt.Errorf("%w: got %d, expected %d", fieldbus.ErrWkcMismatch, r.WKC, r.Expected)
	default:
		return nil
	}
}

// Exchange sends the outputs of g and receives its inputs, once.
// It makes no state decisions; callers act on the result.
func (s *Session) Exchange(g *fieldbus.Group) Result {
	start := time.Now()
	wkc, err := s.adapter.Exchange(g.ID, s.timing.ReturnTimeout)
	rt := time.Since(start)

	res := Result{
		Group:     g.ID,
		WKC:       wkc,
		Expected:  g.ExpectedWKC(),
		Roundtrip: rt,
	}
	if err != nil {
		if !errors.Is(err, fieldbus.ErrExchangeTimeout) {
			err = fmt.Errorf("%w: %v", fieldbus.ErrExchangeTimeout, err)
		}
		res.Err = err
		res.WKC = 0
	}
	return res
}
