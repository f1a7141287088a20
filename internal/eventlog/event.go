// internal/eventlog/event.go
package eventlog

import "time"

// Event is one journal record. CBOR encoding uses integer keys.
type Event struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	SessionID string    `cbor:"2,keyasint"`
	Kind      Kind      `cbor:"3,keyasint"`

	Slave    int    `cbor:"4,keyasint,omitempty"`
	Group    uint8  `cbor:"5,keyasint,omitempty"`
	State    uint16 `cbor:"6,keyasint,omitempty"`
	ALStatus uint16 `cbor:"7,keyasint,omitempty"`
	WKC      int    `cbor:"8,keyasint,omitempty"`
	Expected int    `cbor:"9,keyasint,omitempty"`
	Detail   string `cbor:"10,keyasint,omitempty"`
}

// Kind classifies an event.
type Kind uint8

const (
	KindBringUp Kind = iota + 1
	KindBringUpFailed
	KindShutdown
	KindWkcMismatch
	KindExchangeTimeout
	KindErrorAcked
	KindPromoted
	KindReconfigured
	KindReconfigureFailed
	KindLost
	KindRecovered
	KindRecoverFailed
	KindFound
	KindResumed
)

var kindNames = map[Kind]string{
	KindBringUp:           "BRING_UP",
	KindBringUpFailed:     "BRING_UP_FAILED",
	KindShutdown:          "SHUTDOWN",
	KindWkcMismatch:       "WKC_MISMATCH",
	KindExchangeTimeout:   "EXCHANGE_TIMEOUT",
	KindErrorAcked:        "ERROR_ACKED",
	KindPromoted:          "PROMOTED",
	KindReconfigured:      "RECONFIGURED",
	KindReconfigureFailed: "RECONFIGURE_FAILED",
	KindLost:              "LOST",
	KindRecovered:         "RECOVERED",
	KindRecoverFailed:     "RECOVER_FAILED",
	KindFound:             "FOUND",
	KindResumed:           "RESUMED",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "UNKNOWN"
}

// Recorder accepts journal events.
type Recorder interface {
	Record(e Event)
}

// Nop returns a recorder that drops everything.
func Nop() Recorder { return nopRecorder{} }

type nopRecorder struct{}

func (nopRecorder) Record(Event) {}

// Memory keeps events in a slice. Used by tests and the dry-run tooling.
type Memory struct {
	Events []Event
}

func (m *Memory) Record(e Event) { m.Events = append(m.Events, e) }

// Kinds returns the kinds recorded so far, in order.
func (m *Memory) Kinds() []Kind {
	out := make([]Kind, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Kind
	}
	return out
}
