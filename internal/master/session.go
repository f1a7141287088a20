// internal/master/session.go
package master

import (
	"time"

	"github.com/google/uuid"

	"github.com/tamzrod/ecat-master/internal/eventlog"
	"github.com/tamzrod/ecat-master/internal/fieldbus"
	"github.com/tamzrod/ecat-master/internal/logger"
)

// Timing holds the bounded waits used by the master.
type Timing struct {
	// StateTimeout is the baseline state change timeout.
	StateTimeout time.Duration
	// ReturnTimeout bounds the receive wait of one exchange.
	ReturnTimeout time.Duration
	// MonitorTimeout bounds a single reconfigure/recover attempt.
	MonitorTimeout time.Duration
}

// DefaultTiming matches the usual master stack constants.
var DefaultTiming = Timing{
	StateTimeout:   2 * time.Second,
	ReturnTimeout:  2 * time.Millisecond,
	MonitorTimeout: 500 * time.Microsecond,
}

// Options configures BringUp.
type Options struct {
	IOMapBytes int
	Timing     Timing
	Logger     logger.Logger
	Events     eventlog.Recorder
}

func (o Options) withDefaults() Options {
	if o.IOMapBytes <= 0 {
		o.IOMapBytes = 4096
	}
	if o.Timing.StateTimeout <= 0 {
		o.Timing.StateTimeout = DefaultTiming.StateTimeout
	}
	if o.Timing.ReturnTimeout <= 0 {
		o.Timing.ReturnTimeout = DefaultTiming.ReturnTimeout
	}
	if o.Timing.MonitorTimeout <= 0 {
		o.Timing.MonitorTimeout = DefaultTiming.MonitorTimeout
	}
	if o.Logger == nil {
		o.Logger = logger.Nop()
	}
	if o.Events == nil {
		o.Events = eventlog.Nop()
	}
	return o
}

// Session is the root object of a running master. It owns the network
// handle, the slave registry, the groups and the process image. All of it is
// touched from one goroutine only.
type Session struct {
	id       string
	adapter  fieldbus.Adapter
	registry *fieldbus.Registry
	groups   []*fieldbus.Group
	image    *fieldbus.ProcessImage
	timing   Timing
	log      logger.Logger
	events   eventlog.Recorder
	closed   bool
}

func newSession(a fieldbus.Adapter, iface string, opts Options) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		adapter: a,
		timing:  opts.Timing,
		log:     opts.Logger.With("session", id, "interface", iface),
		events:  opts.Events,
	}
}

// ID returns the session UUID stamped on every journal event.
func (s *Session) ID() string { return s.id }

// Registry returns the slave registry.
func (s *Session) Registry() *fieldbus.Registry { return s.registry }

// Groups returns the mapped groups in ascending id order.
func (s *Session) Groups() []*fieldbus.Group { return s.groups }

// Image returns the process image.
func (s *Session) Image() *fieldbus.ProcessImage { return s.image }

// Timing returns the bounded waits of the session.
func (s *Session) Timing() Timing { return s.timing }

// Inputs returns the input region of g.
func (s *Session) Inputs(g *fieldbus.Group) (fieldbus.Region, error) {
	return s.image.Region(g.Inputs)
}

// Outputs returns the output region of g.
func (s *Session) Outputs(g *fieldbus.Group) (fieldbus.Outputs, error) {
	return s.image.Outputs(g.Outputs)
}

// SlaveOutputs returns the output region of one slave.
func (s *Session) SlaveOutputs(index int) (fieldbus.Outputs, error) {
	d, err := s.registry.Get(index)
	if err != nil {
		return fieldbus.Outputs{}, err
	}
	return s.image.Outputs(d.Outputs)
}

func (s *Session) record(e eventlog.Event) {
	e.Timestamp = time.Now()
	e.SessionID = s.id
	s.events.Record(e)
}
