// internal/app/toggle.go
package app

import (
	"github.com/tamzrod/ecat-master/internal/config"
	"github.com/tamzrod/ecat-master/internal/fieldbus"
	"github.com/tamzrod/ecat-master/internal/logger"
)

// Resolver finds the output region and group of one slave.
// *master.Session implements it.
type Resolver interface {
	SlaveOutputs(index int) (fieldbus.Outputs, error)
	Registry() *fieldbus.Registry
}

// Toggle drives one output bit high on every Nth valid cycle and low on
// the others. A bad address is reported once, then the toggle goes idle.
type Toggle struct {
	cfg config.ToggleConfig
	res Resolver
	log logger.Logger

	out      fieldbus.Outputs
	group    uint8
	resolved bool
	disabled bool
}

func NewToggle(cfg config.ToggleConfig, res Resolver, log logger.Logger) *Toggle {
	if cfg.Every <= 0 {
		cfg.Every = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Toggle{
		cfg: cfg,
		res: res,
		log: log.With("app", "toggle", "slave", cfg.Slave),
	}
}

// Disabled reports whether the toggle gave up on its address.
func (t *Toggle) Disabled() bool { return t.disabled }

// Cycle implements master.Application.
func (t *Toggle) Cycle(iter uint64, g *fieldbus.Group, in fieldbus.Region, out fieldbus.Outputs) {
	if t.disabled {
		return
	}
	if !t.resolved && !t.resolve() {
		return
	}
	if g.ID != t.group {
		return
	}

	on := iter%uint64(t.cfg.Every) == 0
	if err := t.out.SetBit(t.cfg.ByteOffset, t.cfg.Bit, on); err != nil {
		t.disable(err)
	}
}

func (t *Toggle) resolve() bool {
	d, err := t.res.Registry().Get(t.cfg.Slave)
	if err != nil {
		t.disable(err)
		return false
	}
	out, err := t.res.SlaveOutputs(t.cfg.Slave)
	if err != nil {
		t.disable(err)
		return false
	}
	t.out = out
	t.group = d.Group
	t.resolved = true
	return true
}

func (t *Toggle) disable(err error) {
	t.disabled = true
	t.log.Error("output toggle disabled",
		"byte_offset", t.cfg.ByteOffset,
		"bit", t.cfg.Bit,
		"err", err,
	)
}
