// internal/adapter/adapter.go
package adapter

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tamzrod/ecat-master/internal/config"
	"github.com/tamzrod/ecat-master/internal/fieldbus"
	"github.com/tamzrod/ecat-master/internal/sim"
)

// Sim is the name of the in-process simulated segment.
const Sim = "sim"

// Factory builds an adapter from the loaded config.
// ONE attempt per call; the adapter is not opened yet.
type Factory func(c *config.Config) (fieldbus.Adapter, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

func init() {
	MustRegister(Sim, func(c *config.Config) (fieldbus.Adapter, error) {
		seg, err := sim.NewFromConfig(c.Simulation)
		if err != nil {
			return nil, err
		}
		return seg, nil
	})
}

// Register makes a stack binding selectable by name (master.adapter).
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("adapter: name and factory required")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[name]; dup {
		return fmt.Errorf("adapter: %q already registered", name)
	}
	factories[name] = f
	return nil
}

// MustRegister is Register for package init functions.
func MustRegister(name string, f Factory) {
	if err := Register(name, f); err != nil {
		panic(err)
	}
}

// Build constructs the adapter named name.
func Build(name string, c *config.Config) (fieldbus.Adapter, error) {
	mu.RLock()
	f, ok := factories[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown adapter %q (available: %s)",
			fieldbus.ErrAdapterUnavailable, name, strings.Join(Names(), ", "))
	}
	a, err := f(c)
	if err != nil {
		return nil, fmt.Errorf("adapter %s: %w", name, err)
	}
	return a, nil
}

// Names lists the registered adapters in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for n := range factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
