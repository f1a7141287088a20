// internal/fieldbus/target.go
package fieldbus

import "fmt"

// Target addresses either every slave at once or one slave by index.
// On the wire the broadcast is slave position 0; that encoding stays inside
// the adapter.
type Target struct {
	broadcast bool
	index     int
}

// Broadcast targets all slaves.
func Broadcast() Target { return Target{broadcast: true} }

// Slave targets one slave. Indices start at 1.
func Slave(index int) Target { return Target{index: index} }

// IsBroadcast reports whether t addresses all slaves.
func (t Target) IsBroadcast() bool { return t.broadcast }

// Index returns the slave index, or 0 for a broadcast target.
func (t Target) Index() int {
	if t.broadcast {
		return 0
	}
	return t.index
}

func (t Target) String() string {
	if t.broadcast {
		return "all"
	}
	return fmt.Sprintf("slave %d", t.index)
}
