// internal/status/board.go
package status

import (
	"sort"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

// Entry is the latest published state of one slave.
type Entry struct {
	Index int
	Name  string
	Snap  Snapshot
}

// Board hands slave snapshots from the control loop to the publisher.
// The loop never blocks on it: a store plus a coalesced wake-up.
type Board struct {
	entries *xsync.MapOf[int, Entry]
	updates chan struct{}
}

func NewBoard() *Board {
	return &Board{
		entries: xsync.NewMapOf[int, Entry](),
		updates: make(chan struct{}, 1),
	}
}

// PublishSlaves stores a copy of every slave record and wakes the reader.
func (b *Board) PublishSlaves(slaves []fieldbus.SlaveDescriptor) {
	for _, d := range slaves {
		b.entries.Store(d.Index, Entry{
			Index: d.Index,
			Name:  d.Name,
			Snap:  FromSlave(d),
		})
	}
	select {
	case b.updates <- struct{}{}:
	default:
	}
}

// Updates fires after one or more PublishSlaves calls.
func (b *Board) Updates() <-chan struct{} { return b.updates }

// Get returns the entry of slave index.
func (b *Board) Get(index int) (Entry, bool) { return b.entries.Load(index) }

// Len returns the number of slaves on the board.
func (b *Board) Len() int { return b.entries.Size() }

// Entries returns every entry in slave order.
func (b *Board) Entries() []Entry {
	out := make([]Entry, 0, b.entries.Size())
	b.entries.Range(func(_ int, e Entry) bool {
		out = append(out, e)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
