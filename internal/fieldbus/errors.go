// internal/fieldbus/errors.go
package fieldbus

import (
	"errors"
	"fmt"
)

// Bring-up errors. All of them are fatal to the session.
var (
	// ErrAdapterUnavailable indicates that no adapter matched the interface name
	// or the link could not be opened.
	ErrAdapterUnavailable = errors.New("adapter unavailable")

	// ErrNoSlavesFound indicates that the scan returned zero slaves.
	ErrNoSlavesFound = errors.New("no slaves found")

	// ErrMappingFailure indicates that process data mapping could not be completed.
	ErrMappingFailure = errors.New("process data mapping failed")

	// ErrOperationalTimeout indicates that the network did not reach OPERATIONAL
	// within the poll budget.
	ErrOperationalTimeout = errors.New("operational state not reached")
)

// Steady state errors. They are handled inside the control loop.
var (
	// ErrExchangeTimeout indicates that no frame returned within the receive timeout.
	ErrExchangeTimeout = errors.New("exchange timeout")

	// ErrWkcMismatch indicates a working counter below the expected value.
	ErrWkcMismatch = errors.New("working counter mismatch")

	// ErrSlaveLost indicates a slave whose state reads back as NONE.
	ErrSlaveLost = errors.New("slave lost")

	// ErrRecoveryFailed indicates that reconfigure or recover did not restore a slave.
	ErrRecoveryFailed = errors.New("slave recovery failed")
)

var (
	// ErrOutOfRange is returned by process image accessors for offsets outside a region.
	ErrOutOfRange = errors.New("process image offset out of range")

	// ErrUnknownSlave is returned when a slave index is not in the registry.
	ErrUnknownSlave = errors.New("unknown slave")
)

// SlaveError ties a per-slave fault to the slave index.
type SlaveError struct {
	Index int
	Err   error
}

func (e *SlaveError) Error() string {
	return fmt.Sprintf("slave %d: %v", e.Index, e.Err)
}

func (e *SlaveError) Unwrap() error { return e.Err }
