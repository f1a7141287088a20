// cmd/ecmaster/main.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/tamzrod/ecat-master/internal/fieldbus"
)

// Exit codes, one per fatal error kind.
const (
	exitOK                 = 0
	exitFailure            = 1
	exitAdapterUnavailable = 2
	exitNoSlavesFound      = 3
	exitMappingFailure     = 4
	exitOperationalTimeout = 5
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ecmaster:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, fieldbus.ErrAdapterUnavailable):
		return exitAdapterUnavailable
	case errors.Is(err, fieldbus.ErrNoSlavesFound):
		return exitNoSlavesFound
	case errors.Is(err, fieldbus.ErrMappingFailure):
		return exitMappingFailure
	case errors.Is(err, fieldbus.ErrOperationalTimeout):
		return exitOperationalTimeout
	default:
		return exitFailure
	}
}
