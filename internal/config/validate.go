// internal/config/validate.go
package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Status block geometry that bounds status.base_slot. Kept in sync with
// internal/status (SlotsPerDevice).
const statusSlotsPerDevice = 20

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}

	// ------------------------------------------------------------
	// MASTER TIMING
	// ------------------------------------------------------------

	m := cfg.Master
	for _, f := range []struct {
		name string
		v    int
	}{
		{"iomap_bytes", m.IOMapBytes},
		{"cycle_us", m.CycleUs},
		{"state_timeout_ms", m.StateTimeoutMs},
		{"return_timeout_us", m.ReturnTimeoutUs},
		{"monitor_timeout_us", m.MonitorTimeoutUs},
		{"bringup_retries", m.BringUpRetries},
		{"stats_every", m.StatsEvery},
	} {
		if f.v < 0 {
			return fmt.Errorf("master.%s must be >= 0, got %d", f.name, f.v)
		}
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q: want debug|info|warn|error", cfg.Logging.Level)
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("logging.format %q: want json|console", cfg.Logging.Format)
	}

	// ------------------------------------------------------------
	// STATUS PUBLISHING (OPT-IN)
	// ------------------------------------------------------------

	if cfg.Status.Enabled() {
		u, err := url.Parse(cfg.Status.Endpoint)
		if err != nil {
			return fmt.Errorf("status.endpoint %q: %w", cfg.Status.Endpoint, err)
		}
		switch u.Scheme {
		case "tcp":
			if u.Host == "" {
				return fmt.Errorf("status.endpoint %q: missing host:port", cfg.Status.Endpoint)
			}
		case "rtu":
			if u.Path == "" {
				return fmt.Errorf("status.endpoint %q: missing serial device path", cfg.Status.Endpoint)
			}
		default:
			return fmt.Errorf("status.endpoint %q: scheme must be tcp or rtu", cfg.Status.Endpoint)
		}
		if cfg.Status.TimeoutMs < 0 {
			return fmt.Errorf("status.timeout_ms must be >= 0, got %d", cfg.Status.TimeoutMs)
		}
		if int(cfg.Status.BaseSlot)*statusSlotsPerDevice > 0xFFFF {
			return fmt.Errorf("status.base_slot %d: block address exceeds register space", cfg.Status.BaseSlot)
		}
	}

	// ------------------------------------------------------------
	// APPLICATION
	// ------------------------------------------------------------

	if t := cfg.Application.Toggle; t != nil {
		if t.Slave < 1 {
			return fmt.Errorf("application.toggle.slave must be >= 1, got %d", t.Slave)
		}
		if t.ByteOffset < 0 {
			return fmt.Errorf("application.toggle.byte_offset must be >= 0, got %d", t.ByteOffset)
		}
		if t.Bit > 7 {
			return fmt.Errorf("application.toggle.bit must be 0..7, got %d", t.Bit)
		}
		if t.Every < 0 {
			return fmt.Errorf("application.toggle.every must be >= 0, got %d", t.Every)
		}
	}

	// ------------------------------------------------------------
	// SIMULATED SEGMENT GEOMETRY
	// ------------------------------------------------------------

	total := 0
	for i, s := range cfg.Simulation.Slaves {
		idx := i + 1

		// name sanity (ASCII only)
		for j := 0; j < len(s.Name); j++ {
			if s.Name[j] > 0x7F {
				return fmt.Errorf("simulation slave %d: name must contain ASCII characters only", idx)
			}
		}

		if s.OutputBytes < 0 || s.InputBytes < 0 {
			return fmt.Errorf("simulation slave %d: output/input bytes must be >= 0", idx)
		}
		if s.DelayCycles < 0 {
			return fmt.Errorf("simulation slave %d: delay_cycles must be >= 0", idx)
		}

		for _, f := range s.Faults {
			switch f.Kind {
			case "drop", "error", "return":
			default:
				return fmt.Errorf("simulation slave %d: unknown fault kind %q", idx, f.Kind)
			}
			if f.AtCycle == 0 {
				return fmt.Errorf("simulation slave %d: fault %q at_cycle must be > 0", idx, f.Kind)
			}
		}

		total += s.OutputBytes + s.InputBytes
	}

	if m.IOMapBytes > 0 && total > m.IOMapBytes {
		return fmt.Errorf(
			"simulation process data %d bytes exceeds master.iomap_bytes %d",
			total,
			m.IOMapBytes,
		)
	}

	return nil
}
