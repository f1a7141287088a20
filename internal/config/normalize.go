// internal/config/normalize.go
package config

import "fmt"

// Defaults. The timeouts follow the usual master stack constants.
const (
	DefaultAdapter          = "sim"
	DefaultIOMapBytes       = 4096
	DefaultCycleUs          = 5000
	DefaultStateTimeoutMs   = 2000
	DefaultReturnTimeoutUs  = 2000
	DefaultMonitorTimeoutUs = 500
	DefaultStatusTimeoutMs  = 1000
	DefaultToggleEvery      = 100

	// Slave names are carried in the status block; longer names are cut.
	MaxSlaveNameChars = 40
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	m := &cfg.Master
	if m.Adapter == "" {
		m.Adapter = DefaultAdapter
	}
	if m.IOMapBytes == 0 {
		m.IOMapBytes = DefaultIOMapBytes
	}
	if m.CycleUs == 0 {
		m.CycleUs = DefaultCycleUs
	}
	if m.StateTimeoutMs == 0 {
		m.StateTimeoutMs = DefaultStateTimeoutMs
	}
	if m.ReturnTimeoutUs == 0 {
		m.ReturnTimeoutUs = DefaultReturnTimeoutUs
	}
	if m.MonitorTimeoutUs == 0 {
		m.MonitorTimeoutUs = DefaultMonitorTimeoutUs
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Status.Enabled() && cfg.Status.TimeoutMs == 0 {
		cfg.Status.TimeoutMs = DefaultStatusTimeoutMs
	}

	if t := cfg.Application.Toggle; t != nil && t.Every == 0 {
		t.Every = DefaultToggleEvery
	}

	// ------------------------------------------------------------
	// SIMULATED SLAVE NAMES
	// ------------------------------------------------------------

	for i := range cfg.Simulation.Slaves {
		s := &cfg.Simulation.Slaves[i]
		if s.Name == "" {
			s.Name = fmt.Sprintf("SIM-%d", i+1)
		}
		if len(s.Name) > MaxSlaveNameChars {
			s.Name = s.Name[:MaxSlaveNameChars]
		}
	}
}
