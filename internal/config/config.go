// internal/config/config.go
package config

import "time"

type Config struct {
	Master      MasterConfig      `yaml:"master"`
	Logging     LoggingConfig     `yaml:"logging"`
	EventLog    EventLogConfig    `yaml:"event_log"`
	Status      StatusConfig      `yaml:"status"`
	Application ApplicationConfig `yaml:"application"`
	Simulation  SimulationConfig  `yaml:"simulation"`
}

// ---- MASTER ----

type MasterConfig struct {
	Interface string `yaml:"interface"`
	Adapter   string `yaml:"adapter"` // registered adapter name; default "sim"

	IOMapBytes int `yaml:"iomap_bytes"`

	CycleUs    int    `yaml:"cycle_us"`
	Iterations uint64 `yaml:"iterations"` // 0 = until stopped

	StateTimeoutMs   int `yaml:"state_timeout_ms"`
	ReturnTimeoutUs  int `yaml:"return_timeout_us"`
	MonitorTimeoutUs int `yaml:"monitor_timeout_us"`

	BringUpRetries int `yaml:"bringup_retries"`
	StatsEvery     int `yaml:"stats_every"` // cycles between statistics lines; 0 = shutdown only
}

func (m MasterConfig) Cycle() time.Duration {
	return time.Duration(m.CycleUs) * time.Microsecond
}

func (m MasterConfig) StateTimeout() time.Duration {
	return time.Duration(m.StateTimeoutMs) * time.Millisecond
}

func (m MasterConfig) ReturnTimeout() time.Duration {
	return time.Duration(m.ReturnTimeoutUs) * time.Microsecond
}

func (m MasterConfig) MonitorTimeout() time.Duration {
	return time.Duration(m.MonitorTimeoutUs) * time.Microsecond
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---- EVENT LOG ----

type EventLogConfig struct {
	Path string `yaml:"path"`
}

// ---- STATUS (optional, opt-in) ----

type StatusConfig struct {
	Endpoint  string `yaml:"endpoint"` // tcp://host:port or rtu:///dev/ttyX?baud=19200
	UnitID    uint8  `yaml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot"` // slot of slave 1; slave n uses base_slot+n-1
	TimeoutMs int    `yaml:"timeout_ms"`
}

// Enabled reports whether status publishing was configured.
func (s StatusConfig) Enabled() bool { return s.Endpoint != "" }

// ---- APPLICATION ----

type ApplicationConfig struct {
	Toggle *ToggleConfig `yaml:"toggle"`
}

// ToggleConfig drives one output bit high every Nth valid cycle.
type ToggleConfig struct {
	Slave      int   `yaml:"slave"`
	ByteOffset int   `yaml:"byte_offset"`
	Bit        uint8 `yaml:"bit"`
	Every      int   `yaml:"every"` // default 100
}

// ---- SIMULATION ----

type SimulationConfig struct {
	Slaves []SimSlaveConfig `yaml:"slaves"`
}

type SimSlaveConfig struct {
	Name        string `yaml:"name"`
	VendorID    uint32 `yaml:"vendor_id"`
	ProductID   uint32 `yaml:"product_id"`
	Revision    uint32 `yaml:"revision"`
	Group       uint8  `yaml:"group"`
	OutputBytes int    `yaml:"output_bytes"`
	InputBytes  int    `yaml:"input_bytes"`
	DelayCycles int    `yaml:"delay_cycles"` // exchanges a state change takes

	Faults []SimFaultConfig `yaml:"faults"`
}

// SimFaultConfig injects one fault at a given exchange count.
type SimFaultConfig struct {
	AtCycle uint64 `yaml:"at_cycle"`
	Kind    string `yaml:"kind"` // drop | error | return
	ALCode  uint16 `yaml:"al_code"`
}
