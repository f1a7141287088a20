// internal/status/constants.go
package status

// Slave Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerDevice is the fixed number of logical slots per slave.
const SlotsPerDevice = 20

// ---- SLOT INDICES ----

// SlotHealthCode holds the slave health state.
const SlotHealthCode = 0

// SlotLastErrorCode holds the last AL status code reported by the slave.
const SlotLastErrorCode = 1

// SlotSecondsInError holds the duration (in seconds) the slave has been unhealthy.
const SlotSecondsInError = 2

// SlotALState holds the raw AL state (state nibble plus error flag).
const SlotALState = 3

// SlotLost is 1 while the slave is marked lost.
const SlotLost = 4

// ---- RESERVED RANGE ----

// Slots 5-10 are reserved for future use.
const SlotReservedStart = 5
const SlotReservedEnd = 10

// ---- DEVICE NAME ----

// SlotDeviceNameStart is the first slot used for the slave name.
// The name is always placed at the END of the status block.
const SlotDeviceNameStart = 11

// SlotDeviceNameSlots is the number of slots reserved for the slave name.
const SlotDeviceNameSlots = 8

// SlotDeviceNameEnd is the last slot used for the slave name (inclusive).
const SlotDeviceNameEnd = SlotDeviceNameStart + SlotDeviceNameSlots - 1

// ---- LIMITS ----

// DeviceNameMaxChars is the maximum number of ASCII characters stored for the name.
const DeviceNameMaxChars = 16

// SecondsInErrorMax is where seconds_in_error saturates. It never wraps.
const SecondsInErrorMax uint16 = 65535

// ---- HEALTH CODES ----

// HealthUnknown represents a slave not seen yet.
const HealthUnknown uint16 = 0

// HealthOK represents a slave in OPERATIONAL.
const HealthOK uint16 = 1

// HealthError represents a slave with the error flag set, or lost.
const HealthError uint16 = 2

// HealthStale represents a slave below OPERATIONAL: its process data is not exchanged.
const HealthStale uint16 = 3

// HealthDisabled represents a slave the master released (after shutdown).
const HealthDisabled uint16 = 4
