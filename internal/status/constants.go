// internal/status/constants.go
package status

// ---- HEALTH CODES ----

// HealthUnknown represents the boot state, before any cycle finished.
const HealthUnknown uint16 = 0

// HealthOK represents a cycle that finished without alarm.
const HealthOK uint16 = 1

// HealthError represents a cycle that failed.
const HealthError uint16 = 2

// HealthAlarm represents a cycle that finished with an alarm tripped.
const HealthAlarm uint16 = 3

// HealthDisabled represents a process with polling turned off.
const HealthDisabled uint16 = 4

// ---- LIMITS ----

// SecondsInErrorMax saturates the error timer; it never wraps.
const SecondsInErrorMax = 65535

// ErrorCodeGeneric is reported for errors that expose no code.
const ErrorCodeGeneric uint16 = 1

func HealthName(h uint16) string {
	switch h {
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthAlarm:
		return "alarm"
	case HealthDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}
