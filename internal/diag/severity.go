package diag

// Severity describes how serious a reported problem is.
// The order is ascending: a higher value is a more severe finding.
type Severity uint8

const (
	// SevVerboseInfo is chatty engine output nobody acts on.
	SevVerboseInfo Severity = iota
	// SevHint is a style suggestion.
	SevHint
	// SevInfo is a neutral informational note.
	SevInfo
	// SevWarning is suspicious but compilable code.
	SevWarning
	// SevError prevents the compile from succeeding.
	SevError
	// SevCrash reports that the engine itself fell over while diagnosing.
	SevCrash
)

// String returns the wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SevVerboseInfo:
		return "VERBOSE_INFO"
	case SevHint:
		return "HINT"
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	case SevCrash:
		return "CRASH"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity maps a wire name back to a Severity.
// Unknown names return ok=false; transport decoding treats those as
// SevError so a record from a newer engine never downgrades a finding.
func ParseSeverity(name string) (Severity, bool) {
	switch name {
	case "VERBOSE_INFO":
		return SevVerboseInfo, true
	case "HINT":
		return SevHint, true
	case "INFO":
		return SevInfo, true
	case "WARNING":
		return SevWarning, true
	case "ERROR":
		return SevError, true
	case "CRASH":
		return SevCrash, true
	default:
		return SevError, false
	}
}
