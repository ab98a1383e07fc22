package diag

import "fmt"

// Problem is one finding reported during a compile.
// It is immutable by convention: constructed, appended to a result, rendered.
type Problem struct {
	// URI names the resource the problem is anchored to.
	// Пустая строка — проблема без привязки к источнику.
	URI string
	// Begin and End are 0-based byte offsets into the resolved text of URI,
	// Begin inclusive, End exclusive. Meaningful only when URI is non-empty.
	Begin int
	End   int

	Message  string
	Severity Severity
}

// New constructs an unanchored problem.
func New(message string, sev Severity) Problem {
	return Problem{Message: message, Severity: sev}
}

// NewAnchored constructs a problem tied to a range inside uri.
// The range must satisfy 0 <= begin <= end; violations fail here rather
// than surfacing later as a corrupt record on the transport boundary.
func NewAnchored(uri string, begin, end int, message string, sev Severity) (Problem, error) {
	if uri == "" {
		return Problem{}, fmt.Errorf("anchored problem requires a uri")
	}
	if begin < 0 || end < begin {
		return Problem{}, fmt.Errorf("invalid problem range [%d, %d) in %s", begin, end, uri)
	}
	return Problem{URI: uri, Begin: begin, End: end, Message: message, Severity: sev}, nil
}

// Anchored reports whether the problem carries a source anchor.
func (p Problem) Anchored() bool { return p.URI != "" }

// String renders a compact single-line form, stable enough for logs.
func (p Problem) String() string {
	if !p.Anchored() {
		return fmt.Sprintf("%s: %s", p.Severity, p.Message)
	}
	return fmt.Sprintf("%s %s[%d..%d]: %s", p.Severity, p.URI, p.Begin, p.End, p.Message)
}
