package diag

// RetentionPolicy decides which severities a Sink keeps.
type RetentionPolicy func(Severity) bool

// RetainActionable keeps warnings and errors only. This is the default:
// hints, infos and crash chatter are accepted and dropped.
func RetainActionable(s Severity) bool {
	return s == SevWarning || s == SevError
}

// RetainAll keeps every severity.
func RetainAll(Severity) bool { return true }

// Sink accumulates problems emitted by the engine during one compile.
//
// Record never fails and never filters beyond the retention policy: retained
// problems keep emission order, duplicates included. The engine owns the only
// writing goroutine for the duration of a compile, so Sink does no locking.
type Sink struct {
	retain   RetentionPolicy
	problems []Problem
}

// NewSink builds a sink with the given retention policy.
// A nil policy means RetainActionable.
func NewSink(policy RetentionPolicy) *Sink {
	if policy == nil {
		policy = RetainActionable
	}
	return &Sink{retain: policy}
}

// Record accepts one engine-reported diagnostic. Malformed ranges are
// recorded as-is; the engine is trusted here, validation belongs to the
// Problem constructors used by in-process callers.
func (s *Sink) Record(uri string, begin, end int, message string, sev Severity) {
	if !s.retain(sev) {
		return
	}
	s.problems = append(s.problems, Problem{
		URI:      uri,
		Begin:    begin,
		End:      end,
		Message:  message,
		Severity: sev,
	})
}

// Problems returns a copy of the retained problems in emission order.
func (s *Sink) Problems() []Problem {
	out := make([]Problem, len(s.problems))
	copy(out, s.problems)
	return out
}

// Len reports the number of retained problems.
func (s *Sink) Len() int { return len(s.problems) }

// Succeeded reports whether no retained problem is an error.
func (s *Sink) Succeeded() bool {
	for _, p := range s.problems {
		if p.Severity == SevError {
			return false
		}
	}
	return true
}
