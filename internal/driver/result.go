package driver

import (
	"time"

	"riptide/internal/diag"
)

// CompileResult is what one engine run produced.
type CompileResult struct {
	// Problems the retention policy kept, in emission order.
	Problems []diag.Problem

	// Output is the primary artifact text. HasOutput distinguishes an
	// empty artifact from no artifact at all.
	Output    string
	HasOutput bool

	// CompileDuration covers the engine run, not session setup.
	CompileDuration time.Duration
}

// Succeeded reports whether the compile kept no errors. Warnings and the
// artifact do not factor in: a run can succeed without output.
func (r *CompileResult) Succeeded() bool {
	for _, p := range r.Problems {
		if p.Severity == diag.SevError {
			return false
		}
	}
	return true
}
