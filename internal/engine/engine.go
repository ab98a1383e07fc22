// Package engine defines the contract between the compile driver and the
// external compiler it wraps. The driver never looks inside the engine:
// everything it needs flows back through the invocation callbacks.
package engine

import (
	"context"
	"io"

	"riptide/internal/diag"
)

// ResolveFunc hands the engine the source text behind a URI.
type ResolveFunc func(ctx context.Context, uri string) (string, error)

// ReportFunc receives one diagnostic. uri == "" means the finding is not
// anchored to source; offsets are 0-based byte positions into the resolved
// text of uri.
type ReportFunc func(uri string, begin, end int, message string, sev diag.Severity)

// OpenFunc opens the output sink for a (name, extension) pair.
type OpenFunc func(name, ext string) io.WriteCloser

// Invocation carries everything one compile hands to the engine.
type Invocation struct {
	// EntryURI addresses the program text to compile.
	EntryURI string
	// SDKRootURI is the base the engine resolves library files against.
	SDKRootURI string
	// PackageRootURI is reserved for package-layout compiles; empty today.
	PackageRootURI string

	Resolve ResolveFunc
	Report  ReportFunc
	Open    OpenFunc

	// Options are engine-defined strings; unknown options are an error.
	Options []string
}

// Engine is the wrapped compiler. A run that diagnosed problems is still a
// successful run; the returned error marks host-side failure only (a
// resolution that could not be served, a broken invocation, a panic).
//
// Implementations are stateful and not re-entrant; the driver guarantees
// one Run at a time per engine value.
type Engine interface {
	Run(ctx context.Context, inv Invocation) error
}
