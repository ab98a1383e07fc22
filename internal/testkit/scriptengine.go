// Package testkit provides a scriptable engine for exercising the driver
// without the real cel toolchain in the loop.
package testkit

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"

	"riptide/internal/diag"
	"riptide/internal/engine"
)

// SinkSpec names one extra output stream a scripted run opens.
type SinkSpec struct {
	Name    string
	Ext     string
	Content string
}

// ScriptEngine replays a fixed scenario: resolve some URIs, report some
// problems, write some output, optionally fail. It also records how many
// runs happened and how many overlapped, so tests can prove the driver
// never lets two invocations interleave.
//
// The zero value is a run that does nothing and succeeds.
type ScriptEngine struct {
	// ResolveEntry fetches the entry text first, like the real engine.
	ResolveEntry bool
	// ResolveURIs are fetched in order after the entry; any failure aborts
	// the run with the resolver's error (host-side failure).
	ResolveURIs []string
	// Problems are reported in order, verbatim.
	Problems []diag.Problem
	// Chunks are written to the primary sink, one Open call per chunk.
	Chunks []string
	// PrimaryExt defaults to ".cel".
	PrimaryExt string
	// ExtraSinks are opened and written after the chunks.
	ExtraSinks []SinkSpec
	// Err, when set, is returned after all callbacks ran.
	Err error
	// Gate, when non-nil, blocks the run until the channel is closed.
	Gate <-chan struct{}
	// IgnoreCancel makes the gated wait sit out a context cancellation,
	// simulating an engine that cannot be interrupted.
	IgnoreCancel bool

	runs        atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

var _ engine.Engine = (*ScriptEngine)(nil)

func (e *ScriptEngine) Run(ctx context.Context, inv engine.Invocation) error {
	cur := e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	for {
		peak := e.maxInFlight.Load()
		if cur <= peak || e.maxInFlight.CompareAndSwap(peak, cur) {
			break
		}
	}
	e.runs.Add(1)

	if e.Gate != nil {
		if e.IgnoreCancel {
			<-e.Gate
		} else {
			select {
			case <-e.Gate:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if e.ResolveEntry {
		if _, err := inv.Resolve(ctx, inv.EntryURI); err != nil {
			return fmt.Errorf("entry source: %w", err)
		}
	}
	for _, uri := range e.ResolveURIs {
		if _, err := inv.Resolve(ctx, uri); err != nil {
			return fmt.Errorf("import %s: %w", uri, err)
		}
	}

	for _, p := range e.Problems {
		inv.Report(p.URI, p.Begin, p.End, p.Message, p.Severity)
	}

	ext := e.PrimaryExt
	if ext == "" {
		ext = ".cel"
	}
	for _, chunk := range e.Chunks {
		w := inv.Open("", ext)
		if _, err := io.WriteString(w, chunk); err != nil {
			return fmt.Errorf("primary sink: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("primary sink close: %w", err)
		}
	}
	for _, extra := range e.ExtraSinks {
		w := inv.Open(extra.Name, extra.Ext)
		if _, err := io.WriteString(w, extra.Content); err != nil {
			return fmt.Errorf("sink %s%s: %w", extra.Name, extra.Ext, err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("sink %s%s close: %w", extra.Name, extra.Ext, err)
		}
	}

	return e.Err
}

// Runs reports how many invocations started.
func (e *ScriptEngine) Runs() int32 { return e.runs.Load() }

// MaxInFlight reports the peak number of overlapping invocations.
func (e *ScriptEngine) MaxInFlight() int32 { return e.maxInFlight.Load() }
