// Package artifact captures what the engine writes through its output
// sinks. Exactly one logical output, the primary artifact, is kept; all
// other streams (source maps, deferred chunks) are accepted and dropped.
package artifact

import (
	"io"
	"strings"
	"sync"
)

// Collector hands out writable sinks keyed by (name, extension).
// The primary sink is the unnamed stream with the configured extension;
// opening it repeatedly appends to the same buffer in call order, because
// the engine may emit the artifact across several internal passes.
type Collector struct {
	primaryName string
	primaryExt  string

	mu     sync.Mutex
	buf    strings.Builder
	opened bool
}

// NewCollector builds a collector whose primary artifact is ("", ext).
func NewCollector(ext string) *Collector {
	return &Collector{primaryName: "", primaryExt: ext}
}

// Open returns the sink for (name, ext). Write-only: nothing is read back
// until the session finalizes and snapshots Primary.
func (c *Collector) Open(name, ext string) io.WriteCloser {
	if name == c.primaryName && ext == c.primaryExt {
		c.mu.Lock()
		c.opened = true
		c.mu.Unlock()
		return &primarySink{c: c}
	}
	return discardSink{}
}

// Primary returns the accumulated artifact text and whether the primary
// sink was ever opened. ("", true) is a legal outcome: an opened stream
// with no writes.
func (c *Collector) Primary() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String(), c.opened
}

type primarySink struct {
	c *Collector
}

func (s *primarySink) Write(p []byte) (int, error) {
	s.c.mu.Lock()
	defer s.c.mu.Unlock()
	return s.c.buf.Write(p)
}

func (s *primarySink) Close() error { return nil }

// discardSink accepts and drops everything; Close never fails.
type discardSink struct{}

func (discardSink) Write(p []byte) (int, error) { return len(p), nil }

func (discardSink) Close() error { return nil }
