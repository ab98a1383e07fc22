// Package sdk holds the library source table the resolver serves under the
// sdk: scheme, plus the loaders that populate it from disk or from the
// bundle embedded in the binary.
package sdk

import (
	"crypto/sha256"
	"sort"
)

// Table is an immutable path -> sourceText lookup. Paths are
// slash-separated and relative to the library root, e.g. "env.celdecl"
// or "examples/strings.cel".
type Table struct {
	sources map[string]string
}

// New builds a table from a path -> text map. The map is copied so later
// mutation by the caller cannot break resolution determinism.
func New(sources map[string]string) *Table {
	copied := make(map[string]string, len(sources))
	for path, text := range sources {
		copied[path] = text
	}
	return &Table{sources: copied}
}

// Lookup returns the source text stored under path.
func (t *Table) Lookup(path string) (string, bool) {
	text, ok := t.sources[path]
	return text, ok
}

// Len reports the number of library files.
func (t *Table) Len() int { return len(t.sources) }

// Paths returns all library paths in sorted order.
func (t *Table) Paths() []string {
	out := make([]string, 0, len(t.sources))
	for path := range t.sources {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Digest returns a stable content hash of the whole table:
// H(path, 0x00, text, 0x00, ...) над отсортированными путями.
// Used as a cache key component so a changed SDK invalidates cached results.
func (t *Table) Digest() [32]byte {
	h := sha256.New()
	for _, path := range t.Paths() {
		h.Write([]byte(path))
		h.Write([]byte{0})
		h.Write([]byte(t.sources[path]))
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
