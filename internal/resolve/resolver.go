// Package resolve turns the URIs the engine asks for into source text.
//
// Dispatch is by URI scheme through a registry of backends: resource: is
// the session's bound document, sdk: the pre-loaded library table, a fixed
// set of schemes is reserved, and everything else falls through to a
// generic HTTP fetch. New schemes plug in via Register without touching
// the dispatcher.
package resolve

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"riptide/internal/sdk"
)

// LibraryRootPrefix is the path prefix the sdk: backend strips before the
// table lookup, mirroring the layout of sdk:/lib/... URIs.
const LibraryRootPrefix = "/lib/"

// reservedSchemes always fail with unhandled-scheme: file access is out of
// contract, dart: and cel: belong to toolchains, package: to future imports.
var reservedSchemes = []string{"file", "dart", "cel", "package"}

// Resolver is the scheme dispatcher handed to the engine as its source
// provider. It is safe for concurrent use; fetched texts are memoized so a
// URI resolves to the same text for the resolver's whole lifetime.
type Resolver struct {
	backends map[string]Backend
	fallback Backend

	mu   sync.Mutex
	memo map[string]string
}

// New wires the standard backends: doc under resource:, table under sdk:,
// the reserved schemes, and an HTTP fetch fallback. A nil client gets a
// conservative default timeout.
func New(doc *Document, table *sdk.Table, client *http.Client) *Resolver {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	r := &Resolver{
		backends: make(map[string]Backend, 8),
		fallback: &fetchBackend{client: client},
		memo:     make(map[string]string),
	}
	r.Register("resource", doc)
	r.Register("sdk", &libraryBackend{table: table, prefix: LibraryRootPrefix})
	for _, scheme := range reservedSchemes {
		r.Register(scheme, reservedBackend{})
	}
	return r
}

// Register binds a backend to a scheme, replacing any previous one.
func (r *Resolver) Register(scheme string, b Backend) {
	r.backends[scheme] = b
}

// Resolve returns the text behind uri or a *resolve.Error.
func (r *Resolver) Resolve(ctx context.Context, uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return "", errUnhandled(uri)
	}

	if backend, ok := r.backends[u.Scheme]; ok {
		return backend.Resolve(ctx, uri, u)
	}

	// фоллбек-фетч мемоизируется: повторный импорт того же URI обязан
	// увидеть тот же текст даже если удалённый ресурс изменился
	r.mu.Lock()
	if text, ok := r.memo[uri]; ok {
		r.mu.Unlock()
		return text, nil
	}
	r.mu.Unlock()

	text, err := r.fallback.Resolve(ctx, uri, u)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.memo[uri] = text
	r.mu.Unlock()
	return text, nil
}
