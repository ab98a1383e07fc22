package resolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"riptide/internal/sdk"
	"riptide/internal/source"
)

// Backend serves one URI scheme. raw is the unparsed URI as the engine
// sent it, u the parsed form; implementations return resolver errors only.
type Backend interface {
	Resolve(ctx context.Context, raw string, u *url.URL) (string, error)
}

// Document is the in-memory backend for the resource: scheme. It serves a
// single text under one fixed URI, the "current file" the session binds
// before invoking the engine. Any other resource: URI is unhandled.
type Document struct {
	uri string

	mu    sync.RWMutex
	text  string
	bound bool
}

// NewDocument creates an empty document addressed by uri.
func NewDocument(uri string) *Document {
	return &Document{uri: uri}
}

// URI returns the fixed address of the document.
func (d *Document) URI() string { return d.uri }

// Bind stores the text verbatim. No normalization: offsets the engine
// reports must stay valid against the caller's original string.
func (d *Document) Bind(text string) {
	d.mu.Lock()
	d.text = text
	d.bound = true
	d.mu.Unlock()
}

func (d *Document) Resolve(_ context.Context, raw string, _ *url.URL) (string, error) {
	if raw != d.uri {
		return "", errUnhandled(raw)
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.bound {
		return "", errNotFound(raw)
	}
	return d.text, nil
}

// libraryBackend serves the sdk: scheme from a pre-loaded table.
// sdk:/lib/env.celdecl → таблица по ключу "env.celdecl".
type libraryBackend struct {
	table  *sdk.Table
	prefix string
}

func (b *libraryBackend) Resolve(_ context.Context, raw string, u *url.URL) (string, error) {
	path := u.Path
	if path == "" {
		path = u.Opaque
	}
	path = strings.TrimPrefix(path, b.prefix)
	text, ok := b.table.Lookup(path)
	if !ok {
		return "", errNotFound(raw)
	}
	return text, nil
}

// reservedBackend answers for schemes the driver claims but does not
// implement yet. Callers must treat this as a deliberate limitation.
type reservedBackend struct{}

func (reservedBackend) Resolve(_ context.Context, raw string, _ *url.URL) (string, error) {
	return "", errUnhandled(raw)
}

// maxFetchBytes caps the generic fetch so a misconfigured import cannot
// balloon the process.
const maxFetchBytes = 8 << 20

// fetchBackend is the catch-all: a best-effort text fetch over HTTP(S).
type fetchBackend struct {
	client *http.Client
}

func (b *fetchBackend) Resolve(ctx context.Context, raw string, u *url.URL) (string, error) {
	switch u.Scheme {
	case "http", "https":
	default:
		return "", errFetch(raw, fmt.Errorf("scheme %q is not fetchable", u.Scheme))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return "", errFetch(raw, err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", errFetch(raw, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", errNotFound(raw)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", errFetch(raw, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes+1))
	if err != nil {
		return "", errFetch(raw, err)
	}
	if len(body) > maxFetchBytes {
		return "", errFetch(raw, fmt.Errorf("response exceeds %d bytes", maxFetchBytes))
	}
	text, err := source.Normalize(string(body))
	if err != nil {
		return "", errFetch(raw, err)
	}
	return text, nil
}
