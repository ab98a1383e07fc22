// Package driver owns the compile-session lifecycle: an expensive Driver
// wraps one engine instance, cheap Sessions carry a single compile each.
//
// Основные части:
//   - Driver: держит SDK-таблицу, движок и семафор "один компил за раз";
//   - Session: одноразовая привязка исходника к прогону движка;
//   - CompileResult: проблемы, артефакт и время прогона;
//   - ResultCache: дисковый кеш результатов по хешу входа.
package driver

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/semaphore"

	"riptide/internal/diag"
	"riptide/internal/engine"
	"riptide/internal/engine/celengine"
	"riptide/internal/resolve"
	"riptide/internal/sdk"
)

// EntryURI is the well-known location of the snippet every session compiles.
const EntryURI = "resource:/main.cel"

// SDKRootURI is passed to the engine so it can ask for library files; the
// resolver strips resolve.LibraryRootPrefix before the table lookup.
const SDKRootURI = "sdk:" + resolve.LibraryRootPrefix

var (
	// ErrSessionUsed reports a second Compile on the same session.
	ErrSessionUsed = errors.New("session already used")
	// ErrDriverBusy reports a compile attempted while another is in flight.
	ErrDriverBusy = errors.New("driver is busy")
)

// Config describes a Driver. SDK is required, everything else has defaults.
type Config struct {
	// SDK is the library table sessions resolve sdk: URIs against.
	SDK *sdk.Table

	// Engine runs the actual compiles. Defaults to the cel engine.
	Engine engine.Engine

	// Options are passed to the engine verbatim on every run.
	Options []string

	// PrimaryExt names the artifact the result keeps. Defaults to the
	// engine's natural output when Engine is defaulted too.
	PrimaryExt string

	// Retention decides which reported problems the result keeps.
	// nil keeps warnings and errors.
	Retention diag.RetentionPolicy

	// QueueCompiles makes concurrent sessions wait for the driver instead
	// of failing with ErrDriverBusy.
	QueueCompiles bool

	// HTTPClient serves generic URI fetches. nil gets a modest timeout.
	HTTPClient *http.Client

	// Cache short-circuits repeat compiles of identical input. Optional.
	Cache *ResultCache
}

// Driver is the heavyweight object: one engine, one compile at a time.
// Create it once and mint sessions per compile.
type Driver struct {
	cfg       Config
	engine    engine.Engine
	sem       *semaphore.Weighted
	sdkDigest [sha256.Size]byte
}

// New validates cfg and builds a driver around it.
func New(cfg Config) (*Driver, error) {
	if cfg.SDK == nil {
		return nil, errors.New("driver config: SDK table is required")
	}
	eng := cfg.Engine
	if eng == nil {
		eng = celengine.New()
		if cfg.PrimaryExt == "" {
			cfg.PrimaryExt = celengine.PrimaryExt
		}
	}
	if cfg.PrimaryExt == "" {
		return nil, errors.New("driver config: PrimaryExt is required for a custom engine")
	}
	return &Driver{
		cfg:       cfg,
		engine:    eng,
		sem:       semaphore.NewWeighted(1),
		sdkDigest: cfg.SDK.Digest(),
	}, nil
}

// NewSession mints a one-shot session. Cheap; no compile work happens here.
func (d *Driver) NewSession() *Session {
	doc := resolve.NewDocument(EntryURI)
	return &Session{
		driver:   d,
		doc:      doc,
		resolver: resolve.New(doc, d.cfg.SDK, d.cfg.HTTPClient),
	}
}

// cacheKey hashes everything a result depends on: the source text, the SDK
// contents, the engine identity and the option list.
func (d *Driver) cacheKey(sourceText string) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(sourceText))
	h.Write([]byte{0})
	h.Write(d.sdkDigest[:])
	fmt.Fprintf(h, "%T", d.engine)
	for _, opt := range d.cfg.Options {
		h.Write([]byte{0})
		h.Write([]byte(opt))
	}
	var key [sha256.Size]byte
	h.Sum(key[:0])
	return key
}
