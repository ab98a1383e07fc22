package resolve

import "fmt"

// Kind classifies why a resolution failed.
type Kind uint8

const (
	// KindUnhandledScheme marks URIs no backend is willing to serve,
	// including the reserved schemes and foreign resource: documents.
	KindUnhandledScheme Kind = iota + 1
	// KindNotFound marks a handled scheme whose lookup came up empty.
	KindNotFound
	// KindFetchFailed marks transport failures of the generic fetch.
	KindFetchFailed
)

func (k Kind) String() string {
	switch k {
	case KindUnhandledScheme:
		return "unhandled-scheme"
	case KindNotFound:
		return "not-found"
	case KindFetchFailed:
		return "fetch-failed"
	default:
		return "unknown"
	}
}

// Error is the only error type the resolver returns. When it reaches the
// engine mid-compile it aborts the whole compile call: the engine cannot
// proceed without the text it asked for.
type Error struct {
	URI  string
	Kind Kind
	Err  error // optional cause, set for fetch failures
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %s: %s: %v", e.URI, e.Kind, e.Err)
	}
	return fmt.Sprintf("resolve %s: %s", e.URI, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func errUnhandled(uri string) *Error {
	return &Error{URI: uri, Kind: KindUnhandledScheme}
}

func errNotFound(uri string) *Error {
	return &Error{URI: uri, Kind: KindNotFound}
}

func errFetch(uri string, cause error) *Error {
	return &Error{URI: uri, Kind: KindFetchFailed, Err: cause}
}
