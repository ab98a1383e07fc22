package resolve

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"riptide/internal/sdk"
)

const testEntryURI = "resource:/main.cel"

func newTestResolver(t *testing.T) (*Resolver, *Document) {
	t.Helper()
	doc := NewDocument(testEntryURI)
	table := sdk.New(map[string]string{
		"env.celdecl":        "now: timestamp\n",
		"examples/greet.cel": "\"hi\"\n",
	})
	return New(doc, table, nil), doc
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("Expected *resolve.Error, got %T: %v", err, err)
	}
	return rerr.Kind
}

func TestResolveBoundDocument(t *testing.T) {
	r, doc := newTestResolver(t)
	doc.Bind("1 + 1")

	text, err := r.Resolve(context.Background(), testEntryURI)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if text != "1 + 1" {
		t.Errorf("Expected bound text, got %q", text)
	}
}

func TestResolveDocumentKeepsTextVerbatim(t *testing.T) {
	r, doc := newTestResolver(t)
	// NFD-разложенная 'é' не должна пере-нормализовываться
	doc.Bind("é")

	text, err := r.Resolve(context.Background(), testEntryURI)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if text != "é" {
		t.Errorf("Expected verbatim text, got %q", text)
	}
}

func TestResolveForeignResourceURI(t *testing.T) {
	r, doc := newTestResolver(t)
	doc.Bind("1")

	_, err := r.Resolve(context.Background(), "resource:/other.cel")
	if kindOf(t, err) != KindUnhandledScheme {
		t.Errorf("Expected unhandled-scheme for a foreign resource: URI, got %v", err)
	}
}

func TestResolveSDKStripsLibraryPrefix(t *testing.T) {
	r, _ := newTestResolver(t)

	text, err := r.Resolve(context.Background(), "sdk:/lib/examples/greet.cel")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if text != "\"hi\"\n" {
		t.Errorf("Expected library text, got %q", text)
	}
}

func TestResolveSDKMissingEntry(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "sdk:/lib/missing.cel")
	if kindOf(t, err) != KindNotFound {
		t.Errorf("Expected not-found, got %v", err)
	}
}

func TestResolveReservedSchemes(t *testing.T) {
	r, _ := newTestResolver(t)

	for _, uri := range []string{"file:///tmp/x.cel", "dart:core", "cel:core", "package:foo/bar.cel"} {
		_, err := r.Resolve(context.Background(), uri)
		if kindOf(t, err) != KindUnhandledScheme {
			t.Errorf("Expected unhandled-scheme for %q, got %v", uri, err)
		}
	}
}

func TestResolveFetchFallback(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		hits.Add(1)
		switch req.URL.Path {
		case "/lib.cel":
			_, _ = w.Write([]byte("fetched"))
		case "/gone.cel":
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer srv.Close()

	r, _ := newTestResolver(t)
	ctx := context.Background()

	text, err := r.Resolve(ctx, srv.URL+"/lib.cel")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if text != "fetched" {
		t.Errorf("Expected fetched body, got %q", text)
	}

	// повторный запрос того же URI обслуживается из мемо-кэша
	if _, err := r.Resolve(ctx, srv.URL+"/lib.cel"); err != nil {
		t.Fatalf("second Resolve returned error: %v", err)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("Expected 1 network hit after memoization, got %d", got)
	}

	_, err = r.Resolve(ctx, srv.URL+"/gone.cel")
	if kindOf(t, err) != KindNotFound {
		t.Errorf("Expected not-found for 404, got %v", err)
	}

	_, err = r.Resolve(ctx, srv.URL+"/boom.cel")
	if kindOf(t, err) != KindFetchFailed {
		t.Errorf("Expected fetch-failed for 500, got %v", err)
	}
}

func TestResolveUnfetchableScheme(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "wss://example.invalid/feed")
	if kindOf(t, err) != KindFetchFailed {
		t.Errorf("Expected fetch-failed for a non-HTTP fallback scheme, got %v", err)
	}
}

func TestResolveSchemelessURI(t *testing.T) {
	r, _ := newTestResolver(t)

	_, err := r.Resolve(context.Background(), "plain/relative/path.cel")
	if kindOf(t, err) != KindUnhandledScheme {
		t.Errorf("Expected unhandled-scheme for a schemeless URI, got %v", err)
	}
}

type backendFunc func(ctx context.Context, raw string, u *url.URL) (string, error)

func (f backendFunc) Resolve(ctx context.Context, raw string, u *url.URL) (string, error) {
	return f(ctx, raw, u)
}

func TestRegisterCustomBackend(t *testing.T) {
	r, _ := newTestResolver(t)
	r.Register("snippet", backendFunc(func(_ context.Context, raw string, _ *url.URL) (string, error) {
		return "custom:" + raw, nil
	}))

	text, err := r.Resolve(context.Background(), "snippet:abc")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if text != "custom:snippet:abc" {
		t.Errorf("Expected custom backend to serve, got %q", text)
	}
}
