package celengine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"riptide/internal/artifact"
	"riptide/internal/diag"
	"riptide/internal/engine"
	"riptide/internal/resolve"
	"riptide/internal/sdk"
)

const entryURI = "resource:/main.cel"

type harness struct {
	inv       engine.Invocation
	sink      *diag.Sink
	collector *artifact.Collector
}

func newHarness(sourceText string, table *sdk.Table, options ...string) *harness {
	doc := resolve.NewDocument(entryURI)
	doc.Bind(sourceText)
	r := resolve.New(doc, table, nil)
	sink := diag.NewSink(nil)
	collector := artifact.NewCollector(PrimaryExt)
	return &harness{
		inv: engine.Invocation{
			EntryURI:   entryURI,
			SDKRootURI: "sdk:/lib/",
			Resolve:    r.Resolve,
			Report:     sink.Record,
			Open:       collector.Open,
			Options:    options,
		},
		sink:      sink,
		collector: collector,
	}
}

func emptyTable() *sdk.Table {
	return sdk.New(map[string]string{"placeholder.cel": "0"})
}

func TestRunCleanExpression(t *testing.T) {
	h := newHarness(`1 + 2 * size("abc")`, emptyTable())

	if err := New().Run(context.Background(), h.inv); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := h.sink.Len(); got != 0 {
		t.Fatalf("Expected 0 problems, got %d: %v", got, h.sink.Problems())
	}
	out, ok := h.collector.Primary()
	if !ok {
		t.Fatalf("Expected primary artifact to be emitted")
	}
	if !strings.Contains(out, "1 + 2") || !strings.Contains(out, "size(") {
		t.Errorf("Expected canonical form of the expression, got %q", out)
	}
}

func TestRunUndeclaredReference(t *testing.T) {
	src := "undefinedFn()"
	h := newHarness(src, emptyTable())

	if err := New().Run(context.Background(), h.inv); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	problems := h.sink.Problems()
	if len(problems) == 0 {
		t.Fatalf("Expected at least one problem")
	}
	found := false
	for _, p := range problems {
		if p.Severity != diag.SevError {
			continue
		}
		if p.URI != entryURI {
			t.Errorf("Expected error anchored to %s, got %q", entryURI, p.URI)
		}
		if p.Begin >= p.End {
			t.Errorf("Expected begin < end, got [%d, %d)", p.Begin, p.End)
		}
		if p.End > len(src) {
			t.Errorf("Expected range inside the source, got end=%d len=%d", p.End, len(src))
		}
		found = true
	}
	if !found {
		t.Errorf("Expected an ERROR problem, got %v", problems)
	}
	if _, ok := h.collector.Primary(); ok {
		t.Errorf("Expected no artifact for a failed compile")
	}
}

func TestRunSyntaxError(t *testing.T) {
	h := newHarness("1 +", emptyTable())

	if err := New().Run(context.Background(), h.inv); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	problems := h.sink.Problems()
	if len(problems) == 0 {
		t.Fatalf("Expected a syntax error problem")
	}
	if problems[0].Severity != diag.SevError {
		t.Errorf("Expected ERROR severity, got %v", problems[0].Severity)
	}
	if problems[0].Begin >= problems[0].End || problems[0].End > len("1 +") {
		t.Errorf("Expected a non-empty range inside the source, got [%d, %d)", problems[0].Begin, problems[0].End)
	}
	if _, ok := h.collector.Primary(); ok {
		t.Errorf("Expected no artifact after a parse failure")
	}
}

func TestRunDeclsFromSDK(t *testing.T) {
	table := sdk.New(map[string]string{
		"env.celdecl": "# test env\nprincipal: string\n",
	})
	h := newHarness(`principal.startsWith("r")`, table)

	if err := New().Run(context.Background(), h.inv); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := h.sink.Len(); got != 0 {
		t.Fatalf("Expected declared variable to type-check, got problems: %v", h.sink.Problems())
	}

	// контрольный прогон без деклараций должен падать на проверке типов
	bare := newHarness(`principal.startsWith("r")`, emptyTable())
	if err := New().Run(context.Background(), bare.inv); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if bare.sink.Succeeded() {
		t.Errorf("Expected undeclared variable to produce an error")
	}
}

func TestRunParseOnlySkipsCheck(t *testing.T) {
	h := newHarness("undefinedFn()", emptyTable(), "parse-only")

	if err := New().Run(context.Background(), h.inv); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if got := h.sink.Len(); got != 0 {
		t.Errorf("Expected parse-only to skip the checker, got %v", h.sink.Problems())
	}
	if _, ok := h.collector.Primary(); !ok {
		t.Errorf("Expected parse-only to still emit the canonical form")
	}
}

func TestRunUnknownOption(t *testing.T) {
	h := newHarness("1", emptyTable(), "frobnicate")

	if err := New().Run(context.Background(), h.inv); err == nil {
		t.Fatalf("Expected unknown option to fail the run")
	}
}

func TestRunResolutionFailureAborts(t *testing.T) {
	h := newHarness("1", emptyTable())
	h.inv.EntryURI = "resource:/other.cel" // не совпадает с закреплённым документом

	err := New().Run(context.Background(), h.inv)
	if err == nil {
		t.Fatalf("Expected resolution failure to abort the run")
	}
	var rerr *resolve.Error
	if !errors.As(err, &rerr) {
		t.Errorf("Expected the resolver error to be preserved, got %v", err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	h := newHarness("1 + 1", emptyTable())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New().Run(ctx, h.inv); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestRunOpensASTDumpSink(t *testing.T) {
	h := newHarness("1 + 1", emptyTable())
	var opened atomic.Value
	opened.Store([]string{})
	baseOpen := h.inv.Open
	h.inv.Open = func(name, ext string) io.WriteCloser {
		names := opened.Load().([]string)
		opened.Store(append(names, name+ext))
		return baseOpen(name, ext)
	}

	if err := New().Run(context.Background(), h.inv); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	names := opened.Load().([]string)
	var sawPrimary, sawDump bool
	for _, n := range names {
		switch n {
		case PrimaryExt:
			sawPrimary = true
		case "ast.json":
			sawDump = true
		}
	}
	if !sawPrimary || !sawDump {
		t.Errorf("Expected primary and ast dump sinks to be opened, got %v", names)
	}
}

func TestEnvironmentReusedAcrossRuns(t *testing.T) {
	e := New()
	h := newHarness("1", emptyTable())
	ctx := context.Background()

	first, err := e.environment(ctx, h.inv, options{})
	if err != nil {
		t.Fatalf("environment returned error: %v", err)
	}
	second, err := e.environment(ctx, h.inv, options{})
	if err != nil {
		t.Fatalf("environment returned error: %v", err)
	}
	if first != second {
		t.Errorf("Expected the environment to be cached and reused")
	}

	other, err := e.environment(ctx, h.inv, options{parseOnly: true})
	if err != nil {
		t.Fatalf("environment returned error: %v", err)
	}
	if other == first {
		t.Errorf("Expected a distinct environment for different options")
	}
}

func TestAnchorRange(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		begin int
		wantB int
		wantE int
	}{
		{"identifier run", "foo + bar", 6, 6, 9},
		{"single symbol", "1 + 2", 2, 2, 3},
		{"error at eof", "1 +", 3, 2, 3},
		{"multibyte identifier", "ид + 1", 0, 0, 4},
		{"empty text", "", 0, 0, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, e := anchorRange(tc.text, tc.begin)
			if b != tc.wantB || e != tc.wantE {
				t.Errorf("Expected [%d, %d), got [%d, %d)", tc.wantB, tc.wantE, b, e)
			}
		})
	}
}
