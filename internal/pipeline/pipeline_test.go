package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"riptide/internal/diag"
	"riptide/internal/sdk"
	"riptide/internal/testkit"
)

// collectSink записывает события под мьютексом, чтобы воркеры не дрались.
type collectSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *collectSink) OnEvent(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *collectSink) byStatus(stage Stage, status Status) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, evt := range s.events {
		if evt.Stage == stage && evt.Status == status {
			out = append(out, evt)
		}
	}
	return out
}

func testInputs(n int) []Input {
	inputs := make([]Input, n)
	for i := range inputs {
		inputs[i] = Input{Path: filepath.Join("snippets", string(rune('a'+i))+".cel"), Text: "1 + 1"}
	}
	return inputs
}

func TestRunCompilesEveryInput(t *testing.T) {
	eng := &testkit.ScriptEngine{Chunks: []string{"1 + 1"}}
	sink := &collectSink{}

	result, err := Run(context.Background(), &Request{
		Inputs:   testInputs(5),
		SDK:      sdk.New(map[string]string{"x.cel": "0"}),
		Engine:   eng,
		Jobs:     2,
		Progress: sink,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(result.Outcomes) != 5 {
		t.Fatalf("Expected 5 outcomes, got %d", len(result.Outcomes))
	}
	for i, o := range result.Outcomes {
		if o.Err != nil {
			t.Fatalf("Outcome %d failed host-side: %v", i, o.Err)
		}
		if o.Failed() {
			t.Errorf("Outcome %d unexpectedly failed", i)
		}
		if !o.Result.HasOutput {
			t.Errorf("Outcome %d has no output", i)
		}
	}
	if got := eng.Runs(); got != 5 {
		t.Errorf("Expected 5 engine runs, got %d", got)
	}
	if done := sink.byStatus(StageCompile, StatusDone); len(done) != 5 {
		t.Errorf("Expected 5 done events, got %d", len(done))
	}
	if !result.Timings.Has(StageCompile) || !result.Timings.Has(StageSDK) {
		t.Errorf("Expected sdk and compile timings to be recorded")
	}
}

func TestRunBoundsDriverPool(t *testing.T) {
	eng := &testkit.ScriptEngine{}

	_, err := Run(context.Background(), &Request{
		Inputs: testInputs(8),
		SDK:    sdk.New(map[string]string{"x.cel": "0"}),
		Engine: eng,
		Jobs:   2,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if peak := eng.MaxInFlight(); peak > 2 {
		t.Errorf("Expected at most 2 compiles in flight, got %d", peak)
	}
	if got := eng.Runs(); got != 8 {
		t.Errorf("Expected 8 runs, got %d", got)
	}
}

func TestRunKeepsCompileErrorsAsData(t *testing.T) {
	eng := &testkit.ScriptEngine{
		Problems: []diag.Problem{diag.New("no such overload", diag.SevError)},
	}
	sink := &collectSink{}

	result, err := Run(context.Background(), &Request{
		Inputs:   testInputs(3),
		SDK:      sdk.New(map[string]string{"x.cel": "0"}),
		Engine:   eng,
		Progress: sink,
	})
	if err != nil {
		t.Fatalf("Compile errors must not fail the batch, got %v", err)
	}
	if got := result.FailedCount(); got != 3 {
		t.Errorf("Expected 3 failed outcomes, got %d", got)
	}
	for _, evt := range sink.byStatus(StageCompile, StatusDone) {
		if !evt.Failed {
			t.Errorf("Expected done events to carry the failure flag, got %+v", evt)
		}
	}
}

func TestRunRecordsHostFailures(t *testing.T) {
	eng := &testkit.ScriptEngine{ResolveURIs: []string{"bogus:lib.cel"}}

	result, err := Run(context.Background(), &Request{
		Inputs: testInputs(2),
		SDK:    sdk.New(map[string]string{"x.cel": "0"}),
		Engine: eng,
	})
	if err != nil {
		t.Fatalf("Per-input host failures must not fail the batch, got %v", err)
	}
	for i, o := range result.Outcomes {
		if o.Err == nil {
			t.Errorf("Expected outcome %d to record the host failure", i)
		}
		if !o.Failed() {
			t.Errorf("Expected outcome %d to count as failed", i)
		}
	}
}

func TestRunRejectsEmptyBatch(t *testing.T) {
	if _, err := Run(context.Background(), &Request{}); err == nil {
		t.Fatalf("Expected an empty batch to be rejected")
	}
	if _, err := Run(context.Background(), nil); err == nil {
		t.Fatalf("Expected a nil request to be rejected")
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, &Request{
		Inputs: testInputs(4),
		SDK:    sdk.New(map[string]string{"x.cel": "0"}),
		Engine: &testkit.ScriptEngine{},
	})
	if err == nil {
		t.Fatalf("Expected a cancelled context to abort the run")
	}
}

func TestLoadInputs(t *testing.T) {
	dir := t.TempDir()
	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatalf("WriteFile returned error: %v", err)
		}
	}
	write("b.cel", "2 + 2")
	write("a.cel", "﻿1 + 1") // BOM должен уйти при нормализации
	write("notes.txt", "ignored")

	inputs, err := LoadInputs([]string{dir})
	if err != nil {
		t.Fatalf("LoadInputs returned error: %v", err)
	}
	if len(inputs) != 2 {
		t.Fatalf("Expected 2 inputs, got %d", len(inputs))
	}
	// Каталог разворачивается в отсортированный список.
	if filepath.Base(inputs[0].Path) != "a.cel" || filepath.Base(inputs[1].Path) != "b.cel" {
		t.Errorf("Expected sorted inputs, got %v", inputs)
	}
	if inputs[0].Text != "1 + 1" {
		t.Errorf("Expected BOM to be stripped, got %q", inputs[0].Text)
	}

	if _, err := LoadInputs([]string{filepath.Join(dir, "missing.cel")}); err == nil {
		t.Errorf("Expected missing paths to fail")
	}
}
