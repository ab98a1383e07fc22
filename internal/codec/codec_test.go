package codec

import (
	"strings"
	"testing"
	"time"

	"riptide/internal/diag"
	"riptide/internal/driver"
)

func sampleResult() *driver.CompileResult {
	return &driver.CompileResult{
		Problems: []diag.Problem{
			{URI: "resource:/main.cel", Begin: 4, End: 15, Message: "undeclared reference", Severity: diag.SevError},
			diag.New("environment built without declarations", diag.SevWarning),
		},
		Output:          `1 + 2 * size("abc")`,
		HasOutput:       true,
		CompileDuration: 1502 * time.Millisecond,
	}
}

func assertRoundTrip(t *testing.T, want, got *driver.CompileResult) {
	t.Helper()
	if got.Output != want.Output || got.HasOutput != want.HasOutput {
		t.Errorf("Output = %q, %v, want %q, %v", got.Output, got.HasOutput, want.Output, want.HasOutput)
	}
	if len(got.Problems) != len(want.Problems) {
		t.Fatalf("Expected %d problems, got %d", len(want.Problems), len(got.Problems))
	}
	for i, p := range got.Problems {
		if p != want.Problems[i] {
			t.Errorf("Problem %d = %+v, want %+v", i, p, want.Problems[i])
		}
	}
	wantMS := want.CompileDuration.Truncate(time.Millisecond)
	if got.CompileDuration != wantMS {
		t.Errorf("CompileDuration = %v, want %v", got.CompileDuration, wantMS)
	}
}

func TestJSONRoundTrip(t *testing.T) {
	want := sampleResult()
	data, err := EncodeJSON(want)
	if err != nil {
		t.Fatalf("EncodeJSON returned error: %v", err)
	}
	got, err := DecodeJSON(data)
	if err != nil {
		t.Fatalf("DecodeJSON returned error: %v", err)
	}
	assertRoundTrip(t, want, got)
}

func TestBinaryRoundTrip(t *testing.T) {
	want := sampleResult()
	data, err := EncodeBinary(want)
	if err != nil {
		t.Fatalf("EncodeBinary returned error: %v", err)
	}
	got, err := DecodeBinary(data)
	if err != nil {
		t.Fatalf("DecodeBinary returned error: %v", err)
	}
	assertRoundTrip(t, want, got)
}

func TestEncodeDropsSubMillisecondPrecision(t *testing.T) {
	res := &driver.CompileResult{CompileDuration: 1502*time.Millisecond + 700*time.Microsecond}
	rec := Encode(res)
	if rec.CompileMilliseconds != 1502 {
		t.Errorf("CompileMilliseconds = %d, want 1502", rec.CompileMilliseconds)
	}
}

func TestEncodeAbsentOutput(t *testing.T) {
	rec := Encode(&driver.CompileResult{})
	if rec.Output != nil {
		t.Errorf("Expected absent output, got %q", *rec.Output)
	}

	// Пустой артефакт — это присутствующий артефакт.
	rec = Encode(&driver.CompileResult{HasOutput: true})
	if rec.Output == nil || *rec.Output != "" {
		t.Errorf("Expected present empty output, got %v", rec.Output)
	}
}

func TestJSONShape(t *testing.T) {
	data, err := EncodeJSON(sampleResult())
	if err != nil {
		t.Fatalf("EncodeJSON returned error: %v", err)
	}
	s := string(data)
	for _, field := range []string{
		`"compileMilliseconds": 1502`,
		`"output"`,
		`"kind": "ERROR"`,
		`"uri": "resource:/main.cel"`,
		`"begin": 4`,
		`"end": 15`,
	} {
		if !strings.Contains(s, field) {
			t.Errorf("Expected JSON to contain %s, got:\n%s", field, s)
		}
	}
	// Незаякоренная проблема не тащит с собой диапазон.
	if strings.Count(s, `"begin"`) != 1 {
		t.Errorf("Expected exactly one anchored problem in:\n%s", s)
	}
}

func TestDecodeUnknownKindIsError(t *testing.T) {
	res, err := Decode(Record{Problems: []ProblemRecord{
		{Message: "from the future", Kind: "LINT_FIRE"},
	}})
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if res.Problems[0].Severity != diag.SevError {
		t.Errorf("Expected unknown kind to decode as ERROR, got %v", res.Problems[0].Severity)
	}
}

func TestDecodeMalformedRecords(t *testing.T) {
	i64 := func(v int64) *int64 { return &v }
	tests := []struct {
		name string
		rec  Record
	}{
		{"negative milliseconds", Record{CompileMilliseconds: -1}},
		{"begin without end", Record{Problems: []ProblemRecord{
			{Begin: i64(1), Message: "x", URI: "resource:/main.cel", Kind: "ERROR"},
		}}},
		{"end without begin", Record{Problems: []ProblemRecord{
			{End: i64(5), Message: "x", URI: "resource:/main.cel", Kind: "ERROR"},
		}}},
		{"range without uri", Record{Problems: []ProblemRecord{
			{Begin: i64(1), End: i64(5), Message: "x", Kind: "ERROR"},
		}}},
		{"uri without range", Record{Problems: []ProblemRecord{
			{Message: "x", URI: "resource:/main.cel", Kind: "ERROR"},
		}}},
		{"negative begin", Record{Problems: []ProblemRecord{
			{Begin: i64(-2), End: i64(5), Message: "x", URI: "resource:/main.cel", Kind: "ERROR"},
		}}},
		{"end before begin", Record{Problems: []ProblemRecord{
			{Begin: i64(9), End: i64(5), Message: "x", URI: "resource:/main.cel", Kind: "ERROR"},
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Decode(tt.rec); err == nil {
				t.Errorf("Expected Decode to reject the record")
			}
		})
	}
}

func TestDecodeEmptyRecord(t *testing.T) {
	res, err := Decode(Record{})
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if res.HasOutput || len(res.Problems) != 0 || res.CompileDuration != 0 {
		t.Errorf("Expected an empty result, got %+v", res)
	}
	if !res.Succeeded() {
		t.Errorf("Expected an empty result to count as succeeded")
	}
}
