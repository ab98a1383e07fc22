// Package codec maps compile results onto a flat transport record and back.
//
// Формат — плоская запись: миллисекунды, опциональный артефакт и список
// проблем. Поддержаны два носителя: JSON для людей и msgpack для обмена
// между процессами. Запись при этом одна и та же.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"riptide/internal/diag"
	"riptide/internal/driver"
)

// ProblemRecord is one problem on the wire. Begin and End travel together:
// both set with a non-empty URI, or both absent.
type ProblemRecord struct {
	Begin   *int64 `json:"begin,omitempty" msgpack:"begin,omitempty"`
	End     *int64 `json:"end,omitempty" msgpack:"end,omitempty"`
	Message string `json:"message" msgpack:"message"`
	URI     string `json:"uri" msgpack:"uri"`
	Kind    string `json:"kind" msgpack:"kind"`
}

// Record is the flat transport shape of a compile result. The duration is
// truncated to whole milliseconds; a decoded result never gets them back.
type Record struct {
	CompileMilliseconds int64           `json:"compileMilliseconds" msgpack:"compileMilliseconds"`
	Output              *string         `json:"output,omitempty" msgpack:"output,omitempty"`
	Problems            []ProblemRecord `json:"problems" msgpack:"problems"`
}

// Encode flattens a result into a Record.
func Encode(res *driver.CompileResult) Record {
	rec := Record{
		CompileMilliseconds: res.CompileDuration.Milliseconds(),
		Problems:            make([]ProblemRecord, 0, len(res.Problems)),
	}
	if res.HasOutput {
		out := res.Output
		rec.Output = &out
	}
	for _, p := range res.Problems {
		pr := ProblemRecord{
			Message: p.Message,
			URI:     p.URI,
			Kind:    p.Severity.String(),
		}
		if p.Anchored() {
			begin, end := int64(p.Begin), int64(p.End)
			pr.Begin, pr.End = &begin, &end
		}
		rec.Problems = append(rec.Problems, pr)
	}
	return rec
}

// Decode rebuilds a result from a Record.
//
// Structural damage fails fast: negative milliseconds, a half-present
// range, a range without a URI. An unrecognized kind is the one forgiving
// case: it decodes as ERROR so a finding from a newer engine is never
// silently downgraded.
func Decode(rec Record) (*driver.CompileResult, error) {
	if rec.CompileMilliseconds < 0 {
		return nil, fmt.Errorf("compileMilliseconds is negative: %d", rec.CompileMilliseconds)
	}
	res := &driver.CompileResult{
		CompileDuration: time.Duration(rec.CompileMilliseconds) * time.Millisecond,
	}
	if rec.Output != nil {
		res.Output = *rec.Output
		res.HasOutput = true
	}
	for i, pr := range rec.Problems {
		p, err := decodeProblem(pr)
		if err != nil {
			return nil, fmt.Errorf("problem %d: %w", i, err)
		}
		res.Problems = append(res.Problems, p)
	}
	return res, nil
}

func decodeProblem(pr ProblemRecord) (diag.Problem, error) {
	// Неизвестный kind — единственное прощаемое повреждение.
	sev, _ := diag.ParseSeverity(pr.Kind)

	if (pr.Begin == nil) != (pr.End == nil) {
		return diag.Problem{}, fmt.Errorf("range is half-present")
	}
	if pr.Begin == nil {
		if pr.URI != "" {
			return diag.Problem{}, fmt.Errorf("uri %q without a range", pr.URI)
		}
		return diag.New(pr.Message, sev), nil
	}
	if pr.URI == "" {
		return diag.Problem{}, fmt.Errorf("range without a uri")
	}
	begin, err := safecast.Conv[int](*pr.Begin)
	if err != nil {
		return diag.Problem{}, fmt.Errorf("begin: %w", err)
	}
	end, err := safecast.Conv[int](*pr.End)
	if err != nil {
		return diag.Problem{}, fmt.Errorf("end: %w", err)
	}
	return diag.NewAnchored(pr.URI, begin, end, pr.Message, sev)
}

// EncodeJSON renders the record as indented JSON.
func EncodeJSON(res *driver.CompileResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(Encode(res)); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeJSON parses JSON produced by EncodeJSON.
func DecodeJSON(data []byte) (*driver.CompileResult, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return Decode(rec)
}

// EncodeBinary renders the record as msgpack.
func EncodeBinary(res *driver.CompileResult) ([]byte, error) {
	data, err := msgpack.Marshal(Encode(res))
	if err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return data, nil
}

// DecodeBinary parses msgpack produced by EncodeBinary.
func DecodeBinary(data []byte) (*driver.CompileResult, error) {
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return Decode(rec)
}
