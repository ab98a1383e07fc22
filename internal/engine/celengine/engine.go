// Package celengine adapts the cel toolchain to the driver's engine
// contract: it resolves the entry text and the SDK environment through the
// invocation callbacks, compiles, reports issues as anchored problems and
// emits the canonical form of the checked expression as the artifact.
package celengine

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"
	"github.com/google/cel-go/ext"
	"google.golang.org/protobuf/encoding/protojson"

	"riptide/internal/diag"
	"riptide/internal/engine"
	"riptide/internal/resolve"
	"riptide/internal/source"
)

// PrimaryExt is the artifact extension: the canonical compiled form.
const PrimaryExt = ".cel"

// declsFile is resolved against the SDK root to declare the environment.
// A missing file is fine, the base environment still carries the cel
// standard library and extensions.
const declsFile = "env.celdecl"

// Engine carries the cel environments built so far. Environments are the
// expensive part; they are keyed by options + declarations so every driver
// pays the construction cost once and reuses it across sessions.
type Engine struct {
	mu   sync.Mutex
	envs map[string]*cel.Env
}

var _ engine.Engine = (*Engine)(nil)

// New returns an engine with an empty environment cache.
func New() *Engine {
	return &Engine{envs: make(map[string]*cel.Env)}
}

// Run compiles the entry expression. Diagnosed problems are a normal
// outcome; the returned error marks host-side failure only.
func (e *Engine) Run(ctx context.Context, inv engine.Invocation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cel toolchain panicked: %v", r)
		}
	}()

	opts, err := parseOptions(inv.Options)
	if err != nil {
		return err
	}

	entry, err := inv.Resolve(ctx, inv.EntryURI)
	if err != nil {
		return fmt.Errorf("entry source: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	env, err := e.environment(ctx, inv, opts)
	if err != nil {
		return err
	}

	ix := source.NewLineIndex(entry)
	src := common.NewStringSource(entry, inv.EntryURI)

	ast, issues := env.ParseSource(src)
	reportIssues(inv.Report, inv.EntryURI, entry, ix, issues)
	if issues != nil && issues.Err() != nil {
		return nil
	}

	if !opts.parseOnly {
		checked, checkIssues := env.Check(ast)
		reportIssues(inv.Report, inv.EntryURI, entry, ix, checkIssues)
		if checkIssues != nil && checkIssues.Err() != nil {
			return nil
		}
		ast = checked
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return emit(inv, ast)
}

// emit writes the canonical text to the primary sink and a debug AST dump
// to a named sink the collector currently drops.
func emit(inv engine.Invocation, ast *cel.Ast) error {
	text, err := cel.AstToString(ast)
	if err != nil {
		return fmt.Errorf("failed to render canonical form: %w", err)
	}
	w := inv.Open("", PrimaryExt)
	if _, err := io.WriteString(w, text); err != nil {
		return fmt.Errorf("primary sink: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("primary sink close: %w", err)
	}

	if ast.IsChecked() {
		if checkedExpr, err := cel.AstToCheckedExpr(ast); err == nil {
			if data, err := protojson.Marshal(checkedExpr); err == nil {
				dw := inv.Open("ast", ".json")
				_, _ = dw.Write(data)
				_ = dw.Close()
			}
		}
	}
	return nil
}

// environment returns the cached cel.Env for these options, building it on
// first use from the declarations the SDK serves.
func (e *Engine) environment(ctx context.Context, inv engine.Invocation, opts options) (*cel.Env, error) {
	declText, declErr := inv.Resolve(ctx, inv.SDKRootURI+declsFile)
	if declErr != nil {
		var rerr *resolve.Error
		if errors.As(declErr, &rerr) && rerr.Kind == resolve.KindNotFound {
			declText = ""
		} else {
			return nil, fmt.Errorf("environment declarations: %w", declErr)
		}
	}

	key := fmt.Sprintf("%x|%s", sha256.Sum256([]byte(declText)), opts.cacheKey())
	e.mu.Lock()
	env, ok := e.envs[key]
	e.mu.Unlock()
	if ok {
		return env, nil
	}

	envOpts := []cel.EnvOption{
		cel.OptionalTypes(),
		ext.Strings(),
		ext.Lists(),
		ext.Encoders(),
	}
	if opts.container != "" {
		envOpts = append(envOpts, cel.Container(opts.container))
	}
	if declText != "" {
		decls, err := parseDecls(declText)
		if err != nil {
			return nil, fmt.Errorf("environment declarations: %w", err)
		}
		envOpts = append(envOpts, decls...)
	}

	env, err := cel.NewEnv(envOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build environment: %w", err)
	}

	e.mu.Lock()
	e.envs[key] = env
	e.mu.Unlock()
	return env, nil
}

// reportIssues maps cel issues onto the diagnostic handler. The toolchain
// speaks 1-based lines and 0-based rune columns; problems carry byte
// offsets, extended over the identifier at the error position.
func reportIssues(report engine.ReportFunc, uri, text string, ix *source.LineIndex, issues *cel.Issues) {
	if issues == nil {
		return
	}
	for _, ce := range issues.Errors() {
		begin, end := anchorRange(text, ix.Offset(ce.Location.Line(), ce.Location.Column()))
		report(uri, begin, end, ce.Message, diag.SevError)
	}
}

// anchorRange extends begin over the identifier run at that position. The
// range never leaves the text: an error at EOF anchors the last rune, so
// begin < end <= len(text) holds for any non-empty text.
func anchorRange(text string, begin int) (int, int) {
	if begin > len(text) {
		begin = len(text)
	}
	end := begin
	for end < len(text) {
		r, size := utf8.DecodeRuneInString(text[end:])
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		end += size
	}
	if end == begin {
		switch {
		case end < len(text):
			_, size := utf8.DecodeRuneInString(text[end:])
			end += size
		case begin > 0:
			_, size := utf8.DecodeLastRuneInString(text[:begin])
			begin -= size
		default:
			// Пустой текст: вырожденный якорь [0, 1).
			end = begin + 1
		}
	}
	return begin, end
}

type options struct {
	parseOnly bool
	container string
}

func parseOptions(list []string) (options, error) {
	var o options
	for _, raw := range list {
		switch {
		case raw == "parse-only":
			o.parseOnly = true
		case strings.HasPrefix(raw, "container="):
			o.container = strings.TrimPrefix(raw, "container=")
		default:
			return options{}, fmt.Errorf("unknown engine option %q", raw)
		}
	}
	return o, nil
}

func (o options) cacheKey() string {
	return fmt.Sprintf("parseOnly=%t container=%s", o.parseOnly, o.container)
}
