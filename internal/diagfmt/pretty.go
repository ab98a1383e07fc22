// Package diagfmt renders compile problems for people.
package diagfmt

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"riptide/internal/diag"
	"riptide/internal/source"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	hintColor    = color.New(color.FgGreen)
	crashColor   = color.New(color.FgMagenta, color.Bold)
	gutterColor  = color.New(color.FgBlue)
)

func sevLabel(sev diag.Severity, colorize bool) string {
	name := sev.String()
	if !colorize {
		return name
	}
	switch sev {
	case diag.SevError, diag.SevCrash:
		if sev == diag.SevCrash {
			return crashColor.Sprint(name)
		}
		return errorColor.Sprint(name)
	case diag.SevWarning:
		return warningColor.Sprint(name)
	case diag.SevHint:
		return hintColor.Sprint(name)
	default:
		return infoColor.Sprint(name)
	}
}

// Pretty форматирует проблемы в человекочитаемый вид.
// Для каждой печатает:
// <uri>:<line>:<col>: <SEV>: <Message>
// затем контекст строки с подчёркиванием ^~~~ по диапазону.
// text — исходник закреплённого документа; строки и колонки считаются
// только для проблем, заякоренных в нём, остальные uri печатаются с
// байтовым диапазоном. Цвет включается опцией.
func Pretty(w io.Writer, entryURI, text string, problems []diag.Problem, opts PrettyOpts) {
	ix := source.NewLineIndex(text)
	for _, p := range problems {
		if !p.Anchored() {
			fmt.Fprintf(w, "%s: %s\n", sevLabel(p.Severity, opts.Color), p.Message)
			continue
		}
		if p.URI != entryURI {
			// Строчный индекс построен по закреплённому документу; для
			// чужих uri печатаем байтовый диапазон как есть.
			fmt.Fprintf(w, "%s:%d-%d: %s: %s\n", p.URI, p.Begin, p.End, sevLabel(p.Severity, opts.Color), p.Message)
			continue
		}
		line, col := ix.Pos(p.Begin)
		fmt.Fprintf(w, "%s:%d:%d: %s: %s\n", p.URI, line, col+1, sevLabel(p.Severity, opts.Color), p.Message)
		writeContext(w, ix, p, line, opts)
	}
}

// writeContext печатает строку с проблемой (плюс Context соседних) и
// подчёркивание под диапазоном.
func writeContext(w io.Writer, ix *source.LineIndex, p diag.Problem, line int, opts PrettyOpts) {
	first := line - int(opts.Context)
	if first < 1 {
		first = 1
	}
	last := line + int(opts.Context)
	if last > ix.NumLines() {
		last = ix.NumLines()
	}
	width := len(fmt.Sprintf("%d", last))

	for n := first; n <= last; n++ {
		gutter := fmt.Sprintf("%*d | ", width, n)
		if opts.Color {
			gutter = gutterColor.Sprint(gutter)
		}
		fmt.Fprintf(w, "  %s%s\n", gutter, ix.Line(n))
		if n != line {
			continue
		}

		lineText := ix.Line(n)
		begin := p.Begin - ix.Offset(n, 0)
		if begin < 0 {
			begin = 0
		}
		if begin > len(lineText) {
			begin = len(lineText)
		}
		end := p.End - ix.Offset(n, 0)
		if end > len(lineText) {
			end = len(lineText)
		}
		if end <= begin {
			end = begin + 1
		}

		pad := runewidth.StringWidth(lineText[:begin])
		var span int
		if begin < len(lineText) {
			span = runewidth.StringWidth(lineText[begin:min(end, len(lineText))])
		}
		if span < 1 {
			span = 1
		}
		underline := "^" + strings.Repeat("~", span-1)
		if opts.Color {
			underline = errorColor.Sprint(underline)
		}
		blank := fmt.Sprintf("%*s | ", width, "")
		if opts.Color {
			blank = gutterColor.Sprint(blank)
		}
		fmt.Fprintf(w, "  %s%s%s\n", blank, strings.Repeat(" ", pad), underline)
	}
}

// Short печатает по одной строке на проблему, в порядке поступления.
func Short(w io.Writer, problems []diag.Problem) {
	for _, p := range problems {
		if p.Anchored() {
			fmt.Fprintf(w, "%s:%d-%d: %s: %s\n", p.URI, p.Begin, p.End, p.Severity, p.Message)
		} else {
			fmt.Fprintf(w, "%s: %s\n", p.Severity, p.Message)
		}
	}
}

// Counts tallies problems by the two actionable severities.
func Counts(problems []diag.Problem) (errors, warnings int) {
	for _, p := range problems {
		switch p.Severity {
		case diag.SevError, diag.SevCrash:
			errors++
		case diag.SevWarning:
			warnings++
		}
	}
	return errors, warnings
}
