// Package source holds text utilities shared by the resolver, the engine
// and the diagnostic renderers: ingestion normalization and offset math.
package source

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Normalize prepares ingested text (SDK files, fetched resources) for the
// engine: strips a UTF-8 BOM, rejects invalid UTF-8 and applies NFC so a
// library file behaves the same regardless of how it was authored.
//
// The session's bound document is deliberately not normalized: offsets the
// engine reports against it must stay valid for the caller's original string.
func Normalize(text string) (string, error) {
	text = strings.TrimPrefix(text, "﻿")
	if !utf8.ValidString(text) {
		return "", fmt.Errorf("text is not valid UTF-8")
	}
	return norm.NFC.String(text), nil
}
