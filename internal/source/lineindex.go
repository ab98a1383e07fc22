package source

import "unicode/utf8"

// LineIndex maps between byte offsets and 1-based line / 0-based column
// positions of one text. Columns count runes, which is what the cel
// toolchain reports; offsets are bytes, which is what problems carry.
type LineIndex struct {
	text   string
	starts []int // байтовое смещение начала каждой строки; starts[0] == 0
}

// NewLineIndex scans text once and builds the index.
func NewLineIndex(text string) *LineIndex {
	starts := make([]int, 1, 16)
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineIndex{text: text, starts: starts}
}

// Len returns the byte length of the indexed text.
func (ix *LineIndex) Len() int { return len(ix.text) }

// NumLines returns the number of lines, at least 1 for any text.
func (ix *LineIndex) NumLines() int { return len(ix.starts) }

// Line returns the 1-based line's text without the trailing newline.
// Out-of-range lines return "".
func (ix *LineIndex) Line(line int) string {
	if line < 1 || line > len(ix.starts) {
		return ""
	}
	start := ix.starts[line-1]
	end := len(ix.text)
	if line < len(ix.starts) {
		end = ix.starts[line] - 1
	}
	return ix.text[start:end]
}

// Offset converts a 1-based line and 0-based rune column into a byte
// offset. Columns overshooting the line clamp to the line end; lines
// overshooting the text clamp to len(text).
func (ix *LineIndex) Offset(line, col int) int {
	if line < 1 {
		line = 1
	}
	if line > len(ix.starts) {
		return len(ix.text)
	}
	off := ix.starts[line-1]
	text := ix.Line(line)
	for i := 0; i < col && len(text) > 0; i++ {
		_, size := utf8.DecodeRuneInString(text)
		off += size
		text = text[size:]
	}
	return off
}

// Pos converts a byte offset into a 1-based line and 0-based rune column.
// Offsets out of range clamp to the nearest valid position.
func (ix *LineIndex) Pos(offset int) (line, col int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(ix.text) {
		offset = len(ix.text)
	}

	// бинпоиск: наибольший starts[i] <= offset
	lo, hi := 0, len(ix.starts)-1
	for lo <= hi {
		mid := (lo + hi) >> 1
		if ix.starts[mid] <= offset {
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	line = hi + 1

	col = 0
	for i := ix.starts[hi]; i < offset; col++ {
		_, size := utf8.DecodeRuneInString(ix.text[i:])
		i += size
	}
	return line, col
}
