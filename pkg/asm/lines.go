package asm

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// ----------------------------------------------------------------------------
// Line Source

// A Line is a single non-blank, comment-stripped logical line of Asm source,
// tagged with its 1-based position in the original input so that a later
// Syntax failure can be attributed to an exact source line.
type Line struct {
	Number int    // 1-based line number in the original, unstripped input
	Text   string // Comment-stripped, whitespace-trimmed content
}

// ReadLines scans 'r' line by line, strips anything from a '//' onward, trims
// surrounding whitespace and drops the line entirely if nothing remains.
// Unlike a recursive "skip to next real line" helper, this walks the input
// with a single iterative loop so a long run of blank/comment lines never
// grows the call stack.
func ReadLines(r io.Reader) ([]Line, error) {
	scanner := bufio.NewScanner(r)
	lines := make([]Line, 0)

	for lineNo := 1; scanner.Scan(); lineNo++ {
		raw := scanner.Text()
		if idx := strings.Index(raw, "//"); idx >= 0 {
			raw = raw[:idx]
		}
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		lines = append(lines, Line{Number: lineNo, Text: text})
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "cannot read lines from input")
	}
	return lines, nil
}
