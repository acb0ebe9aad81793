package indexer

import (
	"strings"
	"unicode"
)

// Preprocess normalizes extracted text before chunking: control characters are
// dropped, runs of whitespace collapse to one space, and the ends are trimmed.
func Preprocess(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case unicode.IsControl(r) || r == unicode.ReplacementChar:
			continue
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}
