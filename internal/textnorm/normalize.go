// Package textnorm turns extracted document text into the canonical form the
// matcher works on, and splits text into comparable terms.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize is a pure function: identical input always yields identical
// output. Whitespace runs collapse to a single space, blank lines mark
// paragraph boundaries and collapse to a single newline, control and other
// non-printable characters are removed, and the result is trimmed.
func Normalize(s string) string {
	s = strings.ToValidUTF8(s, "")
	// NFKC folds the ligatures and compatibility forms PDF extractors emit.
	s = norm.NFKC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = current[:0]
		}
	}

	for _, line := range strings.Split(s, "\n") {
		words := strings.Fields(strings.Map(cleanRune, line))
		if len(words) == 0 {
			flush()
			continue
		}
		current = append(current, strings.Join(words, " "))
	}
	flush()

	return strings.Join(paragraphs, "\n")
}

// cleanRune maps every whitespace rune to a space and drops runes that are
// not printable. Newlines never reach it.
func cleanRune(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	if !unicode.IsPrint(r) {
		return -1
	}
	return r
}
