// Package chunker splits normalized text into overlapping word windows.
package chunker

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/seanblong/resumematch/pkg/models"
)

var (
	ErrInvalidWindow  = errors.New("window size must be at least 1")
	ErrInvalidOverlap = errors.New("overlap fraction must be in [0, 1)")
)

// Step returns how many words the window advances per chunk. It rounds up, so
// adjacent windows share at most floor(windowSize*overlap) words.
func Step(windowSize int, overlap float64) int {
	return max(1, int(math.Ceil(float64(windowSize)*(1-overlap)-1e-9)))
}

// Chunk splits text into windows of windowSize words advancing by
// Step(windowSize, overlap) words. Every chunk spans from its first word to the
// first word of the next window, the first chunk starts at 0 and the last ends
// at len(text), so the spans cover the text without gaps. Text holding no
// words yields no chunks.
func Chunk(text string, windowSize int, overlap float64) ([]models.Chunk, error) {
	if windowSize < 1 {
		return nil, ErrInvalidWindow
	}
	if overlap < 0 || overlap >= 1 || math.IsNaN(overlap) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidOverlap, overlap)
	}

	ws := wordStarts(text)
	n := len(ws)
	if n == 0 {
		return nil, nil
	}
	step := Step(windowSize, overlap)

	var chunks []models.Chunk
	for first := 0; ; first += step {
		next := first + windowSize
		start := ws[first]
		if first == 0 {
			start = 0
		}
		end := len(text)
		if next < n {
			end = ws[next]
		}
		chunks = append(chunks, models.Chunk{
			ID:    len(chunks),
			Text:  strings.TrimRightFunc(text[start:end], unicode.IsSpace),
			Start: start,
			End:   end,
		})
		if next >= n {
			break
		}
	}
	return chunks, nil
}

// wordStarts returns the byte offset of every maximal run of non-space runes.
func wordStarts(text string) []int {
	var starts []int
	inWord := false
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		space := unicode.IsSpace(r)
		if !space && !inWord {
			starts = append(starts, i)
		}
		inWord = !space
		i += size
	}
	return starts
}
