// Package chunker splits extracted document text into overlapping,
// fixed-size windows measured in characters.
package chunker

import (
	"errors"
	"iter"
	"strings"
)

const (
	DefaultSize    = 1000
	DefaultOverlap = 200
)

var (
	// ErrEmptyInput is returned when the trimmed text is empty. Callers must
	// treat it as a failure, never as a zero-chunk success.
	ErrEmptyInput = errors.New("empty input: no usable text")
	// ErrInvalidWindow is returned for size <= 0, overlap < 0 or overlap >= size.
	ErrInvalidWindow = errors.New("invalid chunk window")
)

func validate(size, overlap int) error {
	if size <= 0 || overlap < 0 || overlap >= size {
		return ErrInvalidWindow
	}
	return nil
}

// Split returns the windows of text. Window i starts at i*(size-overlap);
// the last window is clamped to the end of the text. Text no longer than
// size yields a single window equal to the text. The returned sequence is
// lazy and may be ranged over any number of times.
func Split(text string, size, overlap int) (iter.Seq[string], error) {
	if err := validate(size, overlap); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	runes := []rune(text)
	n := len(runes)
	step := size - overlap
	return func(yield func(string) bool) {
		if n <= size {
			yield(text)
			return
		}
		for o := 0; o < n; o += step {
			if !yield(string(runes[o:min(o+size, n)])) {
				return
			}
		}
	}, nil
}

// SplitAll is Split collected into a slice.
func SplitAll(text string, size, overlap int) ([]string, error) {
	seq, err := Split(text, size, overlap)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, Count(len([]rune(text)), size, overlap))
	for c := range seq {
		out = append(out, c)
	}
	return out, nil
}

// Count returns how many windows Split produces for a text of n characters.
// It returns 0 for invalid windows or n <= 0.
func Count(n, size, overlap int) int {
	if validate(size, overlap) != nil || n <= 0 {
		return 0
	}
	if n <= size {
		return 1
	}
	step := size - overlap
	return (n + step - 1) / step
}
