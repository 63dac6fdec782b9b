package ingest

import (
	"errors"
	"fmt"
)

// ErrExtractionFailure matches every ExtractionError via errors.Is.
var ErrExtractionFailure = errors.New("extraction failure")

// ExtractionError is returned when the source file cannot be opened or parsed.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

func (e *ExtractionError) Is(target error) bool { return target == ErrExtractionFailure }
