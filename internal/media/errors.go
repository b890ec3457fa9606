package media

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("file not found")
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrNoVideoStream     = errors.New("no video stream")
	ErrProbeFailed       = errors.New("probe failed")
	ErrNoSplitPoints     = errors.New("no split points")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrIO                = errors.New("io error")
	ErrInvalidStrategy   = errors.New("invalid split strategy")
)

// ExtractionError reports a segment whose ffmpeg run exited non-zero.
// Diagnostic is ffmpeg's stderr, verbatim apart from trimming.
type ExtractionError struct {
	Ordinal    int
	Diagnostic string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("segment %d extraction failed: %s", e.Ordinal+1, e.Diagnostic)
}

func (e *ExtractionError) Unwrap() error {
	return ErrExtractionFailed
}
