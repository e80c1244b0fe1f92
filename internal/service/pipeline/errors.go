package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrTranscriptionFailed  = errors.New("transcription job failed")
	ErrTranscriptionTimeout = errors.New("transcription job did not finish in time")
	ErrNoTranscript         = errors.New("no transcript generated")
	ErrTranscriptNotFound   = errors.New("transcript file not found")
	ErrBucketMismatch       = errors.New("transcript bucket mismatch")
	ErrIntegrity            = errors.New("resource integrity check failed")
)

// ValidationError reports bad, missing or conflicting input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// ProcessingError is the only error Process returns. Stage names where
// the invocation stopped; Cause keeps the underlying error for logs and
// errors.Is / errors.As.
type ProcessingError struct {
	Stage string
	Cause error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Cause)
}

func (e *ProcessingError) Unwrap() error { return e.Cause }

// IsValidation reports whether err was caused by invalid input.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
