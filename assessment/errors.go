package assessment

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is matching across the taxonomy.
var (
	// ErrInvalidTransition marks an intent whose state precondition does not hold.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrGenerationFailed marks any failure of the question generator:
	// transport, non-success status, or an unparseable response.
	ErrGenerationFailed = errors.New("generation failed")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	Op     string
	Step   string
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s in step %s: %s", e.Op, e.Step, e.Reason)
}

// Is matches ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// GenerationError wraps a question generation failure.
type GenerationError struct {
	Op  string
	Err error
}

// NewGenerationError wraps err as a generation failure for op.
func NewGenerationError(op string, err error) error {
	return &GenerationError{Op: op, Err: err}
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is matches ErrGenerationFailed.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// GenerationParseError is a generation failure caused by a response that no
// parsing strategy could decode. Raw keeps the response for diagnostics.
type GenerationParseError struct {
	Raw string
	Err error
}

func (e *GenerationParseError) Error() string {
	return fmt.Sprintf("could not parse generated question: %v", e.Err)
}

func (e *GenerationParseError) Unwrap() error {
	return e.Err
}

// Is matches ErrGenerationFailed.
func (e *GenerationParseError) Is(target error) bool {
	return target == ErrGenerationFailed
}

// IsGenerationFailed returns true for any question generation failure.
func IsGenerationFailed(err error) bool {
	return errors.Is(err, ErrGenerationFailed)
}

// IsParseError returns true if err carries an unparseable generator response.
func IsParseError(err error) bool {
	var parseErr *GenerationParseError
	return errors.As(err, &parseErr)
}

// IsInvalidTransition returns true if err is a rejected state change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
