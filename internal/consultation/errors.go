package consultation

import "errors"

var (
	// ErrValidation marks input rejected before any AI call or write.
	ErrValidation = errors.New("consultation: invalid input")
	ErrNotFound   = errors.New("consultation: record not found")
)

// ValidationError carries the message shown to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

const (
	msgEmptyMedications = "Please enter at least one medication."
	msgEmptyChat        = "Please enter a message"
)
