package features

import (
	"errors"
	"fmt"
)

var (
	ErrMissingQuantity     = errors.New("quantity missing")
	ErrNonNumericQuantity  = errors.New("quantity is not an integer")
	ErrNonPositiveQuantity = errors.New("quantity must be positive")
	ErrTextTooLong         = fmt.Errorf("text longer than %d characters", MaxTextLength)
)

// ValidationError reports a required record field that cannot be used.
type ValidationError struct {
	Record string
	Field  string
	reason error
}

func (e *ValidationError) Error() string {
	if e.Record == "" {
		return fmt.Sprintf("%s: %v", e.Field, e.reason)
	}
	return fmt.Sprintf("record %s: %s: %v", e.Record, e.Field, e.reason)
}

func (e *ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
