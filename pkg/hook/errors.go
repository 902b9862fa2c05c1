package hook

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownMethod is returned when the ABI has no function with the requested name.
	ErrUnknownMethod = errors.New("unknown method")

	// ErrZeroTarget is returned for a hook aimed at the zero address.
	ErrZeroTarget = errors.New("zero target address")

	// ErrZeroGasLimit is returned for a hook without a gas budget.
	ErrZeroGasLimit = errors.New("zero gas limit")
)

// EncodingError reports a hook that could not be turned into call data.
type EncodingError struct {
	Method string // Function name, empty when the ABI itself is bad
	Err    error  // Underlying cause
}

func (e *EncodingError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("hook encoding: %v", e.Err)
	}
	return fmt.Sprintf("hook encoding %s: %v", e.Method, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
