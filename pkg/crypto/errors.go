package crypto

import (
	"errors"
	"fmt"
)

var (
	ErrNoKey             = errors.New("no signing key")
	ErrInvalidKey        = errors.New("invalid private key")
	ErrUnsupportedScheme = errors.New("unsupported signing scheme")
	ErrInvalidSignature  = errors.New("invalid signature")
)

// SigningError reports why an order could not be signed. Field is the order
// field at fault, or "key"/"signingScheme" when the problem is not in the order.
type SigningError struct {
	Field string
	Err   error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed (%s): %v", e.Field, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}
