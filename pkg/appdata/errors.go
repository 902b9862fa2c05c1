package appdata

import (
	"errors"
	"fmt"
)

var (
	ErrNonFinite    = errors.New("non-finite number")
	ErrCycle        = errors.New("cyclic structure")
	ErrInvalidUTF8  = errors.New("invalid UTF-8")
	ErrUnsupported  = errors.New("unsupported value type")
	ErrDuplicateKey = errors.New("duplicate object key")
)

// CanonicalizationError reports a document that has no canonical form.
// Path is a JSON-pointer-like location ("$.metadata.hooks.pre[0]").
type CanonicalizationError struct {
	Path string
	Err  error
}

func (e *CanonicalizationError) Error() string {
	return fmt.Sprintf("canonicalize %s: %v", e.Path, e.Err)
}

func (e *CanonicalizationError) Unwrap() error {
	return e.Err
}
