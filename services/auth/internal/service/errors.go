package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account inactive")
	ErrUnknownSubject     = errors.New("unknown subject")
	ErrUnknownSession     = errors.New("unknown session")
	ErrConflict           = errors.New("user already exists")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// ValidationError carries per-field registration failures for the 400 body.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
