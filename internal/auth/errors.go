package auth

import (
	"errors"
	"fmt"
)

// Failure taxonomy. Handlers map these to HTTP statuses with errors.Is; any
// other error is treated as an internal failure.
var (
	ErrValidation         = errors.New("validation error")
	ErrConflict           = errors.New("email is already in use")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNotFound           = errors.New("account not found")
)

func validationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}
