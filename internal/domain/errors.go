package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrUnknownAccount     = errors.New("unknown account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrFeaturedCapReached = errors.New("featured listing cap reached")
	ErrOwnsBusinesses     = errors.New("user still owns businesses")
)

// ValidationError is raised before any store call when user input is rejected.
// Reason is a stable machine code or short message; handlers localize it.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Reason }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
