package models

import "errors"

// Error taxonomy. Wrapped errors are tested with errors.Is.
var (
	ErrAuthentication = errors.New("authentication error")
	ErrConnection     = errors.New("connection error")
	ErrFetch          = errors.New("fetch error")
	ErrParse          = errors.New("parse error")
	ErrTransmission   = errors.New("transmission error")
)

// Controller errors
var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrAlreadyAuthenticated = errors.New("already authenticated")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrInvalidInterval      = errors.New("invalid poll interval")
	ErrStopPending          = errors.New("previous worker is still stopping")
	ErrLogoutDeclined       = errors.New("logout not confirmed")
)

// Kind returns a short label for the class of err, or "error" when unclassified
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return "authentication"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrFetch):
		return "fetch"
	case errors.Is(err, ErrParse):
		return "parse"
	case errors.Is(err, ErrTransmission):
		return "transmission"
	default:
		return "error"
	}
}
