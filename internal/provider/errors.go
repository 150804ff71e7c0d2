package provider

import "errors"

// Upstream failure taxonomy. NotFound terminates a whole request;
// Denied, Transient and Malformed are caught at the smallest possible
// scope and degrade a single field, node or statement.
var (
	ErrNotFound  = errors.New("not found")
	ErrDenied    = errors.New("access denied")
	ErrTransient = errors.New("transient upstream failure")
	ErrMalformed = errors.New("malformed content")
)

func IsNotFound(err error) bool  { return errors.Is(err, ErrNotFound) }
func IsDenied(err error) bool    { return errors.Is(err, ErrDenied) }
func IsTransient(err error) bool { return errors.Is(err, ErrTransient) }
func IsMalformed(err error) bool { return errors.Is(err, ErrMalformed) }
