package errors

import "fmt"

// Connection-level authentication failures. Any of these is fatal to
// the connection that triggered it.
var (
	ErrMissingToken     = fmt.Errorf("authentication token is missing")
	ErrMalformedToken   = fmt.Errorf("authentication token is malformed")
	ErrInvalidSignature = fmt.Errorf("authentication token signature is invalid")
	ErrTokenExpired     = fmt.Errorf("authentication token is expired")
)

// Request-level failures. These are returned to the caller on the same
// connection and never close it.
var (
	ErrInvalidContent   = fmt.Errorf("message content is empty or too long")
	ErrRecipientUnknown = fmt.Errorf("recipient is unknown")
	ErrStorage          = fmt.Errorf("message store failure")
)

// Account management failures.
var (
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// Runtime failures.
var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrEmptyWordList = fmt.Errorf("no censored words have been found")
)
