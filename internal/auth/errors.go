package auth

import "errors"

// Sentinel errors for the authentication and grant paths. Handlers map
// these onto HTTP status codes; the distinctions are kept for logs even
// where the client-facing response is deliberately uniform.
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrTokenInvalid       = errors.New("session token invalid")
	ErrTokenExpired       = errors.New("session token expired")
	ErrForbidden          = errors.New("role not permitted")
	ErrGrantInvalid       = errors.New("download grant invalid")
	ErrGrantExpired       = errors.New("download grant expired")
	ErrGrantAlreadyUsed   = errors.New("download grant already used")
)
