package auth

import "errors"

// Sentinel errors returned by session verifiers and the session service.
var (
	ErrNoToken        = errors.New("no session token")
	ErrInvalidToken   = errors.New("invalid session token")
	ErrSessionExpired = errors.New("session expired")
	ErrSessionRevoked = errors.New("session revoked")
)
