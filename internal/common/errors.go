// Package common defines sentinel errors shared by the client layers of
// gophdrive. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn    = errors.New("not logged in")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// User input errors.
	ErrInvalidName = errors.New("invalid name")
	ErrDeclined    = errors.New("operation declined")
)
