// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity or request fails validation.
	// ValidationError wraps it, so errors.Is(err, ErrValidation) matches either.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or empty.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidEmail is returned when an email address is malformed.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrInvalidUsername is returned when a username violates length or charset rules.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrWeakPassword is returned when a password doesn't meet the strength policy.
	ErrWeakPassword = errors.New("password does not meet strength requirements")

	// ErrEmptyPasswordHash is returned when an identity is persisted without a hash.
	ErrEmptyPasswordHash = errors.New("password hash cannot be empty")

	// ErrEmptyToken is returned when a refresh record carries no token string.
	ErrEmptyToken = errors.New("token cannot be empty")

	// ErrInvalidExpiry is returned when a refresh record expires before it was created.
	ErrInvalidExpiry = errors.New("expiry must be after creation time")
)
