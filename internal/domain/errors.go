package domain

import "errors"

// Domain errors returned by services and repository implementations.

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrTaskNotFound indicates the task does not exist or belongs to another user.
	ErrTaskNotFound = errors.New("task not found")

	// ErrListNotFound indicates the specified list does not exist.
	ErrListNotFound = errors.New("list not found")

	// ErrInvalidID indicates the provided ID format is invalid.
	ErrInvalidID = errors.New("invalid ID format")

	// ErrUserRequired indicates an operation was attempted without an owning user.
	ErrUserRequired = errors.New("user id is required")

	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// Validation errors.
var (
	ErrTitleRequired     = errors.New("title is required")
	ErrTitleTooLong      = errors.New("title must be 255 characters or less")
	ErrInvalidTaskStatus = errors.New("invalid task status")
	ErrStatusRequired    = errors.New("status is required")
	ErrFieldRequired     = errors.New("field value is required")
	ErrInvalidFilter     = errors.New("invalid filter")
)

// Update mask and concurrency errors.
var (
	ErrEmptyUpdateMask   = errors.New("update mask is empty")
	ErrUnknownField      = errors.New("unknown field in update mask")
	ErrInvalidEtagFormat = errors.New("etag must be a positive integer")
	ErrVersionConflict   = errors.New("version conflict")
)
