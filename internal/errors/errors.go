package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrInvalidInput - invalid input (bad config value, malformed message, unusable payload)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found (unknown model group, missing persona, absent channel binding)
	ErrNotFound = errors.New("not found")

	// ErrConflict - conflict (workspace already locked, concurrent writer)
	ErrConflict = errors.New("conflict")

	// ErrTransient - transient error (network failure, rate limit, timeout; safe to retry)
	ErrTransient = errors.New("transient error")

	// ErrDuplicateEvent - platform redelivery of an event already handled (safe to ignore)
	ErrDuplicateEvent = errors.New("duplicate event")

	// ErrInvalidModelOutput - classifier returned malformed structured output
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrInternal - internal error (everything else)
	ErrInternal = errors.New("internal error")
)
