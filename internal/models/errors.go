package models

import "errors"

var (
	// General errors
	ErrNotFound       = errors.New("resource not found")
	ErrCanvasNotFound = errors.New("canvas not found")
	ErrJobNotFound    = errors.New("generation job not found")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSlotEmpty       = errors.New("slot has no versions")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")

	// Credit errors
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrAccountNotFound     = errors.New("credit account not found")

	// Generation errors
	ErrProviderFailure  = errors.New("generation provider request failed")
	ErrJobNotExtendable = errors.New("job is not in an extendable state")

	// Script review gate errors
	ErrNoScript          = errors.New("no script to operate on")
	ErrScriptDrafting    = errors.New("script drafting already in flight")
	ErrScriptNotEditable = errors.New("script is not editable in its current stage")

	// Input errors
	ErrBadRequest   = errors.New("bad request")
	ErrInvalidInput = errors.New("invalid input data")
)

// InsufficientCreditsError is returned when a debit would drive the balance
// below zero. It carries the authoritative remaining so the caller can
// reconcile its optimistic ledger without a full refresh round-trip.
type InsufficientCreditsError struct {
	Required  int
	Remaining int
}

func (e *InsufficientCreditsError) Error() string {
	return ErrInsufficientCredits.Error()
}

func (e *InsufficientCreditsError) Unwrap() error {
	return ErrInsufficientCredits
}
