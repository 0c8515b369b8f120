package models

// ErrorResponse is the standard JSON error body.
type ErrorResponse struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Remaining *int   `json:"remaining,omitempty"` // set only for credit-exhausted failures
}

// Error codes returned in ErrorResponse.Code. The client branches on
// ErrCodeInsufficientCredits specifically, so it must stay distinguishable
// from generic failures.
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeTokenInvalid        = "TOKEN_INVALID"
	ErrCodeTokenExpired        = "TOKEN_EXPIRED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInsufficientCredits = "INSUFFICIENT_CREDITS"
	ErrCodeProviderFailure     = "PROVIDER_FAILURE"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeInternal            = "INTERNAL_ERROR"
)
