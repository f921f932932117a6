package isochrone

import (
	"errors"
	"strings"
)

// Sentinel errors for isochrone operations.
var (
	// ErrProviderUnavailable indicates the provider is down or the circuit breaker is open.
	ErrProviderUnavailable = errors.New("isochrone provider unavailable")
	// ErrRateLimitExceeded indicates the API quota has been exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	// ErrBadRequest indicates the provider rejected the request parameters.
	ErrBadRequest = errors.New("provider rejected request")
	// ErrInvalidResponse indicates a 2xx response that could not be decoded.
	ErrInvalidResponse = errors.New("malformed provider response")
)

// DefaultProviderMessage is shown when the provider gives no usable message.
const DefaultProviderMessage = "failed to build isochrone"

// FieldError describes one invalid input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed coordinates or an out-of-range magnitude.
// It is produced before any network call.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid request"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Has reports whether field is among the offending fields.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// ProviderError provides detailed error information from the isochrone provider.
type ProviderError struct {
	Provider string // Provider that generated the error
	Status   int    // HTTP status, zero when the request never completed
	Code     string // Error code from the provider
	Message  string // User-facing message
	Err      error  // Underlying error
}

// Error returns the user-facing message, which is the provider's own message
// whenever one could be parsed.
func (e *ProviderError) Error() string {
	if e.Message == "" {
		return DefaultProviderMessage
	}
	return e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient.
func (e *ProviderError) IsRetryable() bool {
	return errors.Is(e.Err, ErrProviderUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
