package types

import "fmt"

// ErrorCode represents a unified error code across colloquy.
type ErrorCode string

// Conversation error codes.
const (
	// ErrConfiguration covers user-correctable input problems: missing
	// topic, empty credential, invalid roster. Never retried automatically.
	ErrConfiguration ErrorCode = "CONFIGURATION"

	// ErrSessionNotFound is an ordering invariant violation: a generate was
	// addressed to an agent the session store was never initialized with.
	ErrSessionNotFound ErrorCode = "SESSION_NOT_FOUND"

	// ErrProvider covers transport, HTTP and parse failures from the
	// external LLM call.
	ErrProvider ErrorCode = "PROVIDER"

	// ErrInvalidTransition is returned for intents that are not legal in
	// the current conversation status.
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
)

// Upstream sub-codes carried by provider adapters.
const (
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrRateLimited     ErrorCode = "RATE_LIMITED"
	ErrQuotaExceeded   ErrorCode = "QUOTA_EXCEEDED"
	ErrUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError   ErrorCode = "UPSTREAM_ERROR"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches errors by code so callers can use errors.Is with a bare
// NewError(code, "") sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
