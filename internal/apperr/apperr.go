// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindAuthentication
	KindConflict
	KindNotFound
	KindTimeout
	KindConfiguration
	KindCrypto
)

// Stable error codes returned to clients.
const (
	CodeValidation         = "VALIDATION_ERROR"
	CodeMissingFields      = "MISSING_FIELDS"
	CodeInvalidEmail       = "INVALID_EMAIL"
	CodeWeakPassword       = "WEAK_PASSWORD"
	CodeInvalidJSON        = "INVALID_JSON"
	CodeAuthentication     = "AUTHENTICATION_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUserExists         = "USER_EXISTS"
	CodeGoalExists         = "GOAL_EXISTS"
	CodeNotFound           = "NOT_FOUND_ERROR"
	CodeTimeout            = "TIMEOUT_ERROR"
	CodeConfiguration      = "CONFIGURATION_ERROR"
	CodeCrypto             = "CRYPTO_ERROR"
	CodeInternal           = "INTERNAL_ERROR"
)

// Error is a classified application error. Message is safe to show to clients;
// Err carries the internal cause and is only logged.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Status returns the HTTP status code for the error kind.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Exposed reports whether Message may be returned verbatim to the client.
func (e *Error) Exposed() bool {
	switch e.Kind {
	case KindConfiguration, KindCrypto, KindInternal:
		return false
	default:
		return true
	}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Code: CodeValidation, Message: message}
}

// ValidationCode is Validation with a more specific code.
func ValidationCode(code, message string, details any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Details: details}
}

func Authentication(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{Kind: KindAuthentication, Code: CodeAuthentication, Message: message}
}

// InvalidCredentials is returned for both unknown emails and wrong passwords.
func InvalidCredentials() *Error {
	return &Error{Kind: KindAuthentication, Code: CodeInvalidCredentials, Message: "Invalid email or password"}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{Kind: KindNotFound, Code: CodeNotFound, Message: message}
}

func Configuration(message string, err error) *Error {
	return &Error{Kind: KindConfiguration, Code: CodeConfiguration, Message: message, Err: err}
}

func Crypto(message string, err error) *Error {
	return &Error{Kind: KindCrypto, Code: CodeCrypto, Message: message, Err: err}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// Timeout wraps an I/O budget overrun. details should identify the operation and budget.
func Timeout(details any, err error) *Error {
	return &Error{Kind: KindTimeout, Code: CodeTimeout, Message: "The operation timed out", Details: details, Err: err}
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err's chain contains an *Error of kind k.
func IsKind(err error, k Kind) bool {
	appErr, ok := As(err)
	return ok && appErr.Kind == k
}
