// Package cerror carries the user-visible error taxonomy.
package cerror

import "net/http"

// Tags classify failures surfaced to users or operators. Decode
// failures carry their own type in pkg/capsule, transport failures are
// handled per send call, and configuration failures abort startup
// before any of this is reachable.
const (
	TagOwnership   = "ownership"
	TagValidation  = "validation"
	TagPersistence = "persistence"
)

type (
	// An Error represents the error format that can be rendered by the gateway.
	Error struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if cerr, ok := err.(*Error); ok && cerr.HTTPCode != 0 {
		return cerr.HTTPCode
	}
	return http.StatusInternalServerError
}

// Tag returns the classification tag of err, or an empty string.
func Tag(err error) string {
	if cerr, ok := err.(*Error); ok {
		return cerr.FieldError.Tag
	}
	return ""
}

// NewWithTagCode returns a new Error with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *Error {
	return &Error{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// NewOwnership returns the error raised when a user acts on a capsule
// that is not theirs.
func NewOwnership(message string) *Error {
	return NewWithTagCode(http.StatusForbidden, TagOwnership, message)
}

// NewValidation returns the error raised on malformed user input.
// The authoring session keeps its state so the step can be retried.
func NewValidation(message string) *Error {
	return NewWithTagCode(http.StatusBadRequest, TagValidation, message)
}

// NewPersistence returns the error raised when the store is unreachable.
func NewPersistence(message string) *Error {
	return NewWithTagCode(http.StatusServiceUnavailable, TagPersistence, message)
}

// Error implements error interface.
func (e *Error) Error() string {
	return e.FieldError.Message
}
