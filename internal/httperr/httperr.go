package httperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Error pairs an HTTP status with a client-safe message. The wrapped cause is
// for server-side logs only and must never reach a response body.
type Error struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New builds an Error with an explicit status, message, and optional cause.
func New(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Err: cause}
}

// InvalidArgument reports missing, empty, or wrong-type required input.
func InvalidArgument(cause error) *Error {
	return New(http.StatusBadRequest, "Missing required information. Request could not process.", cause)
}

// InvalidFileFormat reports an undetectable or unsupported image format.
func InvalidFileFormat() *Error {
	return New(http.StatusBadRequest, "File type isn't PNG, JPG, or JPEG. Only JPEG, JPG, and PNG images are allowed.", nil)
}

// InvalidBase64 reports a payload that failed base64 decoding.
func InvalidBase64(cause error) *Error {
	return New(http.StatusBadRequest, "Invalid base64. Please supply a valid base64 string for a JPEG or PNG image.", cause)
}

// CorruptImage reports bytes that decoded but could not be transcoded.
func CorruptImage(cause error) *Error {
	return New(http.StatusBadRequest, "Corrupt image. Please try again with a complete, valid base64 string for a PNG or JPEG.", cause)
}

// IncompleteRequest reports absent required top-level request fields.
func IncompleteRequest() *Error {
	return New(http.StatusBadRequest, "The request you provided is incomplete.", nil)
}

// InternalError reports I/O, subprocess, or persistence failures.
func InternalError(cause error) *Error {
	return New(http.StatusInternalServerError, "Internal error encountered. Please try again.", cause)
}

// FailedAuthentication reports a missing or invalid token.
func FailedAuthentication(cause error) *Error {
	return New(http.StatusUnauthorized, "Failed to authenticate your token.", cause)
}

// StatusOf extracts the HTTP status from err, defaulting to 500.
func StatusOf(err error) int {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return http.StatusInternalServerError
}

// MessageOf extracts the client-safe message from err. Unknown errors map to a
// generic internal message so system detail never leaks to a client.
func MessageOf(err error) string {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.Message
	}
	return InternalError(nil).Message
}
