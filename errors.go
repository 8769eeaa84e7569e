package hdrjwt

import (
	"errors"
	"fmt"
)

// ErrorCode represents assertion error categories.
type ErrorCode string

const (
	ErrCodeEncoding       ErrorCode = "encoding_error"
	ErrCodeKeyResolution  ErrorCode = "key_resolution_error"
	ErrCodeUnsupportedKey ErrorCode = "unsupported_key"
	ErrCodeSigning        ErrorCode = "signing_error"
	ErrCodeInvalidToken   ErrorCode = "invalid_token"
	ErrCodeExpired        ErrorCode = "token_expired"
	ErrCodeConfiguration  ErrorCode = "configuration_error"
)

var errorMessages = map[ErrorCode]string{
	ErrCodeEncoding:       "Assertion encoding failed",
	ErrCodeKeyResolution:  "Signing key could not be resolved",
	ErrCodeUnsupportedKey: "Signing key not usable for RS256",
	ErrCodeSigning:        "Assertion signing failed",
	ErrCodeInvalidToken:   "Invalid token",
	ErrCodeExpired:        "Token expired",
	ErrCodeConfiguration:  "Invalid configuration",
}

// Error wraps assertion errors with a stable code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	base := e.Message
	if base == "" {
		base = string(e.Code)
	}
	if e.Err == nil {
		return base
	}
	return fmt.Sprintf("%s: %v", base, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsCode reports whether err carries the given code anywhere in its chain.
func IsCode(err error, code ErrorCode) bool {
	var hErr *Error
	if !errors.As(err, &hErr) {
		return false
	}
	return hErr.Code == code
}

// CodeOf returns the code of err, or an empty code when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var hErr *Error
	if !errors.As(err, &hErr) {
		return ""
	}
	return hErr.Code
}

func newError(code ErrorCode, err error) error {
	msg, ok := errorMessages[code]
	if !ok {
		msg = string(code)
	}
	return &Error{Code: code, Message: msg, Err: err}
}
