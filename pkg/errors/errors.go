package errors

import (
	"errors"
	"fmt"
)

var (
	ErrBadRequest = errors.New("invalid input data")

	ErrInvalidAPIKey     = errors.New("invalid API key")
	ErrDeviceNotApproved = errors.New("device is not approved yet")

	ErrDeviceNotFound      = errors.New("device not found")
	ErrDeviceAlreadyExists = errors.New("device already exists")

	ErrFirmwareNotFound      = errors.New("firmware not found")
	ErrFirmwareAlreadyExists = errors.New("firmware version already exists")
	ErrFirmwareFileMissing   = errors.New("firmware file not found on server")
	ErrUpdateNotFound        = errors.New("update attempt not found")

	ErrRateLimited = errors.New("rate limit exceeded")
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NewAppError(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// BadRequest wraps a validation failure so it maps to HTTP 400 at the
// transport boundary while keeping the caller-facing message.
func BadRequest(message string) error {
	return &AppError{Code: "BAD_REQUEST", Message: message, Err: ErrBadRequest}
}
