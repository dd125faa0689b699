package model

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// NotFoundError is an error signaling that something was not found
type NotFoundError string

// Error implements the error interface
func (e NotFoundError) Error() string {
	return string(e)
}

// NotFoundErrorFmt returns a NotFoundError from the passed format string and parameters
func NotFoundErrorFmt(format string, params ...any) NotFoundError {
	return NotFoundError(fmt.Sprintf(format, params...))
}

// AlreadyExistsError is an error signaling that a unique value is already taken
type AlreadyExistsError string

// Error implements the error interface
func (e AlreadyExistsError) Error() string {
	return string(e)
}

// AlreadyExistsErrorFmt returns an AlreadyExistsError from the passed format string and parameters
func AlreadyExistsErrorFmt(format string, params ...any) AlreadyExistsError {
	return AlreadyExistsError(fmt.Sprintf(format, params...))
}

// BadRequestError signals a request that is malformed or violates a limit
type BadRequestError string

// Error implements the error interface
func (e BadRequestError) Error() string {
	return string(e)
}

// BadRequestErrorFmt returns a BadRequestError from the passed format string and parameters
func BadRequestErrorFmt(format string, params ...any) BadRequestError {
	return BadRequestError(fmt.Sprintf(format, params...))
}

// QuotaExceededError signals that a private namespace would grow beyond its
// entry count or size quota. It is reported like a BadRequestError.
type QuotaExceededError string

// Error implements the error interface
func (e QuotaExceededError) Error() string {
	return string(e)
}

// QuotaExceededErrorFmt returns a QuotaExceededError from the passed format string and parameters
func QuotaExceededErrorFmt(format string, params ...any) QuotaExceededError {
	return QuotaExceededError(fmt.Sprintf(format, params...))
}

// UnauthorizedError signals a missing, expired or unknown session
type UnauthorizedError string

// Error implements the error interface
func (e UnauthorizedError) Error() string {
	return string(e)
}

// ForbiddenError signals an authenticated caller that may not perform an
// operation
type ForbiddenError string

// Error implements the error interface
func (e ForbiddenError) Error() string {
	return string(e)
}

// ForbiddenErrorFmt returns a ForbiddenError from the passed format string and parameters
func ForbiddenErrorFmt(format string, params ...any) ForbiddenError {
	return ForbiddenError(fmt.Sprintf(format, params...))
}

// InvalidParamError is raised by the client before any request is sent; the
// value names the offending parameter.
type InvalidParamError string

// Error implements the error interface
func (e InvalidParamError) Error() string {
	return "Invalid param: " + string(e)
}

// EncryptionNotInitializedError is raised by the client when private data
// must be encrypted or decrypted but no key material is available.
type EncryptionNotInitializedError struct{}

// Error implements the error interface
func (EncryptionNotInitializedError) Error() string {
	return "Encryption not initialized"
}

// StatusCode maps an error onto the http status code it is reported with.
// Errors not known to the model are internal errors.
func StatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var (
		notFound      NotFoundError
		alreadyExists AlreadyExistsError
		badRequest    BadRequestError
		quota         QuotaExceededError
		unauthorized  UnauthorizedError
		forbidden     ForbiddenError
		invalidParam  InvalidParamError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &alreadyExists):
		return http.StatusConflict
	case errors.As(err, &badRequest), errors.As(err, &quota), errors.As(err, &invalidParam):
		return http.StatusBadRequest
	case errors.As(err, &unauthorized):
		return http.StatusUnauthorized
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// ErrorFromStatus is the inverse of StatusCode; it turns a status code and a
// message received over the wire back into a typed error.
func ErrorFromStatus(status int, message string) error {
	if message == "" {
		message = http.StatusText(status)
	}
	switch status {
	case http.StatusNotFound:
		return NotFoundError(message)
	case http.StatusConflict:
		return AlreadyExistsError(message)
	case http.StatusBadRequest:
		return BadRequestError(message)
	case http.StatusUnauthorized:
		return UnauthorizedError(message)
	case http.StatusForbidden:
		return ForbiddenError(message)
	default:
		return errors.Errorf("%d %s: %s", status, http.StatusText(status), message)
	}
}
