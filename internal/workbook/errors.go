package workbook

import (
	"errors"
	"fmt"
)

// AppErrorCode represents gRPC-style error codes for application-level errors.
// note that we are skipping error codes that don't make sense for our use-case,
// like unauthenticated, or permission denied.
type AppErrorCode int

const (
	// OK indicates the operation completed successfully.
	OK AppErrorCode = 0

	// Unknown error. errors that carry no code of their own are reported
	// with this one.
	Unknown AppErrorCode = 2

	// InvalidArgument indicates client specified an invalid argument, such as
	// a malformed cell address.
	InvalidArgument AppErrorCode = 3

	// NotFound means some requested entity (e.g., a sheet) was not found.
	NotFound AppErrorCode = 5

	// AlreadyExists means an attempt to create an entity failed because one
	// already exists.
	AlreadyExists AppErrorCode = 6

	// ResourceExhausted indicates a structural edit would push cells past the
	// last addressable row or column.
	ResourceExhausted AppErrorCode = 8

	// FailedPrecondition indicates operation was rejected because the
	// workbook is not in a state required for the operation's execution.
	FailedPrecondition AppErrorCode = 9

	// OutOfRange means operation was attempted past the valid range.
	OutOfRange AppErrorCode = 11

	// Unimplemented indicates operation is not implemented or not
	// supported/enabled in this service.
	Unimplemented AppErrorCode = 12

	// Internal errors. means some invariants expected by underlying
	// system has been broken.
	Internal AppErrorCode = 13
)

func (c AppErrorCode) String() string {
	switch c {
	case OK:
		return "OK"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case ResourceExhausted:
		return "ResourceExhausted"
	case FailedPrecondition:
		return "FailedPrecondition"
	case OutOfRange:
		return "OutOfRange"
	case Unimplemented:
		return "Unimplemented"
	case Internal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// AppError represents errors at the workbook level (not formula
// evaluation errors, which stay inside cell values)
type AppError struct {
	Code    AppErrorCode
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

// NewApplicationError creates a new application error
func NewApplicationError(code AppErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func appErrorf(code AppErrorCode, format string, args ...any) *AppError {
	return NewApplicationError(code, fmt.Sprintf(format, args...))
}

// CodeOf extracts the AppErrorCode from anywhere in err's chain. nil maps to
// OK and foreign errors to Unknown.
func CodeOf(err error) AppErrorCode {
	if err == nil {
		return OK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return Unknown
}
