package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode identifies a class of fatal run errors.
type ErrorCode string

const (
	ErrEmptyRoomList ErrorCode = "EMPTY_ROOM_LIST"
	ErrFetchFailed   ErrorCode = "FETCH_FAILED"
	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrOutputFailed  ErrorCode = "OUTPUT_FAILED"
	ErrUploadFailed  ErrorCode = "UPLOAD_FAILED"
	ErrInternal      ErrorCode = "INTERNAL"
)

// AppError is a coded error with an optional underlying cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewEmptyRoomList is returned when the room list resolves to no rooms.
func NewEmptyRoomList(path string) *AppError {
	return &AppError{
		Code:    ErrEmptyRoomList,
		Message: fmt.Sprintf("no room found in %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewFetchFailed wraps a data source failure for one room.
func NewFetchFailed(room string, err error) *AppError {
	return &AppError{
		Code:    ErrFetchFailed,
		Message: fmt.Sprintf("fetch failed for room %q", room),
		Details: map[string]any{"room": room},
		Err:     err,
	}
}

// NewInvalidConfig reports an unusable configuration value.
func NewInvalidConfig(msg string) *AppError {
	return &AppError{
		Code:    ErrInvalidConfig,
		Message: msg,
	}
}

// NewOutputFailed wraps a failure to write the generated document.
func NewOutputFailed(path string, err error) *AppError {
	return &AppError{
		Code:    ErrOutputFailed,
		Message: fmt.Sprintf("cannot write %s", path),
		Details: map[string]any{"path": path},
		Err:     err,
	}
}

// NewUploadFailed wraps a failed transfer of the generated document.
func NewUploadFailed(target string, err error) *AppError {
	return &AppError{
		Code:    ErrUploadFailed,
		Message: fmt.Sprintf("upload to %s failed", target),
		Details: map[string]any{"target": target},
		Err:     err,
	}
}

// NewInternal creates an error for unexpected failures.
func NewInternal(err error) *AppError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{
		Code:    ErrInternal,
		Message: msg,
	}
}

// Is checks if err (or anything it wraps) is an AppError with the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
