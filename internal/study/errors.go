package study

import "errors"

type ErrorCode string

const (
	ErrorConfig          ErrorCode = "config"
	ErrorPlanning        ErrorCode = "planning"
	ErrorStaleSubmission ErrorCode = "stale_submission"
	ErrorStorage         ErrorCode = "storage"
	ErrorUnauthorized    ErrorCode = "unauthorized"
	ErrorNotFound        ErrorCode = "not_found"
	ErrorInvalid         ErrorCode = "invalid"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func NewConfigError(msg string) error   { return &Error{Code: ErrorConfig, Message: msg} }
func NewPlanningError(msg string) error { return &Error{Code: ErrorPlanning, Message: msg} }
func NewStaleSubmissionError(msg string) error {
	return &Error{Code: ErrorStaleSubmission, Message: msg}
}
func NewStorageError(msg string) error { return &Error{Code: ErrorStorage, Message: msg} }

// WrapStorageError tags a store failure with its operation while keeping
// the cause available to errors.Is/As.
func WrapStorageError(op string, err error) error {
	return &Error{Code: ErrorStorage, Message: op, Err: err}
}

func NewUnauthorizedError(msg string) error { return &Error{Code: ErrorUnauthorized, Message: msg} }
func NewNotFoundError(msg string) error     { return &Error{Code: ErrorNotFound, Message: msg} }
func NewInvalidError(msg string) error      { return &Error{Code: ErrorInvalid, Message: msg} }

func AsStudyError(err error) (*Error, bool) {
	var se *Error
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsCode reports whether err is a study error carrying the given code.
func IsCode(err error, code ErrorCode) bool {
	se, ok := AsStudyError(err)
	return ok && se.Code == code
}
