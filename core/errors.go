package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the class of a database failure as seen by the retry policy.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConnection is a failure to reach the server or a connection dropped mid-flight.
	KindConnection
	// KindQuery is an error raised by the server while executing or streaming a query.
	KindQuery
	// KindDeadConnection means the liveness check after consuming a result failed.
	KindDeadConnection
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindQuery:
		return "query"
	case KindDeadConnection:
		return "dead_connection"
	default:
		return "unknown"
	}
}

// DBError is a classified driver error: kind plus a driver specific code (SQLSTATE where available).
type DBError struct {
	Kind ErrorKind
	Code string
	Err  error
}

func NewDBError(kind ErrorKind, code string, err error) *DBError {
	return &DBError{Kind: kind, Code: code, Err: err}
}

func (e *DBError) Error() string {
	if e.Code == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Err.Error())
}

func (e *DBError) Unwrap() error {
	return e.Err
}

// ConnectionError is returned when a connection can't be established.
// Fatal errors (missing driver, invalid parameters) are never retried.
type ConnectionError struct {
	Fatal bool
	Err   error
}

func (e *ConnectionError) Error() string {
	return "connection failed: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// DeadConnectionError is returned when the connection died while a result was consumed.
type DeadConnectionError struct {
	Err error
}

func (e *DeadConnectionError) Error() string {
	return "dead connection: " + e.Err.Error()
}

func (e *DeadConnectionError) Unwrap() error {
	return e.Err
}

// AdapterError wraps a retryable error after all attempts were exhausted.
type AdapterError struct {
	Attempts int
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("%s Tried %d times.", e.Err.Error(), e.Attempts)
}

func (e *AdapterError) Unwrap() error {
	return e.Err
}

// CSVWriteError is a failure to write the output file. It is never retried.
type CSVWriteError struct {
	Path string
	Err  error
}

func (e *CSVWriteError) Error() string {
	return fmt.Sprintf("writing %q: %s", e.Path, e.Err.Error())
}

func (e *CSVWriteError) Unwrap() error {
	return e.Err
}

// UserError is caused by the configuration or the data source and can be fixed by the user.
type UserError struct {
	Msg string
	Err error
}

func NewUserError(format string, args ...any) *UserError {
	err := fmt.Errorf(format, args...)
	return &UserError{Msg: err.Error(), Err: errors.Unwrap(err)}
}

func (e *UserError) Error() string {
	return e.Msg
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// ValidationError is a user error detected before anything is executed.
type ValidationError struct {
	UserError
}

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{UserError: *NewUserError(format, args...)}
}

// ApplicationError is an internal or environment failure.
type ApplicationError struct {
	Msg string
	Err error
}

func NewApplicationError(format string, args ...any) *ApplicationError {
	err := fmt.Errorf(format, args...)
	return &ApplicationError{Msg: err.Error(), Err: errors.Unwrap(err)}
}

func (e *ApplicationError) Error() string {
	return e.Msg
}

func (e *ApplicationError) Unwrap() error {
	return e.Err
}

// KindOf returns the ErrorKind of the first classified error in the chain.
func KindOf(err error) (ErrorKind, string) {
	var dead *DeadConnectionError
	if errors.As(err, &dead) {
		return KindDeadConnection, ""
	}

	var dbErr *DBError
	if errors.As(err, &dbErr) {
		return dbErr.Kind, dbErr.Code
	}

	return KindUnknown, ""
}

// IsUserError reports whether err should be presented as a user error.
func IsUserError(err error) bool {
	var appErr *ApplicationError
	if errors.As(err, &appErr) {
		return false
	}

	var userErr *UserError
	if errors.As(err, &userErr) {
		return true
	}

	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// ExitCode maps an error to the process exit code: 0 ok, 1 user error, 2 application error.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case IsUserError(err):
		return 1
	default:
		return 2
	}
}
