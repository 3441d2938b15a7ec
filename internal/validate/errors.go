package validate

import "fmt"

// Code classifies a validation failure.
type Code string

const (
	CodeShellNotFound             Code = "ShellNotFound"
	CodeEmptyCommand              Code = "EmptyCommand"
	CodeCommandTooLong            Code = "CommandTooLong"
	CodeOperatorBlocked           Code = "OperatorBlocked"
	CodeCommandBlocked            Code = "CommandBlocked"
	CodeArgumentBlocked           Code = "ArgumentBlocked"
	CodeMalformedCommand          Code = "MalformedCommand"
	CodeInvalidPathFormat         Code = "InvalidPathFormat"
	CodePathNotAllowed            Code = "PathNotAllowed"
	CodeWorkingDirectoryUndefined Code = "WorkingDirectoryUndefined"
)

// Error is a per-request validation failure. Value names the offending
// command, argument, operator or path.
type Error struct {
	Code    Code
	Value   string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %q", e.Code, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any *Error with the same code, so the sentinels below work
// with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrShellNotFound             = &Error{Code: CodeShellNotFound}
	ErrEmptyCommand              = &Error{Code: CodeEmptyCommand}
	ErrCommandTooLong            = &Error{Code: CodeCommandTooLong}
	ErrOperatorBlocked           = &Error{Code: CodeOperatorBlocked}
	ErrCommandBlocked            = &Error{Code: CodeCommandBlocked}
	ErrArgumentBlocked           = &Error{Code: CodeArgumentBlocked}
	ErrMalformedCommand          = &Error{Code: CodeMalformedCommand}
	ErrInvalidPathFormat         = &Error{Code: CodeInvalidPathFormat}
	ErrPathNotAllowed            = &Error{Code: CodePathNotAllowed}
	ErrWorkingDirectoryUndefined = &Error{Code: CodeWorkingDirectoryUndefined}
)

func newError(code Code, value, format string, args ...any) *Error {
	return &Error{Code: code, Value: value, Message: fmt.Sprintf(format, args...)}
}
