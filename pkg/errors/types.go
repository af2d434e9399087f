// Package errors defines the coded errors livewidgets reports. Codes are
// stable strings that surface in diagnostics, metrics labels and HTTP
// error bodies.
package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
)

// ErrorCode classifies an Error.
type ErrorCode string

const (
	// Widget input and lifecycle. These are handled where they happen and
	// only surface as diagnostics.
	ErrCodeMalformedInput     ErrorCode = "MALFORMED_INPUT"
	ErrCodeBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrCodeIncompleteIntent   ErrorCode = "INCOMPLETE_INTENT"
	ErrCodeResourceReleased   ErrorCode = "RESOURCE_RELEASED"
	ErrCodeUnknownWidget      ErrorCode = "UNKNOWN_WIDGET"

	ErrCodeConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrCodeConfigParse   ErrorCode = "CONFIG_PARSE"
	ErrCodeConfigInvalid ErrorCode = "CONFIG_INVALID"

	ErrCodeTransport ErrorCode = "TRANSPORT"
	ErrCodeExport    ErrorCode = "EXPORT"

	ErrCodeInternal     ErrorCode = "INTERNAL"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// recoverable codes are absorbed by the component that raised them.
var recoverable = map[ErrorCode]bool{
	ErrCodeMalformedInput:     true,
	ErrCodeBackendUnavailable: true,
	ErrCodeIncompleteIntent:   true,
	ErrCodeResourceReleased:   true,
}

// Error is a coded error with optional context and the call stack of the
// point it was created.
type Error struct {
	Code        ErrorCode
	Message     string
	Underlying  error
	Context     map[string]any
	Stack       []Frame
	Recoverable bool
}

// Frame is one resolved stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

func (f Frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.Function, f.File, f.Line)
}

// New creates an Error.
func New(code ErrorCode, message string) *Error {
	return build(code, message, nil)
}

// Wrap attaches a code to err. Wrap(nil, ...) is nil.
func Wrap(err error, code ErrorCode, message string) *Error {
	if err == nil {
		return nil
	}
	return build(code, message, err)
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return build(code, fmt.Sprintf(format, args...), err)
}

func build(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:        code,
		Message:     message,
		Underlying:  cause,
		Context:     map[string]any{},
		Stack:       callers(4),
		Recoverable: recoverable[code],
	}
}

// WithContext records key=value on the error and returns it.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// Error renders "[CODE] message {k: v, ...}: cause" with context keys
// sorted.
func (e *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s: %v", k, e.Context[k])
		}
		sb.WriteString(" {" + strings.Join(pairs, ", ") + "}")
	}
	if e.Underlying != nil {
		fmt.Fprintf(&sb, ": %v", e.Underlying)
	}
	return sb.String()
}

func (e *Error) Unwrap() error { return e.Underlying }

// StackTrace renders Stack one frame per line.
func (e *Error) StackTrace() string {
	lines := make([]string, len(e.Stack))
	for i, f := range e.Stack {
		lines[i] = f.String()
	}
	return strings.Join(lines, "\n")
}

func callers(skip int) []Frame {
	var pcs [32]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, Frame{Function: f.Function, File: f.File, Line: f.Line})
		if !more {
			return out
		}
	}
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// GetCode returns the code of the first Error in err's chain, INTERNAL
// for uncoded errors and "" for nil.
func GetCode(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ErrCodeInternal
}

// IsRecoverable reports whether err is absorbed where it was raised.
func IsRecoverable(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Recoverable
}
