package main

import (
	"errors"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

// Process exit statuses.
const (
	exitOK             = 0
	exitFailure        = 1
	exitUsage          = 2
	exitBusUnavailable = 3
)

// statusError pins the exit status of a command failure.
type statusError struct {
	status int
	cause  error
}

func (e *statusError) Error() string { return e.cause.Error() }

func (e *statusError) Unwrap() error { return e.cause }

func withExitCode(err error, status int) error {
	if err == nil {
		return nil
	}
	return &statusError{status: status, cause: err}
}

// exitCodeForError maps err to an exit status. A pinned status wins;
// otherwise config errors are usage errors and transport errors mean the
// bus could not be reached.
func exitCodeForError(err error) int {
	if err == nil {
		return exitOK
	}
	var pinned *statusError
	if errors.As(err, &pinned) {
		return pinned.status
	}
	switch {
	case apperrors.IsCode(err, apperrors.ErrCodeConfigLoad),
		apperrors.IsCode(err, apperrors.ErrCodeConfigParse),
		apperrors.IsCode(err, apperrors.ErrCodeConfigInvalid):
		return exitUsage
	case apperrors.IsCode(err, apperrors.ErrCodeTransport):
		return exitBusUnavailable
	}
	return exitFailure
}
