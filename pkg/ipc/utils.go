package ipc

import (
	"encoding/json"
	stdliberrors "errors"
	"net/http"
	"time"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

// respondJSON sends a JSON response with appropriate headers.
func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}

// respondError sends a structured JSON error response.
func respondError(w http.ResponseWriter, status int, err error) {
	response := struct {
		Error     string         `json:"error"`
		Status    int            `json:"status"`
		Code      string         `json:"code,omitempty"`
		Message   string         `json:"message"`
		Context   map[string]any `json:"context,omitempty"`
		Retryable bool           `json:"retryable,omitempty"`
		Timestamp string         `json:"timestamp"`
	}{
		Status:    status,
		Message:   http.StatusText(status),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	var appErr *apperrors.Error
	if stdliberrors.As(err, &appErr) {
		response.Code = string(appErr.Code)
		if appErr.Message != "" {
			response.Message = appErr.Message
		}
		response.Context = appErr.Context
		response.Retryable = appErr.Recoverable
	} else if err != nil {
		response.Message = err.Error()
	}
	response.Error = response.Message
	respondJSON(w, status, response)
}

// statusForError maps error codes onto HTTP statuses.
func statusForError(err error) int {
	switch {
	case apperrors.IsCode(err, apperrors.ErrCodeInvalidInput), apperrors.IsCode(err, apperrors.ErrCodeMalformedInput):
		return http.StatusBadRequest
	case apperrors.IsCode(err, apperrors.ErrCodeUnknownWidget):
		return http.StatusNotFound
	case apperrors.IsCode(err, apperrors.ErrCodeBackendUnavailable), apperrors.IsCode(err, apperrors.ErrCodeTransport):
		return http.StatusServiceUnavailable
	case apperrors.IsCode(err, apperrors.ErrCodeIncompleteIntent):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
