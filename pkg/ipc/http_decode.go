package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/odvcencio/livewidgets/pkg/errors"
)

const (
	maxBodyBytesTiny  int64 = 64 << 10
	maxBodyBytesSmall int64 = 1 << 20
)

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, maxBytes int64, allowEOF bool) (int, error) {
	if r == nil || r.Body == nil {
		if allowEOF {
			return 0, nil
		}
		return http.StatusBadRequest, apperrors.New(apperrors.ErrCodeInvalidInput, "request body required")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if allowEOF && errors.Is(err, io.EOF) {
			return 0, nil
		}
		if status, tooLarge := bodyTooLarge(err, maxBytes); tooLarge != nil {
			return status, tooLarge
		}
		return http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeMalformedInput, "malformed JSON body")
	}
	return 0, nil
}

// readBody reads a raw body such as an HTML fragment or event payload.
func readBody(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, int, error) {
	if r == nil || r.Body == nil {
		return nil, http.StatusBadRequest, apperrors.New(apperrors.ErrCodeInvalidInput, "request body required")
	}
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		if status, tooLarge := bodyTooLarge(err, maxBytes); tooLarge != nil {
			return nil, status, tooLarge
		}
		return nil, http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "reading body")
	}
	return data, 0, nil
}

func bodyTooLarge(err error, maxBytes int64) (int, error) {
	var maxErr *http.MaxBytesError
	if !errors.As(err, &maxErr) {
		return 0, nil
	}
	msg := "request body too large"
	if maxBytes > 0 {
		msg = fmt.Sprintf("request body too large (max %d bytes)", maxBytes)
	}
	return http.StatusRequestEntityTooLarge, apperrors.New(apperrors.ErrCodeInvalidInput, msg)
}
