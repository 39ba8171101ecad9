// Package httputil writes JSON responses and maps coded errors to statuses.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "regionsync/pkg/domain-errors"
	"regionsync/pkg/platform/sentinel"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err onto a status and an {error, error_description} body.
// Internal errors carry no description.
func WriteError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := map[string]string{"error": string(code)}
	if status < http.StatusInternalServerError {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, status, body)
}

func classify(err error) (int, dErrors.Code) {
	if errors.Is(err, sentinel.ErrNotFound) {
		return http.StatusNotFound, dErrors.CodeNotFound
	}
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest, code
	case dErrors.CodeNotFound:
		return http.StatusNotFound, code
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized, code
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout, code
	default:
		return http.StatusInternalServerError, dErrors.CodeInternal
	}
}
