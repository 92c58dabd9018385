// Package render writes the console's JSON responses and its error envelope.
package render

import (
	"encoding/json"
	"errors"
	"net/http"

	"equipment-inventory-console/internal/apperr"
)

// ErrorResponse is the JSON error envelope every console endpoint uses
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Envelope builds the status and public body for err. Only the classified
// message is exposed: wrapped causes such as backend response bodies stay in
// the logs, and unclassified errors read "internal error".
func Envelope(err error) (int, ErrorResponse) {
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == 0 {
		return http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: "INTERNAL_ERROR"}
	}
	code := ae.Code
	if code == "" {
		code = "INTERNAL_ERROR"
	}
	return apperr.HTTPStatus(err), ErrorResponse{
		Error:     ae.Message,
		Code:      code,
		Retryable: ae.Kind == apperr.KindTransient,
	}
}

// Error writes the envelope for err
func Error(w http.ResponseWriter, err error) {
	status, body := Envelope(err)
	JSON(w, status, body)
}
