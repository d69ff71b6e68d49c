package app

import (
	"encoding/json"
	"net/http"

	errtrackhttp "github.com/Kbman99/errtrack/http"
)

// ErrorResponse is the error envelope returned for failed requests.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

// SuccessResponse is the success envelope.
type SuccessResponse struct {
	RequestID string      `json:"request_id"`
	Data      interface{} `json:"data"`
}

// WriteError writes an error response in the standard envelope format. A
// non-nil err is attached to the response for the reporting middleware
// before the status is written.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string, err error) {
	if err != nil {
		errtrackhttp.AttachError(r.Context(), err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(r.Context()),
		},
	}

	if encodeErr := json.NewEncoder(w).Encode(response); encodeErr != nil {
		return
	}
}

// WriteSuccess writes a success response in the standard envelope format.
func WriteSuccess(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := SuccessResponse{
		RequestID: GetRequestID(r.Context()),
		Data:      data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		return
	}
}

// WriteInternalError is a helper for 500 responses.
func WriteInternalError(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteBadRequest is a helper for 400 responses.
func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, "bad_request", message, nil)
}

// WriteNotFound is a helper for 404 responses.
func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusNotFound, "not_found", message, nil)
}
