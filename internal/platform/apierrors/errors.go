package apierrors

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Error codes shared by the HTTP handlers.
const (
	CodeBadRequest       = "bad_request"
	CodeValidation       = "validation_failed"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeStoreUnavailable = "store_unavailable"
	CodeStoreWrite       = "store_write_failed"
	CodeNotConfigured    = "not_configured"
	CodeInternal         = "internal"
)

// ErrorResponse represents the canonical error envelope returned by the API.
type ErrorResponse struct {
	Code      string   `json:"code"`
	Message   string   `json:"message"`
	RequestID string   `json:"requestId,omitempty"`
	Details   []string `json:"details,omitempty"`
}

// ToStatusCode maps an error code to an HTTP status for default responses.
func ToStatusCode(code string) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeStoreUnavailable:
		return http.StatusServiceUnavailable
	case CodeStoreWrite:
		return http.StatusBadGateway
	case CodeNotConfigured:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Write renders the envelope for code using the status from ToStatusCode.
func Write(w http.ResponseWriter, r *http.Request, code, message string, details ...string) {
	resp := ErrorResponse{
		Code:      code,
		Message:   message,
		RequestID: middleware.GetReqID(r.Context()),
		Details:   details,
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(ToStatusCode(code))
	_ = json.NewEncoder(w).Encode(resp)
}
