// Package api holds the HTTP response envelope and the mapping from
// domain errors to status codes.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HirotoShioi/medical-assistant-ai/internal/domain"
)

// SuccessResponse is the envelope for every 2xx body.
type SuccessResponse struct {
	Data interface{} `json:"data"`
}

// ErrorResponse is the envelope for every error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes data as a JSON body with the given status. A nil data
// writes only headers, which is how 204 responses go out.
func JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func Success(w http.ResponseWriter, status int, data interface{}) {
	JSON(w, status, SuccessResponse{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

var statusByCode = map[string]int{
	domain.ErrCodeValidation:       http.StatusBadRequest,
	domain.ErrCodeInvalidOperation: http.StatusBadRequest,
	domain.ErrCodeNotFound:         http.StatusNotFound,
	domain.ErrCodeUnauthorized:     http.StatusUnauthorized,
	domain.ErrCodeUpstream:         http.StatusBadGateway,
	domain.ErrCodeInternalError:    http.StatusInternalServerError,
}

// DomainErrorToHTTP maps a domain error code to a status. Anything that
// is not a DomainError is a 500.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var derr *domain.DomainError
	if !errors.As(err, &derr) {
		return http.StatusInternalServerError
	}
	if status, ok := statusByCode[derr.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// HandleError writes the error as a response with its mapped status.
func HandleError(w http.ResponseWriter, err error) {
	Error(w, DomainErrorToHTTP(err), err.Error())
}
