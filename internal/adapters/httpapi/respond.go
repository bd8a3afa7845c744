package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"live-auction-service/internal/domain/shared"

	"github.com/rs/zerolog"
)

var kindStatuses = map[shared.Kind]int{
	shared.KindValidation:      http.StatusBadRequest,
	shared.KindPrecondition:    http.StatusConflict,
	shared.KindForbidden:       http.StatusForbidden,
	shared.KindConflict:        http.StatusConflict,
	shared.KindNotFound:        http.StatusNotFound,
	shared.KindDependency:      http.StatusBadGateway,
	shared.KindUnauthenticated: http.StatusUnauthorized,
}

// errorResponse is the body of every failed request
type errorResponse struct {
	Error string      `json:"error"`
	Code  shared.Kind `json:"code"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError maps a service error to its status. Internal errors are logged
// and reported without detail.
func respondError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	kind := shared.Classify(err)
	status, ok := kindStatuses[kind]
	if !ok {
		logger.Error().Err(err).Msg("Request failed")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: shared.KindInternal})
		return
	}
	respondJSON(w, status, errorResponse{Error: rootMessage(err), Code: kind})
}

// rootMessage strips wrapping context so clients see the domain message
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}
