package handler

import (
	"encoding/json"
	"net/http"

	"prepdeck/internal/apperrors"
)

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeAppError maps the error taxonomy onto HTTP statuses and exposes the
// code and retryability so clients can branch without parsing messages.
func writeAppError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusForCode(code)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":     err.Error(),
		"code":      string(code),
		"retryable": apperrors.IsRetryable(err),
	})
}

func statusForCode(code apperrors.Code) int {
	switch code {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidState, apperrors.CodeSessionBusy, apperrors.CodeConcurrentModification:
		return http.StatusConflict
	case apperrors.CodeConfiguration, apperrors.CodeNoEligibleQuestions:
		return http.StatusUnprocessableEntity
	case apperrors.CodeEvaluationTimeout:
		return http.StatusGatewayTimeout
	case apperrors.CodeEvaluationUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
