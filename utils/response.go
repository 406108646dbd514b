package utils

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"pantree/logger"
)

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}

// RespondInternal logs err and answers 500 without leaking details.
func RespondInternal(w http.ResponseWriter, r *http.Request, err error) {
	logger.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	RespondWithError(w, http.StatusInternalServerError, "An unexpected error occurred.")
}

// DecodeJSON reads a JSON body into v, capped at maxBytes.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	return json.NewDecoder(r.Body).Decode(v)
}
