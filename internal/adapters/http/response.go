package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// writeJSONError writes a JSON error response with the given status.
func writeJSONError(w http.ResponseWriter, message string, status int, logger *slog.Logger) {
	writeJSON(w, status, map[string]string{"error": message}, logger)
}

func writeJSON(w http.ResponseWriter, status int, body any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to write json response", "error", err)
	}
}
