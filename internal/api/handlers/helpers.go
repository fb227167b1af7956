// Handler helper functions shared by every endpoint.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/matiasleandrokruk/askbot/internal/api/ctxkeys"
)

const (
	headerContentType = "Content-Type"
	mimeJSON          = "application/json"

	statusSuccess = "success"
	statusError   = "error"
)

// getSessionID retrieves the session id injected by SessionMiddleware.
func getSessionID(ctx context.Context) (string, error) {
	sid, ok := ctxkeys.String(ctx, ctxkeys.SessionID)
	if !ok {
		return "", fmt.Errorf("session_id not found in context")
	}
	return sid, nil
}

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set(headerContentType, mimeJSON)
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError writes the uniform {error, status:"error"} body.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message, "status": statusError})
}
