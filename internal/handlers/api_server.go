package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/soragane/tilescore/internal/hub"
	"github.com/soragane/tilescore/internal/scoring"
	"github.com/soragane/tilescore/internal/session"
)

// APIServer bundles the session service, the broadcast hub, and the scorer
// boundary for the HTTP and WebSocket handlers.
type APIServer struct {
	Service *session.Service
	Hub     *hub.Hub
	Scorer  scoring.Scorer
	Logger  *logrus.Logger

	UploadDir string
	OutputDir string
}

// NewAPIServer wires a hub-backed session service and the scoring client.
func NewAPIServer(logger *logrus.Logger) *APIServer {
	h := hub.New(logger)
	return &APIServer{
		Service:   session.NewService(h, logger),
		Hub:       h,
		Scorer:    scoring.NewHTTPScorer(),
		Logger:    logger,
		UploadDir: getEnv("UPLOAD_DIR", "static/uploads"),
		OutputDir: getEnv("OUTPUT_DIR", "static/outputs"),
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeServiceError maps session service errors onto HTTP statuses:
// NotFound -> 404, validation -> 400, lock timeout -> 409 (retryable).
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
	case errors.Is(err, session.ErrLockTimeout):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "session busy, retry"})
	case session.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// getEnv is a helper to read an environment variable or return a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}
