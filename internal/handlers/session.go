package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/soragane/tilescore/internal/models"
)

// createSessionRequest is the payload for POST /api/session/create.
type createSessionRequest struct {
	Players []string `json:"players"`
}

// CreateSessionHandler creates a new session from a list of 4 player names
// and returns the initial snapshot with the share code.
func (s *APIServer) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad create request payload"})
		return
	}

	snapshot, err := s.Service.CreateSession(req.Players)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, snapshot)
}

// SessionHandler routes /api/session/{code} and /api/session/{code}/win.
//
//	GET    /api/session/{code}      -> snapshot
//	DELETE /api/session/{code}      -> teardown acknowledgment
//	POST   /api/session/{code}/win  -> apply settlement, return new snapshot
func (s *APIServer) SessionHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/session/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		http.Error(w, "missing session code", http.StatusBadRequest)
		return
	}
	code := strings.ToUpper(parts[0])

	if len(parts) >= 2 && parts[1] == "win" {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleDeclareWin(w, r, code)
		return
	}

	switch r.Method {
	case http.MethodGet:
		snapshot, err := s.Service.GetSession(code)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, snapshot)

	case http.MethodDelete:
		if err := s.Service.EndSession(code); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "session " + code + " deleted",
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *APIServer) handleDeclareWin(w http.ResponseWriter, r *http.Request, code string) {
	var win models.WinDeclaration
	if err := json.NewDecoder(r.Body).Decode(&win); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad win declaration payload"})
		return
	}

	snapshot, err := s.Service.DeclareWin(r.Context(), code, win)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}
