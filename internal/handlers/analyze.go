package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/soragane/tilescore/internal/models"
	"github.com/soragane/tilescore/internal/scoring"
)

// allowedImageExts limits hand uploads to the formats the recognizer accepts.
var allowedImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// maxUploadBytes caps a single hand image upload.
const maxUploadBytes = 16 << 20

// AnalyzeHandler accepts a hand image plus game context, stores the upload
// under a unique name, and delegates to the external scoring computation.
// The returned amount is only a candidate pre-fill for a win declaration;
// it is never applied to a session directly.
func (s *APIServer) AnalyzeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad multipart payload"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no file part"})
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExts[ext] {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid file type"})
		return
	}

	uploadName := "upload_" + uuid.NewString() + ext
	uploadPath := filepath.Join(s.UploadDir, uploadName)
	if err := saveUpload(file, uploadPath); err != nil {
		s.Logger.WithError(err).Warn("Failed to store hand upload")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store upload"})
		return
	}

	hand := scoring.HandContext{
		RoundWind:  models.Wind(formOr(r, "round", string(models.WindEast))),
		DealerWind: models.Wind(formOr(r, "dealer", string(models.WindEast))),
		SeatWind:   models.Wind(formOr(r, "seat", string(models.WindEast))),
		WinWind:    models.Wind(formOr(r, "wins", string(models.WindEast))),
		Continues:  formInt(r, "continues", 0),
		Dice:       formInt(r, "dice", 0),
		Base:       formInt(r, "base", 100),
		Bonus:      formInt(r, "bonus", 30),
	}

	result, err := s.Scorer.Score(r.Context(), uploadPath, hand)
	if err != nil {
		s.Logger.WithError(err).Warn("Scoring computation failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"money":               result.Money,
		"breakdown":           result.Breakdown,
		"uploaded_image_url":  "/static/uploads/" + uploadName,
		"generated_image_url": "/static/outputs/" + result.GeneratedImage,
	})
}

// StaticHandler serves stored upload and output images:
// /static/{uploads|outputs}/{filename}.
func (s *APIServer) StaticHandler(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/static/"), "/")
	if len(parts) != 2 || parts[1] == "" || parts[1] != filepath.Base(parts[1]) {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	switch parts[0] {
	case "uploads":
		http.ServeFile(w, r, filepath.Join(s.UploadDir, parts[1]))
	case "outputs":
		http.ServeFile(w, r, filepath.Join(s.OutputDir, parts[1]))
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func saveUpload(src io.Reader, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, src)
	return err
}

func formOr(r *http.Request, key, def string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}

func formInt(r *http.Request, key string, def int) int {
	v := r.FormValue(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
