// Package scoring defines the boundary to the external hand-recognition and
// scoring computation. The core treats its output purely as an opaque amount
// that may pre-fill a win declaration; a manually entered amount always wins
// over a computed one.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/soragane/tilescore/internal/models"
)

// HandContext carries the game state the scorer needs alongside the image.
type HandContext struct {
	RoundWind  models.Wind `json:"round"`
	DealerWind models.Wind `json:"dealer"`
	SeatWind   models.Wind `json:"seat"`
	WinWind    models.Wind `json:"wins"`
	Continues  int         `json:"continues"`
	Dice       int         `json:"dice"`
	Base       int         `json:"base"`
	Bonus      int         `json:"bonus"`
}

// Result is what the scorer returns: a computed settlement amount, a
// human-readable breakdown, and a rendered image of the recognized hand.
type Result struct {
	Money          int      `json:"money"`
	Breakdown      []string `json:"breakdown"`
	GeneratedImage string   `json:"generated_image"`
}

// Scorer computes a candidate settlement amount from an uploaded hand image.
type Scorer interface {
	Score(ctx context.Context, imagePath string, hand HandContext) (Result, error)
}

// HTTPScorer forwards the image plus context to the recognizer service over
// HTTP multipart, mirroring the form contract the recognizer expects.
type HTTPScorer struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPScorer builds a scorer against SCORER_URL.
func NewHTTPScorer() *HTTPScorer {
	url := os.Getenv("SCORER_URL")
	if url == "" {
		url = "http://localhost:5001"
	}
	return &HTTPScorer{
		BaseURL: url,
		Client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Score uploads the image and context fields and decodes the scorer's reply.
func (s *HTTPScorer) Score(ctx context.Context, imagePath string, hand HandContext) (Result, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open hand image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return Result{}, fmt.Errorf("failed to copy hand image: %w", err)
	}

	fields := map[string]string{
		"round":     string(hand.RoundWind),
		"dealer":    string(hand.DealerWind),
		"seat":      string(hand.SeatWind),
		"wins":      string(hand.WinWind),
		"continues": strconv.Itoa(hand.Continues),
		"dice":      strconv.Itoa(hand.Dice),
		"base":      strconv.Itoa(hand.Base),
		"bonus":     strconv.Itoa(hand.Bonus),
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return Result{}, err
		}
	}
	if err := mw.Close(); err != nil {
		return Result{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+"/score", &body)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.Client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("scorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, fmt.Errorf("scorer returned %d: %s", resp.StatusCode, msg)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("failed to decode scorer response: %w", err)
	}
	return res, nil
}
