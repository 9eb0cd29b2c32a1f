package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/cypherlabdev/equine-oracle/internal/cache"
	"github.com/cypherlabdev/equine-oracle/internal/form"
	"github.com/cypherlabdev/equine-oracle/internal/models"
	"github.com/cypherlabdev/equine-oracle/internal/service"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
	maxBodyBytes       = 64 << 10
)

// PredictionHandler handles HTTP requests for race predictions
type PredictionHandler struct {
	submitter service.Submitter
	history   service.History
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

// NewPredictionHandler creates a new prediction HTTP handler.
// history and limiter may be nil.
func NewPredictionHandler(
	submitter service.Submitter,
	history service.History,
	limiter *rate.Limiter,
	logger zerolog.Logger,
) *PredictionHandler {
	return &PredictionHandler{
		submitter: submitter,
		history:   history,
		limiter:   limiter,
		logger:    logger.With().Str("component", "prediction_handler").Logger(),
	}
}

// RegisterRoutes registers HTTP routes with the provided mux
func (h *PredictionHandler) RegisterRoutes(mux *http.ServeMux) {
	// GET /api/v1/form - Form schema and defaults
	mux.HandleFunc("/api/v1/form", h.handleGetForm)

	// POST /api/v1/predictions - Submit a form
	// GET /api/v1/predictions?limit=N - Recent resolved predictions
	mux.HandleFunc("/api/v1/predictions", h.handlePredictions)

	// GET /api/v1/predictions/state - Current request state
	// GET /api/v1/predictions/:submission_id - One prediction
	mux.HandleFunc("/api/v1/predictions/", h.handleGetPrediction)
}

// FormResponse describes the form schema
type FormResponse struct {
	Fields   []form.Field       `json:"fields"`
	Defaults map[string]float64 `json:"defaults"`
}

// handleGetForm handles GET /api/v1/form
func (h *PredictionHandler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	h.jsonResponse(w, http.StatusOK, FormResponse{
		Fields:   form.Fields(),
		Defaults: form.Values(models.DefaultFormState()),
	})
}

func (h *PredictionHandler) handlePredictions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleSubmit(w, r)
	case http.MethodGet:
		h.handleListPredictions(w, r)
	default:
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleSubmit handles POST /api/v1/predictions
func (h *PredictionHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if h.limiter != nil && !h.limiter.Allow() {
		h.errorResponse(w, http.StatusTooManyRequests, "too many submissions")
		return
	}

	raw, err := decodeForm(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	state := models.DefaultFormState()
	if err := form.Apply(&state, raw); err != nil {
		h.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	submission := h.submitter.Submit(r.Context(), state)

	h.logger.Debug().
		Str("submission_id", submission.ID.String()).
		Str("race_id", submission.RaceID).
		Msg("accepted prediction request")

	w.Header().Set("Location", "/api/v1/predictions/"+submission.ID.String())
	h.jsonResponse(w, http.StatusAccepted, submission)
}

// decodeForm reads a JSON object of form values. Values may be strings or
// numbers; both go through form coercion as raw text. An empty body submits
// the defaults.
func decodeForm(body io.Reader) (map[string]string, error) {
	var fields map[string]json.RawMessage
	if err := json.NewDecoder(body).Decode(&fields); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	raw := make(map[string]string, len(fields))
	for name, value := range fields {
		var s string
		if err := json.Unmarshal(value, &s); err == nil {
			raw[name] = s
			continue
		}
		raw[name] = string(value)
	}
	return raw, nil
}

// handleListPredictions handles GET /api/v1/predictions?limit=N
func (h *PredictionHandler) handleListPredictions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.errorResponse(w, http.StatusServiceUnavailable, "prediction history is not configured")
		return
	}

	limit := defaultRecentLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			h.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRecentLimit)
	}

	outcomes, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to retrieve recent predictions")
		h.errorResponse(w, http.StatusInternalServerError, "failed to retrieve predictions")
		return
	}

	predictions := make([]*PredictionResponse, len(outcomes))
	for i, o := range outcomes {
		predictions[i] = ToPredictionResponse(*o)
	}

	h.jsonResponse(w, http.StatusOK, map[string]interface{}{
		"count":       len(predictions),
		"predictions": predictions,
	})
}

// handleGetPrediction handles GET /api/v1/predictions/state and GET /api/v1/predictions/:submission_id
func (h *PredictionHandler) handleGetPrediction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorResponse(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1/predictions/")
	if path == "state" {
		h.jsonResponse(w, http.StatusOK, service.NewView(h.submitter.State()))
		return
	}

	id, err := uuid.Parse(path)
	if err != nil {
		h.errorResponse(w, http.StatusBadRequest, "invalid path: expected /api/v1/predictions/:submission_id")
		return
	}

	// The active submission may not have resolved yet
	if current := h.submitter.State(); current.Phase != models.PhaseIdle && current.SubmissionID == id {
		h.jsonResponse(w, http.StatusOK, ToPredictionResponse(current))
		return
	}

	if h.history == nil {
		h.errorResponse(w, http.StatusNotFound, "prediction not found")
		return
	}

	outcome, err := h.history.Get(r.Context(), id)
	if errors.Is(err, cache.ErrNotFound) {
		h.logger.Debug().Str("submission_id", id.String()).Msg("prediction not found")
		h.errorResponse(w, http.StatusNotFound, "prediction not found")
		return
	} else if err != nil {
		h.logger.Error().
			Err(err).
			Str("submission_id", id.String()).
			Msg("failed to retrieve prediction")
		h.errorResponse(w, http.StatusInternalServerError, "failed to retrieve prediction")
		return
	}

	h.jsonResponse(w, http.StatusOK, ToPredictionResponse(*outcome))
}

// jsonResponse writes a JSON response
func (h *PredictionHandler) jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error().Err(err).Msg("failed to encode JSON response")
	}
}

// errorResponse writes a JSON error response
func (h *PredictionHandler) errorResponse(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{
		"error": message,
	})
}

// PredictionResponse represents the API response for one prediction
type PredictionResponse struct {
	SubmissionID      string   `json:"submission_id"`
	RaceID            string   `json:"race_id"`
	HorseID           string   `json:"horse_id"`
	Status            string   `json:"status"`
	Prediction        *float64 `json:"prediction,omitempty"`
	Confidence        *float64 `json:"confidence,omitempty"`
	PredictionPercent string   `json:"prediction_percent,omitempty"`
	ConfidencePercent string   `json:"confidence_percent,omitempty"`
	Error             string   `json:"error,omitempty"`
	SubmittedAt       string   `json:"submitted_at"`
	ResolvedAt        string   `json:"resolved_at,omitempty"`
}

// ToPredictionResponse converts an Outcome to API response format
func ToPredictionResponse(outcome models.Outcome) *PredictionResponse {
	resp := &PredictionResponse{
		SubmissionID: outcome.SubmissionID.String(),
		RaceID:       outcome.RaceID,
		HorseID:      outcome.HorseID,
		Status:       outcome.Phase.String(),
		SubmittedAt:  outcome.SubmittedAt.Format(time.RFC3339),
	}
	if !outcome.ResolvedAt.IsZero() {
		resp.ResolvedAt = outcome.ResolvedAt.Format(time.RFC3339)
	}

	switch outcome.Phase {
	case models.PhaseSuccess:
		prediction, confidence := outcome.Prediction, outcome.Confidence
		resp.Prediction = &prediction
		resp.Confidence = &confidence
		resp.PredictionPercent = service.FormatPercent(prediction)
		resp.ConfidencePercent = service.FormatPercent(confidence)
	case models.PhaseFailure:
		resp.Error = outcome.Message
	}
	return resp
}
