package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

const (
	// DefaultBaseURL is used when no base URL is configured
	DefaultBaseURL = "https://equine-oracle-system-production.up.railway.app"
	// DefaultPath is the prediction endpoint path
	DefaultPath = "/api/predict"

	// RequestIDHeader carries the submission ID for log correlation
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 1 << 20
)

// Config holds prediction client configuration
type Config struct {
	BaseURL string        // e.g., "https://equine-oracle-system-production.up.railway.app"
	Path    string        // e.g., "/api/predict"
	Timeout time.Duration // 0 leaves the timeout to the transport and the service
}

// PredictionClient calls the remote prediction service
type PredictionClient struct {
	endpoint   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewPredictionClient creates a new prediction client
func NewPredictionClient(config Config, logger zerolog.Logger) *PredictionClient {
	baseURL := strings.TrimSpace(config.BaseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	path := strings.TrimSpace(config.Path)
	if path == "" {
		path = DefaultPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return &PredictionClient{
		endpoint:   strings.TrimRight(baseURL, "/") + path,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger.With().Str("component", "prediction_client").Logger(),
	}
}

// Endpoint returns the full prediction URL
func (c *PredictionClient) Endpoint() string {
	return c.endpoint
}

// Predict submits one feature vector. It never retries.
func (c *PredictionClient) Predict(ctx context.Context, requestID string, req models.PredictionRequest) (*models.PredictionResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal prediction request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if requestID != "" {
		httpReq.Header.Set(RequestIDHeader, requestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &TransportError{Err: err}
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("race_id", req.RaceID).
		Int("status", resp.StatusCode).
		Int("body_bytes", len(body)).
		Msg("prediction service responded")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ResponseError{
			StatusCode:    resp.StatusCode,
			ServerMessage: serverMessage(body),
		}
	}

	return parseResult(resp.StatusCode, body)
}

// predictionBody uses raw fields so missing and non-numeric values can be told apart
type predictionBody struct {
	Prediction json.RawMessage `json:"prediction"`
	Confidence json.RawMessage `json:"confidence"`
}

func parseResult(status int, body []byte) (*models.PredictionResult, error) {
	var raw predictionBody
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &ResponseError{
			StatusCode: status,
			Reason:     fmt.Sprintf("malformed prediction response: %v", err),
		}
	}

	prediction, err := numberField("prediction", raw.Prediction)
	if err != nil {
		return nil, &ResponseError{StatusCode: status, ServerMessage: serverMessage(body), Reason: err.Error()}
	}
	confidence, err := numberField("confidence", raw.Confidence)
	if err != nil {
		return nil, &ResponseError{StatusCode: status, ServerMessage: serverMessage(body), Reason: err.Error()}
	}

	return &models.PredictionResult{
		Prediction: prediction,
		Confidence: confidence,
	}, nil
}

func numberField(name string, raw json.RawMessage) (float64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, fmt.Errorf("malformed prediction response: missing %s", name)
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("malformed prediction response: %s is not a number", name)
	}
	return v, nil
}

// serverMessage extracts a string "error" field from a JSON body, if any
func serverMessage(body []byte) string {
	var payload struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Error) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(payload.Error, &msg); err != nil {
		return ""
	}
	return strings.TrimSpace(msg)
}
