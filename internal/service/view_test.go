package service_test

import (
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/cypherlabdev/equine-oracle/internal/models"
	"github.com/cypherlabdev/equine-oracle/internal/service"
)

// TestFormatPercent tests one-decimal percentage rendering
func TestFormatPercent(t *testing.T) {
	tests := []struct {
		fraction float64
		expected string
	}{
		{fraction: 0.873, expected: "87.3%"},
		{fraction: 0.912, expected: "91.2%"},
		{fraction: 0, expected: "0.0%"},
		{fraction: 1, expected: "100.0%"},
		{fraction: 0.5, expected: "50.0%"},
		{fraction: 0.12345, expected: "12.3%"},
		{fraction: 0.99999, expected: "100.0%"},
		{fraction: 0.8735, expected: "87.4%"},
		{fraction: 0.0005, expected: "0.1%"},
		{fraction: math.NaN(), expected: "n/a"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, service.FormatPercent(tt.fraction))
		})
	}
}

// TestNewView tests the three mutually exclusive display regions
func TestNewView(t *testing.T) {
	id := uuid.New()

	idle := service.NewView(models.Outcome{})
	assert.Equal(t, "idle", idle.Status)
	assert.False(t, idle.Pending)
	assert.Empty(t, idle.SubmissionID)

	pending := service.NewView(models.Outcome{Phase: models.PhasePending, SubmissionID: id})
	assert.True(t, pending.Pending)
	assert.Empty(t, pending.Prediction)
	assert.Empty(t, pending.Error)
	assert.Equal(t, id.String(), pending.SubmissionID)

	success := service.NewView(models.Outcome{Phase: models.PhaseSuccess, Prediction: 0.873, Confidence: 0.912})
	assert.False(t, success.Pending)
	assert.Equal(t, "87.3%", success.Prediction)
	assert.Equal(t, "91.2%", success.Confidence)
	assert.Empty(t, success.Error)

	failure := service.NewView(models.Outcome{Phase: models.PhaseFailure, Message: "Failed to get prediction"})
	assert.Equal(t, "failure", failure.Status)
	assert.Equal(t, "Failed to get prediction", failure.Error)
	assert.Empty(t, failure.Prediction)
	assert.Empty(t, failure.Confidence)
}
