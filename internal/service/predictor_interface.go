package service

import (
	"context"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

//go:generate mockgen -destination=../mocks/mock_predictor.go -package=mocks github.com/cypherlabdev/equine-oracle/internal/service Predictor

// Predictor is an interface that abstracts the remote prediction call
// This allows for easier testing and mocking
type Predictor interface {
	Predict(ctx context.Context, requestID string, req models.PredictionRequest) (*models.PredictionResult, error)
}
