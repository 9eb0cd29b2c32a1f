package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

//go:generate mockgen -destination=../mocks/mock_history.go -package=mocks github.com/cypherlabdev/equine-oracle/internal/service History

// History is an interface that abstracts storage of resolved outcomes
type History interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Outcome, error)
	Recent(ctx context.Context, limit int) ([]*models.Outcome, error)
}
