package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

//go:generate mockgen -destination=../mocks/mock_submitter.go -package=mocks github.com/cypherlabdev/equine-oracle/internal/service Submitter

// Submitter is an interface that abstracts form submission to the orchestrator
type Submitter interface {
	Submit(ctx context.Context, form models.FormState) Submission
	State() models.Outcome
}

// Submission identifies one dispatched prediction request
type Submission struct {
	ID          uuid.UUID `json:"submission_id"`
	RaceID      string    `json:"race_id"`
	HorseID     string    `json:"horse_id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Sink receives every applied outcome, in the order transitions were applied.
// Render runs off the caller's goroutine, one outcome at a time.
type Sink interface {
	Render(outcome models.Outcome)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(outcome models.Outcome)

// Render calls f(outcome)
func (f SinkFunc) Render(outcome models.Outcome) {
	f(outcome)
}

// Metrics records orchestrator activity
type Metrics interface {
	SubmissionStarted()
	SubmissionFinished(phase models.Phase, elapsed time.Duration)
	StaleResolutionDropped()
}

type noopMetrics struct{}

func (noopMetrics) SubmissionStarted()                             {}
func (noopMetrics) SubmissionFinished(models.Phase, time.Duration) {}
func (noopMetrics) StaleResolutionDropped()                        {}
