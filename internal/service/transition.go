package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cypherlabdev/equine-oracle/internal/client"
	"github.com/cypherlabdev/equine-oracle/internal/models"
)

// FallbackMessage is shown when a failure carries no description
const FallbackMessage = "Failed to get prediction"

// ResolutionPolicy decides what happens when submissions overlap
type ResolutionPolicy string

const (
	// LastResolvedWins applies every resolution in arrival order
	LastResolvedWins ResolutionPolicy = "last_resolved_wins"
	// DiscardStale ignores resolutions that do not belong to the latest submission
	DiscardStale ResolutionPolicy = "discard_stale"
)

// ParseResolutionPolicy parses a configured policy name; empty means LastResolvedWins
func ParseResolutionPolicy(s string) (ResolutionPolicy, error) {
	switch ResolutionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LastResolvedWins:
		return LastResolvedWins, nil
	case DiscardStale:
		return DiscardStale, nil
	default:
		return "", fmt.Errorf("unknown resolution policy %q", s)
	}
}

// Event drives a Transition
type Event interface {
	submission() Submission
}

// Submitted is raised when a form is submitted
type Submitted struct {
	Submission
}

// Resolved is raised when the prediction service returned a usable prediction
type Resolved struct {
	Submission
	Result models.PredictionResult
	At     time.Time
}

// Rejected is raised when the prediction call failed
type Rejected struct {
	Submission
	Message string
	At      time.Time
}

func (e Submitted) submission() Submission { return e.Submission }
func (e Resolved) submission() Submission  { return e.Submission }
func (e Rejected) submission() Submission  { return e.Submission }

// Transition computes the next outcome. The boolean is false when the event
// was dropped and current is returned unchanged.
func Transition(policy ResolutionPolicy, current models.Outcome, event Event) (models.Outcome, bool) {
	sub := event.submission()
	next := models.Outcome{
		SubmissionID: sub.ID,
		RaceID:       sub.RaceID,
		HorseID:      sub.HorseID,
		SubmittedAt:  sub.SubmittedAt,
	}

	switch e := event.(type) {
	case Submitted:
		next.Phase = models.PhasePending
		return next, true

	case Resolved:
		if policy == DiscardStale && sub.ID != current.SubmissionID {
			return current, false
		}
		next.Phase = models.PhaseSuccess
		next.Prediction = e.Result.Prediction
		next.Confidence = e.Result.Confidence
		next.ResolvedAt = e.At
		return next, true

	case Rejected:
		if policy == DiscardStale && sub.ID != current.SubmissionID {
			return current, false
		}
		next.Phase = models.PhaseFailure
		next.Message = e.Message
		if next.Message == "" {
			next.Message = FallbackMessage
		}
		next.ResolvedAt = e.At
		return next, true
	}

	return current, false
}

// FailureMessage picks the text shown for a failed prediction call: the
// service's own error string, then the error description, then FallbackMessage.
func FailureMessage(err error) string {
	if err == nil {
		return FallbackMessage
	}

	var respErr *client.ResponseError
	if errors.As(err, &respErr) && respErr.ServerMessage != "" {
		return respErr.ServerMessage
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackMessage
}
