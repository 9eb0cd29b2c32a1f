package models

import (
	"time"

	"github.com/google/uuid"
)

// Phase tags the active request outcome
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseSuccess
	PhaseFailure
)

// String returns the lowercase phase name used in JSON and metrics labels
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePending:
		return "pending"
	case PhaseSuccess:
		return "success"
	case PhaseFailure:
		return "failure"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a phase name; unknown names decode to idle
func (p *Phase) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*p = PhasePending
	case "success":
		*p = PhaseSuccess
	case "failure":
		*p = PhaseFailure
	default:
		*p = PhaseIdle
	}
	return nil
}

// Outcome is the request state held by the orchestrator.
// Prediction and Confidence are set only in PhaseSuccess, Message only in PhaseFailure.
type Outcome struct {
	Phase        Phase     `json:"phase"`
	Prediction   float64   `json:"prediction,omitempty"`
	Confidence   float64   `json:"confidence,omitempty"`
	Message      string    `json:"message,omitempty"`
	SubmissionID uuid.UUID `json:"submission_id"`
	RaceID       string    `json:"race_id,omitempty"`
	HorseID      string    `json:"horse_id,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// Resolved reports whether the outcome is a terminal display state
func (o Outcome) Resolved() bool {
	return o.Phase == PhaseSuccess || o.Phase == PhaseFailure
}
