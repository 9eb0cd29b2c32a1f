package service

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

var hundred = decimal.NewFromInt(100)

// View is the rendered form of an outcome: exactly one of the pending
// indicator, the result panel or the error panel is populated.
type View struct {
	Status       string `json:"status"`
	Pending      bool   `json:"pending"`
	Prediction   string `json:"prediction,omitempty"`
	Confidence   string `json:"confidence,omitempty"`
	Error        string `json:"error,omitempty"`
	SubmissionID string `json:"submission_id,omitempty"`
	RaceID       string `json:"race_id,omitempty"`
}

// NewView renders an outcome
func NewView(outcome models.Outcome) View {
	v := View{
		Status:  outcome.Phase.String(),
		Pending: outcome.Phase == models.PhasePending,
		RaceID:  outcome.RaceID,
	}
	if outcome.Phase != models.PhaseIdle {
		v.SubmissionID = outcome.SubmissionID.String()
	}

	switch outcome.Phase {
	case models.PhaseSuccess:
		v.Prediction = FormatPercent(outcome.Prediction)
		v.Confidence = FormatPercent(outcome.Confidence)
	case models.PhaseFailure:
		v.Error = outcome.Message
	}
	return v
}

// FormatPercent renders a 0-1 fraction as a percentage with one decimal, e.g. 0.873 -> "87.3%"
func FormatPercent(fraction float64) string {
	if math.IsNaN(fraction) || math.IsInf(fraction, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(fraction).Mul(hundred).StringFixed(1) + "%"
}
