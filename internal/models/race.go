package models

import "time"

// FormState is the complete record of user-entered race parameters.
// Every field always holds a value; unparseable input is stored as 0.
type FormState struct {
	Distance                  int     `json:"distance"`          // Race distance in meters
	Year                      int     `json:"year"`              // Race date components
	Month                     int     `json:"month"`             // 1-12
	Day                       int     `json:"day"`               // Day of month
	DaysSinceLastRace         int     `json:"daysSinceLastRace"` // Days since the horse's prior race
	PrevRaceWon               int     `json:"prevRaceWon"`       // 0 or 1
	WinStreak                 int     `json:"winStreak"`
	ImpliedProbability        float64 `json:"impliedProbability"` // Market-implied win probability (0-1)
	NormalizedVolume          float64 `json:"normalizedVolume"`   // Normalized betting volume (0-1)
	MarketActivityWindowHours int     `json:"marketActivityWindowHours"`
}

// DefaultFormState returns the values the form starts with.
func DefaultFormState() FormState {
	return FormState{
		Distance:                  1600,
		Year:                      2025,
		Month:                     12,
		Day:                       22,
		DaysSinceLastRace:         14,
		PrevRaceWon:               0,
		WinStreak:                 0,
		ImpliedProbability:        0.5,
		NormalizedVolume:          0.5,
		MarketActivityWindowHours: 24,
	}
}

// FeatureVector is the feature record sent to the prediction service.
// The JSON field names are the service's schema and must not change.
type FeatureVector struct {
	Distance                  int     `json:"distance"`
	DistanceNumeric           int     `json:"distance_numeric"`
	Year                      int     `json:"year"`
	Month                     int     `json:"month"`
	Day                       int     `json:"day"`
	DayOfWeek                 int     `json:"day_of_week"`  // 0 = Sunday
	WeekOfYear                int     `json:"week_of_year"` // ceil(days since Jan 1 / 7)
	DaysSinceLastRace         int     `json:"days_since_last_race"`
	PrevRaceWon               int     `json:"PREV_RACE_WON"`
	WinStreak                 int     `json:"WIN_STREAK"`
	ImpliedProbability        float64 `json:"IMPLIED_PROBABILITY"`
	NormalizedVolume          float64 `json:"NORMALIZED_VOLUME"`
	MarketActivityWindowHours int     `json:"MARKET_ACTIVITY_WINDOW_HOURS"`
}

// PredictionRequest is the body POSTed to the prediction service
type PredictionRequest struct {
	RaceID   string        `json:"raceId"`
	HorseID  string        `json:"horseId"`
	Features FeatureVector `json:"features"`
}

// PredictionResult is a well-formed prediction service answer
type PredictionResult struct {
	Prediction float64 `json:"prediction"` // Win probability (0-1)
	Confidence float64 `json:"confidence"` // Model confidence (0-1)
}

// KafkaPredictionRequestMessage represents a form submission read from Kafka.
// Form values are raw text so they go through the same coercion as manual edits.
type KafkaPredictionRequestMessage struct {
	Form    map[string]string `json:"form"`
	BatchID string            `json:"batch_id"`
}

// KafkaPredictionOutcomeMessage represents a resolved prediction published to Kafka
type KafkaPredictionOutcomeMessage struct {
	Outcome     Outcome   `json:"outcome"`
	PublishedAt time.Time `json:"published_at"`
}
