package features

import (
	"math"
	"time"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

const secondsPerWeek = 7 * 24 * 60 * 60

// Derive builds the feature vector the prediction service expects from a form state.
// Values are copied verbatim; ranges are not validated.
func Derive(form models.FormState) models.FeatureVector {
	return models.FeatureVector{
		Distance:                  form.Distance,
		DistanceNumeric:           form.Distance,
		Year:                      form.Year,
		Month:                     form.Month,
		Day:                       form.Day,
		DayOfWeek:                 DayOfWeek(form.Year, form.Month, form.Day),
		WeekOfYear:                WeekOfYear(form.Year, form.Month, form.Day),
		DaysSinceLastRace:         form.DaysSinceLastRace,
		PrevRaceWon:               form.PrevRaceWon,
		WinStreak:                 form.WinStreak,
		ImpliedProbability:        form.ImpliedProbability,
		NormalizedVolume:          form.NormalizedVolume,
		MarketActivityWindowHours: form.MarketActivityWindowHours,
	}
}

// DayOfWeek returns the weekday of the date, Sunday = 0.
// Out-of-range month and day values roll over into neighbouring months.
func DayOfWeek(year, month, day int) int {
	return int(raceDate(year, month, day).Weekday())
}

// WeekOfYear returns ceil((date - Jan 1 of year) / 7 days).
// Jan 1 itself is week 0.
func WeekOfYear(year, month, day int) int {
	elapsed := raceDate(year, month, day).Unix() - raceDate(year, 1, 1).Unix()
	return int(math.Ceil(float64(elapsed) / secondsPerWeek))
}

// raceDate is midnight UTC; UTC has no DST so elapsed time is whole days
func raceDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
