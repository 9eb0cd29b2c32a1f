package features

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

// TestDerive_DefaultForm tests the fixture race on 2025-12-22
func TestDerive_DefaultForm(t *testing.T) {
	form := models.DefaultFormState()

	fv := Derive(form)

	assert.Equal(t, 1600, fv.Distance)
	assert.Equal(t, 1600, fv.DistanceNumeric)
	assert.Equal(t, 2025, fv.Year)
	assert.Equal(t, 12, fv.Month)
	assert.Equal(t, 22, fv.Day)
	assert.Equal(t, 1, fv.DayOfWeek) // Monday
	// 355 days since Jan 1 -> 50.71 weeks -> 51
	assert.Equal(t, 51, fv.WeekOfYear)
	assert.Equal(t, 14, fv.DaysSinceLastRace)
	assert.Equal(t, 0, fv.PrevRaceWon)
	assert.Equal(t, 0, fv.WinStreak)
	assert.Equal(t, 0.5, fv.ImpliedProbability)
	assert.Equal(t, 0.5, fv.NormalizedVolume)
	assert.Equal(t, 24, fv.MarketActivityWindowHours)
}

// TestDerive_Deterministic tests that identical input gives identical output
func TestDerive_Deterministic(t *testing.T) {
	form := models.FormState{
		Distance:                  2400,
		Year:                      2024,
		Month:                     2,
		Day:                       29,
		DaysSinceLastRace:         30,
		PrevRaceWon:               1,
		WinStreak:                 3,
		ImpliedProbability:        0.21,
		NormalizedVolume:          0.77,
		MarketActivityWindowHours: 48,
	}

	assert.Equal(t, Derive(form), Derive(form))
}

// TestDerive_PassesThroughOutOfDomainValues tests that ranges are not validated
func TestDerive_PassesThroughOutOfDomainValues(t *testing.T) {
	form := models.FormState{
		Distance:           -5,
		Year:               2025,
		Month:              6,
		Day:                1,
		PrevRaceWon:        7,
		ImpliedProbability: 3.5,
		NormalizedVolume:   -1,
	}

	fv := Derive(form)

	assert.Equal(t, -5, fv.Distance)
	assert.Equal(t, -5, fv.DistanceNumeric)
	assert.Equal(t, 7, fv.PrevRaceWon)
	assert.Equal(t, 3.5, fv.ImpliedProbability)
	assert.Equal(t, -1.0, fv.NormalizedVolume)
}

// TestDerive_WireFieldNames tests the exact JSON schema of the feature vector
func TestDerive_WireFieldNames(t *testing.T) {
	data, err := json.Marshal(Derive(models.DefaultFormState()))
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &fields))

	expected := []string{
		"distance", "distance_numeric", "year", "month", "day", "day_of_week",
		"week_of_year", "days_since_last_race", "PREV_RACE_WON", "WIN_STREAK",
		"IMPLIED_PROBABILITY", "NORMALIZED_VOLUME", "MARKET_ACTIVITY_WINDOW_HOURS",
	}
	assert.Len(t, fields, len(expected))
	for _, name := range expected {
		assert.Contains(t, fields, name)
	}
	assert.Equal(t, 51.0, fields["week_of_year"])
	assert.Equal(t, 1.0, fields["day_of_week"])
}

// TestDayOfWeek tests weekday calculation with Sunday = 0
func TestDayOfWeek(t *testing.T) {
	tests := []struct {
		name             string
		year, month, day int
		expected         int
	}{
		{name: "Sunday", year: 2025, month: 12, day: 21, expected: 0},
		{name: "Monday", year: 2025, month: 12, day: 22, expected: 1},
		{name: "Saturday", year: 2025, month: 12, day: 27, expected: 6},
		{name: "Leap day", year: 2024, month: 2, day: 29, expected: 4},
		{name: "Month rollover", year: 2025, month: 13, day: 1, expected: 4}, // 2026-01-01
		{name: "Day zero", year: 2025, month: 3, day: 0, expected: 5},        // 2025-02-28
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DayOfWeek(tt.year, tt.month, tt.day))
		})
	}
}

// TestDayOfWeek_Range tests that every date of a year maps into [0, 6]
func TestDayOfWeek_Range(t *testing.T) {
	for month := 1; month <= 12; month++ {
		for day := 1; day <= 31; day++ {
			dow := DayOfWeek(2025, month, day)
			assert.GreaterOrEqual(t, dow, 0)
			assert.LessOrEqual(t, dow, 6)
		}
	}
}

// TestWeekOfYear tests ceiling division of elapsed days
func TestWeekOfYear(t *testing.T) {
	tests := []struct {
		name             string
		year, month, day int
		expected         int
	}{
		{name: "Jan 1 is not clamped", year: 2025, month: 1, day: 1, expected: 0},
		{name: "Jan 2", year: 2025, month: 1, day: 2, expected: 1},
		{name: "Exactly one week", year: 2025, month: 1, day: 8, expected: 1},
		{name: "One week and a day", year: 2025, month: 1, day: 9, expected: 2},
		{name: "Fixture race", year: 2025, month: 12, day: 22, expected: 51},
		{name: "Dec 31 common year", year: 2025, month: 12, day: 31, expected: 52},
		{name: "Dec 31 leap year", year: 2024, month: 12, day: 31, expected: 53},
		{name: "Across DST change", year: 2025, month: 3, day: 31, expected: 13},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, WeekOfYear(tt.year, tt.month, tt.day))
		})
	}
}

// TestWeekOfYear_Monotonic tests that week never decreases as day increases
func TestWeekOfYear_Monotonic(t *testing.T) {
	for month := 1; month <= 12; month++ {
		prev := WeekOfYear(2025, month, 1)
		assert.GreaterOrEqual(t, prev, 0)
		for day := 2; day <= 28; day++ {
			week := WeekOfYear(2025, month, day)
			assert.GreaterOrEqual(t, week, prev, "month=%d day=%d", month, day)
			prev = week
		}
	}
}
