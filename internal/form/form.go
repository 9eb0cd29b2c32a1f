package form

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cypherlabdev/equine-oracle/internal/models"
)

// ErrUnknownField is returned when an edit names a field the form does not have
var ErrUnknownField = errors.New("unknown form field")

// Kind describes how a field value is stored
type Kind string

const (
	KindInteger Kind = "integer"
	KindDecimal Kind = "decimal"
)

// Field describes one form input and its input hints
type Field struct {
	Name  string   `json:"name"`
	Label string   `json:"label"`
	Kind  Kind     `json:"kind"`
	Min   *float64 `json:"min,omitempty"`
	Max   *float64 `json:"max,omitempty"`
	Step  *float64 `json:"step,omitempty"`
}

type binding struct {
	Field
	get func(*models.FormState) float64
	set func(*models.FormState, float64)
}

var bindings = []binding{
	intField(Field{Name: "distance", Label: "Distance (meters)"},
		func(s *models.FormState) *int { return &s.Distance }),
	intField(Field{Name: "year", Label: "Year"},
		func(s *models.FormState) *int { return &s.Year }),
	intField(Field{Name: "month", Label: "Month"},
		func(s *models.FormState) *int { return &s.Month }),
	intField(Field{Name: "day", Label: "Day"},
		func(s *models.FormState) *int { return &s.Day }),
	intField(Field{Name: "daysSinceLastRace", Label: "Days Since Last Race"},
		func(s *models.FormState) *int { return &s.DaysSinceLastRace }),
	intField(Field{Name: "prevRaceWon", Label: "Previous Race Won (0 or 1)", Min: hint(0), Max: hint(1)},
		func(s *models.FormState) *int { return &s.PrevRaceWon }),
	intField(Field{Name: "winStreak", Label: "Win Streak", Min: hint(0)},
		func(s *models.FormState) *int { return &s.WinStreak }),
	floatField(Field{Name: "impliedProbability", Label: "Implied Probability (0-1)", Min: hint(0), Max: hint(1), Step: hint(0.01)},
		func(s *models.FormState) *float64 { return &s.ImpliedProbability }),
	floatField(Field{Name: "normalizedVolume", Label: "Normalized Volume (0-1)", Min: hint(0), Max: hint(1), Step: hint(0.01)},
		func(s *models.FormState) *float64 { return &s.NormalizedVolume }),
	intField(Field{Name: "marketActivityWindowHours", Label: "Market Activity Window (hours)", Min: hint(1)},
		func(s *models.FormState) *int { return &s.MarketActivityWindowHours }),
}

// Fields returns the form schema in display order
func Fields() []Field {
	fields := make([]Field, len(bindings))
	for i, b := range bindings {
		fields[i] = b.Field
	}
	return fields
}

// Values returns the state keyed by form field name
func Values(state models.FormState) map[string]float64 {
	values := make(map[string]float64, len(bindings))
	for _, b := range bindings {
		values[b.Name] = b.get(&state)
	}
	return values
}

// Set edits one field from raw input text. Text that does not start with a
// number stores 0; integer fields truncate toward zero.
func Set(state *models.FormState, name, raw string) error {
	for _, b := range bindings {
		if b.Name == name {
			b.set(state, Coerce(raw))
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownField, name)
}

// Apply edits several fields in schema order. Unknown names are reported
// after all known fields have been applied.
func Apply(state *models.FormState, raw map[string]string) error {
	known := 0
	for _, b := range bindings {
		if v, ok := raw[b.Name]; ok {
			b.set(state, Coerce(v))
			known++
		}
	}
	if known == len(raw) {
		return nil
	}

	var unknown []string
	for name := range raw {
		if !isField(name) {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: %s", ErrUnknownField, strings.Join(unknown, ", "))
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// Coerce parses the leading decimal number of raw. Anything unparseable,
// zero, or non-finite yields 0.
func Coerce(raw string) float64 {
	match := numericPrefix.FindString(strings.TrimSpace(raw))
	if match == "" {
		return 0
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil || v == 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func isField(name string) bool {
	for _, b := range bindings {
		if b.Name == name {
			return true
		}
	}
	return false
}

func intField(f Field, ref func(*models.FormState) *int) binding {
	f.Kind = KindInteger
	return binding{
		Field: f,
		get:   func(s *models.FormState) float64 { return float64(*ref(s)) },
		set:   func(s *models.FormState, v float64) { *ref(s) = truncate(v) },
	}
}

func floatField(f Field, ref func(*models.FormState) *float64) binding {
	f.Kind = KindDecimal
	return binding{
		Field: f,
		get:   func(s *models.FormState) float64 { return *ref(s) },
		set:   func(s *models.FormState, v float64) { *ref(s) = v },
	}
}

// truncate converts to int; values outside the int64 range store 0
func truncate(v float64) int {
	if v >= math.MaxInt64 || v <= math.MinInt64 {
		return 0
	}
	return int(math.Trunc(v))
}

func hint(v float64) *float64 {
	return &v
}
