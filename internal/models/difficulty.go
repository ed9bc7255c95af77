package models

import "fmt"

// Difficulty grades exercises and workouts.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty accepts only the three known grades. Unknown values are
// rejected instead of falling back to a default.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// Valid reports whether d is one of the known grades.
func (d Difficulty) Valid() bool {
	_, err := ParseDifficulty(string(d))
	return err == nil
}

// UnmarshalText validates difficulty values at the JSON/YAML boundary.
func (d *Difficulty) UnmarshalText(b []byte) error {
	parsed, err := ParseDifficulty(string(b))
	if err != nil {
		return Invalid("difficulty", err.Error())
	}
	*d = parsed
	return nil
}

// Stars is the 1–3 star rating shown next to a difficulty.
func (d Difficulty) Stars() int {
	switch d {
	case DifficultyBeginner:
		return 1
	case DifficultyIntermediate:
		return 2
	case DifficultyAdvanced:
		return 3
	}
	panic(fmt.Sprintf("models: Stars on invalid difficulty %q", string(d)))
}

// Color is the display color (hex) for a difficulty badge.
func (d Difficulty) Color() string {
	switch d {
	case DifficultyBeginner:
		return "#16A34A"
	case DifficultyIntermediate:
		return "#D97706"
	case DifficultyAdvanced:
		return "#DC2626"
	}
	panic(fmt.Sprintf("models: Color on invalid difficulty %q", string(d)))
}
