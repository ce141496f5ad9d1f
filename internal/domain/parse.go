package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseNumTeams coerces a requested team count. Missing, malformed or non-positive input falls back
// to individual mode; ok is false whenever the fallback was used on non-empty input.
func ParseNumTeams(raw string) (n int, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 1, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1, false
	}
	return n, true
}

// ParseTeamNumber parses an optional team number. Empty input yields nil.
func ParseTeamNumber(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidTeam, raw)
	}
	return &n, nil
}

// ParseScore parses a submitted score. Only finite numbers are accepted.
func ParseScore(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: score is required", ErrInvalidScore)
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: got %q", ErrInvalidScore, raw)
	}
	return v, nil
}
