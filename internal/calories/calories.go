// Package calories estimates calories burned from workout type, duration and intensity.
package calories

import (
	"math"

	"github.com/trckr/apiserver/types"
)

// rate is the per-minute burn for each intensity.
type rate struct {
	slow, medium, intense float64
}

func (r rate) at(intensity types.Intensity) float64 {
	switch intensity {
	case types.IntensitySlow:
		return r.slow
	case types.IntensityMedium:
		return r.medium
	case types.IntensityIntense:
		return r.intense
	default:
		return 0
	}
}

var rates = map[string]rate{
	"running":       {slow: 8, medium: 12, intense: 16},
	"cycling":       {slow: 6, medium: 10, intense: 14},
	"swimming":      {slow: 7, medium: 11, intense: 15},
	"yoga":          {slow: 3, medium: 4, intense: 5},
	"weightlifting": {slow: 5, medium: 8, intense: 12},
	"walking":       {slow: 3, medium: 5, intense: 7},
	"dancing":       {slow: 4, medium: 6, intense: 9},
	"boxing":        {slow: 8, medium: 12, intense: 16},
}

var knownTypes = []string{
	"running",
	"cycling",
	"swimming",
	"yoga",
	"weightlifting",
	"walking",
	"dancing",
	"boxing",
}

// Calculate returns round(rate × duration). Unknown workout types and
// intensities yield 0.
func Calculate(workoutType string, duration int, intensity types.Intensity) int {
	r, ok := rates[workoutType]
	if !ok || duration <= 0 {
		return 0
	}
	return int(math.Round(r.at(intensity) * float64(duration)))
}

// Rate returns the per-minute burn for a workout type and intensity, and
// whether the type is known.
func Rate(workoutType string, intensity types.Intensity) (float64, bool) {
	r, ok := rates[workoutType]
	if !ok {
		return 0, false
	}
	return r.at(intensity), true
}

// IsKnownType reports whether workoutType has a rate table entry.
func IsKnownType(workoutType string) bool {
	_, ok := rates[workoutType]
	return ok
}

// Types lists the known workout types in a stable order.
func Types() []string {
	out := make([]string, len(knownTypes))
	copy(out, knownTypes)
	return out
}

// IsValidIntensity reports whether intensity has a column in the rate table.
func IsValidIntensity(intensity types.Intensity) bool {
	return intensity.Valid()
}
