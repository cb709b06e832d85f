// Package classifier calls the external prioritization service and maps
// its score onto report priorities. Every failure degrades to defaults:
// a report is never rejected because the classifier is down.
package classifier

import (
	"github.com/civicgrid/platform/internal/report/domain"
)

// Score scales understood by MapPriorityScore.
const (
	ScaleUnit = "unit" // scores in [0, 1]
	ScaleTen  = "ten"  // scores in [0, 10]
)

// MapPriorityScore converts a raw classifier score into a priority.
// Unknown scales fall back to the ten-point mapping.
func MapPriorityScore(score float64, scale string) domain.Priority {
	high, medium := 7.0, 4.0
	if scale == ScaleUnit {
		high, medium = 0.7, 0.4
	}

	switch {
	case score >= high:
		return domain.PriorityHigh
	case score >= medium:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
