// Package features turns process records into the numeric rows the
// regression engine fits on.
package features

import (
	"time"

	"github.com/hochfrequenz/process-eta/internal/domain"
)

// Size is the length of a feature vector, bias included.
const Size = 5

// Vector is the per-record feature row:
// [bias, retries, steps completed, priority ordinal, automated].
type Vector [Size]float64

var names = [Size]string{"bias", "retries", "steps", "priority", "automated"}

// Names returns the feature names in vector order.
func Names() [Size]string {
	return names
}

// Extract builds the feature vector for p. It never fails: unknown
// priorities score as 1, the same as LOW.
func Extract(p *domain.Process) Vector {
	automated := 0.0
	if p.Automated {
		automated = 1
	}

	return Vector{
		1.0,
		float64(p.Retries),
		float64(len(p.StepsCompleted)),
		PriorityValue(p.Priority),
		automated,
	}
}

// PriorityValue maps a priority to its ordinal: HIGH=3, MEDIUM=2, anything else 1.
func PriorityValue(p domain.Priority) float64 {
	switch p {
	case domain.PriorityHigh:
		return 3
	case domain.PriorityMedium:
		return 2
	default:
		return 1
	}
}

// ElapsedSeconds returns the whole seconds between start and end,
// truncated toward zero.
func ElapsedSeconds(start, end time.Time) float64 {
	return float64(end.Sub(start) / time.Second)
}
