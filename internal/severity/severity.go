package severity

import "fmt"

var order = map[string]int{
	"info":     0,
	"low":      1,
	"medium":   2,
	"high":     3,
	"critical": 4,
}

// Risk weights and confidence multipliers are observable behavior (they feed
// pass/fail thresholds); do not tune them without flagging a behavior change.
const (
	WeightCritical = 10.0
	WeightHigh     = 6.0
	WeightMedium   = 3.0
	WeightLow      = 1.0
	WeightInfo     = 0.5

	ConfidenceHighScale   = 1.2
	ConfidenceMediumScale = 1.0
	ConfidenceLowScale    = 0.8

	MaxRiskScore = 10.0
)

const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

func Normalize(level string) (string, error) {
	if _, ok := order[level]; !ok {
		return "", fmt.Errorf("invalid severity level: %s", level)
	}
	return level, nil
}

func Valid(level string) bool {
	_, ok := order[level]
	return ok
}

func MeetsOrAbove(level string, threshold string) bool {
	l, okL := order[level]
	t, okT := order[threshold]
	if !okL || !okT {
		return false
	}
	return l >= t
}

func Max(levels ...string) string {
	maxRank := -1
	maxLevel := ""
	for _, l := range levels {
		r, ok := order[l]
		if !ok {
			continue
		}
		if r > maxRank {
			maxRank = r
			maxLevel = l
		}
	}
	return maxLevel
}

// Weight maps a severity to its risk contribution before confidence scaling.
func Weight(level string) float64 {
	switch level {
	case "critical":
		return WeightCritical
	case "high":
		return WeightHigh
	case "medium":
		return WeightMedium
	case "low":
		return WeightLow
	case "info":
		return WeightInfo
	default:
		return 0
	}
}

// ConfidenceScale returns the +/-20% scaling applied per violation.
func ConfidenceScale(confidence string) float64 {
	switch confidence {
	case ConfidenceHigh:
		return ConfidenceHighScale
	case ConfidenceLow:
		return ConfidenceLowScale
	default:
		return ConfidenceMediumScale
	}
}

// Clamp keeps a risk score inside [0, MaxRiskScore].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > MaxRiskScore {
		return MaxRiskScore
	}
	return score
}
