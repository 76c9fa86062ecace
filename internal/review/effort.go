package review

import (
	"time"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

// Effort estimation constants. The estimate is deterministic so planning
// stays reproducible across runs.
const (
	effortBase = 30 * time.Minute

	// Complexity scales the base by up to 1.5x, size by up to 1.3x.
	complexityPerViolation = 0.05
	complexityScaleCap     = 0.5
	sizePerKLOC            = 0.15
	sizeScaleCap           = 0.3

	effortPerViolation = 5 * time.Minute
	effortPerCritical  = 20 * time.Minute
	effortPerHigh      = 10 * time.Minute
	effortPerMedium    = 5 * time.Minute
	effortPerLow       = 2 * time.Minute
)

// EstimateEffort computes the expected review effort from the violation
// mix and the file's line count.
func EstimateEffort(violations []model.Violation, lines int) time.Duration {
	complexity := complexityPerViolation * float64(len(violations))
	if complexity > complexityScaleCap {
		complexity = complexityScaleCap
	}
	size := sizePerKLOC * float64(lines) / 1000.0
	if size > sizeScaleCap {
		size = sizeScaleCap
	}

	scaled := time.Duration(float64(effortBase) * (1 + complexity) * (1 + size))

	var additions time.Duration
	for _, v := range violations {
		additions += effortPerViolation
		switch v.Severity {
		case "critical":
			additions += effortPerCritical
		case "high":
			additions += effortPerHigh
		case "medium":
			additions += effortPerMedium
		case "low":
			additions += effortPerLow
		}
	}
	return scaled + additions
}

// PriorityFor derives the entry priority from the worst violation present.
func PriorityFor(violations []model.Violation) string {
	worst := ""
	for _, v := range violations {
		switch v.Severity {
		case "critical":
			return "urgent"
		case "high":
			worst = "high"
		case "medium":
			if worst == "" {
				worst = "normal"
			}
		}
	}
	if worst == "" {
		return "low"
	}
	return worst
}
