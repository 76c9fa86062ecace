package threat

import (
	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/severity"
)

// Severity bases feed the event risk score before type weighting. The
// numbers are observable through block thresholds; change with care.
const (
	baseCritical = 7.0
	baseHigh     = 5.0
	baseMedium   = 3.0
	baseLow      = 1.5
	baseInfo     = 0.5

	// reputationBonus is added when the source identifier was previously
	// blocked or flagged.
	reputationBonus = 2.0
)

func severityBase(level string) float64 {
	switch level {
	case "critical":
		return baseCritical
	case "high":
		return baseHigh
	case "medium":
		return baseMedium
	case "low":
		return baseLow
	default:
		return baseInfo
	}
}

// typeWeights is the type-specific contribution on top of the severity
// base. The mapping is total over the closed event-type set.
var typeWeights = map[model.SecurityEventType]float64{
	model.EventLoginSuccess:       0,
	model.EventLoginFailure:       1.0,
	model.EventPasswordChange:     0.5,
	model.EventAccountLocked:      1.5,
	model.EventSessionExpired:     0,
	model.EventTokenIssued:        0,
	model.EventTokenRevoked:       0.5,
	model.EventPermissionDenied:   1.0,
	model.EventScanStarted:        0,
	model.EventScanCompleted:      0,
	model.EventScanFailed:         1.0,
	model.EventCriticalViolation:  2.5,
	model.EventFileUpload:         0.5,
	model.EventSuspiciousRequest:  1.5,
	model.EventInjectionAttempt:   3.0,
	model.EventXSSAttempt:         2.5,
	model.EventBruteForce:         3.0,
	model.EventRateLimitExceeded:  1.5,
	model.EventAnomalousClient:    1.0,
	model.EventDataExfiltration:   3.5,
	model.EventConfigChange:       1.0,
	model.EventPrivilegeEscalated: 3.0,
}

// typeSeverities makes the event-type to severity mapping total and
// explicit. Types absent from the table would default to medium, but every
// member of the closed set is listed.
var typeSeverities = map[model.SecurityEventType]string{
	model.EventLoginSuccess:       "info",
	model.EventLoginFailure:       "low",
	model.EventPasswordChange:     "info",
	model.EventAccountLocked:      "medium",
	model.EventSessionExpired:     "info",
	model.EventTokenIssued:        "info",
	model.EventTokenRevoked:       "low",
	model.EventPermissionDenied:   "medium",
	model.EventScanStarted:        "info",
	model.EventScanCompleted:      "info",
	model.EventScanFailed:         "medium",
	model.EventCriticalViolation:  "critical",
	model.EventFileUpload:         "low",
	model.EventSuspiciousRequest:  "medium",
	model.EventInjectionAttempt:   "high",
	model.EventXSSAttempt:         "high",
	model.EventBruteForce:         "high",
	model.EventRateLimitExceeded:  "medium",
	model.EventAnomalousClient:    "low",
	model.EventDataExfiltration:   "critical",
	model.EventConfigChange:       "medium",
	model.EventPrivilegeEscalated: "critical",
}

// DefaultSeverity returns the explicit severity for an event type, or
// medium for anything outside the mapping.
func DefaultSeverity(t model.SecurityEventType) string {
	if s, ok := typeSeverities[t]; ok {
		return s
	}
	return "medium"
}

// scoreEvent computes the [0,10] risk score for an event. knownBad reports
// whether the source identifier has a bad reputation.
func scoreEvent(ev model.SecurityEvent, knownBad bool) float64 {
	score := severityBase(ev.Severity) + typeWeights[ev.Type]
	if knownBad {
		score += reputationBonus
	}
	return severity.Clamp(score)
}
