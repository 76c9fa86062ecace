package threat

import (
	"time"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

// DefaultThreatRules is the standing rule set installed on engine
// construction. Predicates are arbitrary functions of the new event plus
// recent history; they must treat the history slice as read-only.
func DefaultThreatRules() []model.ThreatRule {
	return []model.ThreatRule{
		{
			ID:        "tr_login_bruteforce",
			Name:      "Repeated login failures from one source",
			EventType: model.EventLoginFailure,
			Severity:  "high",
			Action:    model.ActionBlock,
			Enabled:   true,
			Predicate: countSameSource(model.EventLoginFailure, 5, 10*time.Minute),
		},
		{
			ID:        "tr_injection_burst",
			Name:      "Injection attempts from one source",
			EventType: model.EventInjectionAttempt,
			Severity:  "critical",
			Action:    model.ActionBlock,
			Enabled:   true,
			Predicate: countSameSource(model.EventInjectionAttempt, 3, 5*time.Minute),
		},
		{
			ID:        "tr_xss_repeat",
			Name:      "Repeated cross-site scripting payloads",
			EventType: model.EventXSSAttempt,
			Severity:  "high",
			Action:    model.ActionAlert,
			Enabled:   true,
			Predicate: countSameSource(model.EventXSSAttempt, 3, 10*time.Minute),
		},
		{
			ID:        "tr_critical_violations",
			Name:      "Multiple critical scan violations in window",
			EventType: model.EventCriticalViolation,
			Severity:  "critical",
			Action:    model.ActionAlert,
			Enabled:   true,
			Predicate: func(ev model.SecurityEvent, history []model.SecurityEvent) bool {
				count := 0
				for _, h := range history {
					if h.Type == model.EventCriticalViolation {
						count++
					}
				}
				return count >= 3
			},
		},
		{
			ID:        "tr_scan_failures",
			Name:      "Repeated scan failures",
			EventType: model.EventScanFailed,
			Severity:  "medium",
			Action:    model.ActionAlert,
			Enabled:   true,
			Predicate: func(ev model.SecurityEvent, history []model.SecurityEvent) bool {
				count := 0
				for _, h := range history {
					if h.Type == model.EventScanFailed {
						count++
					}
				}
				return count >= 3
			},
		},
		{
			ID:        "tr_exfiltration",
			Name:      "Data exfiltration indicator",
			EventType: model.EventDataExfiltration,
			Severity:  "critical",
			Action:    model.ActionQuarantine,
			Enabled:   true,
			// A single exfiltration event is enough to quarantine.
			Predicate: func(model.SecurityEvent, []model.SecurityEvent) bool { return true },
		},
		{
			ID:        "tr_privilege_escalation",
			Name:      "Privilege escalation observed",
			EventType: model.EventPrivilegeEscalated,
			Severity:  "critical",
			Action:    model.ActionAlert,
			Enabled:   true,
			Predicate: func(model.SecurityEvent, []model.SecurityEvent) bool { return true },
		},
		{
			ID:        "tr_upload_surge",
			Name:      "Upload surge from one user",
			EventType: model.EventFileUpload,
			Severity:  "medium",
			Action:    model.ActionLog,
			Enabled:   true,
			Predicate: func(ev model.SecurityEvent, history []model.SecurityEvent) bool {
				if ev.UserID == "" {
					return false
				}
				count := 0
				cutoff := ev.Timestamp.Add(-15 * time.Minute)
				for _, h := range history {
					if h.Type == model.EventFileUpload && h.UserID == ev.UserID && h.Timestamp.After(cutoff) {
						count++
					}
				}
				return count >= 20
			},
		},
	}
}

// countSameSource builds a predicate matching when the history holds at
// least n events of the given type from the same source inside the window
// (counting the new event itself).
func countSameSource(t model.SecurityEventType, n int, window time.Duration) model.ThreatPredicate {
	return func(ev model.SecurityEvent, history []model.SecurityEvent) bool {
		if ev.SourceIP == "" {
			return false
		}
		cutoff := ev.Timestamp.Add(-window)
		count := 0
		for _, h := range history {
			if h.Type == t && h.SourceIP == ev.SourceIP && !h.Timestamp.Before(cutoff) {
				count++
			}
		}
		return count >= n
	}
}
