package model

import "time"

// SecurityEventType is the closed set of recordable event kinds, spanning
// authentication, scanning, and attack categories.
type SecurityEventType string

const (
	EventLoginSuccess       SecurityEventType = "login_success"
	EventLoginFailure       SecurityEventType = "login_failure"
	EventPasswordChange     SecurityEventType = "password_change"
	EventAccountLocked      SecurityEventType = "account_locked"
	EventSessionExpired     SecurityEventType = "session_expired"
	EventTokenIssued        SecurityEventType = "token_issued"
	EventTokenRevoked       SecurityEventType = "token_revoked"
	EventPermissionDenied   SecurityEventType = "permission_denied"
	EventScanStarted        SecurityEventType = "scan_started"
	EventScanCompleted      SecurityEventType = "scan_completed"
	EventScanFailed         SecurityEventType = "scan_failed"
	EventCriticalViolation  SecurityEventType = "critical_violation"
	EventFileUpload         SecurityEventType = "file_upload"
	EventSuspiciousRequest  SecurityEventType = "suspicious_request"
	EventInjectionAttempt   SecurityEventType = "injection_attempt"
	EventXSSAttempt         SecurityEventType = "xss_attempt"
	EventBruteForce         SecurityEventType = "brute_force"
	EventRateLimitExceeded  SecurityEventType = "rate_limit_exceeded"
	EventAnomalousClient    SecurityEventType = "anomalous_client"
	EventDataExfiltration   SecurityEventType = "data_exfiltration"
	EventConfigChange       SecurityEventType = "config_change"
	EventPrivilegeEscalated SecurityEventType = "privilege_escalated"
)

// SecurityEvent is append-only; the only permitted mutation is marking
// resolution.
type SecurityEvent struct {
	ID         string            `json:"id"`
	Type       SecurityEventType `json:"type"`
	Severity   string            `json:"severity"`
	Timestamp  time.Time         `json:"timestamp"`
	SourceIP   string            `json:"source_ip,omitempty"`
	UserAgent  string            `json:"user_agent,omitempty"`
	UserID     string            `json:"user_id,omitempty"`
	Detail     map[string]any    `json:"detail,omitempty"`
	RiskScore  float64           `json:"risk_score"`
	Resolved   bool              `json:"resolved"`
	ResolvedBy string            `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time        `json:"resolved_at,omitempty"`
}

type ResponseAction string

const (
	ActionLog        ResponseAction = "log"
	ActionAlert      ResponseAction = "alert"
	ActionBlock      ResponseAction = "block"
	ActionQuarantine ResponseAction = "quarantine"
)

// ThreatPredicate looks at a freshly recorded event plus a consistent
// snapshot of recent history. It must not retain or mutate the slice.
type ThreatPredicate func(event SecurityEvent, history []SecurityEvent) bool

// ThreatRule fires its response action when the predicate matches. Rules
// are evaluated, not structurally matched.
type ThreatRule struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	EventType SecurityEventType `json:"event_type"`
	Severity  string            `json:"severity"`
	Action    ResponseAction    `json:"action"`
	Enabled   bool              `json:"enabled"`

	Predicate ThreatPredicate `json:"-"`
}
