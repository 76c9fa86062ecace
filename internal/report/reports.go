package report

import (
	"time"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

// Compliance summarizes review activity over a time range: what was
// reviewed, who signed off, and whether the audit trail is complete.
type Compliance struct {
	From             time.Time      `json:"from"`
	To               time.Time      `json:"to"`
	GeneratedAt      time.Time      `json:"generated_at"`
	TotalEntries     int            `json:"total_entries"`
	ByStatus         map[string]int `json:"by_status"`
	Approved         int            `json:"approved"`
	Rejected         int            `json:"rejected"`
	Overdue          int            `json:"overdue"`
	SecuritySignoffs int            `json:"security_signoffs"`
	AuditEntries     int            `json:"audit_entries"`
	AuditByAction    map[string]int `json:"audit_by_action"`
}

// BuildCompliance works over snapshots so it never holds store locks.
func BuildCompliance(entries []model.ReviewTrackingEntry, audits []model.AuditLogEntry, from, to time.Time) Compliance {
	now := time.Now().UTC()
	c := Compliance{
		From:          from,
		To:            to,
		GeneratedAt:   now,
		ByStatus:      map[string]int{},
		AuditByAction: map[string]int{},
	}
	for _, e := range entries {
		if e.CreatedAt.Before(from) || e.CreatedAt.After(to) {
			continue
		}
		c.TotalEntries++
		c.ByStatus[string(e.Status)]++
		switch e.Status {
		case model.ReviewApproved:
			c.Approved++
		case model.ReviewRejected:
			c.Rejected++
		}
		if e.DueAt != nil && !e.Status.Terminal() && now.After(*e.DueAt) {
			c.Overdue++
		}
		for _, a := range e.Approvals {
			if a.Role == model.RoleSecuritySpecialist || a.Role == model.RoleSecurityArchitect {
				c.SecuritySignoffs++
			}
		}
	}
	for _, a := range audits {
		if a.Timestamp.Before(from) || a.Timestamp.After(to) {
			continue
		}
		c.AuditEntries++
		c.AuditByAction[a.Action]++
	}
	return c
}

// Security summarizes the event log over a time range.
type Security struct {
	From         time.Time      `json:"from"`
	To           time.Time      `json:"to"`
	GeneratedAt  time.Time      `json:"generated_at"`
	TotalEvents  int            `json:"total_events"`
	Unresolved   int            `json:"unresolved"`
	AverageRisk  float64        `json:"average_risk"`
	HighRisk     int            `json:"high_risk_events"`
	ByType       map[string]int `json:"by_type"`
	BySeverity   map[string]int `json:"by_severity"`
	TopSourceIPs map[string]int `json:"top_source_ips"`
}

func BuildSecurity(events []model.SecurityEvent, from, to time.Time) Security {
	s := Security{
		From:         from,
		To:           to,
		GeneratedAt:  time.Now().UTC(),
		ByType:       map[string]int{},
		BySeverity:   map[string]int{},
		TopSourceIPs: map[string]int{},
	}
	var riskSum float64
	for _, ev := range events {
		if ev.Timestamp.Before(from) || ev.Timestamp.After(to) {
			continue
		}
		s.TotalEvents++
		riskSum += ev.RiskScore
		if !ev.Resolved {
			s.Unresolved++
		}
		if ev.RiskScore >= 7 {
			s.HighRisk++
		}
		s.ByType[string(ev.Type)]++
		s.BySeverity[ev.Severity]++
		if ev.SourceIP != "" {
			s.TopSourceIPs[ev.SourceIP]++
		}
	}
	if s.TotalEvents > 0 {
		s.AverageRisk = riskSum / float64(s.TotalEvents)
	}
	return s
}
