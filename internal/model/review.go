package model

import "time"

type ReviewStatus string

const (
	ReviewPending         ReviewStatus = "pending"
	ReviewInReview        ReviewStatus = "in_review"
	ReviewApproved        ReviewStatus = "approved"
	ReviewRejected        ReviewStatus = "rejected"
	ReviewRequiresChanges ReviewStatus = "requires_changes"
	ReviewCancelled       ReviewStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewApproved || s == ReviewRejected
}

type ReviewerRole string

const (
	RoleDeveloper          ReviewerRole = "developer"
	RoleSeniorDeveloper    ReviewerRole = "senior_developer"
	RoleTechLead           ReviewerRole = "tech_lead"
	RoleSecuritySpecialist ReviewerRole = "security_specialist"
	RoleSecurityArchitect  ReviewerRole = "security_architect"
)

type ReviewComment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	Line      int       `json:"line,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionRejected ApprovalDecision = "rejected"
)

type ReviewApproval struct {
	ID        string           `json:"id"`
	Approver  string           `json:"approver"`
	Role      ReviewerRole     `json:"role"`
	Decision  ApprovalDecision `json:"decision"`
	Comment   string           `json:"comment,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// ReviewTrackingEntry is the human-reviewable wrapper around one file's scan
// output. Status transitions and appended comments/approvals are the only
// observable mutations.
type ReviewTrackingEntry struct {
	ID              string           `json:"id"`
	ReviewID        string           `json:"review_id"`
	FilePath        string           `json:"file_path"`
	Status          ReviewStatus     `json:"status"`
	Priority        string           `json:"priority"`
	Assignee        string           `json:"assignee,omitempty"`
	AssigneeRole    ReviewerRole     `json:"assignee_role,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
	DueAt           *time.Time       `json:"due_at,omitempty"`
	CompletedAt     *time.Time       `json:"completed_at,omitempty"`
	EstimatedEffort time.Duration    `json:"estimated_effort_ns"`
	ActualEffort    time.Duration    `json:"actual_effort_ns"`
	Violations      []Violation      `json:"violations"`
	Comments        []ReviewComment  `json:"comments"`
	Approvals       []ReviewApproval `json:"approvals"`
	Tags            []string         `json:"tags,omitempty"`
}

// HasSeverity reports whether any embedded violation meets the given
// severity rank check supplied by the caller.
func (e ReviewTrackingEntry) HasSeverity(match func(string) bool) bool {
	for _, v := range e.Violations {
		if match(v.Severity) {
			return true
		}
	}
	return false
}

type AuditActor struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	IP   string `json:"ip,omitempty"`
}

// AuditLogEntry is append-only and globally ordered by timestamp.
type AuditLogEntry struct {
	ID        string         `json:"id"`
	ReviewID  string         `json:"review_id"`
	Action    string         `json:"action"`
	Actor     AuditActor     `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
	RiskLevel string         `json:"risk_level"`
}
