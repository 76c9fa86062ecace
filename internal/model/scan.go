package model

import "time"

// Violation is one rule match against one line of scanned content. It only
// exists inside its parent CodeReviewResult.
type Violation struct {
	RuleID     string `json:"rule_id"`
	RuleName   string `json:"rule_name"`
	Category   string `json:"category"`
	Severity   string `json:"severity"`
	Line       int    `json:"line"`
	Column     int    `json:"column"`
	LineText   string `json:"line_text"`
	Confidence string `json:"confidence"`
}

// CodeReviewResult is the outcome of scanning one file once. Immutable
// after creation.
type CodeReviewResult struct {
	ID           string      `json:"id"`
	FilePath     string      `json:"file_path"`
	Violations   []Violation `json:"violations"`
	RiskScore    float64     `json:"risk_score"`
	LinesScanned int         `json:"lines_scanned"`
	Duration     int64       `json:"duration_ms"`
	ScannedAt    time.Time   `json:"scanned_at"`
	Reviewer     string      `json:"reviewer"`
}

func (r CodeReviewResult) SeverityCounts() map[string]int {
	out := map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0, "info": 0}
	for _, v := range r.Violations {
		out[v.Severity]++
	}
	return out
}

// Thresholds gate a scan job pass/fail. A zero value for a count means no
// violation of that severity is tolerated only when paired with Strict
// semantics at the config level; here zero means "none allowed".
type Thresholds struct {
	Critical  int     `json:"critical" yaml:"critical"`
	High      int     `json:"high" yaml:"high"`
	Medium    int     `json:"medium" yaml:"medium"`
	RiskScore float64 `json:"risk_score" yaml:"risk_score"`
}

// ScanConfig is operator-owned and updated in place; jobs reference it by ID.
type ScanConfig struct {
	ID              string     `json:"id" yaml:"id"`
	Name            string     `json:"name" yaml:"name"`
	Enabled         bool       `json:"enabled" yaml:"enabled"`
	Schedule        string     `json:"schedule,omitempty" yaml:"schedule,omitempty"`
	IncludePatterns []string   `json:"include_patterns" yaml:"include_patterns"`
	ExcludePatterns []string   `json:"exclude_patterns" yaml:"exclude_patterns"`
	RuleIDs         []string   `json:"rule_ids" yaml:"rule_ids"`
	Thresholds      Thresholds `json:"thresholds" yaml:"thresholds"`
	NotifyChannels  []string   `json:"notify_channels,omitempty" yaml:"notify_channels,omitempty"`
	CreatedAt       time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt       time.Time  `json:"updated_at" yaml:"-"`
}

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

type TriggerSource string

const (
	TriggerSchedule TriggerSource = "schedule"
	TriggerCommit   TriggerSource = "commit"
	TriggerManual   TriggerSource = "manual"
	TriggerAPI      TriggerSource = "api"
)

// ScanJobResult aggregates per-file results for one job run.
type ScanJobResult struct {
	FilesScanned    int            `json:"files_scanned"`
	TotalViolations int            `json:"total_violations"`
	SeverityCounts  map[string]int `json:"severity_counts"`
	AverageRisk     float64        `json:"average_risk"`
	Duration        int64          `json:"duration_ms"`
	Passed          bool           `json:"passed"`
}

// ScanJob status only moves forward: queued -> running -> terminal.
type ScanJob struct {
	ID        string        `json:"id"`
	ConfigID  string        `json:"config_id"`
	Status    JobStatus     `json:"status"`
	Trigger   TriggerSource `json:"trigger"`
	StartedAt *time.Time    `json:"started_at,omitempty"`
	EndedAt   *time.Time    `json:"ended_at,omitempty"`
	Result    ScanJobResult `json:"result"`
	Error     string        `json:"error,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}
