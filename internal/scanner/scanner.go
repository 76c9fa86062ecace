// Package scanner applies the active rule set to one file's content and
// produces an immutable CodeReviewResult. One unscannable file never aborts
// a batch: internal failures become a synthetic scan-error violation.
package scanner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/cache"
	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/rules"
	"github.com/wilson323/zk-agent-sub004/internal/severity"
)

const (
	// HighRiskThreshold marks results that are fast-pathed to the cache.
	HighRiskThreshold = 7.0

	highRiskTTL = time.Hour

	// AutomatedReviewer identifies scans not attributed to a human.
	AutomatedReviewer = "automated"
)

// AuditSink receives security events raised by the scanner (critical
// violations). Recording must never fail the scan that triggered it.
type AuditSink interface {
	Record(event model.SecurityEvent) (string, error)
}

// Options narrow the rule selection for one scan.
type Options struct {
	IncludeRuleIDs []string
	ExcludeRuleIDs []string
	Reviewer       string
}

type Scanner struct {
	catalog *rules.Catalog
	cache   cache.Store
	audit   AuditSink
	logger  *zap.Logger
}

func New(catalog *rules.Catalog, store cache.Store, audit AuditSink, logger *zap.Logger) *Scanner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{catalog: catalog, cache: store, audit: audit, logger: logger}
}

// Scan runs every applicable rule over content line by line. The returned
// result is complete even when the scan fails internally; see scanError.
func (s *Scanner) Scan(ctx context.Context, filePath string, content string, opts Options) model.CodeReviewResult {
	start := time.Now()
	reviewer := opts.Reviewer
	if reviewer == "" {
		reviewer = AutomatedReviewer
	}

	violations, lines := s.collect(filePath, content, opts)

	result := model.CodeReviewResult{
		ID:           model.NewID("scan"),
		FilePath:     filePath,
		Violations:   violations,
		RiskScore:    RiskScore(violations),
		LinesScanned: lines,
		Duration:     time.Since(start).Milliseconds(),
		ScannedAt:    time.Now().UTC(),
		Reviewer:     reviewer,
	}

	s.sideEffects(ctx, result)
	return result
}

// collect isolates the matching loop so a panic inside a rule evaluation is
// converted into a synthetic violation instead of propagating.
func (s *Scanner) collect(filePath string, content string, opts Options) (violations []model.Violation, lines int) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scan failed internally",
				zap.String("file", filePath),
				zap.Any("panic", r))
			violations = append(violations, ScanErrorViolation(fmt.Sprintf("internal scan failure: %v", r)))
		}
	}()

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filePath), "."))
	selected := filterRules(s.catalog.ForExtension(ext), opts)

	sc := bufio.NewScanner(strings.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		for _, rule := range selected {
			for _, idx := range rule.Regex.FindAllStringIndex(line, -1) {
				matched := line[idx[0]:idx[1]]
				violations = append(violations, model.Violation{
					RuleID:     rule.ID,
					RuleName:   rule.Name,
					Category:   rule.Category,
					Severity:   rule.Severity,
					Line:       lineNo,
					Column:     idx[0] + 1,
					LineText:   line,
					Confidence: Confidence(rule.Severity, matched),
				})
			}
		}
	}
	if err := sc.Err(); err != nil {
		violations = append(violations, ScanErrorViolation(fmt.Sprintf("read content: %v", err)))
	}
	return violations, lineNo
}

func (s *Scanner) sideEffects(ctx context.Context, result model.CodeReviewResult) {
	if s.cache != nil && result.RiskScore >= HighRiskThreshold {
		payload, err := json.Marshal(result)
		if err == nil {
			key := "scan:highrisk:" + result.ID
			if err := s.cache.Set(ctx, key, payload, highRiskTTL, "high-risk"); err != nil {
				s.logger.Warn("high-risk cache write failed", zap.Error(err))
			}
		}
	}

	if s.audit == nil {
		return
	}
	for _, v := range result.Violations {
		if v.Severity != "critical" {
			continue
		}
		_, err := s.audit.Record(model.SecurityEvent{
			Type:      model.EventCriticalViolation,
			Severity:  "critical",
			Timestamp: result.ScannedAt,
			Detail: map[string]any{
				"file":    result.FilePath,
				"rule_id": v.RuleID,
				"line":    v.Line,
				"scan_id": result.ID,
			},
		})
		if err != nil {
			s.logger.Warn("audit event record failed", zap.Error(err))
		}
		break
	}
}

// ScanErrorViolation is the synthetic high-severity violation standing in
// for a file whose scan failed or timed out.
func ScanErrorViolation(detail string) model.Violation {
	return model.Violation{
		RuleID:     "scan-error",
		RuleName:   "Scan execution error",
		Category:   "error-handling",
		Severity:   "high",
		Line:       1,
		Column:     1,
		LineText:   detail,
		Confidence: severity.ConfidenceHigh,
	}
}

func filterRules(selected []model.SecurityRule, opts Options) []model.SecurityRule {
	out := make([]model.SecurityRule, 0, len(selected))
	include := toSet(opts.IncludeRuleIDs)
	exclude := toSet(opts.ExcludeRuleIDs)
	for _, r := range selected {
		if len(include) > 0 {
			if _, ok := include[r.ID]; !ok {
				continue
			}
		}
		if _, ok := exclude[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

func toSet(ids []string) map[string]struct{} {
	if len(ids) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// Confidence is a fixed heuristic: critical rules are high confidence,
// longer matches and high-severity rules medium, everything else low.
func Confidence(sev string, matched string) string {
	switch {
	case sev == "critical":
		return severity.ConfidenceHigh
	case sev == "high" || len(matched) > 12:
		return severity.ConfidenceMedium
	default:
		return severity.ConfidenceLow
	}
}

// RiskScore is the mean of per-violation contributions (severity weight
// scaled by confidence), clamped to [0,10]. No violations means zero.
func RiskScore(violations []model.Violation) float64 {
	if len(violations) == 0 {
		return 0
	}
	var sum float64
	for _, v := range violations {
		sum += severity.Weight(v.Severity) * severity.ConfidenceScale(v.Confidence)
	}
	return severity.Clamp(sum / float64(len(violations)))
}
