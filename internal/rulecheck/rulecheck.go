// Package rulecheck is the admission gate in front of the rule catalog:
// static checks, catastrophic-backtracking heuristics, complexity scoring,
// and timed execution against synthetic samples. A rule that fails any
// blocking stage never reaches the scanner.
package rulecheck

import (
	"errors"
	"fmt"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/rules"
	"github.com/wilson323/zk-agent-sub004/internal/severity"
)

// DefaultExecutionCeiling bounds the timed sample execution stage.
const DefaultExecutionCeiling = 1000 * time.Millisecond

type Performance struct {
	ExecutionTimeMs  float64 `json:"execution_time_ms"`
	ComplexityScore  int     `json:"complexity_score"`
	ComplexityBucket string  `json:"complexity_bucket"`
}

// Report is the admission outcome. Errors block admission; warnings and
// suggestions do not.
type Report struct {
	Accepted    bool        `json:"accepted"`
	Errors      []string    `json:"errors,omitempty"`
	Warnings    []string    `json:"warnings,omitempty"`
	Suggestions []string    `json:"suggestions,omitempty"`
	Performance Performance `json:"performance"`
}

// TestOutcome is the result of running a rule against caller-provided text.
type TestOutcome struct {
	Matches          int     `json:"matches"`
	ExecutionTimeMs  float64 `json:"execution_time_ms"`
	MemoryDeltaBytes int64   `json:"memory_delta_bytes"`
}

type Validator struct {
	ExecutionCeiling time.Duration
}

func New() *Validator {
	return &Validator{ExecutionCeiling: DefaultExecutionCeiling}
}

// AdmitFunc adapts the validator to the catalog's admission hook.
func (v *Validator) AdmitFunc() rules.AdmitFunc {
	return func(r model.SecurityRule) error {
		rep := v.Admit(r, rules.Tests{})
		if rep.Accepted {
			return nil
		}
		return errors.New(strings.Join(rep.Errors, "; "))
	}
}

// Admit runs the full validation pipeline in order. Any stage's errors stop
// the pipeline from marking the rule accepted, but later informational
// stages still run when the pattern compiled.
func (v *Validator) Admit(rule model.SecurityRule, tests rules.Tests) Report {
	rep := Report{}

	v.checkRequired(rule, &rep)

	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		rep.Errors = append(rep.Errors, fmt.Sprintf("pattern does not compile: %v", err))
		return rep
	}

	v.checkBacktracking(rule.Pattern, &rep)
	v.scoreComplexity(rule.Pattern, &rep)
	v.timedExecution(re, rule.Category, &rep)
	v.checkRelevance(rule, &rep)
	v.runTestCases(re, tests, &rep)

	rep.Accepted = len(rep.Errors) == 0
	return rep
}

// Test executes the compiled pattern once against sample text and measures
// wall time plus allocation delta.
func (v *Validator) Test(rule model.SecurityRule, sample string) (TestOutcome, error) {
	re := rule.Regex
	if re == nil {
		var err error
		re, err = regexp.Compile(rule.Pattern)
		if err != nil {
			return TestOutcome{}, fmt.Errorf("test rule %s: %w", rule.ID, err)
		}
	}

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	start := time.Now()
	matches := re.FindAllStringIndex(sample, -1)
	elapsed := time.Since(start)
	runtime.ReadMemStats(&after)

	return TestOutcome{
		Matches:          len(matches),
		ExecutionTimeMs:  float64(elapsed.Microseconds()) / 1000.0,
		MemoryDeltaBytes: int64(after.TotalAlloc - before.TotalAlloc),
	}, nil
}

func (v *Validator) checkRequired(rule model.SecurityRule, rep *Report) {
	if strings.TrimSpace(rule.ID) == "" {
		rep.Errors = append(rep.Errors, "rule id is required")
	}
	if strings.TrimSpace(rule.Name) == "" {
		rep.Errors = append(rep.Errors, "rule name is required")
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		rep.Errors = append(rep.Errors, "rule pattern is required")
	}
	if !model.IsCategory(rule.Category) {
		rep.Errors = append(rep.Errors, fmt.Sprintf("unknown category: %q", rule.Category))
	}
	if !severity.Valid(rule.Severity) {
		rep.Errors = append(rep.Errors, fmt.Sprintf("unknown severity: %q", rule.Severity))
	}
	if len(rule.FileExtensions) == 0 {
		rep.Errors = append(rep.Errors, "at least one file extension is required")
	}
	if strings.TrimSpace(rule.Remediation) == "" {
		rep.Suggestions = append(rep.Suggestions, "add remediation guidance so findings are actionable")
	}
}

// Known dangerous shapes: a quantified group whose body is itself
// unboundedly quantified, and stacked unbounded quantifiers.
var backtrackingShapes = []*regexp.Regexp{
	regexp.MustCompile(`\([^)]*[+*]\s*\)[+*]`),
	regexp.MustCompile(`\([^)]*\{\d*,\}\s*\)[+*]`),
	regexp.MustCompile(`[+*]\s*[+*]`),
}

func (v *Validator) checkBacktracking(pattern string, rep *Report) {
	for _, shape := range backtrackingShapes {
		if shape.MatchString(pattern) {
			rep.Errors = append(rep.Errors, "pattern contains nested unbounded quantifiers (catastrophic backtracking risk)")
			return
		}
	}
}

func (v *Validator) scoreComplexity(pattern string, rep *Report) {
	groups := strings.Count(pattern, "(")
	classes := strings.Count(pattern, "[")
	quantifiers := strings.Count(pattern, "+") + strings.Count(pattern, "*") + strings.Count(pattern, "?") + strings.Count(pattern, "{")
	alternations := strings.Count(pattern, "|")
	escapes := strings.Count(pattern, `\`)

	score := groups*2 + classes + quantifiers + alternations*2 + escapes
	bucket := "low"
	switch {
	case score >= 25:
		bucket = "high"
	case score >= 12:
		bucket = "medium"
	}
	rep.Performance.ComplexityScore = score
	rep.Performance.ComplexityBucket = bucket
	if bucket == "high" {
		rep.Warnings = append(rep.Warnings, fmt.Sprintf("pattern complexity is high (score %d); consider splitting the rule", score))
	}
}

func (v *Validator) timedExecution(re *regexp.Regexp, category string, rep *Report) {
	if re.MatchString("") {
		rep.Errors = append(rep.Errors, "pattern matches empty input; it would flag every line")
		return
	}

	sample := sampleFor(category)
	ceiling := v.ExecutionCeiling
	if ceiling <= 0 {
		ceiling = DefaultExecutionCeiling
	}

	start := time.Now()
	re.FindAllStringIndex(sample, -1)
	elapsed := time.Since(start)
	rep.Performance.ExecutionTimeMs = float64(elapsed.Microseconds()) / 1000.0

	if elapsed > ceiling {
		rep.Errors = append(rep.Errors, fmt.Sprintf("pattern execution exceeded ceiling: %v > %v", elapsed, ceiling))
	}
}

func (v *Validator) checkRelevance(rule model.SecurityRule, rep *Report) {
	vocab, ok := categoryVocabulary[rule.Category]
	if !ok {
		return
	}
	haystack := strings.ToLower(rule.Pattern + " " + rule.Name)
	for _, kw := range vocab {
		if strings.Contains(haystack, kw) {
			return
		}
	}
	rep.Warnings = append(rep.Warnings, fmt.Sprintf("pattern and name share no vocabulary with category %q; verify the categorization", rule.Category))
}

// runTestCases reports deviations as warnings, not hard failures; lexical
// detection is approximate by nature.
func (v *Validator) runTestCases(re *regexp.Regexp, tests rules.Tests, rep *Report) {
	for _, tc := range tests.Positive {
		got := len(re.FindAllStringIndex(tc.Input, -1))
		if got == 0 {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("positive case did not match: %q", tc.Input))
			continue
		}
		if tc.Matches > 0 && got != tc.Matches {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("positive case %q matched %d times, expected %d", tc.Input, got, tc.Matches))
		}
	}
	for _, tc := range tests.Negative {
		if re.MatchString(tc.Input) {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("negative case matched unexpectedly: %q", tc.Input))
		}
	}
}
