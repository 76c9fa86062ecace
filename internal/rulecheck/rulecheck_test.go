package rulecheck

import (
	"strings"
	"testing"

	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/rules"
)

func validRule() model.SecurityRule {
	return model.SecurityRule{
		ID:             "no-eval",
		Name:           "Dynamic code evaluation via eval",
		Category:       "injection-prevention",
		Severity:       "critical",
		Pattern:        `\beval\s*\(`,
		FileExtensions: []string{"js"},
		Remediation:    "Remove eval.",
	}
}

func TestAdmitAcceptsValidRule(t *testing.T) {
	rep := New().Admit(validRule(), rules.Tests{
		Positive: []rules.TestCase{{Input: "eval(x)", Matches: 1}},
		Negative: []rules.TestCase{{Input: "evaluate(x)"}},
	})
	if !rep.Accepted {
		t.Fatalf("expected acceptance, errors: %v", rep.Errors)
	}
	if len(rep.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", rep.Warnings)
	}
	if rep.Performance.ComplexityBucket == "" {
		t.Fatal("complexity bucket not populated")
	}
}

func TestAdmitRejectsMissingFields(t *testing.T) {
	rep := New().Admit(model.SecurityRule{Pattern: `x`}, rules.Tests{})
	if rep.Accepted {
		t.Fatal("expected rejection")
	}
	joined := strings.Join(rep.Errors, "\n")
	for _, want := range []string{"rule id", "rule name", "category", "severity", "file extension"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in errors: %v", want, rep.Errors)
		}
	}
}

func TestAdmitRejectsUncompilablePattern(t *testing.T) {
	r := validRule()
	r.Pattern = `[unclosed`
	rep := New().Admit(r, rules.Tests{})
	if rep.Accepted {
		t.Fatal("expected rejection")
	}
	if len(rep.Errors) == 0 || !strings.Contains(rep.Errors[len(rep.Errors)-1], "does not compile") {
		t.Fatalf("expected compile error, got %v", rep.Errors)
	}
}

func TestAdmitRejectsEmptyInputMatch(t *testing.T) {
	r := validRule()
	r.Pattern = `a*`
	rep := New().Admit(r, rules.Tests{})
	if rep.Accepted {
		t.Fatal("a pattern matching empty input must be rejected")
	}
	joined := strings.Join(rep.Errors, " ")
	if !strings.Contains(joined, "empty input") {
		t.Fatalf("expected empty-input error, got %v", rep.Errors)
	}
}

func TestAdmitRejectsNestedQuantifiers(t *testing.T) {
	for _, pattern := range []string{`(a+)+b`, `(a*)*b`, `(\d{2,})+x`} {
		r := validRule()
		r.Pattern = pattern
		rep := New().Admit(r, rules.Tests{})
		joined := strings.Join(rep.Errors, " ")
		if !strings.Contains(joined, "backtracking") {
			t.Fatalf("pattern %q should trip the backtracking check, errors: %v", pattern, rep.Errors)
		}
	}

	// a** is not valid RE2 at all; it dies at compilation, before the
	// backtracking heuristic runs.
	r := validRule()
	r.Pattern = `a**`
	rep := New().Admit(r, rules.Tests{})
	if rep.Accepted {
		t.Fatal("a** must be rejected")
	}
	if !strings.Contains(strings.Join(rep.Errors, " "), "does not compile") {
		t.Fatalf("expected compile rejection for a**, got %v", rep.Errors)
	}
}

func TestAdmitWarnsOnIrrelevantVocabulary(t *testing.T) {
	r := validRule()
	r.ID = "weird"
	r.Name = "Totally unrelated"
	r.Category = "cryptography"
	r.Pattern = `\bbanana\s*\(`
	rep := New().Admit(r, rules.Tests{})
	if !rep.Accepted {
		t.Fatalf("vocabulary mismatch must not block admission: %v", rep.Errors)
	}
	found := false
	for _, w := range rep.Warnings {
		if strings.Contains(w, "vocabulary") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected relevance warning, got %v", rep.Warnings)
	}
}

func TestAdmitTestCaseDeviationsAreWarnings(t *testing.T) {
	rep := New().Admit(validRule(), rules.Tests{
		Positive: []rules.TestCase{{Input: "nothing here"}},
		Negative: []rules.TestCase{{Input: "eval(x)"}},
	})
	if !rep.Accepted {
		t.Fatalf("test case failures must not block admission: %v", rep.Errors)
	}
	if len(rep.Warnings) < 2 {
		t.Fatalf("expected a warning per failed case, got %v", rep.Warnings)
	}
}

func TestComplexityBuckets(t *testing.T) {
	v := New()

	rep := Report{}
	v.scoreComplexity(`abc`, &rep)
	if rep.Performance.ComplexityBucket != "low" {
		t.Fatalf("plain literal should be low, got %s", rep.Performance.ComplexityBucket)
	}

	rep = Report{}
	v.scoreComplexity(`(a|b)(c|d)[ef]+\d{2}`, &rep)
	if rep.Performance.ComplexityBucket != "medium" {
		t.Fatalf("expected medium, got %s (score %d)", rep.Performance.ComplexityBucket, rep.Performance.ComplexityScore)
	}

	rep = Report{}
	v.scoreComplexity(`(a|b)(c|d)(e|f)(g|h)[ij]+[kl]+\d{2}\s*\w+`, &rep)
	if rep.Performance.ComplexityBucket != "high" {
		t.Fatalf("expected high, got %s (score %d)", rep.Performance.ComplexityBucket, rep.Performance.ComplexityScore)
	}
	if len(rep.Warnings) == 0 {
		t.Fatal("high complexity should warn")
	}
}

func TestTestMeasuresMatches(t *testing.T) {
	outcome, err := New().Test(validRule(), "eval(a); eval(b); nothing")
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Matches != 2 {
		t.Fatalf("expected 2 matches, got %d", outcome.Matches)
	}
	if outcome.ExecutionTimeMs < 0 {
		t.Fatalf("negative execution time: %f", outcome.ExecutionTimeMs)
	}
}

func TestTestRejectsBadPattern(t *testing.T) {
	r := validRule()
	r.Pattern = `[unclosed`
	if _, err := New().Test(r, "sample"); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestBuiltinRulesPassAdmission(t *testing.T) {
	v := New()
	for _, s := range rules.Builtin() {
		rep := v.Admit(s.Rule(), s.Tests)
		if !rep.Accepted {
			t.Fatalf("builtin rule %s rejected: %v", s.ID, rep.Errors)
		}
		for _, w := range rep.Warnings {
			// Complexity warnings are tolerable; relevance or failing test
			// cases on a shipped rule are not.
			if strings.Contains(w, "vocabulary") || strings.Contains(w, "case") {
				t.Fatalf("builtin rule %s warned: %s", s.ID, w)
			}
		}
	}
}
