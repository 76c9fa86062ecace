package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/rules"
	"github.com/wilson323/zk-agent-sub004/internal/scanner"
)

func testOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	catalog := rules.NewCatalog(nil, nil)
	if _, errs := catalog.LoadBuiltin(); len(errs) != 0 {
		t.Fatalf("builtin load: %v", errs)
	}
	sc := scanner.New(catalog, nil, nil, nil)
	return New(sc, nil, nil, nil)
}

func enabledConfig(o *Orchestrator, thresholds model.Thresholds) model.ScanConfig {
	return o.CreateConfig(model.ScanConfig{Name: "test", Enabled: true, Thresholds: thresholds})
}

func TestCreateConfigFillsDefaults(t *testing.T) {
	o := testOrchestrator(t)
	cfg := o.CreateConfig(model.ScanConfig{Name: "defaults", Enabled: true})
	if cfg.ID == "" {
		t.Fatal("config id not generated")
	}
	if cfg.Thresholds != DefaultThresholds() {
		t.Fatalf("default thresholds not applied: %+v", cfg.Thresholds)
	}
	if cfg.CreatedAt.IsZero() || cfg.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}
}

func TestUpdateConfigRequiresExisting(t *testing.T) {
	o := testOrchestrator(t)
	if _, err := o.UpdateConfig(model.ScanConfig{ID: "missing"}); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestScanFileSetGatesOnCritical(t *testing.T) {
	o := testOrchestrator(t)
	cfg := enabledConfig(o, model.Thresholds{Critical: 0, High: 5, Medium: 20})

	set, err := o.ScanFileSet(context.Background(), []FileContent{
		{Path: "a.js", Content: "eval(x)\n"},
		{Path: "b.js", Content: "const ok = 1;\n"},
	}, cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if set.Passed {
		t.Fatal("one critical violation must fail a zero-critical threshold")
	}
	if set.Summary.SeverityCounts["critical"] != 1 {
		t.Fatalf("unexpected critical count: %d", set.Summary.SeverityCounts["critical"])
	}
	if set.Summary.FilesScanned != 2 {
		t.Fatalf("unexpected file count: %d", set.Summary.FilesScanned)
	}
}

func TestScanFileSetPassesCleanTree(t *testing.T) {
	o := testOrchestrator(t)
	cfg := enabledConfig(o, model.Thresholds{})

	set, err := o.ScanFileSet(context.Background(), []FileContent{
		{Path: "a.js", Content: "const a = 1;\n"},
		{Path: "b.js", Content: "const b = 2;\n"},
	}, cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !set.Passed {
		t.Fatalf("clean tree should pass: %+v", set.Summary)
	}
}

func TestScanFileSetRejectsDisabledConfig(t *testing.T) {
	o := testOrchestrator(t)
	cfg := o.CreateConfig(model.ScanConfig{Name: "off", Enabled: false})
	if _, err := o.ScanFileSet(context.Background(), nil, cfg.ID); !errors.Is(err, ErrConfigDisabled) {
		t.Fatalf("expected ErrConfigDisabled, got %v", err)
	}
	if _, err := o.ScanFileSet(context.Background(), nil, "nope"); !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected ErrConfigNotFound, got %v", err)
	}
}

func TestRunJobLifecycle(t *testing.T) {
	o := testOrchestrator(t)
	cfg := enabledConfig(o, model.Thresholds{Critical: 10, High: 50, Medium: 100})

	jobID, err := o.RunJob(context.Background(), cfg.ID, model.TriggerManual, []FileContent{
		{Path: "a.js", Content: "eval(x)\n"},
	})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := o.Job(jobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == model.JobCompleted {
			if job.StartedAt == nil || job.EndedAt == nil {
				t.Fatal("completed job missing timestamps")
			}
			if job.Result.TotalViolations != 1 {
				t.Fatalf("unexpected violation total: %d", job.Result.TotalViolations)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in status %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type panickingSink struct{}

func (panickingSink) Record(model.SecurityEvent) (string, error) {
	panic("audit sink blew up")
}

func TestRunJobMarksFailedOnPanic(t *testing.T) {
	catalog := rules.NewCatalog(nil, nil)
	if _, errs := catalog.LoadBuiltin(); len(errs) != 0 {
		t.Fatalf("builtin load: %v", errs)
	}
	sc := scanner.New(catalog, nil, nil, nil)
	o := New(sc, nil, panickingSink{}, nil)
	cfg := enabledConfig(o, model.Thresholds{})

	jobID, err := o.RunJob(context.Background(), cfg.ID, model.TriggerManual, []FileContent{
		{Path: "a.js", Content: "const a = 1;\n"},
	})
	if err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := o.Job(jobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == model.JobFailed {
			if job.Error == "" {
				t.Fatal("failed job missing error message")
			}
			if job.EndedAt == nil {
				t.Fatal("failed job missing end timestamp")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in status %s", job.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := o.Cancel(jobID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("failed job must not be cancellable, got %v", err)
	}
}

func TestRunJobRequiresEnabledConfig(t *testing.T) {
	o := testOrchestrator(t)
	cfg := o.CreateConfig(model.ScanConfig{Name: "off", Enabled: false})
	if _, err := o.RunJob(context.Background(), cfg.ID, model.TriggerManual, nil); !errors.Is(err, ErrConfigDisabled) {
		t.Fatalf("expected ErrConfigDisabled, got %v", err)
	}
}

func TestCancelRetainsPartialResults(t *testing.T) {
	o := testOrchestrator(t)
	o.Workers = 1
	cfg := enabledConfig(o, model.Thresholds{Critical: 100, High: 100, Medium: 100})

	// Big enough that the batch takes real time under one worker, so the
	// cancel lands mid-run.
	body := strings.Repeat("const x = compute(1, 2, 3);\n", 4000)
	files := make([]FileContent, 200)
	for i := range files {
		files[i] = FileContent{Path: fmt.Sprintf("f%03d.js", i), Content: body}
	}

	jobID, err := o.RunJob(context.Background(), cfg.ID, model.TriggerAPI, files)
	if err != nil {
		t.Fatal(err)
	}
	if err := o.Cancel(jobID); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		job, err := o.Job(jobID)
		if err != nil {
			t.Fatal(err)
		}
		if job.Status == model.JobCancelled {
			if job.Result.FilesScanned >= len(files) {
				t.Fatalf("expected partial progress, scanned %d", job.Result.FilesScanned)
			}
			break
		}
		if job.Status == model.JobCompleted {
			// Cancellation raced completion; acceptable but nothing to assert.
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in status %s", job.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := o.Cancel(jobID); !errors.Is(err, ErrNotCancellable) {
		t.Fatalf("terminal job must not be cancellable, got %v", err)
	}
}

func TestScanChangedFilesSkipsDeletedAndUnchanged(t *testing.T) {
	o := testOrchestrator(t)
	cfg := enabledConfig(o, model.Thresholds{Critical: 0, High: 0, Medium: 10})

	res, err := o.ScanChangedFiles(context.Background(), []FileChange{
		{Path: "gone.js", Status: "deleted"},
		{Path: "same.js", Content: "eval(x)\n", Status: "unchanged"},
		{Path: "new.js", Content: "eval(x)\n", Status: "added"},
		{Path: "mod.js", Content: "element.innerHTML = v\n", Status: "modified"},
	}, cfg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Passed {
		t.Fatal("critical violation in added file must block")
	}
	if len(res.BlockedFiles) != 1 || res.BlockedFiles[0] != "new.js" {
		t.Fatalf("unexpected blocked files: %v", res.BlockedFiles)
	}
	if len(res.Warnings) != 1 {
		t.Fatalf("high-severity file should warn, got %v", res.Warnings)
	}
}

func TestFilterFilesExcludeWins(t *testing.T) {
	files := []FileContent{
		{Path: "src/app.js"},
		{Path: "src/vendor/lib.js"},
		{Path: "docs/readme.md"},
	}

	got := FilterFiles(files, []string{"src/**"}, []string{"src/vendor/**"})
	if len(got) != 1 || got[0].Path != "src/app.js" {
		t.Fatalf("unexpected selection: %+v", got)
	}

	all := FilterFiles(files, nil, nil)
	if len(all) != 3 {
		t.Fatalf("empty include should select everything, got %d", len(all))
	}
}

func TestGate(t *testing.T) {
	base := model.ScanJobResult{SeverityCounts: map[string]int{"critical": 0, "high": 2, "medium": 5}}

	if !Gate(base, model.Thresholds{Critical: 0, High: 5, Medium: 20}) {
		t.Fatal("within thresholds should pass")
	}

	crit := base
	crit.SeverityCounts = map[string]int{"critical": 1, "high": 0, "medium": 0}
	if Gate(crit, model.Thresholds{Critical: 0, High: 5, Medium: 20}) {
		t.Fatal("critical count above threshold must fail")
	}

	risky := base
	risky.AverageRisk = 8.5
	if Gate(risky, model.Thresholds{Critical: 0, High: 5, Medium: 20, RiskScore: 7.0}) {
		t.Fatal("mean risk above threshold must fail")
	}
	if !Gate(risky, model.Thresholds{Critical: 0, High: 5, Medium: 20}) {
		t.Fatal("zero risk threshold disables the risk check")
	}
}

func TestSummarize(t *testing.T) {
	results := []model.CodeReviewResult{
		{RiskScore: 10, Violations: []model.Violation{{Severity: "critical"}, {Severity: "low"}}},
		{RiskScore: 2, Violations: []model.Violation{{Severity: "medium"}}},
	}
	s := Summarize(results)
	if s.FilesScanned != 2 || s.TotalViolations != 3 {
		t.Fatalf("unexpected rollup: %+v", s)
	}
	if s.AverageRisk != 6 {
		t.Fatalf("unexpected mean risk: %f", s.AverageRisk)
	}
	if s.SeverityCounts["critical"] != 1 || s.SeverityCounts["medium"] != 1 || s.SeverityCounts["low"] != 1 {
		t.Fatalf("unexpected severity counts: %v", s.SeverityCounts)
	}

	empty := Summarize(nil)
	if empty.AverageRisk != 0 || empty.FilesScanned != 0 {
		t.Fatalf("empty summary not zeroed: %+v", empty)
	}
}
