package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestScanGatingReturnsExitError(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "handler.js")
	if err := os.WriteFile(file, []byte("const out = eval(userInput);\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"scan", tmp})
	err := root.Execute()
	if err == nil {
		t.Fatal("expected exit error")
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError, got %T", err)
	}
	if exitErr.Code != 2 {
		t.Fatalf("expected exit code 2, got %d", exitErr.Code)
	}
}

func TestScanCleanTreePasses(t *testing.T) {
	tmp := t.TempDir()
	file := filepath.Join(tmp, "util.js")
	if err := os.WriteFile(file, []byte("export function add(a, b) { return a + b; }\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"scan", tmp})
	if err := root.Execute(); err != nil {
		t.Fatalf("clean tree should pass: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("PASSED")) {
		t.Fatalf("expected gate PASSED in output:\n%s", out.String())
	}
}

func TestScanWritesJSONReport(t *testing.T) {
	tmp := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmp, "handler.js"), []byte("const out = eval(userInput);\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	reportPath := filepath.Join(tmp, "report.json")

	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	// One critical in one file gives a mean risk of 10, so the mean-risk
	// gate must be widened along with the critical count.
	root.SetArgs([]string{"scan", tmp, "--format", "json", "--output", reportPath, "--max-critical", "1", "--max-risk", "10"})
	if err := root.Execute(); err != nil {
		t.Fatalf("scan within thresholds should pass: %v", err)
	}

	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Passed  bool `json:"passed"`
		Summary struct {
			TotalViolations int `json:"total_violations"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if !doc.Passed || doc.Summary.TotalViolations != 1 {
		t.Fatalf("unexpected report: %+v", doc)
	}
}
