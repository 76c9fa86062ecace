// Package report renders scan results for humans, machines, and CI code
// scanning UIs, and builds the compliance and security summary documents.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/wilson323/zk-agent-sub004/internal/orchestrator"
)

// Write renders a scan set result in the requested format.
func Write(set orchestrator.SetResult, format string, w io.Writer) error {
	switch strings.ToLower(format) {
	case "human":
		writeHuman(set, w)
		return nil
	case "json":
		return writeJSON(set, w)
	case "sarif":
		return writeSARIF(set, w)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func writeHuman(set orchestrator.SetResult, w io.Writer) {
	fmt.Fprintln(w, "codesentinel scan result")
	fmt.Fprintln(w, "------------------------")
	for _, r := range set.Results {
		for _, v := range r.Violations {
			fmt.Fprintf(w, "%s %s\n", severityBadge(v.Severity), strings.ToUpper(v.RuleName))
			fmt.Fprintf(w, "  File:       %s:%d:%d\n", r.FilePath, v.Line, v.Column)
			fmt.Fprintf(w, "  Rule:       %s (%s)\n", v.RuleID, v.Category)
			fmt.Fprintf(w, "  Confidence: %s\n", strings.ToUpper(v.Confidence))
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "Summary: %d violations across %d files\n", set.Summary.TotalViolations, set.Summary.FilesScanned)
	fmt.Fprintf(w, "  Severity: critical=%d high=%d medium=%d low=%d info=%d\n",
		set.Summary.SeverityCounts["critical"],
		set.Summary.SeverityCounts["high"],
		set.Summary.SeverityCounts["medium"],
		set.Summary.SeverityCounts["low"],
		set.Summary.SeverityCounts["info"],
	)
	fmt.Fprintf(w, "  Mean risk: %.1f\n", set.Summary.AverageRisk)
	if set.Passed {
		fmt.Fprintln(w, "  Gate:      PASSED")
	} else {
		fmt.Fprintln(w, "  Gate:      FAILED")
	}
}

func writeJSON(set orchestrator.SetResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(set)
}

func writeSARIF(set orchestrator.SetResult, w io.Writer) error {
	type artifactLocation struct {
		URI string `json:"uri"`
	}
	type region struct {
		StartLine   int `json:"startLine"`
		StartColumn int `json:"startColumn,omitempty"`
	}
	type physicalLocation struct {
		ArtifactLocation artifactLocation `json:"artifactLocation"`
		Region           region           `json:"region"`
	}
	type location struct {
		PhysicalLocation physicalLocation `json:"physicalLocation"`
	}
	type result struct {
		RuleID    string     `json:"ruleId"`
		Level     string     `json:"level"`
		Message   any        `json:"message"`
		Locations []location `json:"locations"`
	}

	results := make([]result, 0)
	for _, r := range set.Results {
		for _, v := range r.Violations {
			results = append(results, result{
				RuleID: v.RuleID,
				Level:  sarifLevel(v.Severity),
				Message: map[string]string{
					"text": fmt.Sprintf("%s: %s", v.RuleName, strings.TrimSpace(v.LineText)),
				},
				Locations: []location{{
					PhysicalLocation: physicalLocation{
						ArtifactLocation: artifactLocation{URI: r.FilePath},
						Region:           region{StartLine: v.Line, StartColumn: v.Column},
					},
				}},
			})
		}
	}

	sarif := map[string]any{
		"$schema": "https://json.schemastore.org/sarif-2.1.0.json",
		"version": "2.1.0",
		"runs": []any{
			map[string]any{
				"tool": map[string]any{
					"driver": map[string]any{
						"name": "codesentinel",
					},
				},
				"results": results,
			},
		},
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(sarif)
}

func severityBadge(level string) string {
	switch level {
	case "critical":
		return "[CRITICAL]"
	case "high":
		return "[HIGH]"
	case "medium":
		return "[MEDIUM]"
	case "info":
		return "[INFO]"
	default:
		return "[LOW]"
	}
}

func sarifLevel(level string) string {
	switch level {
	case "critical", "high":
		return "error"
	case "medium":
		return "warning"
	default:
		return "note"
	}
}
