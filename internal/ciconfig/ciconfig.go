// Package ciconfig emits ready-to-commit CI pipeline definitions that run
// the scan entrypoint and upload the report as a build artifact. The
// generated job exits non-zero exactly when the scan fails gating.
package ciconfig

import (
	"fmt"
	"strings"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

// Platform identifiers accepted by Generate.
const (
	PlatformGitHubActions = "github-actions"
	PlatformShell         = "shell"
)

// Artifact is one generated pipeline file.
type Artifact struct {
	Filename string
	Content  string
}

// Generate builds the pipeline definition for a platform. Unknown platforms
// are an error listing the supported set.
func Generate(cfg model.ScanConfig, platform string) (Artifact, error) {
	switch strings.ToLower(platform) {
	case PlatformGitHubActions:
		return githubActions(cfg), nil
	case PlatformShell, "generic":
		return shellScript(cfg), nil
	default:
		return Artifact{}, fmt.Errorf("unsupported CI platform %q (supported: %s, %s)", platform, PlatformGitHubActions, PlatformShell)
	}
}

func githubActions(cfg model.ScanConfig) Artifact {
	content := fmt.Sprintf(`name: Security Scan (%s)

on:
  pull_request:
  push:
    branches: [main]

jobs:
  security-scan:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
        with:
          fetch-depth: 0

      - name: Set up Go
        uses: actions/setup-go@v5
        with:
          go-version: stable

      - name: Install codesentinel
        run: go install github.com/wilson323/zk-agent-sub004/cmd/codesentinel@latest

      - name: Run security scan
        run: |
          codesentinel scan . \
            --config-id %s \
            --format json \
            --output codesentinel-report.json

      - name: Upload scan report
        if: always()
        uses: actions/upload-artifact@v4
        with:
          name: codesentinel-report
          path: codesentinel-report.json
`, cfg.Name, cfg.ID)
	return Artifact{Filename: ".github/workflows/codesentinel.yml", Content: content}
}

func shellScript(cfg model.ScanConfig) Artifact {
	content := fmt.Sprintf(`#!/bin/sh
# Security scan gate for %s.
# Exits non-zero exactly when the scan fails threshold gating.
set -eu

REPORT="${REPORT:-codesentinel-report.json}"

codesentinel scan "${SCAN_TARGET:-.}" \
  --config-id %s \
  --format json \
  --output "$REPORT"

echo "scan passed; report written to $REPORT"
`, cfg.Name, cfg.ID)
	return Artifact{Filename: "codesentinel-scan.sh", Content: content}
}
