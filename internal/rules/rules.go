package rules

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

type File struct {
	Rules []Spec `yaml:"rules"`
}

// Spec is the on-disk rule shape. It carries the rule's own test cases,
// which the admission gate runs but does not persist on the catalog record.
type Spec struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Category       string   `yaml:"category"`
	Severity       string   `yaml:"severity"`
	Pattern        string   `yaml:"pattern"`
	FileExtensions []string `yaml:"file_extensions"`
	Enabled        *bool    `yaml:"enabled"`
	Remediation    string   `yaml:"remediation"`
	References     []string `yaml:"references"`
	Tests          Tests    `yaml:"tests"`
}

type Tests struct {
	Positive []TestCase `yaml:"positive"`
	Negative []TestCase `yaml:"negative"`
}

type TestCase struct {
	Input   string `yaml:"input"`
	Matches int    `yaml:"matches,omitempty"`
}

// Rule converts the spec into a catalog record. The pattern is left
// uncompiled; compilation happens inside the admission gate.
func (s Spec) Rule() model.SecurityRule {
	enabled := true
	if s.Enabled != nil {
		enabled = *s.Enabled
	}
	exts := make([]string, 0, len(s.FileExtensions))
	for _, e := range s.FileExtensions {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(e, ".")))
	}
	return model.SecurityRule{
		ID:             s.ID,
		Name:           s.Name,
		Category:       s.Category,
		Severity:       s.Severity,
		Pattern:        s.Pattern,
		FileExtensions: exts,
		Enabled:        enabled,
		Remediation:    s.Remediation,
		References:     s.References,
		CreatedAt:      time.Now().UTC(),
	}
}

// LoadSpecs reads every YAML rule file under path (a file or a directory)
// in lexical order. Later files win on duplicate IDs.
func LoadSpecs(path string) ([]Spec, error) {
	if path == "" {
		return nil, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat rules path: %w", err)
	}

	var files []string
	if info.IsDir() {
		err = filepath.WalkDir(path, func(p string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(d.Name()))
			if ext == ".yml" || ext == ".yaml" {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	} else {
		files = []string{path}
	}

	sort.Strings(files)

	byID := map[string]Spec{}
	order := make([]string, 0)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read rules file %s: %w", f, err)
		}
		var rf File
		if err := yaml.Unmarshal(data, &rf); err != nil {
			return nil, fmt.Errorf("parse rules file %s: %w", f, err)
		}
		for _, s := range rf.Rules {
			if _, seen := byID[s.ID]; !seen {
				order = append(order, s.ID)
			}
			byID[s.ID] = s
		}
	}

	out := make([]Spec, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
