package model

import (
	"regexp"
	"time"
)

// Categories form a closed set; rules outside it are rejected at admission.
var Categories = []string{
	"input-validation",
	"output-encoding",
	"access-control",
	"cryptography",
	"error-handling",
	"logging",
	"data-protection",
	"session-management",
	"injection-prevention",
	"configuration",
}

func IsCategory(v string) bool {
	for _, c := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// SecurityRule is immutable once admitted to the catalog; updates replace
// the whole record under the same ID.
type SecurityRule struct {
	ID             string   `json:"id" yaml:"id"`
	Name           string   `json:"name" yaml:"name"`
	Category       string   `json:"category" yaml:"category"`
	Severity       string   `json:"severity" yaml:"severity"`
	Pattern        string   `json:"pattern" yaml:"pattern"`
	FileExtensions []string `json:"file_extensions" yaml:"file_extensions"`
	Enabled        bool     `json:"enabled" yaml:"enabled"`
	Remediation    string   `json:"remediation" yaml:"remediation"`
	References     []string `json:"references" yaml:"references"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`

	Regex *regexp.Regexp `json:"-" yaml:"-"`
}

// AppliesTo reports whether the rule covers the given file extension
// (lower-case, without the leading dot). An empty extension list never
// matches; rules must declare their surface explicitly.
func (r SecurityRule) AppliesTo(ext string) bool {
	for _, e := range r.FileExtensions {
		if e == ext || e == "*" {
			return true
		}
	}
	return false
}
