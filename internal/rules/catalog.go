package rules

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

var ErrNotFound = errors.New("rule not found")

// AdmitFunc is the admission gate run before a rule enters the catalog.
// A non-nil error blocks admission.
type AdmitFunc func(model.SecurityRule) error

// Catalog holds admitted rules. Records are immutable at rest: Replace swaps
// the whole record, nothing mutates in place. Reads take a consistent copy.
type Catalog struct {
	mu     sync.RWMutex
	rules  map[string]model.SecurityRule
	admit  AdmitFunc
	logger *zap.Logger
}

func NewCatalog(admit AdmitFunc, logger *zap.Logger) *Catalog {
	if admit == nil {
		admit = func(model.SecurityRule) error { return nil }
	}
	return &Catalog{
		rules:  map[string]model.SecurityRule{},
		admit:  admit,
		logger: logger,
	}
}

// Admit validates, compiles, and stores a rule. An existing rule under the
// same ID is replaced, never mutated.
func (c *Catalog) Admit(rule model.SecurityRule) error {
	if err := c.admit(rule); err != nil {
		return fmt.Errorf("admit rule %s: %w", rule.ID, err)
	}
	re, err := regexp.Compile(rule.Pattern)
	if err != nil {
		return fmt.Errorf("admit rule %s: compile pattern: %w", rule.ID, err)
	}
	rule.Regex = re

	c.mu.Lock()
	c.rules[rule.ID] = rule
	c.mu.Unlock()
	return nil
}

// LoadPath admits every rule spec found under path. Individual rule
// failures are collected; valid rules still land.
func (c *Catalog) LoadPath(path string) (int, []error) {
	specs, err := LoadSpecs(path)
	if err != nil {
		return 0, []error{err}
	}
	var errs []error
	admitted := 0
	for _, s := range specs {
		if err := c.Admit(s.Rule()); err != nil {
			errs = append(errs, err)
			continue
		}
		admitted++
	}
	if c.logger != nil {
		c.logger.Info("rules loaded",
			zap.String("path", path),
			zap.Int("admitted", admitted),
			zap.Int("rejected", len(errs)))
	}
	return admitted, errs
}

func (c *Catalog) Get(id string) (model.SecurityRule, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rules[id]
	return r, ok
}

func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.rules[id]; !ok {
		return false
	}
	delete(c.rules, id)
	return true
}

// All returns every rule sorted by ID, including disabled ones.
func (c *Catalog) All() []model.SecurityRule {
	c.mu.RLock()
	out := make([]model.SecurityRule, 0, len(c.rules))
	for _, r := range c.rules {
		out = append(out, r)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Enabled returns the active rule set sorted by ID.
func (c *Catalog) Enabled() []model.SecurityRule {
	all := c.All()
	out := all[:0:0]
	for _, r := range all {
		if r.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// ForExtension selects enabled rules applicable to a file extension
// (lower-case, no dot).
func (c *Catalog) ForExtension(ext string) []model.SecurityRule {
	out := make([]model.SecurityRule, 0)
	for _, r := range c.Enabled() {
		if r.AppliesTo(ext) {
			out = append(out, r)
		}
	}
	return out
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rules)
}
