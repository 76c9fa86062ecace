// Package threat records security-relevant events, risk-scores them,
// evaluates standing threat rules over a rolling history window, and runs
// the matched rule's response action.
package threat

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/cache"
	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/notify"
	"github.com/wilson323/zk-agent-sub004/internal/schedule"
)

const (
	// DefaultHistoryWindow bounds the event history handed to threat-rule
	// predicates.
	DefaultHistoryWindow = 24 * time.Hour

	// DefaultRetention bounds the event log; older events are pruned by the
	// background sweep.
	DefaultRetention = 30 * 24 * time.Hour

	// DefaultBlockTTL is how long a blocked source stays in the deny set.
	DefaultBlockTTL = time.Hour

	// DefaultAlertCooldown suppresses duplicate alerts per rule+source.
	DefaultAlertCooldown = 15 * time.Minute
)

type Config struct {
	HistoryWindow time.Duration
	Retention     time.Duration
	BlockTTL      time.Duration
	AlertCooldown time.Duration
	AlertChannels []string
}

func (c *Config) fill() {
	if c.HistoryWindow <= 0 {
		c.HistoryWindow = DefaultHistoryWindow
	}
	if c.Retention <= 0 {
		c.Retention = DefaultRetention
	}
	if c.BlockTTL <= 0 {
		c.BlockTTL = DefaultBlockTTL
	}
	if c.AlertCooldown <= 0 {
		c.AlertCooldown = DefaultAlertCooldown
	}
}

// Engine owns the event log and all response state. All stores are
// concurrency safe; predicate evaluation reads a copy-on-read snapshot of
// recent history so concurrent recording never races a running predicate.
type Engine struct {
	cfg      Config
	logger   *zap.Logger
	notifier *notify.Dispatcher
	store    cache.Store
	metrics  *metrics
	runner   *schedule.Runner

	mu          sync.RWMutex
	events      []model.SecurityEvent
	rules       map[string]model.ThreatRule
	denied      map[string]time.Time
	quarantined map[string]time.Time
	alerted     map[string]time.Time
	reputation  map[string]struct{}

	loginFailures *slidingCounter
	requestRate   *slidingCounter

	now func() time.Time
}

func NewEngine(cfg Config, notifier *notify.Dispatcher, store cache.Store, logger *zap.Logger) *Engine {
	cfg.fill()
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:           cfg,
		logger:        logger,
		notifier:      notifier,
		store:         store,
		metrics:       newMetrics(),
		events:        make([]model.SecurityEvent, 0),
		rules:         map[string]model.ThreatRule{},
		denied:        map[string]time.Time{},
		quarantined:   map[string]time.Time{},
		alerted:       map[string]time.Time{},
		reputation:    map[string]struct{}{},
		loginFailures: newSlidingCounter(bruteForceWindow),
		requestRate:   newSlidingCounter(rateWindow),
		now:           func() time.Time { return time.Now().UTC() },
	}
	e.runner = schedule.NewRunner(logger,
		schedule.Func{RoutineName: "threat-metrics", TickInterval: time.Hour, Fn: e.recomputeMetrics},
		schedule.Func{RoutineName: "threat-sweep", TickInterval: 5 * time.Minute, Fn: e.sweepExpired},
		schedule.Func{RoutineName: "threat-retention", TickInterval: time.Hour, Fn: e.pruneRetention},
	)
	for _, r := range DefaultThreatRules() {
		e.rules[r.ID] = r
	}
	return e
}

// Start launches the background maintenance routines. They degrade to
// logging on failure and never block request-path operations.
func (e *Engine) Start(ctx context.Context) { e.runner.Start(ctx) }

func (e *Engine) Stop() { e.runner.Stop() }

// Record appends an event, scores it, and evaluates threat rules against it
// plus the recent history window. Recording never fails the calling
// operation; the returned error is reserved for invalid input only.
func (e *Engine) Record(event model.SecurityEvent) (string, error) {
	now := e.now()
	if event.ID == "" {
		event.ID = model.NewIDAt("evt", now)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if event.Severity == "" {
		event.Severity = DefaultSeverity(event.Type)
	}

	e.mu.Lock()
	_, knownBad := e.reputation[event.SourceIP]
	event.RiskScore = scoreEvent(event, knownBad)
	e.events = append(e.events, event)
	history := e.recentLocked(event.Timestamp)
	rules := make([]model.ThreatRule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Enabled {
			rules = append(rules, r)
		}
	}
	e.mu.Unlock()

	e.metrics.observeEvent(event)
	e.evaluate(event, history, rules)
	return event.ID, nil
}

// EvaluateThreatRules runs every enabled rule against an event and an
// explicit history slice. Exposed for replay-style evaluation.
func (e *Engine) EvaluateThreatRules(event model.SecurityEvent, history []model.SecurityEvent) []model.ThreatRule {
	e.mu.RLock()
	rules := make([]model.ThreatRule, 0, len(e.rules))
	for _, r := range e.rules {
		if r.Enabled {
			rules = append(rules, r)
		}
	}
	e.mu.RUnlock()
	return e.evaluate(event, history, rules)
}

func (e *Engine) evaluate(event model.SecurityEvent, history []model.SecurityEvent, rules []model.ThreatRule) []model.ThreatRule {
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
	var matched []model.ThreatRule
	for _, r := range rules {
		if r.EventType != "" && r.EventType != event.Type {
			continue
		}
		if r.Predicate != nil && !r.Predicate(event, history) {
			continue
		}
		matched = append(matched, r)
		e.respond(r, event)
	}
	return matched
}

func (e *Engine) respond(rule model.ThreatRule, event model.SecurityEvent) {
	switch rule.Action {
	case model.ActionLog:
		// The event is already in the log; nothing further.
		e.logger.Info("threat rule matched",
			zap.String("rule", rule.ID),
			zap.String("event", event.ID))
	case model.ActionAlert:
		e.alert(rule, event)
	case model.ActionBlock:
		e.Block(event.SourceIP, e.cfg.BlockTTL)
		e.logger.Warn("source blocked by threat rule",
			zap.String("rule", rule.ID),
			zap.String("source", event.SourceIP))
	case model.ActionQuarantine:
		resource := event.SourceIP
		if v, ok := event.Detail["resource"].(string); ok && v != "" {
			resource = v
		}
		e.Quarantine(resource)
		e.logger.Warn("resource quarantined by threat rule",
			zap.String("rule", rule.ID),
			zap.String("resource", resource))
	}
}

// alert deduplicates per rule+source inside the cooldown window before
// dispatching.
func (e *Engine) alert(rule model.ThreatRule, event model.SecurityEvent) {
	key := rule.ID + "|" + event.SourceIP
	now := e.now()

	e.mu.Lock()
	last, seen := e.alerted[key]
	if seen && now.Sub(last) < e.cfg.AlertCooldown {
		e.mu.Unlock()
		return
	}
	e.alerted[key] = now
	e.mu.Unlock()

	if e.notifier == nil {
		return
	}
	e.notifier.DispatchAsync(e.cfg.AlertChannels, notify.Message{
		Title:    "Threat detected: " + rule.Name,
		Body:     "rule " + rule.ID + " matched event " + event.ID,
		Severity: rule.Severity,
		Fields: map[string]string{
			"event_type": string(event.Type),
			"source_ip":  event.SourceIP,
		},
	})
}

// Block adds a source identifier to the temporary deny set.
func (e *Engine) Block(source string, ttl time.Duration) {
	if source == "" {
		return
	}
	if ttl <= 0 {
		ttl = e.cfg.BlockTTL
	}
	e.mu.Lock()
	e.denied[source] = e.now().Add(ttl)
	e.reputation[source] = struct{}{}
	e.mu.Unlock()
}

// IsBlocked reports whether the source is currently in the deny set.
func (e *Engine) IsBlocked(source string) bool {
	e.mu.RLock()
	until, ok := e.denied[source]
	e.mu.RUnlock()
	return ok && e.now().Before(until)
}

// Quarantine marks a resource unsafe for further processing.
func (e *Engine) Quarantine(resource string) {
	if resource == "" {
		return
	}
	e.mu.Lock()
	e.quarantined[resource] = e.now()
	e.mu.Unlock()
}

func (e *Engine) IsQuarantined(resource string) bool {
	e.mu.RLock()
	_, ok := e.quarantined[resource]
	e.mu.RUnlock()
	return ok
}

// Resolve marks an event resolved. Aside from this, events never mutate.
func (e *Engine) Resolve(eventID string, by string) bool {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.events {
		if e.events[i].ID != eventID {
			continue
		}
		e.events[i].Resolved = true
		e.events[i].ResolvedBy = by
		e.events[i].ResolvedAt = &now
		return true
	}
	return false
}

// Recent returns a copy of the events inside the history window, oldest
// first.
func (e *Engine) Recent() []model.SecurityEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.recentLocked(e.now())
}

func (e *Engine) recentLocked(ref time.Time) []model.SecurityEvent {
	cutoff := ref.Add(-e.cfg.HistoryWindow)
	out := make([]model.SecurityEvent, 0)
	for _, ev := range e.events {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// EventsBetween returns a snapshot of events in [from, to].
func (e *Engine) EventsBetween(from, to time.Time) []model.SecurityEvent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]model.SecurityEvent, 0)
	for _, ev := range e.events {
		if ev.Timestamp.Before(from) || ev.Timestamp.After(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// AddRule registers or replaces a threat rule.
func (e *Engine) AddRule(r model.ThreatRule) {
	if r.ID == "" {
		r.ID = model.NewID("threat")
	}
	e.mu.Lock()
	e.rules[r.ID] = r
	e.mu.Unlock()
}

func (e *Engine) Rules() []model.ThreatRule {
	e.mu.RLock()
	out := make([]model.ThreatRule, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r)
	}
	e.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (e *Engine) sweepExpired(context.Context) error {
	now := e.now()
	e.mu.Lock()
	for source, until := range e.denied {
		if now.After(until) {
			delete(e.denied, source)
		}
	}
	for key, last := range e.alerted {
		if now.Sub(last) > e.cfg.AlertCooldown {
			delete(e.alerted, key)
		}
	}
	e.mu.Unlock()
	return nil
}

func (e *Engine) pruneRetention(ctx context.Context) error {
	cutoff := e.now().Add(-e.cfg.Retention)
	e.mu.Lock()
	kept := e.events[:0]
	pruned := 0
	for _, ev := range e.events {
		if ev.Timestamp.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, ev)
	}
	e.events = kept
	e.mu.Unlock()
	if pruned > 0 {
		e.logger.Info("event log pruned", zap.Int("pruned", pruned))
	}
	return nil
}

func (e *Engine) recomputeMetrics(ctx context.Context) error {
	e.mu.RLock()
	events := make([]model.SecurityEvent, len(e.events))
	copy(events, e.events)
	blocked := len(e.denied)
	e.mu.RUnlock()

	e.metrics.recompute(events, blocked)

	// Persist the hourly summary to the fast-lookup cache; loss here is
	// acceptable, the in-memory log stays authoritative.
	if e.store != nil {
		summary := e.metrics.summary(events, blocked)
		if payload, err := json.Marshal(summary); err == nil {
			if err := e.store.Set(ctx, "threat:metrics:latest", payload, 2*time.Hour, "threat-metrics"); err != nil {
				e.logger.Warn("metrics cache write failed", zap.Error(err))
			}
		}
	}
	return nil
}
