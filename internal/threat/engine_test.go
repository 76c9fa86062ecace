package threat

import (
	"testing"
	"time"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

func newTestEngine() *Engine {
	return NewEngine(Config{}, nil, nil, nil)
}

func TestRecordFillsDefaultsAndScores(t *testing.T) {
	e := newTestEngine()
	id, err := e.Record(model.SecurityEvent{Type: model.EventInjectionAttempt, SourceIP: "10.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("event id not assigned")
	}

	recent := e.Recent()
	if len(recent) != 1 {
		t.Fatalf("expected one recent event, got %d", len(recent))
	}
	ev := recent[0]
	if ev.Severity != "high" {
		t.Fatalf("injection attempts default to high severity, got %s", ev.Severity)
	}
	// high base 5.0 + injection type weight 3.0
	if ev.RiskScore != 8.0 {
		t.Fatalf("unexpected risk score: %f", ev.RiskScore)
	}
}

func TestScoreEventReputationAndClamp(t *testing.T) {
	ev := model.SecurityEvent{Type: model.EventDataExfiltration, Severity: "critical"}
	// critical base 7.0 + exfiltration weight 3.5 clamps at 10
	if got := scoreEvent(ev, false); got != 10.0 {
		t.Fatalf("unexpected score: %f", got)
	}

	mild := model.SecurityEvent{Type: model.EventLoginSuccess, Severity: "info"}
	if got := scoreEvent(mild, false); got != 0.5 {
		t.Fatalf("unexpected score: %f", got)
	}
	if got := scoreEvent(mild, true); got != 2.5 {
		t.Fatalf("reputation bonus not applied: %f", got)
	}
}

func TestDefaultSeverityIsTotal(t *testing.T) {
	types := []model.SecurityEventType{
		model.EventLoginSuccess, model.EventLoginFailure, model.EventPasswordChange,
		model.EventAccountLocked, model.EventSessionExpired, model.EventTokenIssued,
		model.EventTokenRevoked, model.EventPermissionDenied, model.EventScanStarted,
		model.EventScanCompleted, model.EventScanFailed, model.EventCriticalViolation,
		model.EventFileUpload, model.EventSuspiciousRequest, model.EventInjectionAttempt,
		model.EventXSSAttempt, model.EventBruteForce, model.EventRateLimitExceeded,
		model.EventAnomalousClient, model.EventDataExfiltration, model.EventConfigChange,
		model.EventPrivilegeEscalated,
	}
	for _, ty := range types {
		if _, ok := typeSeverities[ty]; !ok {
			t.Fatalf("event type %s missing an explicit severity", ty)
		}
	}
	if DefaultSeverity("made_up_type") != "medium" {
		t.Fatal("unknown types default to medium")
	}
}

func TestBruteForceRuleBlocksSource(t *testing.T) {
	e := newTestEngine()
	for i := 0; i < 5; i++ {
		if _, err := e.Record(model.SecurityEvent{Type: model.EventLoginFailure, SourceIP: "10.0.0.9"}); err != nil {
			t.Fatal(err)
		}
	}
	if !e.IsBlocked("10.0.0.9") {
		t.Fatal("five login failures should block the source")
	}
	if e.IsBlocked("10.0.0.8") {
		t.Fatal("unrelated source blocked")
	}
}

func TestBlockExpires(t *testing.T) {
	e := newTestEngine()
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	e.Block("1.2.3.4", time.Hour)
	if !e.IsBlocked("1.2.3.4") {
		t.Fatal("source should be blocked")
	}
	current = current.Add(2 * time.Hour)
	if e.IsBlocked("1.2.3.4") {
		t.Fatal("block should expire after its TTL")
	}

	if err := e.sweepExpired(nil); err != nil {
		t.Fatal(err)
	}
	e.mu.RLock()
	_, still := e.denied["1.2.3.4"]
	e.mu.RUnlock()
	if still {
		t.Fatal("sweep should drop expired deny entries")
	}
}

func TestExfiltrationQuarantines(t *testing.T) {
	e := newTestEngine()
	if _, err := e.Record(model.SecurityEvent{
		Type:     model.EventDataExfiltration,
		SourceIP: "10.1.1.1",
		Detail:   map[string]any{"resource": "export/dump.sql"},
	}); err != nil {
		t.Fatal(err)
	}
	if !e.IsQuarantined("export/dump.sql") {
		t.Fatal("exfiltration resource should be quarantined")
	}
}

func TestResolve(t *testing.T) {
	e := newTestEngine()
	id, _ := e.Record(model.SecurityEvent{Type: model.EventScanFailed})

	if !e.Resolve(id, "operator") {
		t.Fatal("expected resolution")
	}
	if e.Resolve("missing", "operator") {
		t.Fatal("unknown event resolved")
	}
	ev := e.Recent()[0]
	if !ev.Resolved || ev.ResolvedBy != "operator" || ev.ResolvedAt == nil {
		t.Fatalf("resolution not recorded: %+v", ev)
	}
}

func TestRecentHonorsHistoryWindow(t *testing.T) {
	e := NewEngine(Config{HistoryWindow: time.Hour}, nil, nil, nil)
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	e.Record(model.SecurityEvent{Type: model.EventLoginSuccess})
	current = current.Add(2 * time.Hour)
	e.Record(model.SecurityEvent{Type: model.EventLoginSuccess})

	recent := e.Recent()
	if len(recent) != 1 {
		t.Fatalf("expected only the in-window event, got %d", len(recent))
	}
}

func TestPruneRetention(t *testing.T) {
	e := NewEngine(Config{Retention: 24 * time.Hour}, nil, nil, nil)
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	e.Record(model.SecurityEvent{Type: model.EventLoginSuccess})
	current = current.Add(48 * time.Hour)
	e.Record(model.SecurityEvent{Type: model.EventLoginSuccess})

	if err := e.pruneRetention(nil); err != nil {
		t.Fatal(err)
	}
	e.mu.RLock()
	n := len(e.events)
	e.mu.RUnlock()
	if n != 1 {
		t.Fatalf("expected retention prune to one event, got %d", n)
	}
}

func TestEventsBetween(t *testing.T) {
	e := newTestEngine()
	current := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	e.Record(model.SecurityEvent{Type: model.EventLoginSuccess})
	current = current.Add(time.Hour)
	e.Record(model.SecurityEvent{Type: model.EventLoginFailure})
	current = current.Add(time.Hour)
	e.Record(model.SecurityEvent{Type: model.EventLoginSuccess})

	from := time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
	to := time.Date(2026, 1, 1, 1, 30, 0, 0, time.UTC)
	got := e.EventsBetween(from, to)
	if len(got) != 1 || got[0].Type != model.EventLoginFailure {
		t.Fatalf("unexpected window result: %+v", got)
	}
}

func TestAddRuleReplaces(t *testing.T) {
	e := newTestEngine()
	before := len(e.Rules())

	e.AddRule(model.ThreatRule{ID: "tr_custom", Name: "Custom", Enabled: true})
	if len(e.Rules()) != before+1 {
		t.Fatal("rule not added")
	}
	e.AddRule(model.ThreatRule{ID: "tr_custom", Name: "Replaced", Enabled: false})
	if len(e.Rules()) != before+1 {
		t.Fatal("replacement must not grow the set")
	}
}

func TestEvaluateThreatRulesReplay(t *testing.T) {
	e := newTestEngine()
	now := time.Now().UTC()
	history := make([]model.SecurityEvent, 0, 3)
	for i := 0; i < 3; i++ {
		history = append(history, model.SecurityEvent{
			Type:      model.EventInjectionAttempt,
			SourceIP:  "5.5.5.5",
			Timestamp: now.Add(-time.Duration(i) * time.Minute),
		})
	}
	matched := e.EvaluateThreatRules(model.SecurityEvent{
		Type:      model.EventInjectionAttempt,
		SourceIP:  "5.5.5.5",
		Timestamp: now,
	}, history)

	found := false
	for _, r := range matched {
		if r.ID == "tr_injection_burst" {
			found = true
		}
	}
	if !found {
		t.Fatalf("injection burst rule should match, got %+v", matched)
	}
}

func TestAlertDedup(t *testing.T) {
	e := newTestEngine()
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return current }

	rule := model.ThreatRule{ID: "tr_x", Name: "x", Severity: "high"}
	ev := model.SecurityEvent{ID: "evt_1", SourceIP: "9.9.9.9"}

	e.alert(rule, ev)
	e.alert(rule, ev)
	e.mu.RLock()
	first := e.alerted["tr_x|9.9.9.9"]
	e.mu.RUnlock()
	if !first.Equal(current) {
		t.Fatal("first alert not registered")
	}

	// Inside the cooldown the timestamp must not move.
	current = current.Add(5 * time.Minute)
	e.alert(rule, ev)
	e.mu.RLock()
	second := e.alerted["tr_x|9.9.9.9"]
	e.mu.RUnlock()
	if !second.Equal(first) {
		t.Fatal("alert re-fired inside the cooldown window")
	}

	// After the cooldown it fires again.
	current = first.Add(DefaultAlertCooldown + time.Minute)
	e.alert(rule, ev)
	e.mu.RLock()
	third := e.alerted["tr_x|9.9.9.9"]
	e.mu.RUnlock()
	if !third.Equal(current) {
		t.Fatal("alert did not re-fire after the cooldown")
	}
}
