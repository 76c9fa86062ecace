package threat

import (
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/severity"
)

// BlockThreshold is the summed heuristic score at which a request is
// denied outright.
const BlockThreshold = 7.0

// Heuristic contributions. Independent checks sum; the request is blocked
// at BlockThreshold.
const (
	scoreInjection   = 4.0
	scoreXSS         = 3.5
	scoreBruteForce  = 3.0
	scoreAnomalousUA = 2.0
	scoreRateLimit   = 2.0

	bruteForceWindow   = 10 * time.Minute
	bruteForceAttempts = 5

	rateWindow      = time.Minute
	rateMaxRequests = 120
)

// RequestContext is the front-line view of one inbound request.
type RequestContext struct {
	SourceIP  string
	UserAgent string
	UserID    string
	Path      string
	Query     string
	Body      string
}

type DetectResult struct {
	Blocked   bool     `json:"blocked"`
	Threats   []string `json:"threats"`
	RiskScore float64  `json:"risk_score"`
}

var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunion\s+select\b`),
	regexp.MustCompile(`(?i)\b(or|and)\s+\d+\s*=\s*\d+`),
	regexp.MustCompile(`(?i);\s*(drop|delete|truncate)\s+table\b`),
	regexp.MustCompile(`(?i)\bsleep\s*\(\s*\d+\s*\)`),
	regexp.MustCompile("(?i)['\"]\\s*(or|and)\\s*['\"]?1['\"]?\\s*=\\s*['\"]?1"),
}

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script\b`),
	regexp.MustCompile(`(?i)\bjavascript\s*:`),
	regexp.MustCompile(`(?i)\bon(error|load|click|mouseover)\s*=`),
	regexp.MustCompile(`(?i)<iframe\b`),
}

var scannerAgents = []string{"sqlmap", "nikto", "nmap", "masscan", "dirbuster", "wpscan", "curl/7.0"}

// slidingCounter counts hits per key inside a rolling window.
type slidingCounter struct {
	mu     sync.Mutex
	window time.Duration
	hits   map[string][]time.Time
}

func newSlidingCounter(window time.Duration) *slidingCounter {
	return &slidingCounter{window: window, hits: map[string][]time.Time{}}
}

func (c *slidingCounter) add(key string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now.Add(-c.window)
	kept := c.hits[key][:0]
	for _, t := range c.hits[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	kept = append(kept, now)
	c.hits[key] = kept
	return len(kept)
}

// count reads the window without registering a hit.
func (c *slidingCounter) count(key string, now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := now.Add(-c.window)
	n := 0
	for _, t := range c.hits[key] {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}

// Detect is the synchronous pre-flight check for front-line request
// handling. It runs independent heuristics, sums their contributions, and
// records the suspicious activity it sees.
func (e *Engine) Detect(req RequestContext) DetectResult {
	now := e.now()
	res := DetectResult{Threats: []string{}}

	if e.IsBlocked(req.SourceIP) {
		res.Blocked = true
		res.Threats = append(res.Threats, "source_denied")
		res.RiskScore = severity.MaxRiskScore
		return res
	}

	payload := req.Path + " " + req.Query + " " + req.Body

	if matchAny(injectionPatterns, payload) {
		res.Threats = append(res.Threats, "injection")
		res.RiskScore += scoreInjection
		e.recordDetection(model.EventInjectionAttempt, req)
	}
	if matchAny(xssPatterns, payload) {
		res.Threats = append(res.Threats, "xss")
		res.RiskScore += scoreXSS
		e.recordDetection(model.EventXSSAttempt, req)
	}
	if failures := e.loginFailures.count(req.SourceIP, now); failures >= bruteForceAttempts {
		res.Threats = append(res.Threats, "brute_force")
		res.RiskScore += scoreBruteForce
		e.recordDetection(model.EventBruteForce, req)
	}
	if anomalousAgent(req.UserAgent) {
		res.Threats = append(res.Threats, "anomalous_client")
		res.RiskScore += scoreAnomalousUA
		e.recordDetection(model.EventAnomalousClient, req)
	}
	if e.requestRate.add(req.SourceIP, now) > rateMaxRequests {
		res.Threats = append(res.Threats, "rate_limit")
		res.RiskScore += scoreRateLimit
		e.recordDetection(model.EventRateLimitExceeded, req)
	}

	res.RiskScore = severity.Clamp(res.RiskScore)
	if res.RiskScore >= BlockThreshold {
		res.Blocked = true
		e.Block(req.SourceIP, e.cfg.BlockTTL)
	}
	return res
}

// RecordLoginFailure feeds the brute-force sliding counter and the event
// log in one call.
func (e *Engine) RecordLoginFailure(sourceIP, userID string) {
	e.loginFailures.add(sourceIP, e.now())
	_, _ = e.Record(model.SecurityEvent{
		Type:     model.EventLoginFailure,
		SourceIP: sourceIP,
		UserID:   userID,
	})
}

func (e *Engine) recordDetection(t model.SecurityEventType, req RequestContext) {
	_, err := e.Record(model.SecurityEvent{
		Type:      t,
		SourceIP:  req.SourceIP,
		UserAgent: req.UserAgent,
		UserID:    req.UserID,
		Detail:    map[string]any{"path": req.Path},
	})
	if err != nil {
		e.logger.Warn("detection event record failed")
	}
}

func matchAny(patterns []*regexp.Regexp, s string) bool {
	for _, p := range patterns {
		if p.MatchString(s) {
			return true
		}
	}
	return false
}

func anomalousAgent(ua string) bool {
	ua = strings.ToLower(strings.TrimSpace(ua))
	if ua == "" || len(ua) < 8 {
		return true
	}
	for _, bad := range scannerAgents {
		if strings.Contains(ua, bad) {
			return true
		}
	}
	return false
}
