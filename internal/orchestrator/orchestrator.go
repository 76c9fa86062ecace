// Package orchestrator owns named scan configurations, runs scan jobs over
// file sets with a bounded worker pool, and gates pass/fail against the
// owning configuration's thresholds.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/notify"
	"github.com/wilson323/zk-agent-sub004/internal/scanner"
	"github.com/wilson323/zk-agent-sub004/internal/schedule"
)

var (
	ErrConfigNotFound = errors.New("scan config not found")
	ErrConfigDisabled = errors.New("scan config disabled")
	ErrJobNotFound    = errors.New("scan job not found")
	ErrNotCancellable = errors.New("job is not running")
)

const (
	// DefaultWorkers bounds the scan worker pool.
	DefaultWorkers = 4

	// DefaultPerFileTimeout caps one file's scan so a pathological input
	// cannot stall the batch; a timeout becomes a scan-error violation.
	DefaultPerFileTimeout = 30 * time.Second
)

// FileContent is one file handed to the scanner.
type FileContent struct {
	Path    string
	Content string
}

// FileChange is the pre-merge gating input.
type FileChange struct {
	Path    string
	Content string
	Status  string // added | modified | deleted | unchanged
}

// SetResult is the outcome of scanning a file set.
type SetResult struct {
	Results []model.CodeReviewResult `json:"results"`
	Passed  bool                     `json:"passed"`
	Summary model.ScanJobResult      `json:"summary"`
}

// ChangedResult classifies changed files for pre-merge gating.
type ChangedResult struct {
	Passed       bool     `json:"passed"`
	BlockedFiles []string `json:"blocked_files"`
	Warnings     []string `json:"warnings"`
}

type runningJob struct {
	cancel context.CancelFunc
}

type Orchestrator struct {
	scanner  *scanner.Scanner
	notifier *notify.Dispatcher
	audit    scanner.AuditSink
	logger   *zap.Logger
	runner   *schedule.Runner

	Workers        int
	PerFileTimeout time.Duration

	mu         sync.RWMutex
	configs    map[string]model.ScanConfig
	jobs       map[string]*model.ScanJob
	running    map[string]*runningJob
	lastRun    map[string]time.Time
	fileSource FileSource

	now func() time.Time
}

func New(sc *scanner.Scanner, notifier *notify.Dispatcher, audit scanner.AuditSink, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		scanner:        sc,
		notifier:       notifier,
		audit:          audit,
		logger:         logger,
		Workers:        DefaultWorkers,
		PerFileTimeout: DefaultPerFileTimeout,
		configs:        map[string]model.ScanConfig{},
		jobs:           map[string]*model.ScanJob{},
		running:        map[string]*runningJob{},
		lastRun:        map[string]time.Time{},
		now:            func() time.Time { return time.Now().UTC() },
	}
	o.runner = schedule.NewRunner(logger,
		schedule.Func{RoutineName: "scan-schedule-trigger", TickInterval: time.Minute, Fn: o.triggerScheduled},
	)
	return o
}

// Start launches scheduled scan triggering; Stop cancels it.
func (o *Orchestrator) Start(ctx context.Context) { o.runner.Start(ctx) }
func (o *Orchestrator) Stop()                     { o.runner.Stop() }

// CreateConfig registers a config, filling defaults.
func (o *Orchestrator) CreateConfig(cfg model.ScanConfig) model.ScanConfig {
	now := o.now()
	if cfg.ID == "" {
		cfg.ID = model.NewIDAt("cfg", now)
	}
	if cfg.Thresholds == (model.Thresholds{}) {
		cfg.Thresholds = DefaultThresholds()
	}
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	o.mu.Lock()
	o.configs[cfg.ID] = cfg
	o.mu.Unlock()
	return cfg
}

// UpdateConfig replaces an existing config in place.
func (o *Orchestrator) UpdateConfig(cfg model.ScanConfig) (model.ScanConfig, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	old, ok := o.configs[cfg.ID]
	if !ok {
		return model.ScanConfig{}, fmt.Errorf("update config %s: %w", cfg.ID, ErrConfigNotFound)
	}
	cfg.CreatedAt = old.CreatedAt
	cfg.UpdatedAt = o.now()
	o.configs[cfg.ID] = cfg
	return cfg, nil
}

func (o *Orchestrator) Config(id string) (model.ScanConfig, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	cfg, ok := o.configs[id]
	if !ok {
		return model.ScanConfig{}, fmt.Errorf("get config %s: %w", id, ErrConfigNotFound)
	}
	return cfg, nil
}

func (o *Orchestrator) Configs() []model.ScanConfig {
	o.mu.RLock()
	out := make([]model.ScanConfig, 0, len(o.configs))
	for _, c := range o.configs {
		out = append(out, c)
	}
	o.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// DefaultThresholds: no critical violations, limited high/medium noise,
// mean risk at the high-risk line.
func DefaultThresholds() model.Thresholds {
	return model.Thresholds{Critical: 0, High: 5, Medium: 20, RiskScore: 7.0}
}

// Job returns a copy of the job record.
func (o *Orchestrator) Job(id string) (model.ScanJob, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	j, ok := o.jobs[id]
	if !ok {
		return model.ScanJob{}, fmt.Errorf("get job %s: %w", id, ErrJobNotFound)
	}
	return *j, nil
}

// RunJob starts an asynchronous job over the given file set and returns the
// job ID immediately. Missing or disabled configuration is a hard
// precondition failure.
func (o *Orchestrator) RunJob(ctx context.Context, configID string, trigger model.TriggerSource, files []FileContent) (string, error) {
	cfg, err := o.Config(configID)
	if err != nil {
		return "", fmt.Errorf("run job: %w", err)
	}
	if !cfg.Enabled {
		return "", fmt.Errorf("run job: config %s: %w", configID, ErrConfigDisabled)
	}

	now := o.now()
	job := &model.ScanJob{
		ID:        model.NewIDAt("job", now),
		ConfigID:  configID,
		Status:    model.JobQueued,
		Trigger:   trigger,
		CreatedAt: now,
	}
	jobCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	o.jobs[job.ID] = job
	o.running[job.ID] = &runningJob{cancel: cancel}
	o.mu.Unlock()

	go o.execute(jobCtx, job.ID, cfg, files)
	return job.ID, nil
}

// Cancel requests cooperative cancellation; partial results are retained.
// Queued counts as cancellable: dispatch is asynchronous, so a job sits in
// queued only for the instant between RunJob returning and its goroutine
// starting, and a cancel landing in that window must still take effect.
// Terminal jobs are not cancellable.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok {
		return fmt.Errorf("cancel %s: %w", jobID, ErrJobNotFound)
	}
	run, ok := o.running[jobID]
	if !ok || (job.Status != model.JobRunning && job.Status != model.JobQueued) {
		return fmt.Errorf("cancel %s (status %s): %w", jobID, job.Status, ErrNotCancellable)
	}
	run.cancel()
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, jobID string, cfg model.ScanConfig, files []FileContent) {
	defer func() {
		if r := recover(); r != nil {
			end := o.now()
			o.logger.Error("scan job panicked",
				zap.String("job_id", jobID),
				zap.Any("panic", r))
			o.setJobStatus(jobID, model.JobFailed, nil, &end, nil, fmt.Sprintf("internal error: %v", r))
		}
	}()

	start := o.now()
	o.setJobStatus(jobID, model.JobRunning, &start, nil, nil, "")
	o.recordEvent(model.EventScanStarted, map[string]any{"job_id": jobID, "config_id": cfg.ID})

	selected := FilterFiles(files, cfg.IncludePatterns, cfg.ExcludePatterns)
	set := o.scanPool(ctx, selected, cfg)

	end := o.now()
	cancelled := ctx.Err() != nil
	status := model.JobCompleted
	if cancelled {
		status = model.JobCancelled
	}
	set.Summary.Duration = end.Sub(start).Milliseconds()
	o.setJobStatus(jobID, status, nil, &end, &set.Summary, "")

	if cancelled {
		o.recordEvent(model.EventScanFailed, map[string]any{"job_id": jobID, "reason": "cancelled"})
		return
	}
	o.recordEvent(model.EventScanCompleted, map[string]any{
		"job_id":     jobID,
		"passed":     set.Passed,
		"violations": set.Summary.TotalViolations,
	})

	if !set.Passed && o.notifier != nil && len(cfg.NotifyChannels) > 0 {
		o.notifier.DispatchAsync(cfg.NotifyChannels, notify.Message{
			Title:    "Scan job failed gating: " + cfg.Name,
			Body:     fmt.Sprintf("job %s: %d violations over %d files, mean risk %.1f", jobID, set.Summary.TotalViolations, set.Summary.FilesScanned, set.Summary.AverageRisk),
			Severity: "high",
			Fields:   map[string]string{"job_id": jobID, "config_id": cfg.ID},
		})
	}
}

// ScanFileSet scans files synchronously under a config and gates the
// aggregate against its thresholds.
func (o *Orchestrator) ScanFileSet(ctx context.Context, files []FileContent, configID string) (SetResult, error) {
	cfg, err := o.Config(configID)
	if err != nil {
		return SetResult{}, fmt.Errorf("scan file set: %w", err)
	}
	if !cfg.Enabled {
		return SetResult{}, fmt.Errorf("scan file set: config %s: %w", configID, ErrConfigDisabled)
	}
	selected := FilterFiles(files, cfg.IncludePatterns, cfg.ExcludePatterns)
	return o.scanPool(ctx, selected, cfg), nil
}

// ScanChangedFiles is the pre-merge variant: deleted and unchanged files
// are never scanned; violations are classified into blocking vs warning.
func (o *Orchestrator) ScanChangedFiles(ctx context.Context, changes []FileChange, configID string) (ChangedResult, error) {
	cfg, err := o.Config(configID)
	if err != nil {
		return ChangedResult{}, fmt.Errorf("scan changed files: %w", err)
	}
	if !cfg.Enabled {
		return ChangedResult{}, fmt.Errorf("scan changed files: config %s: %w", configID, ErrConfigDisabled)
	}

	out := ChangedResult{Passed: true, BlockedFiles: []string{}, Warnings: []string{}}
	for _, ch := range changes {
		if ch.Status == "deleted" || ch.Status == "unchanged" {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		result := o.scanOne(ctx, FileContent{Path: ch.Path, Content: ch.Content}, cfg)
		counts := result.SeverityCounts()
		switch {
		case counts["critical"] > cfg.Thresholds.Critical:
			out.BlockedFiles = append(out.BlockedFiles, ch.Path)
			out.Passed = false
		case counts["high"] > cfg.Thresholds.High:
			out.Warnings = append(out.Warnings, fmt.Sprintf("%s: %d high-severity violations", ch.Path, counts["high"]))
		}
	}
	return out, nil
}

// scanPool runs the bounded worker pool. Cancellation is observed between
// work units; results collected before cancellation are kept.
func (o *Orchestrator) scanPool(ctx context.Context, files []FileContent, cfg model.ScanConfig) SetResult {
	workers := o.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}

	jobs := make(chan FileContent)
	res := make(chan model.CodeReviewResult)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				if ctx.Err() != nil {
					return
				}
				res <- o.scanOne(ctx, f, cfg)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case <-ctx.Done():
				return
			case jobs <- f:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(res)
	}()

	results := make([]model.CodeReviewResult, 0, len(files))
	for r := range res {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].FilePath < results[j].FilePath })

	summary := Summarize(results)
	summary.Passed = Gate(summary, cfg.Thresholds)
	return SetResult{Results: results, Passed: summary.Passed, Summary: summary}
}

// scanOne applies the per-file timeout. A timed-out scan yields a synthetic
// scan-error result instead of a fatal job failure.
func (o *Orchestrator) scanOne(ctx context.Context, f FileContent, cfg model.ScanConfig) model.CodeReviewResult {
	timeout := o.PerFileTimeout
	if timeout <= 0 {
		timeout = DefaultPerFileTimeout
	}
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan model.CodeReviewResult, 1)
	go func() {
		done <- o.scanner.Scan(scanCtx, f.Path, f.Content, scanner.Options{IncludeRuleIDs: cfg.RuleIDs})
	}()

	select {
	case r := <-done:
		return r
	case <-scanCtx.Done():
		o.logger.Warn("per-file scan timed out", zap.String("file", f.Path))
		v := []model.Violation{scanner.ScanErrorViolation("scan timed out after " + timeout.String())}
		return model.CodeReviewResult{
			ID:         model.NewID("scan"),
			FilePath:   f.Path,
			Violations: v,
			RiskScore:  scanner.RiskScore(v),
			ScannedAt:  o.now(),
			Reviewer:   scanner.AutomatedReviewer,
		}
	}
}

// FilterFiles applies include patterns then exclude patterns; exclude wins
// on conflict. Empty include means everything.
func FilterFiles(files []FileContent, include []string, exclude []string) []FileContent {
	out := make([]FileContent, 0, len(files))
	for _, f := range files {
		path := strings.ReplaceAll(f.Path, "\\", "/")
		if len(include) > 0 && !matchAny(include, path) {
			continue
		}
		if matchAny(exclude, path) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func matchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.PathMatch(p, path); err == nil && ok {
			return true
		}
	}
	return false
}

// Summarize aggregates per-file results into the job-level rollup.
func Summarize(results []model.CodeReviewResult) model.ScanJobResult {
	summary := model.ScanJobResult{
		FilesScanned:   len(results),
		SeverityCounts: map[string]int{"critical": 0, "high": 0, "medium": 0, "low": 0, "info": 0},
	}
	var riskSum float64
	for _, r := range results {
		summary.TotalViolations += len(r.Violations)
		riskSum += r.RiskScore
		for sev, n := range r.SeverityCounts() {
			summary.SeverityCounts[sev] += n
		}
	}
	if len(results) > 0 {
		summary.AverageRisk = riskSum / float64(len(results))
	}
	return summary
}

// Gate is pure threshold comparison: any severity count or the mean risk
// score exceeding its threshold fails the job.
func Gate(summary model.ScanJobResult, t model.Thresholds) bool {
	if summary.SeverityCounts["critical"] > t.Critical {
		return false
	}
	if summary.SeverityCounts["high"] > t.High {
		return false
	}
	if summary.SeverityCounts["medium"] > t.Medium {
		return false
	}
	if t.RiskScore > 0 && summary.AverageRisk > t.RiskScore {
		return false
	}
	return true
}

func (o *Orchestrator) setJobStatus(jobID string, status model.JobStatus, started, ended *time.Time, result *model.ScanJobResult, errMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	job, ok := o.jobs[jobID]
	if !ok {
		return
	}
	job.Status = status
	if started != nil {
		job.StartedAt = started
	}
	if ended != nil {
		job.EndedAt = ended
	}
	if result != nil {
		job.Result = *result
	}
	if errMsg != "" {
		job.Error = errMsg
	}
	if status == model.JobCompleted || status == model.JobFailed || status == model.JobCancelled {
		delete(o.running, jobID)
	}
}

func (o *Orchestrator) recordEvent(t model.SecurityEventType, detail map[string]any) {
	if o.audit == nil {
		return
	}
	if _, err := o.audit.Record(model.SecurityEvent{Type: t, Detail: detail}); err != nil {
		o.logger.Warn("scan event record failed", zap.Error(err))
	}
}
