// Package review wraps scan output in a human-reviewable entity with a
// bounded state machine, comment/approval sub-records, and an append-only
// audit log.
package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/schedule"
	"github.com/wilson323/zk-agent-sub004/internal/severity"
)

var (
	ErrNotFound          = errors.New("review entry not found")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrEntryClosed       = errors.New("entry no longer accepts comments or approvals")
)

// legalTransitions is the bounded state machine. approved and rejected are
// terminal.
var legalTransitions = map[model.ReviewStatus][]model.ReviewStatus{
	model.ReviewPending:         {model.ReviewInReview, model.ReviewApproved, model.ReviewRejected, model.ReviewRequiresChanges, model.ReviewCancelled},
	model.ReviewInReview:        {model.ReviewApproved, model.ReviewRejected, model.ReviewRequiresChanges, model.ReviewCancelled},
	model.ReviewRequiresChanges: {model.ReviewInReview, model.ReviewRejected, model.ReviewCancelled},
	model.ReviewApproved:        {},
	model.ReviewRejected:        {},
	model.ReviewCancelled:       {},
}

func transitionLegal(from, to model.ReviewStatus) bool {
	for _, s := range legalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Tracker owns review entries and their audit log.
type Tracker struct {
	mu      sync.RWMutex
	entries map[string]*model.ReviewTrackingEntry

	audit  *AuditLog
	logger *zap.Logger
	runner *schedule.Runner
	now    func() time.Time

	// DueIn sets the due date offset for new entries.
	DueIn time.Duration
}

func NewTracker(audit *AuditLog, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Tracker{
		entries: map[string]*model.ReviewTrackingEntry{},
		audit:   audit,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		DueIn:   72 * time.Hour,
	}
	t.runner = schedule.NewRunner(logger,
		schedule.Func{RoutineName: "review-overdue-sweep", TickInterval: 15 * time.Minute, Fn: t.sweepOverdue},
	)
	return t
}

func (t *Tracker) Start(ctx context.Context) { t.runner.Start(ctx) }
func (t *Tracker) Stop()                     { t.runner.Stop() }

// Create opens one entry per file under review. Estimated effort is derived
// from the scan result; the creation is audited.
func (t *Tracker) Create(reviewID string, result model.CodeReviewResult, actor model.AuditActor) model.ReviewTrackingEntry {
	now := t.now()
	due := now.Add(t.DueIn)
	entry := model.ReviewTrackingEntry{
		ID:              model.NewIDAt("rev", now),
		ReviewID:        reviewID,
		FilePath:        result.FilePath,
		Status:          model.ReviewPending,
		Priority:        PriorityFor(result.Violations),
		CreatedAt:       now,
		UpdatedAt:       now,
		DueAt:           &due,
		EstimatedEffort: EstimateEffort(result.Violations, result.LinesScanned),
		Violations:      append([]model.Violation(nil), result.Violations...),
		Comments:        []model.ReviewComment{},
		Approvals:       []model.ReviewApproval{},
	}

	t.mu.Lock()
	t.entries[entry.ID] = &entry
	t.mu.Unlock()

	t.audit.Append(model.AuditLogEntry{
		ReviewID:  reviewID,
		Action:    "review_created",
		Actor:     actor,
		Timestamp: now,
		After:     map[string]any{"entry_id": entry.ID, "status": string(entry.Status), "file": entry.FilePath},
		RiskLevel: riskLevelFor(entry.Violations),
	})
	return t.snapshotLocked(entry.ID)
}

// Get returns a copy of the entry.
func (t *Tracker) Get(entryID string) (model.ReviewTrackingEntry, error) {
	t.mu.RLock()
	e, ok := t.entries[entryID]
	if !ok {
		t.mu.RUnlock()
		return model.ReviewTrackingEntry{}, fmt.Errorf("get %s: %w", entryID, ErrNotFound)
	}
	out := copyEntry(e)
	t.mu.RUnlock()
	return out, nil
}

// ByReview lists entries belonging to a parent review, ordered by file path.
func (t *Tracker) ByReview(reviewID string) []model.ReviewTrackingEntry {
	t.mu.RLock()
	out := make([]model.ReviewTrackingEntry, 0)
	for _, e := range t.entries {
		if e.ReviewID == reviewID {
			out = append(out, copyEntry(e))
		}
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].FilePath < out[j].FilePath })
	return out
}

// Entries returns a copy of every entry, ordered by creation time.
func (t *Tracker) Entries() []model.ReviewTrackingEntry {
	t.mu.RLock()
	out := make([]model.ReviewTrackingEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, copyEntry(e))
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// Transition moves an entry through the state machine. Illegal transitions
// are rejected without mutating state; every legal one appends exactly one
// audit entry.
func (t *Tracker) Transition(entryID string, to model.ReviewStatus, actor model.AuditActor) (model.ReviewTrackingEntry, error) {
	now := t.now()

	t.mu.Lock()
	e, ok := t.entries[entryID]
	if !ok {
		t.mu.Unlock()
		return model.ReviewTrackingEntry{}, fmt.Errorf("transition %s: %w", entryID, ErrNotFound)
	}
	from := e.Status
	if !transitionLegal(from, to) {
		t.mu.Unlock()
		return model.ReviewTrackingEntry{}, fmt.Errorf("transition %s: %s -> %s: %w", entryID, from, to, ErrIllegalTransition)
	}
	e.Status = to
	e.UpdatedAt = now
	if to.Terminal() {
		e.CompletedAt = &now
		e.ActualEffort = now.Sub(e.CreatedAt)
	}
	out := copyEntry(e)
	t.mu.Unlock()

	t.audit.Append(model.AuditLogEntry{
		ReviewID:  out.ReviewID,
		Action:    "status_changed",
		Actor:     actor,
		Timestamp: now,
		Before:    map[string]any{"status": string(from)},
		After:     map[string]any{"status": string(to), "entry_id": out.ID},
		RiskLevel: riskLevelFor(out.Violations),
	})
	return out, nil
}

// AddComment appends an immutable comment. Only open entries accept them.
func (t *Tracker) AddComment(entryID string, author string, body string, line int, actor model.AuditActor) (model.ReviewComment, error) {
	now := t.now()
	comment := model.ReviewComment{
		ID:        model.NewIDAt("cmt", now),
		Author:    author,
		Body:      body,
		Line:      line,
		CreatedAt: now,
	}

	t.mu.Lock()
	e, ok := t.entries[entryID]
	if !ok {
		t.mu.Unlock()
		return model.ReviewComment{}, fmt.Errorf("comment on %s: %w", entryID, ErrNotFound)
	}
	if e.Status != model.ReviewPending && e.Status != model.ReviewInReview {
		t.mu.Unlock()
		return model.ReviewComment{}, fmt.Errorf("comment on %s (status %s): %w", entryID, e.Status, ErrEntryClosed)
	}
	e.Comments = append(e.Comments, comment)
	e.UpdatedAt = now
	reviewID := e.ReviewID
	t.mu.Unlock()

	t.audit.Append(model.AuditLogEntry{
		ReviewID:  reviewID,
		Action:    "comment_added",
		Actor:     actor,
		Timestamp: now,
		After:     map[string]any{"entry_id": entryID, "comment_id": comment.ID},
		RiskLevel: "low",
	})
	return comment, nil
}

// AddApproval appends an approval and applies the auto-transition policy:
// a rejection transitions immediately regardless of other approvals; an
// approval transitions only once the role requirements are satisfied.
func (t *Tracker) AddApproval(entryID string, approval model.ReviewApproval, actor model.AuditActor) (model.ReviewTrackingEntry, error) {
	now := t.now()
	if approval.ID == "" {
		approval.ID = model.NewIDAt("apr", now)
	}
	if approval.CreatedAt.IsZero() {
		approval.CreatedAt = now
	}

	t.mu.Lock()
	e, ok := t.entries[entryID]
	if !ok {
		t.mu.Unlock()
		return model.ReviewTrackingEntry{}, fmt.Errorf("approve %s: %w", entryID, ErrNotFound)
	}
	if e.Status != model.ReviewPending && e.Status != model.ReviewInReview {
		t.mu.Unlock()
		return model.ReviewTrackingEntry{}, fmt.Errorf("approve %s (status %s): %w", entryID, e.Status, ErrEntryClosed)
	}
	e.Approvals = append(e.Approvals, approval)
	e.UpdatedAt = now
	snapshot := copyEntry(e)
	t.mu.Unlock()

	t.audit.Append(model.AuditLogEntry{
		ReviewID:  snapshot.ReviewID,
		Action:    "approval_added",
		Actor:     actor,
		Timestamp: now,
		After: map[string]any{
			"entry_id":    entryID,
			"approval_id": approval.ID,
			"decision":    string(approval.Decision),
			"role":        string(approval.Role),
		},
		RiskLevel: "low",
	})

	switch {
	case approval.Decision == model.DecisionRejected:
		return t.Transition(entryID, model.ReviewRejected, actor)
	case approval.Decision == model.DecisionApproved && approvalSatisfied(snapshot):
		return t.Transition(entryID, model.ReviewApproved, actor)
	}
	return t.Get(entryID)
}

// Overdue returns open entries past their due date.
func (t *Tracker) Overdue() []model.ReviewTrackingEntry {
	now := t.now()
	t.mu.RLock()
	out := make([]model.ReviewTrackingEntry, 0)
	for _, e := range t.entries {
		if e.Status.Terminal() || e.Status == model.ReviewCancelled {
			continue
		}
		if e.DueAt != nil && now.After(*e.DueAt) {
			out = append(out, copyEntry(e))
		}
	}
	t.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(*out[j].DueAt) })
	return out
}

func (t *Tracker) Audit() *AuditLog { return t.audit }

func (t *Tracker) sweepOverdue(context.Context) error {
	overdue := t.Overdue()
	for _, e := range overdue {
		t.logger.Warn("review entry overdue",
			zap.String("entry", e.ID),
			zap.String("file", e.FilePath),
			zap.Time("due", *e.DueAt))
	}
	return nil
}

func (t *Tracker) snapshotLocked(entryID string) model.ReviewTrackingEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyEntry(t.entries[entryID])
}

func copyEntry(e *model.ReviewTrackingEntry) model.ReviewTrackingEntry {
	out := *e
	out.Violations = append([]model.Violation(nil), e.Violations...)
	out.Comments = append([]model.ReviewComment(nil), e.Comments...)
	out.Approvals = append([]model.ReviewApproval(nil), e.Approvals...)
	out.Tags = append([]string(nil), e.Tags...)
	return out
}

func riskLevelFor(violations []model.Violation) string {
	worst := severity.Max(severitiesOf(violations)...)
	switch worst {
	case "critical":
		return "critical"
	case "high":
		return "high"
	case "medium":
		return "medium"
	default:
		return "low"
	}
}

func severitiesOf(violations []model.Violation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Severity)
	}
	return out
}
