package review

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/cache"
	"github.com/wilson323/zk-agent-sub004/internal/model"
)

const criticalAuditTTL = 24 * time.Hour

// AuditQuery filters the audit log. Zero values mean "any".
type AuditQuery struct {
	ReviewID  string
	ActorID   string
	Action    string
	RiskLevel string
	From      time.Time
	To        time.Time
}

// AuditLog is the append-only record of every review mutation, globally
// ordered by timestamp. Critical entries are additionally cached for fast
// retrieval; cache loss is harmless.
type AuditLog struct {
	mu      sync.RWMutex
	entries []model.AuditLogEntry
	store   cache.Store
	logger  *zap.Logger
}

func NewAuditLog(store cache.Store, logger *zap.Logger) *AuditLog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditLog{store: store, logger: logger}
}

// Append records one entry. It never fails the operation that produced the
// entry.
func (l *AuditLog) Append(entry model.AuditLogEntry) model.AuditLogEntry {
	if entry.ID == "" {
		entry.ID = model.NewID("audit")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()

	if l.store != nil && entry.RiskLevel == "critical" {
		if payload, err := json.Marshal(entry); err == nil {
			if err := l.store.Set(context.Background(), "audit:critical:"+entry.ID, payload, criticalAuditTTL, "critical-audit"); err != nil {
				l.logger.Warn("critical audit cache write failed", zap.Error(err))
			}
		}
	}
	return entry
}

// Query returns matching entries ordered by timestamp.
func (l *AuditLog) Query(q AuditQuery) []model.AuditLogEntry {
	l.mu.RLock()
	out := make([]model.AuditLogEntry, 0)
	for _, e := range l.entries {
		if q.ReviewID != "" && e.ReviewID != q.ReviewID {
			continue
		}
		if q.ActorID != "" && e.Actor.ID != q.ActorID {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		if q.RiskLevel != "" && e.RiskLevel != q.RiskLevel {
			continue
		}
		if !q.From.IsZero() && e.Timestamp.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && e.Timestamp.After(q.To) {
			continue
		}
		out = append(out, e)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (l *AuditLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
