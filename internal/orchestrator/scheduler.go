package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wilson323/zk-agent-sub004/internal/model"
)

// FileSource supplies the file set for scheduled jobs. Typically a
// directory walker rooted at the workspace.
type FileSource func(ctx context.Context, cfg model.ScanConfig) ([]FileContent, error)

// SetFileSource installs the provider used by scheduled triggering.
func (o *Orchestrator) SetFileSource(src FileSource) {
	o.mu.Lock()
	o.fileSource = src
	o.mu.Unlock()
}

// scheduleInterval parses a config schedule: "@hourly", "@daily", or a Go
// duration string. Zero means "not scheduled".
func scheduleInterval(schedule string) time.Duration {
	switch schedule {
	case "":
		return 0
	case "@hourly":
		return time.Hour
	case "@daily":
		return 24 * time.Hour
	case "@weekly":
		return 7 * 24 * time.Hour
	}
	d, err := time.ParseDuration(schedule)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// triggerScheduled fires due configs. It runs on a fixed one-minute tick
// and degrades to logging when a trigger fails.
func (o *Orchestrator) triggerScheduled(ctx context.Context) error {
	o.mu.RLock()
	src := o.fileSource
	due := make([]model.ScanConfig, 0)
	now := o.now()
	for _, cfg := range o.configs {
		interval := scheduleInterval(cfg.Schedule)
		if !cfg.Enabled || interval == 0 {
			continue
		}
		last, ran := o.lastRun[cfg.ID]
		if !ran || now.Sub(last) >= interval {
			due = append(due, cfg)
		}
	}
	o.mu.RUnlock()

	if src == nil || len(due) == 0 {
		return nil
	}

	for _, cfg := range due {
		files, err := src(ctx, cfg)
		if err != nil {
			o.logger.Warn("scheduled scan file discovery failed",
				zap.String("config", cfg.ID), zap.Error(err))
			continue
		}
		jobID, err := o.RunJob(ctx, cfg.ID, model.TriggerSchedule, files)
		if err != nil {
			o.logger.Warn("scheduled scan trigger failed",
				zap.String("config", cfg.ID), zap.Error(err))
			continue
		}
		o.mu.Lock()
		o.lastRun[cfg.ID] = now
		o.mu.Unlock()
		o.logger.Info("scheduled scan started",
			zap.String("config", cfg.ID), zap.String("job", jobID))
	}
	return nil
}
