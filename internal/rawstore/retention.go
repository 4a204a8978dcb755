package rawstore

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Vamsirusheel01/sentinel-ai/packages/sentinelcore/clock"
)

// RetentionSweeper deletes raw journal files older than a retention window
// on a cron schedule, grounded on
// original_source/agent-test/sentinel_agent/retention/raw_retention.py
// (6h retention, 5-minute check interval), adapted to use robfig/cron —
// the scheduling library the rest of this codebase's periodic jobs use —
// in place of the original's bare sleep loop.
type RetentionSweeper struct {
	store     *Store
	retention time.Duration
	clk       clock.Clock
	logger    *zap.Logger
	cron      *cron.Cron
}

// NewRetentionSweeper constructs a sweeper over store. retention defaults
// to 6h if zero.
func NewRetentionSweeper(store *Store, retention time.Duration, clk clock.Clock, logger *zap.Logger) *RetentionSweeper {
	if retention <= 0 {
		retention = 6 * time.Hour
	}
	return &RetentionSweeper{
		store:     store,
		retention: retention,
		clk:       clk,
		logger:    logger,
		cron:      cron.New(),
	}
}

// Start schedules the sweep at the given interval (spec.md default 5m)
// and runs it once immediately so a long-lived agent doesn't wait a full
// interval before its first sweep. Returns the cron.EntryID for Stop.
func (r *RetentionSweeper) Start(interval time.Duration) (cron.EntryID, error) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	id, err := r.cron.AddFunc("@every "+interval.String(), r.sweep)
	if err != nil {
		return 0, err
	}
	r.cron.Start()
	go r.sweep()
	return id, nil
}

// Stop halts the cron scheduler.
func (r *RetentionSweeper) Stop() {
	r.cron.Stop()
}

func (r *RetentionSweeper) sweep() {
	cutoff := r.clk.Now().Add(-r.retention)

	entries, err := os.ReadDir(r.store.Dir())
	if err != nil {
		r.logger.Warn("retention sweep: read dir failed", zap.Error(err))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(r.store.Dir(), entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				r.logger.Warn("retention sweep: remove failed", zap.Error(err), zap.String("path", path))
			}
		}
	}
}
