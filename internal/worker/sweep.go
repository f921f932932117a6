// Package worker runs background maintenance for the workbench.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweepable is a store of idle-expiring sessions.
type Sweepable interface {
	Sweep(now time.Time) int
	Len() int
}

// SweepRecorder records closed sessions.
type SweepRecorder interface {
	WorkspaceClosed(ctx context.Context, n int)
}

// SweepConfig holds configuration for a SweepJob.
type SweepConfig struct {
	Store    Sweepable
	Interval time.Duration
	Metrics  SweepRecorder
	Logger   zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// SweepStats tracks sweep job statistics.
type SweepStats struct {
	Runs         int64
	Closed       int64
	LastRunAt    time.Time
	LastDuration time.Duration
}

// SweepJob closes idle workspaces on a fixed interval.
type SweepJob struct {
	cfg SweepConfig

	mu    sync.RWMutex
	stats SweepStats
}

// NewSweepJob creates a sweep job.
func NewSweepJob(cfg SweepConfig) *SweepJob {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SweepJob{cfg: cfg}
}

// RunOnce performs a single sweep and returns the number of workspaces closed.
func (j *SweepJob) RunOnce(ctx context.Context) int {
	start := j.cfg.Now()
	n := j.cfg.Store.Sweep(start)
	elapsed := j.cfg.Now().Sub(start)

	j.mu.Lock()
	j.stats.Runs++
	j.stats.Closed += int64(n)
	j.stats.LastRunAt = start
	j.stats.LastDuration = elapsed
	j.mu.Unlock()

	if n > 0 {
		if j.cfg.Metrics != nil {
			j.cfg.Metrics.WorkspaceClosed(ctx, n)
		}
		j.cfg.Logger.Info().
			Int("closed", n).
			Int("live", j.cfg.Store.Len()).
			Dur("duration", elapsed).
			Msg("idle workspaces swept")
	}
	return n
}

// Start sweeps every Interval until ctx is done. A non-positive interval
// returns immediately.
func (j *SweepJob) Start(ctx context.Context) {
	if j.cfg.Interval <= 0 {
		j.cfg.Logger.Warn().Msg("workspace sweep disabled")
		return
	}

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.cfg.Logger.Info().Dur("interval", j.cfg.Interval).Msg("workspace sweep started")
	for {
		select {
		case <-ctx.Done():
			j.cfg.Logger.Info().Msg("workspace sweep stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// Stats returns a snapshot of the job statistics.
func (j *SweepJob) Stats() SweepStats {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.stats
}
