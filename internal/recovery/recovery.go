// Package recovery runs the periodic stale-job recovery and log-retention
// timers that make the pipeline resilient to crashes mid-job.
package recovery

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/pipeline"
	"video-pipeline/internal/store"
)

const recoveryFanoutConcurrency = 8

var staleStatuses = []store.JobStatus{
	store.StatusPending,
	store.StatusDownloading,
	store.StatusConverting,
	store.StatusAudioAnalyzing,
	store.StatusExtractingKeyframes,
	store.StatusUploading,
}

// Service owns the two named timers: stale-job recovery and log retention.
// Both are non-reentrant: a run flag prevents a slow run from overlapping
// its own next tick.
type Service struct {
	scope *pipeline.Scope

	checkInterval   time.Duration
	staleThreshold  time.Duration
	maxAttempts     int
	cleanupInterval time.Duration
	retentionDays   int

	recoveryRunning int32
	cleanupRunning  int32

	stopCh chan struct{}
}

// New creates a recovery Service over scope.
func New(scope *pipeline.Scope, checkInterval, staleThreshold time.Duration, maxAttempts int, cleanupInterval time.Duration, retentionDays int) *Service {
	return &Service{
		scope:           scope,
		checkInterval:   checkInterval,
		staleThreshold:  staleThreshold,
		maxAttempts:     maxAttempts,
		cleanupInterval: cleanupInterval,
		retentionDays:   retentionDays,
		stopCh:          make(chan struct{}),
	}
}

// Start launches both timers as background goroutines.
func (s *Service) Start(ctx context.Context) {
	go s.runTimer(ctx, s.checkInterval, s.runStaleRecovery)
	go s.runTimer(ctx, s.cleanupInterval, s.runLogRetention)
}

// Stop ends both timers.
func (s *Service) Stop() {
	close(s.stopCh)
}

func (s *Service) runTimer(ctx context.Context, interval time.Duration, task func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			task(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) runStaleRecovery(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.recoveryRunning, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&s.recoveryRunning, 0)

	if _, err := s.ForceRecovery(ctx); err != nil {
		s.scope.Log.Error().Err(err).Msg("stale job recovery run failed")
	}
}

// ForceRecovery is the synchronous administrative entry point: it runs one
// stale-job recovery pass immediately and returns how many jobs it reset to
// Pending and re-enqueued; jobs failed out after max attempts are not
// counted. Per-job decisions fan out over a bounded
// semaphore so a large batch of stale jobs does not serialize recovery
// behind one slow store round-trip.
func (s *Service) ForceRecovery(ctx context.Context) (int, error) {
	cutoff := time.Now().Add(-s.staleThreshold)
	staleJobs, err := s.scope.Store.GetStaleJobs(cutoff)
	if err != nil {
		return 0, fmt.Errorf("list stale jobs: %w", err)
	}

	var recovered int32
	sem := semaphore.NewWeighted(recoveryFanoutConcurrency)
	g, gctx := errgroup.WithContext(ctx)

	for _, job := range staleJobs {
		if !isRecoverableStatus(job.Status) {
			continue
		}
		job := job
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			if s.recoverJob(&job) {
				atomic.AddInt32(&recovered, 1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return int(recovered), err
	}
	return int(recovered), nil
}

func (s *Service) recoverJob(job *store.ConversionJob) bool {
	j := eventlog.NewJob(job.JobID, job.BatchID, job.Status, job.ProcessingAttempts)

	if job.ProcessingAttempts >= s.maxAttempts {
		if err := s.scope.Store.UpdateJobStatus(job.JobID, store.StatusFailed, "max attempts exceeded"); err != nil {
			s.scope.Log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to mark job failed after max attempts")
			return false
		}
		s.scope.Events.Error(j, "max attempts exceeded")
		return false
	}

	if err := s.scope.Store.ResetToPending(job.JobID); err != nil {
		s.scope.Log.Error().Err(err).Str("job_id", job.JobID).Msg("failed to reset stale job to Pending")
		return false
	}
	s.scope.Events.JobRecovered(j)

	if s.scope.Adapters.UrlValidator != nil && s.scope.Adapters.UrlValidator.IsYoutube(job.VideoURL) {
		s.scope.Channels.YoutubeDownload <- pipeline.YoutubeMsg{JobID: job.JobID, VideoURL: job.VideoURL}
	} else {
		s.scope.Channels.Download <- pipeline.DownloadMsg{JobID: job.JobID, VideoURL: job.VideoURL}
	}
	return true
}

func (s *Service) runLogRetention(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.cleanupRunning, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&s.cleanupRunning, 0)

	purged, err := s.scope.Store.PurgeOldLogs(s.retentionDays)
	if err != nil {
		s.scope.Log.Error().Err(err).Msg("log retention purge failed")
		return
	}
	s.scope.Log.Info().Int64("purged", purged).Msg("log retention purge completed")
}

func isRecoverableStatus(status store.JobStatus) bool {
	for _, s := range staleStatuses {
		if s == status {
			return true
		}
	}
	return false
}
