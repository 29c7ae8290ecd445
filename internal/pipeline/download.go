package pipeline

import (
	"context"
	"os"
	"time"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
)

// StartDownloadWorkers launches n Download-stage workers.
func StartDownloadWorkers(ctx context.Context, s *Scope, n int) {
	runPool(ctx, n, s.Channels.Download, s.runDownload)
}

func (s *Scope) runDownload(ctx context.Context, msg DownloadMsg) {
	log := s.Log.With().Str("job_id", msg.JobID).Str("stage", "download").Logger()

	claimed, err := s.Store.TryUpdateStatusIf(msg.JobID, store.StatusPending, store.StatusDownloading)
	if err != nil {
		log.Error().Err(err).Msg("failed to claim job for download")
		return
	}
	if !claimed {
		return
	}

	stopHeartbeat := s.heartbeat(ctx, msg.JobID)
	defer stopHeartbeat()

	j := eventlog.NewJob(msg.JobID, nil, store.StatusDownloading, 1)
	s.Events.DownloadStarted(j, msg.VideoURL)

	destPath, err := s.Workspace.CreateTempFile(".media")
	if err != nil {
		s.failStage(msg.JobID, j, "failed to allocate temp file: "+err.Error())
		return
	}

	if hit, cacheErr := s.Adapters.ObjectStore.TryDownload(ctx, msg.VideoURL, destPath); cacheErr == nil && hit {
		s.finishDownload(ctx, msg, destPath, j)
		return
	}

	const maxAttempts = 3
	delays := [maxAttempts]time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	timeoutRetriesUsed := 0
	progress := progressThrottle{}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
		dlErr := s.Adapters.Downloader.Download(attemptCtx, msg.VideoURL, destPath, func(frac float64) {
			if progress.shouldLog(frac * 100) {
				s.Events.DownloadProgress(j, frac*100)
			}
		})
		cancel()

		if dlErr == nil {
			s.finishDownload(ctx, msg, destPath, j)
			return
		}

		if ctx.Err() != nil {
			// Root cancellation during shutdown: leave the job in
			// Downloading; Recovery will re-enqueue it later.
			return
		}

		de, ok := dlErr.(*DownloadError)
		if !ok {
			de = &DownloadError{Kind: DownloadOther, Err: dlErr}
		}

		switch de.Kind {
		case DownloadSourceProhibited, DownloadNotFound, DownloadForbidden:
			s.failStage(msg.JobID, j, de.Error())
			s.cleanupTemps(destPath)
			return
		case DownloadTimeout:
			if timeoutRetriesUsed >= 1 {
				s.failStage(msg.JobID, j, "download exceeded the streaming deadline")
				s.cleanupTemps(destPath)
				return
			}
			timeoutRetriesUsed++
		}

		if attempt == maxAttempts {
			s.failStage(msg.JobID, j, de.Error())
			s.cleanupTemps(destPath)
			return
		}

		os.Remove(destPath)
		if f, cerr := os.Create(destPath); cerr == nil {
			f.Close()
		}

		select {
		case <-time.After(delays[attempt-1]):
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scope) finishDownload(ctx context.Context, msg DownloadMsg, path string, j eventlog.JobRef) {
	hash, err := hashFile(path)
	if err != nil {
		s.failStage(msg.JobID, j, "failed to hash downloaded file: "+err.Error())
		s.cleanupTemps(path)
		return
	}

	if item, cacheErr := s.Store.FindByVideoHash(hash); cacheErr == nil && item.AudioURL != "" {
		if completeErr := s.Store.CompleteFromCache(msg.JobID, item); completeErr != nil {
			s.Log.Error().Err(completeErr).Str("job_id", msg.JobID).Msg("failed to complete job from cache")
		}
		s.Events.CacheHit(j)
		s.Events.JobCompleted(j)
		s.cleanupTemps(path)
		return
	}

	size := int64(0)
	if info, statErr := os.Stat(path); statErr == nil {
		size = info.Size()
	}
	s.Events.DownloadCompleted(j, size)

	select {
	case s.Channels.Conversion <- ConversionMsg{JobID: msg.JobID, VideoPath: path, VideoHash: hash}:
	case <-ctx.Done():
		s.cleanupTemps(path)
	}
}

// failStage marks a job terminally Failed and logs the Error event. Shared
// by every stage worker's failure path.
func (s *Scope) failStage(jobID string, j eventlog.JobRef, message string) {
	if err := s.Store.UpdateJobStatus(jobID, store.StatusFailed, message); err != nil {
		s.Log.Error().Err(err).Str("job_id", jobID).Msg("failed to mark job failed")
	}
	s.Events.Error(j, message)
}
