package pipeline

import (
	"context"
	"time"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
)

// StartYoutubeWorkers launches n YouTube-stage workers.
func StartYoutubeWorkers(ctx context.Context, s *Scope, n int) {
	runPool(ctx, n, s.Channels.YoutubeDownload, s.runYoutube)
}

func (s *Scope) runYoutube(ctx context.Context, msg YoutubeMsg) {
	log := s.Log.With().Str("job_id", msg.JobID).Str("stage", "youtube").Logger()

	claimed, err := s.Store.TryUpdateStatusIf(msg.JobID, store.StatusPending, store.StatusDownloading)
	if err != nil {
		log.Error().Err(err).Msg("failed to claim youtube job")
		return
	}
	if !claimed {
		return
	}

	stopHeartbeat := s.heartbeat(ctx, msg.JobID)
	defer stopHeartbeat()

	j := eventlog.NewJob(msg.JobID, nil, store.StatusDownloading, 1)
	s.Events.DownloadStarted(j, msg.VideoURL)

	hash := hashString(msg.VideoURL)
	if item, cacheErr := s.Store.FindByVideoHash(hash); cacheErr == nil && item.AudioURL != "" {
		if completeErr := s.Store.CompleteFromCache(msg.JobID, item); completeErr != nil {
			log.Error().Err(completeErr).Msg("failed to complete youtube job from cache")
		}
		s.Events.CacheHit(j)
		s.Events.JobCompleted(j)
		return
	}

	mp3Path, err := s.Workspace.CreateTempFile(".mp3")
	if err != nil {
		s.failStage(msg.JobID, j, "failed to allocate temp file: "+err.Error())
		return
	}

	const maxAttempts = 3
	delays := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}
	progress := progressThrottle{}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
		lastErr = s.Adapters.Youtube.DownloadAndExtract(attemptCtx, msg.VideoURL, mp3Path, func(frac float64) {
			if progress.shouldLog(frac * 100) {
				s.Events.DownloadProgress(j, frac*100)
			}
		})
		cancel()

		if lastErr == nil {
			s.Events.DownloadCompleted(j, 0)
			select {
			case s.Channels.Upload <- UploadMsg{JobID: msg.JobID, Mp3Path: mp3Path, VideoPath: "", VideoHash: hash, Keyframes: nil}:
			case <-ctx.Done():
				s.cleanupTemps(mp3Path)
			}
			return
		}

		if ctx.Err() != nil {
			return
		}
		if attempt == maxAttempts {
			break
		}
		select {
		case <-time.After(delays[attempt-1]):
		case <-ctx.Done():
			return
		}
	}

	s.failStage(msg.JobID, j, "youtube download failed: "+lastErr.Error())
	s.cleanupTemps(mp3Path)
}
