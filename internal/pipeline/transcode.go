package pipeline

import (
	"context"
	"errors"
	"os"
	"time"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
)

// StartTranscodeWorkers launches n Transcode-stage workers.
func StartTranscodeWorkers(ctx context.Context, s *Scope, n int) {
	runPool(ctx, n, s.Channels.Conversion, s.runTranscode)
}

const mp3Bitrate = 128

func (s *Scope) runTranscode(ctx context.Context, msg ConversionMsg) {
	j := eventlog.NewJob(msg.JobID, nil, store.StatusConverting, 1)

	if err := s.Store.UpdateJobStatus(msg.JobID, store.StatusConverting, ""); err != nil {
		s.Log.Error().Err(err).Str("job_id", msg.JobID).Msg("failed to transition to Converting")
		s.cleanupTemps(msg.VideoPath)
		return
	}

	s.Throttle.WaitIfNeeded(ctx)

	stopHeartbeat := s.heartbeat(ctx, msg.JobID)
	defer stopHeartbeat()

	s.Events.ConversionStarted(j)

	info, err := s.Adapters.Transcoder.GetMediaInfo(ctx, msg.VideoPath)
	if err != nil {
		s.failStage(msg.JobID, j, "failed to read media info: "+err.Error())
		s.cleanupTemps(msg.VideoPath)
		return
	}
	if info.AudioStreams < 1 {
		s.failStage(msg.JobID, j, "source video has no audio stream")
		s.cleanupTemps(msg.VideoPath)
		return
	}
	if err := s.Store.UpdateJobDuration(msg.JobID, info.Duration.Seconds()); err != nil {
		s.Log.Warn().Err(err).Str("job_id", msg.JobID).Msg("failed to persist duration")
	}

	mp3Path, err := s.Workspace.CreateTempFile(".mp3")
	if err != nil {
		s.failStage(msg.JobID, j, "failed to allocate temp file: "+err.Error())
		s.cleanupTemps(msg.VideoPath)
		return
	}

	const maxAttempts = 3 // initial attempt + 2 retries
	delays := []time.Duration{5 * time.Second, 10 * time.Second}
	progress := progressThrottle{}
	started := time.Now()

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		lastErr = s.Adapters.Transcoder.ExtractAudioToMp3(attemptCtx, msg.VideoPath, mp3Path, mp3Bitrate, func(frac float64) {
			if progress.shouldLog(frac * 100) {
				s.Events.Log(store.ConversionLogEvent{
					JobID: msg.JobID, EventType: store.EventConversionProgress,
					JobStatus: store.StatusConverting, ProcessingRateBytesPerSecond: frac * 100,
				})
			}
		})
		cancel()

		if lastErr == nil {
			s.Events.ConversionCompleted(j, time.Since(started).Seconds())
			select {
			case s.Channels.AudioAnalysis <- AudioAnalysisMsg{JobID: msg.JobID, Mp3Path: mp3Path, VideoPath: msg.VideoPath, VideoHash: msg.VideoHash}:
			case <-ctx.Done():
				s.cleanupTemps(msg.VideoPath, mp3Path)
			}
			return
		}

		if ctx.Err() != nil {
			return
		}
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			s.failStage(msg.JobID, j, "transcode exceeded the per-attempt deadline")
			s.cleanupTemps(msg.VideoPath, mp3Path)
			return
		}

		os.Remove(mp3Path)
		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(delays[attempt-1]):
		case <-ctx.Done():
			return
		}
	}

	s.failStage(msg.JobID, j, "transcode failed: "+lastErr.Error())
	s.cleanupTemps(msg.VideoPath, mp3Path)
}
