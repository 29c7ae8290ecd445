package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
)

// StartAudioAnalyzeWorkers launches n AudioAnalyze-stage workers.
func StartAudioAnalyzeWorkers(ctx context.Context, s *Scope, n int) {
	runPool(ctx, n, s.Channels.AudioAnalysis, s.runAudioAnalyze)
}

func (s *Scope) runAudioAnalyze(ctx context.Context, msg AudioAnalysisMsg) {
	j := eventlog.NewJob(msg.JobID, nil, store.StatusAudioAnalyzing, 1)

	if err := s.Store.UpdateJobStatus(msg.JobID, store.StatusAudioAnalyzing, ""); err != nil {
		s.Log.Error().Err(err).Str("job_id", msg.JobID).Msg("failed to transition to AudioAnalyzing")
		s.cleanupTemps(msg.VideoPath, msg.Mp3Path)
		return
	}

	if s.Adapters.AudioAnalyzer == nil {
		s.Events.Warning(j, "audio analyzer adapter unavailable, skipping analysis")
		s.forwardToKeyframe(ctx, msg)
		return
	}

	s.Throttle.WaitIfNeeded(ctx)

	stopHeartbeat := s.heartbeat(ctx, msg.JobID)
	defer stopHeartbeat()

	const maxAttempts = 3
	delays := []time.Duration{3 * time.Second, 6 * time.Second}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, 3*time.Minute)
		result, err := s.Adapters.AudioAnalyzer.AnalyzeFromFile(attemptCtx, msg.Mp3Path)
		cancel()

		if err == nil && result != nil && result.DetectedBeatCount > 0 {
			analysis := &store.AudioAnalysis{
				BPM: result.BPM, Confidence: result.Confidence,
				BeatTimestamps: result.BeatTimestamps, Intervals: result.Intervals,
				DetectedBeatCount: result.DetectedBeatCount, Regularity: result.Regularity,
			}
			if saveErr := s.Store.UpdateJobAudioAnalysis(msg.JobID, analysis); saveErr != nil {
				s.Log.Warn().Err(saveErr).Str("job_id", msg.JobID).Msg("failed to persist audio analysis")
			}
			s.forwardToKeyframe(ctx, msg)
			return
		}

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			lastErr = errors.New("audio analyzer returned an empty result")
		} else {
			lastErr = err
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

	// Analysis is a best-effort enrichment, not a required artifact: after
	// exhausting retries, degrade to pass-through instead of failing the job.
	s.Events.Warning(j, fmt.Sprintf("audio analysis failed after retries, continuing without it: %v", lastErr))
	s.forwardToKeyframe(ctx, msg)
}

func (s *Scope) forwardToKeyframe(ctx context.Context, msg AudioAnalysisMsg) {
	select {
	case s.Channels.KeyframeExtraction <- KeyframeMsg{JobID: msg.JobID, Mp3Path: msg.Mp3Path, VideoPath: msg.VideoPath, VideoHash: msg.VideoHash}:
	case <-ctx.Done():
		s.cleanupTemps(msg.VideoPath, msg.Mp3Path)
	}
}
