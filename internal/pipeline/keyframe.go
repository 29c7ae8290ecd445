package pipeline

import (
	"context"
	"fmt"
	"time"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
)

// StartKeyframeWorkers launches n Keyframe-stage workers.
func StartKeyframeWorkers(ctx context.Context, s *Scope, n int) {
	runPool(ctx, n, s.Channels.KeyframeExtraction, s.runKeyframe)
}

func (s *Scope) runKeyframe(ctx context.Context, msg KeyframeMsg) {
	j := eventlog.NewJob(msg.JobID, nil, store.StatusExtractingKeyframes, 1)

	if err := s.Store.UpdateJobStatus(msg.JobID, store.StatusExtractingKeyframes, ""); err != nil {
		s.Log.Error().Err(err).Str("job_id", msg.JobID).Msg("failed to transition to ExtractingKeyframes")
		s.cleanupTemps(msg.VideoPath, msg.Mp3Path)
		return
	}

	stopHeartbeat := s.heartbeat(ctx, msg.JobID)
	defer stopHeartbeat()

	info, err := s.Adapters.Transcoder.GetMediaInfo(ctx, msg.VideoPath)
	if err != nil {
		s.failStage(msg.JobID, j, "failed to read media duration: "+err.Error())
		s.cleanupTemps(msg.VideoPath, msg.Mp3Path)
		return
	}
	if saveErr := s.Store.UpdateJobDuration(msg.JobID, info.Duration.Seconds()); saveErr != nil {
		s.Log.Warn().Err(saveErr).Str("job_id", msg.JobID).Msg("failed to persist duration")
	}

	frameCount := s.Config.Keyframe.FrameCount
	if frameCount < 1 {
		frameCount = 10
	}
	quality := s.Config.Keyframe.Quality

	var keyframes []store.Keyframe
	var tempPaths []string
	for i := 1; i <= frameCount; i++ {
		ts := time.Duration(float64(info.Duration) * float64(i) / float64(frameCount+1))

		framePath, err := s.Workspace.CreateTempFile(fmt.Sprintf("-%s-frame%02d.jpg", msg.JobID, i))
		if err != nil {
			s.Log.Warn().Err(err).Str("job_id", msg.JobID).Int("frame", i).Msg("failed to allocate keyframe temp file")
			continue
		}
		tempPaths = append(tempPaths, framePath)

		const maxFrameAttempts = 2
		var extracted bool
		for attempt := 1; attempt <= maxFrameAttempts; attempt++ {
			if err := s.Adapters.FrameExtractor.ExtractFrame(ctx, msg.VideoPath, ts, framePath, quality); err == nil {
				extracted = true
				break
			}
			if ctx.Err() != nil {
				s.cleanupTemps(msg.VideoPath, msg.Mp3Path)
				s.cleanupTemps(tempPaths...)
				return
			}
			if attempt < maxFrameAttempts {
				select {
				case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
				case <-ctx.Done():
					s.cleanupTemps(msg.VideoPath, msg.Mp3Path)
					s.cleanupTemps(tempPaths...)
					return
				}
			}
		}
		if !extracted {
			// Missing-frame-after-retries is tolerated: that index is
			// simply absent from the result.
			continue
		}

		keyframes = append(keyframes, store.Keyframe{
			URL:         framePath,
			Timestamp:   ts.Seconds(),
			FrameNumber: i,
		})
	}

	if err := s.Store.UpdateJobKeyframes(msg.JobID, keyframes); err != nil {
		s.Log.Warn().Err(err).Str("job_id", msg.JobID).Msg("failed to persist keyframes")
	}

	select {
	case s.Channels.Upload <- UploadMsg{
		JobID: msg.JobID, Mp3Path: msg.Mp3Path, VideoPath: msg.VideoPath,
		VideoHash: msg.VideoHash, Keyframes: keyframes,
	}:
	case <-ctx.Done():
		s.cleanupTemps(msg.VideoPath, msg.Mp3Path)
		s.cleanupTemps(tempPaths...)
	}
}
