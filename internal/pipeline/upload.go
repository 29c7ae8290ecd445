package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
)

// StartUploadWorkers launches n Upload-stage workers.
func StartUploadWorkers(ctx context.Context, s *Scope, n int) {
	runPool(ctx, n, s.Channels.Upload, s.runUpload)
}

const uploadRetries = 3

func (s *Scope) runUpload(ctx context.Context, msg UploadMsg) {
	j := eventlog.NewJob(msg.JobID, nil, store.StatusUploading, 1)
	allTemps := append([]string{msg.VideoPath, msg.Mp3Path}, keyframeLocalPaths(msg.Keyframes)...)
	defer s.cleanupTemps(allTemps...)

	if err := s.Store.UpdateJobStatus(msg.JobID, store.StatusUploading, ""); err != nil {
		s.Log.Error().Err(err).Str("job_id", msg.JobID).Msg("failed to transition to Uploading")
		return
	}

	stopHeartbeat := s.heartbeat(ctx, msg.JobID)
	defer stopHeartbeat()

	s.Events.UploadStarted(j)

	var videoURL, mp3URL string
	keyframeURLs := make([]string, len(msg.Keyframes))

	g, gctx := errgroup.WithContext(ctx)
	if msg.VideoPath != "" {
		// YouTube-sourced jobs arrive with an empty VideoPath: the source
		// video is never re-uploaded, only its extracted audio (the YouTube
		// worker forwards no keyframes). videoURL stays "".
		g.Go(func() error {
			url, err := s.uploadWithRetry(gctx, msg.VideoPath, "video/mp4")
			if err != nil {
				return fmt.Errorf("video upload: %w", err)
			}
			videoURL = url
			return nil
		})
	}
	g.Go(func() error {
		url, err := s.uploadWithRetry(gctx, msg.Mp3Path, "audio/mpeg")
		if err != nil {
			return fmt.Errorf("mp3 upload: %w", err)
		}
		mp3URL = url
		return nil
	})
	for i, kf := range msg.Keyframes {
		i, kf := i, kf
		g.Go(func() error {
			url, err := s.uploadWithRetry(gctx, kf.URL, "image/jpeg")
			if err != nil {
				return fmt.Errorf("keyframe %d upload: %w", kf.FrameNumber, err)
			}
			keyframeURLs[i] = url
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.failStage(msg.JobID, j, (&ResourceExhaustedError{Err: err}).Error())
		return
	}

	finalKeyframes := make([]store.Keyframe, len(msg.Keyframes))
	for i, kf := range msg.Keyframes {
		finalKeyframes[i] = store.Keyframe{URL: keyframeURLs[i], Timestamp: kf.Timestamp, FrameNumber: kf.FrameNumber}
	}

	contentType := "audio/mpeg"
	sizePath := msg.Mp3Path
	if msg.VideoPath != "" {
		contentType = "video/mp4"
		sizePath = msg.VideoPath
	}
	var sizeBytes int64
	if info, err := os.Stat(sizePath); err == nil {
		sizeBytes = info.Size()
	}

	var durationSeconds float64
	var audioAnalysisJSON string
	if job, err := s.Store.GetJobByID(msg.JobID); err == nil {
		durationSeconds = job.DurationSeconds
		audioAnalysisJSON = job.AudioAnalysisJSON
	} else {
		s.Log.Warn().Err(err).Str("job_id", msg.JobID).Msg("failed to read job row for media cache upsert")
	}

	item := &store.MediaStorageItem{
		VideoHash: msg.VideoHash, VideoURL: videoURL, AudioURL: mp3URL,
		DurationSeconds: durationSeconds, FileSizeBytes: sizeBytes, ContentType: contentType,
		AudioAnalysisJSON: audioAnalysisJSON,
	}
	if marshaled, err := marshalKeyframes(finalKeyframes); err == nil {
		item.KeyframesJSON = marshaled
	}
	if _, err := s.Store.SaveMediaItem(item); err != nil {
		s.Log.Warn().Err(err).Str("job_id", msg.JobID).Msg("failed to upsert media cache entry")
	}

	if err := s.Store.CompleteUpload(msg.JobID, videoURL, mp3URL, finalKeyframes); err != nil {
		s.Log.Error().Err(err).Str("job_id", msg.JobID).Msg("failed to complete job after upload")
		return
	}

	s.Events.UploadCompleted(j, mp3URL)
	s.Events.JobCompleted(j)
}

func (s *Scope) uploadWithRetry(ctx context.Context, path, contentType string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < uploadRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		url, err := s.Adapters.ObjectStore.Upload(ctx, path, contentType)
		if err == nil {
			return url, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func keyframeLocalPaths(keyframes []store.Keyframe) []string {
	paths := make([]string, len(keyframes))
	for i, kf := range keyframes {
		paths[i] = kf.URL
	}
	return paths
}
