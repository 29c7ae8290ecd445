package pipeline

import (
	"context"
	"testing"
	"time"

	"video-pipeline/internal/store"
)

func TestFullPipelineCompletesJob(t *testing.T) {
	s := newTestScope(t)
	m := NewManager(s)

	result, err := m.EnqueueBatch(context.Background(), []string{"http://example/a.mp4"})
	if err != nil {
		t.Fatalf("EnqueueBatch() error = %v", err)
	}
	jobID := result.Jobs[0].JobID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartDownloadWorkers(ctx, s, 1)
	StartTranscodeWorkers(ctx, s, 1)
	StartAudioAnalyzeWorkers(ctx, s, 1)
	StartKeyframeWorkers(ctx, s, 1)
	StartUploadWorkers(ctx, s, 1)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Store.GetJobByID(jobID)
		if err != nil {
			t.Fatalf("GetJobByID() error = %v", err)
		}
		if job.Status.IsTerminal() {
			if job.Status != store.StatusCompleted {
				t.Fatalf("job ended in %q, want Completed (error: %s)", job.Status, job.ErrorMessage)
			}
			if job.Mp3URL == "" || job.NewVideoURL == "" {
				t.Errorf("completed job missing URLs: %+v", job)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not reach a terminal state in time")
}

func TestYoutubeJobCompletesWithoutVideoReupload(t *testing.T) {
	s := newTestScope(t)
	m := NewManager(s)

	result, err := m.EnqueueBatch(context.Background(), []string{"http://example.youtube.com"})
	if err != nil {
		t.Fatalf("EnqueueBatch() error = %v", err)
	}
	jobID := result.Jobs[0].JobID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartYoutubeWorkers(ctx, s, 1)
	StartUploadWorkers(ctx, s, 1)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Store.GetJobByID(jobID)
		if err != nil {
			t.Fatalf("GetJobByID() error = %v", err)
		}
		if job.Status.IsTerminal() {
			if job.Status != store.StatusCompleted {
				t.Fatalf("job ended in %q, want Completed (error: %s)", job.Status, job.ErrorMessage)
			}
			if job.Mp3URL == "" {
				t.Error("completed youtube job missing Mp3URL")
			}
			if job.NewVideoURL != "" {
				t.Errorf("youtube job re-uploaded a video: NewVideoURL = %q, want empty", job.NewVideoURL)
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("youtube job did not reach a terminal state in time")
}

func TestTranscodeFailsJobWithNoAudioStream(t *testing.T) {
	s := newTestScope(t)
	s.Adapters.Transcoder = &fakeTranscoder{audioStreams: 0}
	m := NewManager(s)

	result, err := m.EnqueueBatch(context.Background(), []string{"http://example/a.mp4"})
	if err != nil {
		t.Fatalf("EnqueueBatch() error = %v", err)
	}
	jobID := result.Jobs[0].JobID

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartDownloadWorkers(ctx, s, 1)
	StartTranscodeWorkers(ctx, s, 1)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.Store.GetJobByID(jobID)
		if err != nil {
			t.Fatalf("GetJobByID() error = %v", err)
		}
		if job.Status == store.StatusFailed {
			if job.ErrorMessage == "" {
				t.Error("expected a non-empty ErrorMessage")
			}
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not fail in time")
}
