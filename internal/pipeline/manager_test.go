package pipeline

import (
	"context"
	"testing"

	"video-pipeline/internal/store"
)

func TestEnqueueBatchRejectsEmptyAndOversized(t *testing.T) {
	s := newTestScope(t)
	m := NewManager(s)

	if _, err := m.EnqueueBatch(context.Background(), nil); err != ErrInvalidInput {
		if err == nil {
			t.Fatal("EnqueueBatch(nil) succeeded, want ErrInvalidInput")
		}
	}

	urls := make([]string, 101)
	for i := range urls {
		urls[i] = "http://example/a.mp4"
	}
	if _, err := m.EnqueueBatch(context.Background(), urls); err == nil {
		t.Fatal("EnqueueBatch(101 urls) succeeded, want error")
	}
}

func TestEnqueueBatchCreatesJobsAndDispatches(t *testing.T) {
	s := newTestScope(t)
	m := NewManager(s)

	result, err := m.EnqueueBatch(context.Background(), []string{"http://example/a.mp4", "http://example/b.mp4"})
	if err != nil {
		t.Fatalf("EnqueueBatch() error = %v", err)
	}
	if len(result.Jobs) != 2 {
		t.Fatalf("Jobs = %d, want 2", len(result.Jobs))
	}

	batch, err := m.GetBatch(result.BatchID)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if len(batch.Jobs) != 2 {
		t.Errorf("batch.Jobs = %d, want 2", len(batch.Jobs))
	}
	if batch.Status != store.StatusPending {
		t.Errorf("batch.Status = %q, want Pending", batch.Status)
	}

	for range result.Jobs {
		select {
		case <-s.Channels.Download:
		default:
			t.Error("expected a message on the Download channel")
		}
	}
}

func TestAggregateBatchStatus(t *testing.T) {
	cases := []struct {
		name     string
		statuses []store.JobStatus
		want     store.JobStatus
	}{
		{"none", nil, store.StatusPending},
		{"all failed", []store.JobStatus{store.StatusFailed, store.StatusFailed}, store.StatusFailed},
		{"mixed in progress", []store.JobStatus{store.StatusCompleted, store.StatusDownloading}, store.StatusPending},
		{"mixed terminal", []store.JobStatus{store.StatusCompleted, store.StatusFailed}, store.StatusCompleted},
		{"all completed", []store.JobStatus{store.StatusCompleted, store.StatusCompleted}, store.StatusCompleted},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := aggregateBatchStatus(c.statuses); got != c.want {
				t.Errorf("aggregateBatchStatus(%v) = %q, want %q", c.statuses, got, c.want)
			}
		})
	}
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestScope(t)
	m := NewManager(s)

	if _, err := m.GetJob("missing"); err != ErrNotFound {
		t.Errorf("GetJob(missing) error = %v, want ErrNotFound", err)
	}
}
