package recovery

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/pipeline"
	"video-pipeline/internal/store"
	"video-pipeline/internal/throttle"
	"video-pipeline/internal/workspace"
)

type noopValidator struct{}

func (noopValidator) IsSyntaxValid(string) bool                        { return true }
func (noopValidator) IsContentAcceptable(context.Context, string) (bool, error) { return true, nil }
func (noopValidator) IsYoutube(string) bool                            { return false }

func newTestScope(t *testing.T) *pipeline.Scope {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	ws, err := workspace.New(filepath.Join(t.TempDir(), "ws"), zerolog.Nop())
	if err != nil {
		t.Fatalf("workspace.New() error = %v", err)
	}

	events := eventlog.New(st, zerolog.Nop())
	events.Start()
	t.Cleanup(events.Stop)

	return &pipeline.Scope{
		Store:     st,
		Events:    events,
		Workspace: ws,
		Throttle:  throttle.New(0.85, 30*time.Second),
		Channels:  pipeline.NewChannels(),
		Log:       zerolog.Nop(),
		Adapters:  pipeline.Adapters{UrlValidator: noopValidator{}},
	}
}

func TestForceRecoveryLeavesFreshJobAlone(t *testing.T) {
	scope := newTestScope(t)
	svc := New(scope, time.Hour, 10*time.Minute, 3, 24*time.Hour, 30)

	job := &store.ConversionJob{JobID: "job-1", VideoURL: "http://example/a.mp4"}
	if err := scope.Store.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if _, err := scope.Store.TryUpdateStatusIf("job-1", store.StatusPending, store.StatusDownloading); err != nil {
		t.Fatalf("TryUpdateStatusIf() error = %v", err)
	}
	staleTime := time.Now().Add(-time.Hour)
	if err := scope.Store.Heartbeat("job-1"); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}
	_ = staleTime

	// Heartbeat has just stamped LastAttemptAt, so with a 10m
	// staleThreshold the Downloading job is not stale and is left alone.
	recovered, err := svc.ForceRecovery(context.Background())
	if err != nil {
		t.Fatalf("ForceRecovery() error = %v", err)
	}
	if recovered != 0 {
		t.Errorf("recovered = %d, want 0 (job's heartbeat is fresh, staleThreshold is 10m)", recovered)
	}
}

func TestForceRecoveryWithNoStaleJobsReturnsZero(t *testing.T) {
	scope := newTestScope(t)
	svc := New(scope, time.Hour, 10*time.Minute, 3, 24*time.Hour, 30)

	recovered, err := svc.ForceRecovery(context.Background())
	if err != nil {
		t.Fatalf("ForceRecovery() error = %v", err)
	}
	if recovered != 0 {
		t.Errorf("recovered = %d, want 0", recovered)
	}
}

func TestRecoverJobMarksFailedAfterMaxAttempts(t *testing.T) {
	scope := newTestScope(t)
	svc := New(scope, time.Hour, 10*time.Minute, 1, 24*time.Hour, 30)

	job := &store.ConversionJob{JobID: "job-2", VideoURL: "http://example/a.mp4"}
	if err := scope.Store.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	job.ProcessingAttempts = 1 // already at the cap

	if recovered := svc.recoverJob(job); recovered {
		t.Error("recoverJob() returned true, want false (max attempts exceeded)")
	}

	got, err := scope.Store.GetJobByID("job-2")
	if err != nil {
		t.Fatalf("GetJobByID() error = %v", err)
	}
	if got.Status != store.StatusFailed {
		t.Errorf("Status = %q, want Failed", got.Status)
	}
}
