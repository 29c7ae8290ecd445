package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetJob(t *testing.T) {
	s := newTestStore(t)

	job := &ConversionJob{JobID: "job-1", VideoURL: "http://example/a.mp4"}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	got, err := s.GetJobByID("job-1")
	if err != nil {
		t.Fatalf("GetJobByID() error = %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Status = %q, want Pending", got.Status)
	}

	if _, err := s.GetJobByID("missing"); err != ErrNotFound {
		t.Errorf("GetJobByID(missing) error = %v, want ErrNotFound", err)
	}
}

func TestTryUpdateStatusIfClaimsOnce(t *testing.T) {
	s := newTestStore(t)
	job := &ConversionJob{JobID: "job-2", VideoURL: "http://example/a.mp4"}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	const attempts = 8
	var wg sync.WaitGroup
	claimed := make([]bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ok, err := s.TryUpdateStatusIf("job-2", StatusPending, StatusDownloading)
			if err != nil {
				t.Errorf("TryUpdateStatusIf() error = %v", err)
				return
			}
			claimed[i] = ok
		}(i)
	}
	wg.Wait()

	var successes int
	for _, ok := range claimed {
		if ok {
			successes++
		}
	}
	if successes != 1 {
		t.Errorf("successful claims = %d, want exactly 1", successes)
	}

	got, err := s.GetJobByID("job-2")
	if err != nil {
		t.Fatalf("GetJobByID() error = %v", err)
	}
	if got.Status != StatusDownloading {
		t.Errorf("Status = %q, want Downloading", got.Status)
	}
}

func TestGetStaleJobs(t *testing.T) {
	s := newTestStore(t)

	fresh := &ConversionJob{JobID: "fresh", VideoURL: "u", Status: StatusDownloading}
	stale := &ConversionJob{JobID: "stale", VideoURL: "u", Status: StatusDownloading}
	done := &ConversionJob{JobID: "done", VideoURL: "u", Status: StatusCompleted}

	for _, j := range []*ConversionJob{fresh, stale, done} {
		if err := s.CreateJob(j); err != nil {
			t.Fatalf("CreateJob(%s) error = %v", j.JobID, err)
		}
	}
	// CreateJob always stores Pending; move "done" to its terminal status.
	if err := s.UpdateJobStatus("done", StatusCompleted, ""); err != nil {
		t.Fatalf("UpdateJobStatus(done) error = %v", err)
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	if err := s.db.Model(&ConversionJob{}).Where("job_id = ?", "stale").
		Update("last_attempt_at", cutoff.Add(-time.Minute)).Error; err != nil {
		t.Fatalf("seed stale job: %v", err)
	}

	staleJobs, err := s.GetStaleJobs(cutoff)
	if err != nil {
		t.Fatalf("GetStaleJobs() error = %v", err)
	}
	if len(staleJobs) != 1 || staleJobs[0].JobID != "stale" {
		t.Errorf("GetStaleJobs() = %+v, want only job %q", staleJobs, "stale")
	}
}

func TestSaveMediaItemUpsert(t *testing.T) {
	s := newTestStore(t)

	item := &MediaStorageItem{VideoHash: "hash-1", AudioURL: "https://cdn/audio.mp3"}
	saved, err := s.SaveMediaItem(item)
	if err != nil {
		t.Fatalf("SaveMediaItem() error = %v", err)
	}
	if saved.AudioURL != "https://cdn/audio.mp3" {
		t.Errorf("AudioURL = %q", saved.AudioURL)
	}

	conflict := &MediaStorageItem{VideoHash: "hash-1", AudioURL: "https://cdn/other.mp3"}
	resolved, err := s.SaveMediaItem(conflict)
	if err != nil {
		t.Fatalf("SaveMediaItem() conflict error = %v", err)
	}
	if resolved.AudioURL != "https://cdn/audio.mp3" {
		t.Errorf("conflict resolution AudioURL = %q, want original value preserved", resolved.AudioURL)
	}
}

func TestPurgeOldLogs(t *testing.T) {
	s := newTestStore(t)

	job := &ConversionJob{JobID: "job-3", VideoURL: "u"}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	old := ConversionLogEvent{JobID: "job-3", EventType: EventJobCreated, Timestamp: time.Now().AddDate(0, 0, -40)}
	recent := ConversionLogEvent{JobID: "job-3", EventType: EventJobCompleted, Timestamp: time.Now()}
	if err := s.CreateLogBatch([]ConversionLogEvent{old, recent}); err != nil {
		t.Fatalf("CreateLogBatch() error = %v", err)
	}

	purged, err := s.PurgeOldLogs(30)
	if err != nil {
		t.Fatalf("PurgeOldLogs() error = %v", err)
	}
	if purged != 1 {
		t.Errorf("purged = %d, want 1", purged)
	}

	remaining, err := s.GetLogsByJobID("job-3")
	if err != nil {
		t.Fatalf("GetLogsByJobID() error = %v", err)
	}
	if len(remaining) != 1 || remaining[0].EventType != EventJobCompleted {
		t.Errorf("remaining logs = %+v, want only JobCompleted", remaining)
	}
}

func TestGetJobsByStatusAndCounts(t *testing.T) {
	s := newTestStore(t)

	pending := &ConversionJob{JobID: "p1", VideoURL: "u"}
	converting := &ConversionJob{JobID: "c1", VideoURL: "u", Status: StatusConverting}
	if err := s.CreateJob(pending); err != nil {
		t.Fatalf("CreateJob(pending) error = %v", err)
	}
	if err := s.CreateJob(converting); err != nil {
		t.Fatalf("CreateJob(converting) error = %v", err)
	}
	// CreateJob always stores Pending; move c1 on to Converting.
	if ok, err := s.TryUpdateStatusIf("c1", StatusPending, StatusConverting); err != nil || !ok {
		t.Fatalf("TryUpdateStatusIf(c1) = %v, %v", ok, err)
	}

	pendingJobs, err := s.GetJobsByStatus(StatusPending)
	if err != nil {
		t.Fatalf("GetJobsByStatus() error = %v", err)
	}
	if len(pendingJobs) != 1 || pendingJobs[0].JobID != "p1" {
		t.Errorf("GetJobsByStatus(Pending) = %+v, want only job p1", pendingJobs)
	}

	counts, err := s.GetJobsByStatusesCount([]JobStatus{StatusPending, StatusConverting, StatusCompleted})
	if err != nil {
		t.Fatalf("GetJobsByStatusesCount() error = %v", err)
	}
	if counts[StatusPending] != 1 || counts[StatusConverting] != 1 || counts[StatusCompleted] != 0 {
		t.Errorf("counts = %+v, want {Pending:1 Converting:1 Completed:0}", counts)
	}
}

func TestUpdateJobWholeRow(t *testing.T) {
	s := newTestStore(t)
	job := &ConversionJob{JobID: "job-4", VideoURL: "u"}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	got, err := s.GetJobByID("job-4")
	if err != nil {
		t.Fatalf("GetJobByID() error = %v", err)
	}
	got.Mp3URL = "https://cdn/a.mp3"
	got.Status = StatusCompleted
	if err := s.UpdateJob(got); err != nil {
		t.Fatalf("UpdateJob() error = %v", err)
	}

	reloaded, err := s.GetJobByID("job-4")
	if err != nil {
		t.Fatalf("GetJobByID() error = %v", err)
	}
	if reloaded.Mp3URL != "https://cdn/a.mp3" || reloaded.Status != StatusCompleted {
		t.Errorf("reloaded = %+v, want Mp3URL/Status updated", reloaded)
	}

	missing := &ConversionJob{JobID: "does-not-exist", VideoURL: "u"}
	if err := s.UpdateJob(missing); err != ErrNotFound {
		t.Errorf("UpdateJob(missing) error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAndArchiveMediaItem(t *testing.T) {
	s := newTestStore(t)
	item := &MediaStorageItem{VideoHash: "hash-2", AudioURL: "https://cdn/a.mp3"}
	if _, err := s.SaveMediaItem(item); err != nil {
		t.Fatalf("SaveMediaItem() error = %v", err)
	}

	item.AudioURL = "https://cdn/b.mp3"
	if err := s.UpdateItem(item); err != nil {
		t.Fatalf("UpdateItem() error = %v", err)
	}
	got, err := s.FindByVideoHash("hash-2")
	if err != nil {
		t.Fatalf("FindByVideoHash() error = %v", err)
	}
	if got.AudioURL != "https://cdn/b.mp3" {
		t.Errorf("AudioURL = %q, want updated value", got.AudioURL)
	}

	if err := s.ArchiveItem("hash-2"); err != nil {
		t.Fatalf("ArchiveItem() error = %v", err)
	}
	if _, err := s.FindByVideoHash("hash-2"); err != ErrNotFound {
		t.Errorf("FindByVideoHash() after archive error = %v, want ErrNotFound", err)
	}
	if err := s.ArchiveItem("hash-2"); err != ErrNotFound {
		t.Errorf("ArchiveItem(already gone) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteBatchOrphansJobs(t *testing.T) {
	s := newTestStore(t)
	batchID := "batch-1"
	if _, err := s.CreateBatch(batchID); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	job := &ConversionJob{JobID: "job-5", BatchID: &batchID, VideoURL: "u"}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	if err := s.DeleteBatch(batchID); err != nil {
		t.Fatalf("DeleteBatch() error = %v", err)
	}

	if _, err := s.GetBatchByID(batchID); err != ErrNotFound {
		t.Errorf("GetBatchByID() after delete error = %v, want ErrNotFound", err)
	}
	got, err := s.GetJobByID("job-5")
	if err != nil {
		t.Fatalf("GetJobByID() error = %v", err)
	}
	if got.BatchID != nil {
		t.Errorf("BatchID = %v, want nil after batch deletion", got.BatchID)
	}
}

func TestGetLogsByEventTypeAndStaleJobLogs(t *testing.T) {
	s := newTestStore(t)
	job := &ConversionJob{JobID: "job-6", VideoURL: "u", Status: StatusDownloading}
	if err := s.CreateJob(job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := s.db.Model(&ConversionJob{}).Where("job_id = ?", "job-6").
		Update("last_attempt_at", time.Now().Add(-time.Hour)).Error; err != nil {
		t.Fatalf("seed stale last_attempt_at: %v", err)
	}

	events := []ConversionLogEvent{
		{JobID: "job-6", EventType: EventDownloadStarted, Timestamp: time.Now().Add(-90 * time.Minute)},
		{JobID: "job-6", EventType: EventWarning, Timestamp: time.Now().Add(-90 * time.Minute)},
	}
	if err := s.CreateLogBatch(events); err != nil {
		t.Fatalf("CreateLogBatch() error = %v", err)
	}

	since := time.Now().Add(-2 * time.Hour)
	started, err := s.GetLogsByEventType(EventDownloadStarted, since)
	if err != nil {
		t.Fatalf("GetLogsByEventType() error = %v", err)
	}
	if len(started) != 1 || started[0].EventType != EventDownloadStarted {
		t.Errorf("GetLogsByEventType(DownloadStarted) = %+v, want one DownloadStarted event", started)
	}

	stale, err := s.GetStaleJobLogs(30)
	if err != nil {
		t.Fatalf("GetStaleJobLogs() error = %v", err)
	}
	if len(stale) != 1 || stale[0].JobID != "job-6" {
		t.Errorf("GetStaleJobLogs() = %+v, want one entry for job-6", stale)
	}
}
