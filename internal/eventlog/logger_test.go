package eventlog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"video-pipeline/internal/store"
)

func newTestLogger(t *testing.T) (*Logger, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return New(st, zerolog.Nop()), st
}

func TestLogFlushesOnCount(t *testing.T) {
	l, st := newTestLogger(t)

	if err := st.CreateJob(&store.ConversionJob{JobID: "job-1", VideoURL: "u"}); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	for i := 0; i < flushCount; i++ {
		l.DownloadProgress(NewJob("job-1", nil, store.StatusDownloading, 1), float64(i))
	}

	events, err := st.GetLogsByJobID("job-1")
	if err != nil {
		t.Fatalf("GetLogsByJobID() error = %v", err)
	}
	if len(events) != flushCount {
		t.Errorf("events = %d, want %d (count-triggered flush)", len(events), flushCount)
	}
}

func TestStopFlushesRemaining(t *testing.T) {
	l, st := newTestLogger(t)

	if err := st.CreateJob(&store.ConversionJob{JobID: "job-2", VideoURL: "u"}); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	l.Start()
	l.JobCompleted(NewJob("job-2", nil, store.StatusCompleted, 1))
	l.Stop()

	events, err := st.GetLogsByJobID("job-2")
	if err != nil {
		t.Fatalf("GetLogsByJobID() error = %v", err)
	}
	if len(events) != 1 || events[0].EventType != store.EventJobCompleted {
		t.Errorf("events = %+v, want one JobCompleted", events)
	}
}

func TestIntervalFlush(t *testing.T) {
	l, st := newTestLogger(t)

	if err := st.CreateJob(&store.ConversionJob{JobID: "job-3", VideoURL: "u"}); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}

	l.Start()
	defer l.Stop()

	l.Error(NewJob("job-3", nil, store.StatusFailed, 1), "boom")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		events, err := st.GetLogsByJobID("job-3")
		if err != nil {
			t.Fatalf("GetLogsByJobID() error = %v", err)
		}
		if len(events) == 1 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("event was not flushed within the interval")
}
