// Package eventlog provides the batched, best-effort event logger that
// feeds progress and diagnostics. Only the call that fills the queue waits
// on store I/O.
package eventlog

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-pipeline/internal/store"
)

const (
	flushCount    = 200
	flushInterval = time.Second
	flushRetries  = 2
)

// Logger batches ConversionLogEvent writes and flushes them on a count or
// interval trigger, whichever comes first. Log enqueues and returns without
// store I/O, except for the call that brings the queue to flushCount: that
// call writes the whole batch to the store before it returns.
type Logger struct {
	store  *store.Store
	log    zerolog.Logger
	mu     sync.Mutex
	queue  []store.ConversionLogEvent
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Logger. Call Start to begin the flush loop and Stop to
// drain it on shutdown.
func New(st *store.Store, log zerolog.Logger) *Logger {
	return &Logger{
		store:  st,
		log:    log.With().Str("component", "eventlog").Logger(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the periodic flush loop until Stop is called.
func (l *Logger) Start() {
	go l.run()
}

// Stop signals the flush loop to exit after one final flush.
func (l *Logger) Stop() {
	close(l.stopCh)
	<-l.doneCh
}

func (l *Logger) run() {
	defer close(l.doneCh)
	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.flush()
		case <-l.stopCh:
			l.flush()
			return
		}
	}
}

// Log enqueues an event for the next flush, stamping Timestamp with the
// current time when it is zero. JobStatus and AttemptNumber are filled in
// by the per-event-type helpers below from their JobRef.
func (l *Logger) Log(event store.ConversionLogEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	l.mu.Lock()
	l.queue = append(l.queue, event)
	shouldFlush := len(l.queue) >= flushCount
	l.mu.Unlock()

	if shouldFlush {
		l.flush()
	}
}

func (l *Logger) flush() {
	l.mu.Lock()
	if len(l.queue) == 0 {
		l.mu.Unlock()
		return
	}
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	var err error
	for attempt := 0; attempt <= flushRetries; attempt++ {
		if err = l.store.CreateLogBatch(batch); err == nil {
			return
		}
	}
	l.log.Warn().Err(err).Int("dropped", len(batch)).Msg("dropping event batch after failed flush retries")
}

// JobRef carries the identity fields every helper below stamps onto its event.
type JobRef struct {
	JobID     string
	BatchID   *string
	Status    store.JobStatus
	Attempt   int
}

// DownloadStarted logs the start of a download attempt.
func (l *Logger) DownloadStarted(j JobRef, videoURL string) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventDownloadStarted,
		JobStatus: j.Status, AttemptNumber: j.Attempt, VideoURL: videoURL,
		Message: "download started",
	})
}

// DownloadProgress logs a throttled progress update.
func (l *Logger) DownloadProgress(j JobRef, rateBps float64) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventDownloadProgress,
		JobStatus: j.Status, AttemptNumber: j.Attempt, ProcessingRateBytesPerSecond: rateBps,
	})
}

// DownloadCompleted logs a successful download.
func (l *Logger) DownloadCompleted(j JobRef, fileSize int64) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventDownloadCompleted,
		JobStatus: j.Status, AttemptNumber: j.Attempt, FileSizeBytes: fileSize,
		Message: "download completed",
	})
}

// ConversionStarted logs the start of transcoding.
func (l *Logger) ConversionStarted(j JobRef) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventConversionStarted,
		JobStatus: j.Status, AttemptNumber: j.Attempt, Message: "transcode started",
	})
}

// ConversionCompleted logs a successful transcode.
func (l *Logger) ConversionCompleted(j JobRef, durationSeconds float64) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventConversionCompleted,
		JobStatus: j.Status, AttemptNumber: j.Attempt, DurationSeconds: durationSeconds,
		Message: "transcode completed",
	})
}

// UploadStarted logs the start of the upload stage.
func (l *Logger) UploadStarted(j JobRef) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventUploadStarted,
		JobStatus: j.Status, AttemptNumber: j.Attempt, Message: "upload started",
	})
}

// UploadCompleted logs a successful upload.
func (l *Logger) UploadCompleted(j JobRef, mp3URL string) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventUploadCompleted,
		JobStatus: j.Status, AttemptNumber: j.Attempt, Mp3URL: mp3URL,
		Message: "upload completed",
	})
}

// JobCompleted logs the terminal completion of a job.
func (l *Logger) JobCompleted(j JobRef) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventJobCompleted,
		JobStatus: store.StatusCompleted, AttemptNumber: j.Attempt, Message: "job completed",
	})
}

// Error logs a terminal failure.
func (l *Logger) Error(j JobRef, message string) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventError,
		JobStatus: store.StatusFailed, AttemptNumber: j.Attempt, ErrorMessage: message,
	})
}

// Warning logs a non-fatal anomaly (e.g. a degraded optional adapter).
func (l *Logger) Warning(j JobRef, message string) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventWarning,
		JobStatus: j.Status, AttemptNumber: j.Attempt, Message: message,
	})
}

// CacheHit logs a content-address cache hit that short-circuited the
// pipeline.
func (l *Logger) CacheHit(j JobRef) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventCacheHit,
		JobStatus: store.StatusCompleted, AttemptNumber: j.Attempt, Message: "cache hit",
	})
}

// JobRecovered logs that the Recovery service reset a stale job.
func (l *Logger) JobRecovered(j JobRef) {
	l.Log(store.ConversionLogEvent{
		JobID: j.JobID, BatchID: j.BatchID, EventType: store.EventJobRecovered,
		JobStatus: store.StatusPending, AttemptNumber: j.Attempt, Message: "job recovered",
	})
}

// NewJob builds the job identity carried by every helper above.
func NewJob(jobID string, batchID *string, status store.JobStatus, attempt int) JobRef {
	return JobRef{JobID: jobID, BatchID: batchID, Status: status, Attempt: attempt}
}
