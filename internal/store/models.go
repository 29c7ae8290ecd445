// Package store provides durable, gorm-backed persistence for jobs,
// batches, the content-addressed media cache, and the event log.
package store

import "time"

// JobStatus is the lifecycle state of a ConversionJob.
type JobStatus string

const (
	StatusPending             JobStatus = "Pending"
	StatusDownloading         JobStatus = "Downloading"
	StatusConverting          JobStatus = "Converting"
	StatusAudioAnalyzing      JobStatus = "AudioAnalyzing"
	StatusExtractingKeyframes JobStatus = "ExtractingKeyframes"
	StatusUploading           JobStatus = "Uploading"
	StatusCompleted           JobStatus = "Completed"
	StatusFailed              JobStatus = "Failed"
)

// IsTerminal reports whether s is Completed or Failed.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Keyframe is one sampled video frame, ordered by FrameNumber.
type Keyframe struct {
	URL         string  `json:"url"`
	Timestamp   float64 `json:"timestamp"`
	FrameNumber int     `json:"frameNumber"`
}

// AudioAnalysis is the beat/tempo analysis result for a job's MP3.
type AudioAnalysis struct {
	BPM               float64   `json:"bpm"`
	Confidence        float64   `json:"confidence"`
	BeatTimestamps    []float64 `json:"beatTimestamps"`
	Intervals         []float64 `json:"intervals"`
	DetectedBeatCount int       `json:"detectedBeatCount"`
	Regularity        float64   `json:"regularity"`
}

// ConversionJob is the unit of work: one video URL in, one MP3 and its
// metadata out.
type ConversionJob struct {
	JobID              string     `gorm:"primaryKey;column:job_id" json:"jobId"`
	BatchID            *string    `gorm:"index;column:batch_id" json:"batchId,omitempty"`
	VideoURL           string     `gorm:"column:video_url" json:"videoUrl"`
	VideoHash          string     `gorm:"index;column:video_hash" json:"videoHash,omitempty"`
	NewVideoURL        string     `gorm:"column:new_video_url" json:"newVideoUrl,omitempty"`
	Mp3URL             string     `gorm:"column:mp3_url" json:"mp3Url,omitempty"`
	KeyframesJSON      string     `gorm:"type:text;column:keyframes" json:"-"`
	AudioAnalysisJSON  string     `gorm:"type:text;column:audio_analysis" json:"-"`
	DurationSeconds    float64    `gorm:"column:duration_seconds" json:"durationSeconds,omitempty"`
	FileSizeBytes      int64      `gorm:"column:file_size_bytes" json:"fileSizeBytes,omitempty"`
	ContentType        string     `gorm:"column:content_type" json:"contentType,omitempty"`
	Status             JobStatus  `gorm:"index;column:status;default:Pending" json:"status"`
	CreatedAt          time.Time  `gorm:"index;autoCreateTime;column:created_at" json:"createdAt"`
	LastAttemptAt      time.Time  `gorm:"column:last_attempt_at" json:"lastAttemptAt"`
	CompletedAt        *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
	ProcessingAttempts int        `gorm:"column:processing_attempts" json:"processingAttempts"`
	ErrorMessage        string    `gorm:"column:error_message" json:"errorMessage,omitempty"`
}

func (ConversionJob) TableName() string { return "conversion_jobs" }

// BatchJob groups the jobs created by one submission.
type BatchJob struct {
	BatchID     string     `gorm:"primaryKey;column:batch_id" json:"batchId"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

func (BatchJob) TableName() string { return "batch_jobs" }

// MediaStorageItem is the content-addressed cache, keyed by VideoHash.
type MediaStorageItem struct {
	VideoHash         string    `gorm:"primaryKey;column:video_hash" json:"videoHash"`
	VideoURL          string    `gorm:"column:video_url" json:"videoUrl"`
	AudioURL          string    `gorm:"column:audio_url" json:"audioUrl"`
	KeyframesJSON     string    `gorm:"type:text;column:keyframes" json:"-"`
	AudioAnalysisJSON string    `gorm:"type:text;column:audio_analysis" json:"-"`
	DurationSeconds   float64   `gorm:"column:duration_seconds" json:"durationSeconds"`
	FileSizeBytes     int64     `gorm:"column:file_size_bytes" json:"fileSizeBytes"`
	ContentType       string    `gorm:"column:content_type" json:"contentType"`
	CreatedAt         time.Time `gorm:"autoCreateTime;column:created_at" json:"createdAt"`
	LastAccessedAt    time.Time `gorm:"column:last_accessed_at" json:"lastAccessedAt"`
}

func (MediaStorageItem) TableName() string { return "media_items" }

// EventType names the closed set of ConversionLogEvent kinds. Ordinals are
// not relied upon, but the set of names is stable for querying.
type EventType string

const (
	EventJobCreated         EventType = "JobCreated"
	EventJobQueued          EventType = "JobQueued"
	EventStatusChanged       EventType = "StatusChanged"
	EventDownloadStarted     EventType = "DownloadStarted"
	EventDownloadProgress    EventType = "DownloadProgress"
	EventDownloadCompleted   EventType = "DownloadCompleted"
	EventConversionStarted   EventType = "ConversionStarted"
	EventConversionProgress  EventType = "ConversionProgress"
	EventConversionCompleted EventType = "ConversionCompleted"
	EventUploadStarted       EventType = "UploadStarted"
	EventUploadProgress      EventType = "UploadProgress"
	EventUploadCompleted     EventType = "UploadCompleted"
	EventJobCompleted        EventType = "JobCompleted"
	EventError               EventType = "Error"
	EventWarning             EventType = "Warning"
	EventCacheHit            EventType = "CacheHit"
	EventJobRecovered        EventType = "JobRecovered"
	EventJobCancelled        EventType = "JobCancelled"
	EventJobDelayed          EventType = "JobDelayed"
	EventJobRetry            EventType = "JobRetry"
	EventSystemInfo          EventType = "SystemInfo"
)

// ConversionLogEvent is one append-only entry in the event log.
type ConversionLogEvent struct {
	ID                           uint      `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	JobID                        string    `gorm:"index;column:job_id" json:"jobId"`
	BatchID                      *string   `gorm:"index;column:batch_id" json:"batchId,omitempty"`
	EventType                    EventType `gorm:"index;column:event_type" json:"eventType"`
	JobStatus                    JobStatus `gorm:"column:job_status" json:"jobStatus"`
	Timestamp                    time.Time `gorm:"index;column:timestamp" json:"timestamp"`
	Message                      string    `gorm:"column:message" json:"message,omitempty"`
	Details                      string    `gorm:"type:text;column:details" json:"details,omitempty"`
	ErrorMessage                 string    `gorm:"column:error_message" json:"errorMessage,omitempty"`
	ErrorStackTrace              string    `gorm:"type:text;column:error_stack_trace" json:"errorStackTrace,omitempty"`
	VideoURL                     string    `gorm:"column:video_url" json:"videoUrl,omitempty"`
	Mp3URL                       string    `gorm:"column:mp3_url" json:"mp3Url,omitempty"`
	FileSizeBytes                int64     `gorm:"column:file_size_bytes" json:"fileSizeBytes,omitempty"`
	DurationSeconds              float64   `gorm:"column:duration_seconds" json:"durationSeconds,omitempty"`
	ProcessingRateBytesPerSecond float64   `gorm:"column:processing_rate_bps" json:"processingRateBytesPerSecond,omitempty"`
	Step                         int       `gorm:"column:step" json:"step,omitempty"`
	TotalSteps                   int       `gorm:"column:total_steps" json:"totalSteps,omitempty"`
	AttemptNumber                int       `gorm:"column:attempt_number" json:"attemptNumber,omitempty"`
	QueueTimeMs                  int64     `gorm:"column:queue_time_ms" json:"queueTimeMs,omitempty"`
	WaitReason                   string    `gorm:"column:wait_reason" json:"waitReason,omitempty"`
}

func (ConversionLogEvent) TableName() string { return "conversion_logs" }
