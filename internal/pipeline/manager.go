// Package pipeline implements the durable, multi-stage job pipeline: the
// Job Manager, stage channels, stage workers, and the per-message scope
// they share.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"video-pipeline/internal/eventlog"
	"video-pipeline/internal/store"
)

const maxBatchSize = 100

// JobSummary is the lightweight handle returned per job at intake time.
type JobSummary struct {
	JobID     string
	StatusURL string
}

// EnqueueResult is the Job Manager's response to a batch submission.
type EnqueueResult struct {
	BatchID string
	Jobs    []JobSummary
}

// JobStatusResponse is the projection returned by GetJob.
type JobStatusResponse struct {
	JobID         string               `json:"jobId"`
	Status        store.JobStatus      `json:"status"`
	VideoURL      string               `json:"videoUrl"`
	NewVideoURL   string               `json:"newVideoUrl"`
	Mp3URL        string               `json:"mp3Url"`
	Keyframes     []store.Keyframe     `json:"keyframes"`
	AudioAnalysis *store.AudioAnalysis `json:"audioAnalysis"`
	ErrorMessage  string               `json:"errorMessage"`
	Progress      int                  `json:"progress"`
}

// BatchStatusResponse is the projection returned by GetBatch.
type BatchStatusResponse struct {
	BatchID  string              `json:"batchId"`
	Status   store.JobStatus     `json:"status"`
	Jobs     []JobStatusResponse `json:"jobs"`
	Progress float64             `json:"progress"`
}

// Manager is the Job Manager: batch intake, URL classification and
// dispatch, and status projection.
type Manager struct {
	scope *Scope
}

// NewManager creates a Manager over scope.
func NewManager(scope *Scope) *Manager {
	return &Manager{scope: scope}
}

// EnqueueBatch validates and persists a new batch, dispatching one message
// per job onto the Download or YoutubeDownload channel per URL
// classification. YouTube URLs skip the content-acceptability probe: a
// youtu.be/youtube.com watch page never serves a HEAD-able media
// Content-Type, and the Youtube adapter validates the URL itself.
func (m *Manager) EnqueueBatch(ctx context.Context, urls []string) (*EnqueueResult, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("%w: url list is empty", ErrInvalidInput)
	}
	if len(urls) > maxBatchSize {
		return nil, fmt.Errorf("%w: batch of %d URLs exceeds the limit of %d", ErrInvalidInput, len(urls), maxBatchSize)
	}

	for _, u := range urls {
		if !m.scope.Adapters.UrlValidator.IsSyntaxValid(u) {
			return nil, fmt.Errorf("%w: %q is not a valid URL", ErrInvalidInput, u)
		}
		if m.scope.Adapters.UrlValidator.IsYoutube(u) {
			continue
		}
		if ok, err := m.scope.Adapters.UrlValidator.IsContentAcceptable(ctx, u); err != nil {
			return nil, fmt.Errorf("%w: %q is not reachable: %v", ErrInvalidInput, u, err)
		} else if !ok {
			return nil, fmt.Errorf("%w: %q failed content-type/size acceptance", ErrInvalidInput, u)
		}
	}

	batchID := uuid.NewString()
	if _, err := m.scope.Store.CreateBatch(batchID); err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}

	summaries := make([]JobSummary, 0, len(urls))
	for _, videoURL := range urls {
		jobID := uuid.NewString()
		job := &store.ConversionJob{JobID: jobID, BatchID: &batchID, VideoURL: videoURL}
		if err := m.scope.Store.CreateJob(job); err != nil {
			return nil, fmt.Errorf("create job: %w", err)
		}
		m.scope.Events.Log(store.ConversionLogEvent{
			JobID: jobID, BatchID: &batchID, EventType: store.EventJobCreated,
			JobStatus: store.StatusPending, VideoURL: videoURL, Message: "job created",
		})

		if m.scope.Adapters.UrlValidator.IsYoutube(videoURL) {
			m.scope.Channels.YoutubeDownload <- YoutubeMsg{JobID: jobID, VideoURL: videoURL}
		} else {
			m.scope.Channels.Download <- DownloadMsg{JobID: jobID, VideoURL: videoURL}
		}

		summaries = append(summaries, JobSummary{JobID: jobID, StatusURL: statusURL(jobID)})
	}

	return &EnqueueResult{BatchID: batchID, Jobs: summaries}, nil
}

// GetJob returns a job's status projection.
func (m *Manager) GetJob(jobID string) (*JobStatusResponse, error) {
	job, err := m.scope.Store.GetJobByID(jobID)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return projectJob(job), nil
}

// GetBatch returns a batch's aggregate status and its children.
func (m *Manager) GetBatch(batchID string) (*BatchStatusResponse, error) {
	if _, err := m.scope.Store.GetBatchByID(batchID); err != nil {
		if err == store.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	jobs, err := m.scope.Store.GetJobsByBatchID(batchID)
	if err != nil {
		return nil, err
	}

	projections := make([]JobStatusResponse, len(jobs))
	statuses := make([]store.JobStatus, len(jobs))
	var progressSum float64
	for i := range jobs {
		projections[i] = *projectJob(&jobs[i])
		statuses[i] = jobs[i].Status
		progressSum += float64(projections[i].Progress)
	}

	resp := &BatchStatusResponse{BatchID: batchID, Jobs: projections, Status: aggregateBatchStatus(statuses)}
	if len(jobs) > 0 {
		resp.Progress = progressSum / float64(len(jobs))
	}
	if resp.Status == store.StatusCompleted || resp.Status == store.StatusFailed {
		if err := m.scope.Store.MarkBatchCompleted(batchID); err != nil {
			m.scope.Log.Warn().Err(err).Str("batch_id", batchID).Msg("failed to stamp batch completion")
		}
	}
	return resp, nil
}

// ListJobs returns up to take jobs, newest first.
func (m *Manager) ListJobs(skip, take int) ([]JobStatusResponse, error) {
	if take <= 0 || take > 20 {
		take = 20
	}
	jobs, err := m.scope.Store.GetAllJobs(skip, take)
	if err != nil {
		return nil, err
	}
	out := make([]JobStatusResponse, len(jobs))
	for i := range jobs {
		out[i] = *projectJob(&jobs[i])
	}
	return out, nil
}

// aggregateBatchStatus implements the §4.7 batch aggregation rules.
func aggregateBatchStatus(statuses []store.JobStatus) store.JobStatus {
	if len(statuses) == 0 {
		return store.StatusPending
	}
	allFailed := true
	anyNonTerminal := false
	for _, s := range statuses {
		if s != store.StatusFailed {
			allFailed = false
		}
		if !s.IsTerminal() {
			anyNonTerminal = true
		}
	}
	switch {
	case allFailed:
		return store.StatusFailed
	case anyNonTerminal:
		return store.StatusPending
	default:
		return store.StatusCompleted
	}
}

// statusProgress is the coarse per-status percentage used absent a more
// precise in-progress reading.
var statusProgress = map[store.JobStatus]int{
	store.StatusPending:             0,
	store.StatusDownloading:         15,
	store.StatusConverting:          45,
	store.StatusAudioAnalyzing:      60,
	store.StatusExtractingKeyframes: 75,
	store.StatusUploading:           90,
	store.StatusCompleted:           100,
}

func projectJob(job *store.ConversionJob) *JobStatusResponse {
	progress, ok := statusProgress[job.Status]
	if !ok {
		// Failed: the stage a job reached before failing is not recorded,
		// so a failed job reports 0 rather than its last-known progress.
		progress = 0
	}
	resp := &JobStatusResponse{
		JobID: job.JobID, Status: job.Status, VideoURL: job.VideoURL,
		NewVideoURL: job.NewVideoURL, Mp3URL: job.Mp3URL,
		ErrorMessage: job.ErrorMessage, Progress: progress,
	}

	if job.KeyframesJSON != "" {
		var keyframes []store.Keyframe
		if err := json.Unmarshal([]byte(job.KeyframesJSON), &keyframes); err == nil {
			resp.Keyframes = keyframes
		}
	}
	if job.AudioAnalysisJSON != "" {
		var analysis store.AudioAnalysis
		if err := json.Unmarshal([]byte(job.AudioAnalysisJSON), &analysis); err == nil {
			resp.AudioAnalysis = &analysis
		}
	}
	return resp
}

func statusURL(jobID string) string {
	return "/api/videoconverter/status/" + jobID
}

// newJobRef is a convenience constructor mirroring eventlog.NewJob for
// callers in this package that only have a ConversionJob row.
func newJobRef(job *store.ConversionJob) eventlog.JobRef {
	return eventlog.NewJob(job.JobID, job.BatchID, job.Status, job.ProcessingAttempts)
}
