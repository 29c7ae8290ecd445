package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned by lookups that find nothing.
var ErrNotFound = errors.New("not found")

// Store is the durable Job Store: jobs, batches, the media cache, and the
// event log, all backed by a single gorm/sqlite database.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if necessary) the sqlite database at path and runs
// AutoMigrate for every model.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if err := db.AutoMigrate(
		&ConversionJob{},
		&BatchJob{},
		&MediaStorageItem{},
		&ConversionLogEvent{},
	); err != nil {
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateBatch persists a new, empty BatchJob.
func (s *Store) CreateBatch(batchID string) (*BatchJob, error) {
	batch := &BatchJob{BatchID: batchID}
	if err := s.db.Create(batch).Error; err != nil {
		return nil, fmt.Errorf("create batch: %w", err)
	}
	return batch, nil
}

// GetBatchByID returns a batch, or ErrNotFound.
func (s *Store) GetBatchByID(batchID string) (*BatchJob, error) {
	var batch BatchJob
	if err := s.db.Where("batch_id = ?", batchID).First(&batch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// MarkBatchCompleted stamps CompletedAt on a batch if not already set.
func (s *Store) MarkBatchCompleted(batchID string) error {
	now := time.Now()
	return s.db.Model(&BatchJob{}).
		Where("batch_id = ? AND completed_at IS NULL", batchID).
		Update("completed_at", now).Error
}

// DeleteBatch removes a batch row; its jobs outlive it with BatchId set to
// null.
func (s *Store) DeleteBatch(batchID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&ConversionJob{}).Where("batch_id = ?", batchID).
			Update("batch_id", nil).Error; err != nil {
			return fmt.Errorf("orphan batch's jobs: %w", err)
		}
		if err := tx.Where("batch_id = ?", batchID).Delete(&BatchJob{}).Error; err != nil {
			return fmt.Errorf("delete batch: %w", err)
		}
		return nil
	})
}

// CreateJob persists a new job in Pending status.
func (s *Store) CreateJob(job *ConversionJob) error {
	job.Status = StatusPending
	job.LastAttemptAt = time.Now()
	if err := s.db.Create(job).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetJobByID returns a job, or ErrNotFound.
func (s *Store) GetJobByID(jobID string) (*ConversionJob, error) {
	var job ConversionJob
	if err := s.db.Where("job_id = ?", jobID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// GetJobsByBatchID returns every job carrying batchID, newest first.
func (s *Store) GetJobsByBatchID(batchID string) ([]ConversionJob, error) {
	var jobs []ConversionJob
	err := s.db.Where("batch_id = ?", batchID).Order("created_at desc").Find(&jobs).Error
	return jobs, err
}

// GetAllJobs returns up to take jobs, newest first, skipping the first skip.
func (s *Store) GetAllJobs(skip, take int) ([]ConversionJob, error) {
	var jobs []ConversionJob
	err := s.db.Order("created_at desc").Offset(skip).Limit(take).Find(&jobs).Error
	return jobs, err
}

// GetStaleJobs returns non-terminal jobs whose LastAttemptAt predates the
// cutoff.
func (s *Store) GetStaleJobs(cutoff time.Time) ([]ConversionJob, error) {
	var jobs []ConversionJob
	err := s.db.Where("status NOT IN ? AND last_attempt_at < ?",
		[]JobStatus{StatusCompleted, StatusFailed}, cutoff).
		Find(&jobs).Error
	return jobs, err
}

// GetJobsByStatus returns every job currently in status, newest first.
func (s *Store) GetJobsByStatus(status JobStatus) ([]ConversionJob, error) {
	var jobs []ConversionJob
	err := s.db.Where("status = ?", status).Order("created_at desc").Find(&jobs).Error
	return jobs, err
}

// GetJobsByStatusesCount reports how many jobs currently sit in each of
// statuses.
func (s *Store) GetJobsByStatusesCount(statuses []JobStatus) (map[JobStatus]int64, error) {
	var rows []struct {
		Status JobStatus
		Count  int64
	}
	err := s.db.Model(&ConversionJob{}).
		Select("status, count(*) as count").
		Where("status IN ?", statuses).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[JobStatus]int64, len(statuses))
	for _, status := range statuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// UpdateJob replaces the whole row identified by job.JobID.
func (s *Store) UpdateJob(job *ConversionJob) error {
	result := s.db.Save(job)
	if result.Error != nil {
		return fmt.Errorf("update job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TryUpdateStatusIf atomically transitions jobID from expected to next,
// returning whether the row was the one that changed. Used to claim a job
// for exclusive processing by a single worker.
func (s *Store) TryUpdateStatusIf(jobID string, expected, next JobStatus) (bool, error) {
	now := time.Now()
	result := s.db.Model(&ConversionJob{}).
		Where("job_id = ? AND status = ?", jobID, expected).
		Updates(map[string]interface{}{
			"status":              next,
			"last_attempt_at":     now,
			"processing_attempts": gorm.Expr("processing_attempts + 1"),
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// UpdateJobStatus sets a job's status and an optional error message, bumping
// ProcessingAttempts and LastAttemptAt, and stamping CompletedAt if next is
// terminal.
func (s *Store) UpdateJobStatus(jobID string, next JobStatus, errMsg string) error {
	updates := map[string]interface{}{
		"status":              next,
		"last_attempt_at":     time.Now(),
		"processing_attempts": gorm.Expr("processing_attempts + 1"),
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	if next.IsTerminal() {
		updates["completed_at"] = time.Now()
	}
	return s.db.Model(&ConversionJob{}).Where("job_id = ?", jobID).Updates(updates).Error
}

// Heartbeat stamps LastAttemptAt without advancing the attempt counter, for
// long-running stage work that needs to avoid false stale detection.
func (s *Store) Heartbeat(jobID string) error {
	return s.db.Model(&ConversionJob{}).Where("job_id = ?", jobID).
		Update("last_attempt_at", time.Now()).Error
}

// ResetToPending is used by the Recovery service to re-queue a stale job.
func (s *Store) ResetToPending(jobID string) error {
	return s.db.Model(&ConversionJob{}).Where("job_id = ?", jobID).Updates(map[string]interface{}{
		"status":          StatusPending,
		"last_attempt_at": time.Now(),
	}).Error
}

// UpdateJobDuration persists the probed media duration.
func (s *Store) UpdateJobDuration(jobID string, seconds float64) error {
	return s.db.Model(&ConversionJob{}).Where("job_id = ?", jobID).
		Update("duration_seconds", seconds).Error
}

// UpdateJobKeyframes persists the ordered keyframe list as JSON.
func (s *Store) UpdateJobKeyframes(jobID string, keyframes []Keyframe) error {
	payload, err := json.Marshal(keyframes)
	if err != nil {
		return fmt.Errorf("marshal keyframes: %w", err)
	}
	return s.db.Model(&ConversionJob{}).Where("job_id = ?", jobID).
		Update("keyframes", string(payload)).Error
}

// UpdateJobAudioAnalysis persists the audio analysis result as JSON.
func (s *Store) UpdateJobAudioAnalysis(jobID string, analysis *AudioAnalysis) error {
	payload, err := json.Marshal(analysis)
	if err != nil {
		return fmt.Errorf("marshal audio analysis: %w", err)
	}
	return s.db.Model(&ConversionJob{}).Where("job_id = ?", jobID).
		Update("audio_analysis", string(payload)).Error
}

// CompleteFromCache copies a cache hit's results onto a job and marks it
// Completed in one update.
func (s *Store) CompleteFromCache(jobID string, item *MediaStorageItem) error {
	return s.db.Model(&ConversionJob{}).Where("job_id = ?", jobID).Updates(map[string]interface{}{
		"status":              StatusCompleted,
		"mp3_url":             item.AudioURL,
		"new_video_url":       item.VideoURL,
		"keyframes":           item.KeyframesJSON,
		"audio_analysis":      item.AudioAnalysisJSON,
		"duration_seconds":    item.DurationSeconds,
		"file_size_bytes":     item.FileSizeBytes,
		"content_type":        item.ContentType,
		"completed_at":        time.Now(),
		"last_attempt_at":     time.Now(),
		"processing_attempts": gorm.Expr("processing_attempts + 1"),
	}).Error
}

// CompleteUpload finalizes a job after the Upload worker has written
// object-store URLs.
func (s *Store) CompleteUpload(jobID, newVideoURL, mp3URL string, keyframes []Keyframe) error {
	payload, err := json.Marshal(keyframes)
	if err != nil {
		return fmt.Errorf("marshal keyframes: %w", err)
	}
	return s.db.Model(&ConversionJob{}).Where("job_id = ?", jobID).Updates(map[string]interface{}{
		"status":              StatusCompleted,
		"new_video_url":       newVideoURL,
		"mp3_url":             mp3URL,
		"keyframes":           string(payload),
		"completed_at":        time.Now(),
		"last_attempt_at":     time.Now(),
		"processing_attempts": gorm.Expr("processing_attempts + 1"),
	}).Error
}

// FindByVideoHash looks up a media cache entry. Returns ErrNotFound if
// absent.
func (s *Store) FindByVideoHash(hash string) (*MediaStorageItem, error) {
	var item MediaStorageItem
	if err := s.db.Where("video_hash = ?", hash).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// SaveMediaItem upserts by VideoHash. On a duplicate-key conflict (two
// uploads racing for the same content hash), the existing row is re-read
// and returned instead.
func (s *Store) SaveMediaItem(item *MediaStorageItem) (*MediaStorageItem, error) {
	item.LastAccessedAt = time.Now()
	err := s.db.Clauses().Create(item).Error
	if err == nil {
		return item, nil
	}
	// Conflict on the primary key: another writer beat us to this hash.
	existing, readErr := s.FindByVideoHash(item.VideoHash)
	if readErr != nil {
		return nil, fmt.Errorf("save media item: %w (re-read failed: %v)", err, readErr)
	}
	return existing, nil
}

// UpdateItem replaces the whole media cache row identified by item.VideoHash.
func (s *Store) UpdateItem(item *MediaStorageItem) error {
	result := s.db.Save(item)
	if result.Error != nil {
		return fmt.Errorf("update media item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ArchiveItem evicts a media cache entry so future lookups by hash miss and
// re-download, without disturbing the jobs that already reference its URLs.
func (s *Store) ArchiveItem(videoHash string) error {
	result := s.db.Where("video_hash = ?", videoHash).Delete(&MediaStorageItem{})
	if result.Error != nil {
		return fmt.Errorf("archive media item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddLog appends one event. Callers should prefer the batched EventLogger
// in package eventlog for production paths; this is a low-level
// single-row write (the EventLogger flushes through CreateLogBatch).
func (s *Store) AddLog(event *ConversionLogEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return s.db.Create(event).Error
}

// CreateLogBatch appends many events in one transaction.
func (s *Store) CreateLogBatch(events []ConversionLogEvent) error {
	if len(events) == 0 {
		return nil
	}
	return s.db.Create(&events).Error
}

// GetLogsByJobID returns a job's events, oldest first.
func (s *Store) GetLogsByJobID(jobID string) ([]ConversionLogEvent, error) {
	var events []ConversionLogEvent
	err := s.db.Where("job_id = ?", jobID).Order("timestamp asc").Find(&events).Error
	return events, err
}

// GetLogsByBatchID returns a batch's events across all its jobs, oldest
// first.
func (s *Store) GetLogsByBatchID(batchID string) ([]ConversionLogEvent, error) {
	var events []ConversionLogEvent
	err := s.db.Where("batch_id = ?", batchID).Order("timestamp asc").Find(&events).Error
	return events, err
}

// GetRecentLogs returns the most recent count events across all jobs.
func (s *Store) GetRecentLogs(count int) ([]ConversionLogEvent, error) {
	var events []ConversionLogEvent
	err := s.db.Order("timestamp desc").Limit(count).Find(&events).Error
	return events, err
}

// GetErrorLogs returns Error-type events since since.
func (s *Store) GetErrorLogs(since time.Time) ([]ConversionLogEvent, error) {
	var events []ConversionLogEvent
	err := s.db.Where("event_type = ? AND timestamp >= ?", EventError, since).
		Order("timestamp desc").Find(&events).Error
	return events, err
}

// GetLogsByEventType returns events of eventType since since, newest first.
func (s *Store) GetLogsByEventType(eventType EventType, since time.Time) ([]ConversionLogEvent, error) {
	var events []ConversionLogEvent
	err := s.db.Where("event_type = ? AND timestamp >= ?", eventType, since).
		Order("timestamp desc").Find(&events).Error
	return events, err
}

// GetStaleJobLogs returns the most recent event for each job whose
// LastAttemptAt is older than thresholdMinutes, restricted to jobs still in
// a non-terminal status — the same rows Recovery is about to act on, useful
// for diagnosing why a job went quiet.
func (s *Store) GetStaleJobLogs(thresholdMinutes int) ([]ConversionLogEvent, error) {
	cutoff := time.Now().Add(-time.Duration(thresholdMinutes) * time.Minute)

	var staleJobIDs []string
	err := s.db.Model(&ConversionJob{}).
		Where("status NOT IN ? AND last_attempt_at < ?", []JobStatus{StatusCompleted, StatusFailed}, cutoff).
		Pluck("job_id", &staleJobIDs).Error
	if err != nil {
		return nil, fmt.Errorf("list stale job ids: %w", err)
	}
	if len(staleJobIDs) == 0 {
		return nil, nil
	}

	var events []ConversionLogEvent
	err = s.db.Where("job_id IN (?)", staleJobIDs).
		Order("job_id, timestamp desc").Find(&events).Error
	if err != nil {
		return nil, err
	}

	latest := make(map[string]ConversionLogEvent, len(staleJobIDs))
	for _, ev := range events {
		if _, seen := latest[ev.JobID]; !seen {
			latest[ev.JobID] = ev
		}
	}
	out := make([]ConversionLogEvent, 0, len(latest))
	for _, ev := range latest {
		out = append(out, ev)
	}
	return out, nil
}

// GetQueueStatistics reports a per-status job count over the last
// rangeHours.
func (s *Store) GetQueueStatistics(rangeHours int) (map[JobStatus]int64, error) {
	since := time.Now().Add(-time.Duration(rangeHours) * time.Hour)

	var rows []struct {
		Status JobStatus
		Count  int64
	}
	err := s.db.Model(&ConversionJob{}).
		Select("status, count(*) as count").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	stats := make(map[JobStatus]int64, len(rows))
	for _, row := range rows {
		stats[row.Status] = row.Count
	}
	return stats, nil
}

// PurgeOldLogs deletes events older than retentionDays.
func (s *Store) PurgeOldLogs(retentionDays int) (int64, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := s.db.Where("timestamp < ?", cutoff).Delete(&ConversionLogEvent{})
	return result.RowsAffected, result.Error
}
