package workspace

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"video-pipeline/internal/config"
)

// CleanupService periodically evicts stale temp files, escalating from the
// default eviction age to an aggressive or very-aggressive age once the
// workspace's total size crosses the configured usage thresholds. Runs on
// one named timer, like each of recovery.Service's two, non-reentrant via an atomic guard
// so a slow sweep cannot overlap its own next tick.
type CleanupService struct {
	ws  *Workspace
	log zerolog.Logger

	interval              time.Duration
	defaultMaxAge         time.Duration
	aggressiveMaxAge      time.Duration
	veryAggressiveMaxAge  time.Duration
	maxSizeBytes          int64
	highUsageThreshold    float64
	veryHighUsageThreshold float64

	running int32
	stopCh  chan struct{}
}

// NewCleanupService builds a CleanupService from cfg.
func NewCleanupService(ws *Workspace, cfg config.PerformanceConfig, log zerolog.Logger) *CleanupService {
	return &CleanupService{
		ws:                     ws,
		log:                    log.With().Str("component", "workspace_cleanup").Logger(),
		interval:               time.Duration(cfg.TempCleanupIntervalHours) * time.Hour,
		defaultMaxAge:          time.Duration(cfg.TempFileDefaultMaxAgeHours) * time.Hour,
		aggressiveMaxAge:       time.Duration(cfg.TempFileAggressiveMaxAgeHours) * time.Hour,
		veryAggressiveMaxAge:   time.Duration(cfg.TempFileVeryAggressiveMaxAgeH) * time.Hour,
		maxSizeBytes:           cfg.MaxTempSizeBytes,
		highUsageThreshold:     cfg.TempFileHighUsageThreshold,
		veryHighUsageThreshold: cfg.TempFileVeryHighUsageThreshold,
		stopCh:                 make(chan struct{}),
	}
}

// Start launches the cleanup timer as a background goroutine.
func (s *CleanupService) Start(ctx context.Context) {
	go s.runTimer(ctx)
}

// Stop ends the cleanup timer.
func (s *CleanupService) Stop() {
	close(s.stopCh)
}

func (s *CleanupService) runTimer(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runSweep is the synchronous administrative entry point: it probes current
// usage against the configured thresholds, picks the escalated eviction
// age, and runs one cleanup pass.
func (s *CleanupService) runSweep(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	stats, err := s.ws.GetStats(s.defaultMaxAge)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read workspace stats")
		return
	}

	age := s.escalatedAge(stats)
	deleted, err := s.ws.CleanupOldFiles(ctx, age)
	if err != nil {
		s.log.Error().Err(err).Msg("cleanup sweep failed")
		return
	}
	s.log.Info().
		Int("deleted", deleted).
		Int64("total_size_bytes", stats.TotalSizeBytes).
		Dur("max_age", age).
		Msg("workspace cleanup sweep completed")
}

// escalatedAge picks the eviction age for the current usage level. The two
// threshold fractions are not in ascending order by name (spec default:
// HighUsageThreshold=0.8, VeryHighUsageThreshold=0.7) — they're compared
// here by value, not by name, so usage past the higher fraction always gets
// the more aggressive age regardless of which config key holds it.
func (s *CleanupService) escalatedAge(stats Stats) time.Duration {
	if s.maxSizeBytes <= 0 {
		return s.defaultMaxAge
	}

	lowCut := s.maxSizeBytes
	highCut := s.maxSizeBytes
	if s.highUsageThreshold < s.veryHighUsageThreshold {
		lowCut = int64(float64(s.maxSizeBytes) * s.highUsageThreshold)
		highCut = int64(float64(s.maxSizeBytes) * s.veryHighUsageThreshold)
	} else {
		lowCut = int64(float64(s.maxSizeBytes) * s.veryHighUsageThreshold)
		highCut = int64(float64(s.maxSizeBytes) * s.highUsageThreshold)
	}

	switch {
	case stats.TotalSizeBytes >= highCut:
		return s.veryAggressiveMaxAge
	case stats.TotalSizeBytes >= lowCut:
		return s.aggressiveMaxAge
	default:
		return s.defaultMaxAge
	}
}
