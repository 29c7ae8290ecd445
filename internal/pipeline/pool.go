package pipeline

import (
	"context"
	"sync"
	"time"
)

const heartbeatInterval = 60 * time.Second

// runPool starts n worker goroutines sharing in, each running handle for
// every received message, until ctx is cancelled or in is closed. It
// returns a WaitGroup the caller can Wait on during shutdown.
func runPool[T any](ctx context.Context, n int, in <-chan T, handle func(context.Context, T)) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-in:
					if !ok {
						return
					}
					handle(ctx, msg)
				}
			}
		}()
	}
	return &wg
}

// heartbeat stamps LastAttemptAt on jobID every heartbeatInterval until
// stop is called, so long-running stage work does not trip stale-job
// detection in the Recovery service.
func (s *Scope) heartbeat(ctx context.Context, jobID string) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Store.Heartbeat(jobID); err != nil {
					s.Log.Warn().Err(err).Str("job_id", jobID).Msg("heartbeat failed")
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { close(done) }
}

// progressThrottle gates progress-event logging to at most once per 10s
// elapsed or 5% progress delta, whichever comes first.
type progressThrottle struct {
	lastTime time.Time
	lastPct  float64
}

func (p *progressThrottle) shouldLog(pct float64) bool {
	now := time.Now()
	if p.lastTime.IsZero() || now.Sub(p.lastTime) >= 10*time.Second || pct-p.lastPct >= 5 {
		p.lastTime = now
		p.lastPct = pct
		return true
	}
	return false
}

// cleanupTemps deletes every non-empty path, logging (not failing) on
// error, for the final-cleanup step every worker runs on both success and
// failure.
func (s *Scope) cleanupTemps(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := s.Workspace.DeleteTempFile(p); err != nil {
			s.Log.Warn().Err(err).Str("path", p).Msg("failed to clean up temp file")
		}
	}
}
