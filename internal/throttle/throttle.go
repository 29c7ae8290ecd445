// Package throttle provides a cooperative CPU-load gate that heavy pipeline
// stages consult before starting work.
package throttle

import (
	"context"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const sampleInterval = time.Second

// Gate samples process CPU time on a timer and computes a rolling load
// estimate (CPU-seconds consumed per wall-clock second, normalized by core
// count). WaitIfNeeded cooperatively stalls callers while load is high; it
// never kills or deprioritizes work.
type Gate struct {
	highWatermark float64
	maxWait       time.Duration

	mu         sync.RWMutex
	load       float64
	lastSample time.Time
	lastCPU    time.Duration

	loadGauge prometheus.Gauge
	stopCh    chan struct{}
}

// New creates a Gate. highWatermark is a load fraction (e.g. 0.85); maxWait
// bounds how long WaitIfNeeded will stall a single caller.
func New(highWatermark float64, maxWait time.Duration) *Gate {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "pipeline_cpu_load_ratio",
		Help: "Rolling estimate of process CPU load as a fraction of available cores.",
	})
	if err := prometheus.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			gauge = are.ExistingCollector.(prometheus.Gauge)
		}
	}
	return &Gate{
		highWatermark: highWatermark,
		maxWait:       maxWait,
		lastSample:    time.Now(),
		lastCPU:       processCPUTime(),
		loadGauge:     gauge,
		stopCh:        make(chan struct{}),
	}
}

// Start begins the sampling loop. Stop or context cancellation ends it.
func (g *Gate) Start(ctx context.Context) {
	go g.sampleLoop(ctx)
}

// Stop ends the sampling loop.
func (g *Gate) Stop() {
	close(g.stopCh)
}

func (g *Gate) sampleLoop(ctx context.Context) {
	ticker := time.NewTicker(sampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.sample()
		case <-g.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gate) sample() {
	now := time.Now()
	cpu := processCPUTime()

	g.mu.Lock()
	wallElapsed := now.Sub(g.lastSample)
	cpuElapsed := cpu - g.lastCPU
	if wallElapsed > 0 {
		g.load = float64(cpuElapsed) / float64(wallElapsed) / float64(runtime.NumCPU())
	}
	g.lastSample = now
	g.lastCPU = cpu
	load := g.load
	g.mu.Unlock()

	g.loadGauge.Set(load)
}

// Load returns the most recent rolling load estimate.
func (g *Gate) Load() float64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.load
}

// WaitIfNeeded suspends the caller in small increments while load is at or
// above the high watermark, up to the configured maxWait. It always returns
// eventually; callers proceed whether or not load has dropped.
func (g *Gate) WaitIfNeeded(ctx context.Context) {
	deadline := time.Now().Add(g.maxWait)
	for g.Load() >= g.highWatermark && time.Now().Before(deadline) {
		select {
		case <-time.After(200 * time.Millisecond):
		case <-ctx.Done():
			return
		}
	}
}

// processCPUTime reads this process's user+system CPU time consumed so far.
func processCPUTime() time.Duration {
	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return 0
	}
	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
	sys := time.Duration(ru.Stime.Sec)*time.Second + time.Duration(ru.Stime.Usec)*time.Microsecond
	return user + sys
}
