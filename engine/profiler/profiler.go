package profiler

import (
	"runtime"
	"time"

	"github.com/go-logr/logr"
)

// Stats is the snapshot reported by the most recent logging tick.
type Stats struct {
	FPS         float64
	Instances   int
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64
}

// Profiler tracks frame rate, instance count and memory statistics for performance monitoring.
// Outputs stats to the logger at a configurable interval.
type Profiler struct {
	logger         logr.Logger
	now            func() time.Time
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second and the logger to logr.Discard().
//
// Parameters:
//   - options: variadic list of ProfilerOption functions to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerOption) *Profiler {
	p := &Profiler{
		logger:         logr.Discard(),
		now:            time.Now,
		updateInterval: time.Second,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, live instances, heap usage, allocation rate, GC count/pause times, total memory.
//
// Parameters:
//   - instances: the number of live instances drawn this frame
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(instances int) bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	// Alloc: live heap. TotalAlloc: cumulative, tracks churn. Sys: process footprint.
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 GC pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			maxPauseUs = max(maxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.last = Stats{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Instances:   instances,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(allocDelta) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     gcCount,
		LastPauseUs: lastPauseUs,
		MaxPauseUs:  maxPauseUs,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
	}
	p.logger.Info("frame stats",
		"fps", p.last.FPS,
		"instances", p.last.Instances,
		"heapMB", p.last.HeapMB,
		"allocRateMBps", p.last.AllocRateMB,
		"gc", p.last.GCCount,
		"lastPauseUs", p.last.LastPauseUs,
		"maxPauseUs", p.last.MaxPauseUs,
		"sysMB", p.last.SysMB,
	)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the statistics reported by the most recent logging tick.
//
// Returns:
//   - Stats: the last reported statistics, zero before the first report
func (p *Profiler) Last() Stats {
	return p.last
}
