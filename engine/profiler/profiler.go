package profiler

import (
	"log"
	"runtime"
	"time"
)

// Profiler tracks canvas frame rate, render/encode latency and memory
// statistics. Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	renderTotal    time.Duration
	encodeTotal    time.Duration
	encodeCount    int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return &Profiler{
		lastTime:       time.Now(),
		updateInterval: time.Second,
		memStats:       runtime.MemStats{},
	}
}

// RecordRender accumulates the GPU render and readback time for one frame.
//
// Parameters:
//   - elapsed: the time the frame spent in RenderFrame
func (p *Profiler) RecordRender(elapsed time.Duration) {
	p.renderTotal += elapsed
}

// RecordEncode accumulates the image encode time for one frame. Safe to skip
// for frames that were never encoded (no connected clients).
//
// Parameters:
//   - elapsed: the time the frame spent being encoded
func (p *Profiler) RecordEncode(elapsed time.Duration) {
	p.encodeTotal += elapsed
	p.encodeCount++
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, render/encode latency, heap usage, allocation
// rate, GC count/pause times, total memory.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := time.Now()
	elapsed := currentTime.Sub(p.lastTime)

	if elapsed >= p.updateInterval {
		fps := float64(p.frameCount) / elapsed.Seconds()

		renderMs := 0.0
		if p.frameCount > 0 {
			renderMs = float64(p.renderTotal.Microseconds()) / float64(p.frameCount) / 1000
		}
		encodeMs := 0.0
		if p.encodeCount > 0 {
			encodeMs = float64(p.encodeTotal.Microseconds()) / float64(p.encodeCount) / 1000
		}

		runtime.ReadMemStats(&p.memStats)
		// Alloc: Bytes of allocated heap objects (live memory)
		// TotalAlloc: Cumulative bytes allocated for heap objects (increases forever, tracks churn)
		// Sys: Total bytes of memory obtained from the OS (actual process footprint)
		allocMB := float64(p.memStats.Alloc) / 1024 / 1024
		sysMB := float64(p.memStats.Sys) / 1024 / 1024

		// Calculate allocation rate (MB/sec)
		allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
		allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

		// Calculate GC pause stats (last pause and max recent pause)
		gcCount := p.memStats.NumGC
		var lastPauseUs, maxPauseUs uint64
		if gcCount > 0 {
			// PauseNs is a circular buffer of last 256 GC pauses
			lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000

			// Find max pause since last tick
			startIdx := p.lastGCCount
			if gcCount-startIdx > 256 {
				startIdx = gcCount - 256
			}
			for i := startIdx; i < gcCount; i++ {
				pause := p.memStats.PauseNs[i%256] / 1000
				if pause > maxPauseUs {
					maxPauseUs = pause
				}
			}
		}

		log.Printf("[Profiler] FPS: %.2f | Render: %.2f ms | Encode: %.2f ms | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB",
			fps, renderMs, encodeMs, allocMB, allocRateMB, gcCount, lastPauseUs, maxPauseUs, sysMB)

		p.frameCount = 0
		p.renderTotal = 0
		p.encodeTotal = 0
		p.encodeCount = 0
		p.lastTime = currentTime
		p.lastGCCount = gcCount
		p.lastTotalAlloc = p.memStats.TotalAlloc
		return true
	}

	return false
}
