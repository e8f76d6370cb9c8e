package progress

import (
	"sync"
	"time"
)

// sampleWindow bounds how long a transfer sample participates in the
// windowed speed computations.
const sampleWindow = 10 * time.Second

type sample struct {
	at    time.Time
	bytes int64
}

// Tracker accumulates transferred-byte samples for a single long-running
// transfer. The transfer path calls Record while a reporting loop reads
// the derived figures; a single mutex guards the whole struct, which is
// fine for small samples polled every 250ms.
type Tracker struct {
	mu          sync.Mutex
	totalLength int64 // <= 0 means unknown
	progressed  int64
	finished    bool
	startTime   time.Time
	samples     []sample
}

// NewTracker creates a Tracker; totalLength <= 0 marks the total as
// unknown (percentage and ETE become unavailable).
func NewTracker(totalLength int64) *Tracker {
	return &Tracker{
		totalLength: totalLength,
		startTime:   time.Now(),
	}
}

// Record adds a timestamped sample and evicts samples older than the
// window. The cumulative progressed size never decreases.
func (t *Tracker) Record(deltaBytes int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	t.progressed += deltaBytes
	t.samples = append(t.samples, sample{at: now, bytes: deltaBytes})
	t.evict(now)
}

func (t *Tracker) evict(now time.Time) {
	cut := 0
	for cut < len(t.samples) && now.Sub(t.samples[cut].at) > sampleWindow {
		cut++
	}
	if cut > 0 {
		t.samples = t.samples[cut:]
	}
}

// Finish marks the transfer as complete; the reporting loop terminates on
// the next poll.
func (t *Tracker) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.finished = true
}

func (t *Tracker) Finished() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.finished
}

// Progressed returns the cumulative transferred byte count, independent of
// window eviction.
func (t *Tracker) Progressed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progressed
}

// TotalLength returns the expected transfer size, or ok=false when it is
// unknown.
func (t *Tracker) TotalLength() (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalLength, t.totalLength > 0
}

// Percentage returns overall progress in percent; ok is false while the
// total length is unknown.
func (t *Tracker) Percentage() (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.totalLength <= 0 {
		return 0, false
	}
	return float64(t.progressed) * 100.0 / float64(t.totalLength), true
}

// Runtime is the elapsed time since the tracker was created.
func (t *Tracker) Runtime() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Since(t.startTime)
}

// AverageSpeed is the overall transfer rate in bytes per second.
func (t *Tracker) AverageSpeed() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	seconds := time.Since(t.startTime).Seconds()
	if seconds <= 0 {
		return 0
	}
	return int64(float64(t.progressed) / seconds)
}

// SpeedLastSecond is the trailing 1-second average in bytes per second.
func (t *Tracker) SpeedLastSecond() int64 {
	return t.speedWindow(1 * time.Second)
}

// SpeedLast10Seconds is the trailing 10-second average in bytes per second.
func (t *Tracker) SpeedLast10Seconds() int64 {
	return t.speedWindow(10 * time.Second)
}

// speedWindow sums the bytes of samples inside the window and divides by
// the span those samples actually cover, clamped to at least one second so
// a burst of fresh samples cannot spike the figure.
func (t *Tracker) speedWindow(window time.Duration) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	var bytes int64
	var oldest time.Time

	for _, s := range t.samples {
		if now.Sub(s.at) > window {
			continue
		}
		if oldest.IsZero() {
			oldest = s.at
		}
		bytes += s.bytes
	}

	seconds := int64(window.Seconds())
	if !oldest.IsZero() {
		seconds = int64(now.Sub(oldest).Seconds())
		if seconds == 0 {
			seconds = 1
		}
	}

	return bytes / seconds
}

// ETE estimates the remaining transfer time by extrapolating from the
// overall percentage and elapsed time; ok is false while the total is
// unknown or no progress has been made.
func (t *Tracker) ETE() (time.Duration, bool) {
	percentage, ok := t.Percentage()
	if !ok || percentage <= 0 {
		return 0, false
	}

	runtime := t.Runtime()
	total := time.Duration(float64(runtime) * 100.0 / percentage)
	if total <= runtime {
		return 0, true
	}
	return total - runtime, true
}
