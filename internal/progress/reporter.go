package progress

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// pollInterval is the cadence of the reporting loop.
const pollInterval = 250 * time.Millisecond

// Reporter renders a single live status line for a transfer on a fixed
// cadence, on its own goroutine. It synchronizes with the transfer path
// exclusively through the Tracker's lock.
type Reporter struct {
	tracker *Tracker
	label   string
	done    chan struct{}
}

// NewReporter starts reporting on tracker until it is marked finished.
// Call Wait to block until the final line has been written.
func NewReporter(tracker *Tracker, label string) *Reporter {
	r := &Reporter{
		tracker: tracker,
		label:   label,
		done:    make(chan struct{}),
	}
	go r.loop()
	return r
}

func (r *Reporter) loop() {
	defer close(r.done)

	for {
		r.render()
		if r.tracker.Finished() {
			fmt.Fprintln(os.Stdout)
			return
		}
		time.Sleep(pollInterval)
	}
}

func (r *Reporter) render() {
	var line strings.Builder

	fmt.Fprintf(&line, "%s %s", r.label, FormatSize(r.tracker.Progressed(), 2))
	if total, ok := r.tracker.TotalLength(); ok {
		percentage, _ := r.tracker.Percentage()
		fmt.Fprintf(&line, "/%s (%.2f%%)", FormatSize(total, 2), percentage)
	}
	fmt.Fprintf(&line, "; runtime: %s", FormatDuration(r.tracker.Runtime()))
	if ete, ok := r.tracker.ETE(); ok {
		fmt.Fprintf(&line, "; ete: %s", FormatDuration(ete))
	}
	fmt.Fprintf(&line, "; speed: %s/s", FormatSize(r.tracker.AverageSpeed(), 2))
	fmt.Fprintf(&line, "; speed (<=1s): %s/s", FormatSize(r.tracker.SpeedLastSecond(), 2))
	fmt.Fprintf(&line, "; speed (<=10s): %s/s", FormatSize(r.tracker.SpeedLast10Seconds(), 2))

	fmt.Fprintf(os.Stdout, "\r\x1b[2K%s", line.String())
}

// Wait blocks until the reporting loop has terminated.
func (r *Reporter) Wait() {
	<-r.done
}
