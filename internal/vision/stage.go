package vision

import (
	"log"
	"time"
)

// State is a pipeline stage's position in the state machine from
// SPEC_FULL.md §4.3.
type State int

const (
	Initializing State = iota
	Running
	Draining
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case Running:
		return "Running"
	case Draining:
		return "Draining"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// fpsCounter computes a moving average over a fixed window of frames,
// matching the Camera stage's "10-frame moving FPS" requirement in
// SPEC_FULL.md §4.3.
type fpsCounter struct {
	window   int
	count    int
	start    time.Time
	logger   *log.Logger
	label    string
	onSample func(fps float64)
}

func newFPSCounter(logger *log.Logger, label string, window int) *fpsCounter {
	return &fpsCounter{window: window, logger: logger, label: label}
}

// tick registers one produced frame and logs the moving FPS every
// window frames, forwarding the sample to onSample if set.
func (f *fpsCounter) tick() {
	if f.count == 0 {
		f.start = time.Now()
	}
	f.count++
	if f.count >= f.window {
		elapsed := time.Since(f.start).Seconds()
		fps := 0.0
		if elapsed > 0 {
			fps = float64(f.count) / elapsed
		}
		f.logger.Printf("%s: %.1f frames/sec (last %d frames)", f.label, fps, f.count)
		if f.onSample != nil {
			f.onSample(fps)
		}
		f.count = 0
	}
}
