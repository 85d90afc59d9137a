package vision

import (
	"log"

	"github.com/sightcore/acquisition/internal/external"
	"github.com/sightcore/acquisition/internal/metrics"
	"github.com/sightcore/acquisition/internal/shutdown"
	"github.com/sightcore/acquisition/internal/slotbuffer"
	"github.com/sightcore/acquisition/internal/stats"
)

// CameraStage is the source of the pipeline: it owns the camera or
// video-file collaborator and publishes ImageFrames, per SPEC_FULL.md
// §4.3 "Camera stage".
type CameraStage struct {
	camera  external.Camera
	out     *slotbuffer.Writer[ImageFrame]
	stop    *shutdown.Flag
	logger  *log.Logger
	display chan<- external.DisplayFrame

	width, height  int
	exposureMicros uint32
	flip           bool

	pstats *stats.PipelineStats
	reg    *metrics.Registry

	state State
}

// WithCounters attaches the pipeline stats accumulator and Prometheus
// registry this stage reports through; either may be nil. Returns the
// stage so callers can chain it onto the constructor.
func (s *CameraStage) WithCounters(pstats *stats.PipelineStats, reg *metrics.Registry) *CameraStage {
	s.pstats = pstats
	s.reg = reg
	return s
}

// NewCameraStage wires a Camera collaborator to its output buffer's
// writer handle. display may be nil if no display forwarding is wanted.
func NewCameraStage(cam external.Camera, out *slotbuffer.Writer[ImageFrame], stop *shutdown.Flag, logger *log.Logger, exposureMicros uint32, flip bool, display chan<- external.DisplayFrame) *CameraStage {
	return &CameraStage{
		camera:         cam,
		out:            out,
		stop:           stop,
		logger:         logger,
		exposureMicros: exposureMicros,
		flip:           flip,
		display:        display,
		state:          Initializing,
	}
}

// NewImageBuffer builds the ImageSlot buffer this stage publishes into,
// one slot preallocated to width*height*3 bytes to avoid per-frame
// allocation, per SPEC_FULL.md §4.1 responsibility.
func NewImageBuffer(slots, width, height int) (*slotbuffer.Buffer[ImageFrame], error) {
	return slotbuffer.New(slots, func() (ImageFrame, error) {
		return ImageFrame{
			Width:  uint32(width),
			Height: uint32(height),
			Pixels: make([]byte, width*height*3),
		}, nil
	})
}

// Run drives the Camera stage's state machine until shutdown or a fatal
// source error, per SPEC_FULL.md §4.3.
func (s *CameraStage) Run() {
	count := 1 // single camera device per SPEC_FULL.md §1 non-goals (no multi-device fan-out)
	w, h, err := s.camera.Initialize(count, s.exposureMicros)
	if err != nil {
		s.logger.Printf("camera: initialize failed: %v", err)
		s.state = Stopped
		s.stop.Stop()
		return
	}
	s.width, s.height = w, h
	s.state = Running

	fps := newFPSCounter(s.logger, "camera", 10)
	if s.reg != nil {
		fps.onSample = func(v float64) { s.reg.CameraFPS.Set(v) }
	}

	for {
		if s.stop.Stopped() {
			break
		}

		g := s.out.Write()
		frame := g.Value()
		if err := s.camera.GetImage(0, frame.Pixels, s.flip); err != nil {
			g.Release()
			s.logger.Printf("camera: get_image failed: %v", err)
			break
		}
		frame.Timestamp = nowFunc()
		timestamp := frame.Timestamp
		var displayRGB []byte
		if s.display != nil {
			// Clone before Release: once released the writer may
			// reclaim this slot, and handing out its backing array
			// would let the display consumer observe a torn frame.
			displayRGB = append([]byte(nil), frame.Pixels...)
		}
		g.Release()
		fps.tick()
		if s.pstats != nil {
			s.pstats.IncCameraFrames()
		}
		if s.reg != nil {
			s.reg.StageFramesTotal.WithLabelValues("camera").Inc()
		}

		if s.display != nil {
			select {
			case s.display <- external.DisplayFrame{Width: s.width, Height: s.height, RGB: displayRGB, Timestamp: timestamp}:
			default:
			}
		}
	}

	s.state = Draining
	s.stop.Stop()
	if err := s.camera.Uninitialize(); err != nil {
		s.logger.Printf("camera: uninitialize failed: %v", err)
	}
	s.out.Close()
	s.state = Stopped
}

// State reports the stage's current state-machine position.
func (s *CameraStage) State() State { return s.state }
