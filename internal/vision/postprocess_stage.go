package vision

import (
	"log"

	"github.com/sightcore/acquisition/internal/external"
	"github.com/sightcore/acquisition/internal/metrics"
	"github.com/sightcore/acquisition/internal/shutdown"
	"github.com/sightcore/acquisition/internal/slotbuffer"
	"github.com/sightcore/acquisition/internal/stats"
)

// detectionRowFloats is the width of the dense postprocess output row
// described in SPEC_FULL.md §4.3: (x,y,w,h,conf,cls, 5x(kx,ky)).
const detectionRowFloats = 16

// PostprocessStage runs NMS + decoding on each raw tensor and emits a
// bounded DetectionList, per SPEC_FULL.md §4.3 "Postprocess stage".
type PostprocessStage struct {
	in      *slotbuffer.Reader[Tensor]
	out     *slotbuffer.Writer[DetectionList]
	post    external.Postprocessor
	stop    *shutdown.Flag
	logger  *log.Logger
	display chan<- external.DisplayFrame

	maxDetections int
	denseOut      []float32

	pstats *stats.PipelineStats
	reg    *metrics.Registry

	state State
}

// WithCounters attaches the pipeline stats accumulator and Prometheus
// registry this stage reports through; either may be nil.
func (s *PostprocessStage) WithCounters(pstats *stats.PipelineStats, reg *metrics.Registry) *PostprocessStage {
	s.pstats = pstats
	s.reg = reg
	return s
}

// NewPostprocessStage wires the stage; post must already be configured
// via Init (the stage does not call it) so main can log the resolved
// thresholds once at startup alongside every other config value.
func NewPostprocessStage(in *slotbuffer.Reader[Tensor], out *slotbuffer.Writer[DetectionList], post external.Postprocessor, maxDetections int, stop *shutdown.Flag, logger *log.Logger, display chan<- external.DisplayFrame) *PostprocessStage {
	return &PostprocessStage{
		in:            in,
		out:           out,
		post:          post,
		maxDetections: maxDetections,
		denseOut:      make([]float32, maxDetections*detectionRowFloats),
		stop:          stop,
		logger:        logger,
		display:       display,
		state:         Initializing,
	}
}

// NewDetectionBuffer builds the DetectionSlot buffer this stage
// publishes into, each slot preallocated to capacity detections.
func NewDetectionBuffer(slots, capacity int) (*slotbuffer.Buffer[DetectionList], error) {
	return slotbuffer.New(slots, func() (DetectionList, error) {
		return DetectionList{Items: make([]Detection, 0, capacity)}, nil
	})
}

// Run drives the Postprocess stage until shutdown or upstream closure.
func (s *PostprocessStage) Run() {
	s.state = Running
	for {
		if s.stop.Stopped() {
			break
		}

		rg, ok := s.in.Read()
		if !ok {
			break
		}
		tensor := rg.Value()

		count, err := s.post.Run(tensor.Data, s.denseOut)
		timestamp := tensor.Timestamp
		rg.Release()

		if err != nil {
			s.logger.Printf("postprocess: run failed: %v", err)
			continue
		}
		if count > s.maxDetections {
			count = s.maxDetections
		}

		wg := s.out.Write()
		list := wg.Value()
		list.Items = list.Items[:0]
		for i := 0; i < count; i++ {
			row := s.denseOut[i*detectionRowFloats : (i+1)*detectionRowFloats]
			list.Items = append(list.Items, decodeDetectionRow(row))
		}
		list.Timestamp = timestamp
		wg.Release()

		if s.pstats != nil {
			s.pstats.IncPostprocessFrames()
		}
		if s.reg != nil {
			s.reg.StageFramesTotal.WithLabelValues("postprocess").Inc()
			s.reg.DetectionCount.Set(float64(count))
		}

		if s.display != nil {
			boxes := make([]external.DetectionBox, len(list.Items))
			for i, d := range list.Items {
				boxes[i] = external.DetectionBox{X: d.X, Y: d.Y, W: d.W, H: d.H, Confidence: d.Confidence, Class: int(d.Class)}
			}
			select {
			case s.display <- external.DisplayFrame{Timestamp: timestamp}:
				_ = boxes // boxes are built but not sent: the forwarded DisplayFrame carries only the timestamp
			default:
			}
		}
	}

	s.state = Draining
	s.stop.Stop()
	s.out.Close()
	s.state = Stopped
}

// decodeDetectionRow decodes one dense [16]float32 row into a Detection,
// per the layout in SPEC_FULL.md §4.3: (x,y,w,h,conf,cls, 5x(kx,ky)).
func decodeDetectionRow(row []float32) Detection {
	d := Detection{
		X:          row[0],
		Y:          row[1],
		W:          row[2],
		H:          row[3],
		Confidence: row[4],
		Class:      DetectionClass(int(row[5])),
	}
	for k := 0; k < 5; k++ {
		d.Keypoints[k] = Point2D{X: row[6+2*k], Y: row[6+2*k+1]}
	}
	return d
}

// State reports the stage's current state-machine position.
func (s *PostprocessStage) State() State { return s.state }
