package vision

import (
	"log"

	"github.com/sightcore/acquisition/internal/external"
	"github.com/sightcore/acquisition/internal/metrics"
	"github.com/sightcore/acquisition/internal/shutdown"
	"github.com/sightcore/acquisition/internal/slotbuffer"
	"github.com/sightcore/acquisition/internal/stats"
)

// InferenceStage converts each input image into a normalized tensor and
// runs the detector on it, per SPEC_FULL.md §4.3 "Inference stage".
type InferenceStage struct {
	in      *slotbuffer.Reader[ImageFrame]
	out     *slotbuffer.Writer[Tensor]
	gpu     external.GPURuntime
	ctx     external.InferenceContext
	stop    *shutdown.Flag
	logger  *log.Logger
	display chan<- external.DisplayFrame

	pstats *stats.PipelineStats
	reg    *metrics.Registry

	state State
}

// WithCounters attaches the pipeline stats accumulator and Prometheus
// registry this stage reports through; either may be nil.
func (s *InferenceStage) WithCounters(pstats *stats.PipelineStats, reg *metrics.Registry) *InferenceStage {
	s.pstats = pstats
	s.reg = reg
	return s
}

// NewInferenceStage wires an input reader, an owned output writer, the
// GPU conversion collaborator, and an inference execution context.
func NewInferenceStage(in *slotbuffer.Reader[ImageFrame], out *slotbuffer.Writer[Tensor], gpu external.GPURuntime, ctx external.InferenceContext, stop *shutdown.Flag, logger *log.Logger, display chan<- external.DisplayFrame) *InferenceStage {
	return &InferenceStage{in: in, out: out, gpu: gpu, ctx: ctx, stop: stop, logger: logger, display: display, state: Initializing}
}

// NewTensorBuffer builds the TensorSlot buffer this stage publishes
// into, one slot preallocated to the product of shape floats.
func NewTensorBuffer(slots int, shape []int) (*slotbuffer.Buffer[Tensor], error) {
	n := 1
	for _, d := range shape {
		n *= d
	}
	shapeCopy := append([]int(nil), shape...)
	return slotbuffer.New(slots, func() (Tensor, error) {
		return Tensor{Shape: append([]int(nil), shapeCopy...), Data: make([]float32, n)}, nil
	})
}

// Run drives the Inference stage until shutdown or upstream closure.
func (s *InferenceStage) Run() {
	s.state = Running
	for {
		if s.stop.Stopped() {
			break
		}

		rg, ok := s.in.Read()
		if !ok {
			break
		}
		frame := rg.Value()

		if s.display != nil {
			clone := append([]byte(nil), frame.Pixels...)
			select {
			case s.display <- external.DisplayFrame{Width: int(frame.Width), Height: int(frame.Height), RGB: clone, Timestamp: frame.Timestamp}:
			default:
			}
		}

		wg := s.out.Write()
		tensor := wg.Value()

		convErr := s.gpu.ConvertRGB888Tensor(frame.Pixels, tensor.Data, int(frame.Width), int(frame.Height))
		timestamp := frame.Timestamp
		rg.Release()

		if convErr != nil {
			wg.Discard()
			s.logger.Printf("inference: tensor conversion failed: %v", convErr)
			continue
		}

		if err := s.ctx.SetInput(tensor.Data); err != nil {
			wg.Discard()
			s.logger.Printf("inference: set_input failed: %v", err)
			continue
		}
		if err := s.ctx.SetOutput(tensor.Data); err != nil {
			wg.Discard()
			s.logger.Printf("inference: set_output failed: %v", err)
			continue
		}
		if err := s.ctx.Infer(); err != nil {
			wg.Discard()
			s.logger.Printf("inference: infer failed: %v", err)
			continue
		}

		tensor.Timestamp = timestamp
		wg.Release()
		if s.pstats != nil {
			s.pstats.IncInferenceFrames()
		}
		if s.reg != nil {
			s.reg.StageFramesTotal.WithLabelValues("inference").Inc()
		}
	}

	s.state = Draining
	s.stop.Stop()
	s.out.Close()
	s.state = Stopped
}

// State reports the stage's current state-machine position.
func (s *InferenceStage) State() State { return s.state }
