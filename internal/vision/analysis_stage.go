package vision

import (
	"log"

	"github.com/sightcore/acquisition/internal/shutdown"
	"github.com/sightcore/acquisition/internal/slotbuffer"
)

// PoseSink receives the terminal Analysis stage's output: an
// external-collaborator primitive per SPEC_FULL.md §4.3, modeled here
// as a narrow publish boundary so tests can observe what was produced.
type PoseSink interface {
	Publish(Pose)
}

// AnalysisStage is the pipeline's terminal consumer: for each
// whitelisted-class detection it solves pose against the fixed target
// points and publishes the result, per SPEC_FULL.md §4.3 "Analysis
// stage".
type AnalysisStage struct {
	in     *slotbuffer.Reader[DetectionList]
	sink   PoseSink
	intr   Intrinsics
	stop   *shutdown.Flag
	logger *log.Logger

	state State
}

// NewAnalysisStage wires the stage to its upstream reader and pose sink.
func NewAnalysisStage(in *slotbuffer.Reader[DetectionList], sink PoseSink, intr Intrinsics, stop *shutdown.Flag, logger *log.Logger) *AnalysisStage {
	return &AnalysisStage{in: in, sink: sink, intr: intr, stop: stop, logger: logger, state: Initializing}
}

// Run drives the Analysis stage until shutdown or upstream closure. As
// the terminal stage it does not own a downstream buffer; on exit it
// only needs to set the stop flag for any remaining peers.
func (s *AnalysisStage) Run() {
	s.state = Running
	for {
		if s.stop.Stopped() {
			break
		}

		rg, ok := s.in.Read()
		if !ok {
			break
		}
		list := rg.Value()
		items := append([]Detection(nil), list.Items...)
		timestamp := list.Timestamp
		rg.Release()

		for _, d := range items {
			if !whitelistedClasses[d.Class] {
				continue
			}
			pts := keypointsForPnP(d)
			R, T, err := SolvePnP(pts, s.intr)
			if err != nil {
				s.logger.Printf("analysis: pnp solve failed: %v", err)
				continue
			}
			s.sink.Publish(Pose{Rotation: R, Translation: T, Timestamp: timestamp, Class: d.Class})
		}
	}

	s.state = Draining
	s.stop.Stop()
	s.state = Stopped
}

// State reports the stage's current state-machine position.
func (s *AnalysisStage) State() State { return s.state }
