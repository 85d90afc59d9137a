package stats

import (
	"strconv"
	"sync/atomic"
)

// PipelineStats accumulates the pipeline/protocol counters this core
// tracks across its lifetime, independent of whatever the Prometheus
// registry separately exposes; it exists so a CSV trail survives even
// when no metrics scraper is attached.
type PipelineStats struct {
	cameraFrames      atomic.Uint64
	inferenceFrames   atomic.Uint64
	postprocessFrames atomic.Uint64
	posesPublished    atomic.Uint64
	crcFailures       atomic.Uint64
	heartbeatsOK      atomic.Uint64
	heartbeatsFailed  atomic.Uint64
}

func (s *PipelineStats) IncCameraFrames()      { s.cameraFrames.Add(1) }
func (s *PipelineStats) IncInferenceFrames()   { s.inferenceFrames.Add(1) }
func (s *PipelineStats) IncPostprocessFrames() { s.postprocessFrames.Add(1) }
func (s *PipelineStats) IncPosesPublished()    { s.posesPublished.Add(1) }
func (s *PipelineStats) IncCrcFailures()       { s.crcFailures.Add(1) }
func (s *PipelineStats) IncHeartbeatOK()       { s.heartbeatsOK.Add(1) }
func (s *PipelineStats) IncHeartbeatFailed()   { s.heartbeatsFailed.Add(1) }

// Header implements Source.
func (s *PipelineStats) Header() []string {
	return []string{
		"CameraFrames", "InferenceFrames", "PostprocessFrames",
		"PosesPublished", "CrcFailures", "HeartbeatsOK", "HeartbeatsFailed",
	}
}

// ToSlice implements Source.
func (s *PipelineStats) ToSlice() []string {
	return []string{
		strconv.FormatUint(s.cameraFrames.Load(), 10),
		strconv.FormatUint(s.inferenceFrames.Load(), 10),
		strconv.FormatUint(s.postprocessFrames.Load(), 10),
		strconv.FormatUint(s.posesPublished.Load(), 10),
		strconv.FormatUint(s.crcFailures.Load(), 10),
		strconv.FormatUint(s.heartbeatsOK.Load(), 10),
		strconv.FormatUint(s.heartbeatsFailed.Load(), 10),
	}
}
