package vision

import (
	"log"
	"sync"
	"testing"
	"time"

	"github.com/sightcore/acquisition/internal/external"
	"github.com/sightcore/acquisition/internal/shutdown"
	"github.com/sightcore/acquisition/internal/slotbuffer"
)

type fakeCamera struct {
	w, h int
}

func (c *fakeCamera) Initialize(count int, exposure uint32) (int, int, error) { return c.w, c.h, nil }
func (c *fakeCamera) GetImage(index int, rgb []byte, flip bool) error {
	for i := range rgb {
		rgb[i] = byte(i)
	}
	return nil
}
func (c *fakeCamera) Uninitialize() error { return nil }

type fakeGPU struct{}

func (fakeGPU) AllocDevice(n int) (external.DeviceBuffer, error) { return nil, nil }
func (fakeGPU) FreeDevice(external.DeviceBuffer) error           { return nil }
func (fakeGPU) CopyHostToDevice(external.DeviceBuffer, []byte) error { return nil }
func (fakeGPU) CopyDeviceToHost([]byte, external.DeviceBuffer) error { return nil }
func (fakeGPU) ConvertRGB888Tensor(src []byte, dst []float32, w, h int) error {
	for i := range dst {
		dst[i] = float32(i)
	}
	return nil
}

type fakeInferCtx struct{}

func (fakeInferCtx) SetInput([]float32) error  { return nil }
func (fakeInferCtx) SetOutput([]float32) error { return nil }
func (fakeInferCtx) Infer() error              { return nil }

type fakePostprocess struct{}

func (fakePostprocess) Init(int, float32, float32, int) error { return nil }
func (fakePostprocess) Destroy() error                        { return nil }
func (fakePostprocess) Run(in, out []float32) (int, error) {
	row := out[0:detectionRowFloats]
	row[0], row[1], row[2], row[3] = 10, 10, 20, 20
	row[4] = 0.9
	row[5] = float32(ClassTargetA)
	for k := 0; k < 5; k++ {
		row[6+2*k] = float32(100 + k)
		row[6+2*k+1] = float32(100 + k)
	}
	return 1, nil
}

type collectingSink struct {
	mu    sync.Mutex
	poses []Pose
}

func (s *collectingSink) Publish(p Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.poses = append(s.poses, p)
}

func (s *collectingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.poses)
}

// TestFourStagePipelineShutdownJoin mirrors scenario S6: starting all
// four stages then setting the stop flag must let every stage exit
// (here: every Run() goroutine returns) within a couple of seconds, via
// the cascading buffer-close shutdown notification.
func TestFourStagePipelineShutdownJoin(t *testing.T) {
	logger := log.New(testWriter{t}, "", 0)
	stop := &shutdown.Flag{}

	const w, h = 4, 4
	imgBuf, err := NewImageBuffer(3, w, h)
	if err != nil {
		t.Fatalf("NewImageBuffer: %v", err)
	}
	tensorBuf, err := NewTensorBuffer(3, []int{w * h * 3})
	if err != nil {
		t.Fatalf("NewTensorBuffer: %v", err)
	}
	detBuf, err := NewDetectionBuffer(3, 25)
	if err != nil {
		t.Fatalf("NewDetectionBuffer: %v", err)
	}

	camera := NewCameraStage(&fakeCamera{w: w, h: h}, slotbuffer.NewWriter(imgBuf), stop, logger, 4000, false, nil)
	inference := NewInferenceStage(imgBuf.GetReader(), slotbuffer.NewWriter(tensorBuf), fakeGPU{}, fakeInferCtx{}, stop, logger, nil)
	postprocess := NewPostprocessStage(tensorBuf.GetReader(), slotbuffer.NewWriter(detBuf), fakePostprocess{}, 25, stop, logger, nil)
	sink := &collectingSink{}
	analysis := NewAnalysisStage(detBuf.GetReader(), sink, DefaultIntrinsics, stop, logger)

	var wg sync.WaitGroup
	wg.Add(4)
	for _, run := range []func(){camera.Run, inference.Run, postprocess.Run, analysis.Run} {
		run := run
		go func() { defer wg.Done(); run() }()
	}

	time.Sleep(100 * time.Millisecond)
	stop.Stop()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("pipeline did not shut down within 2 seconds")
	}

	if sink.count() == 0 {
		t.Fatalf("expected at least one pose to have been published before shutdown")
	}
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
