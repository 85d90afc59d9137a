// Package external declares the narrow function-level boundaries to the
// collaborators SPEC_FULL.md §1 and §6 name as deliberately out of
// scope: the concrete camera driver, the concrete GPU/inference runtime,
// the post-processing kernel, and the display renderer. This core only
// ever talks to these through the interfaces below; nothing in this
// module implements them for production use. Test doubles living next
// to the pipeline stages implement them for the pipeline's own tests.
package external

import "time"

// DeviceBuffer is an opaque handle a GPURuntime implementation hands
// back from AllocDevice; this core never interprets its contents.
type DeviceBuffer interface{}

// GPURuntime is the allocate/free/copy/convert boundary of SPEC_FULL.md
// §6 ("GPU runtime"). Implementations own the actual device memory
// model (mirrored-copy or unified-addressing); UnifiedItem only ever
// calls through this interface.
type GPURuntime interface {
	AllocDevice(byteSize int) (DeviceBuffer, error)
	FreeDevice(buf DeviceBuffer) error
	CopyHostToDevice(dst DeviceBuffer, src []byte) error
	CopyDeviceToHost(dst []byte, src DeviceBuffer) error
	// ConvertRGB888Tensor normalizes packed RGB888 pixels in src into
	// the float32 tensor dst, per SPEC_FULL.md §6.
	ConvertRGB888Tensor(src []byte, dst []float32, width, height int) error
}

// Camera is the external camera/video-file collaborator of SPEC_FULL.md
// §6.
type Camera interface {
	Initialize(count int, exposureMicros uint32) (width, height int, err error)
	GetImage(index int, rgb []byte, flip bool) error
	Uninitialize() error
}

// InferenceEngine is a loaded, ready-to-run detector created by
// InferenceRuntime.CreateEngine.
type InferenceEngine interface {
	CreateContext() (InferenceContext, error)
	Release() error
}

// InferenceContext is one execution context bound to an engine.
type InferenceContext interface {
	SetInput(tensor []float32) error
	SetOutput(tensor []float32) error
	Infer() error
}

// InferenceRuntime is the neural-network runtime boundary of
// SPEC_FULL.md §6.
type InferenceRuntime interface {
	CreateEngine(modelPath, inputName, outputName string, width, height int) (InferenceEngine, error)
}

// Postprocessor is the NMS + decode kernel boundary of SPEC_FULL.md §6.
// Run writes a dense [k x 16] row-major layout into out and returns k.
type Postprocessor interface {
	Init(maxDetections int, confidenceThreshold, iouThreshold float32, featureMapSize int) error
	Run(in []float32, out []float32) (count int, err error)
	Destroy() error
}

// DisplayFrame is what the Camera/Inference/Postprocess stages forward
// to the (entirely external) display renderer.
type DisplayFrame struct {
	Width, Height int
	RGB           []byte
	Timestamp     time.Time
}

// Display accepts cloned artifacts for rendering; rendering itself is
// entirely external (SPEC_FULL.md §1, §6).
type Display interface {
	ShowImage(frame DisplayFrame)
	ShowDetections(frame DisplayFrame, boxes []DetectionBox)
}

// DetectionBox is the minimal shape Display needs; the full Detection
// type lives in package vision to avoid a needless import of vision's
// detail from here.
type DetectionBox struct {
	X, Y, W, H float32
	Confidence float32
	Class      int
}
