// Package vision implements the Pipeline Core of SPEC_FULL.md §2–§4.3:
// Camera → Inference → Postprocess → Analysis, each stage a worker
// goroutine cooperating through SharedSlotBuffer[T] channels and a
// single shutdown.Flag.
package vision

import "time"

// ImageFrame is the Data Model entity from SPEC_FULL.md §3: packed
// 8-bit RGB bytes plus a monotonic capture timestamp.
type ImageFrame struct {
	Width, Height uint32
	Pixels        []byte // len == Width*Height*3
	Timestamp     time.Time
}

// Tensor is the Data Model entity from SPEC_FULL.md §3: an ordered
// shape plus a float32 payload whose length is the product of the
// shape, carrying the source frame's timestamp forward.
type Tensor struct {
	Shape     []int
	Data      []float32
	Timestamp time.Time
}

// DetectionClass is the closed enum set of SPEC_FULL.md §3.
type DetectionClass int

const (
	ClassUnknown DetectionClass = iota
	ClassTargetA
	ClassTargetB
	ClassTargetC
)

// whitelistedClasses is the set of classes the Analysis stage solves
// pose for, per SPEC_FULL.md §4.3 ("whose class is in a whitelisted
// set").
var whitelistedClasses = map[DetectionClass]bool{
	ClassTargetA: true,
	ClassTargetB: true,
	ClassTargetC: true,
}

// Point2D is an image-plane coordinate.
type Point2D struct {
	X, Y float32
}

// Detection is the Data Model entity from SPEC_FULL.md §3: a bounding
// box, confidence, class, and five keypoints.
type Detection struct {
	X, Y, W, H float32
	Confidence float32
	Class      DetectionClass
	Keypoints  [5]Point2D
}

// DetectionList is a bounded vector of Detection sharing the upstream
// tensor's timestamp, per SPEC_FULL.md §3.
type DetectionList struct {
	Items     []Detection
	Timestamp time.Time
}

// Pose is the rotation/translation result of the Analysis stage's PnP
// solve — an external-collaborator primitive per SPEC_FULL.md §4.3,
// represented here as the minimal data the pipeline publishes onward.
type Pose struct {
	Rotation    [3][3]float64
	Translation [3]float64
	Timestamp   time.Time
	Class       DetectionClass
}
