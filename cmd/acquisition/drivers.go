package main

import (
	"github.com/sightcore/acquisition/internal/external"
	"github.com/sightcore/acquisition/internal/errs"
)

// loadVisionDrivers resolves the concrete Camera/GPURuntime/
// InferenceRuntime/Postprocessor collaborators -mode=vision needs.
// SPEC_FULL.md §6 keeps these entirely external to this module (no
// CUDA/Jetson/camera-SDK dependency is available to link against here,
// mirrored in the teacher's own platform-variant-by-build-tag
// convention, e.g. client/utils_android.go). A real deployment supplies
// this function from a build-tagged file that imports the actual SDKs;
// the default build has none registered.
func loadVisionDrivers() (external.Camera, external.GPURuntime, external.InferenceRuntime, external.Postprocessor, error) {
	return nil, nil, nil, nil, errs.Startup(nil, "no camera/GPU/inference driver linked into this build; add a build-tagged drivers_<platform>.go")
}
