//go:build unified

package unifieditem

import (
	"unsafe"

	"github.com/sightcore/acquisition/internal/external"
)

// unifiedDeviceBuffer wraps the single managed allocation both host and
// device views share in unified mode.
type unifiedDeviceBuffer struct {
	ptr unsafe.Pointer
	n   int
}

// unifiedBacking is the "unified" build's UnifiedItem mode: a single
// managed allocation accessible from both sides; all four accessors
// return the same pointer, per SPEC_FULL.md §4.2 ("Unified mode").
type unifiedBacking[T any] struct {
	gpu     external.GPURuntime
	hostBuf []T
	dev     external.DeviceBuffer
	n       int
}

func newBacking[T any](gpu external.GPURuntime, n int) (backing[T], error) {
	return &unifiedBacking[T]{gpu: gpu, hostBuf: make([]T, n), n: n}, nil
}

func (u *unifiedBacking[T]) host() []T { return u.hostBuf }

func (u *unifiedBacking[T]) device() (external.DeviceBuffer, error) {
	if u.dev == nil {
		if len(u.hostBuf) == 0 {
			u.dev = unifiedDeviceBuffer{n: u.n}
		} else {
			u.dev = unifiedDeviceBuffer{ptr: unsafe.Pointer(&u.hostBuf[0]), n: u.n}
		}
	}
	return u.dev, nil
}

// toDevice/toHost are no-ops in unified mode: there is only one
// allocation, so there is nothing to copy between sides.
func (u *unifiedBacking[T]) toDevice() error {
	_, err := u.device()
	return err
}

func (u *unifiedBacking[T]) toHost() error { return nil }

func (u *unifiedBacking[T]) len() int { return u.n }

func (u *unifiedBacking[T]) free() error { return nil }
