// Package unifieditem implements UnifiedItem<T> from SPEC_FULL.md §4.2:
// a length-N typed buffer paired across host and device memory with
// explicit direction-of-validity tracking.
//
// Two modes are chosen at build time by platform, per the design note
// in SPEC_FULL.md §9 ("model as a variant over two concrete
// implementations behind a single capability set"), generalizing the
// teacher's own platform-variant-by-build-tag convention
// (client/dial.go's "!linux" tag, client/utils_android.go's
// android-only file): the default build is mirrored mode (separate host
// and device allocations); building with the "unified" tag selects
// unified mode (one managed allocation serving both views). The
// selection point is the unexported newBacking constructor, implemented
// once per build tag in mirrored.go / unified.go.
package unifieditem

import (
	"unsafe"

	"github.com/sightcore/acquisition/internal/external"
)

// backing is the capability set both modes implement.
type backing[T any] interface {
	host() []T
	device() (external.DeviceBuffer, error)
	toDevice() error
	toHost() error
	len() int
	free() error
}

// Item is a length-N buffer visible from both host and device code.
type Item[T any] struct {
	b backing[T]
}

// New allocates an Item of n elements of T backed by gpu, in whichever
// mode this binary was built for.
func New[T any](gpu external.GPURuntime, n int) (*Item[T], error) {
	b, err := newBacking[T](gpu, n)
	if err != nil {
		return nil, err
	}
	return &Item[T]{b: b}, nil
}

// Host returns a mutable host-side view without copying.
func (it *Item[T]) Host() []T { return it.b.host() }

// Device returns a device pointer, synchronized from host at least once
// since construction (lazily allocating/copying on first call in
// mirrored mode).
func (it *Item[T]) Device() (external.DeviceBuffer, error) { return it.b.device() }

// ToDevice forces a host-to-device copy.
func (it *Item[T]) ToDevice() error { return it.b.toDevice() }

// ToHost forces a device-to-host copy. No-op if the device side does
// not yet exist.
func (it *Item[T]) ToHost() error { return it.b.toHost() }

// Len returns the element count.
func (it *Item[T]) Len() int { return it.b.len() }

// Close releases the backing allocation(s) deterministically, per
// SPEC_FULL.md §3 ("UnifiedItem allocations are released deterministically
// at drop").
func (it *Item[T]) Close() error { return it.b.free() }

// byteLenOf computes the byte size of n elements of T via unsafe.Sizeof
// on the zero value, the idiomatic way to size a raw device allocation
// for an arbitrary element type without requiring T to implement any
// interface.
func byteLenOf[T any](n int) int {
	var zero T
	return int(unsafe.Sizeof(zero)) * n
}

// asBytes reinterprets a host slice as its raw bytes for handing to a
// GPURuntime copy call, which only ever deals in []byte.
func asBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	sz := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*sz)
}
