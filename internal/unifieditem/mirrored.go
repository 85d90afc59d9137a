//go:build !unified

package unifieditem

import "github.com/sightcore/acquisition/internal/external"

// mirroredBacking is the default build's UnifiedItem mode: separate host
// and device allocations, with explicit toDevice/toHost copies
// (SPEC_FULL.md §4.2 "Mirrored mode").
type mirroredBacking[T any] struct {
	gpu      external.GPURuntime
	hostBuf  []T
	dev      external.DeviceBuffer
	devValid bool
	n        int
}

func newBacking[T any](gpu external.GPURuntime, n int) (backing[T], error) {
	return &mirroredBacking[T]{gpu: gpu, hostBuf: make([]T, n), n: n}, nil
}

func (m *mirroredBacking[T]) host() []T { return m.hostBuf }

// device lazily allocates and copies from host if the device allocation
// does not yet exist, per SPEC_FULL.md §4.2.
func (m *mirroredBacking[T]) device() (external.DeviceBuffer, error) {
	if !m.devValid {
		if err := m.toDevice(); err != nil {
			return nil, err
		}
	}
	return m.dev, nil
}

func (m *mirroredBacking[T]) toDevice() error {
	if m.dev == nil {
		buf, err := m.gpu.AllocDevice(byteLenOf[T](m.n))
		if err != nil {
			return err
		}
		m.dev = buf
	}
	if err := m.gpu.CopyHostToDevice(m.dev, asBytes(m.hostBuf)); err != nil {
		return err
	}
	m.devValid = true
	return nil
}

// toHost is a no-op if the device side does not yet exist, per
// SPEC_FULL.md §4.2.
func (m *mirroredBacking[T]) toHost() error {
	if m.dev == nil {
		return nil
	}
	return m.gpu.CopyDeviceToHost(asBytes(m.hostBuf), m.dev)
}

func (m *mirroredBacking[T]) len() int { return m.n }

func (m *mirroredBacking[T]) free() error {
	if m.dev == nil {
		return nil
	}
	err := m.gpu.FreeDevice(m.dev)
	m.dev = nil
	m.devValid = false
	return err
}
