package slotbuffer

import (
	"sync"
	"testing"
	"time"
)

func intInit() (int, error) { return 0, nil }

func TestWriteThenReadFreshness(t *testing.T) {
	buf, err := New[int](3, intInit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	writer := NewWriter(buf)
	reader := buf.GetReader()

	for _, v := range []int{1, 2, 3, 42} {
		g := writer.Write()
		*g.Value() = v
		g.Release()
	}

	rg, ok := reader.Read()
	if !ok {
		t.Fatalf("expected a fresh value")
	}
	if got := *rg.Value(); got != 42 {
		t.Fatalf("expected most recent write 42, got %d", got)
	}
	rg.Release()
}

func TestReadBlocksUntilWrite(t *testing.T) {
	buf, err := New[int](2, intInit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	writer := NewWriter(buf)
	reader := buf.GetReader()

	done := make(chan int, 1)
	go func() {
		g, ok := reader.Read()
		if !ok {
			done <- -1
			return
		}
		done <- *g.Value()
		g.Release()
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatalf("read returned before any write was published")
	default:
	}

	g := writer.Write()
	*g.Value() = 7
	g.Release()

	select {
	case v := <-done:
		if v != 7 {
			t.Fatalf("expected 7, got %d", v)
		}
	case <-time.After(time.Second):
		t.Fatalf("read never unblocked after write")
	}
}

func TestShutdownUnblocksReaders(t *testing.T) {
	buf, err := New[int](2, intInit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	writer := NewWriter(buf)
	reader := buf.GetReader()

	done := make(chan bool, 1)
	go func() {
		_, ok := reader.Read()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	writer.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected Read to report shutdown (ok=false)")
		}
	case <-time.After(time.Second):
		t.Fatalf("Read never unblocked after writer Close")
	}
}

// TestOccupiedInvariant is the SPEC_FULL.md §8 invariant 1: the number
// of occupied slots never exceeds 1 (a writer mid-publish) plus the
// number of live read guards.
func TestOccupiedInvariant(t *testing.T) {
	buf, err := New[int](4, intInit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	writer := NewWriter(buf)
	reader := buf.GetReader()

	for i := 0; i < 3; i++ {
		g := writer.Write()
		*g.Value() = i
		g.Release()
	}

	g1, ok := reader.Read()
	if !ok {
		t.Fatalf("expected fresh read")
	}
	g2, ok := reader.Clone().Read()
	if !ok {
		t.Fatalf("expected second fresh read")
	}

	occupied := 0
	buf.infoMu.Lock()
	for _, s := range buf.info {
		if s.occupied {
			occupied++
		}
	}
	buf.infoMu.Unlock()

	if occupied > 1+2 {
		t.Fatalf("occupied invariant violated: occupied=%d with 2 live read guards", occupied)
	}

	g1.Release()
	g2.Release()
}

// TestStarvationMaxObservedEqualsLastWritten mirrors scenario S3: one
// writer publishing a monotonically increasing counter while multiple
// readers continuously read; the maximum value the readers observe must
// equal the last value written. Readers run until Read reports shutdown,
// which it does only once no fresh publication is left.
func TestStarvationMaxObservedEqualsLastWritten(t *testing.T) {
	const n = 3
	const writes = 2000
	buf, err := New[int](n, intInit)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	writer := NewWriter(buf)

	var mu sync.Mutex
	maxObserved := -1
	var wg sync.WaitGroup

	readerLoop := func() {
		defer wg.Done()
		r := buf.GetReader()
		for {
			g, ok := r.Read()
			if !ok {
				return
			}
			v := *g.Value()
			g.Release()
			mu.Lock()
			if v > maxObserved {
				maxObserved = v
			}
			mu.Unlock()
		}
	}

	wg.Add(2)
	go readerLoop()
	go readerLoop()

	lastWritten := -1
	for i := 0; i < writes; i++ {
		g := writer.Write()
		*g.Value() = i
		g.Release()
		lastWritten = i
	}

	writer.Close()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if maxObserved != lastWritten {
		t.Fatalf("max observed value %d, want last written %d", maxObserved, lastWritten)
	}
}
