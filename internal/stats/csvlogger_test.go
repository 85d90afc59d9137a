package stats

import (
	"encoding/csv"
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoggerWritesHeaderThenRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "acquisition.csv")

	var s PipelineStats
	s.IncCameraFrames()
	s.IncCameraFrames()
	s.IncCrcFailures()

	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		Logger(path, 10*time.Millisecond, &s, log.New(io.Discard, "", 0), stopCh)
	}()

	time.Sleep(35 * time.Millisecond)
	close(stopCh)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Logger did not stop after stopCh closed")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) < 2 {
		t.Fatalf("expected a header row plus at least one data row, got %d rows", len(rows))
	}
	if rows[0][1] != "CameraFrames" {
		t.Fatalf("header[1] = %q, want CameraFrames", rows[0][1])
	}
	if rows[1][1] != "2" {
		t.Fatalf("first data row CameraFrames = %q, want 2", rows[1][1])
	}
}

func TestLoggerDisabledWithoutPath(t *testing.T) {
	var s PipelineStats
	stopCh := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		Logger("", time.Second, &s, log.New(io.Discard, "", 0), stopCh)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Logger with empty path should return immediately")
	}
}
