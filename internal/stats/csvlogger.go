// Package stats implements a periodic CSV exporter adapted from the
// teacher's std/snmp.go: a ticker opens (or appends to) a
// time-formatted log path and writes one row of counters per tick.
// Repurposed from kcp.DefaultSnmp's transport counters to this core's
// own pipeline/protocol counters.
package stats

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Source is anything that can describe itself as a CSV header plus one
// row of current values, mirroring kcp.Snmp's Header()/ToSlice() shape.
type Source interface {
	Header() []string
	ToSlice() []string
}

// Logger runs until stopCh is closed, writing one row from source to
// path every interval. path may contain a time.Format layout in its
// filename component (e.g. "logs/acquisition-20060102.csv"), re-resolved
// on every tick, matching the teacher's rotation-by-filename-template
// behavior. A zero path or interval disables the logger entirely.
func Logger(path string, interval time.Duration, source Source, logger *log.Logger, stopCh <-chan struct{}) {
	if path == "" || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := writeRow(path, source); err != nil {
				logger.Printf("stats: write failed: %v", err)
				return
			}
		}
	}
}

func writeRow(path string, source Source) error {
	logdir, logfile := filepath.Split(path)
	resolved := logdir + time.Now().Format(logfile)

	f, err := os.OpenFile(resolved, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if stat, err := f.Stat(); err == nil && stat.Size() == 0 {
		if err := w.Write(append([]string{"Unix"}, source.Header()...)); err != nil {
			return err
		}
	}
	if err := w.Write(append([]string{fmt.Sprint(time.Now().Unix())}, source.ToSlice()...)); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
