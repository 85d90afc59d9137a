package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sightcore/acquisition/internal/shutdown"
)

// installSignalHandler mirrors the teacher's client/signal.go
// init()-launched goroutine shape, repurposed from "dump KCP SNMP on
// SIGUSR1" to "on SIGINT, request an orderly protocol disconnect and
// flip the stop flag" per SPEC_FULL.md §4.5 and §7.
func installSignalHandler(stop *shutdown.Flag, disconnect func()) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-ch
		log.Printf("signal: received %v, shutting down", sig)
		disconnect()
		stop.Stop()
	}()
}
