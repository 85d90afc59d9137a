package heartbeat

import (
	"errors"
	"io"
	"log"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sightcore/acquisition/internal/protocol/command"
	"github.com/sightcore/acquisition/internal/protocol/frame"
	"github.com/sightcore/acquisition/internal/shutdown"
)

type fakeEmitter struct {
	calls  int32
	failOn int32 // 0 = never fail
}

func (e *fakeEmitter) ExecuteCommand(req frame.Record) (*command.CommonResp, error) {
	n := atomic.AddInt32(&e.calls, 1)
	if e.failOn != 0 && n >= e.failOn {
		return nil, errors.New("simulated heartbeat timeout")
	}
	return &command.CommonResp{Set: req.CmdSet(), ID: req.CmdID(), RetCode: 0}, nil
}

func TestDaemonSendsHeartbeatsOnPeriod(t *testing.T) {
	emitter := &fakeEmitter{}
	stop := &shutdown.Flag{}
	shutdownCh := make(chan struct{})
	d := New(emitter, 10*time.Millisecond, stop, log.New(io.Discard, "", 0), shutdownCh)

	go d.Run()
	time.Sleep(55 * time.Millisecond)
	close(shutdownCh)

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatalf("daemon did not stop after shutdown channel closed")
	}

	if atomic.LoadInt32(&emitter.calls) < 3 {
		t.Fatalf("expected at least 3 heartbeats in 55ms at a 10ms period, got %d", emitter.calls)
	}
	if stop.Stopped() {
		t.Fatalf("a clean supervisor shutdown must not set the global stop flag")
	}
}

func TestDaemonStopsFlagOnFailedHeartbeat(t *testing.T) {
	emitter := &fakeEmitter{failOn: 2}
	stop := &shutdown.Flag{}
	shutdownCh := make(chan struct{})
	defer close(shutdownCh)
	d := New(emitter, 5*time.Millisecond, stop, log.New(io.Discard, "", 0), shutdownCh)

	go d.Run()

	select {
	case <-d.Done():
	case <-time.After(time.Second):
		t.Fatalf("daemon did not exit after a failed heartbeat")
	}

	if !stop.Stopped() {
		t.Fatalf("a failed heartbeat must set the global stop flag")
	}
}
