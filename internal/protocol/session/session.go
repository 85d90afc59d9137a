// Package session implements the CommandEmitter and connection
// lifecycle of SPEC_FULL.md §4.5: a single control socket shared by many
// concurrent callers, correlated by command identifier rather than
// sequence number, with one dedicated receive worker. Grounded on the
// map-of-in-flight-work-plus-mutex shape of SagerNet-smux's Session
// (streams map[uint32]*stream guarded by a mutex, a die channel for
// shutdown) adapted from stream multiplexing to request/reply
// correlation.
package session

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/sightcore/acquisition/internal/errs"
	"github.com/sightcore/acquisition/internal/metrics"
	"github.com/sightcore/acquisition/internal/protocol/command"
	"github.com/sightcore/acquisition/internal/protocol/frame"
	"github.com/sightcore/acquisition/internal/stats"
)

const (
	socketReadTimeout = time.Second
	commandTimeout    = 3 * time.Second
)

// cmdKey identifies a pending-reply slot by the request's (cmd_set,
// cmd_id), matching the catalog's own addressing.
type cmdKey struct{ set, id uint8 }

// pendingEntry is one reusable reply channel per command id, per
// SPEC_FULL.md §9's Open Question resolution. mu is the per-id latch:
// only one ExecuteCommand call for this id may be in flight at a time.
type pendingEntry struct {
	mu sync.Mutex
	ch chan []byte
}

// CommandEmitter owns the control socket, the sequence-number counter,
// and the pending-reply table, per SPEC_FULL.md §4.5.
type CommandEmitter struct {
	conn   *net.UDPConn
	logger *log.Logger

	mu      sync.Mutex
	seq     uint16
	pending map[cmdKey]*pendingEntry

	shutdown  chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	pstats *stats.PipelineStats
	reg    *metrics.Registry
}

// NewCommandEmitter takes ownership of conn (already connected to the
// device address) and starts its single receive worker.
func NewCommandEmitter(conn *net.UDPConn, logger *log.Logger) *CommandEmitter {
	e := &CommandEmitter{
		conn:     conn,
		logger:   logger,
		pending:  make(map[cmdKey]*pendingEntry),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go e.receiveWorker()
	return e
}

// WithCounters attaches the pipeline stats accumulator and Prometheus
// registry this emitter reports through; either may be nil.
func (e *CommandEmitter) WithCounters(pstats *stats.PipelineStats, reg *metrics.Registry) *CommandEmitter {
	e.pstats = pstats
	e.reg = reg
	return e
}

func (e *CommandEmitter) entryFor(key cmdKey) *pendingEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	pe, ok := e.pending[key]
	if !ok {
		pe = &pendingEntry{ch: make(chan []byte, 1)}
		e.pending[key] = pe
	}
	return pe
}

// nextSeq returns the next seq_num and advances the counter; uint16
// wraparound on overflow gives seq_num=0 after 65535, satisfying
// invariant 6 for free.
func (e *CommandEmitter) nextSeq() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := e.seq
	e.seq++
	return s
}

// ExecuteCommand sends req and blocks for its CommonResp, per
// SPEC_FULL.md §4.5. Concurrent callers for distinct command ids proceed
// independently; concurrent callers for the same id serialize on that
// id's latch. A non-zero ret_code is elevated to a DeviceStatus error
// (the decoded response is still returned alongside it).
func (e *CommandEmitter) ExecuteCommand(req frame.Record) (*command.CommonResp, error) {
	key := cmdKey{set: req.CmdSet(), id: req.CmdID()}
	pe := e.entryFor(key)

	pe.mu.Lock()
	defer pe.mu.Unlock()

	seq := e.nextSeq()
	buf, err := frame.Encode(frame.CmdTypeCmd, seq, req)
	if err != nil {
		return nil, err
	}
	if _, err := e.conn.Write(buf); err != nil {
		return nil, errs.TransientIO(err)
	}

	select {
	case body := <-pe.ch:
		resp := &command.CommonResp{}
		if err := resp.Decode(body); err != nil {
			return nil, err
		}
		if resp.RetCode != 0 {
			if e.reg != nil {
				e.reg.DeviceStatusErrors.Inc()
			}
			return resp, errs.DeviceStatus(int(resp.RetCode))
		}
		return resp, nil
	case <-e.shutdown:
		return nil, errs.Shutdown()
	case <-time.After(commandTimeout):
		return nil, errs.TransientIO(fmt.Errorf("timed out waiting for reply to cmd_set=0x%02x cmd_id=0x%02x", key.set, key.id))
	}
}

// receiveWorker is the control socket's single reader, per SPEC_FULL.md
// §4.5 and §5's "shared-resource policy". A malformed frame is logged
// and skipped; it must not take down the session.
func (e *CommandEmitter) receiveWorker() {
	defer close(e.done)
	buf := make([]byte, 1500)
	for {
		select {
		case <-e.shutdown:
			return
		default:
		}

		e.conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
		n, err := e.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue // a 1s timeout is a poll point, not a shutdown signal
			}
			select {
			case <-e.shutdown:
				return
			default:
			}
			e.logger.Printf("session: control socket read failed: %v", err)
			continue
		}

		decoded, err := frame.Decode(buf[:n])
		if err != nil {
			e.logger.Printf("session: dropping malformed frame: %v", err)
			if e.pstats != nil {
				e.pstats.IncCrcFailures()
			}
			if e.reg != nil {
				e.reg.CrcFailuresTotal.WithLabelValues(subkindLabel(err)).Inc()
			}
			continue
		}
		if len(decoded.Body) < 2 {
			continue
		}
		key := cmdKey{set: decoded.Body[0], id: decoded.Body[1]}

		e.mu.Lock()
		pe, ok := e.pending[key]
		e.mu.Unlock()
		if !ok {
			continue
		}

		body := append([]byte(nil), decoded.Body...)
		select {
		case pe.ch <- body:
		default:
			// a stale or duplicate reply with nobody waiting; drop it
			// rather than block the only socket reader.
		}
	}
}

// subkindLabel extracts a frame decode error's ProtocolSubkind as a
// metric label, falling back to "Unknown" for anything else.
func subkindLabel(err error) string {
	e, ok := err.(*errs.Error)
	if !ok || e.Kind != errs.KindProtocol {
		return "Unknown"
	}
	return e.Sub.String()
}

// Close signals the receive worker to stop and unblocks every waiter
// with the distinguished Shutdown error, then waits for the worker to
// exit.
func (e *CommandEmitter) Close() {
	e.closeOnce.Do(func() {
		close(e.shutdown)
	})
	<-e.done
}
