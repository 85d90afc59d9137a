// Package heartbeat implements the keepalive daemon of SPEC_FULL.md
// §4.5: a ticker-driven worker that periodically submits a
// HeartbeatReq and treats any failure as fatal for the session.
package heartbeat

import (
	"log"
	"time"

	"github.com/sightcore/acquisition/internal/metrics"
	"github.com/sightcore/acquisition/internal/protocol/command"
	"github.com/sightcore/acquisition/internal/protocol/frame"
	"github.com/sightcore/acquisition/internal/shutdown"
	"github.com/sightcore/acquisition/internal/stats"
)

// Emitter is the narrow slice of session.CommandEmitter the daemon
// needs.
type Emitter interface {
	ExecuteCommand(req frame.Record) (*command.CommonResp, error)
}

// Daemon periodically issues HeartbeatReq via emitter, per SPEC_FULL.md
// §4.5. Period defaults to 1 second if zero.
type Daemon struct {
	emitter  Emitter
	period   time.Duration
	stop     *shutdown.Flag
	logger   *log.Logger
	shutdown <-chan struct{}
	done     chan struct{}

	pstats *stats.PipelineStats
	reg    *metrics.Registry
}

// New builds a heartbeat Daemon. shutdownCh is the one-shot supervisor
// channel described in SPEC_FULL.md §4.5; closing it requests an
// orderly stop independent of a failed heartbeat.
func New(emitter Emitter, period time.Duration, stop *shutdown.Flag, logger *log.Logger, shutdownCh <-chan struct{}) *Daemon {
	if period <= 0 {
		period = time.Second
	}
	return &Daemon{emitter: emitter, period: period, stop: stop, logger: logger, shutdown: shutdownCh, done: make(chan struct{})}
}

// WithCounters attaches the pipeline stats accumulator and Prometheus
// registry this daemon reports through; either may be nil.
func (d *Daemon) WithCounters(pstats *stats.PipelineStats, reg *metrics.Registry) *Daemon {
	d.pstats = pstats
	d.reg = reg
	return d
}

// Run drives the daemon until a heartbeat fails, the supervisor signals
// shutdown, or the global stop flag is observed. On a failed heartbeat
// it logs, sets the stop flag, and exits.
func (d *Daemon) Run() {
	defer close(d.done)
	ticker := time.NewTicker(d.period)
	defer ticker.Stop()

	for {
		select {
		case <-d.shutdown:
			return
		case <-ticker.C:
			if d.stop.Stopped() {
				return
			}
			sent := time.Now()
			if _, err := d.emitter.ExecuteCommand(&command.HeartbeatReq{}); err != nil {
				d.logger.Printf("heartbeat: request failed, stopping session: %v", err)
				if d.pstats != nil {
					d.pstats.IncHeartbeatFailed()
				}
				d.stop.Stop()
				return
			}
			if d.pstats != nil {
				d.pstats.IncHeartbeatOK()
			}
			if d.reg != nil {
				d.reg.HeartbeatRTT.Observe(time.Since(sent).Seconds())
			}
		}
	}
}

// Done reports when Run has returned, for supervisors that want to join
// the daemon without a separate WaitGroup.
func (d *Daemon) Done() <-chan struct{} { return d.done }
