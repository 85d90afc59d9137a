package session

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/sightcore/acquisition/internal/errs"
	"github.com/sightcore/acquisition/internal/metrics"
	"github.com/sightcore/acquisition/internal/protocol/command"
	"github.com/sightcore/acquisition/internal/protocol/frame"
	"github.com/sightcore/acquisition/internal/shutdown"
	"github.com/sightcore/acquisition/internal/stats"
)

// State is the session lifecycle's position, per SPEC_FULL.md §4.5:
// discover → handshake → sample → disconnect.
type State int

const (
	StateDiscovering State = iota
	StateConnected
	StateSampling
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateDiscovering:
		return "Discovering"
	case StateConnected:
		return "Connected"
	case StateSampling:
		return "Sampling"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Endpoints are the compile-time-constant-equivalent addresses
// SPEC_FULL.md §6 requires: the client's own IP and the three ports it
// advertises to the device during handshake.
type Endpoints struct {
	UserIP   string
	CmdPort  uint16
	DataPort uint16
	ImuPort  uint16
}

// Session is a connected control-plane session: the CommandEmitter plus
// the lifecycle state machine around it.
type Session struct {
	emitter *CommandEmitter
	state   State
	logger  *log.Logger
}

// Discover blocks on the broadcast socket at 0.0.0.0:55000 until a
// Broadcast beacon arrives, per SPEC_FULL.md §4.5, and returns the
// device's source address. It polls the shutdown flag on every socket
// timeout. pstats and reg are optional and may be nil.
func Discover(stop *shutdown.Flag, logger *log.Logger, pstats *stats.PipelineStats, reg *metrics.Registry) (*net.UDPAddr, error) {
	laddr, err := net.ResolveUDPAddr("udp", "0.0.0.0:55000")
	if err != nil {
		return nil, errs.Startup(err, "resolve broadcast discovery address")
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return nil, errs.Startup(err, "bind broadcast discovery socket")
	}
	defer conn.Close()

	buf := make([]byte, 1500)
	for {
		if stop.Stopped() {
			return nil, errs.Shutdown()
		}

		conn.SetReadDeadline(time.Now().Add(socketReadTimeout))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return nil, errs.TransientIO(err)
		}

		decoded, err := frame.Decode(buf[:n])
		if err != nil {
			logger.Printf("discovery: dropping malformed beacon: %v", err)
			if pstats != nil {
				pstats.IncCrcFailures()
			}
			if reg != nil {
				reg.CrcFailuresTotal.WithLabelValues(subkindLabel(err)).Inc()
			}
			continue
		}
		if len(decoded.Body) < 2 || decoded.Body[0] != (&command.Broadcast{}).CmdSet() || decoded.Body[1] != (&command.Broadcast{}).CmdID() {
			continue
		}
		var beacon command.Broadcast
		if err := beacon.Decode(decoded.Body); err != nil {
			logger.Printf("discovery: malformed broadcast body: %v", err)
			continue
		}

		logger.Printf("discovery: device found at %s", addr)
		return addr, nil
	}
}

// Connect binds the client control socket to (ep.UserIP, ep.CmdPort),
// connects it to deviceAddr, and performs the handshake request at
// seq=0, per SPEC_FULL.md §4.5.
func Connect(deviceAddr *net.UDPAddr, ep Endpoints, logger *log.Logger) (*Session, error) {
	laddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", ep.UserIP, ep.CmdPort))
	if err != nil {
		return nil, errs.Startup(err, "resolve control socket local address")
	}
	conn, err := net.DialUDP("udp", laddr, deviceAddr)
	if err != nil {
		return nil, errs.Startup(err, "bind/connect control socket")
	}

	emitter := NewCommandEmitter(conn, logger)

	parsed := net.ParseIP(ep.UserIP).To4()
	if parsed == nil {
		emitter.Close()
		return nil, errs.Startup(nil, "USER_IP is not a valid IPv4 address")
	}
	var ip [4]uint8
	copy(ip[:], parsed)

	req := &command.HandshakeReq{UserIP: ip, DataPort: ep.DataPort, CmdPort: ep.CmdPort, ImuPort: ep.ImuPort}
	if _, err := emitter.ExecuteCommand(req); err != nil {
		emitter.Close()
		return nil, errs.Startup(err, "handshake failed")
	}

	return &Session{emitter: emitter, state: StateConnected, logger: logger}, nil
}

// Emitter exposes the session's CommandEmitter for collaborators that
// need to issue their own commands, e.g. the heartbeat daemon.
func (s *Session) Emitter() *CommandEmitter { return s.emitter }

// State reports the session's current lifecycle position.
func (s *Session) State() State { return s.state }

// StartSampling issues SampleCtrlReq{ctrl=0}.
func (s *Session) StartSampling() error {
	if _, err := s.emitter.ExecuteCommand(&command.SampleCtrlReq{Ctrl: 0}); err != nil {
		return err
	}
	s.state = StateSampling
	return nil
}

// EndSampling issues SampleCtrlReq{ctrl=1}.
func (s *Session) EndSampling() error {
	if _, err := s.emitter.ExecuteCommand(&command.SampleCtrlReq{Ctrl: 1}); err != nil {
		return err
	}
	s.state = StateConnected
	return nil
}

// Disconnect emits DisconnectReq best-effort, then tears down the
// emitter's receive worker, per SPEC_FULL.md §4.5.
func (s *Session) Disconnect() {
	if _, err := s.emitter.ExecuteCommand(&command.DisconnectReq{}); err != nil {
		s.logger.Printf("session: disconnect request failed (best effort): %v", err)
	}
	s.emitter.Close()
	s.state = StateDisconnected
}
