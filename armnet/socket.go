// Package armnet implements the per-arm TCP command protocol: the single
// persistent socket (ArmSocket) and the three-socket arm session
// (Session) that multiplexes motion, query and gripper commands against
// one physical arm.
package armnet

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/yumi-robotics/yumi-control/wire"
)

// keepalive parameters applied to every arm socket so a silently dropped
// connection is detected quickly.
const (
	keepAliveIdle     = 1 * time.Second
	keepAliveInterval = 1 * time.Second
	keepAliveCount    = 2

	bufSize = 4096
)

// CommError wraps any socket-level failure — dial, send, recv, or a
// malformed response frame — with the arm and socket name that saw it, so
// callers can tell "the controller rejected the motion" (ControlError)
// apart from "we couldn't talk to it at all".
type CommError struct {
	ArmName    string
	SocketName string
	cause      error
}

func (e *CommError) Error() string {
	return fmt.Sprintf("%s arm, %s socket: %v", e.ArmName, e.SocketName, e.cause)
}

func (e *CommError) Unwrap() error { return e.cause }

// ArmSocket is one persistent TCP session to a single port of the RAPID
// server. Every request/response exchange holds the socket's lock for the
// full duration of the call, so responses are matched positionally to the
// in-flight request.
type ArmSocket struct {
	armName string // "left" or "right" — for CommError diagnostics
	name    string // "main", "poses" or "joints" — for diagnostics only
	ip      string
	port    int

	mu   sync.Mutex
	conn net.Conn

	logger logging.Logger
}

// Connect opens a new ArmSocket and performs the initial dial.
func Connect(ctx context.Context, armName, name, ip string, port int, commTimeout time.Duration, logger logging.Logger) (*ArmSocket, error) {
	s := &ArmSocket{armName: armName, name: name, ip: ip, port: port, logger: logger}
	if err := s.connect(ctx, commTimeout); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *ArmSocket) commErr(cause error) *CommError {
	return &CommError{ArmName: s.armName, SocketName: s.name, cause: cause}
}

func (s *ArmSocket) connect(ctx context.Context, commTimeout time.Duration) error {
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, commTimeout)
	defer cancel()

	conn, err := d.DialContext(dialCtx, "tcp", net.JoinHostPort(s.ip, strconv.Itoa(s.port)))
	if err != nil {
		return s.commErr(errors.Wrapf(err, "connect to %s:%d", s.ip, s.port))
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		if err := tcp.SetKeepAliveConfig(net.KeepAliveConfig{
			Enable:   true,
			Idle:     keepAliveIdle,
			Interval: keepAliveInterval,
			Count:    keepAliveCount,
		}); err != nil {
			s.logger.Warnf("%s socket: failed to configure keepalive: %v", s.name, err)
		}
	}
	s.conn = conn
	return nil
}

// SendRequest sends one framed request and returns the parsed response.
// The socket's lock is held for the entire exchange, so responses are
// matched positionally to the in-flight request (ordering
// guarantee).
func (s *ArmSocket) SendRequest(packet wire.RequestPacket) (wire.RawResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return wire.RawResponse{}, s.commErr(errors.New("socket not connected"))
	}

	s.logger.Debugf("%s socket sending: %s", s.name, packet.Frame())

	if err := s.conn.SetDeadline(time.Now().Add(packet.Timeout)); err != nil {
		return wire.RawResponse{}, s.commErr(errors.Wrap(err, "set deadline"))
	}

	if _, err := s.conn.Write(packet.Frame()); err != nil {
		return wire.RawResponse{}, s.commErr(errors.Wrap(err, "send failed"))
	}

	if !packet.ExpectResponse {
		return wire.RawResponse{}, nil
	}

	buf := make([]byte, bufSize)
	n, err := s.conn.Read(buf)
	if err != nil {
		return wire.RawResponse{}, s.commErr(errors.Wrap(err, "recv failed"))
	}
	if n == 0 {
		return wire.RawResponse{}, s.commErr(errors.New("empty response"))
	}

	res, err := wire.ParseResponse(buf[:n])
	if err != nil {
		return wire.RawResponse{}, s.commErr(errors.Wrap(err, "malformed response frame"))
	}

	s.logger.Debugf("%s socket received: %+v", s.name, res)
	return res, nil
}

// Close shuts down the socket. Safe to call on an already-closed socket.
func (s *ArmSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
