package armnet

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/yumi-robotics/yumi-control/kinematics"
	"github.com/yumi-robotics/yumi-control/wire"
)

// Default timeouts for controller round trips.
const (
	DefaultCommTimeout   = 5 * time.Second
	DefaultMotionTimeout = 20 * time.Second
	DefaultBufSize       = 4096

	jointsPerArm = 7

	maxGripperForce = 20.0   // Newtons
	maxGripperWidth = 0.02   // meters
)

// ControlError is raised whenever the controller returns result_code=failure
// for a motion/config/gripper/buffer command. It carries the original
// request and raw response so callers can inspect what was rejected.
type ControlError struct {
	Request  wire.RequestPacket
	Response wire.RawResponse
}

func (e *ControlError) Error() string {
	return fmt.Sprintf("control failure for opcode %d: %s", e.Request.Code, e.Response.Message)
}

// KinematicsUnreachableError is raised when ik/fk report result_code=failure
// — distinct from ControlError so callers can retry with a different
// approach instead of treating it as a hard fault.
type KinematicsUnreachableError struct {
	cause error
}

func (e *KinematicsUnreachableError) Error() string {
	return fmt.Sprintf("kinematically unreachable: %v", e.cause)
}

func (e *KinematicsUnreachableError) Unwrap() error { return e.cause }

// Side identifies which YuMi arm a session drives.
type Side string

// The two YuMi arm sides.
const (
	Left  Side = "left"
	Right Side = "right"
)

// Session owns the three sockets (main/poses/joints) of one arm and
// exposes every per-arm operation in the protocol. get_pose and get_joints
// are routed to their own sockets so they can be answered while a
// long-running motion command occupies main.
type Session struct {
	Name         Side
	ip           string
	basePort     int
	bufSize      int
	motionTimeout time.Duration
	commTimeout   time.Duration

	main   *ArmSocket
	poses  *ArmSocket
	joints *ArmSocket

	logger logging.Logger
}

// NewSession connects all three sockets for one arm.
func NewSession(ctx context.Context, name Side, ip string, basePort, bufSize int, motionTimeout, commTimeout time.Duration, logger logging.Logger) (*Session, error) {
	s := &Session{
		Name:          name,
		ip:            ip,
		basePort:      basePort,
		bufSize:       bufSize,
		motionTimeout: motionTimeout,
		commTimeout:   commTimeout,
		logger:        logger,
	}
	if err := s.dialAll(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) dialAll(ctx context.Context) error {
	main, err := Connect(ctx, string(s.Name), "main", s.ip, s.basePort, s.commTimeout, s.logger)
	if err != nil {
		return err
	}
	poses, err := Connect(ctx, string(s.Name), "poses", s.ip, s.basePort+2, s.commTimeout, s.logger)
	if err != nil {
		_ = main.Close()
		return err
	}
	joints, err := Connect(ctx, string(s.Name), "joints", s.ip, s.basePort+4, s.commTimeout, s.logger)
	if err != nil {
		_ = main.Close()
		_ = poses.Close()
		return err
	}
	s.main, s.poses, s.joints = main, poses, joints
	return nil
}

// Reconnect closes and reopens all three sockets — the only legal way to
// re-establish a session after recovery.
func (s *Session) Reconnect(ctx context.Context) error {
	s.Terminate()
	return s.dialAll(ctx)
}

// Terminate closes all three sockets.
func (s *Session) Terminate() {
	for _, sock := range []*ArmSocket{s.main, s.poses, s.joints} {
		if sock != nil {
			_ = sock.Close()
		}
	}
}

func (s *Session) request(sock *ArmSocket, code wire.CommandCode, body string, timeout time.Duration) (wire.RawResponse, error) {
	if timeout == 0 {
		timeout = s.commTimeout
	}
	packet := wire.RequestPacket{Code: code, Body: body, Timeout: timeout, ExpectResponse: true}
	res, err := sock.SendRequest(packet)
	if err != nil {
		return wire.RawResponse{}, err
	}
	if res.ResultCode != wire.ResultSuccess {
		return res, &ControlError{Request: packet, Response: res}
	}
	return res, nil
}

// Ping pings all three sockets.
func (s *Session) Ping() error {
	for _, sock := range []*ArmSocket{s.main, s.poses, s.joints} {
		if _, err := s.request(sock, wire.CmdPing, "", 0); err != nil {
			return err
		}
	}
	return nil
}

func poseBody(p kinematics.Pose) string {
	p.Position.Scale(kinematics.MetersToMM)
	o := p.Orientation.Normalized()
	return wire.FormatFields("%.2f", p.Position.X, p.Position.Y, p.Position.Z) +
		wire.FormatFields("%.5f", o.X, o.Y, o.Z, o.W)
}

func messageToPose(msg string) (kinematics.Pose, error) {
	tokens := strings.Fields(msg)
	if len(tokens) != 7 {
		return kinematics.Pose{}, errors.Errorf("invalid pose message: %q", msg)
	}
	vals := make([]float64, 7)
	for i, t := range tokens {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return kinematics.Pose{}, errors.Wrapf(err, "invalid pose field %q", t)
		}
		vals[i] = v
	}
	pos := kinematics.Position{X: vals[0], Y: vals[1], Z: vals[2]}
	pos.Scale(kinematics.MMToMeters)
	ori := kinematics.Orientation{X: vals[3], Y: vals[4], Z: vals[5], W: vals[6]}
	return kinematics.Pose{Position: pos, Orientation: ori}, nil
}

// GetPose queries the current TCP pose over the dedicated poses socket so
// it never blocks behind an in-flight motion on main.
func (s *Session) GetPose() (kinematics.Pose, error) {
	res, err := s.request(s.poses, wire.CmdGetPose, "", 0)
	if err != nil {
		return kinematics.Pose{}, err
	}
	return messageToPose(res.Message)
}

// CheckAndSortJoints validates that joints is exactly 7 entries, all
// belonging to this arm's side, and returns them sorted by joint index.
func (s *Session) CheckAndSortJoints(joints []kinematics.Joint) ([]kinematics.Joint, error) {
	if len(joints) != jointsPerArm {
		return nil, errors.Errorf("expected %d joints, got %d", jointsPerArm, len(joints))
	}
	wantSide := string(s.Name[0])
	out := make([]kinematics.Joint, len(joints))
	copy(out, joints)

	indices := make([]int, len(out))
	for i, j := range out {
		parts := strings.Split(j.Name, "_")
		if len(parts) != 4 || parts[0] != "yumi" || parts[1] != "joint" {
			return nil, errors.Errorf("invalid joint name: %s", j.Name)
		}
		idx, err := strconv.Atoi(parts[2])
		if err != nil || idx < 1 || idx > jointsPerArm {
			return nil, errors.Errorf("invalid joint index in name: %s", j.Name)
		}
		if parts[3] != wantSide {
			return nil, errors.Errorf("joint %s not valid for %s arm", j.Name, s.Name)
		}
		indices[i] = idx
	}
	sort.Slice(out, func(i, j int) bool {
		ii, _ := strconv.Atoi(strings.Split(out[i].Name, "_")[2])
		jj, _ := strconv.Atoi(strings.Split(out[j].Name, "_")[2])
		return ii < jj
	})
	return out, nil
}

func jointsToDegreesBody(joints []kinematics.Joint) string {
	degs := make([]float64, len(joints))
	for i, j := range joints {
		degs[i] = j.Value * 180 / math.Pi
	}
	return wire.FormatFields("%.2f", degs...)
}

func (s *Session) responseToJoints(msg string) ([]kinematics.Joint, error) {
	tokens := strings.Fields(msg)
	if len(tokens) != jointsPerArm {
		return nil, errors.Errorf("invalid joints message: %q", msg)
	}
	side := string(s.Name[0])
	out := make([]kinematics.Joint, jointsPerArm)
	for i, t := range tokens {
		v, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid joint field %q", t)
		}
		out[i] = kinematics.Joint{Name: fmt.Sprintf("yumi_joint_%d_%s", i+1, side), Value: v * math.Pi / 180}
	}
	return out, nil
}

// GetJoints queries the current joint angles over the dedicated joints
// socket.
func (s *Session) GetJoints() ([]kinematics.Joint, error) {
	res, err := s.request(s.joints, wire.CmdGetJoints, "", 0)
	if err != nil {
		return nil, err
	}
	return s.responseToJoints(res.Message)
}
