// Package yumi implements the dual-arm coordinator: controller lifecycle
// management, world-frame pose conversion, the motion-exclusion lock and
// the three-way motion-completion protocol, and the pick/place action
// surface built on top of armnet sessions and an rws supervisor.
package yumi

import (
	"github.com/yumi-robotics/yumi-control/kinematics"
)

// MaxTCPSpeed is YuMi's hardware speed ceiling, in meters per second.
const MaxTCPSpeed = 1.5

// MaxGripperForce and MaxGripperWidth bound every gripper command, in
// Newtons and meters respectively.
const (
	MaxGripperForce = 20.0
	MaxGripperWidth = 0.02
)

// Default RAPID server base ports for the left and right arms. Each arm's
// poses and joints sockets sit at basePort+2 and basePort+4.
const (
	defaultLeftArmPort  = 5000
	defaultRightArmPort = 5001
)

// Settings configures a Robot before it connects.
type Settings struct {
	IP          string
	MaxTCPSpeed float64
	HomeOnStart bool

	// LeftArmPort and RightArmPort default to 5000/5001 when zero. They
	// address the RAPID server sockets directly on IP, independent of
	// ControllerBaseURL.
	LeftArmPort  int
	RightArmPort int

	// ControllerBaseURL overrides the Robot Web Services base URL when set
	// (e.g. for a non-default scheme or port). Defaults to "http://"+IP.
	ControllerBaseURL string

	Pose kinematics.Pose // this robot's mounting pose in the world frame
}

// DefaultSettings returns the reference defaults: YuMi's usual controller
// IP, full speed ceiling, and no automatic homing.
func DefaultSettings() Settings {
	return Settings{
		IP:           "192.168.104.101",
		MaxTCPSpeed:  MaxTCPSpeed,
		HomeOnStart:  false,
		LeftArmPort:  defaultLeftArmPort,
		RightArmPort: defaultRightArmPort,
		Pose:         kinematics.IdentityPose(),
	}
}

func (s Settings) leftArmPort() int {
	if s.LeftArmPort == 0 {
		return defaultLeftArmPort
	}
	return s.LeftArmPort
}

func (s Settings) rightArmPort() int {
	if s.RightArmPort == 0 {
		return defaultRightArmPort
	}
	return s.RightArmPort
}

func (s Settings) controllerBaseURL() string {
	if s.ControllerBaseURL != "" {
		return s.ControllerBaseURL
	}
	return "http://" + s.IP
}

// Validate checks the settings for internal consistency, returning a
// ConfigError describing the first problem found.
func (s Settings) Validate() error {
	if s.IP == "" {
		return &ConfigError{Field: "IP", Reason: "must not be empty"}
	}
	if s.MaxTCPSpeed <= 0 || s.MaxTCPSpeed > MaxTCPSpeed {
		return &ConfigError{Field: "MaxTCPSpeed", Reason: "must be in (0, 1.5] m/s"}
	}
	return nil
}
