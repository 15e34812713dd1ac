package armnet

import (
	"strconv"

	"github.com/yumi-robotics/yumi-control/kinematics"
	"github.com/yumi-robotics/yumi-control/wire"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// OpenGripper opens the gripper, clamping force to [0, 20]N and width to
// [0, 0.02]m before converting to the controller's mm/N units. If no_wait
// is set a trailing 0 flag is appended so the controller returns
// immediately instead of waiting for the gripper to settle.
func (s *Session) OpenGripper(force, width float64, hasWidth, noWait bool) error {
	force = clamp(force, 0, maxGripperForce)
	fields := []float64{force}
	if hasWidth {
		width = clamp(width, 0, maxGripperWidth)
		fields = append(fields, width*kinematics.MetersToMM)
	}
	if noWait {
		fields = append(fields, 0)
	}
	_, err := s.request(s.main, wire.CmdOpenGripper, wire.FormatFields("%.1f", fields...), s.motionTimeout)
	return err
}

// CloseGripper closes the gripper to width, clamping force to [0, 20]N and
// width to [0, 0.02]m.
func (s *Session) CloseGripper(force, width float64, noWait bool) error {
	force = clamp(force, 0, maxGripperForce)
	width = clamp(width, 0, maxGripperWidth)
	fields := []float64{force, width * kinematics.MetersToMM}
	if noWait {
		fields = append(fields, 0)
	}
	_, err := s.request(s.main, wire.CmdCloseGripper, wire.FormatFields("%.1f", fields...), s.motionTimeout)
	return err
}

// MoveGripper moves the gripper to width meters.
func (s *Session) MoveGripper(width float64, noWait bool) error {
	width = clamp(width, 0, maxGripperWidth)
	fields := []float64{width * kinematics.MetersToMM}
	if noWait {
		fields = append(fields, 0)
	}
	_, err := s.request(s.main, wire.CmdMoveGripper, wire.FormatFields("%.1f", fields...), s.motionTimeout)
	return err
}

// GripperCalibration holds the optional calibration parameters for
// CalibrateGripper; a nil pointer means "use the RAPID server's defaults".
type GripperCalibration struct {
	MaxSpeed  float64
	HoldForce float64
	PhysLimit float64
}

// CalibrateGripper calibrates the gripper. If skipIfCalibrated is set and
// the gripper already reports calibrated, this is a no-op.
func (s *Session) CalibrateGripper(params *GripperCalibration, skipIfCalibrated bool) error {
	if skipIfCalibrated {
		calibrated, err := s.IsGripperCalibrated()
		if err != nil {
			return err
		}
		if calibrated {
			return nil
		}
	}
	body := ""
	if params != nil {
		body = wire.FormatFields("%.1f", params.MaxSpeed, params.HoldForce, params.PhysLimit)
	}
	_, err := s.request(s.main, wire.CmdCalibrateGripper, body, s.motionTimeout)
	return err
}

// SetGripperForce sets the gripper's hold force, in Newtons.
func (s *Session) SetGripperForce(force float64) error {
	_, err := s.request(s.main, wire.CmdSetGripperForce, wire.FormatFields("%.1f", force), 0)
	return err
}

// SetGripperMaxSpeed sets the gripper's max speed, in mm/s.
func (s *Session) SetGripperMaxSpeed(maxSpeed float64) error {
	_, err := s.request(s.main, wire.CmdSetGripperMaxSpeed, wire.FormatFields("%.1f", maxSpeed), 0)
	return err
}

// GetGripperWidth returns the current gripper width, in meters.
func (s *Session) GetGripperWidth() (float64, error) {
	res, err := s.request(s.main, wire.CmdGetGripperWidth, "", 0)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(res.Message, 64)
	if err != nil {
		return 0, err
	}
	return v * kinematics.MMToMeters, nil
}

// IsGripperCalibrated reports whether the gripper has been calibrated.
func (s *Session) IsGripperCalibrated() (bool, error) {
	res, err := s.request(s.main, wire.CmdIsGripperCalibrated, "", 0)
	if err != nil {
		return false, err
	}
	return res.Message == "1", nil
}
