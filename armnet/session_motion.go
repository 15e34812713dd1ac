package armnet

import (
	"strconv"

	"github.com/yumi-robotics/yumi-control/kinematics"
	"github.com/yumi-robotics/yumi-control/wire"
)

// GotoPose commands this arm to move to pose, using MoveL (linear) when
// linear is true or MoveJ otherwise.
func (s *Session) GotoPose(pose kinematics.Pose, linear bool) error {
	code := wire.CmdGotoPose
	if linear {
		code = wire.CmdGotoPoseLinear
	}
	_, err := s.request(s.main, code, poseBody(pose), s.motionTimeout)
	return err
}

// GotoPoseSync commands this arm to move to pose with the controller-side
// sync barrier installed; both arms must issue their sync command within
// the motion-timeout window for the barrier to release.
func (s *Session) GotoPoseSync(pose kinematics.Pose) error {
	_, err := s.request(s.main, wire.CmdGotoPoseSync, poseBody(pose), s.motionTimeout)
	return err
}

// GotoPoseDelta commands a relative motion: translation in meters, an
// optional rotation as XYZ Euler degrees.
func (s *Session) GotoPoseDelta(translation kinematics.Position, rotation *[3]float64) error {
	translation.Scale(kinematics.MetersToMM)
	body := wire.FormatFields("%.1f", translation.X, translation.Y, translation.Z)
	if rotation != nil {
		body += wire.FormatFields("%.5f", rotation[0], rotation[1], rotation[2])
	}
	_, err := s.request(s.main, wire.CmdGotoPoseDelta, body, s.motionTimeout)
	return err
}

// GotoJoints validates, sorts and commands this arm to the given joint
// angles.
func (s *Session) GotoJoints(joints []kinematics.Joint) error {
	sorted, err := s.CheckAndSortJoints(joints)
	if err != nil {
		return err
	}
	_, err = s.request(s.main, wire.CmdGotoJoints, jointsToDegreesBody(sorted), s.motionTimeout)
	return err
}

// GotoJointsSync is the synchronized-barrier variant of GotoJoints.
func (s *Session) GotoJointsSync(joints []kinematics.Joint) error {
	sorted, err := s.CheckAndSortJoints(joints)
	if err != nil {
		return err
	}
	_, err = s.request(s.main, wire.CmdGotoJointsSync, jointsToDegreesBody(sorted), s.motionTimeout)
	return err
}

// SetTool sets the Tool Center Point offset for future moves.
func (s *Session) SetTool(pose kinematics.Pose) error {
	_, err := s.request(s.main, wire.CmdSetTool, poseBody(pose), 0)
	return err
}

// SetSpeed applies the (tra, rot, tra, rot) speed data tuple.
func (s *Session) SetSpeed(speedData [4]float64) error {
	_, err := s.request(s.main, wire.CmdSetSpeed, wire.FormatFields("%.2f", speedData[:]...), 0)
	return err
}

// SetZone applies a zone tuple: point_motion flag followed by the three
// zone values.
func (s *Session) SetZone(pointMotion int, values [3]float64) error {
	body := wire.FormatFields("%.2f", float64(pointMotion), values[0], values[1], values[2])
	_, err := s.request(s.main, wire.CmdSetZone, body, 0)
	return err
}

// SetConf applies the arm configuration data used by future moves.
func (s *Session) SetConf(confData [4]int) error {
	_, err := s.request(s.main, wire.CmdSetConf, wire.FormatInts(confData[:]...), 0)
	return err
}

// BufferAddSingle appends one pose to the linear-movement buffer.
func (s *Session) BufferAddSingle(pose kinematics.Pose) error {
	_, err := s.request(s.main, wire.CmdBufferAdd, poseBody(pose), 0)
	return err
}

// BufferAddAll appends every pose in poses to the linear-movement buffer.
func (s *Session) BufferAddAll(poses []kinematics.Pose) error {
	for _, p := range poses {
		if err := s.BufferAddSingle(p); err != nil {
			return err
		}
	}
	return nil
}

// BufferClear clears the linear-movement buffer. There is no implicit
// clear on buffer execution; callers must clear explicitly between moves.
func (s *Session) BufferClear() error {
	_, err := s.request(s.main, wire.CmdBufferClear, "", 0)
	return err
}

// BufferSize returns the current linear-movement buffer size.
func (s *Session) BufferSize() (int, error) {
	res, err := s.request(s.main, wire.CmdBufferSize, "", 0)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(res.Message)
}

// BufferMove executes the accumulated linear-movement buffer.
func (s *Session) BufferMove() error {
	_, err := s.request(s.main, wire.CmdBufferMove, "", s.motionTimeout)
	return err
}

// MoveCircular sets the circle point then moves through it to target.
func (s *Session) MoveCircular(center, target kinematics.Pose) error {
	if _, err := s.request(s.main, wire.CmdSetCircPoint, poseBody(center), 0); err != nil {
		return err
	}
	_, err := s.request(s.main, wire.CmdMoveByCircPoint, poseBody(target), s.motionTimeout)
	return err
}

// IsPoseReachable asks the controller whether pose is reachable without
// moving to it.
func (s *Session) IsPoseReachable(pose kinematics.Pose) (bool, error) {
	res, err := s.request(s.main, wire.CmdIsPoseReachable, poseBody(pose), 0)
	if err != nil {
		return false, err
	}
	return res.Message == "1", nil
}

// IsJointsReachable asks the controller whether the given joints are
// reachable without moving to them.
func (s *Session) IsJointsReachable(joints []kinematics.Joint) (bool, error) {
	sorted, err := s.CheckAndSortJoints(joints)
	if err != nil {
		return false, err
	}
	res, err := s.request(s.main, wire.CmdIsJointsReachable, jointsToDegreesBody(sorted), 0)
	if err != nil {
		return false, err
	}
	return res.Message == "1", nil
}

// IK computes the joint angles for pose. A result_code=failure is mapped
// to KinematicsUnreachableError, distinct from a plain ControlError.
func (s *Session) IK(pose kinematics.Pose) ([]kinematics.Joint, error) {
	res, err := s.request(s.main, wire.CmdIK, poseBody(pose), 0)
	if err != nil {
		if ctrlErr, ok := err.(*ControlError); ok {
			return nil, &KinematicsUnreachableError{cause: ctrlErr}
		}
		return nil, err
	}
	return s.responseToJoints(res.Message)
}

// FK computes the pose for the given joint angles.
func (s *Session) FK(joints []kinematics.Joint) (kinematics.Pose, error) {
	sorted, err := s.CheckAndSortJoints(joints)
	if err != nil {
		return kinematics.Pose{}, err
	}
	res, err := s.request(s.main, wire.CmdFK, jointsToDegreesBody(sorted), 0)
	if err != nil {
		if ctrlErr, ok := err.(*ControlError); ok {
			return kinematics.Pose{}, &KinematicsUnreachableError{cause: ctrlErr}
		}
		return kinematics.Pose{}, err
	}
	return messageToPose(res.Message)
}

// LeadThrough reads whether hand-guiding mode is currently enabled.
func (s *Session) LeadThrough() (bool, error) {
	res, err := s.request(s.main, wire.CmdIsLeadThrough, "", 0)
	if err != nil {
		return false, err
	}
	return res.Message == "1", nil
}

// SetLeadThrough enables or disables hand-guiding mode.
func (s *Session) SetLeadThrough(enabled bool) error {
	v := 0
	if enabled {
		v = 1
	}
	_, err := s.request(s.main, wire.CmdSetLeadThrough, wire.FormatInts(v), 0)
	return err
}

// ResetHome moves this arm to its home joint configuration.
func (s *Session) ResetHome() error {
	_, err := s.request(s.main, wire.CmdResetHome, "", s.motionTimeout)
	return err
}
