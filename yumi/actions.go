package yumi

import (
	"context"

	"github.com/yumi-robotics/yumi-control/armnet"
	"github.com/yumi-robotics/yumi-control/kinematics"
)

// MoveArm moves the named arm's TCP to pose at the given 0..1 speed
// fraction, using linear motion.
func (r *Robot) MoveArm(ctx context.Context, side armnet.Side, pose kinematics.Pose, speed float64) error {
	return r.MoveToPose(ctx, side, pose, speed, true)
}

// Ping checks that the named arm's sockets are alive and responsive.
func (r *Robot) Ping(side armnet.Side) error {
	arm, err := r.armByName(side)
	if err != nil {
		return err
	}
	return arm.Ping()
}

// OpenGripper opens the named arm's gripper. force and width are 0..1
// fractions of MaxGripperForce/MaxGripperWidth, matching the action
// surface's normalized units.
func (r *Robot) OpenGripper(side armnet.Side, force, width float64) error {
	arm, err := r.armByName(side)
	if err != nil {
		return err
	}
	return arm.OpenGripper(force*MaxGripperForce, width*MaxGripperWidth, true, false)
}

// CloseGripper closes the named arm's gripper. force and width are 0..1
// fractions of MaxGripperForce/MaxGripperWidth.
func (r *Robot) CloseGripper(side armnet.Side, force, width float64) error {
	arm, err := r.armByName(side)
	if err != nil {
		return err
	}
	return arm.CloseGripper(force*MaxGripperForce, width*MaxGripperWidth, false)
}

// OpenGrippers opens both grippers to their default (maximum) width.
func (r *Robot) OpenGrippers() error {
	if err := r.left.OpenGripper(MaxGripperForce, 0, false, false); err != nil {
		return err
	}
	return r.right.OpenGripper(MaxGripperForce, 0, false, false)
}

// Pick executes a pick from a horizontal surface: approach above pose by
// verticalOffset, open the gripper, descend to pose, close the gripper,
// and retreat back to the approach height.
func (r *Robot) Pick(ctx context.Context, side armnet.Side, pose kinematics.Pose, approachSpeed, pickSpeed, verticalOffset float64) error {
	prePick := pose
	prePick.Position.Z += verticalOffset

	if err := r.MoveArm(ctx, side, prePick, approachSpeed); err != nil {
		return err
	}
	if err := r.OpenGripper(side, 1.0, 1.0); err != nil {
		return err
	}
	if err := r.MoveArm(ctx, side, pose, pickSpeed); err != nil {
		return err
	}
	if err := r.CloseGripper(side, 1.0, 0.0); err != nil {
		return err
	}
	return r.MoveArm(ctx, side, prePick, pickSpeed)
}

// Place executes a place onto a horizontal surface: approach above pose
// by verticalOffset, descend to pose, open the gripper, retreat, then
// close the gripper again so it's ready for the next pick.
func (r *Robot) Place(ctx context.Context, side armnet.Side, pose kinematics.Pose, approachSpeed, placeSpeed, verticalOffset float64) error {
	prePlace := pose
	prePlace.Position.Z += verticalOffset

	if err := r.MoveArm(ctx, side, prePlace, approachSpeed); err != nil {
		return err
	}
	if err := r.MoveArm(ctx, side, pose, placeSpeed); err != nil {
		return err
	}
	if err := r.OpenGripper(side, 1.0, 1.0); err != nil {
		return err
	}
	if err := r.MoveArm(ctx, side, prePlace, placeSpeed); err != nil {
		return err
	}
	return r.CloseGripper(side, 1.0, 0.0)
}
