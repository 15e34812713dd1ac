package yumi

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/yumi-robotics/yumi-control/armnet"
	"github.com/yumi-robotics/yumi-control/kinematics"
)

func TestPickSucceedsAgainstFakeController(t *testing.T) {
	fc := newFakeController()
	r, _ := newTestRobot(t, fc)

	pose := kinematics.Pose{Position: kinematics.Position{X: 0.3, Y: 0, Z: 0.1}, Orientation: kinematics.Identity()}
	err := r.Pick(context.Background(), armnet.Left, pose, 0.5, 0.2, 0.05)
	test.That(t, err, test.ShouldBeNil)
}

func TestPlaceSucceedsAgainstFakeController(t *testing.T) {
	fc := newFakeController()
	r, _ := newTestRobot(t, fc)

	pose := kinematics.Pose{Position: kinematics.Position{X: 0.3, Y: 0, Z: 0.1}, Orientation: kinematics.Identity()}
	err := r.Place(context.Background(), armnet.Right, pose, 0.5, 0.2, 0.05)
	test.That(t, err, test.ShouldBeNil)
}

func TestOpenAndCloseGripperClampForceAndWidthFractions(t *testing.T) {
	fc := newFakeController()
	r, _ := newTestRobot(t, fc)

	test.That(t, r.OpenGripper(armnet.Left, 1.5, 2.0), test.ShouldBeNil)
	test.That(t, r.CloseGripper(armnet.Right, -1, 0.5), test.ShouldBeNil)
}

func TestOpenGripperUnknownArmErrors(t *testing.T) {
	r := &Robot{arms: map[armnet.Side]*armnet.Session{}}
	err := r.OpenGripper(armnet.Side("bogus"), 1, 1)
	test.That(t, err, test.ShouldNotBeNil)
}
