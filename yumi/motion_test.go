package yumi

import (
	"context"
	"testing"
	"time"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"

	"github.com/yumi-robotics/yumi-control/armnet"
	"github.com/yumi-robotics/yumi-control/kinematics"
	"github.com/yumi-robotics/yumi-control/rws"
)

func newTestRobotNoArms(t *testing.T, fc *fakeController) *Robot {
	t.Helper()
	srv := startFakeController(t, fc)
	client := rws.NewClient(srv.URL, "Default User", "robotics", logging.NewTestLogger(t))
	return &Robot{
		settings:   DefaultSettings(),
		logger:     logging.NewTestLogger(t),
		controller: client,
		supervisor: rws.NewSupervisor(client),
	}
}

func TestRunSupervisedReturnsWhenMotionsFinishFirst(t *testing.T) {
	fc := newFakeController()
	r := newTestRobotNoArms(t, fc)

	err := r.runSupervised(context.Background(), func() error { return nil })
	test.That(t, err, test.ShouldBeNil)
}

func TestRunSupervisedCombinesMotionErrors(t *testing.T) {
	fc := newFakeController()
	r := newTestRobotNoArms(t, fc)

	sentinel := &armnet.CommError{ArmName: "left", SocketName: "main"}
	err := r.runSupervised(context.Background(), func() error { return sentinel })
	test.That(t, err, test.ShouldNotBeNil)
}

func TestRunSupervisedRecoversOnProgramStop(t *testing.T) {
	fc := newFakeController()
	fc.tasksStar = false // supervisor sees a stopped task on its first poll
	r := newTestRobotNoArms(t, fc)

	arms := startFakeArmPair(t, "0 1 #")
	left, err := armnet.NewSession(context.Background(), armnet.Left, "127.0.0.1", arms.leftBase,
		armnet.DefaultBufSize, armnet.DefaultMotionTimeout, armnet.DefaultCommTimeout, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	right, rerr := armnet.NewSession(context.Background(), armnet.Right, "127.0.0.1", arms.rightBase,
		armnet.DefaultBufSize, armnet.DefaultMotionTimeout, armnet.DefaultCommTimeout, logging.NewTestLogger(t))
	test.That(t, rerr, test.ShouldBeNil)
	t.Cleanup(left.Terminate)
	t.Cleanup(right.Terminate)
	r.left, r.right = left, right
	r.arms = map[armnet.Side]*armnet.Session{armnet.Left: left, armnet.Right: right}

	motionReturned := make(chan struct{})
	runErr := r.runSupervised(context.Background(), func() error {
		// simulate the in-flight command eventually unblocking once the
		// controller actually stops RAPID underneath it.
		time.Sleep(20 * time.Millisecond)
		close(motionReturned)
		return nil
	})

	select {
	case <-motionReturned:
	default:
		t.Fatal("runSupervised returned before the motion closure finished")
	}

	var stopped *ProgramStoppedError
	test.That(t, asProgramStopped(runErr, &stopped), test.ShouldBeTrue)
	test.That(t, fc.startCalls, test.ShouldBeGreaterThan, 0)
}

func asProgramStopped(err error, target **ProgramStoppedError) bool {
	e, ok := err.(*ProgramStoppedError)
	if ok {
		*target = e
	}
	return ok
}

func TestSpeedFractionScalesByMaxTCPSpeed(t *testing.T) {
	r := &Robot{settings: Settings{MaxTCPSpeed: 1.5}}
	test.That(t, r.speedFraction(1.0), test.ShouldEqual, 1500)
	test.That(t, r.speedFraction(0.5), test.ShouldEqual, 750)
}

func TestMoveToPoseUnknownArmErrors(t *testing.T) {
	r := &Robot{arms: map[armnet.Side]*armnet.Session{}}
	err := r.MoveToPose(context.Background(), armnet.Side("center"), kinematics.IdentityPose(), 0.5, true)
	test.That(t, err, test.ShouldNotBeNil)
}
