package yumi

import (
	"context"
	"testing"

	"go.viam.com/rdk/logging"
	"go.viam.com/test"
)

func newTestRobot(t *testing.T, fc *fakeController) (*Robot, fakeArmPair) {
	t.Helper()
	srv := startFakeController(t, fc)
	arms := startFakeArmPair(t, "0 1 #")

	settings := DefaultSettings()
	settings.IP = "127.0.0.1"
	settings.ControllerBaseURL = srv.URL
	settings.LeftArmPort = arms.leftBase
	settings.RightArmPort = arms.rightBase

	r, err := New(context.Background(), settings, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	t.Cleanup(func() { _ = r.Close(context.Background()) })
	return r, arms
}

func TestNewConnectsAndConfigures(t *testing.T) {
	fc := newFakeController()
	r, _ := newTestRobot(t, fc)
	test.That(t, r, test.ShouldNotBeNil)
	test.That(t, fc.startCalls, test.ShouldEqual, 1)
}

func TestNewStopsRunningRAPIDFirst(t *testing.T) {
	fc := newFakeController()
	fc.execState = "running"
	_, _ = newTestRobot(t, fc)
	test.That(t, fc.stopCalls, test.ShouldBeGreaterThan, 0)
}

func TestNewRejectsNonAutoMode(t *testing.T) {
	fc := newFakeController()
	fc.opMode = "MANUAL"
	srv := startFakeController(t, fc)
	arms := startFakeArmPair(t, "0 1 #")

	settings := DefaultSettings()
	settings.IP = "127.0.0.1"
	settings.ControllerBaseURL = srv.URL
	settings.LeftArmPort = arms.leftBase
	settings.RightArmPort = arms.rightBase

	_, err := New(context.Background(), settings, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	var fatal *ControllerFatalError
	test.That(t, asControllerFatal(err, &fatal), test.ShouldBeTrue)
}

func TestNewTurnsMotorsOnWhenOff(t *testing.T) {
	fc := newFakeController()
	fc.ctrlState = "motoroff"
	r, _ := newTestRobot(t, fc)
	test.That(t, r, test.ShouldNotBeNil)
	test.That(t, fc.motorsOn, test.ShouldBeGreaterThan, 0)
}

func TestSetSpeedNoOpWhenUnchanged(t *testing.T) {
	fc := newFakeController()
	r, _ := newTestRobot(t, fc)

	test.That(t, r.SetSpeed(context.Background(), 100), test.ShouldBeNil)
	// with both arms' sockets closed, any wire traffic would fail, so the
	// repeated call only succeeds if it is a no-op.
	r.left.Terminate()
	r.right.Terminate()
	test.That(t, r.SetSpeed(context.Background(), 100), test.ShouldBeNil)
	test.That(t, *r.speedN, test.ShouldEqual, 100)
}

func TestSetZoneRejectsUnknownZone(t *testing.T) {
	fc := newFakeController()
	r, _ := newTestRobot(t, fc)
	err := r.SetZone(context.Background(), "not-a-zone")
	test.That(t, err, test.ShouldNotBeNil)
}

func asControllerFatal(err error, target **ControllerFatalError) bool {
	for err != nil {
		if e, ok := err.(*ControllerFatalError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
