package yumi

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/rdk/logging"
	"golang.org/x/sync/errgroup"

	"github.com/yumi-robotics/yumi-control/armnet"
	"github.com/yumi-robotics/yumi-control/kinematics"
	"github.com/yumi-robotics/yumi-control/rws"
)

// Robot coordinates both YuMi arms through one controller: it owns the RWS
// client and supervisor, the two arm sessions, and the motion-exclusion
// lock that serializes every command that moves metal.
type Robot struct {
	settings Settings
	logger   logging.Logger

	controller *rws.Client
	supervisor *rws.Supervisor

	left, right *armnet.Session
	arms        map[armnet.Side]*armnet.Session

	// moveMu serializes every command that moves the robot — only one
	// motion (single- or dual-arm) may be in flight at a time.
	moveMu sync.Mutex

	// cacheMu guards the speed/zone caches, which SetSpeed/SetZone consult
	// independently of moveMu (they're also called outside a move, e.g.
	// from defaultConfiguration and Recover).
	cacheMu    sync.Mutex
	speedN     *int
	zoneCached string
}

// New connects to the controller at settings.IP, brings RAPID into a
// known-running state, opens both arm sessions, and applies the default
// tool/zone/conf configuration. The controller must already be in AUTO
// mode with motors either on or off (off is turned on automatically) —
// an active emergency stop or system failure is unrecoverable here and
// surfaces as ControllerFatalError.
func New(ctx context.Context, settings Settings, logger logging.Logger) (*Robot, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	controller := rws.NewClient(settings.controllerBaseURL(), "Default User", "robotics", logger)

	mode, err := controller.GetOperationMode(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get operation mode")
	}
	if mode != "AUTO" {
		return nil, &ControllerFatalError{Reason: "controller not in AUTO mode"}
	}

	// Mastership is deliberately not requested here: on this controller
	// family, holding mastership has been observed to block start_RAPID
	// for reasons nobody has root-caused, so the happy path skips it.

	state, err := controller.GetControllerState(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get controller state")
	}
	switch state {
	case rws.ControllerEmergencyStop:
		return nil, &ControllerFatalError{Reason: "emergency stop is active"}
	case rws.ControllerSysFail:
		return nil, &ControllerFatalError{Reason: "controller needs to be restarted"}
	case rws.ControllerMotorsOff:
		if err := controller.MotorsOn(ctx); err != nil {
			return nil, errors.Wrap(err, "motors on")
		}
	}

	running, err := controller.IsRunning(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get execution state")
	}
	if running {
		if err := controller.StopRAPID(ctx); err != nil {
			return nil, errors.Wrap(err, "stop RAPID")
		}
	}
	if err := controller.ResetProgramPointer(ctx); err != nil {
		return nil, errors.Wrap(err, "reset program pointer")
	}
	if err := controller.ActivateAllTasks(ctx); err != nil {
		return nil, errors.Wrap(err, "activate all tasks")
	}
	if err := controller.StartRAPID(ctx); err != nil {
		return nil, errors.Wrap(err, "start RAPID")
	}

	left, err := armnet.NewSession(ctx, armnet.Left, settings.IP, settings.leftArmPort(), armnet.DefaultBufSize,
		armnet.DefaultMotionTimeout, armnet.DefaultCommTimeout, logger)
	if err != nil {
		return nil, errors.Wrap(err, "connect left arm")
	}
	right, err := armnet.NewSession(ctx, armnet.Right, settings.IP, settings.rightArmPort(), armnet.DefaultBufSize,
		armnet.DefaultMotionTimeout, armnet.DefaultCommTimeout, logger)
	if err != nil {
		left.Terminate()
		return nil, errors.Wrap(err, "connect right arm")
	}

	r := &Robot{
		settings:   settings,
		logger:     logger,
		controller: controller,
		supervisor: rws.NewSupervisor(controller),
		left:       left,
		right:      right,
		arms:       map[armnet.Side]*armnet.Session{armnet.Left: left, armnet.Right: right},
	}

	if err := r.defaultConfiguration(ctx); err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(err, "default configuration")
	}
	if err := r.CalibrateGrippers(ctx); err != nil {
		r.Close(ctx)
		return nil, errors.Wrap(err, "calibrate grippers")
	}

	if settings.HomeOnStart {
		if err := r.goHomeBoth(ctx); err != nil {
			r.Close(ctx)
			return nil, errors.Wrap(err, "home on start")
		}
	}

	return r, nil
}

func (r *Robot) goHomeBoth(ctx context.Context) error {
	var g errgroup.Group
	for _, arm := range r.arms {
		arm := arm
		g.Go(func() error { return arm.ResetHome() })
	}
	return g.Wait()
}

// defaultConfiguration resets the tool offset to identity, the zone to
// "fine", and the arm configuration data to the reference arm-forward
// elbow-down posture on both arms.
func (r *Robot) defaultConfiguration(ctx context.Context) error {
	if err := r.SetTool(ctx, kinematics.IdentityPose()); err != nil {
		return err
	}
	if err := r.SetZone(ctx, "fine"); err != nil {
		return err
	}
	var g errgroup.Group
	g.Go(func() error { return r.left.SetConf([4]int{0, 0, 0, 4}) })
	g.Go(func() error { return r.right.SetConf([4]int{0, 0, 0, 4}) })
	return g.Wait()
}

// Recover attempts to bring a stopped controller back to a commandable
// state after an in-flight motion was interrupted (a collision, a safety
// stop, an operator E-stop release). Each step is best-effort: a failure
// to stop or reset the program pointer is swallowed (these sometimes fail
// even on a healthy controller and a second attempt at start succeeds
// regardless), but a failure to start RAPID is fatal, since nothing past
// that point can proceed.
func (r *Robot) Recover(ctx context.Context) error {
	var combined error
	if err := r.controller.StopRAPID(ctx); err != nil {
		combined = multierr.Append(combined, err)
	}
	if err := r.controller.ResetProgramPointer(ctx); err != nil {
		combined = multierr.Append(combined, err)
	}
	if combined != nil {
		r.logger.Debugf("recover: best-effort stop/reset reported: %v", combined)
	}

	// When the stop came from motion supervision (a predicted collision),
	// this has been observed to fail without any documented recovery path
	// short of acknowledging the condition on the teach pendant.
	if err := r.controller.StartRAPID(ctx); err != nil {
		return &ControllerFatalError{Reason: "failed to restart RAPID after recovery: " + err.Error()}
	}

	for _, arm := range r.arms {
		if err := arm.Reconnect(ctx); err != nil {
			return errors.Wrap(err, "reconnect arm after recovery")
		}
	}

	if err := r.defaultConfiguration(ctx); err != nil {
		return errors.Wrap(err, "restore default configuration after recovery")
	}
	r.cacheMu.Lock()
	r.speedN = nil
	r.zoneCached = ""
	r.cacheMu.Unlock()

	return nil
}

// Close tears down both arm sessions and stops the controller. Each step
// is attempted even if an earlier one failed, and every failure is
// combined into the returned error.
func (r *Robot) Close(ctx context.Context) error {
	var g errgroup.Group
	for _, arm := range r.arms {
		arm := arm
		g.Go(func() error { arm.Terminate(); return nil })
	}
	_ = g.Wait()

	var combined error
	if err := r.controller.StopRAPID(ctx); err != nil {
		combined = multierr.Append(combined, err)
	}
	if err := r.controller.MotorsOff(ctx); err != nil {
		combined = multierr.Append(combined, err)
	}
	return combined
}

// armByName resolves an armnet.Side to its Session, or an error if name
// isn't one of "left"/"right".
func (r *Robot) armByName(name armnet.Side) (*armnet.Session, error) {
	s, ok := r.arms[name]
	if !ok {
		return nil, errors.Errorf("unknown arm: %q", name)
	}
	return s, nil
}

// SetSpeed sets both arms' speed using n as RAPID's speed number (n=100
// means the same speed as v100 in RAPID — translational mm/s). A no-op if
// n matches the cached value, mirroring the reference implementation's
// avoidance of redundant wire traffic on every motion.
func (r *Robot) SetSpeed(ctx context.Context, n int) error {
	r.cacheMu.Lock()
	if r.speedN != nil && *r.speedN == n {
		r.cacheMu.Unlock()
		return nil
	}
	r.cacheMu.Unlock()

	data := speedForN(n)
	var g errgroup.Group
	for _, arm := range r.arms {
		arm := arm
		g.Go(func() error { return arm.SetSpeed(data) })
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "set speed")
	}

	r.cacheMu.Lock()
	r.speedN = &n
	r.cacheMu.Unlock()
	return nil
}

// SetZone sets both arms' zoning to the named zone (e.g. "fine", "z10").
func (r *Robot) SetZone(ctx context.Context, name string) error {
	pointMotion, values, ok := zoneData(name)
	if !ok {
		return errors.Errorf("unknown zone: %q", name)
	}
	var g errgroup.Group
	for _, arm := range r.arms {
		arm := arm
		g.Go(func() error { return arm.SetZone(pointMotion, values) })
	}
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "set zone")
	}
	r.cacheMu.Lock()
	r.zoneCached = name
	r.cacheMu.Unlock()
	return nil
}

// SetTool sets the Tool Center Point offset on both arms.
func (r *Robot) SetTool(ctx context.Context, pose kinematics.Pose) error {
	var g errgroup.Group
	for _, arm := range r.arms {
		arm := arm
		g.Go(func() error { return arm.SetTool(pose) })
	}
	return g.Wait()
}

// CalibrateGrippers calibrates both grippers, skipping any that already
// report calibrated.
func (r *Robot) CalibrateGrippers(ctx context.Context) error {
	var g errgroup.Group
	for _, arm := range r.arms {
		arm := arm
		g.Go(func() error { return arm.CalibrateGripper(nil, true) })
	}
	return g.Wait()
}
