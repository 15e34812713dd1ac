package yumi

import (
	"context"
	"math"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/yumi-robotics/yumi-control/armnet"
	"github.com/yumi-robotics/yumi-control/kinematics"
	"github.com/yumi-robotics/yumi-control/rws"
)

// runSupervised races a set of motion commands against the RWS supervisor.
// If every motion completes before the supervisor notices RAPID stop
// running, their combined errors are returned as-is. If the supervisor
// reports a mid-motion stop first, the robot is recovered and
// ProgramStoppedError is returned instead (or Recover's own error, if
// recovery fails) — matching the reference
// implementation's cf.as_completed race between block_while_running and
// the motion futures.
func (r *Robot) runSupervised(ctx context.Context, motions ...func() error) error {
	superCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make([]error, len(motions))
	doneAll := make(chan struct{})
	go func() {
		var wg sync.WaitGroup
		wg.Add(len(motions))
		for i, f := range motions {
			i, f := i, f
			go func() {
				defer wg.Done()
				errs[i] = f()
			}()
		}
		wg.Wait()
		close(doneAll)
	}()

	superDone := make(chan error, 1)
	go func() { superDone <- r.supervisor.BlockWhileRunning(superCtx) }()

	select {
	case <-doneAll:
		cancel()
		<-superDone
		return multierr.Combine(errs...)
	case err := <-superDone:
		if _, stopped := err.(rws.ErrProgramStopped); !stopped {
			// a genuine supervisor communication failure, not a motion
			// stop — nothing to recover from, just surface it alongside
			// whatever the motions themselves report.
			cancel()
			<-doneAll
			return multierr.Combine(append([]error{err}, errs...)...)
		}
		cancel()
		<-doneAll // waits for every motion to return; a stuck one returns at its motion timeout
		if recErr := r.Recover(ctx); recErr != nil {
			return recErr
		}
		return &ProgramStoppedError{}
	}
}

// speedFraction converts a 0..1 speed fraction into RAPID's mm/s speed
// number, scaled by the robot's configured max TCP speed.
func (r *Robot) speedFraction(speed float64) int {
	return int(math.Round(speed * r.settings.MaxTCPSpeed * kinematics.MetersToMM))
}

// MoveToPose commands the named arm to targetPose (given in the world
// frame), holding the motion-exclusion lock for the whole call.
func (r *Robot) MoveToPose(ctx context.Context, side armnet.Side, targetPose kinematics.Pose, speed float64, linear bool) error {
	arm, err := r.armByName(side)
	if err != nil {
		return err
	}

	r.moveMu.Lock()
	defer r.moveMu.Unlock()

	if err := r.SetSpeed(ctx, r.speedFraction(speed)); err != nil {
		return err
	}

	localPose := kinematics.MakePoseRel(r.settings.Pose, targetPose)
	return r.runSupervised(ctx, func() error { return arm.GotoPose(localPose, linear) })
}

// MoveBothArms commands both arms to their respective target poses with
// the controller-side sync barrier, so both motions complete at the same
// time.
func (r *Robot) MoveBothArms(ctx context.Context, leftPose, rightPose kinematics.Pose, speed float64) error {
	r.moveMu.Lock()
	defer r.moveMu.Unlock()

	if err := r.SetSpeed(ctx, r.speedFraction(speed)); err != nil {
		return err
	}

	left := kinematics.MakePoseRel(r.settings.Pose, leftPose)
	right := kinematics.MakePoseRel(r.settings.Pose, rightPose)
	return r.runSupervised(ctx,
		func() error { return r.left.GotoPoseSync(left) },
		func() error { return r.right.GotoPoseSync(right) },
	)
}

// MoveToJoints commands target joint angles. With side nil, targets must
// cover both arms (suffixed _l/_r) and are driven through the sync
// barrier under supervision, so both arms finish together and a mid-motion
// RAPID stop is caught and recovered; with side set, targets are passed
// unfiltered to that arm's plain (unsupervised) GotoJoints, so they must be
// exactly that arm's seven joints.
func (r *Robot) MoveToJoints(ctx context.Context, targets []kinematics.Joint, speed float64, side *armnet.Side) error {
	r.moveMu.Lock()
	defer r.moveMu.Unlock()

	if err := r.SetSpeed(ctx, r.speedFraction(speed)); err != nil {
		return err
	}

	if side != nil {
		arm, err := r.armByName(*side)
		if err != nil {
			return err
		}
		return arm.GotoJoints(targets)
	}

	var left, right []kinematics.Joint
	for _, j := range targets {
		if strings.HasSuffix(j.Name, "_l") {
			left = append(left, j)
		} else if strings.HasSuffix(j.Name, "_r") {
			right = append(right, j)
		}
	}

	return r.runSupervised(ctx,
		func() error { return r.left.GotoJointsSync(left) },
		func() error { return r.right.GotoJointsSync(right) },
	)
}

// GetPose returns the named arm's current TCP pose in the world frame.
func (r *Robot) GetPose(side armnet.Side) (kinematics.Pose, error) {
	arm, err := r.armByName(side)
	if err != nil {
		return kinematics.Pose{}, err
	}
	local, err := arm.GetPose()
	if err != nil {
		return kinematics.Pose{}, err
	}
	return kinematics.MakePoseAbs(r.settings.Pose, local), nil
}

// GetJoints returns the named arm's current joint angles.
func (r *Robot) GetJoints(side armnet.Side) ([]kinematics.Joint, error) {
	arm, err := r.armByName(side)
	if err != nil {
		return nil, err
	}
	return arm.GetJoints()
}

// IK computes joint angles for pose (given in the world frame) on the
// named arm.
func (r *Robot) IK(side armnet.Side, pose kinematics.Pose) ([]kinematics.Joint, error) {
	arm, err := r.armByName(side)
	if err != nil {
		return nil, err
	}
	return arm.IK(kinematics.MakePoseRel(r.settings.Pose, pose))
}

// FK computes the world-frame pose for the named arm's given joint angles.
func (r *Robot) FK(side armnet.Side, joints []kinematics.Joint) (kinematics.Pose, error) {
	arm, err := r.armByName(side)
	if err != nil {
		return kinematics.Pose{}, err
	}
	local, err := arm.FK(joints)
	if err != nil {
		return kinematics.Pose{}, err
	}
	return kinematics.MakePoseAbs(r.settings.Pose, local), nil
}
