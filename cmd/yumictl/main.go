// Package main is a small CLI driver for exercising a yumi.Robot:
// flag-based, one action per invocation, connect/act/teardown.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"go.viam.com/rdk/logging"

	"github.com/yumi-robotics/yumi-control/armnet"
	"github.com/yumi-robotics/yumi-control/kinematics"
	"github.com/yumi-robotics/yumi-control/yumi"
)

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func realMain() error {
	settings := yumi.DefaultSettings()
	debug := false
	side := "left"
	speed := 0.3
	var pose, jointDegs string

	flag.StringVar(&settings.IP, "ip", settings.IP, "controller IP")
	flag.Float64Var(&settings.MaxTCPSpeed, "max-speed", settings.MaxTCPSpeed, "TCP speed ceiling, m/s")
	flag.BoolVar(&settings.HomeOnStart, "home-on-start", settings.HomeOnStart, "home both arms on connect")
	flag.BoolVar(&debug, "debug", debug, "debug logging")
	flag.StringVar(&side, "side", side, "arm side: left or right")
	flag.Float64Var(&speed, "speed", speed, "motion speed fraction, 0..1")
	flag.StringVar(&pose, "pose", pose, "x,y,z,qx,qy,qz,qw (meters, unit quaternion)")
	flag.StringVar(&jointDegs, "joints", jointDegs, "comma-separated joint angles in degrees")
	flag.Parse()

	action := flag.Arg(0)
	if action == "" {
		return fmt.Errorf("usage: yumictl [flags] <ping|pose|joints|move-pose|move-joints|open-gripper|close-gripper|status>")
	}

	logger := logging.NewLogger("yumictl")
	if debug {
		logger.SetLevel(logging.DEBUG)
	}

	ctx := context.Background()
	r, err := yumi.New(ctx, settings, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := r.Close(ctx); cerr != nil {
			logger.Errorw("close", "error", cerr)
		}
	}()

	armSide := armnet.Side(side)

	switch action {
	case "ping":
		if err := r.Ping(armSide); err != nil {
			return err
		}
		logger.Infof("%s arm: alive", armSide)
	case "pose":
		p, err := r.GetPose(armSide)
		if err != nil {
			return err
		}
		logger.Infof("pose: %+v", p)
	case "joints":
		joints, err := r.GetJoints(armSide)
		if err != nil {
			return err
		}
		logger.Infof("joints: %+v", joints)
	case "move-pose":
		p, err := parsePose(pose)
		if err != nil {
			return err
		}
		if err := r.MoveToPose(ctx, armSide, p, speed, true); err != nil {
			return err
		}
	case "move-joints":
		joints, err := parseJoints(jointDegs, armSide)
		if err != nil {
			return err
		}
		if err := r.MoveToJoints(ctx, joints, speed, &armSide); err != nil {
			return err
		}
	case "open-gripper":
		if err := r.OpenGripper(armSide, 1.0, 1.0); err != nil {
			return err
		}
	case "close-gripper":
		if err := r.CloseGripper(armSide, 1.0, 0.0); err != nil {
			return err
		}
	case "status":
		left, err := r.GetPose(armnet.Left)
		if err != nil {
			return err
		}
		right, err := r.GetPose(armnet.Right)
		if err != nil {
			return err
		}
		logger.Infof("left pose: %+v", left)
		logger.Infof("right pose: %+v", right)
	default:
		return fmt.Errorf("unknown action: %s", action)
	}

	return nil
}

func parsePose(s string) (kinematics.Pose, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 7 {
		return kinematics.Pose{}, fmt.Errorf("-pose must have 7 comma-separated values, got %d", len(fields))
	}
	vals := make([]float64, 7)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return kinematics.Pose{}, fmt.Errorf("-pose field %d: %w", i, err)
		}
		vals[i] = v
	}
	return kinematics.Pose{
		Position:    kinematics.Position{X: vals[0], Y: vals[1], Z: vals[2]},
		Orientation: kinematics.Orientation{X: vals[3], Y: vals[4], Z: vals[5], W: vals[6]},
	}, nil
}

func parseJoints(s string, side armnet.Side) ([]kinematics.Joint, error) {
	fields := strings.Split(s, ",")
	if len(fields) != 7 {
		return nil, fmt.Errorf("-joints must have 7 comma-separated values, got %d", len(fields))
	}
	suffix := "_r"
	if side == armnet.Left {
		suffix = "_l"
	}
	joints := make([]kinematics.Joint, 7)
	for i, f := range fields {
		deg, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("-joints field %d: %w", i, err)
		}
		joints[i] = kinematics.Joint{
			Name:  fmt.Sprintf("yumi_joint_%d%s", i+1, suffix),
			Value: deg * math.Pi / 180,
		}
	}
	return joints, nil
}
