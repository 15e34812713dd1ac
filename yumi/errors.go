package yumi

import (
	"fmt"

	"github.com/yumi-robotics/yumi-control/rws"
)

// RWSError is the yumi-level alias for a Robot Web Services failure: an
// unexpected HTTP status, optionally carrying the controller's own status
// message extracted from its JSON envelope.
type RWSError = rws.Error

// ConfigError is raised when a Settings value fails validation before a
// Robot is ever connected.
type ConfigError struct {
	Field, Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Field, e.Reason)
}

// ControllerFatalError is raised during initialization or recovery when the
// controller is in a state no amount of retrying will fix: not in AUTO
// mode, an active emergency stop, a system failure that requires a
// physical restart, or RAPID failing to restart during recovery.
type ControllerFatalError struct {
	Reason string
}

func (e *ControllerFatalError) Error() string {
	return fmt.Sprintf("controller fatal: %s", e.Reason)
}

// ProgramStoppedError is raised when RAPID execution stops out from under
// an in-flight motion for a reason other than the motion's own completion
// — a collision, a safety stop, or an operator intervention. It is returned
// only after Robot.Recover has already run successfully.
type ProgramStoppedError struct{}

func (e *ProgramStoppedError) Error() string {
	return "RAPID execution stopped unexpectedly during motion"
}
