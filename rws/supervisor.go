package rws

import (
	"context"
	"time"

	"go.viam.com/utils"
)

// PollInterval is how often the supervisor checks task execution state
// while a motion is in flight.
const PollInterval = 100 * time.Millisecond

// ErrProgramStopped is returned by BlockWhileRunning when RAPID stops
// executing before the watched motion reported completion on its own
// socket — "Motion supervision" only stops the one offending task, so
// polling all_tasks_running is the only way to notice it from outside.
type ErrProgramStopped struct{}

func (ErrProgramStopped) Error() string { return "RAPID execution stopped while motion was in flight" }

// Supervisor polls a Client's task list to detect RAPID stopping out from
// under an in-flight motion command.
type Supervisor struct {
	client *Client
}

// NewSupervisor builds a Supervisor bound to client.
func NewSupervisor(client *Client) *Supervisor {
	return &Supervisor{client: client}
}

// BlockWhileRunning polls AllTasksRunning at PollInterval until either
// ctx is cancelled (the caller's motion completed and is no longer
// interested) or a task stops running, in which case it returns
// ErrProgramStopped.
func (s *Supervisor) BlockWhileRunning(ctx context.Context) error {
	for {
		running, err := s.client.AllTasksRunning(ctx)
		if err != nil {
			return err
		}
		if !running {
			return ErrProgramStopped{}
		}
		if !utils.SelectContextOrWait(ctx, PollInterval) {
			return nil
		}
	}
}
