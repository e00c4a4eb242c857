package command

import (
	"context"
	"time"

	"github.com/sandevgo/verve/internal/core"
)

type StartCycleCommand struct {
	session Session
}

func NewStartCycleCommand(s Session) core.Command {
	return &StartCycleCommand{session: s}
}

func (c *StartCycleCommand) Name() string {
	return "startClickContacts"
}

func (c *StartCycleCommand) Description() string {
	return "Visit contacts in a loop: count per round, interval in ms"
}

func (c *StartCycleCommand) Execute(ctx context.Context, req core.CommandRequest) (core.CommandResult, error) {
	interval := time.Duration(req.Interval) * time.Millisecond
	if !c.session.StartCycle(ctx, req.Count, interval) {
		return core.CommandResult{Status: StatusStarted, Message: "contact cycle already running"}, nil
	}
	return core.CommandResult{Status: StatusStarted}, nil
}

type StopCycleCommand struct {
	session Session
}

func NewStopCycleCommand(s Session) core.Command {
	return &StopCycleCommand{session: s}
}

func (c *StopCycleCommand) Name() string {
	return "stopClickContacts"
}

func (c *StopCycleCommand) Description() string {
	return "Stop visiting contacts"
}

func (c *StopCycleCommand) Execute(ctx context.Context, _ core.CommandRequest) (core.CommandResult, error) {
	c.session.StopCycle(ctx)
	return core.CommandResult{Status: StatusStopped}, nil
}
