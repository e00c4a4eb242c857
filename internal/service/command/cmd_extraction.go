package command

import (
	"context"

	"github.com/sandevgo/verve/internal/core"
)

type StartExtractionCommand struct {
	session Session
}

func NewStartExtractionCommand(s Session) core.Command {
	return &StartExtractionCommand{session: s}
}

func (c *StartExtractionCommand) Name() string {
	return "startExtraction"
}

func (c *StartExtractionCommand) Description() string {
	return "Start extracting messages from the open page"
}

func (c *StartExtractionCommand) Execute(ctx context.Context, _ core.CommandRequest) (core.CommandResult, error) {
	c.session.StartExtraction(ctx)
	return core.CommandResult{Status: StatusStarted}, nil
}

type StopExtractionCommand struct {
	session Session
}

func NewStopExtractionCommand(s Session) core.Command {
	return &StopExtractionCommand{session: s}
}

func (c *StopExtractionCommand) Name() string {
	return "stopExtraction"
}

func (c *StopExtractionCommand) Description() string {
	return "Stop extracting messages"
}

func (c *StopExtractionCommand) Execute(ctx context.Context, _ core.CommandRequest) (core.CommandResult, error) {
	c.session.StopExtraction(ctx)
	return core.CommandResult{Status: StatusStopped}, nil
}
