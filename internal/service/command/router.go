package command

import (
	"context"
	"fmt"

	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/pkg/log"
)

const (
	StatusStarted = "started"
	StatusStopped = "stopped"
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusError   = "error"
	StatusOK      = "ok"
)

type Router struct {
	commands map[string]core.Command
}

func New(commands []core.Command) *Router {
	c := &Router{
		commands: make(map[string]core.Command),
	}

	for _, cmd := range commands {
		c.commands[cmd.Name()] = cmd
	}
	return c
}

func (c *Router) Execute(ctx context.Context, req core.CommandRequest) core.CommandResult {
	logger := log.FromCtx(ctx)

	cmd, ok := c.commands[req.Type]
	if !ok {
		logger.Warn().Str("command", req.Type).Msg("unknown command")
		return core.CommandResult{Status: StatusError, Message: fmt.Sprintf("Unknown command: %s", req.Type)}
	}

	logger.Debug().Str("command", req.Type).Msg("executing command")
	result, err := cmd.Execute(ctx, req)
	if err != nil {
		logger.Error().Err(err).Str("command", req.Type).Msg("command failed")
		return core.CommandResult{Status: StatusError, Message: err.Error()}
	}
	return result
}

func (c *Router) ListCommands() []core.Command {
	res := make([]core.Command, 0, len(c.commands))
	for _, cmd := range c.commands {
		res = append(res, cmd)
	}
	return res
}
