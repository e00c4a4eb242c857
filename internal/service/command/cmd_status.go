package command

import (
	"context"

	"github.com/sandevgo/verve/internal/core"
)

type ShopNameCommand struct {
	session Session
}

func NewShopNameCommand(s Session) core.Command {
	return &ShopNameCommand{session: s}
}

func (c *ShopNameCommand) Name() string {
	return "getShopName"
}

func (c *ShopNameCommand) Description() string {
	return "Read the shop label of the open page"
}

func (c *ShopNameCommand) Execute(ctx context.Context, _ core.CommandRequest) (core.CommandResult, error) {
	return core.CommandResult{ShopName: c.session.ShopName(ctx)}, nil
}

type StatusCommand struct {
	session Session
}

func NewStatusCommand(s Session) core.Command {
	return &StatusCommand{session: s}
}

func (c *StatusCommand) Name() string {
	return "getStatus"
}

func (c *StatusCommand) Description() string {
	return "Report extraction, cycle and memory state"
}

func (c *StatusCommand) Execute(context.Context, core.CommandRequest) (core.CommandResult, error) {
	return core.CommandResult{Status: StatusOK, Data: c.session.Status()}, nil
}
