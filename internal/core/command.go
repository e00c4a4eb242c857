package core

import "context"

type CommandRequest struct {
	Type     string   `json:"type"`
	Count    int      `json:"count,omitempty"`
	Interval int      `json:"interval,omitempty"`
	Text     string   `json:"text,omitempty"`
	Template string   `json:"template,omitempty"`
	Messages []string `json:"messages,omitempty"`
	Delay    int      `json:"delay,omitempty"`
}

type CommandResult struct {
	Status   string `json:"status,omitempty"`
	Message  string `json:"message,omitempty"`
	ShopName string `json:"shopName,omitempty"`
	Data     any    `json:"data,omitempty"`
}

type CmdRouter interface {
	Execute(ctx context.Context, req CommandRequest) CommandResult
	ListCommands() []Command
}

type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, req CommandRequest) (CommandResult, error)
}
