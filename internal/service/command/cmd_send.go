package command

import (
	"context"
	"time"

	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/service/dispatch"
)

func sendResult(res dispatch.Result, err error) core.CommandResult {
	if err != nil {
		msg := res.Message
		if msg == "" {
			msg = err.Error()
		}
		return core.CommandResult{Status: StatusFailed, Message: msg}
	}
	return core.CommandResult{Status: StatusSuccess, Message: res.Message}
}

type TestSendCommand struct {
	session Session
}

func NewTestSendCommand(s Session) core.Command {
	return &TestSendCommand{session: s}
}

func (c *TestSendCommand) Name() string {
	return "testSendMessage"
}

func (c *TestSendCommand) Description() string {
	return "Send a fixed test line through the chat input"
}

func (c *TestSendCommand) Execute(ctx context.Context, _ core.CommandRequest) (core.CommandResult, error) {
	return sendResult(c.session.TestSend(ctx)), nil
}

type AIReplyCommand struct {
	session Session
}

func NewAIReplyCommand(s Session) core.Command {
	return &AIReplyCommand{session: s}
}

func (c *AIReplyCommand) Name() string {
	return "sendAIReply"
}

func (c *AIReplyCommand) Description() string {
	return "Send a generated reply and remember it as the shop's"
}

func (c *AIReplyCommand) Execute(ctx context.Context, req core.CommandRequest) (core.CommandResult, error) {
	return sendResult(c.session.SendAIReply(ctx, req.Text)), nil
}

type CustomMessageCommand struct {
	session Session
}

func NewCustomMessageCommand(s Session) core.Command {
	return &CustomMessageCommand{session: s}
}

func (c *CustomMessageCommand) Name() string {
	return "sendCustomMessage"
}

func (c *CustomMessageCommand) Description() string {
	return "Send operator text"
}

func (c *CustomMessageCommand) Execute(ctx context.Context, req core.CommandRequest) (core.CommandResult, error) {
	return sendResult(c.session.SendCustom(ctx, req.Text)), nil
}

type TemplateMessageCommand struct {
	session Session
}

func NewTemplateMessageCommand(s Session) core.Command {
	return &TemplateMessageCommand{session: s}
}

func (c *TemplateMessageCommand) Name() string {
	return "sendTemplateMessage"
}

func (c *TemplateMessageCommand) Description() string {
	return "Send a canned reply: greeting, thanks, confirm, goodbye"
}

func (c *TemplateMessageCommand) Execute(ctx context.Context, req core.CommandRequest) (core.CommandResult, error) {
	return sendResult(c.session.SendTemplate(ctx, req.Template, req.Text)), nil
}

type BatchMessagesCommand struct {
	session Session
}

func NewBatchMessagesCommand(s Session) core.Command {
	return &BatchMessagesCommand{session: s}
}

func (c *BatchMessagesCommand) Name() string {
	return "sendBatchMessages"
}

func (c *BatchMessagesCommand) Description() string {
	return "Send several lines with a delay in ms between them"
}

func (c *BatchMessagesCommand) Execute(ctx context.Context, req core.CommandRequest) (core.CommandResult, error) {
	results := c.session.SendBatch(ctx, req.Messages, time.Duration(req.Delay)*time.Millisecond)

	status := StatusSuccess
	for _, r := range results {
		if r.Status != StatusSuccess {
			status = StatusFailed
			break
		}
	}
	return core.CommandResult{Status: status, Data: results}, nil
}
