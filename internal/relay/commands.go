package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/pkg/log"
)

type CommandReply struct {
	Command string             `json:"command"`
	Result  core.CommandResult `json:"result"`
}

// CommandService executes commands arriving on the commands topic and answers
// on the replies topic under the request's correlation id.
type CommandService struct {
	sub    message.Subscriber
	pub    message.Publisher
	router core.CmdRouter

	wg sync.WaitGroup
}

func NewCommandService(sub message.Subscriber, pub message.Publisher, router core.CmdRouter) *CommandService {
	return &CommandService{sub: sub, pub: pub, router: router}
}

func (s *CommandService) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	messages, err := s.sub.Subscribe(ctx, TopicCommands)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", TopicCommands, err)
	}
	logger.Info().Str("topic", TopicCommands).Msg("listening for commands")

	for msg := range messages {
		var req core.CommandRequest
		if err := json.Unmarshal(msg.Payload, &req); err != nil {
			logger.Warn().Err(err).Str("message_id", msg.UUID).Msg("dropping unreadable command")
			msg.Ack()
			continue
		}
		msg.Ack()

		correlationID := middleware.MessageCorrelationID(msg)
		if correlationID == "" {
			correlationID = msg.UUID
		}

		// Sends wait for the page; a stop must not queue behind them.
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, req, correlationID)
		}()
	}
	return nil
}

func (s *CommandService) handle(ctx context.Context, req core.CommandRequest, correlationID string) {
	logger := log.FromCtx(ctx)

	result := s.router.Execute(ctx, req)

	reply, err := NewMessage(core.EventCommandResult, CommandReply{Command: req.Type, Result: result})
	if err != nil {
		logger.Error().Err(err).Msg("failed to encode command reply")
		return
	}
	middleware.SetCorrelationID(correlationID, reply)
	if err := s.pub.Publish(TopicReplies, reply); err != nil {
		logger.Warn().Err(err).Str("command", req.Type).Msg("failed to publish command reply")
	}
}

func (s *CommandService) Shutdown(context.Context) error {
	s.wg.Wait()
	return nil
}
