package command

import (
	"context"
	"time"

	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/service/dispatch"
	"github.com/sandevgo/verve/internal/service/session"
)

// Session is what the commands drive.
type Session interface {
	StartExtraction(ctx context.Context)
	StopExtraction(ctx context.Context)
	StartCycle(ctx context.Context, count int, interval time.Duration) bool
	StopCycle(ctx context.Context)
	ShopName(ctx context.Context) string
	Status() session.Status

	TestSend(ctx context.Context) (dispatch.Result, error)
	SendAIReply(ctx context.Context, text string) (dispatch.Result, error)
	SendCustom(ctx context.Context, text string) (dispatch.Result, error)
	SendTemplate(ctx context.Context, name, text string) (dispatch.Result, error)
	SendBatch(ctx context.Context, messages []string, delay time.Duration) []dispatch.BatchResult
}

func NewCommands(s Session) []core.Command {
	return []core.Command{
		NewStartExtractionCommand(s),
		NewStopExtractionCommand(s),
		NewStartCycleCommand(s),
		NewStopCycleCommand(s),
		NewTestSendCommand(s),
		NewAIReplyCommand(s),
		NewCustomMessageCommand(s),
		NewTemplateMessageCommand(s),
		NewBatchMessagesCommand(s),
		NewShopNameCommand(s),
		NewStatusCommand(s),
	}
}
