package dispatch

import (
	"context"
	"time"

	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/conv"
	"github.com/sandevgo/verve/pkg/log"
)

const (
	TestMessage = "这是一个自动发送的测试消息"

	DefaultBatchDelay = time.Second

	defaultCustomText = "这是一条自定义消息"
)

var templates = map[string]string{
	"greeting": "您好！感谢您的咨询，请问有什么可以帮您的吗？",
	"thanks":   "谢谢您的理解和支持！",
	"confirm":  "好的，我已记录您的需求，稍后为您处理。",
	"goodbye":  "感谢您的咨询，祝您生活愉快！",
}

// RecordFunc remembers a reply the operator side sent. It must never cause a
// new reply to be generated.
type RecordFunc func(ctx context.Context, idPrefix, text string)

type BatchResult struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

type Sender struct {
	dispatcher *Dispatcher
	record     RecordFunc
	clock      clock.Clock
}

func NewSender(d *Dispatcher, record RecordFunc, c clock.Clock) *Sender {
	if c == nil {
		c = clock.Real()
	}
	return &Sender{dispatcher: d, record: record, clock: c}
}

// TestSend dispatches the fixed test line without remembering it.
func (s *Sender) TestSend(ctx context.Context) (Result, error) {
	return s.dispatcher.Send(ctx, TestMessage)
}

func (s *Sender) SendAIReply(ctx context.Context, text string) (Result, error) {
	return s.send(ctx, "ai_reply", text, true)
}

func (s *Sender) SendCustom(ctx context.Context, text string, remember bool) (Result, error) {
	return s.send(ctx, "custom_msg", text, remember)
}

// Template resolves a template name; unknown names fall back to text.
func Template(name, text string) string {
	if t, ok := templates[name]; ok {
		return t
	}
	if text != "" {
		return text
	}
	return defaultCustomText
}

func (s *Sender) SendTemplate(ctx context.Context, name, text string) (Result, error) {
	return s.SendCustom(ctx, Template(name, text), true)
}

// SendBatch sends messages one after another with delay between them. A failed
// message is reported in its result and does not stop the batch.
func (s *Sender) SendBatch(ctx context.Context, messages []string, delay time.Duration) []BatchResult {
	logger := log.FromCtx(ctx)
	if delay <= 0 {
		delay = DefaultBatchDelay
	}

	results := make([]BatchResult, 0, len(messages))
	for i, msg := range messages {
		res := BatchResult{Index: i, Message: msg, Status: "success"}
		if _, err := s.SendCustom(ctx, msg, true); err != nil {
			res.Status = "failed"
			res.Error = err.Error()
			logger.Warn().Err(err).Int("index", i).Msg("batch message failed")
		}
		results = append(results, res)

		if i < len(messages)-1 {
			if err := s.sleep(ctx, delay); err != nil {
				for j := i + 1; j < len(messages); j++ {
					results = append(results, BatchResult{Index: j, Message: messages[j], Status: "failed", Error: err.Error()})
				}
				break
			}
		}
	}

	succeeded := 0
	for _, r := range results {
		if r.Status == "success" {
			succeeded++
		}
	}
	logger.Info().Int("sent", succeeded).Int("total", len(messages)).Msg("batch send finished")
	return results
}

func (s *Sender) send(ctx context.Context, prefix, text string, remember bool) (Result, error) {
	text = conv.PlainText(text)
	if text == "" {
		return Result{Status: StatusFailure, Message: ErrEmptyText.Error()}, ErrEmptyText
	}
	if remember && s.record != nil {
		s.record(ctx, prefix, text)
	}
	return s.dispatcher.Send(ctx, text)
}

func (s *Sender) sleep(ctx context.Context, d time.Duration) error {
	done := make(chan struct{})
	t := s.clock.AfterFunc(d, func() { close(done) })
	defer t.Stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
