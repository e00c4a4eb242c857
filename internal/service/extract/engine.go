// Package extract scans page snapshots for chat messages and promotion
// blocks, drops what was already seen and feeds new messages into memory.
package extract

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/dom"
	"github.com/sandevgo/verve/internal/metrics"
	"github.com/sandevgo/verve/internal/service/memory"
	"github.com/sandevgo/verve/internal/timestamp"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/log"
)

const (
	MessageSelector   = ".text-message.normal-text, .rich-message, .text-message.shop-text"
	PromotionSelector = ".tuan"

	promotionNameSelector     = ".tuan-name"
	promotionSaleSelector     = ".sale-price"
	promotionOriginalSelector = ".tuan-price .gray-price > span, .tuan-price > .gray > .gray-price:not(.left-dis)"
	promotionImageSelector    = ".tuan-img img"
)

var prefixes = map[core.MessageType]string{
	core.MessageShop:     "[商家] ",
	core.MessageCustomer: "[客户] ",
	core.MessageUnknown:  "[未知] ",
}

type Batch struct {
	Messages   []core.ChatMessage
	Promotions []core.PromotionInfo
}

func (b Batch) Len() int {
	return len(b.Messages) + len(b.Promotions)
}

// Items flattens the batch, stamping each item with contact when given.
func (b Batch) Items(contact *core.ContactInfo) []core.Item {
	items := make([]core.Item, 0, b.Len())
	for _, m := range b.Messages {
		if contact != nil {
			items = append(items, m.WithContact(*contact))
			continue
		}
		items = append(items, m)
	}
	for _, p := range b.Promotions {
		if contact != nil {
			items = append(items, p.WithContact(*contact))
			continue
		}
		items = append(items, p)
	}
	return items
}

// Engine owns the dedup key set of one extraction session.
// It is not safe for concurrent use; callers serialize passes.
type Engine struct {
	memory  *memory.Manager
	parser  *timestamp.Parser
	clock   clock.Clock
	metrics *metrics.Metrics
	seen    map[string]struct{}
}

func NewEngine(mem *memory.Manager, parser *timestamp.Parser, c clock.Clock, m *metrics.Metrics) *Engine {
	if c == nil {
		c = clock.Real()
	}
	if parser == nil {
		parser = timestamp.NewParser(c, nil)
	}
	return &Engine{
		memory:  mem,
		parser:  parser,
		clock:   c,
		metrics: m,
		seen:    make(map[string]struct{}),
	}
}

// Reset forgets every dedup key. Only an explicit session restart calls it.
func (e *Engine) Reset() {
	e.seen = make(map[string]struct{})
}

// Seen is the number of dedup keys held.
func (e *Engine) Seen() int {
	return len(e.seen)
}

// ExtractOnce runs one pass over doc. New messages are recorded into memory,
// with customer messages triggering a memory update.
func (e *Engine) ExtractOnce(ctx context.Context, doc *dom.Document) Batch {
	var batch Batch
	if doc == nil {
		return batch
	}

	for _, node := range doc.FindAll(MessageSelector) {
		if msg, ok := e.message(ctx, node); ok {
			batch.Messages = append(batch.Messages, msg)
			e.memory.Record(ctx, msg, msg.MessageType == core.MessageCustomer)
		}
	}

	for _, node := range doc.FindAll(PromotionSelector) {
		if promo, ok := e.promotion(ctx, node); ok {
			batch.Promotions = append(batch.Promotions, promo)
		}
	}

	if batch.Len() > 0 {
		log.FromCtx(ctx).Debug().
			Int("messages", len(batch.Messages)).
			Int("promotions", len(batch.Promotions)).
			Msg("extraction pass produced new items")
	}
	return batch
}

func Classify(node *goquery.Selection) core.MessageType {
	switch {
	case dom.ClassContains(node, "shop-text"):
		return core.MessageShop
	case dom.ClassContains(node, "normal-text"):
		return core.MessageCustomer
	default:
		return core.MessageUnknown
	}
}

// MessageKey is the dedup key of a chat message.
func MessageKey(content string, t core.MessageType) string {
	return content + "_" + string(t)
}

// PromotionKey is the dedup key of a promotion block.
func PromotionKey(name, salePrice string) string {
	return "tuan_" + name + "_" + salePrice
}

func (e *Engine) message(ctx context.Context, node *goquery.Selection) (msg core.ChatMessage, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.FromCtx(ctx).Warn().Interface("panic", rec).Msg("skipping unreadable message node")
			ok = false
		}
	}()

	content := dom.MessageContent(node)
	if content == "" {
		return core.ChatMessage{}, false
	}

	kind := Classify(node)
	key := MessageKey(content, kind)
	if _, dup := e.seen[key]; dup {
		e.metrics.DuplicateSkipped(string(core.KindChatMessage))
		return core.ChatMessage{}, false
	}
	e.seen[key] = struct{}{}

	now := e.clock.Now()
	ci := e.memory.Context()
	msg = core.ChatMessage{
		ID:              core.NewID("msg", now),
		Type:            core.KindChatMessage,
		MessageType:     kind,
		Content:         prefixes[kind] + content,
		OriginalContent: content,
		Timestamp:       now,
		TimestampSource: core.TimestampFallback,
		ChatID:          ci.ChatID,
		ContactName:     ci.CombinedName,
	}

	if label, found := timestamp.Find(node); found {
		if t, parsed := e.parser.Parse(label); parsed && e.parser.Validate(t) {
			captured := msg.Timestamp
			msg.Timestamp = t
			msg.OriginalTimestamp = &captured
			msg.TimestampSource = core.TimestampExtracted
		} else {
			log.FromCtx(ctx).Debug().Str("label", label).Msg("unusable time label, keeping capture time")
		}
	}

	e.metrics.ItemExtracted(string(core.KindChatMessage))
	return msg, true
}

func (e *Engine) promotion(ctx context.Context, node *goquery.Selection) (promo core.PromotionInfo, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.FromCtx(ctx).Warn().Interface("panic", rec).Msg("skipping unreadable promotion node")
			ok = false
		}
	}()

	name := dom.Text(node.Find(promotionNameSelector).First())
	sale := dom.Text(node.Find(promotionSaleSelector).First())
	if name == "" || sale == "" {
		return core.PromotionInfo{}, false
	}

	key := PromotionKey(name, sale)
	if _, dup := e.seen[key]; dup {
		e.metrics.DuplicateSkipped(string(core.KindPromotion))
		return core.PromotionInfo{}, false
	}
	e.seen[key] = struct{}{}

	image, _ := node.Find(promotionImageSelector).First().Attr("src")
	promo = core.PromotionInfo{
		ID:   core.NewID("tuan", e.clock.Now()),
		Type: core.KindPromotion,
		Content: core.PromotionContent{
			Name:          name,
			SalePrice:     sale,
			OriginalPrice: dom.Text(node.Find(promotionOriginalSelector).First()),
			Image:         strings.TrimSpace(image),
		},
	}

	e.metrics.ItemExtracted(string(core.KindPromotion))
	return promo, true
}

// DetectPageType tells the embedded chat surface apart from other pages.
func DetectPageType(doc *dom.Document) core.PageType {
	if doc == nil {
		return core.PageUnknown
	}
	if strings.Contains(doc.URL, "dzim-main-pc") || doc.Exists("wujie-app") {
		return core.PageChat
	}
	if doc.Exists(".message-list") || doc.Exists(".text-message") {
		return core.PageChat
	}
	return core.PageUnknown
}
