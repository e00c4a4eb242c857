package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sandevgo/verve/internal/core"
	"github.com/sandevgo/verve/internal/dom"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/sandevgo/verve/pkg/log"
)

const (
	defaultCacheSize = 512
	defaultTTL       = 30 * time.Minute

	UnknownContact = "未知联系人"
)

var elementNameSelectors = []string{".userinfo-name-show", ".userinfo-username", ".contact-name"}

type Resolver struct {
	strategies []Strategy
	clock      clock.Clock
	ids        *expirable.LRU[string, string]
}

func NewResolver(c clock.Clock, ttl time.Duration, strategies ...Strategy) *Resolver {
	if c == nil {
		c = clock.Real()
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if len(strategies) == 0 {
		strategies = DefaultStrategies()
	}
	return &Resolver{
		strategies: strategies,
		clock:      c,
		ids:        expirable.NewLRU[string, string](defaultCacheSize, nil, ttl),
	}
}

// Detect identifies the contact whose conversation is open. It never fails:
// when nothing matches, or a strategy panics, a placeholder identity is returned.
func (r *Resolver) Detect(ctx context.Context, doc *dom.Document) (info core.ContactInfo) {
	logger := log.FromCtx(ctx)
	now := r.clock.Now()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().Interface("panic", rec).Msg("contact detection failed, using recovery identity")
			info = core.ContactInfo{
				Name:      fmt.Sprintf("错误恢复_%d", now.UnixMilli()),
				ChatID:    fmt.Sprintf("error_%d", now.UnixMilli()),
				Timestamp: now,
			}
		}
	}()

	if doc == nil {
		return placeholder(now)
	}

	shop := r.ShopName(doc)
	for _, s := range r.strategies {
		d, ok := s.TryDetect(doc)
		if !ok {
			continue
		}
		if d.ChatID == "" {
			d.ChatID = r.synthesize(d.Name, now)
		}
		logger.Debug().Str("strategy", s.Name()).Str("name", d.Name).Str("chat_id", d.ChatID).Msg("contact detected")
		return core.ContactInfo{Name: d.Name, ChatID: d.ChatID, ShopName: shop, Timestamp: now}
	}

	info = placeholder(now)
	info.ShopName = shop
	logger.Debug().Str("name", info.Name).Msg("no contact element found, using placeholder")
	return info
}

// ForElement identifies the contact behind one contact-list entry. The shop
// label is left empty: the one on screen belongs to the open conversation.
func (r *Resolver) ForElement(ctx context.Context, el *goquery.Selection) (info core.ContactInfo) {
	now := r.clock.Now()
	info = core.ContactInfo{Name: UnknownContact, Timestamp: now}

	defer func() {
		if rec := recover(); rec != nil {
			log.FromCtx(ctx).Error().Interface("panic", rec).Msg("failed to read contact entry")
		}
		if info.ChatID == "" {
			info.ChatID = r.synthesize(info.Name, now)
		}
	}()

	if tagged := el.Find(activeUserSelector).First(); tagged.Length() > 0 {
		info.Name = dom.Text(tagged)
		info.ChatID, _ = tagged.Attr("data-chatid")
		return info
	}

	for _, selector := range elementNameSelectors {
		if name := dom.Text(el.Find(selector).First()); name != "" {
			info.Name = name
			break
		}
	}

	if id, ok := el.Attr("data-chatid"); ok && id != "" {
		info.ChatID = id
	} else if id, ok := el.Attr("id"); ok && id != "" {
		info.ChatID = id
	}
	return info
}

// ShopName reads and formats the shop label; empty when absent.
func (r *Resolver) ShopName(doc *dom.Document) string {
	if doc == nil {
		return ""
	}
	el, ok := doc.First(shopSelector)
	if !ok {
		return ""
	}
	return dom.FormatShopName(dom.Text(el))
}

// synthesize returns a stable id for a display name for as long as the name
// keeps being seen within the cache ttl.
func (r *Resolver) synthesize(name string, now time.Time) string {
	if id, ok := r.ids.Get(name); ok {
		return id
	}
	id := fmt.Sprintf("chat_%s_%d", name, now.UnixMilli())
	r.ids.Add(name, id)
	return id
}

func placeholder(now time.Time) core.ContactInfo {
	return core.ContactInfo{
		Name:      fmt.Sprintf("用户_%d", now.UnixMilli()),
		ChatID:    fmt.Sprintf("chat_%d", now.UnixMilli()),
		Timestamp: now,
	}
}
