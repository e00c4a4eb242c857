package identity

import (
	"github.com/sandevgo/verve/internal/dom"
)

// Detection is what a strategy read from the page. An empty ChatID asks the
// resolver to synthesize one.
type Detection struct {
	Name   string
	ChatID string
}

type Strategy interface {
	Name() string
	TryDetect(doc *dom.Document) (Detection, bool)
}

const (
	activeUserSelector = ".userinfo-username[data-chatid]"
	nameShowSelector   = ".userinfo-name-show"
	shopSelector       = ".userinfo-from-shop"
)

var fallbackSelectors = []string{
	".userinfo-username",
	".chat-title",
	".contact-name",
	".shop-name",
	".merchant-name",
}

// DefaultStrategies is the detection chain in priority order.
func DefaultStrategies() []Strategy {
	return []Strategy{
		activeUser{},
		nameShow{},
		fallback{selectors: fallbackSelectors},
	}
}

// activeUser reads the header element that carries the chat id itself.
type activeUser struct{}

func (activeUser) Name() string { return "active_user" }

func (activeUser) TryDetect(doc *dom.Document) (Detection, bool) {
	el, ok := doc.First(activeUserSelector)
	if !ok {
		return Detection{}, false
	}
	name := dom.Text(el)
	id, _ := el.Attr("data-chatid")
	if name == "" || id == "" {
		return Detection{}, false
	}
	return Detection{Name: name, ChatID: id}, true
}

type nameShow struct{}

func (nameShow) Name() string { return "name_show" }

func (nameShow) TryDetect(doc *dom.Document) (Detection, bool) {
	el, ok := doc.First(nameShowSelector)
	if !ok {
		return Detection{}, false
	}
	name := dom.Text(el)
	if name == "" {
		return Detection{}, false
	}
	return Detection{Name: name}, true
}

type fallback struct {
	selectors []string
}

func (fallback) Name() string { return "fallback" }

func (f fallback) TryDetect(doc *dom.Document) (Detection, bool) {
	for _, selector := range f.selectors {
		for _, el := range doc.FindAll(selector) {
			if name := dom.Text(el); name != "" {
				return Detection{Name: name}, true
			}
		}
	}
	return Detection{}, false
}
