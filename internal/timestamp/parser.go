// Package timestamp turns the chat page's human readable time labels into instants.
package timestamp

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sandevgo/verve/pkg/clock"
	"golang.org/x/net/html"
)

const (
	crossDayThreshold = 12 * time.Hour
	maxAge            = 365 * 24 * time.Hour
	maxSkew           = time.Hour
)

var (
	absoluteTime    = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	relativeMinutes = regexp.MustCompile(`^(\d+)分钟前$`)
	relativeHours   = regexp.MustCompile(`^(\d+)小时前$`)
	monthDay        = regexp.MustCompile(`^(\d{1,2})月(\d{1,2})日$`)
	relativeDay     = regexp.MustCompile(`^(昨天|今天|前天)$`)
	labelTime       = regexp.MustCompile(`^.+[。.](\d{1,2}):(\d{2})$`)
)

// Selectors searched for a time label, in priority order.
var Selectors = []string{
	".message-time",
	".time-info",
	".msg-time",
	".timestamp",
	"[data-time]",
	".chat-time",
	".send-time",
}

type Parser struct {
	clock clock.Clock
	loc   *time.Location
}

func NewParser(c clock.Clock, loc *time.Location) *Parser {
	if c == nil {
		c = clock.Real()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Parser{clock: c, loc: loc}
}

// Parse returns the instant described by text, or false when no form matches.
func (p *Parser) Parse(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	now := p.clock.Now().In(p.loc)

	if m := absoluteTime.FindStringSubmatch(text); m != nil {
		return p.clockTime(now, m[1], m[2])
	}

	if m := relativeMinutes.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		return now.Add(-time.Duration(n) * time.Minute), true
	}

	if m := relativeHours.FindStringSubmatch(text); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		return now.Add(-time.Duration(n) * time.Hour), true
	}

	if m := monthDay.FindStringSubmatch(text); m != nil {
		month, _ := strconv.Atoi(m[1])
		day, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return time.Time{}, false
		}
		t := time.Date(now.Year(), time.Month(month), day, 12, 0, 0, 0, p.loc)
		if t.After(now) {
			t = t.AddDate(-1, 0, 0)
		}
		return t, true
	}

	if m := relativeDay.FindStringSubmatch(text); m != nil {
		offset := 0
		switch m[1] {
		case "昨天":
			offset = -1
		case "前天":
			offset = -2
		}
		return time.Date(now.Year(), now.Month(), now.Day()+offset, 12, 0, 0, 0, p.loc), true
	}

	if m := labelTime.FindStringSubmatch(text); m != nil {
		return p.clockTime(now, m[1], m[2])
	}

	return time.Time{}, false
}

// clockTime resolves HH:MM to today, or yesterday when today's reading
// would be more than twelve hours ahead of now.
func (p *Parser) clockTime(now time.Time, hh, mm string) (time.Time, bool) {
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if h > 23 || m > 59 {
		return time.Time{}, false
	}

	t := time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, p.loc)
	if t.Sub(now) > crossDayThreshold {
		t = t.AddDate(0, 0, -1)
	}
	return t, true
}

// Validate rejects instants more than a year old or more than an hour ahead.
func (p *Parser) Validate(t time.Time) bool {
	now := p.clock.Now()
	if t.Before(now.Add(-maxAge)) {
		return false
	}
	return !t.After(now.Add(maxSkew))
}

// Find looks for the time label that belongs to a message node: first inside
// the node, then in its sibling elements, then in a sibling text node or the
// node's own text when it has the "<label>。HH:MM" shape.
func Find(node *goquery.Selection) (string, bool) {
	if node == nil || node.Length() == 0 {
		return "", false
	}

	if text, ok := firstLabel(node); ok {
		return text, true
	}

	found := ""
	node.Siblings().EachWithBreak(func(_ int, sib *goquery.Selection) bool {
		if text, ok := firstLabel(sib); ok {
			found = text
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}

	n := node.Get(0)
	for _, sib := range []*html.Node{n.PrevSibling, n.NextSibling} {
		if sib == nil || sib.Type != html.TextNode {
			continue
		}
		if m := labelTime.FindStringSubmatch(strings.TrimSpace(sib.Data)); m != nil {
			return m[1] + ":" + m[2], true
		}
	}

	own := strings.TrimSpace(node.Text())
	if m := labelTime.FindStringSubmatch(own); m != nil {
		return m[1] + ":" + m[2], true
	}
	return "", false
}

func firstLabel(scope *goquery.Selection) (string, bool) {
	for _, selector := range Selectors {
		el := scope.Filter(selector).AddSelection(scope.Find(selector)).First()
		if el.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(el.Text()); text != "" {
			return text, true
		}
	}
	return "", false
}
