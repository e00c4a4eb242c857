package telegram

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/verve/internal/core"
)

type Formatter struct {
	loc *time.Location
}

func NewFormatter(loc *time.Location) *Formatter {
	if loc == nil {
		loc = time.Local
	}
	return &Formatter{loc: loc}
}

func (f *Formatter) Label(label, value string) string {
	return fmt.Sprintf("**%s**  ›  `%s`\n", label, value)
}

func (f *Formatter) Quote(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n") + "\n"
}

func (f *Formatter) CustomerMessage(u core.MemoryUpdate) string {
	var sb strings.Builder
	name := u.Message.ContactName
	if name == "" {
		name = u.ContactName
	}
	sb.WriteString(fmt.Sprintf("💬 **%s**\n\n", name))
	if u.ContextInfo.ShopName != "" {
		sb.WriteString(f.Label("门店", u.ContextInfo.ShopName))
	}
	sb.WriteString(f.Label("时间", u.Message.Timestamp.In(f.loc).Format("01-02 15:04")))
	sb.WriteString("\n")
	sb.WriteString(f.Quote(u.Message.Content))
	return sb.String()
}

func (f *Formatter) ClickError(e core.ClickError) string {
	return fmt.Sprintf("❌ **联系人轮询已停止**\n\n**Issue**: %s\n", e.Message)
}

func (f *Formatter) Result(command string, res core.CommandResult) string {
	var sb strings.Builder
	icon := "✅"
	if res.Status == "error" || res.Status == "failed" {
		icon = "❌"
	}
	sb.WriteString(fmt.Sprintf("%s **%s**\n\n", icon, command))
	sb.WriteString(f.Label("status", res.Status))
	if res.Message != "" {
		sb.WriteString(f.Label("message", res.Message))
	}
	if res.ShopName != "" {
		sb.WriteString(f.Label("shop", res.ShopName))
	}
	return sb.String()
}
