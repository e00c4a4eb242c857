package timestamp

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sandevgo/verve/pkg/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(y int, mo time.Month, d, h, mi int) time.Time {
	return time.Date(y, mo, d, h, mi, 0, 0, time.UTC)
}

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		text   string
		want   time.Time
		wantOk bool
	}{
		{
			name:   "clock_time_earlier_today",
			now:    at(2026, 5, 10, 20, 0),
			text:   "14:30",
			want:   at(2026, 5, 10, 14, 30),
			wantOk: true,
		},
		{
			name:   "clock_time_far_ahead_means_yesterday",
			now:    at(2026, 5, 10, 1, 0),
			text:   "14:30",
			want:   at(2026, 5, 9, 14, 30),
			wantOk: true,
		},
		{
			name:   "clock_time_slightly_ahead_stays_today",
			now:    at(2026, 5, 10, 9, 0),
			text:   "09:15",
			want:   at(2026, 5, 10, 9, 15),
			wantOk: true,
		},
		{
			name:   "single_digit_hour",
			now:    at(2026, 5, 10, 12, 0),
			text:   "9:05",
			want:   at(2026, 5, 10, 9, 5),
			wantOk: true,
		},
		{
			name:   "out_of_range_clock",
			now:    at(2026, 5, 10, 12, 0),
			text:   "25:61",
			wantOk: false,
		},
		{
			name:   "minutes_ago",
			now:    at(2026, 5, 10, 12, 0),
			text:   "5分钟前",
			want:   at(2026, 5, 10, 11, 55),
			wantOk: true,
		},
		{
			name:   "hours_ago",
			now:    at(2026, 5, 10, 12, 0),
			text:   "3小时前",
			want:   at(2026, 5, 10, 9, 0),
			wantOk: true,
		},
		{
			name:   "month_day_this_year",
			now:    at(2026, 5, 10, 12, 0),
			text:   "5月1日",
			want:   at(2026, 5, 1, 12, 0),
			wantOk: true,
		},
		{
			name:   "month_day_in_future_means_last_year",
			now:    at(2026, 5, 10, 12, 0),
			text:   "12月1日",
			want:   at(2025, 12, 1, 12, 0),
			wantOk: true,
		},
		{
			name:   "yesterday_is_noon",
			now:    at(2026, 5, 10, 8, 0),
			text:   "昨天",
			want:   at(2026, 5, 9, 12, 0),
			wantOk: true,
		},
		{
			name:   "day_before_yesterday",
			now:    at(2026, 3, 1, 8, 0),
			text:   "前天",
			want:   at(2026, 2, 27, 12, 0),
			wantOk: true,
		},
		{
			name:   "today",
			now:    at(2026, 5, 10, 8, 0),
			text:   "今天",
			want:   at(2026, 5, 10, 12, 0),
			wantOk: true,
		},
		{
			name:   "label_with_clock",
			now:    at(2026, 5, 10, 20, 0),
			text:   "小王。14:30",
			want:   at(2026, 5, 10, 14, 30),
			wantOk: true,
		},
		{
			name:   "surrounding_whitespace",
			now:    at(2026, 5, 10, 20, 0),
			text:   "  14:30 ",
			want:   at(2026, 5, 10, 14, 30),
			wantOk: true,
		},
		{
			name:   "not_a_time",
			now:    at(2026, 5, 10, 20, 0),
			text:   "不是时间",
			wantOk: false,
		},
		{
			name:   "empty",
			now:    at(2026, 5, 10, 20, 0),
			text:   "",
			wantOk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(clock.NewManual(tt.now), time.UTC)
			got, ok := p.Parse(tt.text)
			require.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.True(t, tt.want.Equal(got), "want %v, got %v", tt.want, got)
			}
		})
	}
}

func TestParser_Validate(t *testing.T) {
	now := at(2026, 5, 10, 12, 0)
	p := NewParser(clock.NewManual(now), time.UTC)

	assert.True(t, p.Validate(now))
	assert.True(t, p.Validate(now.Add(30*time.Minute)))
	assert.True(t, p.Validate(now.AddDate(0, -11, 0)))
	assert.False(t, p.Validate(now.Add(2*time.Hour)))
	assert.False(t, p.Validate(now.AddDate(-1, 0, -1)))
}

func parseNode(t *testing.T, source, selector string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	require.NoError(t, err)
	sel := doc.Find(selector).First()
	require.Equal(t, 1, sel.Length())
	return sel
}

func TestFind(t *testing.T) {
	tests := []struct {
		name   string
		html   string
		want   string
		wantOk bool
	}{
		{
			name:   "inside_node",
			html:   `<div class="text-message"><span class="msg-time">10:20</span>hello</div>`,
			want:   "10:20",
			wantOk: true,
		},
		{
			name:   "priority_order",
			html:   `<div class="text-message"><span class="timestamp">09:00</span><span class="message-time">10:20</span></div>`,
			want:   "10:20",
			wantOk: true,
		},
		{
			name:   "empty_label_skipped",
			html:   `<div class="text-message"><span class="message-time"> </span><span class="send-time">昨天</span></div>`,
			want:   "昨天",
			wantOk: true,
		},
		{
			name:   "sibling",
			html:   `<div><div class="meta"><span class="chat-time">5分钟前</span></div><div class="text-message">hi</div></div>`,
			want:   "5分钟前",
			wantOk: true,
		},
		{
			name:   "sibling_is_label",
			html:   `<div><div class="text-message">hi</div><div class="send-time">11:05</div></div>`,
			want:   "11:05",
			wantOk: true,
		},
		{
			name:   "sibling_text_node",
			html:   `<div><div class="text-message">hi</div> 客服小李。08:45 </div>`,
			want:   "08:45",
			wantOk: true,
		},
		{
			name:   "own_text_label",
			html:   `<div><div class="text-message">客服小李。08:45</div></div>`,
			want:   "08:45",
			wantOk: true,
		},
		{
			name:   "nothing",
			html:   `<div><div class="text-message">hello</div></div>`,
			wantOk: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node := parseNode(t, tt.html, ".text-message")
			got, ok := Find(node)
			assert.Equal(t, tt.wantOk, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
