package dom

import (
	"regexp"
	"strings"
)

var (
	localityPrefix  = regexp.MustCompile(`^.+?\s*-\s*`)
	spaceBeforeOpen = regexp.MustCompile(`\s+\(`)
	fullWidthGroup  = regexp.MustCompile(`（([^）]+)）`)
	whitespace      = regexp.MustCompile(`\s`)
)

// FormatShopName normalizes a raw shop label such as
// "上海 - 某某店 (徐汇 店)" into "某某店（徐汇店）".
func FormatShopName(raw string) string {
	if raw == "" {
		return ""
	}

	name := localityPrefix.ReplaceAllString(raw, "")
	if loc := spaceBeforeOpen.FindStringIndex(name); loc != nil {
		name = name[:loc[0]] + "(" + name[loc[1]:]
	}
	name = strings.NewReplacer("(", "（", ")", "）").Replace(name)
	name = fullWidthGroup.ReplaceAllStringFunc(name, func(group string) string {
		inner := strings.TrimSuffix(strings.TrimPrefix(group, "（"), "）")
		return "（" + whitespace.ReplaceAllString(inner, "") + "）"
	})

	return strings.TrimSpace(name)
}
