package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const facePrefix = "cc_face_"

var faces = map[string]string{
	"cc_face_1":  "[微笑]",
	"cc_face_2":  "[撇嘴]",
	"cc_face_3":  "[色]",
	"cc_face_4":  "[发呆]",
	"cc_face_5":  "[得意]",
	"cc_face_6":  "[流泪]",
	"cc_face_7":  "[害羞]",
	"cc_face_8":  "[闭嘴]",
	"cc_face_9":  "[睡]",
	"cc_face_10": "[大哭]",
	"cc_face_11": "[尴尬]",
	"cc_face_12": "[发怒]",
	"cc_face_13": "[调皮]",
	"cc_face_14": "[呲牙]",
	"cc_face_15": "[惊讶]",
	"cc_face_16": "[难过]",
	"cc_face_17": "[酷]",
	"cc_face_18": "[冷汗]",
	"cc_face_19": "[抓狂]",
	"cc_face_20": "[吐]",
	"cc_face_21": "[偷笑]",
	"cc_face_22": "[愉快]",
	"cc_face_23": "[白眼]",
	"cc_face_24": "[傲慢]",
	"cc_face_25": "[饥饿]",
	"cc_face_26": "[困]",
	"cc_face_27": "[惊恐]",
	"cc_face_28": "[流汗]",
	"cc_face_29": "[憨笑]",
	"cc_face_30": "[悠闲]",
	"cc_face_67": "[爱心]",
	"cc_face_90": "[OK]",
}

// Face returns the text label of an emoji image class.
func Face(class string) (string, bool) {
	label, ok := faces[class]
	return label, ok
}

// MessageContent flattens a message node into text. Text nodes are trimmed
// and concatenated; emoji images (class "face" plus "cc_face_N") become their
// bracketed label. Unknown faces are dropped.
func MessageContent(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(strings.TrimSpace(n.Data))
		case html.ElementNode:
			classes := classList(n)
			if containsToken(classes, "face") {
				for _, c := range classes {
					if !strings.HasPrefix(c, facePrefix) {
						continue
					}
					if label, ok := faces[c]; ok {
						b.WriteString(label)
					}
					break
				}
				return
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
	}
	walk(sel.Nodes[0])

	return strings.TrimSpace(b.String())
}

// ClassContains reports whether the class attribute of the first node
// contains s as a substring.
func ClassContains(sel *goquery.Selection, s string) bool {
	if sel == nil || sel.Length() == 0 {
		return false
	}
	class, _ := sel.First().Attr("class")
	return strings.Contains(class, s)
}

func classList(n *html.Node) []string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return strings.Fields(a.Val)
		}
	}
	return nil
}

func containsToken(tokens []string, want string) bool {
	for _, t := range tokens {
		if t == want {
			return true
		}
	}
	return false
}

// FaceClass formats the class of emoji number n.
func FaceClass(n int) string {
	return fmt.Sprintf("%s%d", facePrefix, n)
}
