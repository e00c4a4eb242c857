// Package dom queries serialized page snapshots. Nested isolated sub-trees
// (shadow roots) arrive as declarative <template shadowrootmode> children of
// their host and are searched like the live page would be.
package dom

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sandevgo/verve/internal/core"
	"golang.org/x/net/html"
)

// SubRoots returns the isolated sub-roots directly reachable from root,
// not counting roots nested inside another sub-root.
type SubRoots func(root *html.Node) []*html.Node

type Document struct {
	URL     string
	Visible bool
	doc     *goquery.Document
	roots   SubRoots
}

func Parse(url, source string) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &Document{URL: url, Visible: true, doc: doc, roots: ShadowRoots}, nil
}

func FromSnapshot(s core.Snapshot) (*Document, error) {
	d, err := Parse(s.URL, s.HTML)
	if err != nil {
		return nil, err
	}
	d.Visible = s.Visible
	return d, nil
}

func (d *Document) Selection() *goquery.Selection {
	return d.doc.Selection
}

// FindAll is the deep query over the whole document.
func (d *Document) FindAll(selector string) []*goquery.Selection {
	return FindAll(d.doc.Selection, selector, d.roots)
}

// First returns the first deep match of selector.
func (d *Document) First(selector string) (*goquery.Selection, bool) {
	all := d.FindAll(selector)
	if len(all) == 0 {
		return nil, false
	}
	return all[0], true
}

func (d *Document) Exists(selector string) bool {
	_, ok := d.First(selector)
	return ok
}

// FindAll returns the matches of selector in every node of scope, followed by
// the matches inside each sub-root, depth first. A failing query contributes
// nothing.
func FindAll(scope *goquery.Selection, selector string, roots SubRoots) []*goquery.Selection {
	if roots == nil {
		roots = ShadowRoots
	}

	var out []*goquery.Selection
	for _, n := range scope.Nodes {
		out = append(out, findIn(n, selector, roots)...)
	}
	return out
}

func findIn(root *html.Node, selector string, roots SubRoots) []*goquery.Selection {
	nested := roots(root)
	boundary := make(map[*html.Node]struct{}, len(nested))
	for _, r := range nested {
		boundary[r] = struct{}{}
	}

	var out []*goquery.Selection
	for _, m := range query(root, selector) {
		if insideBoundary(m, root, boundary) {
			continue
		}
		out = append(out, m)
	}

	for _, r := range nested {
		out = append(out, findIn(r, selector, roots)...)
	}
	return out
}

func query(root *html.Node, selector string) (out []*goquery.Selection) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()

	matches := goquery.NewDocumentFromNode(root).Find(selector)
	out = make([]*goquery.Selection, 0, matches.Length())
	matches.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

func insideBoundary(sel *goquery.Selection, root *html.Node, boundary map[*html.Node]struct{}) bool {
	if len(boundary) == 0 || len(sel.Nodes) == 0 {
		return false
	}
	for p := sel.Nodes[0].Parent; p != nil && p != root; p = p.Parent {
		if _, ok := boundary[p]; ok {
			return true
		}
	}
	return false
}

// ShadowRoots finds serialized shadow roots below root.
func ShadowRoots(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if isShadowTemplate(c) {
				out = append(out, c)
				continue
			}
			walk(c)
		}
	}
	walk(root)
	return out
}

func isShadowTemplate(n *html.Node) bool {
	if n.Type != html.ElementNode || n.Data != "template" {
		return false
	}
	for _, a := range n.Attr {
		if a.Key == "shadowrootmode" || a.Key == "shadowroot" {
			return true
		}
	}
	return false
}

// Text is the trimmed text content of the first node in sel.
func Text(sel *goquery.Selection) string {
	if sel == nil || sel.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(sel.First().Text())
}

// HasClass reports whether the first node in sel carries class name.
func HasClass(sel *goquery.Selection, name string) bool {
	return sel != nil && sel.HasClass(name)
}
