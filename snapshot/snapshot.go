// Package snapshot implements the selector.Page surface on top of a
// parsed HTML string. It backs degraded offline extraction and lets
// selector logic run against fixture pages without a browser.
package snapshot

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/JJJJun123/boss-automation-sub000/selector"
)

// Page is a static DOM parsed from an HTML snapshot.
type Page struct {
	doc *goquery.Document
	url string
}

// Parse builds a Page from raw HTML.
func Parse(rawHTML string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &Page{doc: doc}, nil
}

// SetURL attaches the source URL the snapshot was captured from.
func (p *Page) SetURL(u string) { p.url = u }

// URL returns the source URL, or "" when unset.
func (p *Page) URL() string { return p.url }

// QueryAll runs a CSS selector against the whole document. Invalid
// selectors return an error rather than panicking, matching live-page
// behavior.
func (p *Page) QueryAll(sel string) ([]selector.Element, error) {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return wrap(p.doc.FindMatcher(m)), nil
}

func wrap(s *goquery.Selection) []selector.Element {
	out := make([]selector.Element, 0, s.Length())
	s.Each(func(_ int, node *goquery.Selection) {
		out = append(out, &element{sel: node})
	})
	return out
}

// element adapts one goquery selection node to selector.Element.
type element struct {
	sel *goquery.Selection
}

func (e *element) QueryAll(sel string) ([]selector.Element, error) {
	m, err := cascadia.Compile(sel)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", sel, err)
	}
	return wrap(e.sel.FindMatcher(m)), nil
}

// Text renders the node's text the way a browser's innerText would:
// block-level boundaries become newlines, runs of whitespace collapse.
func (e *element) Text() (string, error) {
	if len(e.sel.Nodes) == 0 {
		return "", nil
	}
	var b strings.Builder
	flatten(e.sel.Nodes[0], &b)
	return tidy(b.String()), nil
}

func (e *element) Attr(name string) (string, error) {
	v, _ := e.sel.Attr(name)
	return v, nil
}

// Visible approximates rendering: snapshots carry no layout, so only
// inline style display:none and the hidden attribute hide a node.
func (e *element) Visible() (bool, error) {
	if len(e.sel.Nodes) == 0 {
		return false, nil
	}
	if _, hidden := e.sel.Attr("hidden"); hidden {
		return false, nil
	}
	style, _ := e.sel.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
		return false, nil
	}
	return true, nil
}

// Box reports no layout; callers fall back to content-based dedup.
func (e *element) Box() (float64, float64, bool) {
	return 0, 0, false
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "div": true, "dl": true, "dt": true,
	"footer": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "li": true, "ol": true,
	"p": true, "section": true, "table": true, "tr": true, "ul": true,
}

func flatten(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		flatten(c, b)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		b.WriteByte('\n')
	}
}

// tidy collapses intra-line whitespace and drops empty lines while
// preserving line structure.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
