// Package extract pulls the relevant text out of an edital page.
package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/JakeFAU/edital-monitor/internal/monitor"
)

// DefaultSelectors lists the containers that usually hold edital content.
var DefaultSelectors = []string{
	"div.content",
	"div.edital",
	"div.resultado",
	"div.main-content",
	"table",
	"section.content",
	"article",
	`div[class*="content"]`,
	`div[id*="content"]`,
}

// Extractor implements monitor.Extractor with CSS selectors.
type Extractor struct {
	selectors []string
}

// New builds an Extractor. With no selectors it uses DefaultSelectors.
func New(selectors ...string) *Extractor {
	if len(selectors) == 0 {
		selectors = DefaultSelectors
	}
	return &Extractor{selectors: append([]string(nil), selectors...)}
}

// Selectors returns the selectors in evaluation order.
func (e *Extractor) Selectors() []string {
	return append([]string(nil), e.selectors...)
}

// Extract returns the stripped text of every element matched by any
// selector, in selector order then document order, joined by single spaces.
// When nothing matches it returns the stripped text of <body>.
func (e *Extractor) Extract(raw []byte) (string, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", &monitor.ParseError{Reason: "empty document"}
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return "", &monitor.ParseError{Reason: "invalid markup", Err: err}
	}

	var parts []string
	for _, sel := range e.selectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			parts = append(parts, StrippedText(s))
		})
	}
	if len(parts) > 0 {
		return strings.Join(parts, " "), nil
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return "", &monitor.ParseError{Reason: "document has no body"}
	}
	return StrippedText(body), nil
}

// StrippedText concatenates every visible text node under the selection,
// each trimmed, with empty ones dropped and no separator between them.
// Script, style, template and noscript contents and comments are skipped.
func StrippedText(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		writeStripped(&b, n)
	}
	return b.String()
}

func writeStripped(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.TrimSpace(n.Data))
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Template, atom.Noscript:
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeStripped(b, c)
	}
}

// Headings returns the stripped text of the first limit h1-h3 elements in
// document order. A limit <= 0 returns all of them.
func Headings(raw []byte, limit int) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, &monitor.ParseError{Reason: "invalid markup", Err: err}
	}
	out := []string{}
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if text := StrippedText(s); text != "" {
			out = append(out, text)
		}
		return limit <= 0 || len(out) < limit
	})
	return out, nil
}
