// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package page pulls links, titles and bulletin text out of the HTML served
// by the national and provincial health commissions.
package page

import (
	"bytes"
	"net/url"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrMissingElement is returned when a page lacks the element that holds
// the wanted content. Challenge and error pages usually end up here.
var ErrMissingElement = eris.New("expected element not found")

// Link is one entry of a bulletin index.
type Link struct {
	URL   string
	Title string
}

// ParseIndex returns the links of the bulletin list on an index page, in
// page order. Relative hrefs are resolved against base.
func ParseIndex(doc []byte, base string) ([]Link, error) {
	root, err := parse(doc)
	if err != nil {
		return nil, err
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, eris.Wrapf(err, "parsing base url %q", base)
	}

	list := find(root, func(n *html.Node) bool { return hasClass(n, "list") })
	if list == nil {
		return nil, eris.Wrap(ErrMissingElement, ".list")
	}

	var links []Link
	walk(list, func(n *html.Node) bool {
		if n.DataAtom != atom.A || n.Parent == nil || n.Parent.DataAtom != atom.Li {
			return true
		}
		href := attr(n, "href")
		if href == "" {
			return false
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return false
		}
		title := strings.TrimSpace(attr(n, "title"))
		if title == "" {
			title = strings.TrimSpace(text(n))
		}
		links = append(links, Link{URL: baseURL.ResolveReference(ref).String(), Title: title})
		return false
	})
	return links, nil
}

// ParseNational returns the title and body text of a national bulletin.
// The share widget and the right-aligned signature footer are dropped from
// the body.
func ParseNational(doc []byte) (title, body string, err error) {
	root, err := parse(doc)
	if err != nil {
		return "", "", err
	}

	t := find(root, func(n *html.Node) bool { return hasClass(n, "tit") })
	if t == nil {
		return "", "", eris.Wrap(ErrMissingElement, ".tit")
	}
	box := find(root, func(n *html.Node) bool { return attr(n, "id") == "xw_box" })
	if box == nil {
		return "", "", eris.Wrap(ErrMissingElement, "#xw_box")
	}

	skip := func(n *html.Node) bool {
		if hasClass(n, "fx") {
			return true
		}
		return n.DataAtom == atom.P && rightAligned(attr(n, "style"))
	}
	return strings.TrimSpace(text(t)), blockText(box, skip), nil
}

// ParseProvincial returns the body text of a provincial bulletin.
func ParseProvincial(doc []byte) (string, error) {
	root, err := parse(doc)
	if err != nil {
		return "", err
	}
	box := find(root, func(n *html.Node) bool { return attr(n, "id") == "article-box" })
	if box == nil {
		return "", eris.Wrap(ErrMissingElement, "#article-box")
	}
	return blockText(box, nil), nil
}

func parse(doc []byte) (*html.Node, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, eris.Wrap(err, "parsing html")
	}
	return root, nil
}

// walk visits n and its descendants depth first. fn returns false to skip
// the children of the node it was given.
func walk(n *html.Node, fn func(*html.Node) bool) {
	if n.Type == html.ElementNode && !fn(n) {
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func find(root *html.Node, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(root, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if match(n) {
			found = n
			return false
		}
		return true
	})
	return found
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func rightAligned(style string) bool {
	s := strings.ToLower(strings.Join(strings.Fields(style), ""))
	return strings.Contains(s, "text-align:right")
}

// text concatenates the text nodes under n.
func text(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Br: true, atom.Li: true, atom.Tr: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Section: true, atom.Article: true, atom.Table: true,
}

// blockText renders the text under n with a line break after every block
// element, so that each paragraph of a bulletin is on its own line. Blank
// lines and trailing spaces are dropped. Subtrees matching skip are left
// out.
func blockText(n *html.Node, skip func(*html.Node) bool) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			sb.WriteString(node.Data)
			return
		case html.ElementNode:
			if skip != nil && skip(node) {
				return
			}
			if node.DataAtom == atom.Script || node.DataAtom == atom.Style {
				return
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
		if node.Type == html.ElementNode && blocks[node.DataAtom] {
			sb.WriteByte('\n')
		}
	}
	visit(n)

	var lines []string
	for _, line := range strings.Split(sb.String(), "\n") {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
