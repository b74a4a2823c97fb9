package extractor

import (
	"bytes"
	"encoding/csv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/mohammad-safakhou/quizsolver/internal/helpers"
)

type anchor struct {
	Text string
	Href string
}

// dataBlock is inline data found on the page: a <pre>/<code> block or a
// <table> rendered as CSV. Probe is the text used to locate the block inside
// a question unit.
type dataBlock struct {
	Data  string
	Probe string
}

type document struct {
	anchors []anchor
	blocks  []dataBlock
	text    string
}

func parseDocument(raw, baseURL string) document {
	var doc document
	if strings.TrimSpace(raw) == "" {
		return doc
	}
	root, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return doc
	}
	var sb strings.Builder
	walk(root, baseURL, &doc, &sb)
	doc.text = sb.String()
	return doc
}

func walk(n *html.Node, baseURL string, doc *document, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Head:
			return
		case atom.A:
			if href := getAttr(n, "href"); href != "" {
				if abs, err := helpers.ResolveURL(baseURL, href); err == nil {
					doc.anchors = append(doc.anchors, anchor{Text: collapse(textOf(n)), Href: abs})
				}
			}
		case atom.Pre:
			if data := strings.TrimSpace(textOf(n)); data != "" {
				doc.blocks = append(doc.blocks, dataBlock{Data: data, Probe: firstLine(data)})
			}
		case atom.Code:
			// inline <code> inside <pre> is covered by the pre block
			if n.Parent == nil || n.Parent.DataAtom != atom.Pre {
				if data := strings.TrimSpace(textOf(n)); strings.Contains(data, "\n") {
					doc.blocks = append(doc.blocks, dataBlock{Data: data, Probe: firstLine(data)})
				}
			}
		case atom.Table:
			if data, probe := tableCSV(n); data != "" {
				doc.blocks = append(doc.blocks, dataBlock{Data: data, Probe: probe})
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, baseURL, doc, sb)
	}
	if n.Type == html.ElementNode && isBlock(n.DataAtom) {
		sb.WriteByte('\n')
	}
}

func tableCSV(table *html.Node) (string, string) {
	var rows [][]string
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Tr {
			var row []string
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
					row = append(row, collapse(textOf(c)))
				}
			}
			if len(row) > 0 {
				rows = append(rows, row)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(table)
	if len(rows) == 0 {
		return "", ""
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return "", ""
	}
	return strings.TrimSpace(buf.String()), rows[0][0]
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			return
		}
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Br {
			sb.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return sb.String()
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.Tr, atom.H1, atom.H2, atom.H3, atom.H4,
		atom.H5, atom.H6, atom.Pre, atom.Section, atom.Article, atom.Table, atom.Ul, atom.Ol,
		atom.Blockquote, atom.Form, atom.Header, atom.Footer:
		return true
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
