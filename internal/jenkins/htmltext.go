package jenkins

import (
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const maxExcerptRunes = 300

// bodyExcerpt turns an error response body into a short single-line message.
// Jenkins answers most failures with a full HTML page; only its visible text is kept.
func bodyExcerpt(contentType string, body []byte) string {
	text := string(body)
	if strings.Contains(strings.ToLower(contentType), "text/html") || looksLikeHTML(text) {
		text = htmlText(text)
	}
	text = strings.Join(strings.Fields(text), " ")

	r := []rune(text)
	if len(r) > maxExcerptRunes {
		return string(r[:maxExcerptRunes]) + "…"
	}
	return text
}

func looksLikeHTML(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.HasPrefix(s, "<!doctype html") || strings.HasPrefix(s, "<html")
}

func htmlText(s string) string {
	doc, err := xhtml.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}

	var sb strings.Builder
	var walk func(n *xhtml.Node)
	walk = func(n *xhtml.Node) {
		if n.Type == xhtml.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Head:
				// <head> carries only the generic "Jenkins" title.
				return
			case atom.Br, atom.P, atom.Div, atom.H1, atom.H2, atom.H3, atom.Li, atom.Pre, atom.Tr:
				sb.WriteByte(' ')
			}
		}
		if n.Type == xhtml.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}
