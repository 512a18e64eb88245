package api

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// markupRe matches a closing tag of a common element or a line break. A bare
// "<" inside prose ("a<b", "<div> tag") does not count as markup.
var markupRe = regexp.MustCompile(`(?i)</(?:p|div|span|b|i|em|strong|u|a|li|ul|ol|td|tr|th|table|h[1-6]|blockquote|code|pre|sub|sup|small|mark|script|style)\s*>|<br\s*/?>`)

// normalizeSentence trims and collapses whitespace. Input pasted from a web
// page may carry markup or entities; when it does, only the text content is
// kept. Anything else keeps every character, with entities decoded.
func normalizeSentence(s string) string {
	switch {
	case markupRe.MatchString(s):
		if doc, err := html.Parse(strings.NewReader(s)); err == nil {
			s = textContent(doc)
		}
	case strings.Contains(s, "&"):
		s = html.UnescapeString(s)
	}
	return strings.Join(strings.Fields(s), " ")
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
		if n.Type == html.ElementNode && isBlock(n.Data) {
			buf.WriteByte(' ')
		}
	}
	extract(n)
	return buf.String()
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "br", "li", "td", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote":
		return true
	}
	return false
}
