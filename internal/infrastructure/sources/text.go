package sources

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var whitespaceExpr = regexp.MustCompile(`\s+`)

// stripMarkup drops tags, decodes entities and collapses whitespace.
func stripMarkup(input string) string {
	if !strings.ContainsAny(input, "<&") {
		return normalizeWhitespace(input)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return normalizeWhitespace(input)
	}

	var parts []string
	for _, node := range doc.Selection.Nodes {
		collectText(node, &parts)
	}
	return normalizeWhitespace(strings.Join(parts, " "))
}

func collectText(node *html.Node, parts *[]string) {
	if node.Type == html.ElementNode && (node.Data == "script" || node.Data == "style") {
		return
	}
	if node.Type == html.TextNode {
		*parts = append(*parts, node.Data)
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}

func normalizeWhitespace(value string) string {
	return strings.TrimSpace(whitespaceExpr.ReplaceAllString(value, " "))
}

// resolveLink makes link absolute against base; unparsable input is returned trimmed.
func resolveLink(link, base string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return link
	}
	return baseURL.ResolveReference(ref).String()
}
