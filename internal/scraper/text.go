package scraper

import (
	"net/url"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
)

// cleanText collapses every whitespace run to a single space.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// idFromHref returns the last non-empty path segment of href, or href itself.
func idFromHref(href string) string {
	p := href
	if u, err := url.Parse(href); err == nil && u.Path != "" {
		p = u.Path
	}
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	if p == "" {
		return href
	}
	return p
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// htmlToText converts an HTML fragment to Markdown with links resolved
// against pageURL. A failed conversion falls back to the fragment's text.
func htmlToText(html, pageURL, fallback string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}
	out, err := mdConverter.ConvertString(html, converter.WithDomain(pageURL))
	if err != nil || strings.TrimSpace(out) == "" {
		return strings.TrimSpace(fallback)
	}
	return strings.TrimSpace(out)
}
