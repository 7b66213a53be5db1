package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const KindBSEUList = "bseu_list"

// bseuList scrapes the "list view" announcement pages of bilecik.edu.tr
// faculties (".../arama/4").
type bseuList struct {
	name    string
	listURL string
	base    *url.URL
	fetch   *Fetcher
}

func NewBSEUList(site SiteConfig, f *Fetcher) (Source, error) {
	if f == nil {
		return nil, errors.New("nil fetcher")
	}
	u, err := url.Parse(strings.TrimSpace(site.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", site.URL)
	}
	return &bseuList{name: site.Name, listURL: u.String(), base: u, fetch: f}, nil
}

func (s *bseuList) FetchCandidates(ctx context.Context) ([]Candidate, error) {
	body, err := s.fetch.Get(ctx, s.listURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scraper: parse %s: %w", s.listURL, err)
	}
	return parseBSEUList(doc, s.base)
}

// parseBSEUList reads rows of div#liste-gorunum: date in the first cell,
// title link in the second.
func parseBSEUList(doc *goquery.Document, base *url.URL) ([]Candidate, error) {
	list := doc.Find("div#liste-gorunum")
	if list.Length() == 0 {
		return nil, errors.New("scraper: list view not found")
	}
	rows := list.Find("tbody tr")

	out := make([]Candidate, 0, rows.Length())
	rows.Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 2 {
			return
		}
		link := cells.Eq(1).Find("a").First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		title := cleanText(link.Text())
		if href == "" || title == "" {
			return
		}
		out = append(out, Candidate{
			ID:    idFromHref(href),
			Title: title,
			URL:   resolveURL(base, href),
			Date:  cleanText(cells.Eq(0).Text()),
		})
	})
	return out, nil
}

func (s *bseuList) FetchDetail(ctx context.Context, pageURL string) (string, error) {
	body, err := s.fetch.Get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("scraper: parse %s: %w", pageURL, err)
	}
	return bseuDetail(doc, pageURL), nil
}

// bseuDetail prefers the nested content body and falls back to the outer one.
func bseuDetail(doc *goquery.Document, pageURL string) string {
	sel := doc.Find("div.icerik-govde div.icerik-govde").First()
	if sel.Length() == 0 {
		sel = doc.Find("div.icerik-govde").First()
	}
	if sel.Length() == 0 {
		return ""
	}
	html, err := goquery.OuterHtml(sel)
	if err != nil {
		return cleanText(sel.Text())
	}
	return htmlToText(html, pageURL, sel.Text())
}
