package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const KindRSS = "rss"

const rssDateLayout = "02.01.2006"

// rssSource reads an RSS/Atom/JSON feed. Item bodies seen in the last listing
// are kept so FetchDetail usually needs no extra request.
type rssSource struct {
	name    string
	feedURL string
	fetch   *Fetcher
	policy  *bluemonday.Policy

	mu     sync.Mutex
	bodies map[string]string // item link -> html
}

func NewRSS(site SiteConfig, f *Fetcher) (Source, error) {
	if f == nil {
		return nil, errors.New("nil fetcher")
	}
	u, err := url.Parse(strings.TrimSpace(site.URL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid url %q", site.URL)
	}
	return &rssSource{
		name:    site.Name,
		feedURL: u.String(),
		fetch:   f,
		policy:  bluemonday.UGCPolicy(),
		bodies:  map[string]string{},
	}, nil
}

func (s *rssSource) FetchCandidates(ctx context.Context) ([]Candidate, error) {
	body, err := s.fetch.Get(ctx, s.feedURL)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("scraper: parse feed %s: %w", s.feedURL, err)
	}

	items := append([]*gofeed.Item(nil), feed.Items...)
	if allDated(items) {
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].PublishedParsed.After(*items[j].PublishedParsed)
		})
	}

	out := make([]Candidate, 0, len(items))
	bodies := make(map[string]string, len(items))
	for _, it := range items {
		if it == nil {
			continue
		}
		link := strings.TrimSpace(it.Link)
		id := strings.TrimSpace(it.GUID)
		if id == "" {
			id = link
		}
		title := cleanText(it.Title)
		if id == "" || title == "" {
			continue
		}
		var date string
		if it.PublishedParsed != nil {
			date = it.PublishedParsed.Format(rssDateLayout)
		} else if it.UpdatedParsed != nil {
			date = it.UpdatedParsed.Format(rssDateLayout)
		}
		out = append(out, Candidate{ID: id, Title: title, URL: link, Date: date})

		if html := firstNonBlank(it.Content, it.Description); html != "" && link != "" {
			bodies[link] = html
		}
	}

	s.mu.Lock()
	s.bodies = bodies
	s.mu.Unlock()
	return out, nil
}

func (s *rssSource) FetchDetail(ctx context.Context, pageURL string) (string, error) {
	s.mu.Lock()
	html, ok := s.bodies[pageURL]
	s.mu.Unlock()
	if ok {
		return htmlToText(s.policy.Sanitize(html), pageURL, ""), nil
	}

	body, err := s.fetch.Get(ctx, pageURL)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("scraper: parse %s: %w", pageURL, err)
	}
	for _, sel := range []string{"article", "main", "body"} {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		inner, err := node.Html()
		if err != nil {
			continue
		}
		return htmlToText(s.policy.Sanitize(inner), pageURL, node.Text()), nil
	}
	return "", nil
}

func allDated(items []*gofeed.Item) bool {
	if len(items) == 0 {
		return false
	}
	for _, it := range items {
		if it == nil || it.PublishedParsed == nil {
			return false
		}
	}
	return true
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
