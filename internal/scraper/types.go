// Package scraper turns a site's listing page into an ordered list of candidate
// announcements and an announcement's detail page into a content blob.
//
// Each site kind is a Source built by a Factory registered under a kind tag.
// All sources share one Fetcher so headers, retries and politeness delays are
// applied uniformly.
package scraper

import "context"

// Candidate is one announcement as listed by the source. Lists are newest-first.
type Candidate struct {
	ID    string
	Title string
	URL   string
	Date  string
}

// Source is the per-site scraping contract.
type Source interface {
	// FetchCandidates returns the listing newest-first. An empty list is valid.
	FetchCandidates(ctx context.Context) ([]Candidate, error)
	// FetchDetail returns the content used for change detection. "" with a nil
	// error means the page has no recognizable content.
	FetchDetail(ctx context.Context, url string) (string, error)
}

// SiteConfig is what a Factory needs to build a Source.
type SiteConfig struct {
	Name string
	URL  string
	Kind string
}
