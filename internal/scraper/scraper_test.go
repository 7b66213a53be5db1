package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	logx "duyurubot/pkg/logx"
)

const listPage = `<html><body>
<div id="liste-gorunum"><table><tbody>
<tr><td> 05.03.2025 </td><td><a href="/bilgisayar/Icerik/Detay/1003">  Vize
   Programı </a></td></tr>
<tr><td>04.03.2025</td><td><a href="https://www.example.edu/bilgisayar/Icerik/Detay/1002/">Staj Duyurusu</a></td></tr>
<tr><td>03.03.2025</td><td>no link here</td></tr>
<tr><td>only one cell</td></tr>
<tr><td>02.03.2025</td><td><a href="">empty href</a></td></tr>
<tr><td>01.03.2025</td><td><a href="/bilgisayar/Icerik/Detay/1001">Kayıt</a></td></tr>
</tbody></table></div>
</body></html>`

func testFetcher() *Fetcher {
	return NewFetcher(FetcherConfig{Timeout: 5 * time.Second, MaxRetries: 2, RetryDelay: time.Millisecond}, logx.Nop())
}

func TestBSEUListParse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listPage)
	}))
	defer srv.Close()

	f := testFetcher()
	defer f.Close()
	src, err := NewBSEUList(SiteConfig{Name: "t", URL: srv.URL + "/bilgisayar/arama/4", Kind: KindBSEUList}, f)
	if err != nil {
		t.Fatalf("NewBSEUList: %v", err)
	}
	got, err := src.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}

	want := []Candidate{
		{ID: "1003", Title: "Vize Programı", URL: srv.URL + "/bilgisayar/Icerik/Detay/1003", Date: "05.03.2025"},
		{ID: "1002", Title: "Staj Duyurusu", URL: "https://www.example.edu/bilgisayar/Icerik/Detay/1002/", Date: "04.03.2025"},
		{ID: "1001", Title: "Kayıt", URL: srv.URL + "/bilgisayar/Icerik/Detay/1001", Date: "01.03.2025"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%+v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBSEUListMissingListView(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>maintenance</p></body></html>")
	}))
	defer srv.Close()

	src, _ := NewBSEUList(SiteConfig{Name: "t", URL: srv.URL}, testFetcher())
	got, err := src.FetchCandidates(context.Background())
	if err == nil {
		t.Fatalf("FetchCandidates err = nil, want error (got %+v)", got)
	}
	if len(got) != 0 {
		t.Fatalf("len = %d, want 0", len(got))
	}
}

func TestBSEUDetail(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/nested": `<div class="icerik-govde"><h1>outer</h1><div class="icerik-govde"><p>Inner <b>body</b></p></div></div>`,
		"/outer":  `<div class="icerik-govde"><p>Only outer</p></div>`,
		"/none":   `<div class="other"><p>nothing</p></div>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, "<html><body>%s</body></html>", body)
	}))
	defer srv.Close()

	src, _ := NewBSEUList(SiteConfig{Name: "t", URL: srv.URL}, testFetcher())
	tests := []struct {
		path    string
		want    string
		notWant string
	}{
		{"/nested", "Inner **body**", "outer"},
		{"/outer", "Only outer", ""},
		{"/none", "", ""},
	}
	for _, tt := range tests {
		got, err := src.FetchDetail(context.Background(), srv.URL+tt.path)
		if err != nil {
			t.Fatalf("FetchDetail(%s): %v", tt.path, err)
		}
		if tt.want == "" && got != "" {
			t.Fatalf("FetchDetail(%s) = %q, want empty", tt.path, got)
		}
		if !strings.Contains(got, tt.want) {
			t.Fatalf("FetchDetail(%s) = %q, want it to contain %q", tt.path, got, tt.want)
		}
		if tt.notWant != "" && strings.Contains(got, tt.notWant) {
			t.Fatalf("FetchDetail(%s) = %q, must not contain %q", tt.path, got, tt.notWant)
		}
	}

	if _, err := src.FetchDetail(context.Background(), srv.URL+"/missing"); err == nil {
		t.Fatal("FetchDetail(404) err = nil, want error")
	}
}

const feed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>Feed</title>
<item><title>Older</title><link>%[1]s/a/1</link><guid>g-1</guid><pubDate>Mon, 03 Mar 2025 10:00:00 +0300</pubDate><description>&lt;p&gt;first &lt;script&gt;alert(1)&lt;/script&gt;&lt;/p&gt;</description></item>
<item><title>Newer</title><link>%[1]s/a/2</link><pubDate>Wed, 05 Mar 2025 10:00:00 +0300</pubDate></item>
</channel></rss>`

func TestRSS(t *testing.T) {
	t.Parallel()

	var srvURL string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed":
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, feed, srvURL)
		case "/a/2":
			fmt.Fprint(w, "<html><body><article><p>page body</p></article></body></html>")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	srvURL = srv.URL

	src, err := NewRSS(SiteConfig{Name: "r", URL: srv.URL + "/feed", Kind: KindRSS}, testFetcher())
	if err != nil {
		t.Fatalf("NewRSS: %v", err)
	}
	got, err := src.FetchCandidates(context.Background())
	if err != nil {
		t.Fatalf("FetchCandidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].Title != "Newer" || got[0].ID != srv.URL+"/a/2" || got[0].Date != "05.03.2025" {
		t.Fatalf("got[0] = %+v", got[0])
	}
	if got[1].ID != "g-1" {
		t.Fatalf("got[1].ID = %q, want g-1", got[1].ID)
	}

	body, err := src.FetchDetail(context.Background(), srv.URL+"/a/1")
	if err != nil {
		t.Fatalf("FetchDetail: %v", err)
	}
	if !strings.Contains(body, "first") || strings.Contains(body, "alert") {
		t.Fatalf("FetchDetail(feed body) = %q", body)
	}

	body, err = src.FetchDetail(context.Background(), srv.URL+"/a/2")
	if err != nil {
		t.Fatalf("FetchDetail(page): %v", err)
	}
	if !strings.Contains(body, "page body") {
		t.Fatalf("FetchDetail(page) = %q", body)
	}
}

func TestFetcherRetries(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		statuses []int
		wantErr  bool
		wantHits int32
	}{
		{"ok", []int{200}, false, 1},
		{"recovers after 5xx", []int{503, 500, 200}, false, 3},
		{"gives up after retries", []int{500, 500, 500, 500}, true, 3},
		{"no retry on 404", []int{404, 200}, true, 1},
		{"retry on 429", []int{429, 200}, false, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var hits atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := int(hits.Add(1)) - 1
				code := tt.statuses[min(n, len(tt.statuses)-1)]
				w.WriteHeader(code)
				fmt.Fprint(w, "x")
			}))
			defer srv.Close()

			_, err := testFetcher().Get(context.Background(), srv.URL)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Get err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := hits.Load(); got != tt.wantHits {
				t.Fatalf("hits = %d, want %d", got, tt.wantHits)
			}
		})
	}
}

func TestHTTPStatusErrorRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		code int
		want bool
	}{
		{400, false},
		{403, false},
		{404, false},
		{408, true},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tt := range tests {
		if got := (&HTTPStatusError{Code: tt.code}).Retryable(); got != tt.want {
			t.Fatalf("Retryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()
	r := DefaultRegistry()
	if !r.Has("BSEU_LIST") || !r.Has(KindRSS) {
		t.Fatalf("Kinds = %v", r.Kinds())
	}
	if err := r.Register(KindRSS, NewRSS); err == nil {
		t.Fatal("duplicate Register succeeded")
	}
	if _, err := r.Build(SiteConfig{Name: "x", URL: "https://x.test", Kind: "nope"}, testFetcher()); err == nil {
		t.Fatal("Build(unknown kind) succeeded")
	}
	if _, err := r.Build(SiteConfig{Name: "x", URL: "not a url", Kind: KindBSEUList}, testFetcher()); err == nil {
		t.Fatal("Build(bad url) succeeded")
	}
}

func TestIDFromHref(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"/bilgisayar/Icerik/Detay/123":      "123",
		"/bilgisayar/Icerik/Detay/123/":     "123",
		"https://x.test/a/b/slug-name?id=4": "slug-name",
		"plain":                             "plain",
	}
	for in, want := range tests {
		if got := idFromHref(in); got != want {
			t.Fatalf("idFromHref(%q) = %q, want %q", in, got, want)
		}
	}
}
