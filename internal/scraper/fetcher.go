package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	logx "duyurubot/pkg/logx"

	"github.com/codeGROOVE-dev/retry"
)

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	maxBodyBytes     = 8 << 20
)

// FetcherConfig controls HTTP behaviour shared by every source.
type FetcherConfig struct {
	Timeout      time.Duration // per attempt; 0 means 30s
	MaxRetries   int           // retries after the first attempt
	RetryDelay   time.Duration // 0 means 5s
	RequestDelay time.Duration // wait before every request
	UserAgent    string
}

// HTTPStatusError is returned for non-2xx responses.
type HTTPStatusError struct {
	URL  string
	Code int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// Retryable reports whether another attempt could succeed.
// Client errors are final except request timeout and rate limiting.
func (e *HTTPStatusError) Retryable() bool {
	if e.Code == http.StatusRequestTimeout || e.Code == http.StatusTooManyRequests {
		return true
	}
	return e.Code < 400 || e.Code >= 500
}

// Fetcher is an HTTP client with browser-like headers and retries.
type Fetcher struct {
	client *http.Client
	cfg    FetcherConfig
	log    logx.Logger
}

func NewFetcher(cfg FetcherConfig, log logx.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		log:    log,
	}
}

// Get fetches url and returns the response body.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	jitter := max(f.cfg.RetryDelay/2, time.Millisecond)
	err := retry.Do(
		func() error {
			if err := sleepCtx(ctx, f.cfg.RequestDelay); err != nil {
				return retry.Unrecoverable(err)
			}
			b, err := f.once(ctx, url)
			if err != nil {
				return err
			}
			body = b
			return nil
		},
		retry.Attempts(uint(f.cfg.MaxRetries+1)),
		retry.Delay(f.cfg.RetryDelay),
		retry.MaxDelay(4*f.cfg.RetryDelay),
		retry.MaxJitter(jitter),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.log.Warn("fetch retry", logx.String("url", url), logx.Uint64("attempt", uint64(n)+1), logx.Err(err))
		}),
		retry.RetryIf(func(err error) bool {
			var se *HTTPStatusError
			if errors.As(err, &se) {
				return se.Retryable()
			}
			return ctx.Err() == nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("scraper: get %s: %w", url, err)
	}
	return body, nil
}

func (f *Fetcher) once(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	f.log.Debug("fetch done",
		logx.String("url", url),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &HTTPStatusError{URL: url, Code: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}

// Close releases idle keep-alive connections.
func (f *Fetcher) Close() {
	if f == nil {
		return
	}
	f.client.CloseIdleConnections()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
