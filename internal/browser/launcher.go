package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// StaticLauncher opens StaticPage sessions. Each Launch calls New so every
// attempt gets its own document.
type StaticLauncher struct {
	New func(ctx context.Context) (*StaticPage, error)

	mu       sync.Mutex
	sessions []*StaticPage
}

// NewFetchLauncher returns a StaticLauncher whose pages load documents with fetch.
func NewFetchLauncher(fetch Fetcher, opts ...StaticOption) *StaticLauncher {
	return &StaticLauncher{
		New: func(ctx context.Context) (*StaticPage, error) {
			return NewStaticPage("about:blank", "<html><body></body></html>", append([]StaticOption{WithFetcher(fetch)}, opts...)...)
		},
	}
}

// FixtureLauncher serves markup keyed by URL; unknown URLs fail to load.
func FixtureLauncher(pages map[string]string, opts ...StaticOption) *StaticLauncher {
	return NewFetchLauncher(func(ctx context.Context, url string) (string, error) {
		markup, ok := pages[url]
		if !ok {
			return "", fmt.Errorf("no fixture for %s", url)
		}
		return markup, nil
	}, opts...)
}

func (l *StaticLauncher) Launch(ctx context.Context) (Session, error) {
	p, err := l.New(ctx)
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.sessions = append(l.sessions, p)
	l.mu.Unlock()
	return p, nil
}

// Sessions returns every page launched so far.
func (l *StaticLauncher) Sessions() []*StaticPage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*StaticPage(nil), l.sessions...)
}

// HTTPFetcher loads documents with a plain GET. Pages that render their
// form client side will come back mostly empty.
func HTTPFetcher(client *http.Client) Fetcher {
	return func(ctx context.Context, url string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		req.Header.Set("User-Agent", defaultUserAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
		if err != nil {
			return "", err
		}
		return string(body), nil
	}
}
