package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
)

// FullText downloads an article page and extracts its readable text.
type FullText struct {
	client    *http.Client
	userAgent string
}

// NewFullText builds a fetcher with the given timeout.
func NewFullText(client *http.Client, timeout time.Duration, userAgent string) *FullText {
	return &FullText{client: httpClient(client, timeout), userAgent: userAgent}
}

// Fetch returns the main text of the page at pageURL.
func (f *FullText) Fetch(ctx context.Context, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("bad url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &statusError{url: pageURL, status: resp.Status}
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return strings.TrimSpace(article.TextContent), nil
}
