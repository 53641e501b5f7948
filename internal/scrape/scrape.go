// Package scrape collects candidate articles from RSS feeds, NewsAPI, Reddit
// and state DOT newsrooms.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ndta-news/pipeline/internal/models"
)

// ErrDisabled is returned by a source that is missing its configuration.
var ErrDisabled = errors.New("source disabled")

// Request carries the parameters of one scrape batch.
type Request struct {
	LookbackDays int
	Now          time.Time
}

// Cutoff is the oldest publish time still accepted.
func (r Request) Cutoff() time.Time {
	return r.Now.AddDate(0, 0, -r.LookbackDays)
}

// Source is one scraper implementation.
type Source interface {
	Name() string
	Scrape(ctx context.Context, req Request) ([]*models.Article, error)
}

// Tracker persists per-endpoint health across runs.
type Tracker interface {
	EnsureSource(ctx context.Context, kind, url, name string) (*models.Source, error)
	RecordFetch(ctx context.Context, src *models.Source, fetchErr error) error
	ListSources(ctx context.Context, kind string, activeOnly bool) ([]models.Source, error)
}

// Registry keeps the enabled sources in run order.
type Registry struct {
	sources []Source
}

// NewRegistry builds a registry from sources, skipping nil entries.
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{}
	for _, s := range sources {
		if s != nil {
			r.Register(s)
		}
	}
	return r
}

// Register appends a source.
func (r *Registry) Register(s Source) {
	r.sources = append(r.sources, s)
}

// Names lists the registered sources.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// ScrapeAll runs every source in order. A failing source is logged and
// skipped; the counts map holds the number of articles each one returned.
func (r *Registry) ScrapeAll(ctx context.Context, req Request) ([]*models.Article, map[string]int) {
	var all []*models.Article
	counts := make(map[string]int, len(r.sources))
	for _, s := range r.sources {
		if ctx.Err() != nil {
			break
		}
		articles, err := s.Scrape(ctx, req)
		if err != nil {
			if errors.Is(err, ErrDisabled) {
				log.Warn().Str("source", s.Name()).Msg("Source disabled, skipping")
			} else {
				log.Error().Err(err).Str("source", s.Name()).Msg("Source failed")
			}
		}
		counts[s.Name()] = len(articles)
		log.Info().Str("source", s.Name()).Int("articles", len(articles)).Msg("Source scraped")
		all = append(all, articles...)
	}
	return all, counts
}

// pacer returns a limiter allowing one call every delay. Zero disables it.
func pacer(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

func httpClient(c *http.Client, timeout time.Duration) *http.Client {
	if c != nil {
		return c
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// statusError is an unexpected HTTP status. Its message carries the code so
// that source health tracking can spot rate limiting.
type statusError struct {
	url    string
	status string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned %s", e.url, e.status)
}

func newArticle(req Request, kind models.SourceType, title, url, source, summary string, published time.Time) *models.Article {
	return &models.Article{
		Title:         title,
		URL:           url,
		Source:        source,
		SourceType:    kind,
		Summary:       summary,
		PublishedDate: published,
		ScrapedAt:     req.Now.UTC(),
	}
}
