package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/reddot-watch/feedfetcher"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

// rssRelevance is the prior given to items of curated industry feeds.
const rssRelevance = 7

type feedItem struct {
	URL         string
	Headline    string
	Content     string
	PublishedAt time.Time
}

type fetchFunc func(ctx context.Context, url string, maxAge time.Duration) ([]feedItem, error)

// RSS scrapes the configured feeds plus any imported feed sources.
type RSS struct {
	feeds   []config.FeedConfig
	tracker Tracker
	limiter *rate.Limiter
	timeout time.Duration
	fetch   fetchFunc
}

// NewRSS builds the feed scraper. tracker may be nil.
func NewRSS(cfg *config.Config, tracker Tracker) *RSS {
	userAgent := cfg.Scraping.UserAgent
	return &RSS{
		feeds:   cfg.RSSFeeds,
		tracker: tracker,
		limiter: pacer(cfg.Pacing.RSSDelay),
		timeout: cfg.Scraping.RequestTimeout,
		fetch: func(ctx context.Context, url string, maxAge time.Duration) ([]feedItem, error) {
			fetcher := feedfetcher.NewFeedFetcher(feedfetcher.Config{
				UserAgent:            userAgent,
				RequestTimeout:       cfg.Scraping.RequestTimeout,
				MaxItems:             100,
				MaxHeadingLength:     300,
				MaxAge:               maxAge,
				FutureDriftTolerance: 12 * time.Hour,
			})
			items, err := fetcher.FetchAndProcess(ctx, url)
			if err != nil {
				return nil, err
			}
			out := make([]feedItem, 0, len(items))
			for _, it := range items {
				out = append(out, feedItem{URL: it.URL, Headline: it.Headline, Content: it.Content, PublishedAt: it.PublishedAt})
			}
			return out, nil
		},
	}
}

// Name implements Source.
func (r *RSS) Name() string { return string(models.SourceRSS) }

// Scrape fetches each feed in turn, pacing requests. Failed feeds are
// recorded and skipped.
func (r *RSS) Scrape(ctx context.Context, req Request) ([]*models.Article, error) {
	feeds := r.allFeeds(ctx)
	if len(feeds) == 0 {
		return nil, fmt.Errorf("%w: no RSS feeds configured", ErrDisabled)
	}

	maxAge := time.Duration(req.LookbackDays) * 24 * time.Hour
	var out []*models.Article
	for _, feed := range feeds {
		if err := r.limiter.Wait(ctx); err != nil {
			return out, err
		}
		articles, err := r.scrapeFeed(ctx, req, feed, maxAge)
		if err != nil {
			log.Error().Err(err).Str("feed", feed.Name).Str("url", feed.URL).Msg("Error fetching feed")
			continue
		}
		log.Info().Str("feed", feed.Name).Int("items", len(articles)).Msg("Feed processed")
		out = append(out, articles...)
	}
	return out, nil
}

func (r *RSS) scrapeFeed(ctx context.Context, req Request, feed config.FeedConfig, maxAge time.Duration) ([]*models.Article, error) {
	var src *models.Source
	if r.tracker != nil {
		s, err := r.tracker.EnsureSource(ctx, string(models.SourceRSS), feed.URL, feed.Name)
		if err != nil {
			log.Warn().Err(err).Str("url", feed.URL).Msg("Failed to load feed health")
		} else if s.Status == models.SourceFailed {
			log.Debug().Str("url", feed.URL).Int("failures", s.FailuresCount).Msg("Skipping failed feed")
			return nil, nil
		} else {
			src = s
		}
	}

	feedCtx, cancel := context.WithTimeout(ctx, r.timeoutOr(time.Minute))
	items, fetchErr := r.fetch(feedCtx, feed.URL, maxAge)
	cancel()

	if src != nil {
		if err := r.tracker.RecordFetch(ctx, src, fetchErr); err != nil {
			log.Warn().Err(err).Str("url", feed.URL).Msg("Failed to update feed health")
		}
	}
	if fetchErr != nil {
		return nil, fetchErr
	}

	cutoff := req.Cutoff()
	out := make([]*models.Article, 0, len(items))
	for _, it := range items {
		if it.URL == "" {
			continue
		}
		published := it.PublishedAt
		if published.IsZero() {
			published = req.Now
		}
		if published.Before(cutoff) {
			continue
		}
		a := newArticle(req, models.SourceRSS, it.Headline, it.URL, feed.Name, it.Content, published.UTC())
		a.SourceRelevance = rssRelevance
		out = append(out, a)
	}
	return out, nil
}

// allFeeds merges configured feeds with active imported ones, configured
// first, without repeating a URL.
func (r *RSS) allFeeds(ctx context.Context) []config.FeedConfig {
	seen := make(map[string]bool)
	var feeds []config.FeedConfig
	for _, f := range r.feeds {
		if f.URL == "" || seen[f.URL] {
			continue
		}
		seen[f.URL] = true
		feeds = append(feeds, f)
	}
	if r.tracker == nil {
		return feeds
	}
	imported, err := r.tracker.ListSources(ctx, string(models.SourceRSS), true)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load imported feeds")
		return feeds
	}
	for _, s := range imported {
		if seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		name := s.Name
		if name == "" {
			name = s.URL
		}
		feeds = append(feeds, config.FeedConfig{Name: name, URL: s.URL})
	}
	return feeds
}

func (r *RSS) timeoutOr(d time.Duration) time.Duration {
	if r.timeout > 0 {
		return 2 * r.timeout
	}
	return d
}
