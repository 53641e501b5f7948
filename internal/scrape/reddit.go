package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

const (
	redditPublicBase = "https://www.reddit.com"
	redditOAuthBase  = "https://oauth.reddit.com"
	redditTokenURL   = "https://www.reddit.com/api/v1/access_token"
	redditLimit      = 100
	redditTextLimit  = 500
)

// Reddit scrapes subreddit listings and keyword searches.
type Reddit struct {
	apiBase    string
	linkBase   string
	userAgent  string
	subreddits []string
	keywords   []string
	client     *http.Client
	limiter    *rate.Limiter
}

// NewReddit builds the Reddit source. With client credentials configured it
// uses app-only OAuth against oauth.reddit.com; otherwise the public JSON
// endpoints.
func NewReddit(ctx context.Context, cfg *config.Config) *Reddit {
	base := strings.TrimSuffix(cfg.Reddit.BaseURL, "/")
	if base == "" {
		base = redditPublicBase
	}
	client := httpClient(nil, cfg.Scraping.RequestTimeout)

	cr := cfg.Credentials
	if cr.RedditClientID != "" && cr.RedditClientSecret != "" && base == redditPublicBase {
		cc := clientcredentials.Config{
			ClientID:     cr.RedditClientID,
			ClientSecret: cr.RedditClientSecret,
			TokenURL:     redditTokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		}
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
		authed := cc.Client(ctx)
		authed.Timeout = client.Timeout
		log.Debug().Msg("Using Reddit app-only OAuth")
		return newReddit(cfg, redditOAuthBase, base, authed)
	}
	return newReddit(cfg, base, base, client)
}

func newReddit(cfg *config.Config, apiBase, linkBase string, client *http.Client) *Reddit {
	ua := cfg.Credentials.RedditUserAgent
	if ua == "" {
		ua = config.DefaultRedditAgent
	}
	return &Reddit{
		apiBase:    apiBase,
		linkBase:   linkBase,
		userAgent:  ua,
		subreddits: cfg.Reddit.Subreddits,
		keywords:   cfg.Reddit.Keywords,
		client:     client,
		limiter:    pacer(cfg.Pacing.RedditDelay),
	}
}

// Name implements Source.
func (r *Reddit) Name() string { return string(models.SourceReddit) }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Subreddit   string  `json:"subreddit"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
}

// Scrape walks every subreddit, then every keyword search, and drops
// duplicate URLs.
func (r *Reddit) Scrape(ctx context.Context, req Request) ([]*models.Article, error) {
	var all []*models.Article
	for _, sub := range r.subreddits {
		posts, err := r.scrapeSubreddit(ctx, req, sub)
		if err != nil {
			if ctx.Err() != nil {
				return dedupe(all), ctx.Err()
			}
			log.Warn().Err(err).Str("subreddit", sub).Msg("Failed to scrape subreddit")
			continue
		}
		all = append(all, posts...)
	}
	for _, kw := range r.keywords {
		posts, err := r.search(ctx, req, kw)
		if err != nil {
			if ctx.Err() != nil {
				return dedupe(all), ctx.Err()
			}
			log.Warn().Err(err).Str("query", kw).Msg("Failed to search Reddit")
			continue
		}
		all = append(all, posts...)
	}
	return dedupe(all), nil
}

func (r *Reddit) scrapeSubreddit(ctx context.Context, req Request, sub string) ([]*models.Article, error) {
	params := url.Values{"limit": {strconv.Itoa(redditLimit)}}
	listing, err := r.get(ctx, fmt.Sprintf("%s/r/%s/new.json?%s", r.apiBase, url.PathEscape(sub), params.Encode()))
	if err != nil {
		log.Debug().Err(err).Str("subreddit", sub).Msg("JSON listing failed, trying RSS")
		return r.scrapeSubredditRSS(ctx, req, sub)
	}

	cutoff := req.Cutoff()
	var out []*models.Article
	for _, child := range listing.Data.Children {
		p := child.Data
		created := time.Unix(int64(p.CreatedUTC), 0).UTC()
		if created.Before(cutoff) {
			continue
		}
		if !matchesAny(p.Title+" "+p.Selftext, r.keywords) {
			continue
		}
		if p.Subreddit == "" {
			p.Subreddit = sub
		}
		out = append(out, r.article(req, p, ""))
	}
	return out, nil
}

// scrapeSubredditRSS reads the public RSS listing when the JSON API refuses
// the request.
func (r *Reddit) scrapeSubredditRSS(ctx context.Context, req Request, sub string) ([]*models.Article, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	fp := gofeed.NewParser()
	fp.UserAgent = r.userAgent
	fp.Client = r.client
	feed, err := fp.ParseURLWithContext(fmt.Sprintf("%s/r/%s/new/.rss", r.linkBase, url.PathEscape(sub)), ctx)
	if err != nil {
		return nil, err
	}

	cutoff := req.Cutoff()
	var out []*models.Article
	for _, item := range feed.Items {
		published := req.Now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		if published.Before(cutoff) {
			continue
		}
		text := stripTags(firstNonEmpty(item.Content, item.Description))
		if !matchesAny(item.Title+" "+text, r.keywords) {
			continue
		}
		summary := truncate(text, redditTextLimit)
		if summary == "" {
			summary = item.Title
		}
		a := newArticle(req, models.SourceReddit, item.Title, item.Link, "Reddit - r/"+sub, summary, published.UTC())
		a.Extra = map[string]string{"subreddit": sub, "post_type": "reddit_discussion"}
		if item.Author != nil {
			a.Extra["author"] = item.Author.Name
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *Reddit) search(ctx context.Context, req Request, query string) ([]*models.Article, error) {
	window := "week"
	if req.LookbackDays > 7 {
		window = "month"
	}
	params := url.Values{
		"q":     {query},
		"sort":  {"new"},
		"limit": {strconv.Itoa(redditLimit)},
		"t":     {window},
	}
	listing, err := r.get(ctx, r.apiBase+"/search.json?"+params.Encode())
	if err != nil {
		return nil, err
	}

	cutoff := req.Cutoff()
	var out []*models.Article
	for _, child := range listing.Data.Children {
		p := child.Data
		if time.Unix(int64(p.CreatedUTC), 0).Before(cutoff) {
			continue
		}
		if p.Subreddit == "" {
			p.Subreddit = "unknown"
		}
		out = append(out, r.article(req, p, query))
	}
	return out, nil
}

func (r *Reddit) article(req Request, p redditPost, query string) *models.Article {
	summary := truncate(p.Selftext, redditTextLimit)
	if summary == "" {
		summary = p.Title
	}
	a := newArticle(req, models.SourceReddit, p.Title, r.linkBase+p.Permalink, "Reddit - r/"+p.Subreddit,
		summary, time.Unix(int64(p.CreatedUTC), 0).UTC())
	a.Extra = map[string]string{
		"subreddit":    p.Subreddit,
		"author":       p.Author,
		"score":        strconv.Itoa(p.Score),
		"num_comments": strconv.Itoa(p.NumComments),
		"post_type":    "reddit_discussion",
	}
	if query != "" {
		a.Extra["search_query"] = query
	}
	return a
}

func (r *Reddit) get(ctx context.Context, u string) (*redditListing, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{url: u, status: resp.Status}
	}

	var listing redditListing
	if err := json.NewDecoder(resp.Body).Decode(&listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	return &listing, nil
}

func matchesAny(text string, keywords []string) bool {
	text = strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func dedupe(articles []*models.Article) []*models.Article {
	seen := make(map[string]bool, len(articles))
	out := articles[:0]
	for _, a := range articles {
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		out = append(out, a)
	}
	return out
}
