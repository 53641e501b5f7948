package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

const (
	dotMaxItems       = 10
	dotTextLimit      = 500
	dotRegionalScore  = 8
	dotOtherScore     = 6
	dotItemSelector   = "article, div"
	dotTitleSelector  = "h1, h2, h3, h4, a"
	dotBrowserAgent   = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	dotSourceKindName = "dot"
)

// regionalStates are the association's core region; their DOT news starts
// with a higher relevance prior.
var regionalStates = map[string]bool{
	"GA": true, "FL": true, "AL": true, "SC": true, "NC": true, "TN": true, "TX": true, "CA": true,
}

// Newsroom is one state DOT news page, with an optional feed.
type Newsroom struct {
	Name string
	URL  string
	RSS  string
}

// DOT scrapes state DOT newsrooms, RSS first and HTML as a fallback.
type DOT struct {
	states    []string
	newsrooms map[string]Newsroom
	tracker   Tracker
	client    *http.Client
	limiter   *rate.Limiter
}

// NewDOT builds the DOT source for the configured states; an empty list means
// every state.
func NewDOT(cfg *config.Config, tracker Tracker, client *http.Client) *DOT {
	return &DOT{
		states:    cfg.DOT.PriorityStates,
		newsrooms: Newsrooms,
		tracker:   tracker,
		client:    httpClient(client, cfg.Scraping.RequestTimeout),
		limiter:   pacer(cfg.Pacing.DOTDelay),
	}
}

// Name implements Source.
func (d *DOT) Name() string { return string(models.SourceDOT) }

// Scrape implements Source.
func (d *DOT) Scrape(ctx context.Context, req Request) ([]*models.Article, error) {
	codes := d.states
	if len(codes) == 0 {
		codes = NewsroomCodes()
	}

	var out []*models.Article
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		room, ok := d.newsrooms[code]
		if !ok {
			log.Warn().Str("state", code).Msg("No DOT configuration for state")
			continue
		}
		articles, err := d.scrapeState(ctx, req, code, room)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Error().Err(err).Str("state", code).Str("dot", room.Name).Msg("Error scraping DOT")
			continue
		}
		log.Info().Str("dot", room.Name).Int("articles", len(articles)).Msg("DOT scraped")
		out = append(out, articles...)
	}
	return out, nil
}

func (d *DOT) scrapeState(ctx context.Context, req Request, code string, room Newsroom) ([]*models.Article, error) {
	var src *models.Source
	if d.tracker != nil {
		s, err := d.tracker.EnsureSource(ctx, dotSourceKindName, room.URL, room.Name)
		if err != nil {
			log.Warn().Err(err).Str("url", room.URL).Msg("Failed to load DOT health")
		} else if s.Status == models.SourceFailed {
			return nil, nil
		} else {
			src = s
		}
	}

	var articles []*models.Article
	var err error
	if room.RSS != "" {
		articles, err = d.scrapeRSS(ctx, req, code, room)
		if err != nil {
			log.Debug().Err(err).Str("dot", room.Name).Msg("DOT feed failed, trying web page")
		}
	}
	if len(articles) == 0 {
		articles, err = d.scrapeWeb(ctx, req, code, room)
	}

	if src != nil {
		if terr := d.tracker.RecordFetch(ctx, src, err); terr != nil {
			log.Warn().Err(terr).Str("url", room.URL).Msg("Failed to update DOT health")
		}
	}
	return articles, err
}

func (d *DOT) scrapeRSS(ctx context.Context, req Request, code string, room Newsroom) ([]*models.Article, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	fp := gofeed.NewParser()
	fp.Client = d.client
	fp.UserAgent = dotBrowserAgent
	feed, err := fp.ParseURLWithContext(room.RSS, ctx)
	if err != nil {
		return nil, err
	}

	cutoff := req.Cutoff()
	var out []*models.Article
	for _, item := range feed.Items {
		published := req.Now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}
		if published.Before(cutoff) || item.Link == "" {
			continue
		}
		summary := truncate(stripTags(firstNonEmpty(item.Description, item.Content)), dotTextLimit)
		if summary == "" {
			summary = item.Title
		}
		out = append(out, d.article(req, code, room, item.Title, item.Link, summary, published))
		if len(out) == dotMaxItems {
			break
		}
	}
	return out, nil
}

// scrapeWeb picks news-like blocks out of the newsroom page. Newsroom markup
// differs by state, so any article or div whose class mentions news or press
// is treated as an item.
func (d *DOT) scrapeWeb(ctx context.Context, req Request, code string, room Newsroom) ([]*models.Article, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	doc, err := d.fetchDocument(ctx, room.URL)
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(room.URL)
	if err != nil {
		return nil, fmt.Errorf("bad newsroom url: %w", err)
	}

	var out []*models.Article
	doc.Find(dotItemSelector).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		class := strings.ToLower(item.AttrOr("class", ""))
		if !strings.Contains(class, "news") && !strings.Contains(class, "press") {
			return true
		}
		title := strings.TrimSpace(item.Find(dotTitleSelector).First().Text())
		if title == "" {
			return true
		}

		link := room.URL
		if href, ok := item.Find("a[href]").First().Attr("href"); ok {
			if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
				link = base.ResolveReference(ref).String()
			}
		}
		desc := strings.TrimSpace(item.Find("p").First().Text())
		if desc == "" {
			desc = title
		}

		out = append(out, d.article(req, code, room, title, link, truncate(desc, dotTextLimit), req.Now))
		return len(out) < dotMaxItems
	})
	return out, nil
}

func (d *DOT) article(req Request, code string, room Newsroom, title, link, summary string, published time.Time) *models.Article {
	a := newArticle(req, models.SourceDOT, title, link, room.Name, summary, published.UTC())
	a.SourceRelevance = dotOtherScore
	if regionalStates[code] {
		a.SourceRelevance = dotRegionalScore
	}
	a.Extra = map[string]string{"state": code, "category": "DOT_News"}
	return a
}

func (d *DOT) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", dotBrowserAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &statusError{url: pageURL, status: resp.Status}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

func stripTags(html string) string {
	if !strings.Contains(html, "<") {
		return strings.TrimSpace(html)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.TrimSpace(html)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// truncate cuts s to at most n bytes on a rune boundary.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}
