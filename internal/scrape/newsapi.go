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

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

const (
	newsAPIMaxKeywords = 5
	newsAPIPageSize    = 100
	webRelevance       = 7
)

// NewsAPI searches the NewsAPI "everything" endpoint for industry keywords.
type NewsAPI struct {
	endpoint string
	apiKey   string
	keywords []string
	client   *http.Client
}

// NewNewsAPI builds the web search source.
func NewNewsAPI(cfg *config.Config, client *http.Client) *NewsAPI {
	return &NewsAPI{
		endpoint: cfg.Web.Endpoint,
		apiKey:   cfg.Credentials.NewsAPIKey,
		keywords: cfg.Web.Keywords,
		client:   httpClient(client, cfg.Scraping.RequestTimeout),
	}
}

// Name implements Source.
func (n *NewsAPI) Name() string { return string(models.SourceWeb) }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		URL         string `json:"url"`
		Description string `json:"description"`
		Content     string `json:"content"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
}

// Query builds the search expression: the first five keywords, quoted and
// joined with OR.
func Query(keywords []string) string {
	if len(keywords) > newsAPIMaxKeywords {
		keywords = keywords[:newsAPIMaxKeywords]
	}
	quoted := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		quoted = append(quoted, strconv.Quote(kw))
	}
	return strings.Join(quoted, " OR ")
}

// Scrape implements Source.
func (n *NewsAPI) Scrape(ctx context.Context, req Request) ([]*models.Article, error) {
	if n.apiKey == "" {
		return nil, fmt.Errorf("%w: NewsAPI key not configured", ErrDisabled)
	}
	if len(n.keywords) == 0 {
		return nil, fmt.Errorf("%w: no keywords configured", ErrDisabled)
	}

	params := url.Values{}
	params.Set("q", Query(n.keywords))
	params.Set("from", req.Cutoff().Format("2006-01-02"))
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(newsAPIPageSize))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", n.apiKey)

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("newsapi request: %w", err)
	}
	defer resp.Body.Close()

	var body newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &statusError{url: n.endpoint, status: resp.Status}
		}
		return nil, fmt.Errorf("decode newsapi response: %w", err)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "ok" {
		return nil, fmt.Errorf("newsapi error (%s): %s", resp.Status, body.Message)
	}

	out := make([]*models.Article, 0, len(body.Articles))
	for _, item := range body.Articles {
		if item.URL == "" || item.Title == "" {
			continue
		}
		source := item.Source.Name
		if source == "" {
			source = "Unknown"
		}
		published, err := time.Parse(time.RFC3339, item.PublishedAt)
		if err != nil {
			published = req.Now
		}
		a := newArticle(req, models.SourceWeb, item.Title, item.URL, source, item.Description, published.UTC())
		a.Content = item.Content
		a.SourceRelevance = webRelevance
		out = append(out, a)
	}
	return out, nil
}
