// Package social publishes approved content to Twitter and Facebook.
package social

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/models"
)

const requestTimeout = 30 * time.Second

// ErrNotConfigured is reported when a platform has no credentials.
var ErrNotConfigured = errors.New("not configured")

// Poster publishes content to one platform.
type Poster interface {
	Platform() string
	Enabled() bool
	Post(ctx context.Context, c *models.ApprovedContent) models.PlatformResult
}

// Publisher posts to every platform in turn, pacing between them.
type Publisher struct {
	posters []Poster
	limiter *rate.Limiter
}

// NewPublisher builds a publisher over posters.
func NewPublisher(delay time.Duration, posters ...Poster) *Publisher {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Publisher{posters: posters, limiter: rate.NewLimiter(limit, 1)}
}

// NewDefaultPublisher wires Twitter and the Facebook page from cfg.
func NewDefaultPublisher(ctx context.Context, cfg *config.Config) *Publisher {
	return NewPublisher(cfg.Pacing.SocialDelay, NewTwitter(ctx, cfg, nil), NewFacebook(cfg, nil))
}

// Enabled lists the platforms that have credentials.
func (p *Publisher) Enabled() []string {
	var out []string
	for _, poster := range p.posters {
		if poster.Enabled() {
			out = append(out, poster.Platform())
		}
	}
	return out
}

// PostAll posts c to every platform. Platforms fail independently; ok is
// true when at least one succeeded.
func (p *Publisher) PostAll(ctx context.Context, c *models.ApprovedContent) (results []models.PlatformResult, ok bool) {
	for _, poster := range p.posters {
		if err := p.limiter.Wait(ctx); err != nil {
			results = append(results, failure(poster.Platform(), err))
			continue
		}
		res := poster.Post(ctx, c)
		if res.Success {
			log.Info().Str("platform", res.Platform).Str("url", res.URL).Str("content_id", c.ID).Msg("Posted")
			ok = true
		} else {
			log.Error().Str("platform", res.Platform).Str("error", res.Error).Str("content_id", c.ID).Msg("Posting failed")
		}
		results = append(results, res)
	}
	return results, ok
}

func failure(platform string, err error) models.PlatformResult {
	return models.PlatformResult{Platform: platform, Error: err.Error()}
}

// apiError reads an unexpected response into an error.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var graph struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &graph) == nil {
		if graph.Error.Message != "" {
			return fmt.Errorf("%s: %s", resp.Status, graph.Error.Message)
		}
		if graph.Detail != "" {
			return fmt.Errorf("%s: %s", resp.Status, graph.Detail)
		}
	}
	return fmt.Errorf("unexpected status %s", resp.Status)
}

func decode(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
