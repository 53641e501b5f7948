// Package llm wraps the OpenAI-compatible chat model used by every prompt in
// the pipeline.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"ndta-news/pipeline/internal/config"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("llm: no API key configured")

// ChatModel is the part of the eino chat model the pipeline calls.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

// Request is one completion call.
type Request struct {
	System      string
	Prompt      string
	Model       string
	Temperature float32
	MaxTokens   int
}

// Client paces and times out calls to a ChatModel.
type Client struct {
	cm      ChatModel
	ai      config.AIConfig
	limiter *rate.Limiter
}

// New builds a client for the configured OpenAI-compatible endpoint. Without
// an API key it returns a client whose calls fail with ErrDisabled, so
// callers fall back to their degraded defaults.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	if cfg.Credentials.OpenAIKey == "" {
		log.Warn().Msg("OpenAI API key not set, AI features will use fallbacks")
		return NewWithModel(nil, cfg.AI, cfg.Pacing.LLMDelay), nil
	}

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: cfg.Credentials.OpenAIBaseURL,
		APIKey:  cfg.Credentials.OpenAIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialise chat model: %w", err)
	}
	return NewWithModel(cm, cfg.AI, cfg.Pacing.LLMDelay), nil
}

// NewWithModel wraps an existing chat model. delay is the minimum spacing
// between calls; zero disables pacing.
func NewWithModel(cm ChatModel, ai config.AIConfig, delay time.Duration) *Client {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Client{cm: cm, ai: ai, limiter: rate.NewLimiter(limit, 1)}
}

// Enabled reports whether calls can reach a model.
func (c *Client) Enabled() bool {
	return c.cm != nil
}

// Settings returns the model settings the client was built with.
func (c *Client) Settings() config.AIConfig {
	return c.ai
}

// Complete sends one request and returns the trimmed reply text.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	if c.cm == nil {
		return "", ErrDisabled
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}
	if c.ai.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.ai.Timeout)
		defer cancel()
	}

	messages := make([]*schema.Message, 0, 2)
	if req.System != "" {
		messages = append(messages, &schema.Message{Role: schema.System, Content: req.System})
	}
	messages = append(messages, &schema.Message{Role: schema.User, Content: req.Prompt})

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if req.Model != "" {
		opts = append(opts, model.WithModel(req.Model))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	start := time.Now()
	resp, err := c.cm.Generate(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	log.Debug().Str("model", req.Model).Dur("took", time.Since(start)).Int("chars", len(resp.Content)).Msg("Chat completion")
	return strings.TrimSpace(resp.Content), nil
}

// CleanJSON strips the markdown fence models like to wrap JSON replies in.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CompleteJSON sends req and decodes the reply into T.
func CompleteJSON[T any](ctx context.Context, c *Client, req Request) (T, error) {
	var out T
	text, err := c.Complete(ctx, req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(CleanJSON(text)), &out); err != nil {
		return out, fmt.Errorf("failed to decode model reply: %w", err)
	}
	return out, nil
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
