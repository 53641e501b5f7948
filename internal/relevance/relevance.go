// Package relevance asks the model whether an article matters to dump truck
// businesses.
package relevance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/llm"
	"ndta-news/pipeline/internal/models"
)

const (
	summaryLimit = 500
	temperature  = 0.3
	maxTokens    = 200

	// HighScore is the score from which an article counts as highly relevant.
	HighScore = 8
)

// Assessment is the model's verdict.
type Assessment struct {
	IsRelevant bool    `json:"is_relevant"`
	Score      float64 `json:"relevance_score"`
	Reason     string  `json:"reason"`
}

// Checker runs the relevance prompt.
type Checker struct {
	llm   *llm.Client
	model string
}

// NewChecker uses the fast model of client.
func NewChecker(client *llm.Client) *Checker {
	return &Checker{llm: client, model: client.Settings().FastModel}
}

// Check scores a. On failure the article is kept for manual review with a
// middling score.
func (c *Checker) Check(ctx context.Context, a *models.Article) llm.Result[Assessment] {
	res, err := llm.CompleteJSON[Assessment](ctx, c.llm, llm.Request{
		Prompt:      fmt.Sprintf(llm.RelevancePrompt, a.Title, llm.Truncate(a.Summary, summaryLimit)),
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return llm.Fallback(Assessment{
			IsRelevant: true,
			Score:      5,
			Reason:     "AI check failed - manual review needed",
		}, err)
	}
	res.Score = max(0, min(10, res.Score))
	return llm.Ok(res)
}

// Apply runs Check and stores the verdict on a.
func (c *Checker) Apply(ctx context.Context, a *models.Article) {
	res := c.Check(ctx, a)
	if res.Fallback {
		log.Warn().Err(res.Err).Str("article_id", a.ID).Msg("Relevance check failed, queuing for manual review")
	}
	a.IsRelevant = res.Value.IsRelevant
	a.RelevanceScore = res.Value.Score
	a.RelevanceReason = res.Value.Reason
}
