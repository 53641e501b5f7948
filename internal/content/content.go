// Package content turns approved articles into NDTA reports, social posts
// and headlines.
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/llm"
	"ndta-news/pipeline/internal/models"
)

const (
	contentLimit = 2000

	socialTemperature = 0.8
	socialMaxTokens   = 150

	headlineTemperature = 0.7
	headlineMaxTokens   = 50
)

// ErrIncompleteReport is returned when the model reply lacks required fields.
var ErrIncompleteReport = errors.New("report reply is incomplete")

// reportReply is the JSON shape the report prompt asks for.
type reportReply struct {
	Headline         string   `json:"headline"`
	ExecutiveSummary string   `json:"executive_summary"`
	KeyFacts         []string `json:"key_facts"`
	IndustryImpact   string   `json:"industry_impact"`
	NDTAPerspective  string   `json:"ndta_perspective"`
	ActionItems      []string `json:"action_items"`
	CallToAction     string   `json:"call_to_action"`
}

// Generator writes reports in the association's voice.
type Generator struct {
	llm *llm.Client
	now func() time.Time
}

// NewGenerator builds a generator on client.
func NewGenerator(client *llm.Client) *Generator {
	return &Generator{llm: client, now: func() time.Time { return time.Now().UTC() }}
}

// Report generates the report for a, including its social post. The report
// starts in pending_graphics.
func (g *Generator) Report(ctx context.Context, a *models.Article) (*models.Report, error) {
	log.Info().Str("article_id", a.ID).Str("title", a.Title).Msg("Generating report")

	ai := g.llm.Settings()
	reply, err := llm.CompleteJSON[reportReply](ctx, g.llm, llm.Request{
		System:      llm.Voice,
		Prompt:      fmt.Sprintf(llm.ReportPrompt, llm.Voice, a.Title, a.Source, publishedLabel(a), promptContent(a)),
		Model:       ai.Model,
		Temperature: ai.Temperature,
		MaxTokens:   ai.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generate report for %s: %w", a.ID, err)
	}
	if reply.ExecutiveSummary == "" {
		return nil, fmt.Errorf("%w: no executive summary for %s", ErrIncompleteReport, a.ID)
	}
	if reply.Headline == "" {
		reply.Headline = g.Headline(ctx, a.Title, reply.ExecutiveSummary).Value
	}

	social := g.SocialPost(ctx, reply.Headline, reply.ExecutiveSummary)
	if social.Fallback {
		log.Warn().Err(social.Err).Str("article_id", a.ID).Msg("Social post generation failed, using fallback")
	}

	now := g.now()
	r := &models.Report{
		ID:               a.ID,
		ArticleID:        a.ID,
		Headline:         reply.Headline,
		ExecutiveSummary: reply.ExecutiveSummary,
		KeyFacts:         reply.KeyFacts,
		IndustryImpact:   reply.IndustryImpact,
		NDTAPerspective:  reply.NDTAPerspective,
		ActionItems:      reply.ActionItems,
		CallToAction:     reply.CallToAction,
		SocialPost:       social.Value,
		SourceArticle: models.SourceRef{
			Title:  a.Title,
			URL:    a.URL,
			Source: a.Source,
			Date:   a.PublishedDate,
		},
		IsStateSpecific: a.IsStateSpecific,
		DetectedStates:  a.DetectedStates,
		Status:          models.ReportPendingGraphics,
		GeneratedAt:     now,
	}
	log.Info().Str("report_id", r.ID).Str("headline", r.Headline).Msg("Report generated")
	return r, nil
}

// SocialPost writes the short post that accompanies a report. On failure the
// headline plus the standard hashtags is used.
func (g *Generator) SocialPost(ctx context.Context, headline, summary string) llm.Result[string] {
	text, err := g.llm.Complete(ctx, llm.Request{
		Prompt:      fmt.Sprintf(llm.SocialPostPrompt, llm.Voice, headline, summary),
		Model:       g.llm.Settings().FastModel,
		Temperature: socialTemperature,
		MaxTokens:   socialMaxTokens,
	})
	if err == nil && text != "" {
		return llm.Ok(text)
	}
	if err == nil {
		err = errors.New("empty social post")
	}
	return llm.Fallback(FallbackSocialPost(headline), err)
}

// FallbackSocialPost is the post used when the model is unavailable.
func FallbackSocialPost(headline string) string {
	return headline + " #DumpTruck #Trucking #NDTA"
}

// Headline suggests a headline for an article. On failure the title is
// returned unchanged.
func (g *Generator) Headline(ctx context.Context, title, summary string) llm.Result[string] {
	text, err := g.llm.Complete(ctx, llm.Request{
		System:      llm.Voice,
		Prompt:      fmt.Sprintf(llm.HeadlinePrompt, title, summary),
		Model:       g.llm.Settings().FastModel,
		Temperature: headlineTemperature,
		MaxTokens:   headlineMaxTokens,
	})
	if err != nil {
		return llm.Fallback(title, err)
	}
	headline := strings.Trim(strings.Trim(text, `"`), "'")
	if headline == "" {
		return llm.Fallback(title, errors.New("empty headline"))
	}
	return llm.Ok(headline)
}

func promptContent(a *models.Article) string {
	return llm.Truncate(a.Summary+"\n\n"+a.Content, contentLimit)
}

func publishedLabel(a *models.Article) string {
	if a.PublishedDate.IsZero() {
		return "Recent"
	}
	return a.PublishedDate.Format(time.RFC3339)
}
