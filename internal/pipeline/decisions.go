package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/store"
)

// PendingArticles returns the relevant articles waiting for review.
func (p *Pipeline) PendingArticles(ctx context.Context) ([]*models.Article, error) {
	return p.store.ListArticles(ctx, store.ArticleFilter{
		Statuses:     []models.Status{models.ArticlePendingReview},
		RelevantOnly: true,
	})
}

// PendingReports returns the reports waiting for approval.
func (p *Pipeline) PendingReports(ctx context.Context) ([]*models.Report, error) {
	return p.store.ListReports(ctx, store.ReportFilter{
		Statuses: []models.Status{models.ReportPendingApproval},
	})
}

// ApproveArticle approves a reviewed article. stateAlert flags it for the
// state alert list.
func (p *Pipeline) ApproveArticle(ctx context.Context, a *models.Article, stateAlert bool, actor string) error {
	a.ReviewedAt = p.now()
	a.StateSpecificAlert = stateAlert && a.IsStateSpecific
	if err := p.store.UpdateArticle(ctx, a, models.ArticleApproved, actor); err != nil {
		return fmt.Errorf("failed to approve article %s: %w", a.ID, err)
	}
	log.Info().Str("article_id", a.ID).Str("actor", actor).Bool("state_alert", a.StateSpecificAlert).Msg("Article approved")
	return nil
}

// RejectArticle rejects a reviewed article.
func (p *Pipeline) RejectArticle(ctx context.Context, a *models.Article, reason, actor string) error {
	a.ReviewedAt = p.now()
	if reason != "" {
		a.RejectionReason = reason
	}
	if err := p.store.UpdateArticle(ctx, a, models.ArticleRejected, actor); err != nil {
		return fmt.Errorf("failed to reject article %s: %w", a.ID, err)
	}
	log.Info().Str("article_id", a.ID).Str("actor", actor).Msg("Article rejected")
	return nil
}

// ApproveReport promotes r to approved content. State-specific content also
// triggers the state alert email.
func (p *Pipeline) ApproveReport(ctx context.Context, r *models.Report, actor string) (*models.ApprovedContent, error) {
	now := p.now()
	c := models.NewApprovedContent(r, actor, now)
	r.ApprovedAt = now
	r.ApprovedBy = actor
	if err := p.store.ApproveReport(ctx, r, c, actor); err != nil {
		r.ApprovedAt, r.ApprovedBy = time.Time{}, ""
		return nil, fmt.Errorf("failed to approve report %s: %w", r.ID, err)
	}
	log.Info().Str("report_id", r.ID).Str("actor", actor).Msg("Report approved")

	if c.StateAbbr != "" {
		p.notifyStateAlert(ctx, c)
	}
	return c, nil
}

// RejectReport rejects r.
func (p *Pipeline) RejectReport(ctx context.Context, r *models.Report, actor string) error {
	r.RejectedAt = p.now()
	if err := p.store.UpdateReport(ctx, r, models.ReportRejected, actor); err != nil {
		r.RejectedAt = time.Time{}
		return fmt.Errorf("failed to reject report %s: %w", r.ID, err)
	}
	log.Info().Str("report_id", r.ID).Str("actor", actor).Msg("Report rejected")
	return nil
}

// EditReport replaces the headline and social text of a report awaiting
// approval. Empty values keep the current text.
func (p *Pipeline) EditReport(ctx context.Context, r *models.Report, headline, social, actor string) error {
	if h := strings.TrimSpace(headline); h != "" {
		r.Headline = h
	}
	if s := strings.TrimSpace(social); s != "" {
		r.SocialPost = s
	}
	r.UpdatedAt = p.now()
	if err := p.store.UpdateReport(ctx, r, r.Status, actor); err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}
