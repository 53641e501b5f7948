package store

import (
	"context"

	"ndta-news/pipeline/internal/models"
)

// Counts is the queue summary shown by the status command and dashboard.
type Counts struct {
	ArticlesPending  int `json:"pending_articles"`
	ArticlesApproved int `json:"approved_articles"`
	ArticlesRejected int `json:"rejected_articles"`
	AwaitingReport   int `json:"awaiting_report"`
	PendingGraphics  int `json:"pending_graphics"`
	PendingApproval  int `json:"pending_approval"`
	ReportsApproved  int `json:"approved_reports"`
	ReadyToPost      int `json:"ready_to_post"`
	Posted           int `json:"posted"`
	StateAlerts      int `json:"state_alerts"`
}

// Counts gathers the size of every queue.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	queries := []struct {
		dst *int
		fn  func() (int, error)
	}{
		{&c.ArticlesPending, func() (int, error) {
			return s.CountArticles(ctx, ArticleFilter{Statuses: []models.Status{models.ArticlePendingReview}})
		}},
		{&c.ArticlesApproved, func() (int, error) {
			return s.CountArticles(ctx, ArticleFilter{Statuses: []models.Status{models.ArticleApproved}})
		}},
		{&c.ArticlesRejected, func() (int, error) {
			return s.CountArticles(ctx, ArticleFilter{Statuses: []models.Status{models.ArticleRejected}})
		}},
		{&c.AwaitingReport, func() (int, error) {
			return s.CountArticles(ctx, ArticleFilter{Statuses: []models.Status{models.ArticleApproved}, WithoutReport: true})
		}},
		{&c.PendingGraphics, func() (int, error) {
			return s.CountReports(ctx, ReportFilter{Statuses: []models.Status{models.ReportPendingGraphics}})
		}},
		{&c.PendingApproval, func() (int, error) {
			return s.CountReports(ctx, ReportFilter{Statuses: []models.Status{models.ReportPendingApproval}})
		}},
		{&c.ReportsApproved, func() (int, error) {
			return s.CountReports(ctx, ReportFilter{Statuses: []models.Status{models.ReportApproved}})
		}},
		{&c.ReadyToPost, func() (int, error) {
			return s.CountContent(ctx, ContentFilter{UnpostedOnly: true})
		}},
		{&c.Posted, func() (int, error) {
			return s.CountContent(ctx, ContentFilter{Statuses: []models.Status{models.ContentPosted}})
		}},
		{&c.StateAlerts, func() (int, error) {
			return s.CountReports(ctx, ReportFilter{Statuses: []models.Status{models.ReportApproved}, StateSpecificOnly: true})
		}},
	}
	for _, q := range queries {
		n, err := q.fn()
		if err != nil {
			return c, err
		}
		*q.dst = n
	}
	return c, nil
}

// NextAction suggests the command that moves the pipeline forward.
func (c Counts) NextAction() string {
	switch {
	case c.ArticlesPending > 0:
		return "review"
	case c.AwaitingReport > 0:
		return "generate"
	case c.PendingGraphics > 0:
		return "graphics"
	case c.PendingApproval > 0:
		return "approve"
	case c.ReadyToPost > 0:
		return "post"
	default:
		return "scrape"
	}
}
