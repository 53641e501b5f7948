package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/relevance"
	"ndta-news/pipeline/internal/scrape"
	"ndta-news/pipeline/internal/store"
)

const (
	rejectedByVerification = "Failed verification checks"
	progressEvery          = 25
)

// ProcessArticle decides the first status of a freshly scraped article:
// verification may reject it, a trusted high-relevance article is approved
// without review, and everything else waits for a human.
func (p *Pipeline) ProcessArticle(ctx context.Context, a *models.Article) {
	if a.ID == "" {
		a.AssignID()
	}

	a.Verification = p.deps.Verifier.Verify(ctx, a)
	if a.Verification.Recommendation == models.RecommendReject {
		a.Status = models.ArticleRejected
		a.RejectionReason = rejectedByVerification
		a.ProcessedAt = p.now()
		return
	}

	p.deps.Relevance.Apply(ctx, a)
	p.deps.States.Apply(a)

	if a.Verification.Recommendation == models.RecommendAutoApprove && a.RelevanceScore >= relevance.HighScore {
		a.Status = models.ArticleApproved
		a.AutoApproved = true
	} else {
		a.Status = models.ArticlePendingReview
	}
	a.ProcessedAt = p.now()
}

// Scrape runs every source, processes the new articles and stores them. The
// returned run carries the batch counters.
func (p *Pipeline) Scrape(ctx context.Context, lookbackDays int) (*models.ScrapeRun, error) {
	defer p.observe("scrape", time.Now())
	if lookbackDays <= 0 {
		lookbackDays = p.deps.LookbackDays
	}

	run, err := p.store.StartRun(ctx, lookbackDays)
	if err != nil {
		return nil, err
	}
	log.Info().Str("run_id", run.ID).Int("lookback_days", lookbackDays).Msg("Starting scrape")

	articles, perSource := p.deps.Scraper.ScrapeAll(ctx, scrape.Request{LookbackDays: lookbackDays, Now: p.now()})
	for name, n := range perSource {
		p.deps.Metrics.scraped.WithLabelValues(name).Add(float64(n))
	}
	run.Total = len(articles)

	for i, a := range articles {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(articles)-i).Msg("Scrape interrupted")
			break
		}
		if i > 0 && i%progressEvery == 0 {
			log.Info().
				Int("processed", i).
				Int("total", len(articles)).
				Int("duplicates", run.Duplicates).
				Msg("Processing progress")
		}
		p.storeArticle(ctx, run, a)
	}

	if err := p.store.FinishRun(ctx, run); err != nil {
		return run, err
	}
	log.Info().
		Int("total", run.Total).
		Int("relevant", run.Relevant).
		Int("high_relevance", run.HighRelevance).
		Int("state_specific", run.StateSpecific).
		Int("rejected", run.Rejected).
		Int("auto_approved", run.AutoApproved).
		Int("duplicates", run.Duplicates).
		Msg("Scrape finished")
	return run, nil
}

// storeArticle processes and inserts one article, counting it into run.
// Articles already in the store are skipped before any model call.
func (p *Pipeline) storeArticle(ctx context.Context, run *models.ScrapeRun, a *models.Article) {
	a.AssignID()
	if _, err := p.store.GetArticle(ctx, a.ID); err == nil {
		run.Duplicates++
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("article_id", a.ID).Msg("Failed to check for existing article")
		return
	}

	p.ProcessArticle(ctx, a)

	if err := p.store.InsertArticle(ctx, a, run.ID); err != nil {
		if errors.Is(err, store.ErrExists) {
			run.Duplicates++
			return
		}
		log.Error().Err(err).Str("article_id", a.ID).Str("title", a.Title).Msg("Failed to store article")
		return
	}
	p.deps.Metrics.processed.WithLabelValues(string(a.Status)).Inc()

	switch {
	case a.Status == models.ArticleRejected:
		run.Rejected++
	case a.AutoApproved:
		run.AutoApproved++
	}
	if a.IsRelevant {
		run.Relevant++
		if a.RelevanceScore >= relevance.HighScore {
			run.HighRelevance++
		}
	}
	if a.IsStateSpecific {
		run.StateSpecific++
	}
}

// ProcessOne runs a single article through processing and storage outside a
// scrape run. The dashboard's article submission endpoint uses it.
func (p *Pipeline) ProcessOne(ctx context.Context, a *models.Article) error {
	if a.ScrapedAt.IsZero() {
		a.ScrapedAt = p.now()
	}
	a.AssignID()
	p.ProcessArticle(ctx, a)
	if err := p.store.InsertArticle(ctx, a, ""); err != nil {
		return fmt.Errorf("failed to store article: %w", err)
	}
	p.deps.Metrics.processed.WithLabelValues(string(a.Status)).Inc()
	return nil
}
