// Package pipeline sequences the stages that take a scraped article to a
// published post, persisting every document between stages.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/scrape"
	"ndta-news/pipeline/internal/store"
)

// Actors recorded in the transitions log.
const (
	ActorSystem = "system"
	ActorAuto   = "auto"
	ActorAdmin  = "admin"
)

// Scraper runs every enabled source.
type Scraper interface {
	ScrapeAll(ctx context.Context, req scrape.Request) ([]*models.Article, map[string]int)
}

// Verifier scores an article's trustworthiness.
type Verifier interface {
	Verify(ctx context.Context, a *models.Article) *models.VerificationResult
}

// RelevanceChecker scores whether an article matters to the industry and
// records the assessment on it.
type RelevanceChecker interface {
	Apply(ctx context.Context, a *models.Article)
}

// StateDetector tags the states an article mentions.
type StateDetector interface {
	Apply(a *models.Article)
}

// ReportWriter turns an approved article into a report.
type ReportWriter interface {
	Report(ctx context.Context, a *models.Article) (*models.Report, error)
}

// TextFetcher downloads the readable text of an article page.
type TextFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Renderer draws a report graphic and returns its path.
type Renderer interface {
	Render(ctx context.Context, r *models.Report) (string, error)
}

// Publisher posts content to every platform.
type Publisher interface {
	PostAll(ctx context.Context, c *models.ApprovedContent) ([]models.PlatformResult, bool)
}

// GroupPoster posts content to one Facebook group.
type GroupPoster interface {
	PostGroup(ctx context.Context, c *models.ApprovedContent, groupID string) models.PlatformResult
}

// Notifier sends the workflow emails.
type Notifier interface {
	ApprovalNeeded(ctx context.Context, r *models.Report) error
	StateAlert(ctx context.Context, c *models.ApprovedContent) error
}

// Deps are the collaborators of a Pipeline. FullText, Notifier and Groups
// are optional.
type Deps struct {
	Scraper   Scraper
	Verifier  Verifier
	Relevance RelevanceChecker
	States    StateDetector
	Writer    ReportWriter
	FullText  TextFetcher
	Renderer  Renderer
	Publisher Publisher
	Groups    GroupPoster
	Notifier  Notifier
	Metrics   *Metrics

	// GroupIDs maps a state code to the Facebook groups its news goes to.
	GroupIDs map[string][]string
	// LookbackDays is the scrape window used when a run does not set one.
	LookbackDays int
}

// Pipeline runs the stages against the document store.
type Pipeline struct {
	store *store.Store
	deps  Deps
	now   func() time.Time
}

// New builds a pipeline over st.
func New(st *store.Store, deps Deps) *Pipeline {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics(nil)
	}
	if deps.LookbackDays <= 0 {
		deps.LookbackDays = 7
	}
	return &Pipeline{store: st, deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

// Store exposes the document store the pipeline works on.
func (p *Pipeline) Store() *store.Store {
	return p.store
}

func (p *Pipeline) observe(stage string, start time.Time) {
	p.deps.Metrics.duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// Status is the summary shown by the status command.
type Status struct {
	Counts     store.Counts      `json:"counts"`
	NextAction string            `json:"next_action"`
	LatestRun  *models.ScrapeRun `json:"latest_run,omitempty"`
}

// Status counts every queue and suggests the next command.
func (p *Pipeline) Status(ctx context.Context) (*Status, error) {
	counts, err := p.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}
	st := &Status{Counts: counts, NextAction: counts.NextAction()}
	run, err := p.store.LatestRun(ctx)
	switch {
	case err == nil:
		st.LatestRun = run
	case !errors.Is(err, store.ErrNotFound):
		log.Warn().Err(err).Msg("Failed to load latest scrape run")
	}
	return st, nil
}
