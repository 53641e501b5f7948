package pipeline

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"ndta-news/pipeline/internal/config"
	"ndta-news/pipeline/internal/content"
	"ndta-news/pipeline/internal/graphics"
	"ndta-news/pipeline/internal/llm"
	"ndta-news/pipeline/internal/notify"
	"ndta-news/pipeline/internal/relevance"
	"ndta-news/pipeline/internal/scrape"
	"ndta-news/pipeline/internal/social"
	"ndta-news/pipeline/internal/states"
	"ndta-news/pipeline/internal/store"
	"ndta-news/pipeline/internal/verify"
)

// Services are the concrete components behind a pipeline built from
// configuration, for commands that use them directly.
type Services struct {
	LLM       *llm.Client
	Generator *content.Generator
	Registry  *scrape.Registry
	Publisher *social.Publisher
	Facebook  *social.Facebook
	Notifier  *notify.Notifier
	Detector  *states.Detector
}

// Build wires every component from cfg. reg receives the pipeline metrics
// and may be nil.
func Build(ctx context.Context, cfg *config.Config, st *store.Store, reg prometheus.Registerer) (*Pipeline, *Services, error) {
	client, err := llm.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	policy, err := states.ParsePolicy(cfg.States.AbbreviationPolicy)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid state detection settings: %w", err)
	}
	detector := states.NewDetector(policy, cfg.States.ExcludeAbbrevs, nil)

	renderer, err := graphics.NewRenderer(cfg, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise graphics: %w", err)
	}

	svc := &Services{
		LLM:       client,
		Generator: content.NewGenerator(client),
		Registry: scrape.NewRegistry(
			scrape.NewRSS(cfg, st),
			scrape.NewNewsAPI(cfg, nil),
			scrape.NewReddit(ctx, cfg),
			scrape.NewDOT(cfg, st, nil),
		),
		Publisher: social.NewDefaultPublisher(ctx, cfg),
		Facebook:  social.NewFacebook(cfg, nil),
		Notifier:  notify.New(cfg),
		Detector:  detector,
	}

	deps := Deps{
		Scraper:      svc.Registry,
		Verifier:     verify.NewScorer(client),
		Relevance:    relevance.NewChecker(client),
		States:       detector,
		Writer:       svc.Generator,
		FullText:     scrape.NewFullText(nil, cfg.Scraping.RequestTimeout, cfg.Scraping.UserAgent),
		Renderer:     renderer,
		Publisher:    svc.Publisher,
		Notifier:     svc.Notifier,
		Metrics:      NewMetrics(reg),
		GroupIDs:     cfg.Social.FacebookGroupIDs,
		LookbackDays: cfg.Scraping.LookbackDays,
	}
	if svc.Facebook.GroupsEnabled() {
		deps.Groups = svc.Facebook
	}
	return New(st, deps), svc, nil
}
