package pipeline

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"ndta-news/pipeline/internal/models"
)

// Non-interactive stages that can be started by name.
const (
	StageScrape      = "scrape"
	StageGenerate    = "generate"
	StageGraphics    = "graphics"
	StagePost        = "post"
	StageStateGroups = "state-groups"
	StageAuto        = "auto"
)

// ErrUnknownStage is returned by Run for names outside Stages.
var ErrUnknownStage = errors.New("unknown stage")

// Stages lists the names Run accepts.
var Stages = []string{StageScrape, StageGenerate, StageGraphics, StagePost, StageStateGroups, StageAuto}

// AutoResult is the outcome of an unattended run.
type AutoResult struct {
	Scrape   *models.ScrapeRun `json:"scrape,omitempty"`
	Generate BatchStats        `json:"generate"`
	Graphics BatchStats        `json:"graphics"`
	Post     BatchStats        `json:"post"`
	Errors   []string          `json:"errors,omitempty"`
}

// Run executes one stage by name and returns its result.
func (p *Pipeline) Run(ctx context.Context, stage string) (any, error) {
	switch stage {
	case StageScrape:
		return p.Scrape(ctx, 0)
	case StageGenerate:
		return p.Generate(ctx)
	case StageGraphics:
		return p.Graphics(ctx)
	case StagePost:
		return p.Post(ctx)
	case StageStateGroups:
		return p.PostStateGroups(ctx)
	case StageAuto:
		return p.Auto(ctx), nil
	}
	return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownStage, stage, Stages)
}

// IsStage reports whether Run accepts name.
func IsStage(name string) bool {
	return slices.Contains(Stages, name)
}

// Auto scrapes, then generates reports and graphics for whatever is ready
// and posts content that was already approved. Reports still wait for a
// human before they are posted. A failing stage does not stop later ones.
func (p *Pipeline) Auto(ctx context.Context) AutoResult {
	var res AutoResult
	var err error

	if res.Scrape, err = p.Scrape(ctx, 0); err != nil {
		res.Errors = append(res.Errors, "scrape: "+err.Error())
	}
	if res.Generate, err = p.Generate(ctx); err != nil {
		res.Errors = append(res.Errors, "generate: "+err.Error())
	}
	if res.Graphics, err = p.Graphics(ctx); err != nil {
		res.Errors = append(res.Errors, "graphics: "+err.Error())
	}
	if res.Post, err = p.Post(ctx); err != nil {
		res.Errors = append(res.Errors, "post: "+err.Error())
	}
	return res
}
