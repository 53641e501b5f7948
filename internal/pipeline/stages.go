package pipeline

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/store"
)

// BatchStats counts the outcome of one batch stage.
type BatchStats struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Generate writes a report for every approved article that has none yet.
func (p *Pipeline) Generate(ctx context.Context) (BatchStats, error) {
	defer p.observe("generate", time.Now())
	var stats BatchStats

	articles, err := p.store.ListArticles(ctx, store.ArticleFilter{
		Statuses:      []models.Status{models.ArticleApproved},
		WithoutReport: true,
	})
	if err != nil {
		return stats, err
	}
	log.Info().Int("count", len(articles)).Msg("Generating reports")

	for _, a := range articles {
		if ctx.Err() != nil {
			break
		}
		stats.Attempted++
		p.fillContent(ctx, a)

		r, err := p.deps.Writer.Report(ctx, a)
		if err != nil {
			stats.Failed++
			p.deps.Metrics.reports.WithLabelValues(result(false)).Inc()
			log.Error().Err(err).Str("article_id", a.ID).Str("title", a.Title).Msg("Failed to generate report")
			continue
		}
		if err := p.store.InsertReport(ctx, r); err != nil {
			if errors.Is(err, store.ErrExists) {
				stats.Skipped++
				continue
			}
			stats.Failed++
			log.Error().Err(err).Str("article_id", a.ID).Msg("Failed to store report")
			continue
		}
		stats.Succeeded++
		p.deps.Metrics.reports.WithLabelValues(result(true)).Inc()
		log.Info().Str("report_id", r.ID).Str("headline", r.Headline).Msg("Report generated")
	}
	return stats, nil
}

// fillContent replaces a's content with the page text when that is longer.
// Failures keep the scraped summary.
func (p *Pipeline) fillContent(ctx context.Context, a *models.Article) {
	if p.deps.FullText == nil || a.URL == "" {
		return
	}
	text, err := p.deps.FullText.Fetch(ctx, a.URL)
	if err != nil {
		log.Debug().Err(err).Str("url", a.URL).Msg("Full text unavailable")
		return
	}
	if len(text) > len(a.Content) {
		a.Content = text
	}
}

// Graphics renders the graphic of every report waiting for one and asks for
// approval of each report that got it.
func (p *Pipeline) Graphics(ctx context.Context) (BatchStats, error) {
	defer p.observe("graphics", time.Now())
	var stats BatchStats

	reports, err := p.store.ListReports(ctx, store.ReportFilter{
		Statuses: []models.Status{models.ReportPendingGraphics},
	})
	if err != nil {
		return stats, err
	}
	log.Info().Int("count", len(reports)).Msg("Rendering graphics")

	for _, r := range reports {
		if ctx.Err() != nil {
			break
		}
		stats.Attempted++
		if err := p.RenderReport(ctx, r); err != nil {
			stats.Failed++
			log.Error().Err(err).Str("report_id", r.ID).Msg("Failed to create graphic")
			continue
		}
		stats.Succeeded++
		p.notifyApproval(ctx, r)
	}
	return stats, nil
}

// RenderReport draws the graphic of r and moves it to pending_approval. A
// failed render leaves r untouched.
func (p *Pipeline) RenderReport(ctx context.Context, r *models.Report) error {
	path, err := p.deps.Renderer.Render(ctx, r)
	p.deps.Metrics.graphics.WithLabelValues(result(err == nil)).Inc()
	if err != nil {
		return err
	}
	r.GraphicPath = path
	r.UpdatedAt = p.now()
	if err := p.store.UpdateReport(ctx, r, models.ReportPendingApproval, ActorSystem); err != nil {
		r.GraphicPath = ""
		return err
	}
	log.Info().Str("report_id", r.ID).Str("path", path).Msg("Graphic created")
	return nil
}

func (p *Pipeline) notifyApproval(ctx context.Context, r *models.Report) {
	if p.deps.Notifier == nil {
		return
	}
	err := p.deps.Notifier.ApprovalNeeded(ctx, r)
	p.deps.Metrics.emails.WithLabelValues("approval", result(err == nil)).Inc()
	if err != nil {
		log.Warn().Err(err).Str("report_id", r.ID).Msg("Approval email not sent")
	}
}

func (p *Pipeline) notifyStateAlert(ctx context.Context, c *models.ApprovedContent) {
	if p.deps.Notifier == nil {
		return
	}
	err := p.deps.Notifier.StateAlert(ctx, c)
	p.deps.Metrics.emails.WithLabelValues("state_alert", result(err == nil)).Inc()
	if err != nil {
		log.Warn().Err(err).Str("content_id", c.ID).Msg("State alert email not sent")
	}
}

// Post publishes every approved, unposted content document.
func (p *Pipeline) Post(ctx context.Context) (BatchStats, error) {
	defer p.observe("post", time.Now())
	var stats BatchStats

	items, err := p.store.ListContent(ctx, store.ContentFilter{
		Statuses:     []models.Status{models.ContentApproved},
		UnpostedOnly: true,
	})
	if err != nil {
		return stats, err
	}
	log.Info().Int("count", len(items)).Msg("Posting approved content")

	for _, c := range items {
		if ctx.Err() != nil {
			break
		}
		stats.Attempted++
		if err := p.PostContent(ctx, c); err != nil {
			stats.Failed++
			log.Error().Err(err).Str("content_id", c.ID).Str("headline", c.Headline).Msg("Failed to post content")
			continue
		}
		stats.Succeeded++
	}
	return stats, nil
}

// errNothingPosted is returned when every platform failed.
var errNothingPosted = errors.New("no platform accepted the post")

// PostContent posts c everywhere. It is marked posted when at least one
// platform succeeded; otherwise the attempt is recorded and c stays approved.
func (p *Pipeline) PostContent(ctx context.Context, c *models.ApprovedContent) error {
	results, ok := p.deps.Publisher.PostAll(ctx, c)
	for _, res := range results {
		p.deps.Metrics.posts.WithLabelValues(res.Platform, result(res.Success)).Inc()
	}
	c.PlatformResults = append(c.PlatformResults, results...)

	if !ok {
		if err := p.store.UpdateContent(ctx, c, models.ContentApproved, ActorSystem); err != nil {
			log.Warn().Err(err).Str("content_id", c.ID).Msg("Failed to record posting attempt")
		}
		return errNothingPosted
	}

	c.Posted = true
	c.PostedAt = p.now()
	err := p.store.UpdateContent(ctx, c, models.ContentPosted, ActorSystem)
	if errors.Is(err, store.ErrVersionConflict) {
		// Edited while posting. The platforms already hold the post, so the
		// results go onto the fresh copy instead of being dropped.
		err = p.markPosted(ctx, c, results)
	}
	if err != nil {
		c.Posted = false
		log.Error().Err(err).
			Str("content_id", c.ID).
			Strs("post_ids", postIDs(results)).
			Msg("Content was posted but could not be marked posted; it may be posted again")
		return err
	}
	log.Info().Str("content_id", c.ID).Str("headline", c.Headline).Msg("Content posted")
	return nil
}

// markPosted records results on the stored copy of c and marks it posted.
func (p *Pipeline) markPosted(ctx context.Context, c *models.ApprovedContent, results []models.PlatformResult) error {
	fresh, err := p.store.GetContent(ctx, c.ID)
	if err != nil {
		return err
	}
	fresh.PlatformResults = append(fresh.PlatformResults, results...)
	fresh.Posted = true
	fresh.PostedAt = c.PostedAt
	if err := p.store.UpdateContent(ctx, fresh, models.ContentPosted, ActorSystem); err != nil {
		return err
	}
	*c = *fresh
	return nil
}

func postIDs(results []models.PlatformResult) []string {
	var ids []string
	for _, res := range results {
		if res.Success && res.PostID != "" {
			ids = append(ids, res.Platform+":"+res.PostID)
		}
	}
	return ids
}

// StateAlert is an approved article tied to specific states.
type StateAlert struct {
	Article *models.Article `json:"article"`
	States  string          `json:"states"`
	Groups  []string        `json:"suggested_groups"`
}

// StateAlerts lists the approved state-specific articles.
func (p *Pipeline) StateAlerts(ctx context.Context) ([]StateAlert, error) {
	articles, err := p.store.ListArticles(ctx, store.ArticleFilter{
		Statuses:          []models.Status{models.ArticleApproved},
		StateSpecificOnly: true,
	})
	if err != nil {
		return nil, err
	}
	alerts := make([]StateAlert, 0, len(articles))
	for _, a := range articles {
		alerts = append(alerts, StateAlert{Article: a, States: a.StateNames(), Groups: a.SuggestedGroups()})
	}
	return alerts, nil
}

// PostStateGroups shares approved state-specific content with the Facebook
// groups configured for its state. Groups already posted to are skipped.
func (p *Pipeline) PostStateGroups(ctx context.Context) (BatchStats, error) {
	defer p.observe("state_groups", time.Now())
	var stats BatchStats
	if p.deps.Groups == nil || len(p.deps.GroupIDs) == 0 {
		return stats, nil
	}

	items, err := p.store.ListContent(ctx, store.ContentFilter{
		Statuses: []models.Status{models.ContentApproved, models.ContentPosted},
	})
	if err != nil {
		return stats, err
	}

	for _, c := range items {
		if ctx.Err() != nil {
			break
		}
		if c.StateAbbr == "" {
			continue
		}
		var posted []models.PlatformResult
		for _, group := range p.deps.GroupIDs[c.StateAbbr] {
			if postedTo(c, group) {
				stats.Skipped++
				continue
			}
			stats.Attempted++
			res := p.deps.Groups.PostGroup(ctx, c, group)
			p.deps.Metrics.posts.WithLabelValues(res.Platform, result(res.Success)).Inc()
			if res.Success {
				stats.Succeeded++
			} else {
				stats.Failed++
				log.Warn().Str("content_id", c.ID).Str("group_id", group).Str("error", res.Error).Msg("Group post failed")
			}
			posted = append(posted, res)
		}
		if len(posted) == 0 {
			continue
		}
		c.PlatformResults = append(c.PlatformResults, posted...)
		if err := p.store.UpdateContent(ctx, c, c.Status, ActorSystem); err != nil {
			log.Error().Err(err).Str("content_id", c.ID).Msg("Failed to record group posts")
		}
	}
	return stats, nil
}

func postedTo(c *models.ApprovedContent, group string) bool {
	return slices.ContainsFunc(c.PlatformResults, func(r models.PlatformResult) bool {
		return r.Platform == models.PlatformFacebookGroup && r.GroupID == group && r.Success
	})
}
