package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/scrape"
	"ndta-news/pipeline/internal/states"
	"ndta-news/pipeline/internal/store"
	"ndta-news/pipeline/internal/store/storetest"
)

type fakeScraper struct {
	articles func() []*models.Article
}

func (f fakeScraper) ScrapeAll(context.Context, scrape.Request) ([]*models.Article, map[string]int) {
	a := f.articles()
	return a, map[string]int{"fake": len(a)}
}

// fakeVerifier recommends by title prefix: "trusted" auto-approves, "spam"
// rejects, anything else goes to manual review.
type fakeVerifier struct {
	calls int
}

func (f *fakeVerifier) Verify(_ context.Context, a *models.Article) *models.VerificationResult {
	f.calls++
	rec := models.RecommendManualReview
	switch {
	case strings.HasPrefix(a.Title, "trusted"):
		rec = models.RecommendAutoApprove
	case strings.HasPrefix(a.Title, "spam"):
		rec = models.RecommendReject
	}
	return &models.VerificationResult{Recommendation: rec, OverallScore: 7}
}

type fakeRelevance map[string]float64

func (f fakeRelevance) Apply(_ context.Context, a *models.Article) {
	score, ok := f[a.Title]
	if !ok {
		a.IsRelevant, a.RelevanceScore, a.RelevanceReason = true, 5, "fallback"
		return
	}
	a.IsRelevant, a.RelevanceScore, a.RelevanceReason = score >= 5, score, "scored"
}

type fakeWriter struct {
	fail     bool
	contents []string
}

func (f *fakeWriter) Report(_ context.Context, a *models.Article) (*models.Report, error) {
	f.contents = append(f.contents, a.Content)
	if f.fail {
		return nil, errors.New("incomplete report")
	}
	return &models.Report{
		ID:               a.ID,
		ArticleID:        a.ID,
		Headline:         "NDTA: " + a.Title,
		ExecutiveSummary: a.Summary,
		SocialPost:       a.Title + " #NDTA",
		IsStateSpecific:  a.IsStateSpecific,
		DetectedStates:   a.DetectedStates,
		Status:           models.ReportPendingGraphics,
		GeneratedAt:      time.Now().UTC(),
	}, nil
}

type fakeFullText string

func (f fakeFullText) Fetch(context.Context, string) (string, error) {
	if f == "" {
		return "", errors.New("blocked")
	}
	return string(f), nil
}

type fakeRenderer struct {
	err error
}

func (f fakeRenderer) Render(_ context.Context, r *models.Report) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/graphic_" + r.ID + ".png", nil
}

type fakePublisher struct {
	ok    bool
	calls int
	// during runs while the post is in flight.
	during func(c *models.ApprovedContent)
}

func (f *fakePublisher) PostAll(_ context.Context, c *models.ApprovedContent) ([]models.PlatformResult, bool) {
	f.calls++
	if f.during != nil {
		f.during(c)
	}
	return []models.PlatformResult{
		{Platform: models.PlatformTwitter, Success: f.ok, PostID: "tw-1", Error: "rate limited"},
		{Platform: models.PlatformFacebook, Success: false, Error: "token expired"},
	}, f.ok
}

type fakeGroups struct {
	posted []string
}

func (f *fakeGroups) PostGroup(_ context.Context, _ *models.ApprovedContent, groupID string) models.PlatformResult {
	f.posted = append(f.posted, groupID)
	return models.PlatformResult{Platform: models.PlatformFacebookGroup, GroupID: groupID, Success: true, PostID: "p-" + groupID}
}

type fakeNotifier struct {
	approvals []string
	alerts    []string
}

func (f *fakeNotifier) ApprovalNeeded(_ context.Context, r *models.Report) error {
	f.approvals = append(f.approvals, r.ID)
	return nil
}

func (f *fakeNotifier) StateAlert(_ context.Context, c *models.ApprovedContent) error {
	f.alerts = append(f.alerts, c.StateAbbr)
	return nil
}

type fixture struct {
	p         *Pipeline
	st        *store.Store
	verifier  *fakeVerifier
	writer    *fakeWriter
	publisher *fakePublisher
	groups    *fakeGroups
	notifier  *fakeNotifier
	metrics   *Metrics
}

func newFixture(t *testing.T, scraped func() []*models.Article) *fixture {
	t.Helper()
	f := &fixture{
		st:        storetest.New(t),
		verifier:  &fakeVerifier{},
		writer:    &fakeWriter{},
		publisher: &fakePublisher{ok: true},
		groups:    &fakeGroups{},
		notifier:  &fakeNotifier{},
		metrics:   NewMetrics(prometheus.NewRegistry()),
	}
	if scraped == nil {
		scraped = func() []*models.Article { return nil }
	}
	f.p = New(f.st, Deps{
		Scraper:  fakeScraper{articles: scraped},
		Verifier: f.verifier,
		Relevance: fakeRelevance{
			"trusted bridge funding":            9,
			"trusted local bake sale":           2,
			"Georgia DOT announces new funding": 7,
		},
		States:    states.NewDetector(states.AbbrevUnambiguous, nil, nil),
		Writer:    f.writer,
		FullText:  fakeFullText(strings.Repeat("Full article text. ", 40)),
		Renderer:  fakeRenderer{},
		Publisher: f.publisher,
		Groups:    f.groups,
		Notifier:  f.notifier,
		Metrics:   f.metrics,
		GroupIDs:  map[string][]string{"GA": {"111", "222"}},
	})
	return f
}

func article(title string) *models.Article {
	return &models.Article{
		Title:         title,
		URL:           "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		Source:        "Example",
		SourceType:    models.SourceRSS,
		Summary:       "Summary of " + title,
		PublishedDate: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		ScrapedAt:     time.Now().UTC(),
	}
}

func stored(t *testing.T, st *store.Store, a *models.Article) *models.Article {
	t.Helper()
	a.AssignID()
	require.NoError(t, st.InsertArticle(context.Background(), a, ""))
	return a
}

func TestProcessArticle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	auto := article("trusted bridge funding")
	f.p.ProcessArticle(ctx, auto)
	require.Equal(t, models.ArticleApproved, auto.Status)
	require.True(t, auto.AutoApproved)
	require.NotEmpty(t, auto.ID)
	require.False(t, auto.ProcessedAt.IsZero())

	low := article("trusted local bake sale")
	f.p.ProcessArticle(ctx, low)
	require.Equal(t, models.ArticlePendingReview, low.Status)
	require.False(t, low.AutoApproved)
	require.False(t, low.IsRelevant)

	spam := article("spam miracle trucks")
	f.p.ProcessArticle(ctx, spam)
	require.Equal(t, models.ArticleRejected, spam.Status)
	require.Equal(t, "Failed verification checks", spam.RejectionReason)
	require.Zero(t, spam.RelevanceScore)

	ga := article("Georgia DOT announces new funding")
	f.p.ProcessArticle(ctx, ga)
	require.Equal(t, models.ArticlePendingReview, ga.Status)
	require.True(t, ga.IsStateSpecific)
	require.Equal(t, []models.DetectedState{{Abbr: "GA", Name: "Georgia", SuggestedGroups: states.DefaultGroups["GA"]}}, ga.DetectedStates)
	require.Equal(t, 0.8, ga.StateConfidence)

	unknown := article("quarry permit hearing")
	f.p.ProcessArticle(ctx, unknown)
	require.Equal(t, models.ArticlePendingReview, unknown.Status)
	require.Equal(t, 5.0, unknown.RelevanceScore)
}

func TestScrape(t *testing.T) {
	f := newFixture(t, func() []*models.Article {
		return []*models.Article{
			article("trusted bridge funding"),
			article("spam miracle trucks"),
			article("Georgia DOT announces new funding"),
			article("Georgia DOT announces new funding"),
			article("trusted local bake sale"),
		}
	})
	ctx := context.Background()

	run, err := f.p.Scrape(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 5, run.Total)
	require.Equal(t, 1, run.Duplicates)
	require.Equal(t, 1, run.Rejected)
	require.Equal(t, 1, run.AutoApproved)
	require.Equal(t, 2, run.Relevant)
	require.Equal(t, 1, run.HighRelevance)
	require.Equal(t, 1, run.StateSpecific)
	require.Equal(t, 4, f.verifier.calls)

	latest, err := f.st.LatestRun(ctx)
	require.NoError(t, err)
	require.Equal(t, run.ID, latest.ID)
	require.Equal(t, 3, latest.LookbackDays)
	require.True(t, latest.FinishedAt.Valid)

	pending, err := f.p.PendingArticles(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "Georgia DOT announces new funding", pending[0].Title)

	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.processed.WithLabelValues("approved")))
	require.Equal(t, 5.0, testutil.ToFloat64(f.metrics.scraped.WithLabelValues("fake")))

	// A second run finds everything stored and makes no verification calls.
	again, err := f.p.Scrape(ctx, 0)
	require.NoError(t, err)
	require.Equal(t, 5, again.Duplicates)
	require.Equal(t, 7, again.LookbackDays)
	require.Equal(t, 4, f.verifier.calls)
}

func TestArticleDecisions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	ga := article("Georgia DOT announces new funding")
	f.p.ProcessArticle(ctx, ga)
	stored(t, f.st, ga)
	require.NoError(t, f.p.ApproveArticle(ctx, ga, true, ActorAdmin))

	got, err := f.st.GetArticle(ctx, ga.ID)
	require.NoError(t, err)
	require.Equal(t, models.ArticleApproved, got.Status)
	require.True(t, got.StateSpecificAlert)
	require.False(t, got.ReviewedAt.IsZero())

	other := article("quarry permit hearing")
	f.p.ProcessArticle(ctx, other)
	stored(t, f.st, other)
	require.NoError(t, f.p.RejectArticle(ctx, other, "", ActorAdmin))

	err = f.p.ApproveArticle(ctx, other, false, ActorAdmin)
	require.ErrorIs(t, err, models.ErrInvalidTransition)

	alerts, err := f.p.StateAlerts(ctx)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	require.Equal(t, "Georgia", alerts[0].States)
	require.Equal(t, states.DefaultGroups["GA"], alerts[0].Groups)
}

func TestGenerate(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	a := article("trusted bridge funding")
	f.p.ProcessArticle(ctx, a)
	stored(t, f.st, a)
	pendingReview := article("quarry permit hearing")
	f.p.ProcessArticle(ctx, pendingReview)
	stored(t, f.st, pendingReview)

	stats, err := f.p.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, BatchStats{Attempted: 1, Succeeded: 1}, stats)
	require.Contains(t, f.writer.contents[0], "Full article text.")

	r, err := f.st.GetReport(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportPendingGraphics, r.Status)
	require.Equal(t, "NDTA: trusted bridge funding", r.Headline)

	stats, err = f.p.Generate(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Attempted)
}

func TestGenerate_FailureKeepsArticle(t *testing.T) {
	f := newFixture(t, nil)
	f.writer.fail = true
	f.p.deps.FullText = fakeFullText("")
	ctx := context.Background()

	a := article("trusted bridge funding")
	f.p.ProcessArticle(ctx, a)
	stored(t, f.st, a)

	stats, err := f.p.Generate(ctx)
	require.NoError(t, err)
	require.Equal(t, BatchStats{Attempted: 1, Failed: 1}, stats)
	require.Equal(t, "", f.writer.contents[0])

	_, err = f.st.GetReport(ctx, a.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	counts, err := f.st.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts.AwaitingReport)
}

func generated(t *testing.T, f *fixture, title string) *models.Report {
	t.Helper()
	ctx := context.Background()
	a := article(title)
	f.p.ProcessArticle(ctx, a)
	a.Status = models.ArticleApproved
	stored(t, f.st, a)
	_, err := f.p.Generate(ctx)
	require.NoError(t, err)
	r, err := f.st.GetReport(ctx, a.ID)
	require.NoError(t, err)
	return r
}

func TestGraphics(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	r := generated(t, f, "trusted bridge funding")

	stats, err := f.p.Graphics(ctx)
	require.NoError(t, err)
	require.Equal(t, BatchStats{Attempted: 1, Succeeded: 1}, stats)

	got, err := f.st.GetReport(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportPendingApproval, got.Status)
	require.NotEmpty(t, got.GraphicPath)
	require.Equal(t, []string{r.ID}, f.notifier.approvals)
}

func TestGraphics_FailureLeavesPending(t *testing.T) {
	f := newFixture(t, nil)
	f.p.deps.Renderer = fakeRenderer{err: errors.New("disk full")}
	ctx := context.Background()
	r := generated(t, f, "trusted bridge funding")

	stats, err := f.p.Graphics(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)

	got, err := f.st.GetReport(ctx, r.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportPendingGraphics, got.Status)
	require.Empty(t, got.GraphicPath)
	require.Empty(t, f.notifier.approvals)
}

func TestReportDecisions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	generated(t, f, "Georgia DOT announces new funding")
	_, err := f.p.Graphics(ctx)
	require.NoError(t, err)

	pending, err := f.p.PendingReports(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	r := pending[0]

	require.NoError(t, f.p.EditReport(ctx, r, "Georgia invests in roads", "  ", ActorAdmin))
	require.Equal(t, "Georgia DOT announces new funding #NDTA", r.SocialPost)

	c, err := f.p.ApproveReport(ctx, r, ActorAdmin)
	require.NoError(t, err)
	require.Equal(t, "Georgia invests in roads", c.Headline)
	require.Equal(t, "GA", c.StateAbbr)
	require.Equal(t, []string{"GA"}, f.notifier.alerts)

	_, err = f.p.ApproveReport(ctx, r, ActorAdmin)
	require.Error(t, err)

	other := generated(t, f, "trusted bridge funding")
	require.NoError(t, f.p.RenderReport(ctx, other))
	require.NoError(t, f.p.RejectReport(ctx, other, ActorAdmin))
	got, err := f.st.GetReport(ctx, other.ID)
	require.NoError(t, err)
	require.Equal(t, models.ReportRejected, got.Status)
	require.False(t, got.RejectedAt.IsZero())
}

func approvedContent(t *testing.T, f *fixture, title string) *models.ApprovedContent {
	t.Helper()
	ctx := context.Background()
	r := generated(t, f, title)
	require.NoError(t, f.p.RenderReport(ctx, r))
	c, err := f.p.ApproveReport(ctx, r, ActorAdmin)
	require.NoError(t, err)
	return c
}

func TestPost(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := approvedContent(t, f, "trusted bridge funding")

	stats, err := f.p.Post(ctx)
	require.NoError(t, err)
	require.Equal(t, BatchStats{Attempted: 1, Succeeded: 1}, stats)

	got, err := f.st.GetContent(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContentPosted, got.Status)
	require.True(t, got.Posted)
	require.Len(t, got.PlatformResults, 2)

	stats, err = f.p.Post(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Attempted)
}

func TestPost_EditedWhilePosting(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := approvedContent(t, f, "trusted bridge funding")

	f.publisher.during = func(inFlight *models.ApprovedContent) {
		edited, err := f.st.GetContent(ctx, inFlight.ID)
		require.NoError(t, err)
		edited.Headline = "Edited while posting"
		require.NoError(t, f.st.UpdateContent(ctx, edited, models.ContentApproved, ActorAdmin))
	}

	stats, err := f.p.Post(ctx)
	require.NoError(t, err)
	require.Equal(t, BatchStats{Attempted: 1, Succeeded: 1}, stats)

	got, err := f.st.GetContent(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContentPosted, got.Status)
	require.True(t, got.Posted)
	require.Equal(t, "Edited while posting", got.Headline)
	require.Len(t, got.PlatformResults, 2)
	require.Equal(t, "tw-1", got.PlatformResults[0].PostID)

	f.publisher.during = nil
	stats, err = f.p.Post(ctx)
	require.NoError(t, err)
	require.Zero(t, stats.Attempted)
	require.Equal(t, 1, f.publisher.calls)
}

func TestPost_TotalFailureStaysUnposted(t *testing.T) {
	f := newFixture(t, nil)
	f.publisher.ok = false
	ctx := context.Background()
	c := approvedContent(t, f, "trusted bridge funding")

	stats, err := f.p.Post(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Failed)

	got, err := f.st.GetContent(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContentApproved, got.Status)
	require.False(t, got.Posted)
	require.Len(t, got.PlatformResults, 2)

	f.publisher.ok = true
	stats, err = f.p.Post(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Succeeded)
	require.Equal(t, 2, f.publisher.calls)
}

func TestPostStateGroups(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := approvedContent(t, f, "Georgia DOT announces new funding")
	approvedContent(t, f, "trusted bridge funding")

	stats, err := f.p.PostStateGroups(ctx)
	require.NoError(t, err)
	require.Equal(t, BatchStats{Attempted: 2, Succeeded: 2}, stats)
	require.Equal(t, []string{"111", "222"}, f.groups.posted)

	got, err := f.st.GetContent(ctx, c.ID)
	require.NoError(t, err)
	require.Equal(t, models.ContentApproved, got.Status)
	require.Len(t, got.PlatformResults, 2)

	stats, err = f.p.PostStateGroups(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Skipped)
	require.Len(t, f.groups.posted, 2)
}

func TestStatus(t *testing.T) {
	f := newFixture(t, func() []*models.Article {
		return []*models.Article{article("Georgia DOT announces new funding")}
	})
	ctx := context.Background()

	st, err := f.p.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "scrape", st.NextAction)
	require.Nil(t, st.LatestRun)

	_, err = f.p.Scrape(ctx, 7)
	require.NoError(t, err)

	st, err = f.p.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, st.Counts.ArticlesPending)
	require.Equal(t, "review", st.NextAction)
	require.NotNil(t, st.LatestRun)
}

func TestRun(t *testing.T) {
	f := newFixture(t, func() []*models.Article {
		return []*models.Article{article("trusted bridge funding"), article("spam miracle trucks")}
	})
	ctx := context.Background()

	_, err := f.p.Run(ctx, "deploy")
	require.ErrorIs(t, err, ErrUnknownStage)
	require.False(t, IsStage("deploy"))

	out, err := f.p.Run(ctx, StageAuto)
	require.NoError(t, err)
	res := out.(AutoResult)
	require.Empty(t, res.Errors)
	require.Equal(t, 2, res.Scrape.Total)
	require.Equal(t, BatchStats{Attempted: 1, Succeeded: 1}, res.Generate)
	require.Equal(t, BatchStats{Attempted: 1, Succeeded: 1}, res.Graphics)
	require.Zero(t, res.Post.Attempted)

	st, err := f.p.Status(ctx)
	require.NoError(t, err)
	require.Equal(t, "approve", st.NextAction)
}
