package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/store"
	"ndta-news/pipeline/internal/store/storetest"
)

func newArticle(title string, status models.Status) *models.Article {
	a := &models.Article{
		Title:         title,
		URL:           "https://www.enr.com/articles/" + title,
		Source:        "ENR",
		SourceType:    models.SourceRSS,
		Summary:       "Summary of " + title,
		PublishedDate: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
		ScrapedAt:     time.Now().UTC(),
		Status:        status,
	}
	a.AssignID()
	return a
}

func TestInsertArticle_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	a := newArticle("bridge", models.ArticlePendingReview)
	require.NoError(t, s.InsertArticle(ctx, a, ""))

	dup := newArticle("bridge", models.ArticleApproved)
	err := s.InsertArticle(ctx, dup, "")
	require.True(t, errors.Is(err, store.ErrExists))

	got, err := s.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.ArticlePendingReview, got.Status)
	require.Equal(t, 1, got.Version)
	require.Equal(t, a.Title, got.Title)
}

func TestInsertArticle_InvalidInitial(t *testing.T) {
	s := storetest.New(t)
	a := newArticle("bridge", models.ReportPendingGraphics)
	err := s.InsertArticle(context.Background(), a, "")
	require.True(t, errors.Is(err, models.ErrInvalidTransition))
}

func TestUpdateArticle_VersionConflict(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	a := newArticle("bridge", models.ArticlePendingReview)
	require.NoError(t, s.InsertArticle(ctx, a, ""))

	first, err := s.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	second, err := s.GetArticle(ctx, a.ID)
	require.NoError(t, err)

	require.NoError(t, s.UpdateArticle(ctx, first, models.ArticleApproved, "reviewer"))
	require.Equal(t, 2, first.Version)

	err = s.UpdateArticle(ctx, second, models.ArticleRejected, "reviewer")
	require.True(t, errors.Is(err, store.ErrVersionConflict))
	require.Equal(t, models.ArticlePendingReview, second.Status)

	got, err := s.GetArticle(ctx, a.ID)
	require.NoError(t, err)
	require.Equal(t, models.ArticleApproved, got.Status)
}

func TestUpdateArticle_RejectedIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	a := newArticle("spam", models.ArticleRejected)
	require.NoError(t, s.InsertArticle(ctx, a, ""))

	err := s.UpdateArticle(ctx, a, models.ArticleApproved, "reviewer")
	require.True(t, errors.Is(err, models.ErrInvalidTransition))

	err = s.UpdateArticle(ctx, a, models.ArticleRejected, "reviewer")
	require.True(t, errors.Is(err, models.ErrInvalidTransition))
}

func TestTransitionsLog(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	a := newArticle("bridge", models.ArticlePendingReview)
	require.NoError(t, s.InsertArticle(ctx, a, ""))
	a.RelevanceReason = "edited"
	require.NoError(t, s.UpdateArticle(ctx, a, models.ArticlePendingReview, "reviewer"))
	require.NoError(t, s.UpdateArticle(ctx, a, models.ArticleApproved, "reviewer"))

	log, err := s.Transitions(ctx, models.KindArticle, a.ID)
	require.NoError(t, err)
	require.Len(t, log, 2)
	require.Equal(t, "", log[0].FromStatus)
	require.Equal(t, string(models.ArticlePendingReview), log[0].ToStatus)
	require.Equal(t, "system", log[0].Actor)
	require.Equal(t, string(models.ArticleApproved), log[1].ToStatus)
	require.Equal(t, "reviewer", log[1].Actor)
}

func TestListArticles_Filters(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	pending := newArticle("pending", models.ArticlePendingReview)
	relevant := newArticle("relevant", models.ArticleApproved)
	relevant.IsRelevant = true
	relevant.IsStateSpecific = true
	other := newArticle("other", models.ArticleApproved)
	other.IsRelevant = true
	for _, a := range []*models.Article{pending, relevant, other} {
		require.NoError(t, s.InsertArticle(ctx, a, ""))
	}

	got, err := s.ListArticles(ctx, store.ArticleFilter{Statuses: []models.Status{models.ArticleApproved}, RelevantOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 2)

	got, err = s.ListArticles(ctx, store.ArticleFilter{StateSpecificOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, relevant.ID, got[0].ID)

	r := &models.Report{ID: relevant.ID, ArticleID: relevant.ID, Status: models.ReportPendingGraphics}
	require.NoError(t, s.InsertReport(ctx, r))

	got, err = s.ListArticles(ctx, store.ArticleFilter{Statuses: []models.Status{models.ArticleApproved}, WithoutReport: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, other.ID, got[0].ID)
}

func TestArticlePage(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	for _, title := range []string{"a", "b", "c"} {
		require.NoError(t, s.InsertArticle(ctx, newArticle(title, models.ArticlePendingReview), ""))
	}

	page, created, err := s.ArticlePage(ctx, 2, nil, nil, nil)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Len(t, created, 2)

	ts, id := created[1], page[1].ID
	rest, _, err := s.ArticlePage(ctx, 2, nil, &ts, &id)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.NotEqual(t, page[0].ID, rest[0].ID)
	require.NotEqual(t, page[1].ID, rest[0].ID)
}

func TestApproveReport(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	r := &models.Report{ID: "abc123def456", ArticleID: "abc123def456", Headline: "H", Status: models.ReportPendingGraphics}
	require.NoError(t, s.InsertReport(ctx, r))
	r.GraphicPath = "graphic_abc123def456.png"
	require.NoError(t, s.UpdateReport(ctx, r, models.ReportPendingApproval, "graphics"))

	// Approving a stale copy after a concurrent edit stores nothing and
	// leaves no content transition behind.
	stale := *r
	edited := *r
	edited.Headline = "Edited"
	require.NoError(t, s.UpdateReport(ctx, &edited, models.ReportPendingApproval, "admin"))
	err := s.ApproveReport(ctx, &stale, models.NewApprovedContent(&stale, "admin", time.Now().UTC()), "admin")
	require.ErrorIs(t, err, store.ErrVersionConflict)
	require.Equal(t, models.ReportPendingApproval, stale.Status)
	_, err = s.GetContent(ctx, r.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	events, err := s.Transitions(ctx, models.KindContent, r.ID)
	require.NoError(t, err)
	require.Empty(t, events)

	r = &edited
	c := models.NewApprovedContent(r, "admin", time.Now().UTC())
	require.NoError(t, s.ApproveReport(ctx, r, c, "admin"))
	require.Equal(t, models.ReportApproved, r.Status)
	require.Equal(t, 4, r.Version)

	events, err = s.Transitions(ctx, models.KindContent, r.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "approved", events[0].ToStatus)
	events, err = s.Transitions(ctx, models.KindReport, r.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, "admin", events[2].Actor)

	ready, err := s.ListContent(ctx, store.ContentFilter{UnpostedOnly: true})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	require.Equal(t, "Edited", ready[0].Headline)
	require.Equal(t, "graphic_abc123def456.png", ready[0].GraphicPath)

	// A second approval of the same report is refused and leaves one document.
	again := *r
	err = s.ApproveReport(ctx, &again, models.NewApprovedContent(r, "admin", time.Now().UTC()), "admin")
	require.Error(t, err)
	n, err := s.CountContent(ctx, store.ContentFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestSourceHealth(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	src, err := s.EnsureSource(ctx, "rss", "https://www.enr.com/rss/articles", "ENR")
	require.NoError(t, err)
	require.Equal(t, models.SourceActive, src.Status)

	again, err := s.EnsureSource(ctx, "rss", "https://www.enr.com/rss/articles", "ENR")
	require.NoError(t, err)
	require.Equal(t, src.ID, again.ID)

	require.NoError(t, s.RecordFetch(ctx, src, errors.New("HTTP 429 Too Many Requests")))
	require.Equal(t, models.SourceRateLimited, src.Status)
	require.Zero(t, src.FailuresCount)

	for i := 0; i <= store.MaxSourceFailures; i++ {
		require.NoError(t, s.RecordFetch(ctx, src, errors.New("connection refused")))
	}
	require.Equal(t, models.SourceFailed, src.Status)

	active, err := s.ListSources(ctx, "rss", true)
	require.NoError(t, err)
	require.Empty(t, active)

	require.NoError(t, s.RecordFetch(ctx, src, nil))
	require.Equal(t, models.SourceActive, src.Status)
	require.Zero(t, src.FailuresCount)
}

func TestRunsAndCounts(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)

	run, err := s.StartRun(ctx, 7)
	require.NoError(t, err)
	run.Total = 3
	run.Relevant = 2
	require.NoError(t, s.FinishRun(ctx, run))

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	require.Equal(t, run.ID, latest.ID)
	require.Equal(t, 3, latest.Total)
	require.True(t, latest.FinishedAt.Valid)

	require.NoError(t, s.InsertArticle(ctx, newArticle("p", models.ArticlePendingReview), run.ID))
	require.NoError(t, s.InsertArticle(ctx, newArticle("a", models.ArticleApproved), run.ID))

	c, err := s.Counts(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, c.ArticlesPending)
	require.Equal(t, 1, c.AwaitingReport)
	require.Equal(t, "review", c.NextAction())
}
