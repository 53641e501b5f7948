package review

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"ndta-news/pipeline/internal/llm"
	"ndta-news/pipeline/internal/models"
)

type fakeDecider struct {
	articles []*models.Article
	reports  []*models.Report
	actions  []string
	failOn   string
}

func (f *fakeDecider) record(action, id string) error {
	if f.failOn == action {
		return errors.New("store unavailable")
	}
	f.actions = append(f.actions, action+":"+id)
	return nil
}

func (f *fakeDecider) PendingArticles(context.Context) ([]*models.Article, error) {
	return f.articles, nil
}

func (f *fakeDecider) ApproveArticle(_ context.Context, a *models.Article, stateAlert bool, _ string) error {
	if stateAlert {
		return f.record("alert", a.ID)
	}
	return f.record("approve", a.ID)
}

func (f *fakeDecider) RejectArticle(_ context.Context, a *models.Article, _, _ string) error {
	return f.record("reject", a.ID)
}

func (f *fakeDecider) PendingReports(context.Context) ([]*models.Report, error) {
	return f.reports, nil
}

func (f *fakeDecider) ApproveReport(_ context.Context, r *models.Report, actor string) (*models.ApprovedContent, error) {
	if err := f.record("approve", r.ID); err != nil {
		return nil, err
	}
	return &models.ApprovedContent{ID: r.ID, Headline: r.Headline, ApprovedBy: actor}, nil
}

func (f *fakeDecider) RejectReport(_ context.Context, r *models.Report, _ string) error {
	return f.record("reject", r.ID)
}

func (f *fakeDecider) EditReport(_ context.Context, r *models.Report, headline, social, _ string) error {
	if headline != "" {
		r.Headline = headline
	}
	if social != "" {
		r.SocialPost = social
	}
	return f.record("edit", r.ID)
}

type suggester string

func (s suggester) Headline(context.Context, string, string) llm.Result[string] {
	return llm.Ok(string(s))
}

func articles(ids ...string) []*models.Article {
	var out []*models.Article
	for _, id := range ids {
		out = append(out, &models.Article{
			ID:             id,
			Title:          "Title " + id,
			Source:         "ENR",
			Summary:        strings.Repeat("x", 300),
			RelevanceScore: 7,
			Verification: &models.VerificationResult{
				OverallScore:   7.5,
				Recommendation: models.RecommendManualReview,
			},
		})
	}
	return out
}

func TestArticles(t *testing.T) {
	d := &fakeDecider{articles: articles("a1", "a2", "a3")}
	var out bytes.Buffer
	s := NewSession(d, nil, strings.NewReader("y\nmaybe\nn\ns\n"), &out, "admin")

	tally, err := s.Articles(context.Background())
	require.NoError(t, err)
	require.Equal(t, ArticleTally{Approved: 2, StateSpecific: 1, Rejected: 1}, tally)
	require.Equal(t, []string{"approve:a1", "reject:a2", "alert:a3"}, d.actions)
	require.Contains(t, out.String(), "Invalid choice. Please enter y, n, s, or q")
	require.Contains(t, out.String(), "Review complete!")
	require.Contains(t, out.String(), "Verification Score: 7.50/10")
}

func TestArticles_QuitKeepsEarlierDecisions(t *testing.T) {
	d := &fakeDecider{articles: articles("a1", "a2", "a3")}
	var out bytes.Buffer
	s := NewSession(d, nil, strings.NewReader("y\nq\n"), &out, "admin")

	tally, err := s.Articles(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, tally.Approved)
	require.Equal(t, 2, tally.Remaining)
	require.Equal(t, []string{"approve:a1"}, d.actions)
	require.Contains(t, out.String(), "Progress saved")
}

func TestArticles_EndOfInputQuits(t *testing.T) {
	d := &fakeDecider{articles: articles("a1", "a2")}
	s := NewSession(d, nil, strings.NewReader("n\n"), &bytes.Buffer{}, "admin")

	tally, err := s.Articles(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, tally.Rejected)
	require.Equal(t, 1, tally.Remaining)
}

func TestArticles_InterruptAtPrompt(t *testing.T) {
	d := &fakeDecider{articles: articles("a1", "a2")}
	in, w := io.Pipe()
	defer w.Close()
	var out bytes.Buffer
	s := NewSession(d, nil, in, &out, "admin")

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		tally ArticleTally
		err   error
	}
	done := make(chan result, 1)
	go func() {
		tally, err := s.Articles(ctx)
		done <- result{tally, err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case res := <-done:
		require.ErrorIs(t, res.err, context.Canceled)
		require.Equal(t, 2, res.tally.Remaining)
		require.Empty(t, d.actions)
		require.Contains(t, out.String(), "Review interrupted. Progress saved.")
	case <-time.After(2 * time.Second):
		t.Fatal("review kept waiting for input after the context was cancelled")
	}
}

func TestArticles_Empty(t *testing.T) {
	var out bytes.Buffer
	s := NewSession(&fakeDecider{}, nil, strings.NewReader(""), &out, "admin")

	_, err := s.Articles(context.Background())
	require.NoError(t, err)
	require.Contains(t, out.String(), "No articles to review")
}

func TestArticles_StoreError(t *testing.T) {
	d := &fakeDecider{articles: articles("a1"), failOn: "approve"}
	s := NewSession(d, nil, strings.NewReader("y\n"), &bytes.Buffer{}, "admin")

	_, err := s.Articles(context.Background())
	require.Error(t, err)
}

func TestReports(t *testing.T) {
	d := &fakeDecider{reports: []*models.Report{
		{ID: "r1", Headline: "Old headline", SocialPost: "Old post", GraphicPath: "data/graphics/graphic_r1.png",
			IsStateSpecific: true, DetectedStates: []models.DetectedState{{Abbr: "GA", Name: "Georgia", SuggestedGroups: []string{"Georgia Dump Truckers"}}}},
		{ID: "r2", Headline: "Second", SocialPost: "Second post"},
	}}
	var out bytes.Buffer
	in := strings.NewReader("e\nNew headline\n\na\nr\n")
	s := NewSession(d, suggester("Suggested line"), in, &out, "admin")

	tally, err := s.Reports(context.Background())
	require.NoError(t, err)
	require.Equal(t, ReportTally{Approved: 1, Edited: 1, Rejected: 1}, tally)
	require.Equal(t, []string{"edit:r1", "approve:r1", "reject:r2"}, d.actions)
	require.Equal(t, "New headline", d.reports[0].Headline)
	require.Equal(t, "Old post", d.reports[0].SocialPost)

	text := out.String()
	require.Contains(t, text, "STATE: Georgia")
	require.Contains(t, text, "Suggested groups: Georgia Dump Truckers")
	require.Contains(t, text, "Suggested headline: Suggested line")
	require.Contains(t, text, "Approval complete!")
}

func TestReports_EditWithoutChanges(t *testing.T) {
	d := &fakeDecider{reports: []*models.Report{{ID: "r1", Headline: "Keep", SocialPost: "Keep post"}}}
	s := NewSession(d, nil, strings.NewReader("e\n\n\nq\n"), &bytes.Buffer{}, "admin")

	tally, err := s.Reports(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, tally.Remaining)
	require.Empty(t, d.actions)
}
