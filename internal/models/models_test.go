package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArticleID(t *testing.T) {
	id := ArticleID("Georgia DOT announces new funding", "https://www.dot.ga.gov/news/1", "Georgia DOT")
	require.Len(t, id, 12)
	require.Equal(t, id, ArticleID("Georgia DOT announces new funding", "https://www.dot.ga.gov/news/1", "Georgia DOT"))
	require.NotEqual(t, id, ArticleID("Georgia DOT announces new funding", "https://www.dot.ga.gov/news/2", "Georgia DOT"))

	// md5("") = d41d8cd98f00b204e9800998ecf8427e
	require.Equal(t, "d41d8cd98f00", ArticleID("", "", ""))
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		kind     Kind
		from, to Status
		ok       bool
	}{
		{KindArticle, ArticlePendingReview, ArticleApproved, true},
		{KindArticle, ArticlePendingReview, ArticleRejected, true},
		{KindArticle, ArticleRejected, ArticlePendingReview, false},
		{KindArticle, ArticleRejected, ArticleRejected, false},
		{KindArticle, ArticleApproved, ArticleRejected, false},
		{KindReport, ReportPendingGraphics, ReportPendingApproval, true},
		{KindReport, ReportPendingGraphics, ReportApproved, false},
		{KindReport, ReportPendingApproval, ReportApproved, true},
		{KindReport, ReportPendingApproval, ReportRejected, true},
		{KindReport, ReportPendingApproval, ReportPendingApproval, true},
		{KindReport, ReportRejected, ReportPendingApproval, false},
		{KindContent, ContentApproved, ContentPosted, true},
		{KindContent, ContentPosted, ContentApproved, false},
		{KindContent, ContentPosted, ContentPosted, true},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.kind, tc.from, tc.to), "%s %s -> %s", tc.kind, tc.from, tc.to)
	}

	err := CheckTransition(KindReport, ReportRejected, ReportApproved)
	require.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestValidInitial(t *testing.T) {
	require.True(t, ValidInitial(KindArticle, ArticlePendingReview))
	require.True(t, ValidInitial(KindReport, ReportPendingGraphics))
	require.False(t, ValidInitial(KindReport, ReportApproved))
	require.False(t, ValidInitial(KindContent, ContentPosted))
}

func TestNewApprovedContent(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	r := &Report{
		ID:               "abc123def456",
		Headline:         "Georgia Expands Aggregate Hauling Routes",
		ExecutiveSummary: "Summary",
		SocialPost:       "Post #NDTA",
		GraphicPath:      "data/graphics/graphic_abc123def456.png",
		IsStateSpecific:  true,
		DetectedStates: []DetectedState{
			{Abbr: "GA", Name: "Georgia", SuggestedGroups: []string{"Georgia Dump Truck Operators"}},
		},
	}

	c := NewApprovedContent(r, "admin", now)
	require.Equal(t, r.ID, c.ID)
	require.Equal(t, "Georgia", c.State)
	require.Equal(t, "GA", c.StateAbbr)
	require.Equal(t, []string{"Georgia Dump Truck Operators"}, c.SuggestedGroups)
	require.Equal(t, ContentApproved, c.Status)
	require.False(t, c.Posted)

	r.IsStateSpecific = false
	c = NewApprovedContent(r, "admin", now)
	require.Empty(t, c.State)
	require.Empty(t, c.SuggestedGroups)
}
