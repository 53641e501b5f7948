package models

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
)

// SourceType identifies which scraper produced an article.
type SourceType string

const (
	SourceRSS    SourceType = "rss"
	SourceWeb    SourceType = "web"
	SourceReddit SourceType = "reddit"
	SourceDOT    SourceType = "dot"
)

// Article is a scraped news or discussion item.
type Article struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Source     string     `json:"source"`
	SourceType SourceType `json:"source_type"`
	Summary    string     `json:"summary"`
	Content    string     `json:"content,omitempty"`

	PublishedDate time.Time `json:"published_date,omitzero"`
	ScrapedAt     time.Time `json:"scraped_at"`
	ProcessedAt   time.Time `json:"processed_at,omitzero"`
	ReviewedAt    time.Time `json:"reviewed_at,omitzero"`

	// SourceRelevance is the prior a scraper assigns before the AI check.
	SourceRelevance float64 `json:"source_relevance,omitempty"`
	RelevanceScore  float64 `json:"relevance_score"`
	RelevanceReason string  `json:"relevance_reason,omitempty"`
	IsRelevant      bool    `json:"is_relevant"`

	IsStateSpecific bool            `json:"is_state_specific"`
	DetectedStates  []DetectedState `json:"detected_states,omitempty"`
	StateConfidence float64         `json:"state_confidence,omitempty"`

	Verification *VerificationResult `json:"verification,omitempty"`

	Status             Status `json:"status"`
	RejectionReason    string `json:"rejection_reason,omitempty"`
	AutoApproved       bool   `json:"auto_approved,omitempty"`
	StateSpecificAlert bool   `json:"state_specific_alert,omitempty"`

	Extra map[string]string `json:"extra,omitempty"`

	Version int `json:"version"`
}

// ArticleID derives the stable document id of an article: the first 12 hex
// characters of md5(title + url + source).
func ArticleID(title, url, source string) string {
	sum := md5.Sum([]byte(title + url + source))
	return hex.EncodeToString(sum[:])[:12]
}

// AssignID sets a.ID from its identifying fields.
func (a *Article) AssignID() {
	a.ID = ArticleID(a.Title, a.URL, a.Source)
}

// StateNames joins the detected state names for display.
func (a *Article) StateNames() string {
	names := make([]string, 0, len(a.DetectedStates))
	for _, s := range a.DetectedStates {
		names = append(names, s.Name)
	}
	return strings.Join(names, ", ")
}

// SuggestedGroups collects the Facebook groups of every detected state.
func (a *Article) SuggestedGroups() []string {
	var groups []string
	for _, s := range a.DetectedStates {
		groups = append(groups, s.SuggestedGroups...)
	}
	return groups
}

// DetectedState is a U.S. state named in an article.
type DetectedState struct {
	Abbr            string   `json:"abbr"`
	Name            string   `json:"name"`
	SuggestedGroups []string `json:"suggested_groups,omitempty"`
}
