package models

import "time"

// Report is the branded write-up generated from an approved article. Its id
// is the article id.
type Report struct {
	ID               string   `json:"id"`
	ArticleID        string   `json:"original_article_id"`
	Headline         string   `json:"headline"`
	ExecutiveSummary string   `json:"executive_summary"`
	KeyFacts         []string `json:"key_facts"`
	IndustryImpact   string   `json:"industry_impact"`
	NDTAPerspective  string   `json:"ndta_perspective"`
	ActionItems      []string `json:"action_items"`
	CallToAction     string   `json:"call_to_action"`
	SocialPost       string   `json:"social_post"`
	GraphicPath      string   `json:"graphic_path,omitempty"`

	SourceArticle   SourceRef       `json:"source_article"`
	IsStateSpecific bool            `json:"is_state_specific"`
	DetectedStates  []DetectedState `json:"detected_states,omitempty"`

	Status      Status    `json:"status"`
	GeneratedAt time.Time `json:"generated_at"`
	UpdatedAt   time.Time `json:"updated_at,omitzero"`
	ApprovedAt  time.Time `json:"approved_at,omitzero"`
	ApprovedBy  string    `json:"approved_by,omitempty"`
	RejectedAt  time.Time `json:"rejected_at,omitzero"`

	Version int `json:"version"`
}

// SourceRef points a report back at the article it came from.
type SourceRef struct {
	Title  string    `json:"title"`
	URL    string    `json:"url"`
	Source string    `json:"source"`
	Date   time.Time `json:"date,omitzero"`
}

// PrimaryState returns the first detected state of a state-specific report.
func (r *Report) PrimaryState() (DetectedState, bool) {
	if !r.IsStateSpecific || len(r.DetectedStates) == 0 {
		return DetectedState{}, false
	}
	return r.DetectedStates[0], true
}

// SuggestedGroups collects the Facebook groups of a state-specific report.
func (r *Report) SuggestedGroups() []string {
	if !r.IsStateSpecific {
		return nil
	}
	var groups []string
	for _, s := range r.DetectedStates {
		groups = append(groups, s.SuggestedGroups...)
	}
	return groups
}
