package models

import "time"

// Platform names used in posting results.
const (
	PlatformTwitter       = "twitter"
	PlatformFacebook      = "facebook"
	PlatformFacebookGroup = "facebook_group"
)

// PlatformResult records one posting attempt.
type PlatformResult struct {
	Platform string `json:"platform"`
	Success  bool   `json:"success"`
	URL      string `json:"url,omitempty"`
	PostID   string `json:"post_id,omitempty"`
	GroupID  string `json:"group_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ApprovedContent is a report promoted by human approval and waiting to be
// posted. Its id is the report id.
type ApprovedContent struct {
	ID              string   `json:"id"`
	Headline        string   `json:"headline"`
	Summary         string   `json:"summary"`
	SocialText      string   `json:"social_text"`
	GraphicPath     string   `json:"graphic_path,omitempty"`
	State           string   `json:"state,omitempty"`
	StateAbbr       string   `json:"state_abbr,omitempty"`
	SuggestedGroups []string `json:"suggested_groups,omitempty"`

	ApprovalStatus string    `json:"approval_status"`
	ApprovedBy     string    `json:"approved_by"`
	ApprovedAt     time.Time `json:"approved_at"`

	Status          Status           `json:"status"`
	Posted          bool             `json:"posted"`
	PostedAt        time.Time        `json:"posted_at,omitzero"`
	PlatformResults []PlatformResult `json:"platform_results,omitempty"`

	Version int `json:"version"`
}

// NewApprovedContent builds the posting document for an approved report.
func NewApprovedContent(r *Report, approvedBy string, now time.Time) *ApprovedContent {
	c := &ApprovedContent{
		ID:              r.ID,
		Headline:        r.Headline,
		Summary:         r.ExecutiveSummary,
		SocialText:      r.SocialPost,
		GraphicPath:     r.GraphicPath,
		SuggestedGroups: r.SuggestedGroups(),
		ApprovalStatus:  "approved",
		ApprovedBy:      approvedBy,
		ApprovedAt:      now,
		Status:          ContentApproved,
	}
	if st, ok := r.PrimaryState(); ok {
		c.State = st.Name
		c.StateAbbr = st.Abbr
	}
	return c
}
