package models

import "time"

// Recommendation is the routing decision of verification.
type Recommendation string

const (
	RecommendAutoApprove  Recommendation = "auto_approve"
	RecommendManualReview Recommendation = "manual_review"
	RecommendReject       Recommendation = "reject"
)

// VerificationResult is the composite trust score attached to an article.
type VerificationResult struct {
	OverallScore       float64            `json:"overall_score"`
	Recommendation     Recommendation     `json:"recommendation"`
	VerificationPassed bool               `json:"verification_passed"`
	VerifiedAt         time.Time          `json:"verified_at"`
	SourceVerification SourceVerification `json:"source_verification"`
	QualityCheck       QualityCheck       `json:"quality_check"`
	FactCheck          FactCheck          `json:"fact_check"`
}

// SourceVerification is the trusted-domain lookup result.
type SourceVerification struct {
	Domain       string `json:"domain"`
	IsTrusted    bool   `json:"is_trusted"`
	TrustScore   int    `json:"trust_score"`
	SourceName   string `json:"source_name"`
	Verification string `json:"verification"`
}

// QualityCheck is the heuristic content-quality result.
type QualityCheck struct {
	QualityScore         int      `json:"quality_score"`
	RedFlags             []string `json:"red_flags"`
	Issues               []string `json:"issues"`
	IsRecent             bool     `json:"is_recent"`
	AgeDays              *int     `json:"age_days"`
	HasSufficientContent bool     `json:"has_sufficient_content"`
	HasRequiredFields    bool     `json:"has_required_fields"`
}

// FactCheck is the model's credibility assessment.
type FactCheck struct {
	AppearsFactual     bool     `json:"appears_factual"`
	CredibilityScore   float64  `json:"credibility_score"`
	HasCitations       bool     `json:"has_citations"`
	BiasLevel          string   `json:"bias_level,omitempty"`
	MisinformationRisk string   `json:"misinformation_risk,omitempty"`
	Concerns           []string `json:"concerns"`
	Recommendation     string   `json:"recommendation"`
}
