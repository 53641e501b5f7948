// Package verify scores how far a scraped article can be trusted before it
// reaches a reviewer.
package verify

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/llm"
	"ndta-news/pipeline/internal/models"
)

type trustedSource struct {
	name  string
	score int
}

var trustedSources = map[string]trustedSource{
	"enr.com":                   {"Engineering News-Record", 10},
	"constructiondive.com":      {"Construction Dive", 10},
	"equipmentworld.com":        {"Equipment World", 9},
	"forconstructionpros.com":   {"For Construction Pros", 9},
	"constructionequipment.com": {"Construction Equipment", 9},
	"truckinginfo.com":          {"Trucking Info", 9},
	"fleetowner.com":            {"Fleet Owner", 9},
	"overdriveonline.com":       {"Overdrive", 8},
	"ccjdigital.com":            {"Commercial Carrier Journal", 9},
	"reuters.com":               {"Reuters", 10},
	"apnews.com":                {"Associated Press", 10},
	"bloomberg.com":             {"Bloomberg", 9},
	"wsj.com":                   {"Wall Street Journal", 9},
}

var redFlags = []string{
	"click here now",
	"limited time offer",
	"act now",
	"you won't believe",
	"shocking",
	"miracle",
	"secret",
	"doctors hate",
	"one weird trick",
}

const (
	unknownTrustScore = 5
	maxAgeDays        = 30
	minSummaryLength  = 100

	factCheckSummaryLimit = 800
	factCheckTemperature  = 0.2
	factCheckMaxTokens    = 300
)

// Scorer runs the source, quality and fact checks.
type Scorer struct {
	llm   *llm.Client
	model string
	now   func() time.Time
}

// NewScorer builds a scorer. Fact checks use the fast model of client.
func NewScorer(client *llm.Client) *Scorer {
	return &Scorer{
		llm:   client,
		model: client.Settings().FastModel,
		now:   time.Now,
	}
}

// Verify runs every check and combines them. It never fails: each check that
// cannot complete contributes its degraded default.
func (s *Scorer) Verify(ctx context.Context, a *models.Article) *models.VerificationResult {
	src := CheckSource(a.URL)
	quality := CheckQuality(a, s.now())

	var fc models.FactCheck
	if src.IsTrusted {
		res := s.FactCheck(ctx, a)
		if res.Fallback {
			log.Warn().Err(res.Err).Str("article_id", a.ID).Msg("Fact check failed, using fallback")
		}
		fc = res.Value
	} else {
		fc = untrustedFactCheck()
	}

	overall := Overall(src.TrustScore, quality.QualityScore, fc.CredibilityScore)
	result := &models.VerificationResult{
		OverallScore:       overall,
		Recommendation:     recommend(overall, src.IsTrusted, fc.Recommendation),
		VerificationPassed: overall >= 6,
		VerifiedAt:         s.now().UTC(),
		SourceVerification: src,
		QualityCheck:       quality,
		FactCheck:          fc,
	}

	log.Info().
		Str("article_id", a.ID).
		Float64("score", overall).
		Str("recommendation", string(result.Recommendation)).
		Msg("Verification complete")
	return result
}

// Overall is the weighted composite: 40% source trust, 30% quality, 30%
// credibility, each clamped to [0,10], rounded to two decimals. The model may
// answer credibility with a fraction, so it stays a float.
func Overall(trust, quality int, credibility float64) float64 {
	v := 0.4*float64(clamp(trust)) + 0.3*float64(clamp(quality)) + 0.3*clampScore(credibility)
	return math.Round(v*100) / 100
}

func clamp(v int) int {
	return max(0, min(10, v))
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return max(0, min(10, v))
}

func recommend(overall float64, trusted bool, factCheck string) models.Recommendation {
	switch {
	case overall >= 8 && trusted && factCheck == "approve":
		return models.RecommendAutoApprove
	case overall >= 6:
		return models.RecommendManualReview
	default:
		return models.RecommendReject
	}
}

// Domain returns the lowercased host of rawURL without a leading www.
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// CheckSource looks the article's domain up in the trusted table. A
// subdomain of a trusted domain is trusted too.
func CheckSource(rawURL string) models.SourceVerification {
	domain := Domain(rawURL)
	for d, info := range trustedSources {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return models.SourceVerification{
				Domain:       domain,
				IsTrusted:    true,
				TrustScore:   info.score,
				SourceName:   info.name,
				Verification: "Verified trusted source",
			}
		}
	}
	return models.SourceVerification{
		Domain:       domain,
		TrustScore:   unknownTrustScore,
		SourceName:   domain,
		Verification: "Unknown source - requires manual verification",
	}
}

// CheckQuality applies the content heuristics. An unknown publish date
// counts as recent.
func CheckQuality(a *models.Article, now time.Time) models.QualityCheck {
	text := strings.ToLower(a.Title + " " + a.Summary)

	flags := []string{}
	for _, f := range redFlags {
		if strings.Contains(text, f) {
			flags = append(flags, f)
		}
	}

	q := models.QualityCheck{
		RedFlags:             flags,
		Issues:               []string{},
		IsRecent:             true,
		HasSufficientContent: len(a.Summary) >= minSummaryLength,
		HasRequiredFields:    a.Title != "" && a.URL != "" && a.Summary != "" && a.Source != "",
	}
	if !a.PublishedDate.IsZero() {
		days := int(now.Sub(a.PublishedDate).Hours() / 24)
		q.AgeDays = &days
		q.IsRecent = days <= maxAgeDays
	}

	score := 10
	if len(flags) > 0 {
		score -= 2 * len(flags)
		q.Issues = append(q.Issues, "Red flags found: "+strings.Join(flags, ", "))
	}
	if !q.IsRecent {
		score -= 2
		q.Issues = append(q.Issues, fmt.Sprintf("Article is %d days old", *q.AgeDays))
	}
	if !q.HasSufficientContent {
		score -= 3
		q.Issues = append(q.Issues, "Insufficient content length")
	}
	if !q.HasRequiredFields {
		score -= 5
		q.Issues = append(q.Issues, "Missing required fields")
	}
	q.QualityScore = max(0, score)
	return q
}

// FactCheck asks the model for a credibility assessment.
func (s *Scorer) FactCheck(ctx context.Context, a *models.Article) llm.Result[models.FactCheck] {
	source := a.Source
	if source == "" {
		source = "Unknown"
	}
	fc, err := llm.CompleteJSON[models.FactCheck](ctx, s.llm, llm.Request{
		Prompt:      fmt.Sprintf(llm.FactCheckPrompt, a.Title, source, llm.Truncate(a.Summary, factCheckSummaryLimit)),
		Model:       s.model,
		Temperature: factCheckTemperature,
		MaxTokens:   factCheckMaxTokens,
	})
	if err != nil {
		return llm.Fallback(failedFactCheck(), err)
	}
	if fc.Concerns == nil {
		fc.Concerns = []string{}
	}
	fc.CredibilityScore = clampScore(fc.CredibilityScore)
	return llm.Ok(fc)
}

func untrustedFactCheck() models.FactCheck {
	return models.FactCheck{
		AppearsFactual:   false,
		CredibilityScore: 3,
		Recommendation:   "review",
		Concerns:         []string{"Untrusted source - manual verification required"},
	}
}

func failedFactCheck() models.FactCheck {
	return models.FactCheck{
		AppearsFactual:     true,
		CredibilityScore:   5,
		BiasLevel:          "unknown",
		MisinformationRisk: "unknown",
		Concerns:           []string{"AI verification failed"},
		Recommendation:     "review",
	}
}

// Summary renders a verification result for review screens.
func Summary(v *models.VerificationResult) string {
	if v == nil {
		return "Not verified"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Verification Score: %.2f/10\n", v.OverallScore)
	fmt.Fprintf(&b, "✓ Source: %s ", v.SourceVerification.SourceName)
	if v.SourceVerification.IsTrusted {
		fmt.Fprintf(&b, "(Trusted - %d/10)\n", v.SourceVerification.TrustScore)
	} else {
		b.WriteString("(Unverified source)\n")
	}
	fmt.Fprintf(&b, "✓ Recommendation: %s\n", strings.ToUpper(string(v.Recommendation)))
	if len(v.FactCheck.Concerns) > 0 {
		fmt.Fprintf(&b, "⚠️  Concerns: %s\n", strings.Join(v.FactCheck.Concerns, ", "))
	}
	return b.String()
}
