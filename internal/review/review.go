// Package review runs the interactive console sessions in which a person
// approves scraped articles and generated reports. Every decision is saved
// as soon as it is made, so quitting or an interrupt keeps earlier work.
package review

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/llm"
	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/verify"
)

const rule = "============================================================"

// Decider persists review decisions.
type Decider interface {
	PendingArticles(ctx context.Context) ([]*models.Article, error)
	ApproveArticle(ctx context.Context, a *models.Article, stateAlert bool, actor string) error
	RejectArticle(ctx context.Context, a *models.Article, reason, actor string) error

	PendingReports(ctx context.Context) ([]*models.Report, error)
	ApproveReport(ctx context.Context, r *models.Report, actor string) (*models.ApprovedContent, error)
	RejectReport(ctx context.Context, r *models.Report, actor string) error
	EditReport(ctx context.Context, r *models.Report, headline, social, actor string) error
}

// HeadlineSuggester proposes an alternative headline while editing.
type HeadlineSuggester interface {
	Headline(ctx context.Context, title, summary string) llm.Result[string]
}

// Session reads choices from in and writes prompts to out.
type Session struct {
	decider Decider
	suggest HeadlineSuggester
	in      *bufio.Scanner
	out     io.Writer
	actor   string

	readOnce sync.Once
	lines    chan string
}

// NewSession builds a session acting as actor. suggest may be nil.
func NewSession(d Decider, suggest HeadlineSuggester, in io.Reader, out io.Writer, actor string) *Session {
	return &Session{decider: d, suggest: suggest, in: bufio.NewScanner(in), out: out, actor: actor}
}

// ArticleTally counts the decisions of an article review.
type ArticleTally struct {
	Approved      int
	StateSpecific int
	Rejected      int
	Remaining     int
}

// ReportTally counts the decisions of a report approval.
type ReportTally struct {
	Approved  int
	Edited    int
	Rejected  int
	Remaining int
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// readLines feeds input lines to s.lines until end of input.
func (s *Session) readLines() {
	s.lines = make(chan string)
	go func() {
		defer close(s.lines)
		for s.in.Scan() {
			s.lines <- s.in.Text()
		}
	}()
}

// ask prompts and returns the next trimmed line. ok is false at end of input
// or once ctx is cancelled, even while the prompt is waiting.
func (s *Session) ask(ctx context.Context, prompt string) (string, bool) {
	s.printf("%s", prompt)
	s.readOnce.Do(s.readLines)
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", false
		}
		return strings.TrimSpace(line), true
	case <-ctx.Done():
		return "", false
	}
}

// Articles walks the pending relevant articles.
func (s *Session) Articles(ctx context.Context) (ArticleTally, error) {
	var tally ArticleTally
	s.printf("\n%s\n📋 REVIEW SCRAPED ARTICLES\n%s\n", rule, rule)

	articles, err := s.decider.PendingArticles(ctx)
	if err != nil {
		return tally, err
	}
	if len(articles) == 0 {
		s.printf("\n✅ No articles to review!\n   Run 'pipeline scrape' first\n")
		return tally, nil
	}
	s.printf("\nFound %d articles to review\n", len(articles))

	for i, a := range articles {
		if ctx.Err() != nil {
			tally.Remaining = len(articles) - i
			return tally, ctx.Err()
		}
		s.showArticle(i+1, len(articles), a)

		quit, err := s.decideArticle(ctx, a, &tally)
		if err != nil {
			return tally, err
		}
		if quit {
			tally.Remaining = len(articles) - i
			if ctx.Err() != nil {
				s.printf("\n\n⏸️  Review interrupted. Progress saved.\n")
				return tally, ctx.Err()
			}
			s.printf("\n⏸️  Review paused. Progress saved.\n")
			return tally, nil
		}
	}

	s.printf("\n%s\n✅ Review complete!\n", rule)
	s.printf("   Approved: %d\n   State-specific: %d\n   Rejected: %d\n", tally.Approved, tally.StateSpecific, tally.Rejected)
	s.printf("\n➡️  Next step: pipeline generate\n")
	return tally, nil
}

func (s *Session) decideArticle(ctx context.Context, a *models.Article, tally *ArticleTally) (quit bool, err error) {
	for {
		choice, ok := s.ask(ctx, "\nProcess this article? (y)es / (n)o / (s)tate-specific / (q)uit: ")
		if !ok {
			return true, nil
		}
		switch strings.ToLower(choice) {
		case "y":
			if err := s.decider.ApproveArticle(ctx, a, false, s.actor); err != nil {
				return false, err
			}
			tally.Approved++
			s.printf("✅ Approved for processing\n")
			return false, nil
		case "n":
			if err := s.decider.RejectArticle(ctx, a, "Rejected in review", s.actor); err != nil {
				return false, err
			}
			tally.Rejected++
			s.printf("❌ Rejected\n")
			return false, nil
		case "s":
			if err := s.decider.ApproveArticle(ctx, a, true, s.actor); err != nil {
				return false, err
			}
			tally.Approved++
			tally.StateSpecific++
			s.printf("✅ Approved + marked as state-specific\n")
			return false, nil
		case "q":
			return true, nil
		default:
			s.printf("Invalid choice. Please enter y, n, s, or q\n")
		}
	}
}

func (s *Session) showArticle(n, total int, a *models.Article) {
	s.printf("\n--- Article %d/%d ---\n", n, total)
	s.printf("Title: %s\nSource: %s\n", a.Title, a.Source)
	if a.PublishedDate.IsZero() {
		s.printf("Date: unknown\n")
	} else {
		s.printf("Date: %s\n", a.PublishedDate.Format("2006-01-02 15:04"))
	}
	if a.Verification != nil {
		s.printf("\n🔒 VERIFICATION:\n%s", verify.Summary(a.Verification))
		s.printf("   Misinformation Risk: %s\n", strings.ToUpper(a.Verification.FactCheck.MisinformationRisk))
	}
	s.printf("\n📊 RELEVANCE:\n   Score: %.1f/10\n", a.RelevanceScore)
	if a.RelevanceReason != "" {
		s.printf("   Reason: %s\n", a.RelevanceReason)
	}
	if a.IsStateSpecific {
		s.printf("\n🚨 STATE: %s\n", a.StateNames())
	}
	s.printf("\nSummary: %s\n", llm.Truncate(a.Summary, 200))
}

// Reports walks the reports pending approval.
func (s *Session) Reports(ctx context.Context) (ReportTally, error) {
	var tally ReportTally
	s.printf("\n%s\n✅ APPROVE CONTENT FOR POSTING\n%s\n", rule, rule)

	reports, err := s.decider.PendingReports(ctx)
	if err != nil {
		return tally, err
	}
	if len(reports) == 0 {
		s.printf("\n⚠️  No content pending approval\n")
		return tally, nil
	}
	s.printf("\nFound %d items pending approval\n", len(reports))

	for i, r := range reports {
		if ctx.Err() != nil {
			tally.Remaining = len(reports) - i
			return tally, ctx.Err()
		}
		quit, err := s.decideReport(ctx, i+1, len(reports), r, &tally)
		if err != nil {
			return tally, err
		}
		if quit {
			tally.Remaining = len(reports) - i
			if ctx.Err() != nil {
				s.printf("\n\n⏸️  Approval interrupted. Progress saved.\n")
				return tally, ctx.Err()
			}
			s.printf("\n⏸️  Approval paused. Progress saved.\n")
			return tally, nil
		}
	}

	s.printf("\n%s\n✅ Approval complete!\n   Approved: %d\n   Rejected: %d\n", rule, tally.Approved, tally.Rejected)
	s.printf("\n➡️  Next step: pipeline post\n")
	return tally, nil
}

func (s *Session) decideReport(ctx context.Context, n, total int, r *models.Report, tally *ReportTally) (quit bool, err error) {
	for {
		s.showReport(n, total, r)
		choice, ok := s.ask(ctx, "\nApprove this content? (a)pprove / (e)dit / (r)eject / (q)uit: ")
		if !ok {
			return true, nil
		}
		switch strings.ToLower(choice) {
		case "a":
			if _, err := s.decider.ApproveReport(ctx, r, s.actor); err != nil {
				return false, err
			}
			tally.Approved++
			s.printf("✅ Approved for posting\n")
			return false, nil
		case "e":
			if err := s.edit(ctx, r); err != nil {
				return false, err
			}
			tally.Edited++
			s.printf("✅ Changes saved. Review again.\n")
		case "r":
			if err := s.decider.RejectReport(ctx, r, s.actor); err != nil {
				return false, err
			}
			tally.Rejected++
			s.printf("❌ Rejected\n")
			return false, nil
		case "q":
			return true, nil
		default:
			s.printf("Invalid choice. Please enter a, e, r, or q\n")
		}
	}
}

func (s *Session) edit(ctx context.Context, r *models.Report) error {
	s.printf("\n📝 Edit mode - enter new values (or press Enter to keep current)\n")
	if s.suggest != nil {
		res := s.suggest.Headline(ctx, r.SourceArticle.Title, r.ExecutiveSummary)
		if res.Fallback {
			log.Debug().Err(res.Err).Str("report_id", r.ID).Msg("No headline suggestion")
		} else if res.Value != r.Headline {
			s.printf("Suggested headline: %s\n", res.Value)
		}
	}
	headline, _ := s.ask(ctx, fmt.Sprintf("Headline [%s]: ", r.Headline))
	social, _ := s.ask(ctx, fmt.Sprintf("Social text [%s...]: ", llm.Truncate(r.SocialPost, 50)))
	if err := ctx.Err(); err != nil {
		return err
	}
	if headline == "" && social == "" {
		return nil
	}
	return s.decider.EditReport(ctx, r, headline, social, s.actor)
}

func (s *Session) showReport(n, total int, r *models.Report) {
	s.printf("\n%s\nItem %d/%d\n%s\n", rule, n, total, rule)
	s.printf("\n📰 HEADLINE:\n   %s\n", r.Headline)
	s.printf("\n📝 REPORT:\n   %s\n", r.ExecutiveSummary)
	if st, ok := r.PrimaryState(); ok {
		s.printf("\n🗺️  STATE: %s\n   Suggested groups: %s\n", st.Name, strings.Join(r.SuggestedGroups(), ", "))
	}
	s.printf("\n🖼️  GRAPHIC: %s\n   (Open file to preview)\n", r.GraphicPath)
	s.printf("\n📱 SOCIAL MEDIA POST:\n   %s\n", r.SocialPost)
}
