package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/hlog"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/pipeline"
	"ndta-news/pipeline/internal/store"
)

// stageTimeout bounds a stage started from the dashboard.
const stageTimeout = 5 * time.Minute

// Actor recorded for decisions made through the dashboard.
const Actor = "dashboard"

// Pipeline is the part of the orchestrator the dashboard drives.
type Pipeline interface {
	Status(ctx context.Context) (*pipeline.Status, error)
	Run(ctx context.Context, stage string) (any, error)
	StateAlerts(ctx context.Context) ([]pipeline.StateAlert, error)
	ProcessOne(ctx context.Context, a *models.Article) error
	ApproveArticle(ctx context.Context, a *models.Article, stateAlert bool, actor string) error
	RejectArticle(ctx context.Context, a *models.Article, reason, actor string) error
	ApproveReport(ctx context.Context, r *models.Report, actor string) (*models.ApprovedContent, error)
	RejectReport(ctx context.Context, r *models.Report, actor string) error
}

// Documents reads stored documents.
type Documents interface {
	GetArticle(ctx context.Context, id string) (*models.Article, error)
	ListArticles(ctx context.Context, f store.ArticleFilter) ([]*models.Article, error)
	GetReport(ctx context.Context, id string) (*models.Report, error)
	ListReports(ctx context.Context, f store.ReportFilter) ([]*models.Report, error)
	ListContent(ctx context.Context, f store.ContentFilter) ([]*models.ApprovedContent, error)
	Transitions(ctx context.Context, kind models.Kind, id string) ([]models.Transition, error)
}

// DashboardHandler serves the pipeline dashboard endpoints.
type DashboardHandler struct {
	pipeline    Pipeline
	docs        Documents
	graphicsDir string
}

// NewDashboardHandler creates the handler.
func NewDashboardHandler(p Pipeline, docs Documents, graphicsDir string) *DashboardHandler {
	return &DashboardHandler{pipeline: p, docs: docs, graphicsDir: graphicsDir}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrVersionConflict), errors.Is(err, store.ErrExists), errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrUnknownStage):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *DashboardHandler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	status := statusFor(err)
	ev := hlog.FromRequest(r).Warn()
	if status == http.StatusInternalServerError {
		ev = hlog.FromRequest(r).Error()
	}
	ev.Err(err).Msg(msg)
	if status == http.StatusInternalServerError {
		writeError(w, r, status, http.StatusText(status))
		return
	}
	writeError(w, r, status, err.Error())
}

// GetStatus returns the queue counts and next suggested command.
func (h *DashboardHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.pipeline.Status(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to load status")
		return
	}
	writeJSON(w, r, http.StatusOK, st)
}

// GetPendingArticles lists articles waiting for review.
func (h *DashboardHandler) GetPendingArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := h.docs.ListArticles(r.Context(), store.ArticleFilter{
		Statuses:     []models.Status{models.ArticlePendingReview},
		RelevantOnly: r.URL.Query().Get("all") != "true",
	})
	if err != nil {
		h.fail(w, r, err, "Failed to list pending articles")
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(articles))
}

// ArticleDetail is an article with its status history.
type ArticleDetail struct {
	Article     *models.Article     `json:"article"`
	Transitions []models.Transition `json:"transitions"`
}

// GetArticle returns one article.
func (h *DashboardHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	a, err := h.docs.GetArticle(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to load article")
		return
	}
	history, err := h.docs.Transitions(r.Context(), models.KindArticle, id)
	if err != nil {
		h.fail(w, r, err, "Failed to load article history")
		return
	}
	writeJSON(w, r, http.StatusOK, ArticleDetail{Article: a, Transitions: nonNil(history)})
}

// maxSubmissionBytes caps the body of a manual article submission.
const maxSubmissionBytes = 1 << 20

// Submission is an article entered by hand on the dashboard.
type Submission struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Source  string `json:"source"`
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// SubmitArticle runs a hand-entered article through verification, relevance
// and state detection, then stores it like a scraped one.
func (h *DashboardHandler) SubmitArticle(w http.ResponseWriter, r *http.Request) {
	var sub Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubmissionBytes)).Decode(&sub); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	sub.Title = strings.TrimSpace(sub.Title)
	sub.URL = strings.TrimSpace(sub.URL)
	if sub.Title == "" || sub.URL == "" {
		writeError(w, r, http.StatusBadRequest, "title and url are required")
		return
	}
	u, err := url.Parse(sub.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, r, http.StatusBadRequest, "url must be an absolute http(s) URL")
		return
	}
	if sub.Source == "" {
		sub.Source = u.Hostname()
	}

	a := &models.Article{
		Title:      sub.Title,
		URL:        sub.URL,
		Source:     sub.Source,
		SourceType: models.SourceWeb,
		Summary:    sub.Summary,
		Content:    sub.Content,
	}
	if err := h.pipeline.ProcessOne(r.Context(), a); err != nil {
		h.fail(w, r, err, "Failed to store submitted article")
		return
	}
	writeJSON(w, r, http.StatusCreated, a)
}

type decision struct {
	Success bool          `json:"success"`
	Status  models.Status `json:"status"`
}

// ApproveArticle approves a pending article. ?state_alert=true also flags it
// for the state alert list.
func (h *DashboardHandler) ApproveArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.docs.GetArticle(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Failed to load article")
		return
	}
	if err := h.pipeline.ApproveArticle(r.Context(), a, r.URL.Query().Get("state_alert") == "true", Actor); err != nil {
		h.fail(w, r, err, "Failed to approve article")
		return
	}
	writeJSON(w, r, http.StatusOK, decision{Success: true, Status: a.Status})
}

// RejectArticle rejects a pending article.
func (h *DashboardHandler) RejectArticle(w http.ResponseWriter, r *http.Request) {
	a, err := h.docs.GetArticle(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Failed to load article")
		return
	}
	if err := h.pipeline.RejectArticle(r.Context(), a, r.URL.Query().Get("reason"), Actor); err != nil {
		h.fail(w, r, err, "Failed to reject article")
		return
	}
	writeJSON(w, r, http.StatusOK, decision{Success: true, Status: a.Status})
}

// GetReports lists reports, optionally filtered by ?status=a,b.
func (h *DashboardHandler) GetReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.docs.ListReports(r.Context(), store.ReportFilter{Statuses: statuses(r)})
	if err != nil {
		h.fail(w, r, err, "Failed to list reports")
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(reports))
}

// ApproveReport promotes a report to approved content.
func (h *DashboardHandler) ApproveReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.docs.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Failed to load report")
		return
	}
	c, err := h.pipeline.ApproveReport(r.Context(), rep, Actor)
	if err != nil {
		h.fail(w, r, err, "Failed to approve report")
		return
	}
	writeJSON(w, r, http.StatusOK, c)
}

// RejectReport rejects a report awaiting approval.
func (h *DashboardHandler) RejectReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.docs.GetReport(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, r, err, "Failed to load report")
		return
	}
	if err := h.pipeline.RejectReport(r.Context(), rep, Actor); err != nil {
		h.fail(w, r, err, "Failed to reject report")
		return
	}
	writeJSON(w, r, http.StatusOK, decision{Success: true, Status: rep.Status})
}

// GetApproved lists approved content. ?unposted=true keeps only what is
// still waiting to be posted.
func (h *DashboardHandler) GetApproved(w http.ResponseWriter, r *http.Request) {
	items, err := h.docs.ListContent(r.Context(), store.ContentFilter{
		Statuses:     statuses(r),
		UnpostedOnly: r.URL.Query().Get("unposted") == "true",
	})
	if err != nil {
		h.fail(w, r, err, "Failed to list approved content")
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(items))
}

// GetStateAlerts lists approved state-specific articles.
func (h *DashboardHandler) GetStateAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.pipeline.StateAlerts(r.Context())
	if err != nil {
		h.fail(w, r, err, "Failed to list state alerts")
		return
	}
	writeJSON(w, r, http.StatusOK, nonNil(alerts))
}

type stageResult struct {
	Stage    string `json:"stage"`
	Success  bool   `json:"success"`
	Result   any    `json:"result,omitempty"`
	Duration string `json:"duration"`
}

// RunStage runs a non-interactive stage and waits for it to finish.
func (h *DashboardHandler) RunStage(w http.ResponseWriter, r *http.Request) {
	stage := r.PathValue("stage")
	if !pipeline.IsStage(stage) {
		writeError(w, r, http.StatusBadRequest, "Invalid command")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), stageTimeout)
	defer cancel()

	start := time.Now()
	hlog.FromRequest(r).Info().Str("stage", stage).Msg("Running stage")
	res, err := h.pipeline.Run(ctx, stage)
	if err != nil {
		h.fail(w, r, err, "Stage failed")
		return
	}
	writeJSON(w, r, http.StatusOK, stageResult{
		Stage:    stage,
		Success:  true,
		Result:   res,
		Duration: time.Since(start).Round(time.Millisecond).String(),
	})
}

// Graphic describes one rendered graphic file.
type Graphic struct {
	Filename  string    `json:"filename"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// GetGraphics lists the rendered graphics, newest first.
func (h *DashboardHandler) GetGraphics(w http.ResponseWriter, r *http.Request) {
	matches, err := filepath.Glob(filepath.Join(h.graphicsDir, "*.png"))
	if err != nil {
		h.fail(w, r, err, "Failed to list graphics")
		return
	}
	out := make([]Graphic, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		name := filepath.Base(m)
		out = append(out, Graphic{Filename: name, URL: "/graphics/" + name, Size: info.Size(), CreatedAt: info.ModTime().UTC()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	writeJSON(w, r, http.StatusOK, out)
}

func statuses(r *http.Request) []models.Status {
	raw := r.URL.Query().Get("status")
	if raw == "" {
		return nil
	}
	var out []models.Status
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, models.Status(s))
		}
	}
	return out
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
