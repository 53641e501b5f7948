package store

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/models"
)

// ArticleFilter selects articles for a stage.
type ArticleFilter struct {
	Statuses          []models.Status
	RelevantOnly      bool
	StateSpecificOnly bool
	// WithoutReport keeps only articles that have not been turned into a report.
	WithoutReport bool
	Limit         uint64
}

func (f ArticleFilter) where() sq.Sqlizer {
	and := sq.And{}
	if len(f.Statuses) > 0 {
		and = append(and, sq.Eq{"status": statusStrings(f.Statuses)})
	}
	if f.RelevantOnly {
		and = append(and, sq.Eq{"is_relevant": 1})
	}
	if f.StateSpecificOnly {
		and = append(and, sq.Eq{"is_state_specific": 1})
	}
	if f.WithoutReport {
		and = append(and, sq.Expr("NOT EXISTS (SELECT 1 FROM reports r WHERE r.id = articles.id)"))
	}
	return and
}

func articleColumns(a *models.Article, runID string) map[string]any {
	cols := map[string]any{
		"source_type":       string(a.SourceType),
		"is_relevant":       boolInt(a.IsRelevant),
		"is_state_specific": boolInt(a.IsStateSpecific),
		"relevance_score":   a.RelevanceScore,
	}
	if !a.PublishedDate.IsZero() {
		cols["published_at"] = a.PublishedDate.UTC()
	}
	if runID != "" {
		cols["run_id"] = runID
	}
	return cols
}

func setArticle(a *models.Article, row docRow) {
	a.ID = row.ID
	a.Status = models.Status(row.Status)
	a.Version = row.Version
}

// InsertArticle stores a newly scraped article. It returns ErrExists when an
// article with the same id was scraped before.
func (s *Store) InsertArticle(ctx context.Context, a *models.Article, runID string) error {
	a.Version = 1
	return s.insert(ctx, articlesTable, a.ID, a.Status, a, articleColumns(a, runID))
}

// GetArticle loads one article.
func (s *Store) GetArticle(ctx context.Context, id string) (*models.Article, error) {
	row, err := s.get(ctx, articlesTable, id)
	if err != nil {
		return nil, err
	}
	docs, skipped := decode([]docRow{row}, setArticle)
	if len(skipped) > 0 {
		return nil, corrupt(articlesTable, id)
	}
	return docs[0], nil
}

// ListArticles returns matching articles, newest published first.
func (s *Store) ListArticles(ctx context.Context, f ArticleFilter) ([]*models.Article, error) {
	rows, err := s.list(ctx, articlesTable, f.where(), "published_at DESC, id ASC", f.Limit)
	if err != nil {
		return nil, err
	}
	docs, skipped := decode(rows, setArticle)
	logSkipped(articlesTable, skipped)
	return docs, nil
}

// CountArticles counts matching articles.
func (s *Store) CountArticles(ctx context.Context, f ArticleFilter) (int, error) {
	return s.count(ctx, articlesTable.name, f.where())
}

// UpdateArticle saves a, moving it to status to. a.Version must be the
// version that was read; on success a carries the new version and status.
func (s *Store) UpdateArticle(ctx context.Context, a *models.Article, to models.Status, actor string) error {
	prev := a.Status
	a.Status = to
	v, err := s.update(ctx, articlesTable, a.ID, a.Version, to, actor, a, articleColumns(a, ""))
	if err != nil {
		a.Status = prev
		return err
	}
	a.Version = v
	return nil
}

// ArticlePage returns up to limit articles created after the cursor (or
// after since for the first page), oldest first.
func (s *Store) ArticlePage(ctx context.Context, limit uint64, since *time.Time, cursorTS *time.Time, cursorID *string) ([]*models.Article, []time.Time, error) {
	var where sq.Sqlizer
	switch {
	case cursorTS != nil && cursorID != nil:
		ts := cursorTS.UTC()
		where = sq.Or{
			sq.Gt{"created_at": ts},
			sq.And{sq.Eq{"created_at": ts}, sq.Gt{"id": *cursorID}},
		}
	case since != nil:
		where = sq.Gt{"created_at": since.UTC()}
	}

	rows, err := s.list(ctx, articlesTable, where, "created_at ASC, id ASC", limit)
	if err != nil {
		return nil, nil, err
	}
	docs, skipped := decode(rows, setArticle)
	logSkipped(articlesTable, skipped)

	created := make([]time.Time, 0, len(docs))
	byID := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		byID[row.ID] = row.CreatedAt
	}
	for _, d := range docs {
		created = append(created, byID[d.ID])
	}
	return docs, created, nil
}

func logSkipped(t table, ids []string) {
	for _, id := range ids {
		log.Warn().Str("kind", string(t.kind)).Str("id", id).Msg("Skipping document with unreadable body")
	}
}
