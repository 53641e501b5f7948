package storage

import (
	"context"
	"errors"
	"time"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/store"
)

// ArticlePage is one page of articles with their creation times.
type ArticlePage struct {
	Articles []*models.Article
	Created  []time.Time
}

// ArticleRepository defines the read access the dashboard needs.
type ArticleRepository interface {
	FetchArticles(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *string) (ArticlePage, error)
}

type storeRepository struct {
	st *store.Store
}

// NewRepository creates a repository over the document store.
func NewRepository(st *store.Store) ArticleRepository {
	return &storeRepository{st: st}
}

// FetchArticles retrieves articles created after since or after the cursor.
func (r *storeRepository) FetchArticles(ctx context.Context, limit int, since *time.Time, cursorTimestamp *time.Time, cursorID *string) (ArticlePage, error) {
	if since == nil && (cursorTimestamp == nil || cursorID == nil) {
		return ArticlePage{}, errors.New("either 'since' or cursor parameters must be provided")
	}
	docs, created, err := r.st.ArticlePage(ctx, uint64(limit), since, cursorTimestamp, cursorID)
	if err != nil {
		return ArticlePage{}, err
	}
	return ArticlePage{Articles: docs, Created: created}, nil
}
