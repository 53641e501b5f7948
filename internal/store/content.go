package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"

	"ndta-news/pipeline/internal/models"
)

// ContentFilter selects approved content.
type ContentFilter struct {
	Statuses     []models.Status
	UnpostedOnly bool
	Limit        uint64
}

func (f ContentFilter) where() sq.Sqlizer {
	and := sq.And{}
	if len(f.Statuses) > 0 {
		and = append(and, sq.Eq{"status": statusStrings(f.Statuses)})
	}
	if f.UnpostedOnly {
		and = append(and, sq.Eq{"posted": 0})
	}
	return and
}

func setContent(c *models.ApprovedContent, row docRow) {
	c.ID = row.ID
	c.Status = models.Status(row.Status)
	c.Version = row.Version
}

// InsertContent stores newly approved content.
func (s *Store) InsertContent(ctx context.Context, c *models.ApprovedContent) error {
	c.Version = 1
	return s.insert(ctx, contentTable, c.ID, c.Status, c, contentColumns(c))
}

func contentColumns(c *models.ApprovedContent) map[string]any {
	return map[string]any{"posted": boolInt(c.Posted)}
}

// GetContent loads one approved content document.
func (s *Store) GetContent(ctx context.Context, id string) (*models.ApprovedContent, error) {
	row, err := s.get(ctx, contentTable, id)
	if err != nil {
		return nil, err
	}
	docs, skipped := decode([]docRow{row}, setContent)
	if len(skipped) > 0 {
		return nil, corrupt(contentTable, id)
	}
	return docs[0], nil
}

// ListContent returns matching content, oldest approval first.
func (s *Store) ListContent(ctx context.Context, f ContentFilter) ([]*models.ApprovedContent, error) {
	rows, err := s.list(ctx, contentTable, f.where(), "created_at ASC, id ASC", f.Limit)
	if err != nil {
		return nil, err
	}
	docs, skipped := decode(rows, setContent)
	logSkipped(contentTable, skipped)
	return docs, nil
}

// CountContent counts matching content.
func (s *Store) CountContent(ctx context.Context, f ContentFilter) (int, error) {
	return s.count(ctx, contentTable.name, f.where())
}

// UpdateContent saves c, moving it to status to.
func (s *Store) UpdateContent(ctx context.Context, c *models.ApprovedContent, to models.Status, actor string) error {
	prev := c.Status
	c.Status = to
	v, err := s.update(ctx, contentTable, c.ID, c.Version, to, actor, c, contentColumns(c))
	if err != nil {
		c.Status = prev
		return err
	}
	c.Version = v
	return nil
}
