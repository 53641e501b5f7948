package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"ndta-news/pipeline/internal/models"
)

// ReportFilter selects reports for a stage.
type ReportFilter struct {
	Statuses          []models.Status
	StateSpecificOnly bool
	Limit             uint64
}

func (f ReportFilter) where() sq.Sqlizer {
	and := sq.And{}
	if len(f.Statuses) > 0 {
		and = append(and, sq.Eq{"status": statusStrings(f.Statuses)})
	}
	if f.StateSpecificOnly {
		and = append(and, sq.Eq{"is_state_specific": 1})
	}
	return and
}

func setReport(r *models.Report, row docRow) {
	r.ID = row.ID
	r.Status = models.Status(row.Status)
	r.Version = row.Version
}

func reportColumns(r *models.Report) map[string]any {
	return map[string]any{
		"article_id":        r.ArticleID,
		"is_state_specific": boolInt(r.IsStateSpecific),
	}
}

// InsertReport stores a freshly generated report.
func (s *Store) InsertReport(ctx context.Context, r *models.Report) error {
	r.Version = 1
	return s.insert(ctx, reportsTable, r.ID, r.Status, r, reportColumns(r))
}

// GetReport loads one report.
func (s *Store) GetReport(ctx context.Context, id string) (*models.Report, error) {
	row, err := s.get(ctx, reportsTable, id)
	if err != nil {
		return nil, err
	}
	docs, skipped := decode([]docRow{row}, setReport)
	if len(skipped) > 0 {
		return nil, corrupt(reportsTable, id)
	}
	return docs[0], nil
}

// ListReports returns matching reports, oldest first.
func (s *Store) ListReports(ctx context.Context, f ReportFilter) ([]*models.Report, error) {
	rows, err := s.list(ctx, reportsTable, f.where(), "created_at ASC, id ASC", f.Limit)
	if err != nil {
		return nil, err
	}
	docs, skipped := decode(rows, setReport)
	logSkipped(reportsTable, skipped)
	return docs, nil
}

// CountReports counts matching reports.
func (s *Store) CountReports(ctx context.Context, f ReportFilter) (int, error) {
	return s.count(ctx, reportsTable.name, f.where())
}

// UpdateReport saves r, moving it to status to.
func (s *Store) UpdateReport(ctx context.Context, r *models.Report, to models.Status, actor string) error {
	prev := r.Status
	r.Status = to
	v, err := s.update(ctx, reportsTable, r.ID, r.Version, to, actor, r, reportColumns(r))
	if err != nil {
		r.Status = prev
		return err
	}
	r.Version = v
	return nil
}

// ApproveReport moves r to approved and stores its posting document in one
// transaction. If either write fails neither is kept, and the transitions
// log records nothing.
func (s *Store) ApproveReport(ctx context.Context, r *models.Report, c *models.ApprovedContent, actor string) error {
	prev, prevContent := r.Status, c.Version
	r.Status = models.ReportApproved
	c.Version = 1

	var v int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		v, err = s.updateTx(ctx, tx, reportsTable, r.ID, r.Version, models.ReportApproved, actor, r, reportColumns(r))
		if err != nil {
			return err
		}
		if err := s.insertTx(ctx, tx, contentTable, c.ID, c.Status, c, contentColumns(c)); err != nil {
			return fmt.Errorf("failed to store approved content: %w", err)
		}
		return nil
	})
	if err != nil {
		r.Status, c.Version = prev, prevContent
		return err
	}
	r.Version = v
	return nil
}

func corrupt(t table, id string) error {
	return fmt.Errorf("%s %s has an unreadable body", t.kind, id)
}
