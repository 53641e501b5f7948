package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"ndta-news/pipeline/internal/models"
)

// StartRun records the beginning of a scrape batch.
func (s *Store) StartRun(ctx context.Context, lookbackDays int) (*models.ScrapeRun, error) {
	run := &models.ScrapeRun{
		ID:           uuid.NewString(),
		StartedAt:    s.now(),
		LookbackDays: lookbackDays,
	}
	q, args, err := psql.Insert("scrape_runs").
		Columns("id", "started_at", "lookback_days").
		Values(run.ID, run.StartedAt, run.LookbackDays).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return nil, fmt.Errorf("failed to record scrape run: %w", err)
	}
	return run, nil
}

// FinishRun stores the final counters of run.
func (s *Store) FinishRun(ctx context.Context, run *models.ScrapeRun) error {
	run.FinishedAt = sql.NullTime{Time: s.now(), Valid: true}
	q, args, err := psql.Update("scrape_runs").SetMap(map[string]any{
		"finished_at":    run.FinishedAt,
		"total":          run.Total,
		"relevant":       run.Relevant,
		"high_relevance": run.HighRelevance,
		"state_specific": run.StateSpecific,
		"rejected":       run.Rejected,
		"auto_approved":  run.AutoApproved,
		"duplicates":     run.Duplicates,
	}).Where(sq.Eq{"id": run.ID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to finish scrape run %s: %w", run.ID, err)
	}
	return nil
}

// LatestRun returns the most recently started scrape run.
func (s *Store) LatestRun(ctx context.Context) (*models.ScrapeRun, error) {
	q, args, err := psql.Select("*").From("scrape_runs").OrderBy("started_at DESC").Limit(1).ToSql()
	if err != nil {
		return nil, err
	}
	var run models.ScrapeRun
	if err := s.db.GetContext(ctx, &run, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no scrape runs", ErrNotFound)
		}
		return nil, err
	}
	return &run, nil
}
