package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"ndta-news/pipeline/internal/models"
)

// MaxSourceFailures is how many consecutive failures mark a source failed.
const MaxSourceFailures = 10

// EnsureSource returns the tracked source for url, creating it as active on
// first sight.
func (s *Store) EnsureSource(ctx context.Context, kind, url, name string) (*models.Source, error) {
	src, err := s.sourceByURL(ctx, url)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err := s.InsertSource(ctx, models.NewSource(kind, url, name)); err != nil && !errors.Is(err, ErrExists) {
		return nil, err
	}
	return s.sourceByURL(ctx, url)
}

// InsertSource adds a source. A source whose url is already tracked is
// reported with ErrExists.
func (s *Store) InsertSource(ctx context.Context, src *models.Source) error {
	now := s.now()
	if src.Status == "" {
		src.Status = models.SourceActive
	}
	q, args, err := psql.Insert("sources").SetMap(map[string]any{
		"url":        src.URL,
		"name":       src.Name,
		"kind":       src.Kind,
		"comments":   src.Comments,
		"status":     src.Status,
		"created_at": now,
		"updated_at": now,
	}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, q, args...)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: source %s", ErrExists, src.URL)
		}
		return fmt.Errorf("failed to insert source %s: %w", src.URL, err)
	}
	if id, err := res.LastInsertId(); err == nil {
		src.ID = id
	}
	return nil
}

func (s *Store) sourceByURL(ctx context.Context, url string) (*models.Source, error) {
	q, args, err := psql.Select("*").From("sources").Where(sq.Eq{"url": url}).ToSql()
	if err != nil {
		return nil, err
	}
	var src models.Source
	if err := s.db.GetContext(ctx, &src, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: source %s", ErrNotFound, url)
		}
		return nil, err
	}
	return &src, nil
}

// ListSources returns tracked sources of kind ("" for all), least recently
// fetched first. With activeOnly, failed sources are left out.
func (s *Store) ListSources(ctx context.Context, kind string, activeOnly bool) ([]models.Source, error) {
	b := psql.Select("*").From("sources").OrderBy("last_retrieved_at ASC", "created_at ASC")
	if kind != "" {
		b = b.Where(sq.Eq{"kind": kind})
	}
	if activeOnly {
		b = b.Where(sq.NotEq{"status": models.SourceFailed})
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	var out []models.Source
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	return out, nil
}

// RecordFetch updates a source's health after a fetch attempt. A 429 marks
// it rate limited without counting a failure; other errors count towards
// MaxSourceFailures; success resets the counter.
func (s *Store) RecordFetch(ctx context.Context, src *models.Source, fetchErr error) error {
	now := s.now()
	switch {
	case fetchErr == nil:
		src.Status = models.SourceActive
		src.FailuresCount = 0
		src.LastError = sql.NullString{}
	case strings.Contains(fetchErr.Error(), "429"):
		src.Status = models.SourceRateLimited
		src.LastError = sql.NullString{String: "Rate limited by source", Valid: true}
	default:
		src.FailuresCount++
		src.LastError = sql.NullString{String: fetchErr.Error(), Valid: true}
		if src.FailuresCount > MaxSourceFailures {
			src.Status = models.SourceFailed
		}
	}
	src.LastRetrievedAt = sql.NullTime{Time: now, Valid: true}
	src.UpdatedAt = now

	q, args, err := psql.Update("sources").SetMap(map[string]any{
		"status":            src.Status,
		"failures_count":    src.FailuresCount,
		"last_error":        src.LastError,
		"last_retrieved_at": src.LastRetrievedAt,
		"updated_at":        now,
	}).Where(sq.Eq{"id": src.ID}).ToSql()
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to update source %d (%s): %w", src.ID, src.URL, err)
	}
	return nil
}
