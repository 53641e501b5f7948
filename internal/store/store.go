// Package store persists pipeline documents in the embedded SQLite database.
//
// Every document is a JSON body plus a few indexed columns used for
// filtering. Updates are compare-and-swap on the version column, and every
// status change is appended to the transitions log in the same transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"ndta-news/pipeline/internal/database"
	"ndta-news/pipeline/internal/models"
)

var (
	// ErrNotFound is returned when no document has the requested id.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned when a document changed since it was read.
	ErrVersionConflict = errors.New("document version conflict")
	// ErrExists is returned when inserting an id that is already stored.
	ErrExists = errors.New("document already exists")
)

// psql builds '?' placeholder queries for sqlite.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// Store is the document store shared by every pipeline stage.
type Store struct {
	db  *database.DB
	now func() time.Time
}

// New wraps an open database.
func New(db *database.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// Ping checks the underlying connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type docRow struct {
	ID        string    `db:"id"`
	Status    string    `db:"status"`
	Version   int       `db:"version"`
	Body      string    `db:"body"`
	CreatedAt time.Time `db:"created_at"`
}

// table describes one document collection.
type table struct {
	name string
	kind models.Kind
}

var (
	articlesTable = table{name: "articles", kind: models.KindArticle}
	reportsTable  = table{name: "reports", kind: models.KindReport}
	contentTable  = table{name: "approved_content", kind: models.KindContent}
)

// insert stores a new document. Duplicate ids are reported with ErrExists
// and leave the stored document untouched.
func (s *Store) insert(ctx context.Context, t table, id string, status models.Status, body any, cols map[string]any) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		return s.insertTx(ctx, tx, t, id, status, body, cols)
	})
}

// insertTx is insert inside an open transaction.
func (s *Store) insertTx(ctx context.Context, tx *sqlx.Tx, t table, id string, status models.Status, body any, cols map[string]any) error {
	if !models.ValidInitial(t.kind, status) {
		return fmt.Errorf("%w: new %s cannot start in %s", models.ErrInvalidTransition, t.kind, status)
	}

	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", t.kind, id, err)
	}

	now := s.now()
	values := map[string]any{
		"id":         id,
		"status":     string(status),
		"body":       string(data),
		"version":    1,
		"created_at": now,
		"updated_at": now,
	}
	for k, v := range cols {
		values[k] = v
	}

	query, args, err := psql.Insert(t.name).SetMap(values).Suffix("ON CONFLICT(id) DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert %s %s: %w", t.kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrExists, t.kind, id)
	}
	return s.recordTransition(ctx, tx, t.kind, id, "", status, "system")
}

// update writes body if the stored version still equals version and the
// status change is allowed. It returns the new version.
func (s *Store) update(ctx context.Context, t table, id string, version int, to models.Status, actor string, body any, cols map[string]any) (int, error) {
	var newVersion int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		newVersion, err = s.updateTx(ctx, tx, t, id, version, to, actor, body, cols)
		return err
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

// updateTx is update inside an open transaction.
func (s *Store) updateTx(ctx context.Context, tx *sqlx.Tx, t table, id string, version int, to models.Status, actor string, body any, cols map[string]any) (int, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal %s %s: %w", t.kind, id, err)
	}

	var current docRow
	q, args, err := psql.Select("id", "status", "version").From(t.name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return 0, err
	}
	if err := tx.GetContext(ctx, &current, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s %s", ErrNotFound, t.kind, id)
		}
		return 0, err
	}
	if current.Version != version {
		return 0, fmt.Errorf("%w: %s %s is at version %d, not %d", ErrVersionConflict, t.kind, id, current.Version, version)
	}

	from := models.Status(current.Status)
	if err := models.CheckTransition(t.kind, from, to); err != nil {
		return 0, err
	}

	newVersion := version + 1
	set := map[string]any{
		"status":     string(to),
		"body":       string(data),
		"version":    newVersion,
		"updated_at": s.now(),
	}
	for k, v := range cols {
		set[k] = v
	}
	uq, uargs, err := psql.Update(t.name).SetMap(set).Where(sq.Eq{"id": id, "version": version}).ToSql()
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, uq, uargs...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s %s: %w", t.kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: %s %s", ErrVersionConflict, t.kind, id)
	}

	if from != to {
		if err := s.recordTransition(ctx, tx, t.kind, id, from, to, actor); err != nil {
			return 0, err
		}
	}
	return newVersion, nil
}

func (s *Store) recordTransition(ctx context.Context, tx *sqlx.Tx, kind models.Kind, id string, from, to models.Status, actor string) error {
	q, args, err := psql.Insert("transitions").SetMap(map[string]any{
		"id":          uuid.NewString(),
		"kind":        string(kind),
		"document_id": id,
		"from_status": string(from),
		"to_status":   string(to),
		"actor":       actor,
		"created_at":  s.now(),
	}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to record transition: %w", err)
	}
	return nil
}

// get loads a single row.
func (s *Store) get(ctx context.Context, t table, id string) (docRow, error) {
	var row docRow
	q, args, err := psql.Select("id", "status", "version", "body", "created_at").From(t.name).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return row, err
	}
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return row, fmt.Errorf("%w: %s %s", ErrNotFound, t.kind, id)
		}
		return row, fmt.Errorf("failed to load %s %s: %w", t.kind, id, err)
	}
	return row, nil
}

// list loads the rows of t matching where, in the given order.
func (s *Store) list(ctx context.Context, t table, where sq.Sqlizer, orderBy string, limit uint64) ([]docRow, error) {
	b := psql.Select("id", "status", "version", "body", "created_at").From(t.name)
	if where != nil {
		b = b.Where(where)
	}
	if orderBy != "" {
		b = b.OrderBy(orderBy)
	}
	if limit > 0 {
		b = b.Limit(limit)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	var rows []docRow
	if err := s.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", t.name, err)
	}
	return rows, nil
}

func (s *Store) count(ctx context.Context, from string, where sq.Sqlizer) (int, error) {
	b := psql.Select("COUNT(*)").From(from)
	if where != nil {
		b = b.Where(where)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, q, args...); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", from, err)
	}
	return n, nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// decode unmarshals each row body into a fresh T, letting set copy the
// authoritative id, status and version columns into it. Rows with a corrupt
// body are skipped and reported through skipped.
func decode[T any](rows []docRow, set func(*T, docRow)) (docs []*T, skipped []string) {
	docs = make([]*T, 0, len(rows))
	for _, row := range rows {
		doc := new(T)
		if err := json.Unmarshal([]byte(row.Body), doc); err != nil {
			skipped = append(skipped, row.ID)
			continue
		}
		set(doc, row)
		docs = append(docs, doc)
	}
	return docs, skipped
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func statusStrings(statuses []models.Status) []string {
	out := make([]string, len(statuses))
	for i, st := range statuses {
		out[i] = string(st)
	}
	return out
}

// Transitions returns the status history of one document, oldest first.
func (s *Store) Transitions(ctx context.Context, kind models.Kind, id string) ([]models.Transition, error) {
	q, args, err := psql.Select("*").From("transitions").
		Where(sq.Eq{"kind": string(kind), "document_id": id}).
		OrderBy("created_at ASC", "rowid ASC").ToSql()
	if err != nil {
		return nil, err
	}
	var out []models.Transition
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("failed to load transitions: %w", err)
	}
	return out, nil
}
