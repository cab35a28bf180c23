package store

import (
	"context"
	"fmt"
	"time"

	"github.com/RixGem/progresspath/internal/logger"
	"github.com/RixGem/progresspath/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DatabaseError marks a storage failure. Fatal for the run: storage
// calls are never retried, only the generation phase retries.
type DatabaseError struct {
	Op  string
	Err error
}

func (e *DatabaseError) Error() string {
	return fmt.Sprintf("database %s failed: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ReplaceResult reports what a successful day swap did.
type ReplaceResult struct {
	DayID         string
	DeletedCount  int64
	InsertedCount int
}

// QuoteStore persists the daily quote dataset in the daily_quotes
// table. Every call is bounded by its own timeout; there is no
// cross-statement transaction, the insert phase approximates atomicity
// with a compensating delete.
type QuoteStore struct {
	db      DB
	timeout time.Duration
}

func NewQuoteStore(db DB, timeout time.Duration) *QuoteStore {
	return &QuoteStore{db: db, timeout: timeout}
}

// NewPool connects a pgx pool for the given URL.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return pool, nil
}

// InitSchema creates the daily_quotes table if it does not exist.
func (s *QuoteStore) InitSchema(ctx context.Context) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.Exec(ctx, `CREATE TABLE IF NOT EXISTS daily_quotes (
		id BIGSERIAL PRIMARY KEY,
		day_id TEXT NOT NULL,
		text TEXT NOT NULL,
		author TEXT NOT NULL,
		language_code TEXT NOT NULL,
		translation TEXT,
		category TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return &DatabaseError{Op: "init schema", Err: err}
	}
	return nil
}

// ReplaceDay swaps the active dataset: delete everything not tagged
// with dayID, then insert the new items. The caller must only invoke
// this with at least one item; a delete failure is surfaced
// immediately and never retried.
func (s *QuoteStore) ReplaceDay(ctx context.Context, dayID string, items []models.ContentItem) (*ReplaceResult, error) {
	deleted, err := s.DeleteOtherDays(ctx, dayID)
	if err != nil {
		return nil, err
	}

	inserted, err := s.insertItems(ctx, dayID, items)
	if err != nil {
		return nil, err
	}

	return &ReplaceResult{
		DayID:         dayID,
		DeletedCount:  deleted,
		InsertedCount: inserted,
	}, nil
}

// DeleteOtherDays removes every row whose day_id differs from dayID and
// returns how many rows went away.
func (s *QuoteStore) DeleteOtherDays(ctx context.Context, dayID string) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	tag, err := s.db.Exec(ctx, `DELETE FROM daily_quotes WHERE day_id <> $1`, dayID)
	if err != nil {
		return 0, &DatabaseError{Op: "delete", Err: err}
	}
	return tag.RowsAffected(), nil
}

// insertItems writes the new dataset one row at a time, collecting the
// assigned ids. Single-row inserts keep every outcome individually
// observable: a multi-row INSERT cannot tell us which rows it wrote
// before failing. On a mid-insert failure the rows already written are
// deleted again and the original insert error is surfaced; a rollback
// failure is logged, never propagated over the insert error.
func (s *QuoteStore) insertItems(ctx context.Context, dayID string, items []models.ContentItem) (int, error) {
	insertedIDs := make([]int64, 0, len(items))

	for i, item := range items {
		id, err := s.insertOne(ctx, dayID, item)
		if err != nil {
			insertErr := &DatabaseError{Op: fmt.Sprintf("insert item %d", i), Err: err}
			s.rollback(ctx, insertedIDs)
			return 0, insertErr
		}
		insertedIDs = append(insertedIDs, id)
	}

	return len(insertedIDs), nil
}

func (s *QuoteStore) insertOne(ctx context.Context, dayID string, item models.ContentItem) (int64, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO daily_quotes (day_id, text, author, language_code, translation, category)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		dayID, item.Text, item.Author, item.LanguageCode, item.Translation, nullIfEmpty(item.Category),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// rollback issues the compensating delete for rows created by a failed
// insert phase.
func (s *QuoteStore) rollback(ctx context.Context, ids []int64) {
	if len(ids) == 0 {
		return
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	if _, err := s.db.Exec(ctx, `DELETE FROM daily_quotes WHERE id = ANY($1)`, ids); err != nil {
		logger.Get().Error().Err(err).
			Int("rows", len(ids)).
			Msg("Rollback of partially inserted rows failed; stale rows remain for manual cleanup")
		return
	}

	logger.Get().Warn().
		Int("rows", len(ids)).
		Msg("Rolled back partially inserted rows after insert failure")
}

// ListOtherDays returns the rows a replace would delete, for archival.
func (s *QuoteStore) ListOtherDays(ctx context.Context, dayID string) ([]models.QuoteRow, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.Query(ctx,
		`SELECT id, day_id, text, author, language_code, translation, category, created_at
		 FROM daily_quotes WHERE day_id <> $1 ORDER BY id`, dayID)
	if err != nil {
		return nil, &DatabaseError{Op: "list", Err: err}
	}
	defer rows.Close()

	var result []models.QuoteRow
	for rows.Next() {
		var r models.QuoteRow
		var category *string
		if err := rows.Scan(&r.ID, &r.DayID, &r.Text, &r.Author, &r.LanguageCode, &r.Translation, &category, &r.CreatedAt); err != nil {
			return nil, &DatabaseError{Op: "scan", Err: err}
		}
		if category != nil {
			r.Category = *category
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &DatabaseError{Op: "list", Err: err}
	}

	return result, nil
}

func (s *QuoteStore) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
