// Package repository stores feedback records for the reference backend in SQLite.
//
// EDUCATIONAL CONTEXT:
// The Repository pattern sits between the HTTP handlers and the database. The
// handlers deal only in model.Feedback values; this package owns the schema,
// the queries and the mapping between rows and structs.
//
// Consequences for the rest of the code:
// 1. Handlers depend on a small Store interface, so tests can use ":memory:".
// 2. Defaults (priority, status, user type) are applied in one place.
// 3. Meta is opaque to the service and kept as a JSON text column, so callers
//    can attach order ids or screen names without a schema change.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bluefermion/marketfeedback/internal/model"
	// Pure Go driver, so the server builds without CGO.
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("feedback not found")

// DefaultListLimit caps List when the caller passes no limit.
const DefaultListLimit = 50

// MaxListLimit is the largest page List returns.
const MaxListLimit = 200

// SQLiteRepository wraps the database handle.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository opens (or creates) the database at dbPath and ensures the
// schema exists. ":memory:" is accepted for tests.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives and dies with its connection. database/sql
	// pools connections, and a second connection would see an empty database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// PERFORMANCE TIP: WAL (Write-Ahead Logging) mode.
	// The default rollback journal blocks readers during a write. With WAL the
	// list endpoint keeps answering while a submission is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	repo := &SQLiteRepository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return repo, nil
}

// migrate creates the schema. Every statement is idempotent ("IF NOT EXISTS")
// so it runs on each boot. A schema change to an existing table would need a
// real migration step; this service has only ever had one table shape.
func (r *SQLiteRepository) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,

		rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
		comment TEXT NOT NULL DEFAULT '',
		feedback_type TEXT NOT NULL DEFAULT 'user_experience',

		subject TEXT NOT NULL DEFAULT '',
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'pending',

		user_id TEXT NOT NULL DEFAULT '',
		user_type TEXT NOT NULL DEFAULT 'anonymous',

		-- Caller context, JSON object or NULL.
		meta TEXT,

		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_feedback_type ON feedback(feedback_type);
	CREATE INDEX IF NOT EXISTS idx_feedback_user_type ON feedback(user_type);
	CREATE INDEX IF NOT EXISTS idx_feedback_created_at ON feedback(created_at);
	`
	_, err := r.db.Exec(query)
	return err
}

// columns is the explicit SELECT list. scanFeedback must read them in this order.
const columns = `id, rating, comment, feedback_type, subject, priority, status,
	user_id, user_type, meta, created_at, updated_at`

// applyDefaults fills the fields the client may leave empty.
func applyDefaults(f *model.Feedback) {
	if f.FeedbackType == "" {
		f.FeedbackType = model.FeedbackTypeUserExperience
	}
	if f.Priority == "" {
		f.Priority = model.DefaultPriority
	}
	if f.Status == "" {
		f.Status = model.DefaultStatus
	}
	if f.UserType == "" {
		f.UserType = model.UserTypeAnonymous
	}
}

// Create inserts f and sets its ID and timestamps.
func (r *SQLiteRepository) Create(ctx context.Context, f *model.Feedback) (int64, error) {
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	applyDefaults(f)

	meta, err := encodeMeta(f.Meta)
	if err != nil {
		return 0, err
	}

	// Parameterized query: values always travel as ? arguments, never as
	// concatenated SQL text.
	result, err := r.db.ExecContext(ctx, `
	INSERT INTO feedback (
		rating, comment, feedback_type, subject, priority, status,
		user_id, user_type, meta, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Rating, f.Comment, f.FeedbackType, f.Subject, f.Priority, f.Status,
		f.UserID, f.UserType, meta, f.CreatedAt, f.UpdatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert feedback: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert ID: %w", err)
	}
	f.ID = id
	return id, nil
}

// Update replaces the editable fields of record f.ID and refreshes f from the
// stored row. It returns ErrNotFound if the record does not exist.
func (r *SQLiteRepository) Update(ctx context.Context, f *model.Feedback) error {
	applyDefaults(f)
	meta, err := encodeMeta(f.Meta)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, `
	UPDATE feedback SET
		rating = ?, comment = ?, feedback_type = ?, subject = ?, priority = ?, status = ?,
		user_id = ?, user_type = ?, meta = ?, updated_at = ?
	WHERE id = ?`,
		f.Rating, f.Comment, f.FeedbackType, f.Subject, f.Priority, f.Status,
		f.UserID, f.UserType, meta, time.Now().UTC(), f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	// SQLite reports 0 rows for an unknown id; that is the not-found signal.
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	// Read back so the caller gets created_at from the original insert.
	stored, err := r.GetByID(ctx, f.ID)
	if err != nil {
		return err
	}
	*f = *stored
	return nil
}

// GetByID returns one record or ErrNotFound.
func (r *SQLiteRepository) GetByID(ctx context.Context, id int64) (*model.Feedback, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM feedback WHERE id = ?`, id)
	f, err := scanFeedback(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feedback: %w", err)
	}
	return f, nil
}

// ListFilter narrows List. Empty fields match everything.
type ListFilter struct {
	FeedbackType string
	UserType     string
	UserID       string
	Limit        int
	Offset       int
}

// List returns records matching filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]*model.Feedback, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)
	offset := max(filter.Offset, 0)

	// Only column names from this fixed map are concatenated into the query.
	// User-supplied values go through args.
	var where []string
	var args []any
	for col, v := range map[string]string{
		"feedback_type": filter.FeedbackType,
		"user_type":     filter.UserType,
		"user_id":       filter.UserID,
	} {
		if v != "" {
			where = append(where, col+" = ?")
			args = append(args, v)
		}
	}

	query := `SELECT ` + columns + ` FROM feedback`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	// id breaks ties between rows written in the same timestamp tick.
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list feedback: %w", err)
	}
	defer rows.Close()

	// Non-nil so an empty page encodes as [] rather than null.
	list := []*model.Feedback{}
	for rows.Next() {
		f, err := scanFeedback(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		list = append(list, f)
	}
	return list, rows.Err()
}

// Ping checks the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close terminates the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanFeedback(s scanner) (*model.Feedback, error) {
	f := &model.Feedback{}
	var meta sql.NullString
	err := s.Scan(
		&f.ID, &f.Rating, &f.Comment, &f.FeedbackType,
		&f.Subject, &f.Priority, &f.Status,
		&f.UserID, &f.UserType, &meta,
		&f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &f.Meta); err != nil {
			return nil, fmt.Errorf("decode meta of feedback %d: %w", f.ID, err)
		}
	}
	return f, nil
}

func encodeMeta(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}
	return string(b), nil
}
