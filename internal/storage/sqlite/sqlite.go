package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// SQLiteStorage is a local mirror of the tracker. It implements the
// document store interface for offline work and tests.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// Event is one audit trail entry
type Event struct {
	ID        int64
	IssueID   int
	EventType string
	Comment   string
	CreatedAt time.Time
}

// Comment is a comment attached to a record
type Comment struct {
	ID        int64
	IssueID   int
	Body      string
	CreatedAt time.Time
}

// New opens (and creates if needed) the database at path
func New(path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

// Path returns the database file path
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// CreateRecord inserts an open record with the given labels
func (s *SQLiteStorage) CreateRecord(ctx context.Context, title, body string, labels []string) (*types.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO issues (title, body) VALUES (?, ?)
	`, title, body)
	if err != nil {
		return nil, fmt.Errorf("failed to insert record: %w", err)
	}
	id64, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get record id: %w", err)
	}
	id := int(id64)

	if err := recordEvent(ctx, tx, id, EventCreated, title); err != nil {
		return nil, err
	}
	for _, label := range labels {
		if err := addLabel(ctx, tx, id, label); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return s.GetRecord(ctx, id)
}

// GetRecord returns the record with id, or types.ErrNotFound
func (s *SQLiteStorage) GetRecord(ctx context.Context, id int) (*types.Record, error) {
	r := &types.Record{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, body, state FROM issues WHERE id = ?
	`, id).Scan(&r.ID, &r.Title, &r.Body, &r.State)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %d: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %d: %w", id, err)
	}
	labels, err := s.GetLabels(ctx, id)
	if err != nil {
		return nil, err
	}
	r.Labels = labels
	return r, nil
}

// ListRecords returns the records matching filter, ordered by id
func (s *SQLiteStorage) ListRecords(ctx context.Context, filter types.RecordFilter) ([]*types.Record, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query := `SELECT id, title, body, state FROM issues`
	var args []any
	switch filter.State {
	case "", types.StateOpen:
		query += ` WHERE state = ?`
		args = append(args, types.StateOpen)
	case types.StateClosed:
		query += ` WHERE state = ?`
		args = append(args, types.StateClosed)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	var records []*types.Record
	for rows.Next() {
		r := &types.Record{}
		if err := rows.Scan(&r.ID, &r.Title, &r.Body, &r.State); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	_ = rows.Close()

	out := records[:0]
	for _, r := range records {
		labels, err := s.GetLabels(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		r.Labels = labels
		if filter.Matches(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// UpdateRecord replaces title, body and labels of a record
func (s *SQLiteStorage) UpdateRecord(ctx context.Context, id int, title, body string, labels []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `
		UPDATE issues SET title = ?, body = ?, updated_at = ? WHERE id = ?
	`, title, body, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update record %d: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("record %d: %w", id, types.ErrNotFound)
	}
	if err := recordEvent(ctx, tx, id, EventUpdated, title); err != nil {
		return err
	}

	current, err := labelsTx(ctx, tx, id)
	if err != nil {
		return err
	}
	for _, l := range current {
		if !types.HasLabel(labels, l) {
			if err := removeLabel(ctx, tx, id, l); err != nil {
				return err
			}
		}
	}
	for _, l := range labels {
		if err := addLabel(ctx, tx, id, l); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SetState opens or closes a record
func (s *SQLiteStorage) SetState(ctx context.Context, id int, state string) error {
	if state != types.StateOpen && state != types.StateClosed {
		return fmt.Errorf("invalid state %q", state)
	}
	var closedAt any
	if state == types.StateClosed {
		closedAt = time.Now()
	}
	result, err := s.db.ExecContext(ctx, `
		UPDATE issues SET state = ?, closed_at = ?, updated_at = ? WHERE id = ?
	`, state, closedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set state of record %d: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("record %d: %w", id, types.ErrNotFound)
	}
	return nil
}

// AddComment attaches a comment to a record
func (s *SQLiteStorage) AddComment(ctx context.Context, id int, body string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO comments (issue_id, body) VALUES (?, ?)
	`, id, body); err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("record %d: %w", id, types.ErrNotFound)
		}
		return fmt.Errorf("failed to add comment: %w", err)
	}
	if err := recordEvent(ctx, tx, id, EventCommented, body); err != nil {
		return err
	}
	return tx.Commit()
}

// GetComments returns the comments of a record, oldest first
func (s *SQLiteStorage) GetComments(ctx context.Context, id int) ([]*Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, body, created_at FROM comments WHERE issue_id = ? ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*Comment
	for rows.Next() {
		c := &Comment{}
		if err := rows.Scan(&c.ID, &c.IssueID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// GetEvents returns up to limit audit events of a record, oldest first
func (s *SQLiteStorage) GetEvents(ctx context.Context, id int, limit int) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, event_type, COALESCE(comment, ''), created_at
		FROM events WHERE issue_id = ? ORDER BY id ASC LIMIT ?
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		if err := rows.Scan(&e.ID, &e.IssueID, &e.EventType, &e.Comment, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func recordEvent(ctx context.Context, tx execer, id int, eventType, comment string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO events (issue_id, event_type, comment) VALUES (?, ?, ?)
	`, id, eventType, comment); err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("record %d: %w", id, types.ErrNotFound)
		}
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}
