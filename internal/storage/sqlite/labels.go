package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/aliasrobotics/RVD-sub000/internal/types"
)

// AddLabel adds a label to a record
func (s *SQLiteStorage) AddLabel(ctx context.Context, id int, label string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := addLabel(ctx, tx, id, label); err != nil {
		return err
	}
	return tx.Commit()
}

// RemoveLabel removes a label from a record
func (s *SQLiteStorage) RemoveLabel(ctx context.Context, id int, label string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := removeLabel(ctx, tx, id, label); err != nil {
		return err
	}
	return tx.Commit()
}

// GetLabels returns all labels of a record, sorted
func (s *SQLiteStorage) GetLabels(ctx context.Context, id int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label FROM labels WHERE issue_id = ? ORDER BY label
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get labels: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanLabels(rows)
}

func labelsTx(ctx context.Context, tx *sql.Tx, id int) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT label FROM labels WHERE issue_id = ? ORDER BY label
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get labels: %w", err)
	}
	defer func() { _ = rows.Close() }()
	return scanLabels(rows)
}

func scanLabels(rows *sql.Rows) ([]string, error) {
	labels := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// addLabel records an event only if the label was not already present
func addLabel(ctx context.Context, tx execer, id int, label string) error {
	result, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO labels (issue_id, label) VALUES (?, ?)
	`, id, label)
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("record %d: %w", id, types.ErrNotFound)
		}
		return fmt.Errorf("failed to add label: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return recordEvent(ctx, tx, id, EventLabelAdded, fmt.Sprintf("Added label: %s", label))
	}
	return nil
}

func removeLabel(ctx context.Context, tx execer, id int, label string) error {
	result, err := tx.ExecContext(ctx, `
		DELETE FROM labels WHERE issue_id = ? AND label = ?
	`, id, label)
	if err != nil {
		return fmt.Errorf("failed to remove label: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return recordEvent(ctx, tx, id, EventLabelRemoved, fmt.Sprintf("Removed label: %s", label))
	}
	return nil
}

func isForeignKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}
