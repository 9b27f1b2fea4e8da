package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/aireach/internal/errors"
	"github.com/hpungsan/aireach/internal/work"
)

const selectColumns = `id, title, author, excerpt, analysis_text, created_at`

// Insert stores a new history record. ID and CreatedAt must already be set.
func Insert(ctx context.Context, q Queryer, r *work.Record) error {
	query := `
		INSERT INTO history (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := q.ExecContext(ctx, query,
		r.ID, r.Title, r.Author, r.Excerpt, r.AnalysisText, r.CreatedAt.UnixNano(),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListAll returns every record, newest first. Records sharing a timestamp are
// ordered by id, which is monotonic within a process.
func ListAll(ctx context.Context, q Queryer) ([]work.Record, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM history
		ORDER BY created_at DESC, id DESC
	`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	records := []work.Record{}
	for rows.Next() {
		r, err := ScanRecordFromRows(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		records = append(records, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return records, nil
}

// GetByID retrieves one record.
func GetByID(ctx context.Context, q Queryer, id string) (*work.Record, error) {
	query := `SELECT ` + selectColumns + ` FROM history WHERE id = ?`

	var (
		r         work.Record
		createdAt int64
	)
	err := q.QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Title, &r.Author, &r.Excerpt, &r.AnalysisText, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	r.CreatedAt = time.Unix(0, createdAt)

	return &r, nil
}

// Count returns the number of stored records.
func Count(ctx context.Context, q Queryer) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// DropHistory drops the history table and recreates it empty, returning the
// number of records that were removed. q should be a transaction so the
// collection is never observed missing.
func DropHistory(ctx context.Context, q Queryer) (int, error) {
	n, err := Count(ctx, q)
	if err != nil {
		return 0, err
	}
	if _, err := q.ExecContext(ctx, `DROP TABLE IF EXISTS history`); err != nil {
		return 0, errors.NewInternal(err)
	}
	if _, err := q.ExecContext(ctx, historySchema); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

// StreamForExport returns rows for every record in export order (newest
// first). Callers must close the returned rows.
func StreamForExport(ctx context.Context, q Queryer) (*sql.Rows, error) {
	query := `
		SELECT ` + selectColumns + `
		FROM history
		ORDER BY created_at DESC, id DESC
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return rows, nil
}

// ScanRecordFromRows scans the current row of a history query.
func ScanRecordFromRows(rows *sql.Rows) (*work.Record, error) {
	var (
		r         work.Record
		createdAt int64
	)
	if err := rows.Scan(&r.ID, &r.Title, &r.Author, &r.Excerpt, &r.AnalysisText, &createdAt); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdAt)
	return &r, nil
}
