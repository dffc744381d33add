package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kernelkit/test-system-status/internal/domain/model"
	"github.com/kernelkit/test-system-status/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SnapshotStore = (*SnapshotRepo)(nil)

// SnapshotRepo is the SQLite implementation of the SnapshotStore port interface.
// Each report is stored as a JSON payload next to a few queryable columns.
type SnapshotRepo struct {
	db *DB
}

// NewSnapshotRepo creates a new SnapshotRepo backed by the given DB.
func NewSnapshotRepo(db *DB) *SnapshotRepo {
	return &SnapshotRepo{db: db}
}

// ReplaceSnapshot atomically replaces the stored snapshot.
// It deletes the existing reports and inserts the provided ones in a single transaction.
func (r *SnapshotRepo) ReplaceSnapshot(ctx context.Context, snapshot model.Snapshot) error {
	tx, err := r.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op.

	if _, err := tx.ExecContext(ctx, `DELETE FROM repository_reports`); err != nil {
		return fmt.Errorf("delete repository reports: %w", err)
	}

	const upsertSnapshot = `
		INSERT INTO snapshot (id, built_at) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET built_at = excluded.built_at
	`
	if _, err := tx.ExecContext(ctx, upsertSnapshot, snapshot.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}

	const insertReport = `
		INSERT INTO repository_reports (position, repo, branch, overall_status, error, payload)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	for i, report := range snapshot.Repositories {
		payload, err := json.Marshal(report)
		if err != nil {
			return fmt.Errorf("encode report %s@%s: %w", report.Repo, report.Branch, err)
		}

		if _, err := tx.ExecContext(ctx, insertReport,
			i, report.Repo, report.Branch, string(report.Overall), report.Error, string(payload),
		); err != nil {
			return fmt.Errorf("insert report %s@%s: %w", report.Repo, report.Branch, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}

	return nil
}

// GetLatest returns the stored snapshot with reports in their original order,
// or nil if no snapshot has been stored.
func (r *SnapshotRepo) GetLatest(ctx context.Context) (*model.Snapshot, error) {
	var builtAt string
	err := r.db.Reader.QueryRowContext(ctx, `SELECT built_at FROM snapshot WHERE id = 1`).Scan(&builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	ts, err := parseTime(builtAt)
	if err != nil {
		return nil, fmt.Errorf("parse built_at: %w", err)
	}

	rows, err := r.db.Reader.QueryContext(ctx, `SELECT payload FROM repository_reports ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query repository reports: %w", err)
	}
	defer rows.Close()

	reports := []model.RepositoryReport{}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository report: %w", err)
		}
		reports = append(reports, *report)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repository reports: %w", err)
	}

	return &model.Snapshot{
		Timestamp:    ts,
		Repositories: reports,
	}, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (*model.RepositoryReport, error) {
	var payload string
	if err := s.Scan(&payload); err != nil {
		return nil, err
	}

	var report model.RepositoryReport
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	return &report, nil
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
