package database

import (
	"context"
	"database/sql"
	"time"

	"photons/internal/photons"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries holds the SQL used by SQLiteStore, one method per statement.
type queries struct {
	db dbtx
}

func newQueries(db dbtx) *queries {
	return &queries{db: db}
}

const recordColumns = `id, subfolder, file_name, original_hash, original_length, import_enabled, source_path, imported_at`

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*photons.ImportedRecord, error) {
	var r photons.ImportedRecord
	err := s.Scan(&r.ID, &r.Subfolder, &r.FileName, &r.OriginalHash, &r.OriginalLength,
		&r.ImportEnabled, &r.SourcePath, &r.ImportedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

const getRecordByFingerprint = `SELECT ` + recordColumns + `
FROM imported_files
WHERE original_hash = ? AND original_length = ?
ORDER BY import_enabled DESC, imported_at ASC, id ASC
LIMIT 1`

func (q *queries) GetRecordByFingerprint(ctx context.Context, hash string, length int64) (*photons.ImportedRecord, error) {
	return scanRecord(q.db.QueryRowContext(ctx, getRecordByFingerprint, hash, length))
}

const getRecordByID = `SELECT ` + recordColumns + `
FROM imported_files
WHERE id = ?`

func (q *queries) GetRecordByID(ctx context.Context, id string) (*photons.ImportedRecord, error) {
	return scanRecord(q.db.QueryRowContext(ctx, getRecordByID, id))
}

const listRecords = `SELECT ` + recordColumns + `
FROM imported_files
ORDER BY subfolder, file_name`

func (q *queries) ListRecords(ctx context.Context) ([]*photons.ImportedRecord, error) {
	rows, err := q.db.QueryContext(ctx, listRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*photons.ImportedRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

const recordExistsAtPath = `SELECT EXISTS (
    SELECT 1 FROM imported_files WHERE subfolder = ? AND file_name = ?
)`

func (q *queries) RecordExistsAtPath(ctx context.Context, subfolder, fileName string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, recordExistsAtPath, subfolder, fileName).Scan(&exists)
	return exists, err
}

const insertRecord = `INSERT INTO imported_files (` + recordColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *queries) InsertRecord(ctx context.Context, r *photons.ImportedRecord) error {
	_, err := q.db.ExecContext(ctx, insertRecord, r.ID, r.Subfolder, r.FileName, r.OriginalHash,
		r.OriginalLength, r.ImportEnabled, r.SourcePath, r.ImportedAt)
	return err
}

const updateRecordImportEnabled = `UPDATE imported_files SET import_enabled = ? WHERE id = ?`

func (q *queries) UpdateRecordImportEnabled(ctx context.Context, id string, enabled bool) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateRecordImportEnabled, enabled, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertImportRun = `INSERT INTO import_runs (started_at, source_root, extension, dry_run, status)
VALUES (?, ?, ?, ?, ?)
RETURNING id`

func (q *queries) InsertImportRun(ctx context.Context, startedAt time.Time, sourceRoot, extension string, dryRun bool) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, insertImportRun, startedAt, sourceRoot, extension, dryRun, photons.RunRunning).Scan(&id)
	return id, err
}

const updateImportRunFinished = `UPDATE import_runs
SET finished_at = ?, status = ?, imported = ?, reimported = ?, skipped = ?, ignored = ?, failed = ?, bytes_copied = ?
WHERE id = ?`

func (q *queries) UpdateImportRunFinished(ctx context.Context, id int64, finishedAt time.Time, status string, s photons.ImportSummary) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateImportRunFinished, finishedAt, status,
		s.Imported, s.Reimported, s.Skipped, s.Ignored, s.Failed, s.BytesCopied, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listImportRuns = `SELECT id, started_at, finished_at, source_root, extension, dry_run, status,
       imported, reimported, skipped, ignored, failed, bytes_copied
FROM import_runs
ORDER BY id DESC
LIMIT ?`

func (q *queries) ListImportRuns(ctx context.Context, limit int64) ([]*photons.ImportRun, error) {
	rows, err := q.db.QueryContext(ctx, listImportRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*photons.ImportRun
	for rows.Next() {
		var r photons.ImportRun
		err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.SourceRoot, &r.Extension, &r.DryRun, &r.Status,
			&r.Summary.Imported, &r.Summary.Reimported, &r.Summary.Skipped, &r.Summary.Ignored,
			&r.Summary.Failed, &r.Summary.BytesCopied)
		if err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

const getMaxImportRunID = `SELECT COALESCE(MAX(id), 0) FROM import_runs`

func (q *queries) GetMaxImportRunID(ctx context.Context) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, getMaxImportRunID).Scan(&id)
	return id, err
}
