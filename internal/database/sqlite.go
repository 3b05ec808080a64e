package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"photons/internal/database/migrations"
	"photons/internal/photons"
)

// DefaultFileName is the record store's file name inside a target root.
const DefaultFileName = ".photons.db"

// SQLiteStore implements photons.RecordStore on a SQLite database kept
// inside the target root. It also carries the administration and run
// history operations the CLI uses.
type SQLiteStore struct {
	db      *sql.DB
	queries *queries
	path    string
}

// OpenConnection opens and configures a SQLite database connection with appropriate PRAGMAs.
// path can be a file path or ":memory:" for in-memory database.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: every ":memory:" connection is a separate database,
	// and the engine is sequential anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// OpenStore opens the record store of targetRoot, creating the target root
// and the store file when they do not exist yet, and migrates it to the
// current schema. fileName defaults to DefaultFileName.
//
// Every failure is reported as photons.ErrStoreUnavailable.
func OpenStore(targetRoot, fileName string) (*SQLiteStore, error) {
	if fileName == "" {
		fileName = DefaultFileName
	}
	if err := os.MkdirAll(targetRoot, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating target root %s: %v", photons.ErrStoreUnavailable, targetRoot, err)
	}
	return openStore(filepath.Join(targetRoot, fileName))
}

// NewMemoryStore returns a migrated store that lives only in memory.
func NewMemoryStore() (*SQLiteStore, error) {
	return openStore(":memory:")
}

func openStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", photons.ErrStoreUnavailable, err)
	}

	// quick_check fails fast on a file that is not a SQLite database.
	var result string
	if err := db.QueryRow("PRAGMA quick_check").Scan(&result); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: checking %s: %v", photons.ErrStoreUnavailable, path, err)
	}
	if result != "ok" {
		db.Close()
		return nil, fmt.Errorf("%w: %s is corrupt: %s", photons.ErrStoreUnavailable, path, result)
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: migrating %s: %v", photons.ErrStoreUnavailable, path, err)
	}
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %s: %v", photons.ErrStoreUnavailable, path, err)
	}

	return &SQLiteStore{
		db:      db,
		queries: newQueries(db),
		path:    path,
	}, nil
}

// Record operations

func (s *SQLiteStore) Lookup(hash string, length int64) (*photons.ImportedRecord, error) {
	record, err := s.queries.GetRecordByFingerprint(context.Background(), hash, length)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("looking up record by fingerprint: %w", err)
	}
	return record, nil
}

func (s *SQLiteStore) Insert(record *photons.ImportedRecord) error {
	row := *record
	row.ImportedAt = record.ImportedAt.UTC()
	if err := s.queries.InsertRecord(context.Background(), &row); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("%w: %s: %v", photons.ErrDuplicateRecord, record.RelativePath(), err)
		}
		return fmt.Errorf("%w: inserting record %s: %v", photons.ErrPersist, record.ID, err)
	}
	return nil
}

// PathRecorded reports whether any record, enabled or disabled, claims
// subfolder/fileName.
func (s *SQLiteStore) PathRecorded(subfolder, fileName string) (bool, error) {
	exists, err := s.queries.RecordExistsAtPath(context.Background(), subfolder, fileName)
	if err != nil {
		return false, fmt.Errorf("checking recorded path %s: %w",
			photons.Placement{Subfolder: subfolder, FileName: fileName}.Join(""), err)
	}
	return exists, nil
}

// isConstraintViolation reports whether err is a primary key or unique key violation.
func isConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// FindRecordByID returns the record with the given id, or nil.
func (s *SQLiteStore) FindRecordByID(id string) (*photons.ImportedRecord, error) {
	record, err := s.queries.GetRecordByID(context.Background(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding record by id: %w", err)
	}
	return record, nil
}

// ListRecords returns every record ordered by its path in the target tree.
func (s *SQLiteStore) ListRecords() ([]*photons.ImportedRecord, error) {
	records, err := s.queries.ListRecords(context.Background())
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return records, nil
}

// SetImportEnabled toggles a record's import_enabled flag. A disabled record
// no longer blocks a file with the same content from being imported again.
func (s *SQLiteStore) SetImportEnabled(id string, enabled bool) error {
	n, err := s.queries.UpdateRecordImportEnabled(context.Background(), id, enabled)
	if err != nil {
		return fmt.Errorf("updating record %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("record not found: %s", id)
	}
	return nil
}

// Import run tracking

func (s *SQLiteStore) CreateImportRun(startedAt time.Time, sourceRoot, extension string, dryRun bool) (int64, error) {
	id, err := s.queries.InsertImportRun(context.Background(), startedAt.UTC(), sourceRoot, extension, dryRun)
	if err != nil {
		return 0, fmt.Errorf("creating import run: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) FinishImportRun(id int64, finishedAt time.Time, status string, summary photons.ImportSummary) error {
	n, err := s.queries.UpdateImportRunFinished(context.Background(), id, finishedAt.UTC(), status, summary)
	if err != nil {
		return fmt.Errorf("finishing import run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("import run not found: %d", id)
	}
	return nil
}

// ListImportRuns returns up to limit runs, newest first.
func (s *SQLiteStore) ListImportRuns(limit int) ([]*photons.ImportRun, error) {
	runs, err := s.queries.ListImportRuns(context.Background(), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing import runs: %w", err)
	}
	return runs, nil
}

// MaxImportRunID returns the id of the newest run, or 0 for a fresh store.
// It serves as the store's version when comparing with a vault snapshot.
func (s *SQLiteStore) MaxImportRunID() (int64, error) {
	id, err := s.queries.GetMaxImportRunID(context.Background())
	if err != nil {
		return 0, fmt.Errorf("getting max import run ID: %w", err)
	}
	return id, nil
}

// Path returns the database file path (or ":memory:" for in-memory stores).
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db)
}

// BackupTo creates a complete copy of the database at destPath using VACUUM INTO.
func (s *SQLiteStore) BackupTo(destPath string) error {
	_, err := s.db.Exec("VACUUM INTO ?", destPath)
	if err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteStore implements photons.RecordStore
var _ photons.RecordStore = (*SQLiteStore)(nil)
