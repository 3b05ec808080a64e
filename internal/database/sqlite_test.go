package database

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"photons/internal/photons"
)

// newTestStore creates a new in-memory store with schema applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRecord(id, subfolder, name, hash string, length int64, enabled bool, importedAt time.Time) *photons.ImportedRecord {
	return &photons.ImportedRecord{
		ID:             id,
		Subfolder:      subfolder,
		FileName:       name,
		OriginalHash:   hash,
		OriginalLength: length,
		ImportEnabled:  enabled,
		SourcePath:     "/camera/" + name,
		ImportedAt:     importedAt,
	}
}

func mustInsert(t *testing.T, s *SQLiteStore, r *photons.ImportedRecord) {
	t.Helper()
	if err := s.Insert(r); err != nil {
		t.Fatalf("Insert(%s) error = %v", r.ID, err)
	}
}

func TestSQLiteStore_Lookup(t *testing.T) {
	t.Run("returns nil when nothing matches", func(t *testing.T) {
		s := newTestStore(t)

		got, err := s.Lookup("abc", 3)
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if got != nil {
			t.Errorf("Lookup() = %+v, want nil", got)
		}
	})

	t.Run("returns the inserted record", func(t *testing.T) {
		s := newTestStore(t)
		want := newRecord("r1", "2024/2024-05-01", "a.jpg", "abc", 3, true, baseTime)
		mustInsert(t, s, want)

		got, err := s.Lookup("abc", 3)
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if got == nil {
			t.Fatal("Lookup() returned nil, want record")
		}
		if got.ID != want.ID || got.Subfolder != want.Subfolder || got.FileName != want.FileName {
			t.Errorf("Lookup() = %+v, want %+v", got, want)
		}
		if got.OriginalHash != "abc" || got.OriginalLength != 3 {
			t.Errorf("fingerprint = (%s, %d), want (abc, 3)", got.OriginalHash, got.OriginalLength)
		}
		if !got.ImportEnabled {
			t.Error("ImportEnabled = false, want true")
		}
		if got.SourcePath != want.SourcePath {
			t.Errorf("SourcePath = %q, want %q", got.SourcePath, want.SourcePath)
		}
		if !got.ImportedAt.Equal(want.ImportedAt) {
			t.Errorf("ImportedAt = %v, want %v", got.ImportedAt, want.ImportedAt)
		}
	})

	t.Run("hash and length must both match", func(t *testing.T) {
		s := newTestStore(t)
		mustInsert(t, s, newRecord("r1", "x", "a.jpg", "abc", 3, true, baseTime))

		for _, q := range []struct {
			hash   string
			length int64
		}{{"abc", 4}, {"abd", 3}} {
			got, err := s.Lookup(q.hash, q.length)
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if got != nil {
				t.Errorf("Lookup(%s, %d) = %s, want nil", q.hash, q.length, got.ID)
			}
		}
	})
}

func TestSQLiteStore_Lookup_tieBreak(t *testing.T) {
	tests := []struct {
		name    string
		records []*photons.ImportedRecord
		wantID  string
	}{
		{
			name: "enabled wins over older disabled",
			records: []*photons.ImportedRecord{
				newRecord("old-disabled", "x", "a.jpg", "h", 1, false, baseTime),
				newRecord("new-enabled", "x", "a_1.jpg", "h", 1, true, baseTime.Add(time.Hour)),
			},
			wantID: "new-enabled",
		},
		{
			name: "oldest enabled wins",
			records: []*photons.ImportedRecord{
				newRecord("newer", "x", "a_1.jpg", "h", 1, true, baseTime.Add(time.Hour)),
				newRecord("older", "x", "a.jpg", "h", 1, true, baseTime),
			},
			wantID: "older",
		},
		{
			name: "oldest disabled when none enabled",
			records: []*photons.ImportedRecord{
				newRecord("d2", "x", "a_1.jpg", "h", 1, false, baseTime.Add(time.Minute)),
				newRecord("d1", "x", "a.jpg", "h", 1, false, baseTime),
			},
			wantID: "d1",
		},
		{
			name: "id breaks equal timestamps",
			records: []*photons.ImportedRecord{
				newRecord("b", "x", "b.jpg", "h", 1, true, baseTime),
				newRecord("a", "x", "a.jpg", "h", 1, true, baseTime),
			},
			wantID: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t)
			for _, r := range tt.records {
				mustInsert(t, s, r)
			}

			got, err := s.Lookup("h", 1)
			if err != nil {
				t.Fatalf("Lookup() error = %v", err)
			}
			if got == nil || got.ID != tt.wantID {
				t.Errorf("Lookup() = %v, want %s", got, tt.wantID)
			}
		})
	}
}

func TestSQLiteStore_Insert(t *testing.T) {
	t.Run("same target path is a duplicate", func(t *testing.T) {
		s := newTestStore(t)
		mustInsert(t, s, newRecord("r1", "x", "a.jpg", "h1", 1, true, baseTime))

		err := s.Insert(newRecord("r2", "x", "a.jpg", "h2", 2, true, baseTime))
		if !errors.Is(err, photons.ErrDuplicateRecord) {
			t.Errorf("Insert() error = %v, want ErrDuplicateRecord", err)
		}
	})

	t.Run("same id is a duplicate", func(t *testing.T) {
		s := newTestStore(t)
		mustInsert(t, s, newRecord("r1", "x", "a.jpg", "h1", 1, true, baseTime))

		err := s.Insert(newRecord("r1", "y", "b.jpg", "h2", 2, true, baseTime))
		if !errors.Is(err, photons.ErrDuplicateRecord) {
			t.Errorf("Insert() error = %v, want ErrDuplicateRecord", err)
		}
	})

	t.Run("same fingerprint at another path is allowed", func(t *testing.T) {
		s := newTestStore(t)
		mustInsert(t, s, newRecord("r1", "x", "a.jpg", "h", 1, false, baseTime))
		mustInsert(t, s, newRecord("r2", "x", "a_1.jpg", "h", 1, true, baseTime))
	})

	t.Run("other constraint failures are persist failures", func(t *testing.T) {
		s := newTestStore(t)

		err := s.Insert(newRecord("r1", "x", "a.jpg", "h", -1, true, baseTime))
		if !errors.Is(err, photons.ErrPersist) {
			t.Errorf("Insert() error = %v, want ErrPersist", err)
		}
		if errors.Is(err, photons.ErrDuplicateRecord) {
			t.Error("Insert() error must not be ErrDuplicateRecord")
		}
	})

	t.Run("closed store is a persist failure", func(t *testing.T) {
		s, err := NewMemoryStore()
		if err != nil {
			t.Fatalf("NewMemoryStore() error = %v", err)
		}
		s.Close()

		err = s.Insert(newRecord("r1", "x", "a.jpg", "h", 1, true, baseTime))
		if !errors.Is(err, photons.ErrPersist) {
			t.Errorf("Insert() error = %v, want ErrPersist", err)
		}
	})
}

func TestSQLiteStore_SetImportEnabled(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, newRecord("r1", "x", "a.jpg", "h", 1, true, baseTime))

	if err := s.SetImportEnabled("r1", false); err != nil {
		t.Fatalf("SetImportEnabled() error = %v", err)
	}
	got, err := s.FindRecordByID("r1")
	if err != nil {
		t.Fatalf("FindRecordByID() error = %v", err)
	}
	if got.ImportEnabled {
		t.Error("ImportEnabled = true after disabling")
	}

	if err := s.SetImportEnabled("r1", true); err != nil {
		t.Fatalf("SetImportEnabled() error = %v", err)
	}
	got, _ = s.FindRecordByID("r1")
	if !got.ImportEnabled {
		t.Error("ImportEnabled = false after enabling")
	}

	if err := s.SetImportEnabled("missing", false); err == nil {
		t.Error("SetImportEnabled() on unknown id expected error")
	}
}

func TestSQLiteStore_PathRecorded(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, newRecord("r1", "2024", "a.jpg", "h1", 1, true, baseTime))
	mustInsert(t, s, newRecord("r2", "2024", "b.jpg", "h2", 2, false, baseTime))
	mustInsert(t, s, newRecord("r3", "", "root.jpg", "h3", 3, true, baseTime))

	tests := []struct {
		subfolder, fileName string
		want                bool
	}{
		{"2024", "a.jpg", true},
		{"2024", "b.jpg", true}, // disabled records still claim their path
		{"", "root.jpg", true},
		{"2024", "c.jpg", false},
		{"2023", "a.jpg", false},
		{"2024", "A.JPG", false},
	}
	for _, tt := range tests {
		t.Run(tt.subfolder+"/"+tt.fileName, func(t *testing.T) {
			got, err := s.PathRecorded(tt.subfolder, tt.fileName)
			if err != nil {
				t.Fatalf("PathRecorded() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("PathRecorded(%q, %q) = %v, want %v", tt.subfolder, tt.fileName, got, tt.want)
			}
		})
	}
}

func TestSQLiteStore_FindRecordByID_missing(t *testing.T) {
	s := newTestStore(t)

	got, err := s.FindRecordByID("nope")
	if err != nil {
		t.Fatalf("FindRecordByID() error = %v", err)
	}
	if got != nil {
		t.Errorf("FindRecordByID() = %+v, want nil", got)
	}
}

func TestSQLiteStore_ListRecords(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, newRecord("r1", "2024/b", "z.jpg", "h1", 1, true, baseTime))
	mustInsert(t, s, newRecord("r2", "2024/a", "y.jpg", "h2", 1, true, baseTime))
	mustInsert(t, s, newRecord("r3", "2024/a", "x.jpg", "h3", 1, true, baseTime))

	got, err := s.ListRecords()
	if err != nil {
		t.Fatalf("ListRecords() error = %v", err)
	}

	var paths []string
	for _, r := range got {
		paths = append(paths, r.RelativePath())
	}
	want := "2024/a/x.jpg,2024/a/y.jpg,2024/b/z.jpg"
	if strings.Join(paths, ",") != want {
		t.Errorf("ListRecords() = %v, want %s", paths, want)
	}
}

func TestSQLiteStore_ImportRuns(t *testing.T) {
	s := newTestStore(t)

	maxID, err := s.MaxImportRunID()
	if err != nil {
		t.Fatalf("MaxImportRunID() error = %v", err)
	}
	if maxID != 0 {
		t.Errorf("MaxImportRunID() on fresh store = %d, want 0", maxID)
	}

	first, err := s.CreateImportRun(baseTime, "/camera", ".jpg", false)
	if err != nil {
		t.Fatalf("CreateImportRun() error = %v", err)
	}
	second, err := s.CreateImportRun(baseTime.Add(time.Hour), "/phone", ".jpg", true)
	if err != nil {
		t.Fatalf("CreateImportRun() error = %v", err)
	}
	if second <= first {
		t.Errorf("run ids not increasing: %d then %d", first, second)
	}

	summary := photons.ImportSummary{Imported: 3, Reimported: 1, Skipped: 2, Ignored: 4, Failed: 1, BytesCopied: 1024}
	if err := s.FinishImportRun(first, baseTime.Add(time.Minute), photons.RunSuccess, summary); err != nil {
		t.Fatalf("FinishImportRun() error = %v", err)
	}
	if err := s.FinishImportRun(999, baseTime, photons.RunSuccess, summary); err == nil {
		t.Error("FinishImportRun() on unknown id expected error")
	}

	runs, err := s.ListImportRuns(10)
	if err != nil {
		t.Fatalf("ListImportRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].ID != second {
		t.Errorf("newest run first: got %d, want %d", runs[0].ID, second)
	}
	if runs[0].Status != photons.RunRunning || runs[0].FinishedAt.Valid {
		t.Errorf("unfinished run = %+v", runs[0])
	}
	if !runs[0].DryRun {
		t.Error("DryRun = false, want true")
	}

	done := runs[1]
	if done.Status != photons.RunSuccess {
		t.Errorf("Status = %q, want %q", done.Status, photons.RunSuccess)
	}
	if done.Summary != summary {
		t.Errorf("Summary = %+v, want %+v", done.Summary, summary)
	}
	if done.Duration() != time.Minute {
		t.Errorf("Duration() = %v, want 1m", done.Duration())
	}
	if done.SourceRoot != "/camera" {
		t.Errorf("SourceRoot = %q, want /camera", done.SourceRoot)
	}

	limited, err := s.ListImportRuns(1)
	if err != nil {
		t.Fatalf("ListImportRuns() error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len(ListImportRuns(1)) = %d, want 1", len(limited))
	}

	maxID, _ = s.MaxImportRunID()
	if maxID != second {
		t.Errorf("MaxImportRunID() = %d, want %d", maxID, second)
	}
}

func TestOpenStore(t *testing.T) {
	t.Run("creates target root and persists across reopen", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "new", "library")

		s, err := OpenStore(target, "")
		if err != nil {
			t.Fatalf("OpenStore() error = %v", err)
		}
		if s.Path() != filepath.Join(target, DefaultFileName) {
			t.Errorf("Path() = %q", s.Path())
		}
		mustInsert(t, s, newRecord("r1", "x", "a.jpg", "h", 1, true, baseTime))
		if err := s.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}

		reopened, err := OpenStore(target, "")
		if err != nil {
			t.Fatalf("reopen error = %v", err)
		}
		defer reopened.Close()

		got, err := reopened.Lookup("h", 1)
		if err != nil || got == nil || got.ID != "r1" {
			t.Errorf("Lookup() after reopen = %v, %v", got, err)
		}
		if err := reopened.CheckMigrations(); err != nil {
			t.Errorf("CheckMigrations() error = %v", err)
		}
	})

	t.Run("rejects a file that is not a database", func(t *testing.T) {
		target := t.TempDir()
		garbage := strings.Repeat("this is not a sqlite database\n", 64)
		if err := os.WriteFile(filepath.Join(target, DefaultFileName), []byte(garbage), 0644); err != nil {
			t.Fatalf("writing garbage: %v", err)
		}

		_, err := OpenStore(target, "")
		if !errors.Is(err, photons.ErrStoreUnavailable) {
			t.Errorf("OpenStore() error = %v, want ErrStoreUnavailable", err)
		}
	})

	t.Run("fails when the target root cannot be created", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatalf("writing blocker: %v", err)
		}

		_, err := OpenStore(filepath.Join(blocker, "library"), "")
		if !errors.Is(err, photons.ErrStoreUnavailable) {
			t.Errorf("OpenStore() error = %v, want ErrStoreUnavailable", err)
		}
	})
}

func TestSQLiteStore_BackupTo(t *testing.T) {
	s := newTestStore(t)
	mustInsert(t, s, newRecord("r1", "x", "a.jpg", "h", 1, true, baseTime))

	dest := filepath.Join(t.TempDir(), "snapshot.db")
	if err := s.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	db, err := OpenConnection(dest)
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM imported_files").Scan(&count); err != nil {
		t.Fatalf("counting records: %v", err)
	}
	if count != 1 {
		t.Errorf("snapshot has %d records, want 1", count)
	}
}
