package app

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"photons/internal/config"
	"photons/internal/database"
	"photons/internal/photons"
	"photons/internal/testutil"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig(t.TempDir())
	cfg.Encryption.Type = "test"
	cfg.Vaults = []config.VaultConfig{
		{Type: "filesystem", Name: "local", FSVaultRoot: t.TempDir()},
	}
	return cfg
}

func testOptions() Options {
	return Options{Console: io.Discard, Clock: testutil.TickingClock(), IDGen: testutil.NewStubIDGenerator()}
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("creating %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func openApp(t *testing.T, cfg *config.Config, target, command string) *PhotonsApp {
	t.Helper()
	a, err := NewPhotonsApp(cfg, target, command, testOptions())
	if err != nil {
		t.Fatalf("NewPhotonsApp() error = %v", err)
	}
	return a
}

func importOnce(t *testing.T, cfg *config.Config, source, target string) *photons.ImportSummary {
	t.Helper()
	a := openApp(t, cfg, target, "import")
	summary, err := a.Import(source, photons.ImportOptions{Extension: cfg.Import.Extension})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return summary
}

func TestPhotonsApp_Import(t *testing.T) {
	cfg := newTestConfig(t)
	source := t.TempDir()
	target := filepath.Join(t.TempDir(), "library")
	photo := testutil.JPEGWithDateTime("2023:07:14 09:30:00")
	writeFile(t, filepath.Join(source, "a.jpg"), photo)
	writeFile(t, filepath.Join(source, "b.txt"), []byte("notes"))

	first := importOnce(t, cfg, source, target)
	if first.Imported != 1 || first.Ignored != 1 || first.Failed != 0 {
		t.Fatalf("first summary = %+v", *first)
	}
	got, err := os.ReadFile(filepath.Join(target, "2023", "2023-07-14", "a.jpg"))
	if err != nil {
		t.Fatalf("imported file missing: %v", err)
	}
	if string(got) != string(photo) {
		t.Error("imported file content differs from source")
	}

	second := importOnce(t, cfg, source, target)
	if second.Imported != 0 || second.Skipped != 1 {
		t.Errorf("second summary = %+v, want one skipped", *second)
	}

	a := openApp(t, cfg, target, "history")
	defer a.Close()
	runs, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len(runs) = %d, want 2", len(runs))
	}
	if runs[0].Status != photons.RunSuccess || runs[0].Summary.Skipped != 1 {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[1].SourceRoot != source || runs[1].Summary.Imported != 1 {
		t.Errorf("oldest run = %+v", runs[1])
	}
}

func TestPhotonsApp_Import_missingSource(t *testing.T) {
	cfg := newTestConfig(t)
	a := openApp(t, cfg, t.TempDir(), "import")
	defer a.Close()

	if _, err := a.Import(filepath.Join(t.TempDir(), "nope"), photons.ImportOptions{Extension: ".jpg"}); err == nil {
		t.Fatal("Import() expected error for missing source")
	}
	if a.op.Status != photons.RunError {
		t.Errorf("operation status = %q, want %q", a.op.Status, photons.RunError)
	}
}

func TestPhotonsApp_targetLock(t *testing.T) {
	cfg := newTestConfig(t)
	target := t.TempDir()

	first := openApp(t, cfg, target, "import")
	_, err := NewPhotonsApp(cfg, target, "import", testOptions())
	if !errors.Is(err, ErrTargetLocked) {
		t.Fatalf("second NewPhotonsApp() error = %v, want ErrTargetLocked", err)
	}

	if err := first.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	again := openApp(t, cfg, target, "import")
	again.Close()
}

func TestPhotonsApp_SetImportEnabled(t *testing.T) {
	cfg := newTestConfig(t)
	source := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(source, "IMG_20240102_101010.jpg"), []byte("image"))
	importOnce(t, cfg, source, target)

	a := openApp(t, cfg, target, "records disable")
	records, err := a.Records()
	if err != nil || len(records) != 1 {
		t.Fatalf("Records() = %v, %v", records, err)
	}
	if err := a.SetImportEnabled(records[0].ID, false); err != nil {
		t.Fatalf("SetImportEnabled() error = %v", err)
	}
	if err := a.SetImportEnabled("missing", true); err == nil {
		t.Error("SetImportEnabled() expected error for unknown record")
	}
	a.Close()

	summary := importOnce(t, cfg, source, target)
	if summary.Imported != 1 || summary.Reimported != 1 {
		t.Errorf("summary = %+v, want one reimport", *summary)
	}
	if _, err := os.Stat(filepath.Join(target, "2024", "2024-01-02", "IMG_20240102_101010_1.jpg")); err != nil {
		t.Errorf("reimported copy missing: %v", err)
	}
}

func TestPhotonsApp_reimportAfterTargetDeleted(t *testing.T) {
	cfg := newTestConfig(t)
	source := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(source, "IMG_20240102_101010.jpg"), []byte("image"))
	importOnce(t, cfg, source, target)

	folder := filepath.Join(target, "2024", "2024-01-02")
	if err := os.Remove(filepath.Join(folder, "IMG_20240102_101010.jpg")); err != nil {
		t.Fatalf("removing imported copy: %v", err)
	}
	a := openApp(t, cfg, target, "records disable")
	records, err := a.Records()
	if err != nil || len(records) != 1 {
		t.Fatalf("Records() = %v, %v", records, err)
	}
	if err := a.SetImportEnabled(records[0].ID, false); err != nil {
		t.Fatalf("SetImportEnabled() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	summary := importOnce(t, cfg, source, target)
	if summary.Imported != 1 || summary.Reimported != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want one clean reimport", *summary)
	}
	again := importOnce(t, cfg, source, target)
	if again.Skipped != 1 || again.Imported != 0 {
		t.Errorf("third summary = %+v, want one skip", *again)
	}

	entries, err := os.ReadDir(folder)
	if err != nil {
		t.Fatalf("reading %s: %v", folder, err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if len(names) != 1 || names[0] != "IMG_20240102_101010_1.jpg" {
		t.Errorf("files in %s = %v, want only IMG_20240102_101010_1.jpg", folder, names)
	}
}

func TestPhotonsApp_storeBehindAndRestore(t *testing.T) {
	cfg := newTestConfig(t)
	source := t.TempDir()
	target := t.TempDir()
	writeFile(t, filepath.Join(source, "a.jpg"), []byte("image"))
	importOnce(t, cfg, source, target)

	dbPath := filepath.Join(target, cfg.Database.FileName)
	if err := os.Remove(dbPath); err != nil {
		t.Fatalf("removing store: %v", err)
	}

	_, err := NewPhotonsApp(cfg, target, "import", testOptions())
	if !errors.Is(err, ErrStoreBehind) {
		t.Fatalf("NewPhotonsApp() error = %v, want ErrStoreBehind", err)
	}
	if err := os.Remove(dbPath); err != nil {
		t.Fatalf("removing fresh store: %v", err)
	}

	if err := RestoreStore(cfg, target, "", "secret", testOptions()); err != nil {
		t.Fatalf("RestoreStore() error = %v", err)
	}

	a := openApp(t, cfg, target, "records list")
	defer a.Close()
	records, err := a.Records()
	if err != nil {
		t.Fatalf("Records() error = %v", err)
	}
	if len(records) != 1 || records[0].FileName != "a.jpg" {
		t.Errorf("restored records = %+v", records)
	}
}

func TestRestoreStore_errors(t *testing.T) {
	t.Run("store already exists", func(t *testing.T) {
		cfg := newTestConfig(t)
		target := t.TempDir()
		store, err := database.OpenStore(target, cfg.Database.FileName)
		if err != nil {
			t.Fatalf("OpenStore() error = %v", err)
		}
		store.Close()

		if err := RestoreStore(cfg, target, "", "secret", testOptions()); err == nil {
			t.Fatal("RestoreStore() expected error for existing store")
		}
	})

	t.Run("no snapshot", func(t *testing.T) {
		cfg := newTestConfig(t)
		err := RestoreStore(cfg, t.TempDir(), "", "secret", testOptions())
		if !errors.Is(err, photons.ErrNoSnapshot) {
			t.Fatalf("RestoreStore() error = %v, want ErrNoSnapshot", err)
		}
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		cfg := newTestConfig(t)
		if err := RestoreStore(cfg, t.TempDir(), "", "", testOptions()); err == nil {
			t.Fatal("RestoreStore() expected error for empty passphrase")
		}
	})

	t.Run("no vault", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Vaults = nil
		if err := RestoreStore(cfg, t.TempDir(), "", "secret", testOptions()); err == nil {
			t.Fatal("RestoreStore() expected error without vaults")
		}
	})
}

func TestPhotonsApp_restoreMovedTarget(t *testing.T) {
	cfg := newTestConfig(t)
	source := t.TempDir()
	oldTarget := t.TempDir()
	writeFile(t, filepath.Join(source, "a.jpg"), []byte("image"))
	importOnce(t, cfg, source, oldTarget)

	newTarget := t.TempDir()
	if err := RestoreStore(cfg, newTarget, StoreKey(oldTarget), "secret", testOptions()); err != nil {
		t.Fatalf("RestoreStore() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(newTarget, cfg.Database.FileName)); err != nil {
		t.Errorf("restored store missing: %v", err)
	}
}

func TestPhotonsApp_BackupStore(t *testing.T) {
	t.Run("pushes current version", func(t *testing.T) {
		cfg := newTestConfig(t)
		source := t.TempDir()
		target := t.TempDir()
		writeFile(t, filepath.Join(source, "a.jpg"), []byte("image"))
		importOnce(t, cfg, source, target)

		a := openApp(t, cfg, target, "store backup")
		defer a.Close()
		version, err := a.BackupStore()
		if err != nil {
			t.Fatalf("BackupStore() error = %v", err)
		}
		if version != 1 {
			t.Errorf("version = %d, want 1", version)
		}
	})

	t.Run("no vault", func(t *testing.T) {
		cfg := newTestConfig(t)
		cfg.Vaults = nil
		a := openApp(t, cfg, t.TempDir(), "store backup")
		defer a.Close()
		if _, err := a.BackupStore(); err == nil {
			t.Fatal("BackupStore() expected error without vaults")
		}
	})
}

func TestNewPhotonsApp_invalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Database.Type = "postgres"
	if _, err := NewPhotonsApp(cfg, t.TempDir(), "import", testOptions()); err == nil {
		t.Fatal("NewPhotonsApp() expected error for invalid config")
	}
}

func TestStoreKey(t *testing.T) {
	a := StoreKey("/mnt/photos/library")
	if a != StoreKey("/mnt/photos/library") {
		t.Error("StoreKey() is not deterministic")
	}
	if a == StoreKey("/mnt/backup/library") {
		t.Error("StoreKey() equal for different targets with the same base name")
	}
	if filepath.Base(a)[:len("library-")] != "library-" {
		t.Errorf("StoreKey() = %q, want library- prefix", a)
	}
}

func TestPhotonsApp_Close_reportsSnapshotUploadFailure(t *testing.T) {
	cfg := newTestConfig(t)
	source := t.TempDir()
	target := filepath.Join(t.TempDir(), "library")
	writeFile(t, filepath.Join(source, "a.jpg"), []byte("photo"))

	a := openApp(t, cfg, target, "import")
	if _, err := a.Import(source, photons.ImportOptions{Extension: ".jpg"}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if err := os.RemoveAll(cfg.Vaults[0].FSVaultRoot); err != nil {
		t.Fatalf("removing vault root: %v", err)
	}

	if err := a.Close(); err == nil {
		t.Fatal("Close() error = nil, want the upload failure")
	}
	logged, err := os.ReadFile(filepath.Join(cfg.LogDir, LogFileName))
	if err != nil {
		t.Fatalf("reading log: %v", err)
	}
	if !strings.Contains(string(logged), "store snapshot upload failed") {
		t.Errorf("log does not mention the failed upload:\n%s", logged)
	}

	// the lock is released even though the push failed
	b := openApp(t, cfg, target, "records list")
	if err := b.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
