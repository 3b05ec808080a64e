package vault

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"photons/internal/photons"
)

// FileSystemVault stores snapshots as files, typically on a second disk:
//
//	<root>/
//	  snapshots/
//	    <storeKey>.db       (latest snapshot)
//	    <storeKey>.version  (its version)
type FileSystemVault struct {
	name         string
	root         string
	snapshotsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotsDir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(snapshotsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		snapshotsDir: snapshotsDir,
	}, nil
}

func (v *FileSystemVault) snapshotPath(storeKey string) string {
	return filepath.Join(v.snapshotsDir, storeKey+".db")
}

func (v *FileSystemVault) versionPath(storeKey string) string {
	return filepath.Join(v.snapshotsDir, storeKey+".version")
}

// PutSnapshot replaces the snapshot of storeKey. The snapshot is written
// before the version, so a reader never sees a version newer than its data.
func (v *FileSystemVault) PutSnapshot(storeKey string, r io.Reader, size int64, version int64) error {
	if err := atomicWrite(v.snapshotPath(storeKey), r, size); err != nil {
		return err
	}
	data := strconv.FormatInt(version, 10)
	return atomicWrite(v.versionPath(storeKey), strings.NewReader(data), int64(len(data)))
}

// GetSnapshotVersion returns 0 if no version file exists.
func (v *FileSystemVault) GetSnapshotVersion(storeKey string) (int64, error) {
	data, err := os.ReadFile(v.versionPath(storeKey))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading version file: %w", err)
	}

	version, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	return version, nil
}

func (v *FileSystemVault) GetSnapshot(storeKey string, w io.Writer) error {
	f, err := os.Open(v.snapshotPath(storeKey))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", photons.ErrNoSnapshot, storeKey)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// ValidateSetup verifies that the snapshots directory is accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.snapshotsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// atomicWrite writes r to destPath through a temp file in the same
// directory and a rename.
func atomicWrite(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

// Compile-time check that FileSystemVault implements photons.Vault interface
var _ photons.Vault = (*FileSystemVault)(nil)
