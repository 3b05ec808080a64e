package photons

import (
	"errors"
	"io"
)

// ErrNoSnapshot is returned by Vault.GetSnapshot when nothing was stored for the key.
var ErrNoSnapshot = errors.New("no snapshot in vault")

// Vault stores record-store snapshots away from the target tree, so a
// lost or damaged target can have its store restored.
// All operations stream through io.Reader/io.Writer.
type Vault interface {
	// PutSnapshot stores the snapshot of the store identified by storeKey.
	// size is the number of bytes that will be read from r. version is
	// stored alongside the snapshot for consistency checks.
	PutSnapshot(storeKey string, r io.Reader, size int64, version int64) error

	// GetSnapshot writes the latest snapshot of storeKey to w, or returns
	// an error wrapping ErrNoSnapshot.
	GetSnapshot(storeKey string, w io.Writer) error

	// GetSnapshotVersion returns the version of the latest snapshot of
	// storeKey, or 0 if none has been stored.
	GetSnapshotVersion(storeKey string) (int64, error)

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}
