package photons

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Fingerprinter computes content fingerprints: the SHA-256 of a file's bytes
// together with the number of bytes read in the same pass. The result
// depends on content only, never on name, timestamps or permissions.
type Fingerprinter struct {
	fsmgr FilesystemManager
}

// NewFingerprinter creates a Fingerprinter that reads through fsmgr.
func NewFingerprinter(fsmgr FilesystemManager) *Fingerprinter {
	return &Fingerprinter{fsmgr: fsmgr}
}

// Fingerprint reads path to completion and returns its hash and length.
// Any open or read failure is reported as ErrIO.
func (f *Fingerprinter) Fingerprint(path *Path) (string, int64, error) {
	r, err := f.fsmgr.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: opening %s: %v", ErrIO, path.String(), err)
	}
	defer r.Close()

	hash, length, err := HashReader(r)
	if err != nil {
		return "", 0, fmt.Errorf("%w: reading %s: %v", ErrIO, path.String(), err)
	}
	return hash, length, nil
}

// HashReader consumes r and returns the lowercase hex SHA-256 and byte count.
func HashReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
