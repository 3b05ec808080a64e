package encryption

import (
	"fmt"
	"io"

	"photons/internal/photons"
)

// PlainEncryptor leaves snapshots unencrypted. It is the "none" encryption type.
type PlainEncryptor struct{}

var (
	_ photons.Encryptor         = PlainEncryptor{}
	_ photons.DecryptionContext = PlainEncryptor{}
)

func (PlainEncryptor) Setup(string) error { return nil }

func (PlainEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (p PlainEncryptor) Unlock(string) (photons.DecryptionContext, error) { return p, nil }

func (PlainEncryptor) IsConfigured() bool { return true }

func (p PlainEncryptor) Decrypt(r io.Reader, w io.Writer) error { return p.Encrypt(r, w) }
