package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"photons/internal/photons"
)

// testMagic marks data "encrypted" by TestEncryptor.
var testMagic = []byte("PHOTONS-TEST-ENC\n")

// TestEncryptor is a deterministic stand-in for age in tests: it prefixes a
// fixed marker on Encrypt and requires it on Decrypt. Unlock accepts any
// passphrase except the empty one.
type TestEncryptor struct {
	setupCalled bool
}

var _ photons.Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := io.Copy(w, io.MultiReader(bytes.NewReader(testMagic), r)); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (photons.DecryptionContext, error) {
	if passphrase == "" {
		return nil, errors.New("empty passphrase")
	}
	return testDecryptor{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

type testDecryptor struct{}

func (testDecryptor) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testMagic) {
		return errors.New("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
