package encryption

import (
	"fmt"

	"photons/internal/config"
	"photons/internal/photons"
)

// NewEncryptorFromConfig creates an Encryptor based on the configuration type.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (photons.Encryptor, error) {
	switch cfg.Type {
	case "none", "":
		return PlainEncryptor{}, nil
	case "age":
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
