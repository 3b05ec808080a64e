package database

import (
	"fmt"

	"photons/internal/config"
	"photons/internal/photons"
)

// NewStoreFromConfig opens the record store of targetRoot based on the database config type.
func NewStoreFromConfig(cfg config.DatabaseConfig, targetRoot string) (*SQLiteStore, error) {
	switch cfg.Type {
	case "sqlite":
		if targetRoot == "" {
			return nil, fmt.Errorf("%w: target root required for sqlite store", photons.ErrStoreUnavailable)
		}
		return OpenStore(targetRoot, cfg.FileName)
	case "memory":
		return NewMemoryStore()
	default:
		return nil, fmt.Errorf("%w: unknown database type: %s", photons.ErrStoreUnavailable, cfg.Type)
	}
}
