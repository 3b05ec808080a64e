package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Defaults are the locations photons uses when the config does not say
// otherwise.
type Defaults struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
}

// GetDefaults resolves default locations. PHOTONS_CONFIG_PATH and
// PHOTONS_HOME win; then XDG_CONFIG_HOME and XDG_DATA_HOME; then
// ~/.config and ~/.local/share.
func GetDefaults() (Defaults, error) {
	configPath := os.Getenv("PHOTONS_CONFIG_PATH")
	if configPath == "" {
		dir, err := xdgDir("XDG_CONFIG_HOME", ".config")
		if err != nil {
			return Defaults{}, err
		}
		configPath = filepath.Join(dir, "photons.toml")
	}

	base := os.Getenv("PHOTONS_HOME")
	if base == "" {
		dir, err := xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
		if err != nil {
			return Defaults{}, err
		}
		base = filepath.Join(dir, "photons")
	}

	return Defaults{
		ConfigPath: configPath,
		BaseDir:    base,
		LogDir:     filepath.Join(base, "log"),
	}, nil
}

func xdgDir(env, fallback string) (string, error) {
	if dir := os.Getenv(env); filepath.IsAbs(dir) {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, fallback), nil
}
