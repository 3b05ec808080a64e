package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Defaults applied by NewConfig and ApplyDefaults.
const (
	DefaultExtension            = ".jpg"
	DefaultMaxCollisionAttempts = 10000
	DefaultPlacementLayout      = "2006/2006-01-02"
	DefaultPlacementFallback    = "undated"
	DefaultDatabaseFileName     = ".photons.db"
)

// Config represents the main configuration for photons.
type Config struct {
	BaseDir    string           `toml:"base_dir"`
	LogDir     string           `toml:"log_dir"`
	Import     ImportConfig     `toml:"import"`
	Placement  PlacementConfig  `toml:"placement"`
	Database   DatabaseConfig   `toml:"database"`
	Filesystem FilesystemConfig `toml:"filesystem"`
	Vaults     []VaultConfig    `toml:"vaults"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// ImportConfig holds the defaults of an import run. CLI flags override them per invocation.
type ImportConfig struct {
	Extension            string `toml:"extension"`
	FollowSymlinks       bool   `toml:"follow_symlinks"`
	MaxCollisionAttempts int    `toml:"max_collision_attempts"`
}

// PlacementConfig controls where an imported file lands in the target tree.
// Layout is a Go time layout applied to the capture date; files without a
// capture date go to Fallback.
type PlacementConfig struct {
	Layout   string `toml:"layout"`
	Fallback string `toml:"fallback"`
}

// DatabaseConfig represents configuration for the per-target record store.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type     string `toml:"type"`                // "sqlite" or "memory"
	FileName string `toml:"file_name,omitempty"` // only used for type=sqlite, relative to the target root
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// VaultConfig represents configuration for an off-target snapshot vault.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"` // S3-compatible endpoint, e.g. MinIO

	// Static credentials; when empty the default AWS credential chain is used.
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// EncryptionConfig selects how store snapshots are encrypted before they
// leave the target, and where the age key pair lives.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// NewConfig creates a new Config rooted at baseDir with every default filled in.
func NewConfig(baseDir string) *Config {
	cfg := &Config{
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "photons.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "photons.key"),
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills every unset field that has a default.
func (c *Config) ApplyDefaults() {
	if c.LogDir == "" && c.BaseDir != "" {
		c.LogDir = filepath.Join(c.BaseDir, "log")
	}
	if c.Import.Extension == "" {
		c.Import.Extension = DefaultExtension
	}
	if c.Import.MaxCollisionAttempts == 0 {
		c.Import.MaxCollisionAttempts = DefaultMaxCollisionAttempts
	}
	if c.Placement.Layout == "" {
		c.Placement.Layout = DefaultPlacementLayout
	}
	if c.Placement.Fallback == "" {
		c.Placement.Fallback = DefaultPlacementFallback
	}
	if c.Database.Type == "" {
		c.Database.Type = "sqlite"
	}
	if c.Database.Type == "sqlite" && c.Database.FileName == "" {
		c.Database.FileName = DefaultDatabaseFileName
	}
	if c.Encryption.Type == "" {
		c.Encryption.Type = "none"
	}
}

// Validate reports every configuration error it finds.
func (c *Config) Validate() error {
	var errs []error
	if c.LogDir == "" {
		errs = append(errs, errors.New("log_dir is required"))
	}
	if c.Import.MaxCollisionAttempts < 1 {
		errs = append(errs, fmt.Errorf("import.max_collision_attempts must be positive, got %d", c.Import.MaxCollisionAttempts))
	}
	if strings.Trim(c.Import.Extension, ".") == "" {
		errs = append(errs, errors.New("import.extension is required"))
	}
	if err := validateSubfolder(c.Placement.Fallback); err != nil {
		errs = append(errs, fmt.Errorf("placement.fallback: %w", err))
	}
	switch c.Database.Type {
	case "sqlite":
		if c.Database.FileName == "" || filepath.Base(c.Database.FileName) != c.Database.FileName {
			errs = append(errs, fmt.Errorf("database.file_name must be a plain file name, got %q", c.Database.FileName))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown database type: %q", c.Database.Type))
	}
	switch c.Encryption.Type {
	case "none", "test":
	case "age":
		if c.Encryption.PublicKeyPath == "" || c.Encryption.PrivateKeyPath == "" {
			errs = append(errs, errors.New("encryption type age requires public_key_path and private_key_path"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown encryption type: %q", c.Encryption.Type))
	}
	for i, v := range c.Vaults {
		switch v.Type {
		case "memory":
		case "filesystem":
			if v.FSVaultRoot == "" {
				errs = append(errs, fmt.Errorf("vaults[%d]: filesystem vault requires fs_vault_root", i))
			}
		case "s3":
			if v.S3Bucket == "" {
				errs = append(errs, fmt.Errorf("vaults[%d]: s3 vault requires s3_bucket", i))
			}
		default:
			errs = append(errs, fmt.Errorf("vaults[%d]: unknown vault type: %q", i, v.Type))
		}
	}
	return errors.Join(errs...)
}

func validateSubfolder(s string) error {
	if s == "" {
		return errors.New("must not be empty")
	}
	if filepath.IsAbs(s) {
		return fmt.Errorf("must be relative, got %q", s)
	}
	for _, part := range strings.Split(filepath.ToSlash(s), "/") {
		if part == ".." {
			return fmt.Errorf("must stay inside the target root, got %q", s)
		}
	}
	return nil
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path and fills in
// defaults for anything the file leaves out.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}

// Save overwrites the config file at path.
func Save(path string, cfg *Config) error {
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
