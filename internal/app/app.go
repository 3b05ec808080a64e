package app

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"photons/internal/config"
	"photons/internal/database"
	"photons/internal/encryption"
	"photons/internal/fs"
	"photons/internal/photons"
	"photons/internal/placement"
	"photons/internal/vault"
)

// LockFileName is the lock file held in a target root while photons works on it.
const LockFileName = ".photons.lock"

var (
	// ErrTargetLocked means another photons process holds the target's lock.
	ErrTargetLocked = errors.New("target is locked by another photons process")

	// ErrStoreBehind means the vault holds a newer snapshot of the target's
	// store than the local one.
	ErrStoreBehind = errors.New("local record store is behind the vault snapshot")
)

// Options tune how a PhotonsApp is built. The zero value is ready for the CLI.
type Options struct {
	Console io.Writer // defaults to os.Stderr
	Verbose bool
	Clock   photons.Clock
	IDGen   photons.IDGenerator
}

// PhotonsApp is the application layer between the CLI and ImportService.
// It constructs all dependencies from config for one target root, holds the
// target's lock for its whole lifetime, and pushes a store snapshot to the
// vault on Close when the command changed the store.
type PhotonsApp struct {
	cfg       *config.Config
	target    string
	storeKey  string
	store     *database.SQLiteStore
	vault     photons.Vault
	fsmgr     *fs.OSFilesystemManager
	encryptor photons.Encryptor
	service   *photons.ImportService
	clock     photons.Clock
	logger    *slog.Logger
	logFile   *os.File
	lock      *flock.Flock
	op        *Operation
}

// NewPhotonsApp creates a fully wired PhotonsApp for targetRoot.
// command identifies the CLI command being run (e.g. "import", "records disable").
// The caller must call Close when done.
func NewPhotonsApp(cfg *config.Config, targetRoot, command string, opts Options) (_ *PhotonsApp, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	target, err := filepath.Abs(targetRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving target: %w", err)
	}
	opts = withDefaults(opts)

	a := &PhotonsApp{
		cfg:      cfg,
		target:   target,
		storeKey: StoreKey(target),
		clock:    opts.Clock,
		op:       NewOperation(command),
	}
	defer func() {
		if err != nil {
			a.release()
		}
	}()

	runID := opts.Clock.Now().UTC().Format("20060102T150405Z")
	a.logger, a.logFile, err = newLogger(cfg.LogDir, runID, opts.Console, opts.Verbose)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a.lock, err = acquireLock(target)
	if err != nil {
		return nil, err
	}

	a.store, err = database.NewStoreFromConfig(cfg.Database, target)
	if err != nil {
		return nil, fmt.Errorf("opening record store: %w", err)
	}

	if len(cfg.Vaults) > 0 {
		a.vault, err = vault.NewVaultFromConfig(cfg.Vaults[0])
		if err != nil {
			return nil, fmt.Errorf("creating vault: %w", err)
		}
	}

	a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	if err = a.checkVersion(); err != nil {
		return nil, err
	}

	log := &slogAdapter{l: a.logger}
	a.fsmgr = fs.NewOSFilesystemManager(cfg.Filesystem.Ignore, cfg.Import.FollowSymlinks)
	if cfg.Database.Type == "sqlite" {
		a.fsmgr.SetStoreFileName(cfg.Database.FileName)
	}
	policy := placement.NewCaptureDatePolicy(a.fsmgr, cfg.Placement.Layout, cfg.Placement.Fallback, log)
	a.service = photons.NewImportService(a.store, a.fsmgr, policy, log, opts.Clock, opts.IDGen, cfg.Import.MaxCollisionAttempts)
	return a, nil
}

func withDefaults(opts Options) Options {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if opts.Clock == nil {
		opts.Clock = photons.RealClock{}
	}
	if opts.IDGen == nil {
		opts.IDGen = photons.UUIDGenerator{}
	}
	return opts
}

// StoreKey names the snapshots of the store kept in targetRoot. It combines
// the target's base name with a digest of its absolute path, so two targets
// sharing a vault never share snapshots.
func StoreKey(targetRoot string) string {
	sum := sha256.Sum256([]byte(targetRoot))
	return filepath.Base(targetRoot) + "-" + hex.EncodeToString(sum[:6])
}

func acquireLock(target string) (*flock.Flock, error) {
	if err := os.MkdirAll(target, 0755); err != nil {
		return nil, fmt.Errorf("%w: creating target root %s: %v", photons.ErrStoreUnavailable, target, err)
	}
	lock := flock.New(filepath.Join(target, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("locking target: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrTargetLocked, target)
	}
	return lock, nil
}

// checkVersion refuses to work on a store that is older than its vault snapshot.
func (a *PhotonsApp) checkVersion() error {
	if a.vault == nil {
		return nil
	}
	remote, err := a.vault.GetSnapshotVersion(a.storeKey)
	if err != nil {
		return fmt.Errorf("checking remote store version: %w", err)
	}
	local, err := a.store.MaxImportRunID()
	if err != nil {
		return fmt.Errorf("checking local store version: %w", err)
	}
	if remote > local {
		return fmt.Errorf("%w (local=%d, remote=%d): restore the store from the vault", ErrStoreBehind, local, remote)
	}
	return nil
}

// Target returns the absolute target root.
func (a *PhotonsApp) Target() string {
	return a.target
}

// StoreKey returns the key the target's snapshots are stored under.
func (a *PhotonsApp) StoreKey() string {
	return a.storeKey
}

// Import imports rawSource into the target and records the run in the
// target's history. Per-file failures only show up in the summary; the
// returned error is set when the run itself failed.
func (a *PhotonsApp) Import(rawSource string, opts photons.ImportOptions) (*photons.ImportSummary, error) {
	source, err := a.fsmgr.Resolve(rawSource)
	if err != nil {
		a.op.Fail()
		return nil, fmt.Errorf("resolving source: %w", err)
	}

	id, err := a.store.CreateImportRun(a.clock.Now(), source.String(), opts.Extension, opts.DryRun)
	if err != nil {
		a.op.Fail()
		return nil, err
	}
	a.op.ID = id
	a.op.Mutated = true

	summary, runErr := a.service.Import(source, a.target, opts)
	if runErr != nil {
		a.op.Fail()
	}
	if summary == nil {
		summary = &photons.ImportSummary{}
	}
	if err := a.store.FinishImportRun(id, a.clock.Now(), a.op.Status, *summary); err != nil {
		return summary, errors.Join(runErr, err)
	}
	return summary, runErr
}

// Records returns every record of the target, ordered by path.
func (a *PhotonsApp) Records() ([]*photons.ImportedRecord, error) {
	return a.store.ListRecords()
}

// SetImportEnabled enables or disables a record. Disabling lets a file with
// the same content be imported again.
func (a *PhotonsApp) SetImportEnabled(id string, enabled bool) error {
	if err := a.store.SetImportEnabled(id, enabled); err != nil {
		a.op.Fail()
		return err
	}
	a.op.Mutated = true
	a.logger.Info("record updated", "id", id, "import_enabled", enabled)
	return nil
}

// History returns the most recent import runs, newest first.
func (a *PhotonsApp) History(limit int) ([]*photons.ImportRun, error) {
	return a.store.ListImportRuns(limit)
}

// BackupStore pushes a snapshot of the store to the vault right away and
// returns the version it was stored under.
func (a *PhotonsApp) BackupStore() (int64, error) {
	if a.vault == nil {
		return 0, errors.New("no vaults configured")
	}
	return a.pushSnapshot()
}

// pushSnapshot copies the store with VACUUM INTO, encrypts the copy and
// uploads it with the newest import run id as its version.
func (a *PhotonsApp) pushSnapshot() (int64, error) {
	version, err := a.store.MaxImportRunID()
	if err != nil {
		return 0, err
	}

	tmpDir, err := os.MkdirTemp("", "photons-snapshot-*")
	if err != nil {
		return 0, fmt.Errorf("creating temp dir for store snapshot: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	raw := filepath.Join(tmpDir, "store.db")
	if err := a.store.BackupTo(raw); err != nil {
		return 0, err
	}
	sealed := filepath.Join(tmpDir, "store.db.sealed")
	if err := transformFile(raw, sealed, a.encryptor.Encrypt); err != nil {
		return 0, fmt.Errorf("encrypting store snapshot: %w", err)
	}

	f, err := os.Open(sealed)
	if err != nil {
		return 0, fmt.Errorf("opening store snapshot for upload: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat store snapshot: %w", err)
	}

	if err := a.vault.PutSnapshot(a.storeKey, f, info.Size(), version); err != nil {
		return 0, fmt.Errorf("uploading store snapshot to vault: %w", err)
	}
	a.logger.Info("store snapshot uploaded", "key", a.storeKey, "version", version, "bytes", info.Size())
	return version, nil
}

// Close finalizes the operation and closes all resources.
// For mutating operations with a vault configured, the store snapshot is
// pushed before the store is closed.
func (a *PhotonsApp) Close() error {
	var firstErr error
	if a.op.Mutated && a.vault != nil {
		if _, err := a.pushSnapshot(); err != nil {
			a.logger.Error("store snapshot upload failed", "key", a.storeKey, "error", err)
			a.op.Fail()
			firstErr = fmt.Errorf("pushing store snapshot: %w", err)
		}
	}
	a.logger.Info("command finished", "command", a.op.Command, "status", a.op.Status)
	if err := a.release(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// release closes whatever has been opened so far.
func (a *PhotonsApp) release() error {
	var firstErr error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			firstErr = fmt.Errorf("closing record store: %w", err)
		}
		a.store = nil
	}
	if a.lock != nil {
		if err := a.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("unlocking target: %w", err)
		}
		a.lock = nil
	}
	if a.logFile != nil {
		a.logFile.Close()
		a.logFile = nil
	}
	return firstErr
}

// RestoreStore fetches the latest store snapshot of targetRoot from the
// first configured vault and installs it as the target's record store.
// The target must not have a store yet. passphrase unlocks the private key
// when snapshots are encrypted. key selects the snapshot to restore; it
// defaults to StoreKey(targetRoot), and differs when the target moved.
func RestoreStore(cfg *config.Config, targetRoot, key, passphrase string, opts Options) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Database.Type != "sqlite" {
		return fmt.Errorf("cannot restore into a %s store", cfg.Database.Type)
	}
	if len(cfg.Vaults) == 0 {
		return errors.New("no vaults configured")
	}
	target, err := filepath.Abs(targetRoot)
	if err != nil {
		return fmt.Errorf("resolving target: %w", err)
	}
	opts = withDefaults(opts)

	runID := opts.Clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, runID, opts.Console, opts.Verbose)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer logFile.Close()

	lock, err := acquireLock(target)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	dbPath := filepath.Join(target, cfg.Database.FileName)
	if _, err := os.Stat(dbPath); err == nil {
		return fmt.Errorf("record store already exists at %s", dbPath)
	}

	v, err := vault.NewVaultFromConfig(cfg.Vaults[0])
	if err != nil {
		return fmt.Errorf("creating vault: %w", err)
	}
	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return fmt.Errorf("creating encryptor: %w", err)
	}
	dec, err := enc.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}

	if key == "" {
		key = StoreKey(target)
	}
	sealed, err := os.CreateTemp("", "photons-restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file for snapshot: %w", err)
	}
	defer os.Remove(sealed.Name())
	if err := v.GetSnapshot(key, sealed); err != nil {
		sealed.Close()
		return fmt.Errorf("downloading store snapshot: %w", err)
	}
	if err := sealed.Close(); err != nil {
		return fmt.Errorf("writing store snapshot: %w", err)
	}

	staged := dbPath + ".restore"
	defer os.Remove(staged)
	if err := transformFile(sealed.Name(), staged, dec.Decrypt); err != nil {
		return fmt.Errorf("decrypting store snapshot: %w", err)
	}

	// Opening the staged copy checks its integrity and migrates it.
	store, err := database.OpenStore(target, filepath.Base(staged))
	if err != nil {
		return fmt.Errorf("validating restored store: %w", err)
	}
	version, err := store.MaxImportRunID()
	store.Close()
	if err != nil {
		return err
	}

	if err := os.Rename(staged, dbPath); err != nil {
		return fmt.Errorf("installing restored store: %w", err)
	}
	logger.Info("record store restored", "target", target, "key", key, "version", version)
	return nil
}

// transformFile streams src through fn into a newly created dst.
func transformFile(src, dst string, fn func(io.Reader, io.Writer) error) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := fn(in, out); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
