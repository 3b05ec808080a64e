package photons

import (
	"errors"
	"fmt"
	"path/filepath"
)

// ImportOptions are the per-run inputs of ImportService.Import.
type ImportOptions struct {
	// Extension selects eligible files by case-insensitive name suffix.
	Extension string

	// DryRun decides placement for every new file but never touches the
	// target tree or the record store.
	DryRun bool
}

// ImportService is the orchestration layer that walks a source tree and
// imports every eligible file into one target root.
//
// Files are processed strictly one at a time: each is described, checked
// against the store, placed, copied, verified and recorded before the next
// one is visited.
type ImportService struct {
	store         RecordStore
	fsmgr         FilesystemManager
	placement     PlacementPolicy
	fingerprinter *Fingerprinter
	logger        Logger
	clock         Clock
	idgen         IDGenerator
	maxAttempts   int
}

// NewImportService creates a new ImportService with the provided dependencies.
// store must already be opened for the target root passed to Import.
func NewImportService(store RecordStore, fsmgr FilesystemManager, placement PlacementPolicy, logger Logger, clock Clock, idgen IDGenerator, maxCollisionAttempts int) *ImportService {
	return &ImportService{
		store:         store,
		fsmgr:         fsmgr,
		placement:     placement,
		fingerprinter: NewFingerprinter(fsmgr),
		logger:        logger,
		clock:         clock,
		idgen:         idgen,
		maxAttempts:   maxCollisionAttempts,
	}
}

// importRun holds the state shared by all files of one Import call.
type importRun struct {
	targetRoot string
	ext        string
	dryRun     bool
	resolver   *CollisionResolver
	summary    *ImportSummary
}

// Import walks source and imports every eligible regular file below it into
// targetRoot. If source is a file, only that file is considered.
//
// Per-file failures are logged and counted in the summary; they never abort
// the walk. The returned error is non-nil only when the run could not start
// or the walk of source itself failed.
func (s *ImportService) Import(source *Path, targetRoot string, opts ImportOptions) (*ImportSummary, error) {
	ext, err := NormalizeExtension(opts.Extension)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(targetRoot) {
		return nil, fmt.Errorf("target root must be absolute: %s", targetRoot)
	}

	run := &importRun{
		targetRoot: targetRoot,
		ext:        ext,
		dryRun:     opts.DryRun,
		resolver:   NewCollisionResolver(s.fsmgr, s.store, targetRoot, s.maxAttempts),
		summary:    &ImportSummary{},
	}

	s.logger.Info("import started", "source", source.String(), "target", targetRoot, "extension", ext, "dry_run", opts.DryRun)

	visit := func(p *Path) error {
		run.summary.add(s.visitFile(run, p))
		return nil
	}
	onError := func(path string, err error) {
		s.logger.Error("cannot visit entry, skipping", "path", path, "error", err)
		run.summary.Failed++
	}

	if source.IsDir() {
		if err := s.fsmgr.Walk(source, visit, onError); err != nil {
			return run.summary, fmt.Errorf("walking %s: %w", source.String(), err)
		}
	} else {
		visit(source)
	}

	s.logger.Info("import complete",
		"imported", run.summary.Imported,
		"reimported", run.summary.Reimported,
		"skipped", run.summary.Skipped,
		"ignored", run.summary.Ignored,
		"planned", run.summary.Planned,
		"failed", run.summary.Failed,
		"bytes", run.summary.BytesCopied,
	)
	return run.summary, nil
}

// visitFile runs one file through the pipeline and logs its failure, if any.
func (s *ImportService) visitFile(run *importRun, path *Path) Outcome {
	if Classify(path.Name(), run.ext) == Ignored {
		s.logger.Info("ignoring file because of file type mismatch", "path", path.String())
		return OutcomeIgnored
	}

	s.logger.Info("importing file", "path", path.String())
	outcome, err := s.importFile(run, path)
	if err != nil {
		s.logger.Error("failed to import file", "path", path.String(), "error", err)
		return OutcomeFailed
	}
	return outcome
}

// importFile handles an eligible file from description to the record insert.
//
// A copy that fails verification, or whose record cannot be confirmed, is
// left on disk for manual follow-up; nothing is rolled back.
func (s *ImportService) importFile(run *importRun, path *Path) (Outcome, error) {
	desc, err := Describe(s.fingerprinter, path)
	if err != nil {
		return OutcomeFailed, err
	}

	existing, err := s.store.Lookup(desc.ContentHash(), desc.OriginalLength())
	if err != nil {
		return OutcomeFailed, fmt.Errorf("looking up record: %w", err)
	}
	reimport := false
	if existing != nil {
		s.logger.Info("file with the same hash and size already recorded",
			"recorded", filepath.Join(run.targetRoot, existing.RelativePath()),
			"source", desc.SourcePath(),
			"import_enabled", existing.ImportEnabled,
		)
		if existing.ImportEnabled {
			s.logger.Info("skipping duplicate", "path", desc.SourcePath())
			return OutcomeSkipped, nil
		}
		s.logger.Info("reimporting", "path", desc.SourcePath(), "record", existing.ID)
		reimport = true
	}

	placement := s.placement.PlacementFor(desc)
	intended := placement.Join(run.targetRoot)
	target, err := run.resolver.Resolve(intended)
	if err != nil {
		return OutcomeFailed, err
	}
	if target != intended {
		s.logger.Warn("target name in use, generated new file name", "intended", intended, "target", target)
	}

	if run.dryRun {
		s.logger.Info("would copy file", "from", desc.SourcePath(), "to", target)
		return OutcomePlanned, nil
	}

	subfolder, fileName, err := SplitTargetPath(run.targetRoot, target)
	if err != nil {
		return OutcomeFailed, err
	}
	if err := s.copyAndVerify(desc, target); err != nil {
		return OutcomeFailed, err
	}

	record := &ImportedRecord{
		ID:             s.idgen.New(),
		Subfolder:      subfolder,
		FileName:       fileName,
		OriginalHash:   desc.ContentHash(),
		OriginalLength: desc.OriginalLength(),
		ImportEnabled:  true,
		SourcePath:     desc.SourcePath(),
		ImportedAt:     s.clock.Now(),
	}
	if err := s.persist(record); err != nil {
		return OutcomeFailed, err
	}

	run.summary.BytesCopied += desc.OriginalLength()
	if reimport {
		run.summary.Reimported++
	}
	s.logger.Info("file imported", "from", desc.SourcePath(), "to", target)
	return OutcomeImported, nil
}

// copyAndVerify copies the described file to target and re-reads the copy,
// comparing length first and content hash second.
func (s *ImportService) copyAndVerify(desc *Descriptor, target string) error {
	dir := filepath.Dir(target)
	if err := s.fsmgr.MkdirAll(dir); err != nil {
		return fmt.Errorf("%w: creating target folder %s: %v", ErrIO, dir, err)
	}

	s.logger.Debug("copying file", "from", desc.SourcePath(), "to", target)
	if _, err := s.fsmgr.CopyFile(desc.Path(), target); err != nil {
		return fmt.Errorf("%w: copying %s to %s: %v", ErrIO, desc.SourcePath(), target, err)
	}

	copied, err := s.fsmgr.Resolve(target)
	if err != nil {
		return fmt.Errorf("%w: resolving copy %s: %v", ErrIO, target, err)
	}
	hash, length, err := s.fingerprinter.Fingerprint(copied)
	if err != nil {
		return err
	}
	if length != desc.OriginalLength() {
		return fmt.Errorf("%w: file length difference copying %s to %s: got %d bytes, want %d",
			ErrVerification, desc.SourcePath(), target, length, desc.OriginalLength())
	}
	if hash != desc.ContentHash() {
		return fmt.Errorf("%w: file content hash difference copying %s to %s",
			ErrVerification, desc.SourcePath(), target)
	}
	return nil
}

// persist inserts record and confirms it is the record the store now
// returns for its fingerprint.
func (s *ImportService) persist(record *ImportedRecord) error {
	if err := s.store.Insert(record); err != nil {
		if errors.Is(err, ErrDuplicateRecord) {
			return fmt.Errorf("database insert rejected: %w", err)
		}
		return fmt.Errorf("%w: database insert failed: %v", ErrPersist, err)
	}

	stored, err := s.store.Lookup(record.OriginalHash, record.OriginalLength)
	if err != nil {
		return fmt.Errorf("%w: database insert failed: confirming record: %v", ErrPersist, err)
	}
	if stored == nil || stored.ID != record.ID {
		return fmt.Errorf("%w: database insert failed: record %s not visible after insert", ErrPersist, record.ID)
	}
	return nil
}
