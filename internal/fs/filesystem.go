package fs

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"photons/internal/photons"
)

// errSymlinkCycle is reported for a followed directory link that leads back
// into a directory already being walked.
var errSymlinkCycle = errors.New("symlink cycle")

// OSFilesystemManager is the real filesystem implementation of FilesystemManager.
// It performs actual filesystem operations using the os package.
type OSFilesystemManager struct {
	ignore         []string
	storeFile      string
	followSymlinks bool
}

// NewOSFilesystemManager creates a new filesystem manager that operates on the real filesystem.
// ignore holds extra ignore patterns applied during walks; followSymlinks
// makes walks descend into linked directories and import linked files.
func NewOSFilesystemManager(ignore []string, followSymlinks bool) *OSFilesystemManager {
	return &OSFilesystemManager{
		ignore:         ignore,
		followSymlinks: followSymlinks,
	}
}

// SetStoreFileName names the record store file kept in target roots. Walks
// never visit it or its companion files.
func (m *OSFilesystemManager) SetStoreFileName(name string) {
	m.storeFile = name
}

// Resolve validates a raw path and returns a Path object.
func (m *OSFilesystemManager) Resolve(rawPath string) (*photons.Path, error) {
	// Convert to absolute path
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, fmt.Errorf("resolving absolute path: %w", err)
	}

	// Stat the path
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat path: %w", err)
	}

	// Check for special file types we don't support
	mode := info.Mode()
	if mode&os.ModeDevice != 0 {
		return nil, fmt.Errorf("device files not supported: %s", absPath)
	}
	if mode&os.ModeNamedPipe != 0 {
		return nil, fmt.Errorf("named pipes not supported: %s", absPath)
	}
	if mode&os.ModeSocket != 0 {
		return nil, fmt.Errorf("sockets not supported: %s", absPath)
	}

	return photons.NewPath(absPath, info.IsDir(), info), nil
}

// Open opens a file for reading.
func (m *OSFilesystemManager) Open(path *photons.Path) (io.ReadCloser, error) {
	if path.IsDir() {
		return nil, fmt.Errorf("cannot open directory as file: %s", path.String())
	}
	return os.Open(path.String())
}

// Stat returns fresh file info for a path.
func (m *OSFilesystemManager) Stat(path *photons.Path) (fs.FileInfo, error) {
	return os.Stat(path.String())
}

// Exists reports whether anything occupies absPath. Dangling links count.
func (m *OSFilesystemManager) Exists(absPath string) (bool, error) {
	_, err := os.Lstat(absPath)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// MkdirAll creates absPath and any missing parents.
func (m *OSFilesystemManager) MkdirAll(absPath string) error {
	return os.MkdirAll(absPath, 0755)
}

// CopyFile copies src to the new file dst and carries over permission bits,
// access time and modification time. dst must not exist.
func (m *OSFilesystemManager) CopyFile(src *photons.Path, dst string) (int64, error) {
	in, err := os.Open(src.String())
	if err != nil {
		return 0, fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return 0, fmt.Errorf("creating target: %w", err)
	}

	written, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return written, fmt.Errorf("copying data: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return written, fmt.Errorf("syncing target: %w", err)
	}
	if err := out.Close(); err != nil {
		return written, fmt.Errorf("closing target: %w", err)
	}

	// The umask may have narrowed the mode passed to OpenFile.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		return written, fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Chtimes(dst, accessTime(info), info.ModTime()); err != nil {
		return written, fmt.Errorf("setting file times: %w", err)
	}

	return written, nil
}

// Walk visits regular files under root in lexical order.
// Ignore patterns are matched against paths relative to root; a
// .photonsignore file in root adds to them.
func (m *OSFilesystemManager) Walk(root *photons.Path, visit photons.VisitFunc, onError photons.WalkErrorFunc) error {
	if !root.IsDir() {
		return fmt.Errorf("path is not a directory: %s", root.String())
	}

	filePatterns, err := ParseIgnoreFile(filepath.Join(root.String(), ignoreFileName))
	if err != nil {
		return err
	}
	patterns := append(append(builtinIgnorePatterns(m.storeFile), m.ignore...), filePatterns...)

	w := &walker{
		root:    root.String(),
		follow:  m.followSymlinks,
		matcher: NewIgnoreMatcher(patterns),
		active:  make(map[string]struct{}),
		visit:   visit,
		onError: onError,
	}
	return w.walkDir(root.String())
}

// walker carries the state of one Walk call.
type walker struct {
	root    string
	follow  bool
	matcher *IgnoreMatcher
	active  map[string]struct{} // real paths of directories on the current descent
	visit   photons.VisitFunc
	onError photons.WalkErrorFunc
}

func (w *walker) walkDir(dir string) error {
	if w.follow {
		real, err := filepath.EvalSymlinks(dir)
		if err != nil {
			return w.fail(dir, err)
		}
		if _, ok := w.active[real]; ok {
			return w.fail(dir, errSymlinkCycle)
		}
		w.active[real] = struct{}{}
		defer delete(w.active, real)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return w.fail(dir, err)
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			w.onError(path, err)
			continue
		}
		if w.matcher.Match(rel, entry.IsDir()) {
			continue
		}

		info, err := w.entryInfo(path, entry)
		if err != nil {
			w.onError(path, err)
			continue
		}
		if info == nil {
			continue
		}

		switch {
		case info.IsDir():
			// followed links only reveal a directory after Stat
			if !entry.IsDir() && w.matcher.Match(rel, true) {
				continue
			}
			if err := w.walkDir(path); err != nil {
				return err
			}
		case info.Mode().IsRegular():
			if err := w.visit(photons.NewPath(path, false, info)); err != nil {
				return err
			}
		}
	}
	return nil
}

// entryInfo stats a directory entry. Links are resolved only when following
// is enabled; otherwise (nil, nil) tells the caller to pass over the entry.
func (w *walker) entryInfo(path string, entry fs.DirEntry) (fs.FileInfo, error) {
	if entry.Type()&fs.ModeSymlink != 0 {
		if !w.follow {
			return nil, nil
		}
		return os.Stat(path)
	}
	return entry.Info()
}

// fail reports a directory that cannot be walked. Failing on the root
// aborts the walk; anywhere else the subtree is skipped.
func (w *walker) fail(dir string, err error) error {
	if dir == w.root {
		return fmt.Errorf("reading directory: %w", err)
	}
	w.onError(dir, err)
	return nil
}

// Compile-time check that OSFilesystemManager implements photons.FilesystemManager interface
var _ photons.FilesystemManager = (*OSFilesystemManager)(nil)
