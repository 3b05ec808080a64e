package photons

import (
	"io"
	"io/fs"
)

// VisitFunc is called once per regular file found during a walk.
// Returning an error stops the walk.
type VisitFunc func(path *Path) error

// WalkErrorFunc is called for every entry the walk could not visit.
// The entry (and, for directories, everything below it) is skipped.
type WalkErrorFunc func(path string, err error)

// FilesystemManager provides an interface for filesystem operations.
// It abstracts file access to enable testing without touching the real filesystem.
type FilesystemManager interface {
	// Resolve validates a raw path and returns a Path object.
	// It resolves the path to an absolute path, stats it, and validates
	// it's a regular file or directory (not a device, pipe, etc.).
	Resolve(rawPath string) (*Path, error)

	// Open opens a file for reading.
	Open(path *Path) (io.ReadCloser, error)

	// Stat returns fresh file info for a path.
	// Unlike path.Info() which returns cached info from when the path was resolved,
	// this always fetches current info from the filesystem.
	Stat(path *Path) (fs.FileInfo, error)

	// Exists reports whether anything (file, directory, dangling link) occupies absPath.
	Exists(absPath string) (bool, error)

	// MkdirAll creates absPath and any missing parents.
	MkdirAll(absPath string) error

	// CopyFile copies src to dst, which must not exist yet, preserving
	// permission bits and access/modification times. Returns bytes written.
	CopyFile(src *Path, dst string) (int64, error)

	// Walk visits every regular file under root in lexical order.
	// Entries that cannot be read are reported to onError and skipped.
	// Only a failure on root itself, or an error from visit, is returned.
	Walk(root *Path, visit VisitFunc, onError WalkErrorFunc) error
}
