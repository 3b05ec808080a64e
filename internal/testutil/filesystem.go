package testutil

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"sort"
	"time"

	"photons/internal/photons"
)

// MockFile represents a file or directory in the mock filesystem.
type MockFile struct {
	Content     []byte
	Permissions fs.FileMode
	ModTime     time.Time
	IsDirectory bool
}

// MockFilesystemManager is an in-memory filesystem for testing. Paths are
// absolute and slash-separated the way filepath produces them on the host.
//
// The exported hook fields inject faults; leave them nil for a well-behaved
// filesystem.
type MockFilesystemManager struct {
	files map[string]*MockFile

	// CopyHook, if set, rewrites the bytes CopyFile writes to dst.
	CopyHook func(dst string, data []byte) []byte
	// CopyErr, if set, makes every CopyFile fail before writing.
	CopyErr error
	// MkdirErr, if set, makes every MkdirAll fail.
	MkdirErr error
	// Unreadable directories are reported to Walk's onError instead of being listed.
	Unreadable map[string]error
}

// NewMockFilesystemManager creates a new mock filesystem.
func NewMockFilesystemManager() *MockFilesystemManager {
	return &MockFilesystemManager{
		files:      make(map[string]*MockFile),
		Unreadable: make(map[string]error),
	}
}

// AddFile adds a file, creating its parent directories.
func (m *MockFilesystemManager) AddFile(path string, content []byte) {
	m.addParents(path)
	m.files[path] = &MockFile{
		Content:     content,
		Permissions: 0644,
		ModTime:     time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddDirectory adds a directory and its parents.
func (m *MockFilesystemManager) AddDirectory(path string) {
	m.addParents(path)
	m.files[path] = &MockFile{Permissions: 0755, IsDirectory: true}
}

// RemoveFile deletes a file the way a user cleaning up the target would.
func (m *MockFilesystemManager) RemoveFile(path string) {
	if f, ok := m.files[path]; ok && !f.IsDirectory {
		delete(m.files, path)
	}
}

func (m *MockFilesystemManager) addParents(path string) {
	for dir := filepath.Dir(path); ; dir = filepath.Dir(dir) {
		if _, ok := m.files[dir]; !ok {
			m.files[dir] = &MockFile{Permissions: 0755, IsDirectory: true}
		}
		if dir == filepath.Dir(dir) {
			return
		}
	}
}

// Content returns the bytes stored at path and whether it exists as a file.
func (m *MockFilesystemManager) Content(path string) ([]byte, bool) {
	f, ok := m.files[path]
	if !ok || f.IsDirectory {
		return nil, false
	}
	return f.Content, true
}

// Files returns every file path below root, sorted.
func (m *MockFilesystemManager) Files(root string) []string {
	var out []string
	prefix := root + string(filepath.Separator)
	for p, f := range m.files {
		if !f.IsDirectory && len(p) > len(prefix) && p[:len(prefix)] == prefix {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MockFilesystemManager) pathFor(absPath string, f *MockFile) *photons.Path {
	info := &mockFileInfo{
		name:    filepath.Base(absPath),
		size:    int64(len(f.Content)),
		mode:    f.Permissions,
		modTime: f.ModTime,
		isDir:   f.IsDirectory,
	}
	return photons.NewPath(absPath, f.IsDirectory, info)
}

func (m *MockFilesystemManager) Resolve(rawPath string) (*photons.Path, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return nil, err
	}
	f, ok := m.files[absPath]
	if !ok {
		return nil, fmt.Errorf("file not found: %s: %w", absPath, fs.ErrNotExist)
	}
	return m.pathFor(absPath, f), nil
}

func (m *MockFilesystemManager) Open(path *photons.Path) (io.ReadCloser, error) {
	f, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s: %w", path.String(), fs.ErrNotExist)
	}
	if f.IsDirectory {
		return nil, fmt.Errorf("cannot open directory: %s", path.String())
	}
	return io.NopCloser(bytes.NewReader(f.Content)), nil
}

func (m *MockFilesystemManager) Stat(path *photons.Path) (fs.FileInfo, error) {
	f, ok := m.files[path.String()]
	if !ok {
		return nil, fmt.Errorf("file not found: %s: %w", path.String(), fs.ErrNotExist)
	}
	return m.pathFor(path.String(), f).Info(), nil
}

func (m *MockFilesystemManager) Exists(absPath string) (bool, error) {
	_, ok := m.files[absPath]
	return ok, nil
}

func (m *MockFilesystemManager) MkdirAll(absPath string) error {
	if m.MkdirErr != nil {
		return m.MkdirErr
	}
	if f, ok := m.files[absPath]; ok {
		if !f.IsDirectory {
			return fmt.Errorf("not a directory: %s", absPath)
		}
		return nil
	}
	m.AddDirectory(absPath)
	return nil
}

func (m *MockFilesystemManager) CopyFile(src *photons.Path, dst string) (int64, error) {
	if m.CopyErr != nil {
		return 0, m.CopyErr
	}
	from, ok := m.files[src.String()]
	if !ok || from.IsDirectory {
		return 0, fmt.Errorf("source not found: %s: %w", src.String(), fs.ErrNotExist)
	}
	if _, ok := m.files[dst]; ok {
		return 0, fmt.Errorf("target exists: %s: %w", dst, fs.ErrExist)
	}
	if parent, ok := m.files[filepath.Dir(dst)]; !ok || !parent.IsDirectory {
		return 0, fmt.Errorf("target folder missing: %s: %w", filepath.Dir(dst), fs.ErrNotExist)
	}

	data := append([]byte(nil), from.Content...)
	if m.CopyHook != nil {
		data = m.CopyHook(dst, data)
	}
	m.files[dst] = &MockFile{
		Content:     data,
		Permissions: from.Permissions,
		ModTime:     from.ModTime,
	}
	return int64(len(data)), nil
}

// Walk visits files in lexical order, descending into directories.
func (m *MockFilesystemManager) Walk(root *photons.Path, visit photons.VisitFunc, onError photons.WalkErrorFunc) error {
	if !root.IsDir() {
		return fmt.Errorf("not a directory: %s", root.String())
	}
	if err, ok := m.Unreadable[root.String()]; ok {
		return err
	}
	return m.walkDir(root.String(), visit, onError)
}

func (m *MockFilesystemManager) walkDir(dir string, visit photons.VisitFunc, onError photons.WalkErrorFunc) error {
	var children []string
	for p := range m.files {
		if p != dir && filepath.Dir(p) == dir {
			children = append(children, p)
		}
	}
	sort.Strings(children)

	for _, child := range children {
		f := m.files[child]
		if !f.IsDirectory {
			if err := visit(m.pathFor(child, f)); err != nil {
				return err
			}
			continue
		}
		if err, ok := m.Unreadable[child]; ok {
			onError(child, err)
			continue
		}
		if err := m.walkDir(child, visit, onError); err != nil {
			return err
		}
	}
	return nil
}

// mockFileInfo implements fs.FileInfo
type mockFileInfo struct {
	name    string
	size    int64
	mode    fs.FileMode
	modTime time.Time
	isDir   bool
}

func (m *mockFileInfo) Name() string       { return m.name }
func (m *mockFileInfo) Size() int64        { return m.size }
func (m *mockFileInfo) Mode() fs.FileMode  { return m.mode }
func (m *mockFileInfo) ModTime() time.Time { return m.modTime }
func (m *mockFileInfo) IsDir() bool        { return m.isDir }
func (m *mockFileInfo) Sys() any           { return nil }

// Compile-time check that MockFilesystemManager implements photons.FilesystemManager
var _ photons.FilesystemManager = (*MockFilesystemManager)(nil)
