package photons

import (
	"io/fs"
	"path/filepath"
)

// Path is an absolute location on disk together with the stat result that
// was current when it was resolved or walked. The engine never builds one
// itself; FilesystemManager.Resolve and Walk hand them out.
type Path struct {
	abs  string
	dir  bool
	stat fs.FileInfo
}

func NewPath(abs string, dir bool, stat fs.FileInfo) *Path {
	return &Path{abs: abs, dir: dir, stat: stat}
}

func (p *Path) String() string { return p.abs }

// Name is the base name, the part placement policies keep as the
// destination file name.
func (p *Path) Name() string { return filepath.Base(p.abs) }

func (p *Path) IsDir() bool { return p.dir }

// Info is the cached stat result. Use FilesystemManager.Stat for a fresh one.
func (p *Path) Info() fs.FileInfo { return p.stat }
