package main

import (
	"path/filepath"

	"github.com/disiqueira/gotree/v3"

	"photons/internal/photons"
)

// recordTree renders records as the directory tree they form under the target root.
type recordTree struct {
	tree gotree.Tree
	dirs map[string]gotree.Tree
}

func newRecordTree(rootLabel string) recordTree {
	return recordTree{tree: gotree.New(rootLabel), dirs: make(map[string]gotree.Tree)}
}

func (t recordTree) dir(dirPath string) gotree.Tree {
	if dirPath == "." || dirPath == "" {
		return t.tree
	}
	dir := t.dirs[dirPath]
	if dir == nil {
		dir = t.dir(filepath.Dir(dirPath)).Add(filepath.Base(dirPath))
		t.dirs[dirPath] = dir
	}
	return dir
}

// Insert adds r. Records are expected in path order.
func (t recordTree) Insert(r *photons.ImportedRecord) {
	label := r.FileName
	if !r.ImportEnabled {
		label += " [disabled]"
	}
	t.dir(r.Subfolder).Add(label)
}

func (t recordTree) Render() string {
	return t.tree.Print()
}
