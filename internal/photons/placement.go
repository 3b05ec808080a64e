package photons

import "path/filepath"

// Placement is where a file is meant to live inside the target tree.
type Placement struct {
	Subfolder string // relative to the target root, OS separators
	FileName  string
}

// Join returns the absolute intended path of p under targetRoot.
func (p Placement) Join(targetRoot string) string {
	return filepath.Join(targetRoot, p.Subfolder, p.FileName)
}

// PlacementPolicy decides the destination of a described file.
// Implementations must be deterministic and total: every descriptor maps to
// exactly one placement, using a fallback bucket when metadata is missing.
type PlacementPolicy interface {
	PlacementFor(d *Descriptor) Placement
}
