package photons

// Descriptor captures what the engine knows about one candidate source file.
// It is built once per visited file and never modified afterwards; the hash
// and length always come from the same read pass.
type Descriptor struct {
	path   *Path
	hash   string
	length int64
}

// Describe fingerprints path and returns its descriptor.
// Fails with ErrIO under the same conditions as Fingerprinter.Fingerprint.
func Describe(fp *Fingerprinter, path *Path) (*Descriptor, error) {
	hash, length, err := fp.Fingerprint(path)
	if err != nil {
		return nil, err
	}
	return &Descriptor{path: path, hash: hash, length: length}, nil
}

// NewDescriptor assembles a descriptor from already computed values.
func NewDescriptor(path *Path, hash string, length int64) *Descriptor {
	return &Descriptor{path: path, hash: hash, length: length}
}

func (d *Descriptor) Path() *Path           { return d.path }
func (d *Descriptor) SourcePath() string    { return d.path.String() }
func (d *Descriptor) Name() string          { return d.path.Name() }
func (d *Descriptor) ContentHash() string   { return d.hash }
func (d *Descriptor) OriginalLength() int64 { return d.length }
