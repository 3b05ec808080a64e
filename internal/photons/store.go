package photons

import "time"

// ImportedRecord describes one file placed into the target tree.
// The engine creates records but never changes them after insert;
// ImportEnabled is toggled only through the store's administration path.
type ImportedRecord struct {
	ID             string
	Subfolder      string
	FileName       string
	OriginalHash   string
	OriginalLength int64
	ImportEnabled  bool
	SourcePath     string
	ImportedAt     time.Time
}

// RelativePath returns the record's location relative to the target root.
func (r *ImportedRecord) RelativePath() string {
	return Placement{Subfolder: r.Subfolder, FileName: r.FileName}.Join("")
}

// RecordStore is the persisted mapping from (hash, length) to imported
// records, scoped to exactly one target root.
type RecordStore interface {
	// Lookup returns the authoritative record for the fingerprint, or nil.
	// When several records share a fingerprint, enabled records win over
	// disabled ones and older records win over newer ones.
	Lookup(hash string, length int64) (*ImportedRecord, error)

	// Insert persists a new record. A key collision is reported as
	// ErrDuplicateRecord, any other failure as ErrPersist.
	Insert(record *ImportedRecord) error

	PathRecorder
}

// PathRecorder reports whether a record, enabled or not, already claims a
// location in the target tree. subfolder uses OS separators and is "" for
// the target root itself.
type PathRecorder interface {
	PathRecorded(subfolder, fileName string) (bool, error)
}
