package testutil

import (
	"errors"
	"testing"

	"photons/internal/database"
	"photons/internal/photons"
)

// NewTestStore returns an in-memory, fully migrated record store that is
// closed when the test ends.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()
	store, err := database.NewMemoryStore()
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// ErrInjected is the error FaultyStore returns for injected failures.
var ErrInjected = errors.New("injected store failure")

// FaultyStore wraps a RecordStore and injects failures.
type FaultyStore struct {
	photons.RecordStore

	// InsertErr, if set, is returned by Insert without touching the store.
	InsertErr error
	// LookupErr, if set, is returned by every Lookup.
	LookupErr error
	// PathErr, if set, is returned by every PathRecorded.
	PathErr error
	// DropInserts makes Insert report success without storing anything,
	// so the record is invisible to the next Lookup.
	DropInserts bool

	Inserted []*photons.ImportedRecord
}

func (s *FaultyStore) Lookup(hash string, length int64) (*photons.ImportedRecord, error) {
	if s.LookupErr != nil {
		return nil, s.LookupErr
	}
	return s.RecordStore.Lookup(hash, length)
}

func (s *FaultyStore) PathRecorded(subfolder, fileName string) (bool, error) {
	if s.PathErr != nil {
		return false, s.PathErr
	}
	return s.RecordStore.PathRecorded(subfolder, fileName)
}

func (s *FaultyStore) Insert(record *photons.ImportedRecord) error {
	if s.InsertErr != nil {
		return s.InsertErr
	}
	if s.DropInserts {
		return nil
	}
	if err := s.RecordStore.Insert(record); err != nil {
		return err
	}
	s.Inserted = append(s.Inserted, record)
	return nil
}

var _ photons.RecordStore = (*FaultyStore)(nil)
